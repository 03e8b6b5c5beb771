package source

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/leadforge/leadgen-cli/internal/model"
	"github.com/leadforge/leadgen-cli/internal/resilience"
)

const placesBaseURL = "https://places.googleapis.com/v1/places"

const placesFieldMask = "places.displayName,places.formattedAddress," +
	"places.internationalPhoneNumber,places.websiteUri," +
	"places.types,places.addressComponents,places.id," +
	"places.location,nextPageToken"

var placesConfig = Config{
	Name:               "google_places",
	Type:               TypeAPI,
	Priority:           1,
	RateLimit:          10.0,
	RequiresAPIKey:     true,
	APIKeyEnvVar:       "GOOGLE_PLACES_API_KEY",
	SupportedCountries: []string{"*"},
	Enabled:            true,
	Confidence:         0.9,
	MaxResults:         60,
	Timeout:            30 * time.Second,
	Retries:            3,
	RequiresProxy:      false,
}

// PlacesConnector queries the Google Places Text Search API. Highest
// priority source: official data, global coverage.
type PlacesConnector struct {
	apiKey  string
	baseURL string
	http    *http.Client
	cfg     Config
}

// PlacesOption configures the connector.
type PlacesOption func(*PlacesConnector)

// WithPlacesBaseURL overrides the API endpoint. Used in tests.
func WithPlacesBaseURL(url string) PlacesOption {
	return func(c *PlacesConnector) {
		c.baseURL = url
	}
}

// WithPlacesHTTPClient overrides the default HTTP client.
func WithPlacesHTTPClient(hc *http.Client) PlacesOption {
	return func(c *PlacesConnector) {
		c.http = hc
	}
}

// NewPlacesConnector creates the Google Places connector. An empty API
// key disables the source.
func NewPlacesConnector(apiKey string, opts ...PlacesOption) *PlacesConnector {
	c := &PlacesConnector{
		apiKey:  apiKey,
		baseURL: placesBaseURL,
		http:    &http.Client{Timeout: placesConfig.Timeout},
		cfg:     placesConfig,
	}
	if apiKey == "" {
		c.cfg.Enabled = false
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *PlacesConnector) Config() Config {
	return c.cfg
}

type placesSearchRequest struct {
	TextQuery      string `json:"textQuery,omitempty"`
	LanguageCode   string `json:"languageCode,omitempty"`
	MaxResultCount int    `json:"maxResultCount,omitempty"`
	PageToken      string `json:"pageToken,omitempty"`
}

type placesSearchResponse struct {
	Places        []placeResult `json:"places"`
	NextPageToken string        `json:"nextPageToken"`
}

type placeResult struct {
	ID          string `json:"id"`
	DisplayName struct {
		Text string `json:"text"`
	} `json:"displayName"`
	FormattedAddress         string   `json:"formattedAddress"`
	InternationalPhoneNumber string   `json:"internationalPhoneNumber"`
	WebsiteURI               string   `json:"websiteUri"`
	Types                    []string `json:"types"`
	AddressComponents        []struct {
		LongText  string   `json:"longText"`
		ShortText string   `json:"shortText"`
		Types     []string `json:"types"`
	} `json:"addressComponents"`
	Location struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location"`
}

// Search runs a Text Search for the criteria, following pagination
// until the limit is reached.
func (c *PlacesConnector) Search(ctx context.Context, criteria model.SearchCriteria) ([]model.Lead, error) {
	if c.apiKey == "" {
		return nil, eris.New("google_places: api key not configured")
	}

	query := criteria.Query
	if criteria.City != "" {
		query = criteria.Query + " in " + criteria.City
	}
	language := criteria.Language
	if language == "" {
		language = "it"
	}
	limit := criteria.MaxResults
	if limit <= 0 || limit > c.cfg.MaxResults {
		limit = c.cfg.MaxResults
	}

	var leads []model.Lead
	body := placesSearchRequest{
		TextQuery:      query,
		LanguageCode:   language,
		MaxResultCount: min(limit, 20), // API caps one page at 20
	}

	for {
		resp, err := c.searchPage(ctx, body)
		if err != nil {
			return leads, err
		}
		for _, place := range resp.Places {
			if lead, ok := c.parsePlace(place); ok {
				leads = append(leads, lead)
			}
		}
		if resp.NextPageToken == "" || len(leads) >= limit {
			break
		}
		body = placesSearchRequest{
			LanguageCode:   language,
			MaxResultCount: body.MaxResultCount,
			PageToken:      resp.NextPageToken,
		}
	}

	if len(leads) > limit {
		leads = leads[:limit]
	}
	return leads, nil
}

func (c *PlacesConnector) searchPage(ctx context.Context, reqBody placesSearchRequest) (*placesSearchResponse, error) {
	retryCfg := resilience.SourceRetry(c.cfg.Name, "search", c.cfg.Retries)
	return resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*placesSearchResponse, error) {
		return c.post(ctx, c.baseURL+":searchText", reqBody)
	})
}

func (c *PlacesConnector) post(ctx context.Context, url string, reqBody placesSearchRequest) (*placesSearchResponse, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, eris.Wrap(err, "google_places: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "google_places: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", placesFieldMask)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "google_places: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "google_places: read response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("google_places: unexpected status %d: %s", resp.StatusCode, string(respBody))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var result placesSearchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "google_places: unmarshal response")
	}
	return &result, nil
}

func (c *PlacesConnector) parsePlace(place placeResult) (model.Lead, bool) {
	name := place.DisplayName.Text
	if name == "" {
		return model.Lead{}, false
	}

	lead := model.Lead{
		Name:           name,
		Phone:          place.InternationalPhoneNumber,
		Website:        place.WebsiteURI,
		Address:        place.FormattedAddress,
		Latitude:       place.Location.Latitude,
		Longitude:      place.Location.Longitude,
		Source:         c.cfg.Name,
		SourcePriority: c.cfg.Priority,
		FetchedAt:      time.Now().UTC(),
	}
	lead.AddSource(c.cfg.Name)

	if len(place.Types) > 0 {
		lead.Category = place.Types[0]
	}
	for _, comp := range place.AddressComponents {
		for _, t := range comp.Types {
			switch t {
			case "locality":
				lead.City = comp.LongText
			case "administrative_area_level_1":
				lead.Region = comp.LongText
			case "postal_code":
				lead.PostalCode = comp.LongText
			case "country":
				lead.Country = comp.ShortText
			}
		}
	}
	return lead, true
}

// Enrich looks the business up by name and city and returns the first
// exact name match.
func (c *PlacesConnector) Enrich(ctx context.Context, lead model.Lead) (*model.Lead, error) {
	if lead.Name == "" || lead.City == "" {
		return nil, nil
	}

	results, err := c.Search(ctx, model.SearchCriteria{
		Query:      lead.Name,
		City:       lead.City,
		Country:    lead.Country,
		MaxResults: 5,
	})
	if err != nil {
		return nil, err
	}

	for i := range results {
		if strings.EqualFold(results[i].Name, lead.Name) {
			return &results[i], nil
		}
	}
	return nil, nil
}

// HealthCheck issues a minimal search to verify the API is reachable
// and the key is accepted.
func (c *PlacesConnector) HealthCheck(ctx context.Context) error {
	if c.apiKey == "" {
		return eris.New("google_places: api key not configured")
	}
	_, err := c.post(ctx, c.baseURL+":searchText", placesSearchRequest{
		TextQuery:      "test",
		MaxResultCount: 1,
	})
	return err
}
