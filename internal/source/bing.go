package source

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/leadforge/leadgen-cli/internal/model"
	"github.com/leadforge/leadgen-cli/internal/resilience"
)

const bingBaseURL = "https://dev.virtualearth.net/REST/v1/LocalSearch"

var bingConfig = Config{
	Name:               "bing_places",
	Type:               TypeAPI,
	Priority:           2,
	RateLimit:          5.0,
	RequiresAPIKey:     true,
	APIKeyEnvVar:       "BING_MAPS_API_KEY",
	SupportedCountries: []string{"*"},
	Enabled:            true,
	Confidence:         0.85,
	MaxResults:         25, // the Local Search API returns at most 25
	Timeout:            30 * time.Second,
	Retries:            3,
	RequiresProxy:      false,
}

// BingConnector queries the Bing Maps Local Search API. Global
// coverage as a complement to Google Places, at slightly lower
// confidence.
type BingConnector struct {
	apiKey  string
	baseURL string
	http    *http.Client
	cfg     Config
}

// BingOption configures the connector.
type BingOption func(*BingConnector)

// WithBingBaseURL overrides the API endpoint. Used in tests.
func WithBingBaseURL(url string) BingOption {
	return func(c *BingConnector) {
		c.baseURL = url
	}
}

// WithBingHTTPClient overrides the default HTTP client.
func WithBingHTTPClient(hc *http.Client) BingOption {
	return func(c *BingConnector) {
		c.http = hc
	}
}

// NewBingConnector creates the Bing Places connector. An empty API key
// disables the source.
func NewBingConnector(apiKey string, opts ...BingOption) *BingConnector {
	c := &BingConnector{
		apiKey:  apiKey,
		baseURL: bingBaseURL,
		http:    &http.Client{Timeout: bingConfig.Timeout},
		cfg:     bingConfig,
	}
	if apiKey == "" {
		c.cfg.Enabled = false
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *BingConnector) Config() Config {
	return c.cfg
}

type bingResponse struct {
	StatusCode        int    `json:"statusCode"`
	StatusDescription string `json:"statusDescription"`
	ResourceSets      []struct {
		Resources []bingResource `json:"resources"`
	} `json:"resourceSets"`
}

type bingResource struct {
	Name    string `json:"name"`
	Address struct {
		AddressLine      string `json:"addressLine"`
		Locality         string `json:"locality"`
		AdminDistrict    string `json:"adminDistrict"`
		PostalCode       string `json:"postalCode"`
		CountryRegion    string `json:"countryRegion"`
		FormattedAddress string `json:"formattedAddress"`
	} `json:"Address"`
	PhoneNumber string `json:"PhoneNumber"`
	Website     string `json:"Website"`
	EntityType  string `json:"entityType"`
	Point       struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"point"`
}

// Search runs a Local Search for the criteria. The city is folded into
// the query text since the API has no separate city parameter.
func (c *BingConnector) Search(ctx context.Context, criteria model.SearchCriteria) ([]model.Lead, error) {
	if c.apiKey == "" {
		return nil, eris.New("bing_places: api key not configured")
	}

	query := criteria.Query
	if criteria.City != "" {
		query = criteria.Query + " in " + criteria.City
	}
	limit := criteria.MaxResults
	if limit <= 0 || limit > c.cfg.MaxResults {
		limit = c.cfg.MaxResults
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("key", c.apiKey)
	params.Set("maxResults", strconv.Itoa(limit))
	params.Set("culture", bingCulture(criteria.Language))
	if criteria.Country != "" {
		params.Set("userRegion", criteria.Country)
	}

	retryCfg := resilience.SourceRetry(c.cfg.Name, "search", c.cfg.Retries)
	resp, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*bingResponse, error) {
		return c.get(ctx, params)
	})
	if err != nil {
		return nil, err
	}

	if len(resp.ResourceSets) == 0 {
		return nil, nil
	}
	var leads []model.Lead
	for _, resource := range resp.ResourceSets[0].Resources {
		if len(leads) >= limit {
			break
		}
		if lead, ok := c.parseResource(resource); ok {
			leads = append(leads, lead)
		}
	}
	return leads, nil
}

func (c *BingConnector) get(ctx context.Context, params url.Values) (*bingResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "bing_places: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "bing_places: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "bing_places: read response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("bing_places: unexpected status %d: %s", resp.StatusCode, string(respBody))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var result bingResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "bing_places: unmarshal response")
	}
	// The API wraps its own status in the body.
	if result.StatusCode != 0 && result.StatusCode != http.StatusOK {
		return nil, eris.Errorf("bing_places: api status %d: %s", result.StatusCode, result.StatusDescription)
	}
	return &result, nil
}

func (c *BingConnector) parseResource(resource bingResource) (model.Lead, bool) {
	if resource.Name == "" {
		return model.Lead{}, false
	}

	address := resource.Address.AddressLine
	if address == "" {
		address = resource.Address.FormattedAddress
	}

	lead := model.Lead{
		Name:           resource.Name,
		Phone:          resource.PhoneNumber,
		Website:        resource.Website,
		Address:        address,
		City:           resource.Address.Locality,
		Region:         resource.Address.AdminDistrict,
		Country:        resource.Address.CountryRegion,
		PostalCode:     resource.Address.PostalCode,
		Category:       resource.EntityType,
		Source:         c.cfg.Name,
		SourcePriority: c.cfg.Priority,
		FetchedAt:      time.Now().UTC(),
	}
	if coords := resource.Point.Coordinates; len(coords) >= 2 {
		lead.Latitude = coords[0]
		lead.Longitude = coords[1]
	}
	lead.AddSource(c.cfg.Name)
	return lead, true
}

func bingCulture(language string) string {
	switch strings.ToLower(language) {
	case "", "it":
		return "it-IT"
	case "de":
		return "de-DE"
	case "fr":
		return "fr-FR"
	case "es":
		return "es-ES"
	case "en":
		return "en-US"
	default:
		return language
	}
}

// Enrich looks the business up by name and city and returns the first
// exact name match, falling back to the top result.
func (c *BingConnector) Enrich(ctx context.Context, lead model.Lead) (*model.Lead, error) {
	if c.apiKey == "" || lead.Name == "" {
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
	if len(results) == 0 {
		return nil, nil
	}

	for i := range results {
		if strings.EqualFold(results[i].Name, lead.Name) {
			return &results[i], nil
		}
	}
	return &results[0], nil
}

// HealthCheck issues a minimal query to verify the API accepts the key.
func (c *BingConnector) HealthCheck(ctx context.Context) error {
	if c.apiKey == "" {
		return eris.New("bing_places: api key not configured")
	}
	params := url.Values{}
	params.Set("query", "test")
	params.Set("key", c.apiKey)
	params.Set("maxResults", "1")
	_, err := c.get(ctx, params)
	return err
}
