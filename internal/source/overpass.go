package source

import (
	"context"
	"encoding/json"
	"fmt"
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

const overpassAPIURL = "https://overpass-api.de/api/interpreter"

// categoryToOSMTags maps common business categories across European
// languages to OpenStreetMap tag filters.
var categoryToOSMTags = map[string][]string{
	// Hairdresser
	"friseur":      {"shop=hairdresser", "shop=beauty"},
	"friseure":     {"shop=hairdresser", "shop=beauty"},
	"parrucchiere": {"shop=hairdresser", "shop=beauty"},
	"parrucchieri": {"shop=hairdresser", "shop=beauty"},
	"coiffeur":     {"shop=hairdresser", "shop=beauty"},
	"peluqueria":   {"shop=hairdresser", "shop=beauty"},
	"hairdresser":  {"shop=hairdresser", "shop=beauty"},

	// Restaurant
	"restaurant":  {"amenity=restaurant"},
	"restaurants": {"amenity=restaurant"},
	"ristorante":  {"amenity=restaurant"},
	"ristoranti":  {"amenity=restaurant"},
	"restaurante": {"amenity=restaurant"},

	// Cafe / bar
	"cafe":  {"amenity=cafe"},
	"café":  {"amenity=cafe"},
	"bar":   {"amenity=bar", "amenity=cafe"},
	"caffè": {"amenity=cafe"},

	// Dentist
	"zahnarzt": {"amenity=dentist", "healthcare=dentist"},
	"zahnärzte": {"amenity=dentist", "healthcare=dentist"},
	"dentista": {"amenity=dentist", "healthcare=dentist"},
	"dentisti": {"amenity=dentist", "healthcare=dentist"},
	"dentiste": {"amenity=dentist", "healthcare=dentist"},
	"dentist":  {"amenity=dentist", "healthcare=dentist"},

	// Doctor
	"arzt":    {"amenity=doctors", "healthcare=doctor"},
	"ärzte":   {"amenity=doctors", "healthcare=doctor"},
	"medico":  {"amenity=doctors", "healthcare=doctor"},
	"médecin": {"amenity=doctors", "healthcare=doctor"},
	"doctor":  {"amenity=doctors", "healthcare=doctor"},

	// Pharmacy
	"apotheke":  {"amenity=pharmacy"},
	"apotheken": {"amenity=pharmacy"},
	"farmacia":  {"amenity=pharmacy"},
	"pharmacie": {"amenity=pharmacy"},
	"pharmacy":  {"amenity=pharmacy"},

	// Lawyer
	"anwalt":   {"office=lawyer"},
	"anwälte":  {"office=lawyer"},
	"avvocato": {"office=lawyer"},
	"avvocati": {"office=lawyer"},
	"avocat":   {"office=lawyer"},
	"abogado":  {"office=lawyer"},
	"lawyer":   {"office=lawyer"},

	// Hotel
	"hotel":    {"tourism=hotel"},
	"hotels":   {"tourism=hotel"},
	"albergo":  {"tourism=hotel"},
	"alberghi": {"tourism=hotel"},

	// Bank
	"bank":   {"amenity=bank"},
	"banca":  {"amenity=bank"},
	"banque": {"amenity=bank"},
	"banco":  {"amenity=bank"},

	// Supermarket
	"supermarkt":   {"shop=supermarket"},
	"supermercato": {"shop=supermarket"},
	"supermarché":  {"shop=supermarket"},
	"supermercado": {"shop=supermarket"},
	"supermarket":  {"shop=supermarket"},

	// Bakery
	"bäckerei":    {"shop=bakery"},
	"panetteria":  {"shop=bakery"},
	"boulangerie": {"shop=bakery"},
	"panaderia":   {"shop=bakery"},
	"bakery":      {"shop=bakery"},

	// Butcher
	"metzger":    {"shop=butcher"},
	"metzgerei":  {"shop=butcher"},
	"macelleria": {"shop=butcher"},
	"boucherie":  {"shop=butcher"},
	"carniceria": {"shop=butcher"},
	"butcher":    {"shop=butcher"},

	// Gym
	"fitnessstudio": {"leisure=fitness_centre", "amenity=gym"},
	"fitness":       {"leisure=fitness_centre", "amenity=gym"},
	"palestra":      {"leisure=fitness_centre", "amenity=gym"},
	"gym":           {"leisure=fitness_centre", "amenity=gym"},

	// Craftsmen
	"handwerker":  {"craft=*"},
	"elektriker":  {"craft=electrician"},
	"elettricista": {"craft=electrician"},
	"électricien": {"craft=electrician"},
	"electrician": {"craft=electrician"},
	"klempner":    {"craft=plumber"},
	"idraulico":   {"craft=plumber"},
	"plombier":    {"craft=plumber"},
	"plumber":     {"craft=plumber"},
	"tischler":    {"craft=carpenter"},
	"falegname":   {"craft=carpenter"},
	"menuisier":   {"craft=carpenter"},
	"carpenter":   {"craft=carpenter"},
	"schlosser":   {"craft=locksmith"},
	"fabbro":      {"craft=locksmith"},
	"serrurier":   {"craft=locksmith"},
	"locksmith":   {"craft=locksmith"},

	// Car repair
	"autowerkstatt": {"shop=car_repair", "amenity=car_repair"},
	"kfz":           {"shop=car_repair", "amenity=car_repair"},
	"autofficina":   {"shop=car_repair", "amenity=car_repair"},
	"meccanico":     {"shop=car_repair", "amenity=car_repair"},
	"garage":        {"shop=car_repair", "amenity=car_repair"},
	"taller":        {"shop=car_repair", "amenity=car_repair"},
	"car repair":    {"shop=car_repair", "amenity=car_repair"},

	// Optician
	"optiker":  {"shop=optician"},
	"ottico":   {"shop=optician"},
	"opticien": {"shop=optician"},
	"optician": {"shop=optician"},

	// Florist
	"blumen":      {"shop=florist"},
	"blumenladen": {"shop=florist"},
	"fiorista":    {"shop=florist"},
	"fleuriste":   {"shop=florist"},
	"florist":     {"shop=florist"},

	// Real estate
	"immobilien":         {"office=estate_agent"},
	"makler":             {"office=estate_agent"},
	"immobiliare":        {"office=estate_agent"},
	"agence immobilière": {"office=estate_agent"},
	"real estate":        {"office=estate_agent"},

	// Insurance
	"versicherung":  {"office=insurance"},
	"assicurazione": {"office=insurance"},
	"assurance":     {"office=insurance"},
	"insurance":     {"office=insurance"},

	// Accountant
	"steuerberater":  {"office=accountant", "office=tax_advisor"},
	"commercialista": {"office=accountant"},
	"comptable":      {"office=accountant"},
	"accountant":     {"office=accountant"},
}

var overpassConfig = Config{
	Name:               "overpass_osm",
	Type:               TypeAPI,
	Priority:           2,
	RateLimit:          1.0,
	RequiresAPIKey:     false,
	SupportedCountries: []string{"*"},
	Enabled:            true,
	Confidence:         0.75,
	MaxResults:         500,
	Timeout:            120 * time.Second,
	Retries:            3,
	RequiresProxy:      false,
}

// OverpassConnector queries the OpenStreetMap Overpass API. Free
// community geodata with strong European coverage.
type OverpassConnector struct {
	apiURL string
	http   *http.Client
	cfg    Config
}

// OverpassOption configures the connector.
type OverpassOption func(*OverpassConnector)

// WithOverpassURL overrides the API endpoint. Used in tests.
func WithOverpassURL(url string) OverpassOption {
	return func(c *OverpassConnector) {
		c.apiURL = url
	}
}

// NewOverpassConnector creates the Overpass connector.
func NewOverpassConnector(opts ...OverpassOption) *OverpassConnector {
	c := &OverpassConnector{
		apiURL: overpassAPIURL,
		http:   &http.Client{Timeout: overpassConfig.Timeout},
		cfg:    overpassConfig,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *OverpassConnector) Config() Config {
	return c.cfg
}

// osmTagsFor maps a search query to OSM tag filters. An empty slice
// means fall back to a name-based search.
func osmTagsFor(query string) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	if tags, ok := categoryToOSMTags[q]; ok {
		return tags
	}
	for key, tags := range categoryToOSMTags {
		if strings.Contains(q, key) || strings.Contains(key, q) {
			return tags
		}
	}
	return nil
}

// buildQuery assembles the Overpass QL query for a category search
// scoped to a city area.
func buildOverpassQuery(query, city string, limit int) string {
	var filters []string
	for _, tag := range osmTagsFor(query) {
		key, value, _ := strings.Cut(tag, "=")
		var node, way string
		if value == "*" {
			node = fmt.Sprintf(`  node[%q](area.searchArea);`, key)
			way = fmt.Sprintf(`  way[%q](area.searchArea);`, key)
		} else {
			node = fmt.Sprintf(`  node[%q=%q](area.searchArea);`, key, value)
			way = fmt.Sprintf(`  way[%q=%q](area.searchArea);`, key, value)
		}
		filters = append(filters, node, way)
	}
	if len(filters) == 0 {
		filters = []string{
			fmt.Sprintf(`  node["name"~%q,i](area.searchArea);`, query),
			fmt.Sprintf(`  way["name"~%q,i](area.searchArea);`, query),
		}
	}

	return fmt.Sprintf(`[out:json][timeout:60];
area["name"=%q]["admin_level"~"[468]"]->.searchArea;
(
%s
);
out center %d;`, city, strings.Join(filters, "\n"), limit)
}

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    float64           `json:"lat"`
	Lon    float64           `json:"lon"`
	Center *struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"center"`
	Tags map[string]string `json:"tags"`
}

// Search runs an Overpass query for the criteria. A city is required
// to scope the search area.
func (c *OverpassConnector) Search(ctx context.Context, criteria model.SearchCriteria) ([]model.Lead, error) {
	if criteria.City == "" {
		return nil, nil
	}
	limit := criteria.MaxResults
	if limit <= 0 || limit > c.cfg.MaxResults {
		limit = c.cfg.MaxResults
	}

	ql := buildOverpassQuery(criteria.Query, criteria.City, limit)

	retryCfg := resilience.SourceRetry(c.cfg.Name, "search", c.cfg.Retries)
	resp, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*overpassResponse, error) {
		return c.execute(ctx, ql)
	})
	if err != nil {
		return nil, err
	}

	var leads []model.Lead
	for _, element := range resp.Elements {
		if lead, ok := c.parseElement(element, criteria); ok {
			leads = append(leads, lead)
			if len(leads) >= limit {
				break
			}
		}
	}
	return leads, nil
}

func (c *OverpassConnector) execute(ctx context.Context, ql string) (*overpassResponse, error) {
	form := url.Values{"data": {ql}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "overpass: create request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "leadgen-cli/1.0 (B2B lead generation)")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "overpass: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "overpass: read response")
	}
	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("overpass: unexpected status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var result overpassResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "overpass: unmarshal response")
	}
	return &result, nil
}

func (c *OverpassConnector) parseElement(element overpassElement, criteria model.SearchCriteria) (model.Lead, bool) {
	tags := element.Tags
	name := tags["name"]
	if name == "" {
		return model.Lead{}, false
	}

	address := tags["addr:street"]
	if address != "" && tags["addr:housenumber"] != "" {
		address += " " + tags["addr:housenumber"]
	}

	phone := firstNonEmpty(tags["phone"], tags["contact:phone"], tags["telephone"])
	website := firstNonEmpty(tags["website"], tags["contact:website"], tags["url"])
	email := firstNonEmpty(tags["email"], tags["contact:email"])
	region := firstNonEmpty(tags["addr:state"], tags["addr:province"])
	category := firstNonEmpty(
		tags["shop"], tags["amenity"], tags["office"],
		tags["craft"], tags["tourism"], tags["healthcare"],
	)

	lat, lon := element.Lat, element.Lon
	if element.Center != nil {
		lat, lon = element.Center.Lat, element.Center.Lon
	}

	city := tags["addr:city"]
	if city == "" {
		city = criteria.City
	}
	country := tags["addr:country"]
	if country == "" {
		country = criteria.Country
	}

	lead := model.Lead{
		ID:             "osm-" + element.Type + "-" + strconv.FormatInt(element.ID, 10),
		Name:           name,
		Phone:          phone,
		Email:          email,
		Website:        website,
		Address:        address,
		City:           city,
		Region:         region,
		Country:        country,
		PostalCode:     tags["addr:postcode"],
		Category:       category,
		Latitude:       lat,
		Longitude:      lon,
		Source:         c.cfg.Name,
		SourcePriority: c.cfg.Priority,
		FetchedAt:      time.Now().UTC(),
	}
	lead.AddSource(c.cfg.Name)
	return lead, true
}

// Enrich searches OSM for the business by exact name in its city.
func (c *OverpassConnector) Enrich(ctx context.Context, lead model.Lead) (*model.Lead, error) {
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

// HealthCheck probes the Overpass status endpoint.
func (c *OverpassConnector) HealthCheck(ctx context.Context) error {
	statusURL := strings.TrimSuffix(c.apiURL, "/interpreter") + "/status"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return eris.Wrap(err, "overpass: create request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "overpass: status probe")
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("overpass: status %d", resp.StatusCode)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
