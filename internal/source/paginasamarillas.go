package source

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/leadforge/leadgen-cli/internal/model"
	"github.com/leadforge/leadgen-cli/internal/proxy"
	"github.com/leadforge/leadgen-cli/internal/resilience"
)

const (
	paginasAmarillasBaseURL   = "https://www.paginasamarillas.es"
	paginasAmarillasSearchURL = "https://www.paginasamarillas.es/search"
)

var paginasAmarillasConfig = Config{
	Name:               "paginas_amarillas",
	Type:               TypeDirectory,
	Priority:           4,
	RateLimit:          1.0,
	RequiresAPIKey:     false,
	SupportedCountries: []string{"ES"},
	Enabled:            true,
	Confidence:         0.85,
	MaxResults:         50,
	Timeout:            20 * time.Second,
	Retries:            2,
	RequiresProxy:      true,
}

var (
	paStreetPattern     = regexp.MustCompile(`^([^,\d]+\d*[a-zA-Z]?),`)
	paPostalCityPattern = regexp.MustCompile(`(\d{5})\s+([A-Za-zÁÉÍÓÚáéíóúñÑ\s-]+)`)
)

// PaginasAmarillasScraper scrapes the Spanish Páginas Amarillas
// business directory.
type PaginasAmarillasScraper struct {
	baseURL   string
	searchURL string
	proxies   *proxy.Manager
	cfg       Config
	log       *zap.Logger
}

// PaginasAmarillasOption configures the scraper.
type PaginasAmarillasOption func(*PaginasAmarillasScraper)

// WithPaginasAmarillasURL overrides base and search URLs. Used in tests.
func WithPaginasAmarillasURL(base string) PaginasAmarillasOption {
	return func(s *PaginasAmarillasScraper) {
		s.baseURL = base
		s.searchURL = base + "/search"
	}
}

// NewPaginasAmarillasScraper creates the Páginas Amarillas scraper.
func NewPaginasAmarillasScraper(proxies *proxy.Manager, opts ...PaginasAmarillasOption) *PaginasAmarillasScraper {
	s := &PaginasAmarillasScraper{
		baseURL:   paginasAmarillasBaseURL,
		searchURL: paginasAmarillasSearchURL,
		proxies:   proxies,
		cfg:       paginasAmarillasConfig,
		log:       zap.L(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *PaginasAmarillasScraper) Config() Config {
	return s.cfg
}

// Search scrapes listing pages for the category in a Spanish city.
func (s *PaginasAmarillasScraper) Search(ctx context.Context, criteria model.SearchCriteria) ([]model.Lead, error) {
	if criteria.City == "" {
		return nil, nil
	}
	limit := criteria.MaxResults
	if limit <= 0 || limit > s.cfg.MaxResults {
		limit = s.cfg.MaxResults
	}

	const resultsPerPage = 20
	pages := (limit + resultsPerPage - 1) / resultsPerPage
	if pages > 3 {
		pages = 3
	}

	var leads []model.Lead
	for page := 1; page <= pages; page++ {
		if len(leads) >= limit {
			break
		}
		pageLeads, err := s.scrapePage(ctx, criteria, page)
		if err != nil {
			if len(leads) > 0 && !resilience.IsBlocked(err) {
				break
			}
			return leads, err
		}
		if len(pageLeads) == 0 {
			break
		}
		leads = append(leads, pageLeads...)
	}

	if len(leads) > limit {
		leads = leads[:limit]
	}
	return leads, nil
}

func (s *PaginasAmarillasScraper) pageURL(query, city string, page int) string {
	params := url.Values{}
	params.Set("what", strings.ToLower(query))
	params.Set("where", city)
	if page > 1 {
		params.Set("page", strconv.Itoa(page))
	}
	return s.searchURL + "/?" + params.Encode()
}

func (s *PaginasAmarillasScraper) scrapePage(ctx context.Context, criteria model.SearchCriteria, page int) ([]model.Lead, error) {
	proxyURL := ""
	if s.proxies != nil {
		proxyURL = s.proxies.Get()
	}
	client := httpClientFor(s.cfg.Timeout, proxyURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.pageURL(criteria.Query, criteria.City, page), nil)
	if err != nil {
		return nil, eris.Wrap(err, "paginas_amarillas: create request")
	}
	req.Header.Set("User-Agent", scraperUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "es-ES,es;q=0.9,en;q=0.8")

	started := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		if s.proxies != nil && proxyURL != "" {
			s.proxies.ReportFailure(proxyURL)
		}
		return nil, eris.Wrap(err, "paginas_amarillas: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		s.log.Warn("directory blocked request",
			zap.String("source", s.cfg.Name),
			zap.Int("status", resp.StatusCode),
		)
		if s.proxies != nil && proxyURL != "" {
			s.proxies.ReportBlocked(proxyURL)
		}
		return nil, &resilience.BlockedError{Source: s.cfg.Name, StatusCode: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("paginas_amarillas: unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "paginas_amarillas: parse response")
	}

	if s.proxies != nil && proxyURL != "" {
		s.proxies.ReportSuccess(proxyURL, time.Since(started))
	}
	return s.parseListings(doc, criteria), nil
}

func (s *PaginasAmarillasScraper) parseListings(doc *goquery.Document, criteria model.SearchCriteria) []model.Lead {
	var leads []model.Lead

	for _, selector := range []string{"div.listado-item", "article.comercial-item", "li.central"} {
		items := doc.Find(selector)
		if items.Length() == 0 {
			continue
		}
		items.Each(func(_ int, sel *goquery.Selection) {
			if lead, ok := s.parseListing(sel, criteria); ok {
				leads = append(leads, lead)
			}
		})
		break
	}
	return leads
}

func (s *PaginasAmarillasScraper) parseListing(sel *goquery.Selection, criteria model.SearchCriteria) (model.Lead, bool) {
	name := firstText(sel, "h2 a", "h2", ".comercial-nombre", "[itemprop='name']")
	if name == "" {
		return model.Lead{}, false
	}

	phone := s.parsePhone(sel)
	website := firstAttr(sel, "href", "a.web", "a[itemprop='url']")
	if strings.Contains(website, "paginasamarillas.es") {
		website = ""
	}

	address, postalCode, city := s.parseAddress(sel)
	if city == "" {
		city = criteria.City
	}
	category := firstText(sel, ".comercial-actividad", ".sector")
	if category == "" {
		category = criteria.Query
	}

	lead := model.Lead{
		Name:           name,
		Phone:          phone,
		Website:        website,
		Address:        address,
		City:           city,
		Region:         criteria.City,
		Country:        "ES",
		PostalCode:     postalCode,
		Category:       category,
		Source:         s.cfg.Name,
		SourcePriority: s.cfg.Priority,
		FetchedAt:      time.Now().UTC(),
	}
	lead.AddSource(s.cfg.Name)
	return lead, true
}

func (s *PaginasAmarillasScraper) parsePhone(sel *goquery.Selection) string {
	phoneSel := sel.Find("a[href^='tel:']").First()
	phone := ""
	if href, ok := phoneSel.Attr("href"); ok && strings.HasPrefix(href, "tel:") {
		phone = strings.TrimSpace(strings.TrimPrefix(href, "tel:"))
	} else {
		phone = whitespacePattern.ReplaceAllString(
			strings.TrimSpace(firstText(sel, "[itemprop='telephone']", ".telephone")), "")
	}
	if phone != "" && !strings.HasPrefix(phone, "+") && !strings.HasPrefix(phone, "00") {
		phone = "+34" + strings.TrimLeft(phone, "0")
	}
	return phone
}

func (s *PaginasAmarillasScraper) parseAddress(sel *goquery.Selection) (address, postalCode, city string) {
	text := firstText(sel, "[itemprop='address']", ".direccion", "address")
	if text == "" {
		return "", "", ""
	}
	if m := paStreetPattern.FindStringSubmatch(text); m != nil {
		address = strings.TrimSpace(m[1])
	}
	if m := paPostalCityPattern.FindStringSubmatch(text); m != nil {
		postalCode = m[1]
		city = strings.TrimSpace(m[2])
	}
	return address, postalCode, city
}

// Enrich searches the directory for the business by name and city and
// returns the closest match.
func (s *PaginasAmarillasScraper) Enrich(ctx context.Context, lead model.Lead) (*model.Lead, error) {
	if lead.Name == "" || lead.City == "" {
		return nil, nil
	}

	results, err := s.Search(ctx, model.SearchCriteria{
		Query:      lead.Name,
		City:       lead.City,
		Country:    "ES",
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

// HealthCheck fetches the directory landing page.
func (s *PaginasAmarillasScraper) HealthCheck(ctx context.Context) error {
	return scraperHealthCheck(ctx, s.baseURL, s.proxies)
}
