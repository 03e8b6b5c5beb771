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
	pagineGialleBaseURL   = "https://www.paginegialle.it"
	pagineGialleSearchURL = "https://www.paginegialle.it/ricerca"
)

var pagineGialleConfig = Config{
	Name:               "pagine_gialle",
	Type:               TypeDirectory,
	Priority:           4,
	RateLimit:          1.0,
	RequiresAPIKey:     false,
	SupportedCountries: []string{"IT"},
	Enabled:            true,
	Confidence:         0.8,
	MaxResults:         50,
	Timeout:            20 * time.Second,
	Retries:            2,
	RequiresProxy:      true,
}

const scraperUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

var nonPhoneChars = regexp.MustCompile(`[^\d+]`)

// PagineGialleScraper scrapes the Italian Pagine Gialle business
// directory. Rich listings for Italy; proxy-backed to avoid blocks.
type PagineGialleScraper struct {
	baseURL   string
	searchURL string
	proxies   *proxy.Manager
	cfg       Config
	log       *zap.Logger
}

// PagineGialleOption configures the scraper.
type PagineGialleOption func(*PagineGialleScraper)

// WithPagineGialleURL overrides base and search URLs. Used in tests.
func WithPagineGialleURL(base string) PagineGialleOption {
	return func(s *PagineGialleScraper) {
		s.baseURL = base
		s.searchURL = base + "/ricerca"
	}
}

// NewPagineGialleScraper creates the Pagine Gialle scraper.
func NewPagineGialleScraper(proxies *proxy.Manager, opts ...PagineGialleOption) *PagineGialleScraper {
	s := &PagineGialleScraper{
		baseURL:   pagineGialleBaseURL,
		searchURL: pagineGialleSearchURL,
		proxies:   proxies,
		cfg:       pagineGialleConfig,
		log:       zap.L(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *PagineGialleScraper) Config() Config {
	return s.cfg
}

// Search scrapes listing pages for the category in a city. A city is
// required; the directory has no nationwide result view.
func (s *PagineGialleScraper) Search(ctx context.Context, criteria model.SearchCriteria) ([]model.Lead, error) {
	if criteria.City == "" {
		return nil, nil
	}
	limit := criteria.MaxResults
	if limit <= 0 || limit > s.cfg.MaxResults {
		limit = s.cfg.MaxResults
	}

	const resultsPerPage = 25
	pages := (limit + resultsPerPage - 1) / resultsPerPage
	if pages > 2 {
		pages = 2
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

func (s *PagineGialleScraper) pageURL(query, city string, page int) string {
	q := url.QueryEscape(strings.ToLower(query))
	c := url.QueryEscape(strings.ToLower(city))
	if page == 1 {
		return s.searchURL + "/" + q + "/" + c
	}
	return s.searchURL + "/" + q + "/" + c + "/p-" + strconv.Itoa(page)
}

func (s *PagineGialleScraper) scrapePage(ctx context.Context, criteria model.SearchCriteria, page int) ([]model.Lead, error) {
	proxyURL := ""
	if s.proxies != nil {
		proxyURL = s.proxies.Get()
	}
	client := httpClientFor(s.cfg.Timeout, proxyURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.pageURL(criteria.Query, criteria.City, page), nil)
	if err != nil {
		return nil, eris.Wrap(err, "pagine_gialle: create request")
	}
	req.Header.Set("User-Agent", scraperUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "it-IT,it;q=0.9,en;q=0.8")

	started := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		if s.proxies != nil && proxyURL != "" {
			s.proxies.ReportFailure(proxyURL)
		}
		return nil, eris.Wrap(err, "pagine_gialle: send request")
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
		return nil, eris.Errorf("pagine_gialle: unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "pagine_gialle: parse response")
	}

	if s.proxies != nil && proxyURL != "" {
		s.proxies.ReportSuccess(proxyURL, time.Since(started))
	}
	return s.parseListings(doc, criteria), nil
}

func (s *PagineGialleScraper) parseListings(doc *goquery.Document, criteria model.SearchCriteria) []model.Lead {
	var leads []model.Lead

	selectors := []string{
		"div.vcard",
		"article.listing-item",
		"div[itemtype='http://schema.org/LocalBusiness']",
	}
	for _, selector := range selectors {
		listings := doc.Find(selector)
		if listings.Length() == 0 {
			continue
		}
		listings.Each(func(_ int, sel *goquery.Selection) {
			if lead, ok := s.parseListing(sel, criteria); ok {
				leads = append(leads, lead)
			}
		})
		break
	}
	return leads
}

func (s *PagineGialleScraper) parseListing(sel *goquery.Selection, criteria model.SearchCriteria) (model.Lead, bool) {
	name := firstText(sel, "h2.org", "span.fn", "[itemprop='name']", "a.listing-name")
	if name == "" {
		return model.Lead{}, false
	}

	phone := firstText(sel, "span.tel", "[itemprop='telephone']", "a[href^='tel:']")
	if phone != "" {
		phone = nonPhoneChars.ReplaceAllString(phone, "")
	}

	website := firstAttr(sel, "href", "a.url", "[itemprop='url']")
	if strings.Contains(website, "paginegialle.it") {
		website = ""
	}

	city := firstText(sel, "span.locality", "[itemprop='addressLocality']")
	if city == "" {
		city = criteria.City
	}
	category := firstText(sel, "span.category")
	if category == "" {
		category = criteria.Query
	}

	lead := model.Lead{
		Name:           name,
		Phone:          phone,
		Website:        website,
		Address:        firstText(sel, "div.street-address", "[itemprop='streetAddress']"),
		City:           city,
		Region:         criteria.City,
		Country:        "IT",
		PostalCode:     firstText(sel, "span.postal-code", "[itemprop='postalCode']"),
		Category:       category,
		Source:         s.cfg.Name,
		SourcePriority: s.cfg.Priority,
		FetchedAt:      time.Now().UTC(),
	}
	lead.AddSource(s.cfg.Name)
	return lead, true
}

// Enrich searches the directory for the business by name and city and
// returns the closest match.
func (s *PagineGialleScraper) Enrich(ctx context.Context, lead model.Lead) (*model.Lead, error) {
	if lead.Name == "" || lead.City == "" {
		return nil, nil
	}

	results, err := s.Search(ctx, model.SearchCriteria{
		Query:      lead.Name,
		City:       lead.City,
		Country:    "IT",
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
func (s *PagineGialleScraper) HealthCheck(ctx context.Context) error {
	return scraperHealthCheck(ctx, s.baseURL, s.proxies)
}
