package source

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leadforge/leadgen-cli/internal/extract"
	"github.com/leadforge/leadgen-cli/internal/model"
	"github.com/leadforge/leadgen-cli/internal/proxy"
	"github.com/leadforge/leadgen-cli/internal/resilience"
)

const serpSearchURL = "https://www.google.com/search"

var serpConfig = Config{
	Name:               "google_serp",
	Type:               TypeScraper,
	Priority:           3,
	RateLimit:          0.5,
	RequiresAPIKey:     false,
	SupportedCountries: []string{"*"},
	Enabled:            true,
	Confidence:         0.6,
	MaxResults:         200,
	Timeout:            120 * time.Second,
	Retries:            2,
	RequiresProxy:      true,
}

var serpUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
}

// Domains that never represent the business itself.
var serpSkipDomains = []string{
	"google.com", "google.it", "gstatic.com", "googleapis.com",
	"youtube.com", "facebook.com", "twitter.com", "instagram.com",
	"linkedin.com", "wikipedia.org", "amazon.com", "amazon.it",
	"tripadvisor.com", "tripadvisor.it", "yelp.com",
	"paginegialle.it", "gelbeseiten.de",
}

// SerpScraper scrapes search engine result pages to discover business
// websites. Lowest-confidence search source; the official-site crawler
// fills in details afterwards. Requires proxy rotation.
type SerpScraper struct {
	searchURL string
	proxies   *proxy.Manager

	mu      sync.Mutex
	uaIndex int

	cfg Config
}

// SerpOption configures the scraper.
type SerpOption func(*SerpScraper)

// WithSerpURL overrides the search endpoint. Used in tests.
func WithSerpURL(url string) SerpOption {
	return func(s *SerpScraper) {
		s.searchURL = url
	}
}

// NewSerpScraper creates the SERP scraper. The proxy pool may be nil,
// in which case requests go out directly.
func NewSerpScraper(proxies *proxy.Manager, opts ...SerpOption) *SerpScraper {
	s := &SerpScraper{
		searchURL: serpSearchURL,
		proxies:   proxies,
		cfg:       serpConfig,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *SerpScraper) Config() Config {
	return s.cfg
}

func (s *SerpScraper) nextUserAgent() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ua := serpUserAgents[s.uaIndex]
	s.uaIndex = (s.uaIndex + 1) % len(serpUserAgents)
	return ua
}

// Search scrapes result pages for "query city" until the limit is
// reached or results run out.
func (s *SerpScraper) Search(ctx context.Context, criteria model.SearchCriteria) ([]model.Lead, error) {
	query := criteria.Query
	if criteria.City != "" {
		query = criteria.Query + " " + criteria.City
	}
	limit := criteria.MaxResults
	if limit <= 0 || limit > s.cfg.MaxResults {
		limit = s.cfg.MaxResults
	}

	const resultsPerPage = 10
	pages := (limit + resultsPerPage - 1) / resultsPerPage
	if pages > 20 {
		pages = 20
	}

	seen := make(map[string]struct{})
	var leads []model.Lead

	for page := 0; page < pages; page++ {
		if len(leads) >= limit {
			break
		}
		pageLeads, err := s.scrapePage(ctx, query, page*resultsPerPage, criteria, seen)
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

func (s *SerpScraper) scrapePage(ctx context.Context, query string, start int, criteria model.SearchCriteria, seen map[string]struct{}) ([]model.Lead, error) {
	lang := criteria.Language
	if lang == "" {
		lang = "it"
	}
	params := url.Values{
		"q":     {query},
		"start": {strconv.Itoa(start)},
		"num":   {"10"},
		"hl":    {lang},
		"gl":    {strings.ToLower(criteria.Country)},
	}

	proxyURL := ""
	if s.proxies != nil {
		proxyURL = s.proxies.Get()
	}
	client := httpClientFor(s.cfg.Timeout, proxyURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.searchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "google_serp: create request")
	}
	req.Header.Set("User-Agent", s.nextUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", lang+";q=0.9,en;q=0.8")

	started := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		if s.proxies != nil && proxyURL != "" {
			s.proxies.ReportFailure(proxyURL)
		}
		return nil, eris.Wrap(err, "google_serp: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "google_serp: parse response")
	}

	if resp.StatusCode == http.StatusTooManyRequests ||
		strings.Contains(strings.ToLower(doc.Text()), "captcha") {
		if s.proxies != nil && proxyURL != "" {
			s.proxies.ReportBlocked(proxyURL)
		}
		return nil, &resilience.BlockedError{Source: s.cfg.Name, StatusCode: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("google_serp: unexpected status %d", resp.StatusCode)
	}

	if s.proxies != nil && proxyURL != "" {
		s.proxies.ReportSuccess(proxyURL, time.Since(started))
	}
	return s.parseResults(doc, criteria, seen), nil
}

func (s *SerpScraper) parseResults(doc *goquery.Document, criteria model.SearchCriteria, seen map[string]struct{}) []model.Lead {
	var leads []model.Lead

	doc.Find("div.g, div[data-hveid]").Each(func(_ int, sel *goquery.Selection) {
		link := sel.Find("a[href^='http']").First()
		href, ok := link.Attr("href")
		if !ok || serpShouldSkip(href) {
			return
		}

		domain := extract.Domain(href)
		if domain == "" {
			return
		}
		if _, dup := seen[domain]; dup {
			return
		}
		seen[domain] = struct{}{}

		title := strings.TrimSpace(sel.Find("h3").First().Text())
		snippet := strings.TrimSpace(sel.Find("div[data-sncf]").First().Text())

		lead := model.Lead{
			Name:           serpCompanyName(title, domain),
			Website:        href,
			City:           criteria.City,
			Country:        criteria.Country,
			Category:       criteria.Query,
			Description:    snippet,
			Source:         s.cfg.Name,
			SourcePriority: s.cfg.Priority,
			FetchedAt:      time.Now().UTC(),
		}
		lead.AddSource(s.cfg.Name)
		leads = append(leads, lead)
	})

	return leads
}

func serpShouldSkip(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return true
	}
	host := strings.ToLower(parsed.Host)
	for _, skip := range serpSkipDomains {
		if strings.Contains(host, skip) {
			return true
		}
	}
	return strings.Contains(raw, "/url?") || strings.Contains(raw, "googleadservices")
}

var serpTitleSuffixes = []string{
	" - Home", " | Home",
	" - Homepage", " | Homepage",
	" - Official Site", " | Official Site",
	" - Sito Ufficiale", " | Sito Ufficiale",
}

func serpCompanyName(title, domain string) string {
	name := title
	for _, suffix := range serpTitleSuffixes {
		name = strings.TrimSuffix(name, suffix)
	}
	if name == "" || strings.EqualFold(name, domain) {
		base, _, _ := strings.Cut(strings.TrimPrefix(domain, "www."), ".")
		name = cases.Title(language.Und).String(base)
	}
	return strings.TrimSpace(name)
}

// Enrich is not supported; the official-site crawler handles website
// enrichment.
func (s *SerpScraper) Enrich(_ context.Context, _ model.Lead) (*model.Lead, error) {
	return nil, nil
}

// HealthCheck fetches the search engine landing page through the
// current proxy and checks for a captcha wall.
func (s *SerpScraper) HealthCheck(ctx context.Context) error {
	proxyURL := ""
	if s.proxies != nil {
		proxyURL = s.proxies.Get()
	}
	client := httpClientFor(10*time.Second, proxyURL)

	base := strings.TrimSuffix(s.searchURL, "/search")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base, nil)
	if err != nil {
		return eris.Wrap(err, "google_serp: create request")
	}
	req.Header.Set("User-Agent", s.nextUserAgent())

	resp, err := client.Do(req)
	if err != nil {
		return eris.Wrap(err, "google_serp: probe")
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("google_serp: status %d", resp.StatusCode)
	}
	return nil
}
