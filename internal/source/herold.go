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
	heroldBaseURL   = "https://www.herold.at"
	heroldSearchURL = "https://www.herold.at/gelbe-seiten/"
)

var heroldConfig = Config{
	Name:               "herold_at",
	Type:               TypeDirectory,
	Priority:           4,
	RateLimit:          1.0,
	RequiresAPIKey:     false,
	SupportedCountries: []string{"AT"},
	Enabled:            true,
	Confidence:         0.85,
	MaxResults:         50,
	Timeout:            20 * time.Second,
	Retries:            2,
	RequiresProxy:      true,
}

var (
	heroldStreetPattern  = regexp.MustCompile(`^([^,\d]+\d*[a-zA-Z]?),`)
	heroldPLZCityPattern = regexp.MustCompile(`(\d{4})\s+([A-Za-zäöüÄÖÜß\s-]+)`)
)

// HeroldScraper scrapes herold.at, the leading business directory for
// Austria. Proxy-backed to avoid blocks.
type HeroldScraper struct {
	baseURL   string
	searchURL string
	proxies   *proxy.Manager
	cfg       Config
	log       *zap.Logger
}

// HeroldOption configures the scraper.
type HeroldOption func(*HeroldScraper)

// WithHeroldURL overrides base and search URLs. Used in tests.
func WithHeroldURL(base string) HeroldOption {
	return func(s *HeroldScraper) {
		s.baseURL = base
		s.searchURL = base + "/gelbe-seiten/"
	}
}

// NewHeroldScraper creates the Herold scraper.
func NewHeroldScraper(proxies *proxy.Manager, opts ...HeroldOption) *HeroldScraper {
	s := &HeroldScraper{
		baseURL:   heroldBaseURL,
		searchURL: heroldSearchURL,
		proxies:   proxies,
		cfg:       heroldConfig,
		log:       zap.L(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *HeroldScraper) Config() Config {
	return s.cfg
}

// Search scrapes listing pages for the category in an Austrian city.
// Herold needs a city to search, so an empty city returns nothing.
func (s *HeroldScraper) Search(ctx context.Context, criteria model.SearchCriteria) ([]model.Lead, error) {
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

func (s *HeroldScraper) pageURL(query, city string, page int) string {
	u := s.searchURL + "?what=" + url.QueryEscape(strings.ToLower(query)) +
		"&where=" + url.QueryEscape(city)
	if page > 1 {
		u += "&page=" + strconv.Itoa(page)
	}
	return u
}

func (s *HeroldScraper) scrapePage(ctx context.Context, criteria model.SearchCriteria, page int) ([]model.Lead, error) {
	proxyURL := ""
	if s.proxies != nil {
		proxyURL = s.proxies.Get()
	}
	client := httpClientFor(s.cfg.Timeout, proxyURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.pageURL(criteria.Query, criteria.City, page), nil)
	if err != nil {
		return nil, eris.Wrap(err, "herold_at: create request")
	}
	req.Header.Set("User-Agent", scraperUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "de-AT,de;q=0.9,en;q=0.8")

	started := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		if s.proxies != nil && proxyURL != "" {
			s.proxies.ReportFailure(proxyURL)
		}
		return nil, eris.Wrap(err, "herold_at: send request")
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
		return nil, eris.Errorf("herold_at: unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "herold_at: parse response")
	}

	if s.proxies != nil && proxyURL != "" {
		s.proxies.ReportSuccess(proxyURL, time.Since(started))
	}
	return s.parseListings(doc, criteria), nil
}

func (s *HeroldScraper) parseListings(doc *goquery.Document, criteria model.SearchCriteria) []model.Lead {
	var leads []model.Lead

	// Herold has shipped several listing markups over time.
	for _, selector := range []string{
		"article.result-item",
		"div.result-item",
		"[data-result-item]",
		"li.result",
	} {
		sel := doc.Find(selector)
		if sel.Length() == 0 {
			continue
		}
		sel.Each(func(_ int, listing *goquery.Selection) {
			if lead, ok := s.parseListing(listing, criteria); ok {
				leads = append(leads, lead)
			}
		})
		break
	}
	return leads
}

func (s *HeroldScraper) parseListing(sel *goquery.Selection, criteria model.SearchCriteria) (model.Lead, bool) {
	name := firstText(sel, "h2 a", "h2", ".company-name", "[itemprop='name']")
	if name == "" {
		return model.Lead{}, false
	}

	phone := s.parsePhone(sel)
	website := firstAttr(sel, "href", "a.website-link", "[itemprop='url']")
	if strings.Contains(website, "herold.at") {
		website = ""
	}

	address, postalCode, city := s.parseAddress(sel)
	if city == "" {
		city = criteria.City
	}
	category := firstText(sel, ".category", ".branch")
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
		Country:        "AT",
		PostalCode:     postalCode,
		Category:       category,
		Source:         s.cfg.Name,
		SourcePriority: s.cfg.Priority,
		FetchedAt:      time.Now().UTC(),
	}
	lead.AddSource(s.cfg.Name)
	return lead, true
}

func (s *HeroldScraper) parsePhone(sel *goquery.Selection) string {
	phoneSel := sel.Find("a[href^='tel:'], [itemprop='telephone'], .phone").First()
	phone := ""
	if href, ok := phoneSel.Attr("href"); ok && strings.HasPrefix(href, "tel:") {
		phone = strings.TrimSpace(strings.TrimPrefix(href, "tel:"))
	} else {
		phone = whitespacePattern.ReplaceAllString(strings.TrimSpace(phoneSel.Text()), "")
	}
	if phone != "" && !strings.HasPrefix(phone, "+") && !strings.HasPrefix(phone, "00") {
		phone = "+43" + strings.TrimLeft(phone, "0")
	}
	return phone
}

func (s *HeroldScraper) parseAddress(sel *goquery.Selection) (address, postalCode, city string) {
	text := sel.Find("[itemprop='address'], .address, address").First().Text()
	if text == "" {
		return "", "", ""
	}
	if m := heroldStreetPattern.FindStringSubmatch(text); m != nil {
		address = strings.TrimSpace(m[1])
	}
	// Austrian postal codes are four digits.
	if m := heroldPLZCityPattern.FindStringSubmatch(text); m != nil {
		postalCode = m[1]
		city = strings.TrimSpace(m[2])
	}
	return address, postalCode, city
}

// Enrich searches the directory for the business by name and city and
// returns the closest match.
func (s *HeroldScraper) Enrich(ctx context.Context, lead model.Lead) (*model.Lead, error) {
	if lead.Name == "" || lead.City == "" {
		return nil, nil
	}

	results, err := s.Search(ctx, model.SearchCriteria{
		Query:      lead.Name,
		City:       lead.City,
		Country:    "AT",
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
func (s *HeroldScraper) HealthCheck(ctx context.Context) error {
	return scraperHealthCheck(ctx, s.baseURL, s.proxies)
}
