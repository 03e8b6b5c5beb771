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
	gelbeSeitenBaseURL   = "https://www.gelbeseiten.de"
	gelbeSeitenSearchURL = "https://www.gelbeseiten.de/suche"
)

var gelbeSeitenConfig = Config{
	Name:               "gelbe_seiten",
	Type:               TypeDirectory,
	Priority:           4,
	RateLimit:          1.0,
	RequiresAPIKey:     false,
	SupportedCountries: []string{"DE"},
	Enabled:            true,
	Confidence:         0.85,
	MaxResults:         500,
	Timeout:            120 * time.Second,
	Retries:            2,
	RequiresProxy:      true,
}

var (
	gsStreetPattern  = regexp.MustCompile(`^([^,]+),`)
	gsPLZCityPattern = regexp.MustCompile(`(\d{5})\s+([A-Za-zäöüÄÖÜß\s-]+)`)
	gsDistrictPattern = regexp.MustCompile(`\(([^)]+)\)`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// GelbeSeitenScraper scrapes the German Gelbe Seiten business
// directory. One of the most complete directories for Germany;
// proxy-backed to avoid blocks.
type GelbeSeitenScraper struct {
	baseURL   string
	searchURL string
	proxies   *proxy.Manager
	cfg       Config
	log       *zap.Logger
}

// GelbeSeitenOption configures the scraper.
type GelbeSeitenOption func(*GelbeSeitenScraper)

// WithGelbeSeitenURL overrides base and search URLs. Used in tests.
func WithGelbeSeitenURL(base string) GelbeSeitenOption {
	return func(s *GelbeSeitenScraper) {
		s.baseURL = base
		s.searchURL = base + "/suche"
	}
}

// NewGelbeSeitenScraper creates the Gelbe Seiten scraper.
func NewGelbeSeitenScraper(proxies *proxy.Manager, opts ...GelbeSeitenOption) *GelbeSeitenScraper {
	s := &GelbeSeitenScraper{
		baseURL:   gelbeSeitenBaseURL,
		searchURL: gelbeSeitenSearchURL,
		proxies:   proxies,
		cfg:       gelbeSeitenConfig,
		log:       zap.L(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *GelbeSeitenScraper) Config() Config {
	return s.cfg
}

// Search scrapes listing pages for the category in a German city.
func (s *GelbeSeitenScraper) Search(ctx context.Context, criteria model.SearchCriteria) ([]model.Lead, error) {
	if criteria.City == "" {
		return nil, nil
	}
	limit := criteria.MaxResults
	if limit <= 0 || limit > s.cfg.MaxResults {
		limit = s.cfg.MaxResults
	}

	const resultsPerPage = 20
	pages := (limit + resultsPerPage - 1) / resultsPerPage
	if pages > 25 {
		pages = 25
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

func (s *GelbeSeitenScraper) pageURL(query, city string, page int) string {
	q := url.QueryEscape(strings.ToLower(query))
	c := url.QueryEscape(city)
	if page == 1 {
		return s.searchURL + "/" + q + "/" + c
	}
	return s.searchURL + "/" + q + "/" + c + "/s" + strconv.Itoa(page)
}

func (s *GelbeSeitenScraper) scrapePage(ctx context.Context, criteria model.SearchCriteria, page int) ([]model.Lead, error) {
	proxyURL := ""
	if s.proxies != nil {
		proxyURL = s.proxies.Get()
	}
	client := httpClientFor(s.cfg.Timeout, proxyURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.pageURL(criteria.Query, criteria.City, page), nil)
	if err != nil {
		return nil, eris.Wrap(err, "gelbe_seiten: create request")
	}
	req.Header.Set("User-Agent", scraperUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "de-DE,de;q=0.9,en;q=0.8")

	started := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		if s.proxies != nil && proxyURL != "" {
			s.proxies.ReportFailure(proxyURL)
		}
		return nil, eris.Wrap(err, "gelbe_seiten: send request")
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
		return nil, eris.Errorf("gelbe_seiten: unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "gelbe_seiten: parse response")
	}

	if s.proxies != nil && proxyURL != "" {
		s.proxies.ReportSuccess(proxyURL, time.Since(started))
	}
	return s.parseListings(doc, criteria), nil
}

func (s *GelbeSeitenScraper) parseListings(doc *goquery.Document, criteria model.SearchCriteria) []model.Lead {
	var leads []model.Lead

	doc.Find("article.mod-Treffer, div.mod-Treffer").Each(func(_ int, sel *goquery.Selection) {
		if class, _ := sel.Attr("class"); strings.Contains(class, "mod-TrefferlisteInfo") {
			return
		}
		if lead, ok := s.parseListing(sel, criteria); ok {
			leads = append(leads, lead)
		}
	})
	return leads
}

func (s *GelbeSeitenScraper) parseListing(sel *goquery.Selection, criteria model.SearchCriteria) (model.Lead, bool) {
	name := firstText(sel, ".mod-Treffer__name h2", ".mod-Treffer__name", "h2")
	if name == "" {
		return model.Lead{}, false
	}

	phone := s.parsePhone(sel)
	website := firstAttr(sel, "href", ".mod-WebseiteKompakt a", "a[data-rolle='webseite']")
	if strings.Contains(website, "gelbeseiten.de") {
		website = ""
	}

	address, postalCode, city, district := s.parseAddress(sel)
	if city == "" {
		city = criteria.City
	}
	region := district
	if region == "" {
		region = criteria.City
	}
	category := firstText(sel, ".mod-Treffer--besteBranche")
	if category == "" {
		category = criteria.Query
	}

	lead := model.Lead{
		Name:           name,
		Phone:          phone,
		Website:        website,
		Address:        address,
		City:           city,
		Region:         region,
		Country:        "DE",
		PostalCode:     postalCode,
		Category:       category,
		Source:         s.cfg.Name,
		SourcePriority: s.cfg.Priority,
		FetchedAt:      time.Now().UTC(),
	}
	lead.AddSource(s.cfg.Name)
	return lead, true
}

func (s *GelbeSeitenScraper) parsePhone(sel *goquery.Selection) string {
	phoneSel := sel.Find(".mod-TelefonnummerKompakt a, a[href^='tel:']").First()
	phone := ""
	if href, ok := phoneSel.Attr("href"); ok && strings.HasPrefix(href, "tel:") {
		phone = strings.TrimSpace(strings.TrimPrefix(href, "tel:"))
	} else {
		phone = whitespacePattern.ReplaceAllString(
			strings.TrimSpace(firstText(sel, ".mod-TelefonnummerKompakt")), "")
	}
	if phone != "" && !strings.HasPrefix(phone, "+") && !strings.HasPrefix(phone, "00") {
		phone = "+49" + strings.TrimLeft(phone, "0")
	}
	return phone
}

func (s *GelbeSeitenScraper) parseAddress(sel *goquery.Selection) (address, postalCode, city, district string) {
	text := sel.Find(".mod-AdresseKompakt").First().Text()
	if text == "" {
		return "", "", "", ""
	}
	if m := gsStreetPattern.FindStringSubmatch(text); m != nil {
		address = strings.TrimSpace(m[1])
	}
	if m := gsPLZCityPattern.FindStringSubmatch(text); m != nil {
		postalCode = m[1]
		city = strings.TrimSpace(m[2])
	}
	if m := gsDistrictPattern.FindStringSubmatch(text); m != nil {
		district = m[1]
	}
	return address, postalCode, city, district
}

// Enrich searches the directory for the business by name and city and
// returns the closest match.
func (s *GelbeSeitenScraper) Enrich(ctx context.Context, lead model.Lead) (*model.Lead, error) {
	if lead.Name == "" || lead.City == "" {
		return nil, nil
	}

	results, err := s.Search(ctx, model.SearchCriteria{
		Query:      lead.Name,
		City:       lead.City,
		Country:    "DE",
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
func (s *GelbeSeitenScraper) HealthCheck(ctx context.Context) error {
	return scraperHealthCheck(ctx, s.baseURL, s.proxies)
}
