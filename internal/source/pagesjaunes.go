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
	pagesJaunesBaseURL   = "https://www.pagesjaunes.fr"
	pagesJaunesSearchURL = "https://www.pagesjaunes.fr/annuaire/chercherlespros"
)

var pagesJaunesConfig = Config{
	Name:               "pages_jaunes",
	Type:               TypeDirectory,
	Priority:           4,
	RateLimit:          1.0,
	RequiresAPIKey:     false,
	SupportedCountries: []string{"FR"},
	Enabled:            true,
	Confidence:         0.85,
	MaxResults:         50,
	Timeout:            20 * time.Second,
	Retries:            2,
	RequiresProxy:      true,
}

// French postal codes are five digits.
var pjPostalCityPattern = regexp.MustCompile(`(\d{5})\s+([A-Za-zàâäéèêëîïôöùûüç\s-]+)`)

// PagesJaunesScraper scrapes pagesjaunes.fr, the main business
// directory for France. Proxy-backed to avoid blocks.
type PagesJaunesScraper struct {
	baseURL   string
	searchURL string
	proxies   *proxy.Manager
	cfg       Config
	log       *zap.Logger
}

// PagesJaunesOption configures the scraper.
type PagesJaunesOption func(*PagesJaunesScraper)

// WithPagesJaunesURL overrides base and search URLs. Used in tests.
func WithPagesJaunesURL(base string) PagesJaunesOption {
	return func(s *PagesJaunesScraper) {
		s.baseURL = base
		s.searchURL = base + "/annuaire/chercherlespros"
	}
}

// NewPagesJaunesScraper creates the Pages Jaunes scraper.
func NewPagesJaunesScraper(proxies *proxy.Manager, opts ...PagesJaunesOption) *PagesJaunesScraper {
	s := &PagesJaunesScraper{
		baseURL:   pagesJaunesBaseURL,
		searchURL: pagesJaunesSearchURL,
		proxies:   proxies,
		cfg:       pagesJaunesConfig,
		log:       zap.L(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *PagesJaunesScraper) Config() Config {
	return s.cfg
}

// Search scrapes listing pages for the category in a French city. An
// empty city returns nothing.
func (s *PagesJaunesScraper) Search(ctx context.Context, criteria model.SearchCriteria) ([]model.Lead, error) {
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

func (s *PagesJaunesScraper) pageURL(query, city string, page int) string {
	u := s.searchURL + "?quoiqui=" + url.QueryEscape(strings.ToLower(query)) +
		"&ou=" + url.QueryEscape(city)
	if page > 1 {
		u += "&page=" + strconv.Itoa(page)
	}
	return u
}

func (s *PagesJaunesScraper) scrapePage(ctx context.Context, criteria model.SearchCriteria, page int) ([]model.Lead, error) {
	proxyURL := ""
	if s.proxies != nil {
		proxyURL = s.proxies.Get()
	}
	client := httpClientFor(s.cfg.Timeout, proxyURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.pageURL(criteria.Query, criteria.City, page), nil)
	if err != nil {
		return nil, eris.Wrap(err, "pages_jaunes: create request")
	}
	req.Header.Set("User-Agent", scraperUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "fr-FR,fr;q=0.9,en;q=0.8")

	started := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		if s.proxies != nil && proxyURL != "" {
			s.proxies.ReportFailure(proxyURL)
		}
		return nil, eris.Wrap(err, "pages_jaunes: send request")
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
		return nil, eris.Errorf("pages_jaunes: unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "pages_jaunes: parse response")
	}

	if s.proxies != nil && proxyURL != "" {
		s.proxies.ReportSuccess(proxyURL, time.Since(started))
	}
	return s.parseListings(doc, criteria), nil
}

func (s *PagesJaunesScraper) parseListings(doc *goquery.Document, criteria model.SearchCriteria) []model.Lead {
	var leads []model.Lead

	doc.Find("li.bi-bloc, article.bi, section.bi").Each(func(_ int, sel *goquery.Selection) {
		if lead, ok := s.parseListing(sel, criteria); ok {
			leads = append(leads, lead)
		}
	})
	return leads
}

func (s *PagesJaunesScraper) parseListing(sel *goquery.Selection, criteria model.SearchCriteria) (model.Lead, bool) {
	name := firstText(sel, ".bi-denomination h3", ".bi-denomination", "h3 a", "h3")
	if name == "" {
		return model.Lead{}, false
	}

	phone := s.parsePhone(sel)
	website := firstAttr(sel, "href", "a.bi-site-internet", "a[title='Site internet']")
	if strings.Contains(website, "pagesjaunes.fr") {
		website = ""
	}

	address, postalCode, city := s.parseAddress(sel)
	if city == "" {
		city = criteria.City
	}
	category := firstText(sel, ".bi-activites", ".bi-activite")
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
		Country:        "FR",
		PostalCode:     postalCode,
		Category:       category,
		Source:         s.cfg.Name,
		SourcePriority: s.cfg.Priority,
		FetchedAt:      time.Now().UTC(),
	}
	lead.AddSource(s.cfg.Name)
	return lead, true
}

func (s *PagesJaunesScraper) parsePhone(sel *goquery.Selection) string {
	phoneSel := sel.Find("a[href^='tel:'], .bi-numero, .coord-numero").First()
	phone := ""
	if href, ok := phoneSel.Attr("href"); ok && strings.HasPrefix(href, "tel:") {
		phone = strings.TrimSpace(strings.TrimPrefix(href, "tel:"))
	} else {
		phone = whitespacePattern.ReplaceAllString(strings.TrimSpace(phoneSel.Text()), "")
	}
	if phone != "" && !strings.HasPrefix(phone, "+") && !strings.HasPrefix(phone, "00") {
		phone = "+33" + strings.TrimLeft(phone, "0")
	}
	return phone
}

func (s *PagesJaunesScraper) parseAddress(sel *goquery.Selection) (address, postalCode, city string) {
	text := sel.Find(".bi-adresse, address").First().Text()
	if text == "" {
		return "", "", ""
	}
	if m := pjPostalCityPattern.FindStringSubmatch(text); m != nil {
		postalCode = m[1]
		city = strings.TrimSpace(m[2])
		if before := strings.TrimSpace(strings.Split(text, m[0])[0]); before != "" {
			address = strings.TrimSuffix(before, ",")
			address = strings.TrimSpace(address)
		}
	} else {
		address = strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
	}
	return address, postalCode, city
}

// Enrich searches the directory for the business by name and city and
// returns the closest match.
func (s *PagesJaunesScraper) Enrich(ctx context.Context, lead model.Lead) (*model.Lead, error) {
	if lead.Name == "" || lead.City == "" {
		return nil, nil
	}

	results, err := s.Search(ctx, model.SearchCriteria{
		Query:      lead.Name,
		City:       lead.City,
		Country:    "FR",
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
func (s *PagesJaunesScraper) HealthCheck(ctx context.Context) error {
	return scraperHealthCheck(ctx, s.baseURL, s.proxies)
}
