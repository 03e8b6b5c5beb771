package source

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/leadforge/leadgen-cli/internal/extract"
	"github.com/leadforge/leadgen-cli/internal/model"
)

// contactURLPatterns are the paths probed for contact details, covering
// Italian, German, French and English site conventions.
var contactURLPatterns = []string{
	"/contact",
	"/contatti",
	"/contact-us",
	"/chi-siamo",
	"/about",
	"/about-us",
	"/impressum",
	"/legal",
	"/kontakt",
}

var addressPattern = regexp.MustCompile(`(?i)(?:via|piazza|viale|corso|strada)\s+[^,\n]{5,50}(?:,\s*\d{5})?`)

var websiteCrawlerConfig = Config{
	Name:               "official_website",
	Type:               TypeEnrichment,
	Priority:           100,
	RateLimit:          2.0,
	RequiresAPIKey:     false,
	SupportedCountries: []string{"*"},
	Enabled:            true,
	Confidence:         0.95,
	MaxResults:         1,
	Timeout:            15 * time.Second,
	Retries:            2,
	RequiresProxy:      false,
}

// WebsiteCrawler visits a lead's own website and pulls contact details
// from its public contact pages. Enrichment only; it never discovers
// new businesses.
type WebsiteCrawler struct {
	http     *http.Client
	phones   *extract.PhoneExtractor
	emails   *extract.EmailExtractor
	maxPages int
	cfg      Config
}

// WebsiteCrawlerOption configures the crawler.
type WebsiteCrawlerOption func(*WebsiteCrawler)

// WithCrawlerHTTPClient overrides the default HTTP client.
func WithCrawlerHTTPClient(hc *http.Client) WebsiteCrawlerOption {
	return func(c *WebsiteCrawler) {
		c.http = hc
	}
}

// WithCrawlerMaxPages caps how many contact pages are fetched per site.
func WithCrawlerMaxPages(n int) WebsiteCrawlerOption {
	return func(c *WebsiteCrawler) {
		c.maxPages = n
	}
}

// NewWebsiteCrawler creates the official-site crawler. The default
// phone region matches the primary market.
func NewWebsiteCrawler(defaultRegion string, opts ...WebsiteCrawlerOption) *WebsiteCrawler {
	c := &WebsiteCrawler{
		http: &http.Client{
			Timeout: websiteCrawlerConfig.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		phones:   extract.NewPhoneExtractor(defaultRegion),
		emails:   &extract.EmailExtractor{},
		maxPages: 3,
		cfg:      websiteCrawlerConfig,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *WebsiteCrawler) Config() Config {
	return c.cfg
}

// Search is not supported; the crawler only enriches existing leads.
func (c *WebsiteCrawler) Search(_ context.Context, _ model.SearchCriteria) ([]model.Lead, error) {
	return nil, nil
}

// Enrich crawls the lead's website contact pages and fills in missing
// phone, email and address. Returns nil, nil when the site yields
// nothing usable.
func (c *WebsiteCrawler) Enrich(ctx context.Context, lead model.Lead) (*model.Lead, error) {
	if lead.Website == "" || lead.Name == "" {
		return nil, nil
	}

	baseURL, ok := extract.NormalizeURL(lead.Website)
	if !ok {
		return nil, nil
	}
	domain := extract.Domain(baseURL)

	found := struct {
		phone   string
		email   string
		address string
	}{}

	pagesCrawled := 0
	for _, pattern := range contactURLPatterns {
		if pagesCrawled >= c.maxPages {
			break
		}
		if found.phone != "" && found.email != "" && found.address != "" {
			break
		}

		html, err := c.fetch(ctx, strings.TrimSuffix(baseURL, "/")+pattern)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		pagesCrawled++

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			continue
		}
		text := doc.Text()

		if found.phone == "" {
			if phones := c.phones.ExtractFromText(text); len(phones) > 0 {
				found.phone = phones[0]
			}
		}
		if found.email == "" {
			found.email = c.emails.ExtractBest(html, domain, lead.Name)
		}
		if found.address == "" {
			if m := addressPattern.FindString(text); m != "" {
				found.address = strings.TrimSpace(m)
			}
		}
	}

	if found.phone == "" && found.email == "" && found.address == "" {
		return nil, nil
	}

	enriched := lead
	enriched.Website = baseURL
	enriched.Source = c.cfg.Name
	enriched.SourcePriority = c.cfg.Priority
	enriched.FetchedAt = time.Now().UTC()
	if found.phone != "" {
		enriched.Phone = found.phone
	}
	if found.email != "" {
		enriched.Email = found.email
	}
	if found.address != "" {
		enriched.Address = found.address
	}
	enriched.AddSource(c.cfg.Name)
	return &enriched, nil
}

func (c *WebsiteCrawler) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", eris.Wrap(err, "official_website: create request")
	}
	req.Header.Set("User-Agent", scraperUserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "official_website: fetch page")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("official_website: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", eris.Wrap(err, "official_website: read page")
	}
	return string(body), nil
}

// HealthCheck always succeeds; the crawler has no fixed upstream.
func (c *WebsiteCrawler) HealthCheck(_ context.Context) error {
	return nil
}
