package source

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/leadforge/leadgen-cli/internal/proxy"
)

// httpClientFor builds an HTTP client for a connector request. When a
// proxy URL is given, requests route through it; an unparseable proxy
// URL falls back to a direct connection.
func httpClientFor(timeout time.Duration, proxyURL string) *http.Client {
	client := &http.Client{Timeout: timeout}
	if proxyURL == "" {
		return client
	}
	parsed, err := url.Parse(proxyURL)
	if err != nil {
		return client
	}
	client.Transport = &http.Transport{Proxy: http.ProxyURL(parsed)}
	return client
}

// firstText returns the trimmed text of the first selector that
// matches a non-empty element.
func firstText(sel *goquery.Selection, selectors ...string) string {
	for _, s := range selectors {
		if text := strings.TrimSpace(sel.Find(s).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// firstAttr returns the named attribute of the first selector that
// matches an element carrying it.
func firstAttr(sel *goquery.Selection, attr string, selectors ...string) string {
	for _, s := range selectors {
		if val, ok := sel.Find(s).First().Attr(attr); ok && val != "" {
			return val
		}
	}
	return ""
}

// scraperHealthCheck fetches a site's landing page through the current
// proxy and expects a 200.
func scraperHealthCheck(ctx context.Context, baseURL string, proxies *proxy.Manager) error {
	proxyURL := ""
	if proxies != nil {
		proxyURL = proxies.Get()
	}
	client := httpClientFor(10*time.Second, proxyURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
	if err != nil {
		return eris.Wrap(err, "health check: create request")
	}
	req.Header.Set("User-Agent", scraperUserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return eris.Wrap(err, "health check: probe")
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("health check: status %d", resp.StatusCode)
	}
	return nil
}
