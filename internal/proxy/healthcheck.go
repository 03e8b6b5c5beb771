package proxy

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
)

var defaultCheckURLs = []string{
	"https://httpbin.org/ip",
	"https://api.ipify.org?format=json",
}

// HealthChecker probes proxies by making a real request through them.
type HealthChecker struct {
	Manager   *Manager
	Timeout   time.Duration
	CheckURLs []string
}

// NewHealthChecker returns a checker bound to the given pool.
func NewHealthChecker(m *Manager) *HealthChecker {
	return &HealthChecker{
		Manager:   m,
		Timeout:   10 * time.Second,
		CheckURLs: defaultCheckURLs,
	}
}

// Check probes one proxy. Success is reported to the pool with the
// observed latency; any failure counts against the proxy.
func (h *HealthChecker) Check(ctx context.Context, proxyURL string) (bool, error) {
	parsed, err := url.Parse(proxyURL)
	if err != nil {
		h.Manager.ReportFailure(proxyURL)
		return false, eris.Wrapf(err, "parse proxy url %s", MaskURL(proxyURL))
	}

	client := &http.Client{
		Timeout:   h.Timeout,
		Transport: &http.Transport{Proxy: http.ProxyURL(parsed)},
	}
	defer client.CloseIdleConnections()

	start := time.Now()
	for _, checkURL := range h.CheckURLs {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, checkURL, nil)
		if err != nil {
			continue
		}
		resp, err := client.Do(req)
		if err != nil {
			continue
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			h.Manager.ReportSuccess(proxyURL, time.Since(start))
			return true, nil
		}
	}

	h.Manager.ReportFailure(proxyURL)
	return false, nil
}

// CheckAll probes every proxy in the pool concurrently and returns a
// map of proxy URL to health.
func (h *HealthChecker) CheckAll(ctx context.Context) map[string]bool {
	h.Manager.mu.Lock()
	urls := make([]string, len(h.Manager.order))
	copy(urls, h.Manager.order)
	h.Manager.mu.Unlock()

	var mu sync.Mutex
	results := make(map[string]bool, len(urls))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, proxyURL := range urls {
		g.Go(func() error {
			ok, _ := h.Check(ctx, proxyURL)
			mu.Lock()
			results[proxyURL] = ok
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return results
}
