package validate

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
)

// genericDomains are platforms that host many businesses. A listing
// pointing at one of these is usually a profile page, not the
// company's own site.
var genericDomains = []string{
	"facebook.com", "instagram.com", "twitter.com", "linkedin.com",
	"youtube.com", "tiktok.com", "pinterest.com",
	"google.com", "bing.com", "yahoo.com",
	"wikipedia.org", "amazon.com", "ebay.com",
}

// WebsiteValidator validates website URLs up to a live HTTP check.
type WebsiteValidator struct {
	// Client follows redirects. Defaults to http.DefaultClient.
	Client *http.Client
}

// NewWebsiteValidator returns a validator using the default HTTP
// client.
func NewWebsiteValidator() *WebsiteValidator {
	return &WebsiteValidator{Client: http.DefaultClient}
}

// ValidateFormat checks URL shape offline. A URL on a generic hosting
// platform is still valid but scores 0.5 and carries a warning; a
// proper company domain scores 0.7.
func (v *WebsiteValidator) ValidateFormat(rawURL string) Result {
	rawURL = strings.TrimSpace(rawURL)
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		rawURL = "https://" + rawURL
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return Result{Details: map[string]any{}, Error: err.Error()}
	}
	if parsed.Host == "" {
		return invalid(0, "no_domain", "URL has no domain")
	}

	domain := strings.ToLower(parsed.Host)
	if !strings.Contains(domain, ".") {
		return invalid(0, "invalid_domain", "invalid domain format")
	}

	for _, generic := range genericDomains {
		if strings.Contains(domain, generic) {
			return Result{
				IsValid:    true,
				Confidence: 0.5,
				Details: map[string]any{
					"url":     rawURL,
					"domain":  domain,
					"warning": "generic_platform",
				},
			}
		}
	}

	return Result{
		IsValid:    true,
		Confidence: 0.7,
		Details: map[string]any{
			"url":    rawURL,
			"domain": domain,
			"scheme": parsed.Scheme,
			"path":   parsed.Path,
		},
	}
}

// ValidateHTTP issues a HEAD request following redirects. A response
// below 400 scores 0.95; error statuses, timeouts and connection
// failures score 0.3, 0.3 and 0.1 respectively.
func (v *WebsiteValidator) ValidateHTTP(ctx context.Context, rawURL string) Result {
	formatResult := v.ValidateFormat(rawURL)
	if !formatResult.IsValid {
		return formatResult
	}
	checkURL, _ := formatResult.Details["url"].(string)
	if checkURL == "" {
		checkURL = rawURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, checkURL, nil)
	if err != nil {
		return Result{Confidence: 0.2, Details: map[string]any{"url": checkURL, "reason": "error"}, Error: err.Error()}
	}

	client := v.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		var netErr net.Error
		switch {
		case errors.As(err, &netErr) && netErr.Timeout():
			return Result{Confidence: 0.3, Details: map[string]any{"url": checkURL, "reason": "timeout"}, Error: "request timed out"}
		case errors.Is(err, syscall.ECONNREFUSED):
			return Result{Confidence: 0.1, Details: map[string]any{"url": checkURL, "reason": "connection_failed"}, Error: "could not connect to server"}
		default:
			return Result{Confidence: 0.2, Details: map[string]any{"url": checkURL, "reason": "error"}, Error: err.Error()}
		}
	}
	resp.Body.Close()

	finalURL := checkURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	isValid := resp.StatusCode < 400

	confidence := 0.3
	if isValid {
		confidence = 0.95
	}
	return Result{
		IsValid:    isValid,
		Confidence: confidence,
		Details: map[string]any{
			"url":          checkURL,
			"final_url":    finalURL,
			"status_code":  resp.StatusCode,
			"redirected":   finalURL != checkURL,
			"https":        strings.HasPrefix(finalURL, "https://"),
			"content_type": resp.Header.Get("Content-Type"),
		},
	}
}

// ValidateSSL runs the HTTP check and then inspects whether the final
// URL is served over HTTPS. 0.98 for https, 0.85 for plain http.
func (v *WebsiteValidator) ValidateSSL(ctx context.Context, rawURL string) Result {
	httpResult := v.ValidateHTTP(ctx, rawURL)
	if !httpResult.IsValid {
		return httpResult
	}

	finalURL, _ := httpResult.Details["final_url"].(string)
	isHTTPS := strings.HasPrefix(finalURL, "https://")
	httpResult.Details["ssl_valid"] = isHTTPS

	if isHTTPS {
		httpResult.Confidence = 0.98
	} else {
		httpResult.Confidence = 0.85
	}
	return httpResult
}
