package extract

import (
	"net/url"
	"regexp"
	"strings"
)

var urlPattern = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?[a-zA-Z0-9\-]+(?:\.[a-zA-Z0-9\-]+)+(?:/[^\s"'<>]*)?`)

// NormalizeURL rewrites a raw URL to https with the www prefix and any
// trailing slash stripped. Returns false when the input does not parse
// to a host.
func NormalizeURL(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return "", false
	}
	host := strings.ToLower(parsed.Host)
	host = strings.TrimPrefix(host, "www.")
	normalized := "https://" + host
	if parsed.Path != "" && parsed.Path != "/" {
		normalized += parsed.Path
	}
	return normalized, true
}

// Domain returns the bare registrable host of a URL, without scheme or
// www prefix.
func Domain(raw string) string {
	normalized, ok := NormalizeURL(raw)
	if !ok {
		return ""
	}
	parsed, err := url.Parse(normalized)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(parsed.Host, "www.")
}

// ExtractURLs returns the unique normalized URLs found in text.
func ExtractURLs(text string) []string {
	if text == "" {
		return nil
	}
	seen := make(map[string]struct{})
	var urls []string
	for _, match := range urlPattern.FindAllString(text, -1) {
		normalized, ok := NormalizeURL(match)
		if !ok {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		urls = append(urls, normalized)
	}
	return urls
}
