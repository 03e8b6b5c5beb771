// Package source defines lead source connectors and the manager that
// orchestrates them. Connectors pull business records from APIs,
// directory scrapers and websites; the manager fans searches out across
// sources and cities until the requested lead count is reached.
package source

import (
	"context"
	"strings"
	"time"

	"github.com/leadforge/leadgen-cli/internal/model"
)

// Type classifies how a connector obtains its data.
type Type string

const (
	TypeAPI        Type = "api"
	TypeScraper    Type = "scraper"
	TypeDirectory  Type = "directory"
	TypeEnrichment Type = "enrichment"
)

// Config is the immutable configuration of a connector. Each connector
// ships its own config; the manager reads it for ordering, rate
// limiting and country filtering.
type Config struct {
	// Name uniquely identifies the connector (e.g. "google_places").
	Name string

	Type Type

	// Priority orders connectors during cascade search. Lower runs first.
	Priority int

	// RateLimit is the maximum sustained request rate in requests per
	// second. Zero means unlimited.
	RateLimit float64

	RequiresAPIKey bool
	APIKeyEnvVar   string

	// SupportedCountries lists ISO country codes the connector covers.
	// A single "*" entry means global coverage.
	SupportedCountries []string

	Enabled bool

	// Confidence is the base trust placed in records from this
	// connector, in [0, 1].
	Confidence float64

	// MaxResults caps how many records one search may return.
	MaxResults int

	Timeout time.Duration
	Retries int

	// RequiresProxy marks connectors that must route requests through
	// the proxy pool to avoid blocks.
	RequiresProxy bool
}

// SupportsCountry reports whether the connector covers the given
// country code.
func (c Config) SupportsCountry(country string) bool {
	for _, cc := range c.SupportedCountries {
		if cc == "*" || strings.EqualFold(cc, country) {
			return true
		}
	}
	return false
}

// Source is a single lead data source.
//
// Search returns partial leads matching the criteria. Implementations
// absorb per-record parse failures and return what they could parse; a
// non-nil error means the whole search failed (network, block, bad
// response). A block (403, 429, captcha) is reported as a
// resilience.BlockedError so the manager can mark the source unhealthy.
//
// Enrich fills missing fields on an existing lead. It returns nil, nil
// when the source has nothing to add.
type Source interface {
	Config() Config
	Search(ctx context.Context, criteria model.SearchCriteria) ([]model.Lead, error)
	Enrich(ctx context.Context, lead model.Lead) (*model.Lead, error)
	HealthCheck(ctx context.Context) error
}
