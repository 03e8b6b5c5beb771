package source

import (
	"time"

	"go.uber.org/zap"

	"github.com/leadforge/leadgen-cli/internal/proxy"
	"github.com/leadforge/leadgen-cli/internal/resilience"
)

// SetupConfig controls which sources get registered.
type SetupConfig struct {
	GooglePlacesAPIKey string
	BingMapsAPIKey     string

	// EnableScrapers turns on the SERP and directory scrapers. They
	// need the proxy pool to be useful at any volume.
	EnableScrapers bool

	// Proxies are egress proxy URLs added to the pool.
	Proxies []string

	// DefaultPhoneRegion is the region used when normalizing phone
	// numbers without a country prefix. Defaults to IT.
	DefaultPhoneRegion string

	// OverridesFile optionally points to a yaml file of per-source
	// priority, rate and enablement overrides.
	OverridesFile string

	// BreakerFailures and BreakerResetSecs tune the per-source circuit
	// breakers. Zero keeps the defaults.
	BreakerFailures  int
	BreakerResetSecs int
}

// Setup builds a proxy pool and a source manager with the full
// connector roster registered. Sources missing credentials are left
// out rather than registered disabled.
func Setup(cfg SetupConfig) *Manager {
	log := zap.L()

	pool := proxy.NewManager(proxy.DefaultConfig())
	pool.AddAll(cfg.Proxies)

	breakerCfg := resilience.BreakerConfig(cfg.BreakerFailures, time.Duration(cfg.BreakerResetSecs)*time.Second)
	manager := NewManager(pool, WithBreakers(resilience.NewSourceBreakers(breakerCfg)))

	if cfg.GooglePlacesAPIKey != "" {
		manager.Register(NewPlacesConnector(cfg.GooglePlacesAPIKey))
	} else {
		log.Warn("google places disabled, no api key")
	}

	if cfg.BingMapsAPIKey != "" {
		manager.Register(NewBingConnector(cfg.BingMapsAPIKey))
	} else {
		log.Warn("bing places disabled, no api key")
	}

	manager.Register(NewOverpassConnector())

	if cfg.EnableScrapers {
		manager.Register(NewSerpScraper(pool))
		manager.Register(NewPagineGialleScraper(pool))
		manager.Register(NewGelbeSeitenScraper(pool))
		manager.Register(NewHeroldScraper(pool))
		manager.Register(NewPagesJaunesScraper(pool))
		manager.Register(NewPaginasAmarillasScraper(pool))
	}

	region := cfg.DefaultPhoneRegion
	if region == "" {
		region = "IT"
	}
	manager.Register(NewWebsiteCrawler(region))

	if cfg.OverridesFile != "" {
		overrides, err := LoadOverrides(cfg.OverridesFile)
		if err != nil {
			log.Warn("source overrides not loaded", zap.Error(err))
		} else {
			manager.ApplyOverrides(overrides)
		}
	}

	stats := manager.Statistics()
	log.Info("sources registered",
		zap.Int("total", stats.Total),
		zap.Int("enabled", stats.Enabled),
	)
	return manager
}
