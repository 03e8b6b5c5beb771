// Package config loads application configuration from file and
// environment and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Sources  SourcesConfig  `yaml:"sources" mapstructure:"sources"`
	Proxy    ProxyConfig    `yaml:"proxy" mapstructure:"proxy"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	// Driver selects the backend, "postgres" or "sqlite".
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// SourcesConfig holds per-connector credentials and toggles.
type SourcesConfig struct {
	GooglePlacesAPIKey string `yaml:"google_places_api_key" mapstructure:"google_places_api_key"`
	BingMapsAPIKey     string `yaml:"bing_maps_api_key" mapstructure:"bing_maps_api_key"`

	// EnableScrapers turns on the SERP and directory scrapers.
	EnableScrapers bool `yaml:"enable_scrapers" mapstructure:"enable_scrapers"`

	// DefaultCountry is the country searched when a request does not
	// name one.
	DefaultCountry string `yaml:"default_country" mapstructure:"default_country"`

	// OverridesFile optionally points to a yaml file of per-source
	// priority, rate and enablement overrides.
	OverridesFile string `yaml:"overrides_file" mapstructure:"overrides_file"`

	// BreakerFailures is the consecutive failure count that opens a
	// source's circuit breaker.
	BreakerFailures int `yaml:"breaker_failures" mapstructure:"breaker_failures"`

	// BreakerResetSecs is how long an open breaker waits before
	// probing the source again.
	BreakerResetSecs int `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// ProxyConfig configures the egress proxy pool for scraper sources.
type ProxyConfig struct {
	// URLs are proxy endpoints, scheme://host:port with optional
	// credentials.
	URLs []string `yaml:"urls" mapstructure:"urls"`
}

// PipelineConfig holds the pipeline and enrichment knobs.
type PipelineConfig struct {
	// EnrichConcurrency bounds per-batch enrichment fan-out.
	EnrichConcurrency int `yaml:"enrich_concurrency" mapstructure:"enrich_concurrency"`

	// BackfillConcurrency bounds the website-phone backfill stage.
	BackfillConcurrency int `yaml:"backfill_concurrency" mapstructure:"backfill_concurrency"`

	// MinQuality drops enriched leads scoring below this floor.
	MinQuality float64 `yaml:"min_quality" mapstructure:"min_quality"`

	// DefaultTier is used when a search does not name one.
	DefaultTier string `yaml:"default_tier" mapstructure:"default_tier"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "leadgen.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("sources.default_country", "IT")
	v.SetDefault("sources.enable_scrapers", false)
	v.SetDefault("sources.overrides_file", "")
	v.SetDefault("sources.breaker_failures", 5)
	v.SetDefault("sources.breaker_reset_secs", 30)
	v.SetDefault("pipeline.enrich_concurrency", 5)
	v.SetDefault("pipeline.backfill_concurrency", 5)
	v.SetDefault("pipeline.min_quality", 0.4)
	v.SetDefault("pipeline.default_tier", "basic")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the configuration for the given mode ("run" or
// "serve"). It collects every problem instead of stopping at the
// first.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		problems = append(problems, "store.driver must be postgres or sqlite")
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}

	if c.Pipeline.EnrichConcurrency < 1 || c.Pipeline.EnrichConcurrency > 50 {
		problems = append(problems, "pipeline.enrich_concurrency must be between 1 and 50")
	}
	if c.Pipeline.BackfillConcurrency < 1 || c.Pipeline.BackfillConcurrency > 50 {
		problems = append(problems, "pipeline.backfill_concurrency must be between 1 and 50")
	}
	if c.Pipeline.MinQuality < 0 || c.Pipeline.MinQuality > 1 {
		problems = append(problems, "pipeline.min_quality must be between 0 and 1")
	}

	switch mode {
	case "run":
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
