package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/leadforge/leadgen-cli/internal/config"
	"github.com/leadforge/leadgen-cli/internal/enrich"
	"github.com/leadforge/leadgen-cli/internal/pipeline"
	"github.com/leadforge/leadgen-cli/internal/source"
	"github.com/leadforge/leadgen-cli/internal/store"
)

// pipelineEnv bundles the dependencies a command needs to run
// searches. Close releases the store.
type pipelineEnv struct {
	Store   store.Store
	Sources *source.Manager
	Runner  *pipeline.Runner
}

func (e *pipelineEnv) Close() {
	if e.Store != nil {
		e.Store.Close()
	}
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}

func buildSources(cfg *config.Config) *source.Manager {
	return source.Setup(source.SetupConfig{
		GooglePlacesAPIKey: cfg.Sources.GooglePlacesAPIKey,
		BingMapsAPIKey:     cfg.Sources.BingMapsAPIKey,
		EnableScrapers:     cfg.Sources.EnableScrapers,
		Proxies:            cfg.Proxy.URLs,
		DefaultPhoneRegion: cfg.Sources.DefaultCountry,
		OverridesFile:      cfg.Sources.OverridesFile,
		BreakerFailures:    cfg.Sources.BreakerFailures,
		BreakerResetSecs:   cfg.Sources.BreakerResetSecs,
	})
}

func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if err := cfg.Validate("run"); err != nil {
		return nil, err
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	mgr := buildSources(cfg)
	worker := enrich.NewWorker(enrich.NewPipeline(mgr, cfg.Sources.DefaultCountry,
		enrich.WithConcurrency(cfg.Pipeline.EnrichConcurrency)))
	runner := pipeline.NewRunner(st, mgr,
		pipeline.WithBackfillConcurrency(cfg.Pipeline.BackfillConcurrency),
		pipeline.WithTierEnrichment(worker, cfg.Pipeline.MinQuality))

	return &pipelineEnv{Store: st, Sources: mgr, Runner: runner}, nil
}
