package source

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/leadforge/leadgen-cli/internal/model"
	"github.com/leadforge/leadgen-cli/internal/proxy"
	"github.com/leadforge/leadgen-cli/internal/resilience"
)

// ProgressFunc receives search progress snapshots. Callbacks run on the
// searching goroutine and must return quickly.
type ProgressFunc func(model.SearchProgress)

// Info describes a registered source for listings.
type Info struct {
	Name           string   `json:"name"`
	Type           Type     `json:"type"`
	Priority       int      `json:"priority"`
	Enabled        bool     `json:"enabled"`
	Healthy        bool     `json:"healthy"`
	Countries      []string `json:"countries"`
	RequiresAPIKey bool     `json:"requires_api_key"`
	Confidence     float64  `json:"confidence"`
	LastError      string   `json:"last_error,omitempty"`
}

// Stats is a snapshot of the manager's registry.
type Stats struct {
	Total   int          `json:"total"`
	Enabled int          `json:"enabled"`
	Healthy int          `json:"healthy"`
	ByType  map[Type]int `json:"by_type"`
	Sources []Info       `json:"sources"`
}

type healthState struct {
	healthy   bool
	lastError string
	changedAt time.Time
}

// Manager orchestrates registered sources: parallel fan-out, cascade
// search over city matrices, per-source rate limiting and health
// tracking. The proxy pool is injected at construction and shared with
// connectors that need it.
type Manager struct {
	mu       sync.RWMutex
	sources  map[string]Source
	health   map[string]*healthState
	limiters map[string]*rate.Limiter

	proxies  *proxy.Manager
	breakers *resilience.SourceBreakers
	dlq      *resilience.DLQ
	log      *zap.Logger
}

// ManagerOption configures the manager.
type ManagerOption func(*Manager)

// WithBreakers overrides the default circuit breaker registry.
func WithBreakers(sb *resilience.SourceBreakers) ManagerOption {
	return func(m *Manager) {
		m.breakers = sb
	}
}

// NewManager creates a source manager backed by the given proxy pool.
// The pool may be nil when no scraper sources are registered.
func NewManager(proxies *proxy.Manager, opts ...ManagerOption) *Manager {
	m := &Manager{
		sources:  make(map[string]Source),
		health:   make(map[string]*healthState),
		limiters: make(map[string]*rate.Limiter),
		proxies:  proxies,
		breakers: resilience.NewSourceBreakers(resilience.DefaultCircuitBreakerConfig()),
		dlq:      resilience.NewDLQ(0),
		log:      zap.L(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Proxies returns the injected proxy pool.
func (m *Manager) Proxies() *proxy.Manager {
	return m.proxies
}

// Register adds a source to the registry. Registering the same name
// twice replaces the previous source.
func (m *Manager) Register(s Source) {
	cfg := s.Config()
	m.mu.Lock()
	m.sources[cfg.Name] = s
	m.health[cfg.Name] = &healthState{healthy: true}
	if cfg.RateLimit > 0 {
		m.limiters[cfg.Name] = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	m.mu.Unlock()

	m.log.Info("source registered",
		zap.String("source", cfg.Name),
		zap.String("type", string(cfg.Type)),
		zap.Int("priority", cfg.Priority),
	)
}

// Unregister removes a source by name.
func (m *Manager) Unregister(name string) {
	m.mu.Lock()
	delete(m.sources, name)
	delete(m.health, name)
	delete(m.limiters, name)
	m.mu.Unlock()
}

// Get returns a registered source by name.
func (m *Manager) Get(name string) (Source, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sources[name]
	return s, ok
}

// List returns all registered sources ordered by priority.
func (m *Manager) List() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]Info, 0, len(m.sources))
	for name, s := range m.sources {
		cfg := s.Config()
		info := Info{
			Name:           cfg.Name,
			Type:           cfg.Type,
			Priority:       cfg.Priority,
			Enabled:        cfg.Enabled,
			Healthy:        true,
			Countries:      cfg.SupportedCountries,
			RequiresAPIKey: cfg.RequiresAPIKey,
			Confidence:     cfg.Confidence,
		}
		if h := m.health[name]; h != nil {
			info.Healthy = h.healthy
			info.LastError = h.lastError
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Priority != infos[j].Priority {
			return infos[i].Priority < infos[j].Priority
		}
		return infos[i].Name < infos[j].Name
	})
	return infos
}

// ForCountry returns enabled search sources that cover the country,
// ordered by priority. Enrichment-only sources are excluded.
func (m *Manager) ForCountry(country string) []Source {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Source
	for _, s := range m.sources {
		cfg := s.Config()
		if !cfg.Enabled || cfg.Type == TypeEnrichment {
			continue
		}
		if !cfg.SupportsCountry(country) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Config().Priority < out[j].Config().Priority
	})
	return out
}

// EnrichmentSources returns enabled enrichment-type sources.
func (m *Manager) EnrichmentSources() []Source {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Source
	for _, s := range m.sources {
		cfg := s.Config()
		if cfg.Enabled && cfg.Type == TypeEnrichment {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Config().Priority < out[j].Config().Priority
	})
	return out
}

// MarkHealthy records a successful interaction with the named source.
func (m *Manager) MarkHealthy(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h := m.health[name]; h != nil {
		h.healthy = true
		h.lastError = ""
		h.changedAt = time.Now()
	}
}

// MarkUnhealthy records a failed interaction with the named source.
func (m *Manager) MarkUnhealthy(name, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h := m.health[name]; h != nil {
		h.healthy = false
		h.lastError = reason
		h.changedAt = time.Now()
	}
}

// SearchAll queries compatible sources in parallel and combines their
// results. maxSources caps the fan-out to the highest-priority sources;
// zero queries them all. Per-source failures are absorbed into the
// progress snapshot rather than failing the whole search; only context
// cancellation returns an error.
func (m *Manager) SearchAll(ctx context.Context, criteria model.SearchCriteria, maxSources int, onProgress ProgressFunc) ([]model.Lead, error) {
	sources := m.ForCountry(criteria.Country)
	if len(sources) == 0 {
		m.log.Warn("no sources available", zap.String("country", criteria.Country))
		return nil, nil
	}
	if maxSources > 0 && len(sources) > maxSources {
		sources = sources[:maxSources]
	}

	m.log.Info("parallel search started",
		zap.String("query", criteria.Query),
		zap.String("country", criteria.Country),
		zap.Int("sources", len(sources)),
	)

	var (
		progMu   sync.Mutex
		progress = model.SearchProgress{SourcesTotal: len(sources)}
		all      []model.Lead
	)

	notify := func() {
		if onProgress != nil {
			onProgress(progress)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range sources {
		g.Go(func() error {
			leads, err := m.searchSourceAllCities(gctx, s, criteria)

			progMu.Lock()
			progress.SourcesCompleted++
			progress.CurrentSource = s.Config().Name
			if err != nil {
				progress.Errors = append(progress.Errors, s.Config().Name+": "+err.Error())
			}
			all = append(all, leads...)
			progress.LeadsFound = len(all)
			notify()
			progMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return all, err
	}

	m.log.Info("parallel search completed",
		zap.Int("leads", len(all)),
		zap.Int("sources", len(sources)),
	)
	return all, ctx.Err()
}

// searchSourceAllCities runs one source over the city matrix until its
// result cap is reached. Partial results survive a mid-matrix failure.
func (m *Manager) searchSourceAllCities(ctx context.Context, s Source, criteria model.SearchCriteria) ([]model.Lead, error) {
	cfg := s.Config()

	cities := []string{criteria.City}
	if criteria.City == "" {
		cities = CitiesForCountry(criteria.Country)
		if len(cities) == 0 {
			cities = []string{""}
		}
	}

	maxResults := criteria.MaxResults
	if maxResults <= 0 || maxResults > cfg.MaxResults {
		maxResults = cfg.MaxResults
	}

	var all []model.Lead
	for _, city := range cities {
		if len(all) >= maxResults {
			break
		}
		remaining := maxResults - len(all)
		leads, err := m.searchOne(ctx, s, criteria.WithCity(city, min(remaining, 100)))
		if err != nil {
			return all, err
		}
		all = append(all, leads...)
	}

	m.MarkHealthy(cfg.Name)
	if len(all) > maxResults {
		all = all[:maxResults]
	}
	return all, nil
}

// CascadeRequest describes an exhaustive multi-country search.
type CascadeRequest struct {
	Query     string
	Countries []string
	// Cities overrides the built-in city matrix for every country.
	Cities   []string
	Language string
	// Target is the number of leads the cascade must collect before
	// stopping. The cascade keeps iterating cities until it is reached
	// or the matrix is exhausted.
	Target int
}

// SearchCascade iterates every city of every requested country in
// source-priority order until the target count is reached. Results are
// pre-deduplicated by normalized business name so the target reflects
// distinct businesses, not raw rows.
func (m *Manager) SearchCascade(ctx context.Context, req CascadeRequest, onProgress ProgressFunc) ([]model.Lead, error) {
	countries := req.Countries
	if len(countries) == 0 {
		countries = []string{"IT"}
	}

	type cityCountry struct {
		city    string
		country string
	}
	var matrix []cityCountry
	for _, country := range countries {
		cities := req.Cities
		if len(cities) == 0 {
			cities = CitiesForCountry(country)
		}
		for _, city := range cities {
			matrix = append(matrix, cityCountry{city: city, country: strings.ToUpper(country)})
		}
	}
	if len(matrix) == 0 {
		m.log.Warn("no cities available", zap.Strings("countries", countries))
		return nil, nil
	}

	sourcesByCountry := make(map[string][]Source, len(countries))
	uniqueSources := make(map[string]struct{})
	for _, country := range countries {
		cc := strings.ToUpper(country)
		sources := m.ForCountry(cc)
		if len(sources) > 0 {
			sourcesByCountry[cc] = sources
			for _, s := range sources {
				uniqueSources[s.Config().Name] = struct{}{}
			}
		}
	}
	if len(sourcesByCountry) == 0 {
		m.log.Warn("no sources available", zap.Strings("countries", countries))
		return nil, nil
	}

	progress := model.SearchProgress{SourcesTotal: len(uniqueSources)}
	m.log.Info("cascade search started",
		zap.String("query", req.Query),
		zap.Strings("countries", countries),
		zap.Int("target", req.Target),
		zap.Int("cities", len(matrix)),
	)

	var all []model.Lead
	seen := make(map[string]struct{})

	for i, cell := range matrix {
		if err := ctx.Err(); err != nil {
			return all, err
		}
		if req.Target > 0 && len(all) >= req.Target {
			m.log.Info("cascade target reached",
				zap.Int("leads", len(all)),
				zap.Int("cities_searched", i),
			)
			break
		}

		for _, s := range sourcesByCountry[cell.country] {
			if req.Target > 0 && len(all) >= req.Target {
				break
			}

			limit := 100
			if req.Target > 0 {
				remaining := req.Target - len(all)
				limit = min(remaining*2, 100)
			}

			criteria := model.SearchCriteria{
				Query:      req.Query,
				Country:    cell.country,
				City:       cell.city,
				Language:   req.Language,
				MaxResults: limit,
			}

			progress.CurrentSource = s.Config().Name
			leads, err := m.searchOne(ctx, s, criteria)
			if err != nil {
				progress.Errors = append(progress.Errors,
					s.Config().Name+" ("+cell.city+"): "+err.Error())
			}
			for _, lead := range leads {
				key := strings.ToLower(strings.TrimSpace(lead.Name))
				if key == "" {
					continue
				}
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				all = append(all, lead)
			}

			progress.LeadsFound = len(all)
			if onProgress != nil {
				onProgress(progress)
			}
		}

		if (i+1)%5 == 0 {
			m.log.Info("cascade progress",
				zap.Int("cities_searched", i+1),
				zap.Int("total_cities", len(matrix)),
				zap.Int("leads", len(all)),
				zap.Int("target", req.Target),
			)
		}
	}

	if req.Target > 0 && len(all) > req.Target {
		all = all[:req.Target]
	}
	m.log.Info("cascade search completed",
		zap.Int("leads", len(all)),
		zap.Int("target", req.Target),
	)
	return all, nil
}

// searchOne runs a single source search through the source's rate
// limiter and circuit breaker, updating health state from the outcome.
func (m *Manager) searchOne(ctx context.Context, s Source, criteria model.SearchCriteria) ([]model.Lead, error) {
	name := s.Config().Name

	m.mu.RLock()
	lim := m.limiters[name]
	m.mu.RUnlock()
	if lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return nil, err
		}
	}

	leads, err := resilience.ExecuteVal(ctx, m.breakers.Get(name),
		func(ctx context.Context) ([]model.Lead, error) {
			return s.Search(ctx, criteria)
		})
	if err != nil {
		m.MarkUnhealthy(name, err.Error())
		m.dlq.Record(name, criteria, err)
		if resilience.IsBlocked(err) {
			m.log.Warn("source blocked",
				zap.String("source", name),
				zap.String("city", criteria.City),
			)
		}
		return nil, err
	}

	m.MarkHealthy(name)
	m.log.Debug("source search completed",
		zap.String("source", name),
		zap.String("city", criteria.City),
		zap.Int("leads", len(leads)),
	)
	return leads, nil
}

// HealthCheckAll checks every registered source and returns a map of
// source name to health.
func (m *Manager) HealthCheckAll(ctx context.Context) map[string]bool {
	m.mu.RLock()
	sources := make(map[string]Source, len(m.sources))
	for name, s := range m.sources {
		sources[name] = s
	}
	m.mu.RUnlock()

	var (
		resMu   sync.Mutex
		results = make(map[string]bool, len(sources))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for name, s := range sources {
		g.Go(func() error {
			err := s.HealthCheck(gctx)
			resMu.Lock()
			results[name] = err == nil
			resMu.Unlock()
			if err != nil {
				m.MarkUnhealthy(name, err.Error())
			} else {
				m.MarkHealthy(name)
			}
			return nil
		})
	}
	g.Wait() //nolint:errcheck
	return results
}

// DeadLetters returns failed searches recorded by the manager.
func (m *Manager) DeadLetters(filter resilience.DLQFilter) []resilience.DLQEntry {
	return m.dlq.List(filter)
}

// RetryDeadLetters re-runs every due dead letter entry against its
// source. Recovered entries leave the queue and their leads are
// returned; entries that fail again stay queued with a longer backoff.
func (m *Manager) RetryDeadLetters(ctx context.Context) ([]model.Lead, int) {
	var (
		recovered []model.Lead
		done      int
	)
	for _, e := range m.dlq.Due() {
		m.mu.RLock()
		s, ok := m.sources[e.Source]
		m.mu.RUnlock()
		if !ok {
			m.dlq.Remove(e.ID)
			continue
		}

		leads, err := m.searchOne(ctx, s, e.Criteria)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			continue
		}
		m.dlq.Remove(e.ID)
		recovered = append(recovered, leads...)
		done++
	}
	return recovered, done
}

// Statistics returns a registry snapshot.
func (m *Manager) Statistics() Stats {
	infos := m.List()
	stats := Stats{
		Total:   len(infos),
		ByType:  make(map[Type]int),
		Sources: infos,
	}
	for _, info := range infos {
		if info.Enabled {
			stats.Enabled++
		}
		if info.Healthy {
			stats.Healthy++
		}
		stats.ByType[info.Type]++
	}
	return stats
}
