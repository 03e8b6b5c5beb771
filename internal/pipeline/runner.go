// Package pipeline runs a stored search end to end: collect raw leads
// from the source manager, normalize, backfill, dedupe, score, filter
// and persist the top results.
package pipeline

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/leadforge/leadgen-cli/internal/dedupe"
	"github.com/leadforge/leadgen-cli/internal/enrich"
	"github.com/leadforge/leadgen-cli/internal/extract"
	"github.com/leadforge/leadgen-cli/internal/matcher"
	"github.com/leadforge/leadgen-cli/internal/model"
	"github.com/leadforge/leadgen-cli/internal/quality"
	"github.com/leadforge/leadgen-cli/internal/source"
	"github.com/leadforge/leadgen-cli/internal/store"
)

// maxQueries caps the category-by-region query matrix to bound API
// spend per run.
const maxQueries = 10

// Runner executes the six pipeline stages for one search run.
type Runner struct {
	store    store.Store
	sources  *source.Manager
	dedupe   *dedupe.Deduplicator
	enricher *enrich.Worker
	log      *zap.Logger

	backfillConcurrency int
	minQuality          float64
}

// Option configures the runner.
type Option func(*Runner)

// WithBackfillConcurrency bounds the website-phone backfill fan-out.
func WithBackfillConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.backfillConcurrency = n
		}
	}
}

// WithTierEnrichment installs the full enrichment worker. Runs whose
// tier enriches from the website go through it instead of the cheap
// phone backfill, and leads scoring below minQuality are dropped.
func WithTierEnrichment(w *enrich.Worker, minQuality float64) Option {
	return func(r *Runner) {
		r.enricher = w
		r.minQuality = minQuality
	}
}

// NewRunner creates a pipeline runner on top of a store and a source
// manager.
func NewRunner(st store.Store, sources *source.Manager, opts ...Option) *Runner {
	r := &Runner{
		store:               st,
		sources:             sources,
		dedupe:              dedupe.New(),
		log:                 zap.L(),
		backfillConcurrency: 5,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run executes the full pipeline for a stored search and returns the
// final run record. A stage failure marks the run failed and returns
// the error; progress committed before the failure is retained.
func (r *Runner) Run(ctx context.Context, searchID string) (*model.Run, error) {
	search, err := r.store.GetSearch(ctx, searchID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load search")
	}
	if search == nil {
		return nil, eris.Errorf("pipeline: search not found: %s", searchID)
	}

	req := search.Request
	if req.TargetLeads <= 0 {
		req.TargetLeads = 20
	}
	countries := req.CountryList()
	if len(countries) == 0 {
		countries = []string{"IT"}
	}
	// The first market drives phone normalization for leads whose
	// source did not report a country.
	country := countries[0]

	run, err := r.store.CreateRun(ctx, searchID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}

	log := r.log.With(zap.String("search_id", searchID), zap.String("run_id", run.ID))
	log.Info("pipeline: run started",
		zap.Strings("categories", req.Categories),
		zap.Strings("countries", countries),
		zap.Int("target", req.TargetLeads),
		zap.String("tier", req.Tier),
	)

	start := time.Now()
	result := &model.RunResult{LeadsRequested: req.TargetLeads}

	checkpoint := func(progress int, step string) {
		if cpErr := r.store.UpdateRunProgress(ctx, run.ID, progress, step); cpErr != nil {
			log.Warn("pipeline: progress update failed", zap.Error(cpErr))
		}
	}

	stage := func(name string, fn func() (int, error)) error {
		stageStart := time.Now()
		n, stageErr := fn()
		sr := model.StageResult{
			Name:     name,
			Duration: time.Since(stageStart),
			Leads:    n,
		}
		if stageErr != nil {
			sr.Status = model.StageStatusFailed
			sr.Error = stageErr.Error()
			log.Error("pipeline: stage failed",
				zap.String("stage", name),
				zap.Duration("duration", sr.Duration),
				zap.Error(stageErr),
			)
		} else {
			sr.Status = model.StageStatusComplete
			log.Info("pipeline: stage complete",
				zap.String("stage", name),
				zap.Duration("duration", sr.Duration),
				zap.Int("leads", n),
			)
		}
		result.Stages = append(result.Stages, sr)
		return stageErr
	}

	fail := func(failErr error) (*model.Run, error) {
		if recErr := r.store.FailRun(ctx, run.ID, failErr.Error()); recErr != nil {
			log.Warn("pipeline: failed to record run failure", zap.Error(recErr))
		}
		return nil, failErr
	}

	var leads []model.Lead

	if err := stage("collect", func() (int, error) {
		collected, collectErr := r.collect(ctx, req, countries)
		leads = collected
		return len(collected), collectErr
	}); err != nil {
		return fail(eris.Wrap(err, "pipeline: collect"))
	}
	result.LeadsRaw = len(leads)
	checkpoint(30, "collect")

	_ = stage("normalize", func() (int, error) {
		r.normalize(leads, country)
		return len(leads), nil
	})
	checkpoint(45, "normalize")

	var enrichDropped int
	_ = stage("enrich", func() (int, error) {
		tierCfg := quality.ConfigForTier(quality.Tier(req.Tier))
		if r.enricher == nil || !tierCfg.EnrichFromWebsite {
			return r.backfillPhones(ctx, leads), nil
		}
		enriched, err := r.enrichTier(ctx, leads, tierCfg.Tier, req)
		if err != nil {
			log.Warn("pipeline: tier enrichment failed, keeping raw leads", zap.Error(err))
			return r.backfillPhones(ctx, leads), nil
		}
		enrichDropped = len(leads) - len(enriched)
		leads = enriched
		return len(enriched), nil
	})
	checkpoint(60, "enrich")

	_ = stage("dedupe", func() (int, error) {
		leads = r.dedupe.Batch(leads)
		return len(leads), nil
	})
	result.LeadsUnique = len(leads)
	checkpoint(70, "dedupe")

	_ = stage("score", func() (int, error) {
		kept := r.scoreAndFilter(leads, req)
		result.LeadsDiscarded = enrichDropped + len(leads) - len(kept)
		leads = kept
		return len(kept), nil
	})
	checkpoint(85, "score")

	if err := stage("save", func() (int, error) {
		return r.save(ctx, searchID, leads, req.TargetLeads, result)
	}); err != nil {
		return fail(eris.Wrap(err, "pipeline: save"))
	}

	result.Duration = time.Since(start)
	if err := r.store.CompleteRun(ctx, run.ID, result); err != nil {
		return fail(eris.Wrap(err, "pipeline: complete run"))
	}

	log.Info("pipeline: run complete",
		zap.Int("raw", result.LeadsRaw),
		zap.Int("unique", result.LeadsUnique),
		zap.Int("discarded", result.LeadsDiscarded),
		zap.Int("delivered", result.LeadsDelivered),
		zap.Duration("duration", result.Duration),
	)

	return r.store.GetRun(ctx, run.ID)
}

// collect fans the query matrix out through the source cascade until
// twice the target is gathered, leaving slack for the quality filter.
func (r *Runner) collect(ctx context.Context, req model.RunRequest, countries []string) ([]model.Lead, error) {
	queries := queryMatrix(req)
	if len(queries) == 0 {
		return nil, eris.New("pipeline: no categories to search")
	}

	slack := req.TargetLeads * 2
	var all []model.Lead
	for _, q := range queries {
		if len(all) >= slack {
			break
		}
		found, err := r.sources.SearchCascade(ctx, source.CascadeRequest{
			Query:     q,
			Countries: countries,
			Cities:    req.Cities,
			Target:    slack - len(all),
		}, nil)
		if err != nil {
			return all, err
		}
		all = append(all, found...)
	}

	// Sources that failed transiently during the cascade get one more
	// shot before the run settles for what it has.
	if len(all) < slack {
		recovered, retried := r.sources.RetryDeadLetters(ctx)
		if retried > 0 {
			r.log.Info("pipeline: recovered failed searches",
				zap.Int("searches", retried),
				zap.Int("leads", len(recovered)),
			)
			all = append(all, recovered...)
		}
	}
	return all, nil
}

// queryMatrix builds the distinct search queries for a request from
// category and region combinations.
func queryMatrix(req model.RunRequest) []string {
	regions := req.Regions
	if len(regions) == 0 {
		regions = []string{""}
	}
	var queries []string
	for _, category := range req.Categories {
		for _, region := range regions {
			q := strings.TrimSpace(category + " " + region)
			if q == "" {
				continue
			}
			queries = append(queries, q)
			if len(queries) == maxQueries {
				return queries
			}
		}
	}
	return queries
}

// normalize cleans each lead's fields in place.
func (r *Runner) normalize(leads []model.Lead, country string) {
	phones := extract.NewPhoneExtractor(country)
	for i := range leads {
		l := &leads[i]
		l.Name = strings.Join(strings.Fields(l.Name), " ")
		if l.Phone != "" {
			if normalized, ok := phones.Normalize(l.Phone); ok {
				l.Phone = normalized
			}
		}
		if l.Website != "" {
			if u, ok := extract.NormalizeURL(l.Website); ok {
				l.Website = u
			} else {
				l.Website = ""
			}
		}
		if l.Address != "" {
			l.Address = extract.NormalizeAddress(l.Address)
		}
		if l.PostalCode == "" && l.Address != "" {
			l.PostalCode = extract.ExtractPostalCode(l.Address)
		}
		l.City = strings.TrimSpace(l.City)
		if l.Country == "" {
			l.Country = country
		}
	}
}

// enrichTier runs the full enrichment worker for tiers that enrich
// from the website, dropping leads below the quality floor.
func (r *Runner) enrichTier(ctx context.Context, leads []model.Lead, tier quality.Tier, req model.RunRequest) ([]model.Lead, error) {
	criteria := &quality.MatchCriteria{
		Categories:      req.Categories,
		Cities:          req.Cities,
		Regions:         req.Regions,
		KeywordsInclude: req.KeywordsInclude,
		KeywordsExclude: req.KeywordsExclude,
	}
	checks := enrich.Checks{Phone: req.ValidatePhone, Email: req.ValidateEmail}
	results, err := r.enricher.ProcessLeads(ctx, leads, tier, criteria, checks, r.minQuality, nil)
	if err != nil {
		return nil, err
	}
	out := make([]model.Lead, 0, len(results))
	for _, res := range results {
		out = append(out, res.Lead)
	}
	return out, nil
}

// backfillPhones crawls the website of leads that have one but no
// phone. This is the cheap pass; full tiered enrichment lives in the
// enrich package. Crawl failures are absorbed.
func (r *Runner) backfillPhones(ctx context.Context, leads []model.Lead) int {
	crawlers := r.sources.EnrichmentSources()
	if len(crawlers) == 0 {
		return 0
	}

	var (
		mu     sync.Mutex
		filled int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.backfillConcurrency)

	for i := range leads {
		if leads[i].Phone != "" || leads[i].Website == "" {
			continue
		}
		g.Go(func() error {
			for _, c := range crawlers {
				enriched, err := c.Enrich(gctx, leads[i])
				if err != nil {
					r.log.Debug("pipeline: phone backfill failed",
						zap.String("source", c.Config().Name),
						zap.String("website", leads[i].Website),
						zap.Error(err),
					)
					continue
				}
				if enriched != nil && enriched.Phone != "" {
					leads[i].Phone = enriched.Phone
					leads[i].AddSource(c.Config().Name)
					mu.Lock()
					filled++
					mu.Unlock()
					break
				}
			}
			return nil
		})
	}
	g.Wait() //nolint:errcheck
	return filled
}

// scoreAndFilter computes match and confidence per lead and drops
// leads failing the request's quality requirements.
func (r *Runner) scoreAndFilter(leads []model.Lead, req model.RunRequest) []model.Lead {
	scorer := matcher.NewScorer(matcher.Criteria{
		KeywordsInclude:    req.KeywordsInclude,
		KeywordsExclude:    req.KeywordsExclude,
		Categories:         req.Categories,
		Regions:            req.Regions,
		Cities:             req.Cities,
		MinMatchScore:      req.MinMatchScore,
		MinConfidenceScore: req.MinConfidenceScore,
		RequirePhone:       req.RequirePhone,
		RequireWebsite:     req.RequireWebsite,
	})

	var kept []model.Lead
	for i := range leads {
		lead := leads[i]
		lead.Scores.Match = scorer.MatchScore(&lead)
		lead.Scores.Confidence = scorer.ConfidenceScore(&lead)
		if !scorer.Passes(lead.Scores.Match, lead.Scores.Confidence, lead.Phone != "", lead.Website != "") {
			continue
		}
		kept = append(kept, lead)
	}
	return kept
}

// save persists the top-N leads by score and their source provenance.
func (r *Runner) save(ctx context.Context, searchID string, leads []model.Lead, target int, result *model.RunResult) (int, error) {
	sort.SliceStable(leads, func(i, j int) bool {
		if leads[i].Scores.Match != leads[j].Scores.Match {
			return leads[i].Scores.Match > leads[j].Scores.Match
		}
		return leads[i].Scores.Confidence > leads[j].Scores.Confidence
	})
	if len(leads) > target {
		leads = leads[:target]
	}

	sourcesUsed := make(map[string]struct{})
	saved := 0
	for _, lead := range leads {
		companyID, err := r.store.UpsertCompany(ctx, searchID, lead)
		if err != nil {
			return saved, err
		}

		contributors := lead.Sources
		if len(contributors) == 0 && lead.Source != "" {
			contributors = []string{lead.Source}
		}
		prov := make([]model.Provenance, 0, len(contributors))
		for _, name := range contributors {
			sourcesUsed[name] = struct{}{}
			prov = append(prov, model.Provenance{
				CompanyID: companyID,
				Source:    name,
				Field:     "record",
				URL:       lead.Website,
			})
		}
		if err := r.store.AddProvenance(ctx, prov); err != nil {
			return saved, err
		}
		saved++
	}

	for name := range sourcesUsed {
		result.SourcesUsed = append(result.SourcesUsed, name)
	}
	sort.Strings(result.SourcesUsed)
	result.LeadsDelivered = saved
	return saved, nil
}
