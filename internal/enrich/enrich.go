// Package enrich raises leads to a target quality tier by crawling
// their websites, pulling extra data from other sources and running
// validation before scoring.
package enrich

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/leadforge/leadgen-cli/internal/model"
	"github.com/leadforge/leadgen-cli/internal/quality"
	"github.com/leadforge/leadgen-cli/internal/source"
	"github.com/leadforge/leadgen-cli/internal/validate"
)

// Result is the outcome of enriching one lead.
type Result struct {
	Original    model.Lead
	Lead        model.Lead
	Score       quality.Score
	Validations map[string]validate.Result

	SourcesUsed       []string
	EnrichmentSources []string

	MeetsTier  bool
	TargetTier quality.Tier
}

// Pipeline enriches leads through website crawling, cross-source
// lookups, validation and scoring.
type Pipeline struct {
	sources     *source.Manager
	scorer      *quality.Scorer
	validator   *validate.Validator
	concurrency int
	log         *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConcurrency sets how many leads are enriched at once in a batch.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithValidator overrides the default validator, used by tests to
// avoid network lookups.
func WithValidator(v *validate.Validator) Option {
	return func(p *Pipeline) {
		p.validator = v
	}
}

// NewPipeline creates an enrichment pipeline backed by the given
// source manager.
func NewPipeline(sources *source.Manager, defaultCountry string, opts ...Option) *Pipeline {
	p := &Pipeline{
		sources:     sources,
		scorer:      quality.NewScorer(),
		validator:   validate.NewValidator(defaultCountry),
		concurrency: 5,
		log:         zap.L().Named("enrich"),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// LevelForTier derives the validation level from a tier's guarantees.
func LevelForTier(cfg quality.TierConfig) validate.Level {
	switch {
	case cfg.ValidatePhoneCarrier || cfg.ValidateEmailSMTP:
		return validate.LevelPremium
	case cfg.ValidateEmailMX || cfg.ValidateWebsite:
		return validate.LevelStandard
	default:
		return validate.LevelBasic
	}
}

// Checks overrides the tier-derived validation depth per contact
// field. True forces a network check, false keeps the offline format
// check, nil leaves the tier default.
type Checks struct {
	Phone *bool
	Email *bool
}

func (c Checks) levels(base validate.Level) validate.Levels {
	levels := validate.UniformLevels(base)
	levels.Phone = overrideLevel(levels.Phone, c.Phone)
	levels.Email = overrideLevel(levels.Email, c.Email)
	return levels
}

func overrideLevel(base validate.Level, force *bool) validate.Level {
	switch {
	case force == nil:
		return base
	case !*force:
		return validate.LevelBasic
	case base == validate.LevelBasic:
		return validate.LevelStandard
	default:
		return base
	}
}

// Enrich runs one lead through the full enrichment pipeline for the
// target tier. Source failures are absorbed; only context cancellation
// is returned as an error.
func (p *Pipeline) Enrich(ctx context.Context, lead model.Lead, tier quality.Tier, criteria *quality.MatchCriteria, checks Checks) (Result, error) {
	cfg := quality.ConfigForTier(tier)

	enriched := lead
	if enriched.Source != "" {
		enriched.AddSource(enriched.Source)
	}

	res := Result{
		Original:   lead,
		TargetTier: tier,
	}
	if lead.Source != "" {
		res.SourcesUsed = append(res.SourcesUsed, lead.Source)
	}

	if cfg.EnrichFromWebsite && enriched.Website != "" {
		p.enrichFromWebsite(ctx, &enriched, &res)
	}
	if ctx.Err() != nil {
		return res, ctx.Err()
	}

	if enriched.SourceCount() < cfg.MinSources {
		p.enrichFromSources(ctx, &enriched, cfg, &res)
	}
	if ctx.Err() != nil {
		return res, ctx.Err()
	}

	levels := checks.levels(LevelForTier(cfg))
	res.Validations = p.validator.ValidateFields(ctx, &enriched, levels)
	validate.ApplyLevels(&enriched, res.Validations, levels)

	validated := make(map[string]bool, len(res.Validations))
	for field, r := range res.Validations {
		validated[field] = r.IsValid
	}

	confidence := sourceConfidence(len(res.SourcesUsed) + len(res.EnrichmentSources))
	res.Score = p.scorer.Score(&enriched, criteria, confidence, validated)
	res.MeetsTier = p.scorer.MeetsTier(res.Score, tier)

	enriched.Scores = model.Scores{
		Match:        res.Score.MatchScore,
		Quality:      res.Score.QualityScore,
		Completeness: res.Score.CompletenessScore,
		Validation:   res.Score.ValidationScore,
		Confidence:   res.Score.ConfidenceScore,
	}
	res.Lead = enriched

	p.log.Debug("lead enriched",
		zap.String("company", enriched.Name),
		zap.Float64("quality", res.Score.QualityScore),
		zap.Bool("meets_tier", res.MeetsTier),
		zap.Int("sources", enriched.SourceCount()))

	return res, nil
}

// EnrichBatch enriches leads concurrently with bounded parallelism.
// Results are positional.
func (p *Pipeline) EnrichBatch(ctx context.Context, leads []model.Lead, tier quality.Tier, criteria *quality.MatchCriteria, checks Checks) ([]Result, error) {
	results := make([]Result, len(leads))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, lead := range leads {
		g.Go(func() error {
			r, err := p.Enrich(ctx, lead, tier, criteria, checks)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *Pipeline) enrichFromWebsite(ctx context.Context, lead *model.Lead, res *Result) {
	for _, s := range p.sources.EnrichmentSources() {
		extra, err := s.Enrich(ctx, *lead)
		if err != nil {
			p.log.Warn("website enrichment failed",
				zap.String("source", s.Config().Name),
				zap.String("website", lead.Website),
				zap.Error(err))
			continue
		}
		if extra == nil {
			continue
		}
		fillMissing(lead, extra)
		lead.AddSource(s.Config().Name)
		res.EnrichmentSources = append(res.EnrichmentSources, s.Config().Name)
	}
}

func (p *Pipeline) enrichFromSources(ctx context.Context, lead *model.Lead, cfg quality.TierConfig, res *Result) {
	country := lead.Country
	if country == "" {
		country = "IT"
	}

	candidates := p.sources.ForCountry(country)
	maxSources := cfg.MaxSources
	if maxSources == 0 || maxSources > len(candidates) {
		maxSources = len(candidates)
	}

	for _, s := range candidates[:maxSources] {
		if lead.SourceCount() >= cfg.MinSources {
			break
		}
		name := s.Config().Name
		if name == lead.Source {
			continue
		}

		extra, err := s.Enrich(ctx, *lead)
		if err != nil {
			p.log.Debug("source enrichment failed",
				zap.String("source", name),
				zap.Error(err))
			continue
		}
		if extra == nil {
			continue
		}
		fillMissing(lead, extra)
		lead.AddSource(name)
		res.EnrichmentSources = append(res.EnrichmentSources, name)
	}
}

// fillMissing copies contact fields from extra into lead where the
// lead has none. Existing values always win.
func fillMissing(lead *model.Lead, extra *model.Lead) {
	if lead.Phone == "" {
		lead.Phone = extra.Phone
	}
	if lead.Email == "" {
		lead.Email = extra.Email
	}
	if lead.Website == "" {
		lead.Website = extra.Website
	}
	if lead.Address == "" {
		lead.Address = extra.Address
	}
	if lead.City == "" {
		lead.City = extra.City
	}
	if lead.Region == "" {
		lead.Region = extra.Region
	}
	if lead.PostalCode == "" {
		lead.PostalCode = extra.PostalCode
	}
	if lead.Category == "" {
		lead.Category = extra.Category
	}
	if lead.Description == "" {
		lead.Description = extra.Description
	}
}

// sourceConfidence grows with the number of contributing sources,
// 0.5 base plus 0.15 per source, capped at 1.0.
func sourceConfidence(n int) float64 {
	bonus := float64(n) * 0.15
	if bonus > 0.5 {
		bonus = 0.5
	}
	return 0.5 + bonus
}
