package enrich

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadforge/leadgen-cli/internal/model"
	"github.com/leadforge/leadgen-cli/internal/quality"
	"github.com/leadforge/leadgen-cli/internal/source"
	"github.com/leadforge/leadgen-cli/internal/validate"
)

type stubSource struct {
	cfg      source.Config
	enrichFn func(model.Lead) (*model.Lead, error)
	calls    int
}

func (s *stubSource) Config() source.Config { return s.cfg }

func (s *stubSource) Search(_ context.Context, _ model.SearchCriteria) ([]model.Lead, error) {
	return nil, nil
}

func (s *stubSource) Enrich(_ context.Context, lead model.Lead) (*model.Lead, error) {
	s.calls++
	if s.enrichFn == nil {
		return nil, nil
	}
	return s.enrichFn(lead)
}

func (s *stubSource) HealthCheck(_ context.Context) error { return nil }

func discoveryStub(name string, priority int, enrichFn func(model.Lead) (*model.Lead, error)) *stubSource {
	return &stubSource{
		cfg: source.Config{
			Name:               name,
			Type:               source.TypeAPI,
			Priority:           priority,
			SupportedCountries: []string{"*"},
			Enabled:            true,
			Confidence:         0.9,
			MaxResults:         100,
		},
		enrichFn: enrichFn,
	}
}

func crawlerStub(enrichFn func(model.Lead) (*model.Lead, error)) *stubSource {
	return &stubSource{
		cfg: source.Config{
			Name:               "official_website",
			Type:               source.TypeEnrichment,
			Priority:           100,
			SupportedCountries: []string{"*"},
			Enabled:            true,
			Confidence:         0.95,
			MaxResults:         1,
		},
		enrichFn: enrichFn,
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// offlineValidator never touches the network, even at standard level.
func offlineValidator() *validate.Validator {
	v := validate.NewValidator("IT")
	v.Email = validate.NewEmailValidatorWithLookup(func(_ context.Context, _ string) ([]string, error) {
		return []string{"mx1.example.com"}, nil
	})
	v.Website = &validate.WebsiteValidator{Client: &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       http.NoBody,
				Header:     make(http.Header),
				Request:    r,
			}, nil
		}),
	}}
	return v
}

func TestLevelForTier(t *testing.T) {
	tests := []struct {
		tier quality.Tier
		want validate.Level
	}{
		{quality.TierBasic, validate.LevelBasic},
		{quality.TierStandard, validate.LevelStandard},
		{quality.TierPremium, validate.LevelPremium},
	}
	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			assert.Equal(t, tt.want, LevelForTier(quality.ConfigForTier(tt.tier)))
		})
	}
}

func TestEnrich_CrossSourceFillsMissingFields(t *testing.T) {
	extra := discoveryStub("overpass", 2, func(lead model.Lead) (*model.Lead, error) {
		e := lead
		e.Phone = "+390286461234"
		e.Address = "Via Dante 5"
		return &e, nil
	})

	mgr := source.NewManager(nil)
	mgr.Register(extra)

	p := NewPipeline(mgr, "IT", WithValidator(offlineValidator()))
	res, err := p.Enrich(context.Background(), model.Lead{
		Name:    "Studio Rossi",
		City:    "Milano",
		Country: "IT",
		Source:  "google_places",
	}, quality.TierStandard, nil, Checks{})
	require.NoError(t, err)

	assert.Equal(t, "+390286461234", res.Lead.Phone)
	assert.Equal(t, "Via Dante 5", res.Lead.Address)
	assert.Equal(t, []string{"overpass"}, res.EnrichmentSources)
	assert.Contains(t, res.Lead.Sources, "google_places")
	assert.Contains(t, res.Lead.Sources, "overpass")
	assert.Equal(t, quality.TierStandard, res.TargetTier)
}

func TestEnrich_ExistingFieldsWin(t *testing.T) {
	extra := discoveryStub("overpass", 2, func(lead model.Lead) (*model.Lead, error) {
		e := lead
		e.Phone = "+390299999999"
		return &e, nil
	})

	mgr := source.NewManager(nil)
	mgr.Register(extra)

	p := NewPipeline(mgr, "IT", WithValidator(offlineValidator()))
	res, err := p.Enrich(context.Background(), model.Lead{
		Name:   "Studio Rossi",
		Phone:  "+390286461234",
		Source: "google_places",
	}, quality.TierStandard, nil, Checks{})
	require.NoError(t, err)

	assert.Equal(t, "+390286461234", res.Lead.Phone)
}

func TestEnrich_WebsiteCrawlRunsFirst(t *testing.T) {
	crawler := crawlerStub(func(lead model.Lead) (*model.Lead, error) {
		e := lead
		e.Phone = "+390286461234"
		return &e, nil
	})
	other := discoveryStub("overpass", 2, func(lead model.Lead) (*model.Lead, error) {
		e := lead
		e.Phone = "+390200000000"
		return &e, nil
	})

	mgr := source.NewManager(nil)
	mgr.Register(crawler)
	mgr.Register(other)

	p := NewPipeline(mgr, "IT", WithValidator(offlineValidator()))
	res, err := p.Enrich(context.Background(), model.Lead{
		Name:    "Studio Rossi",
		Website: "https://studiorossi.it",
		Source:  "google_places",
	}, quality.TierStandard, nil, Checks{})
	require.NoError(t, err)

	// The crawler's phone sticks; the cross-source value arrives later
	// and cannot overwrite it.
	assert.Equal(t, "+390286461234", res.Lead.Phone)
	assert.Equal(t, "official_website", res.EnrichmentSources[0])
}

func TestEnrich_SkipsWebsiteCrawlForBasicTier(t *testing.T) {
	crawler := crawlerStub(func(lead model.Lead) (*model.Lead, error) {
		e := lead
		e.Phone = "+390286461234"
		return &e, nil
	})

	mgr := source.NewManager(nil)
	mgr.Register(crawler)

	p := NewPipeline(mgr, "IT", WithValidator(offlineValidator()))
	res, err := p.Enrich(context.Background(), model.Lead{
		Name:    "Studio Rossi",
		Website: "https://studiorossi.it",
		Source:  "google_places",
	}, quality.TierBasic, nil, Checks{})
	require.NoError(t, err)

	assert.Zero(t, crawler.calls)
	assert.Empty(t, res.Lead.Phone)
}

func TestEnrich_AbsorbsSourceErrors(t *testing.T) {
	failing := discoveryStub("overpass", 2, func(_ model.Lead) (*model.Lead, error) {
		return nil, errors.New("upstream down")
	})
	working := discoveryStub("serp", 3, func(lead model.Lead) (*model.Lead, error) {
		e := lead
		e.Email = "info@studiorossi.it"
		return &e, nil
	})

	mgr := source.NewManager(nil)
	mgr.Register(failing)
	mgr.Register(working)

	p := NewPipeline(mgr, "IT", WithValidator(offlineValidator()))
	res, err := p.Enrich(context.Background(), model.Lead{
		Name:   "Studio Rossi",
		Source: "google_places",
	}, quality.TierStandard, nil, Checks{})
	require.NoError(t, err)

	assert.Equal(t, "info@studiorossi.it", res.Lead.Email)
	assert.Equal(t, []string{"serp"}, res.EnrichmentSources)
}

func TestEnrich_ScoresAndTierCheck(t *testing.T) {
	mgr := source.NewManager(nil)

	p := NewPipeline(mgr, "IT", WithValidator(offlineValidator()))
	res, err := p.Enrich(context.Background(), model.Lead{
		Name:     "Pizzeria Bella Napoli",
		Phone:    "+390286461234",
		Email:    "info@bellanapoli.it",
		City:     "Milano",
		Country:  "IT",
		Category: "ristorante",
		Source:   "google_places",
	}, quality.TierBasic, nil, Checks{})
	require.NoError(t, err)

	assert.Greater(t, res.Score.QualityScore, 0.0)
	assert.LessOrEqual(t, res.Score.QualityScore, 1.0)
	assert.Equal(t, res.Score.QualityScore, res.Lead.Scores.Quality)
	assert.Equal(t, res.Score.ConfidenceScore, res.Lead.Scores.Confidence)
	assert.Equal(t, res.MeetsTier, res.Score.QualityScore >= 0.4)
	assert.NotEmpty(t, res.Lead.Validation)
}

func TestEnrich_ChecksOverrideTierDepth(t *testing.T) {
	mgr := source.NewManager(nil)
	p := NewPipeline(mgr, "IT", WithValidator(offlineValidator()))

	lead := model.Lead{
		Name:   "Studio Rossi",
		Email:  "info@studiorossi.it",
		Source: "google_places",
	}

	// The basic tier stays offline unless the caller forces the check.
	force := true
	res, err := p.Enrich(context.Background(), lead, quality.TierBasic, nil, Checks{Email: &force})
	require.NoError(t, err)
	assert.Equal(t, "standard", res.Lead.Validation["email"].Method)

	// And a deeper tier's check can be switched off.
	skip := false
	res, err = p.Enrich(context.Background(), lead, quality.TierStandard, nil, Checks{Email: &skip})
	require.NoError(t, err)
	assert.Equal(t, "basic", res.Lead.Validation["email"].Method)

	// Nil leaves the tier default in place.
	res, err = p.Enrich(context.Background(), lead, quality.TierBasic, nil, Checks{})
	require.NoError(t, err)
	assert.Equal(t, "basic", res.Lead.Validation["email"].Method)
}

func TestOverrideLevel(t *testing.T) {
	on, off := true, false
	tests := []struct {
		name  string
		base  validate.Level
		force *bool
		want  validate.Level
	}{
		{"nil keeps base", validate.LevelPremium, nil, validate.LevelPremium},
		{"false drops to basic", validate.LevelPremium, &off, validate.LevelBasic},
		{"true raises basic", validate.LevelBasic, &on, validate.LevelStandard},
		{"true keeps premium", validate.LevelPremium, &on, validate.LevelPremium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, overrideLevel(tt.base, tt.force))
		})
	}
}

func TestEnrichBatch_Positional(t *testing.T) {
	mgr := source.NewManager(nil)

	p := NewPipeline(mgr, "IT", WithValidator(offlineValidator()), WithConcurrency(3))
	leads := []model.Lead{
		{Name: "Alpha", Source: "google_places"},
		{Name: "Beta", Source: "overpass"},
		{Name: "Gamma", Source: "serp"},
	}
	results, err := p.EnrichBatch(context.Background(), leads, quality.TierBasic, nil, Checks{})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "Alpha", results[0].Lead.Name)
	assert.Equal(t, "Beta", results[1].Lead.Name)
	assert.Equal(t, "Gamma", results[2].Lead.Name)
}

func TestSourceConfidence(t *testing.T) {
	assert.InDelta(t, 0.65, sourceConfidence(1), 1e-9)
	assert.InDelta(t, 0.80, sourceConfidence(2), 1e-9)
	assert.InDelta(t, 1.0, sourceConfidence(4), 1e-9)
	assert.InDelta(t, 1.0, sourceConfidence(10), 1e-9)
}
