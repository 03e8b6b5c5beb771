package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadforge/leadgen-cli/internal/model"
	"github.com/leadforge/leadgen-cli/internal/source"
	"github.com/leadforge/leadgen-cli/internal/store"
)

func newTestRouter(t *testing.T) (http.Handler, store.Store) {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "leadgen.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	mgr := source.Setup(source.SetupConfig{})
	return newRouter(st, mgr), st
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestAPI_Health(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := get(t, h, "/health")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestAPI_Sources(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := get(t, h, "/api/sources")

	require.Equal(t, http.StatusOK, rec.Code)
	var stats source.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Positive(t, stats.Total)
}

func TestAPI_SearchLifecycle(t *testing.T) {
	h, st := newTestRouter(t)
	ctx := context.Background()

	search, err := st.CreateSearch(ctx, "dentisti milano", model.RunRequest{
		Categories:  []string{"dentista"},
		Country:     "IT",
		Cities:      []string{"Milano"},
		TargetLeads: 10,
		Tier:        "standard",
	})
	require.NoError(t, err)

	run, err := st.CreateRun(ctx, search.ID)
	require.NoError(t, err)
	require.NoError(t, st.UpdateRunProgress(ctx, run.ID, 45, "normalize"))

	_, err = st.UpsertCompany(ctx, search.ID, model.Lead{
		Name:    "Studio Dentistico Rossi",
		Phone:   "+390286461234",
		Website: "https://studiorossi.it",
		City:    "Milano",
		Country: "IT",
		Source:  "google_places",
		Scores:  model.Scores{Match: 0.8, Confidence: 0.7},
	})
	require.NoError(t, err)

	rec := get(t, h, "/api/searches")
	require.Equal(t, http.StatusOK, rec.Code)
	var searches []model.Search
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &searches))
	require.Len(t, searches, 1)
	assert.Equal(t, search.ID, searches[0].ID)

	rec = get(t, h, "/api/searches/"+search.ID)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, h, "/api/searches/"+search.ID+"/companies?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	var companies struct {
		Total     int          `json:"total"`
		Companies []model.Lead `json:"companies"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &companies))
	assert.Equal(t, 1, companies.Total)
	require.Len(t, companies.Companies, 1)
	assert.Equal(t, "Studio Dentistico Rossi", companies.Companies[0].Name)

	rec = get(t, h, "/api/searches/"+search.ID+"/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []model.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, 45, runs[0].Progress)

	rec = get(t, h, "/api/runs/"+run.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	var got model.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "normalize", got.Step)
}

func TestAPI_NotFound(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := get(t, h, "/api/runs/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(t, h, "/api/searches/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// cannedSource feeds fixed leads to the preview endpoint without any
// network traffic.
type cannedSource struct {
	name  string
	leads []model.Lead
}

func (s *cannedSource) Config() source.Config {
	return source.Config{
		Name:               s.name,
		Type:               source.TypeAPI,
		Priority:           1,
		Enabled:            true,
		SupportedCountries: []string{"*"},
		Confidence:         0.9,
		MaxResults:         50,
	}
}

func (s *cannedSource) Search(context.Context, model.SearchCriteria) ([]model.Lead, error) {
	return s.leads, nil
}

func (s *cannedSource) Enrich(context.Context, model.Lead) (*model.Lead, error) {
	return nil, nil
}

func (s *cannedSource) HealthCheck(context.Context) error { return nil }

func TestAPI_SearchPreview(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "leadgen.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	mgr := source.NewManager(nil)
	mgr.Register(&cannedSource{name: "canned", leads: []model.Lead{
		{Name: "Studio Dentistico Rossi", City: "Milano", Country: "IT", Source: "canned"},
	}})
	h := newRouter(st, mgr)

	rec := get(t, h, "/api/search/preview?query=dentista&country=it&city=Milano&max_sources=1")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Total int          `json:"total"`
		Leads []model.Lead `json:"leads"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Total)
	require.Len(t, body.Leads, 1)
	assert.Equal(t, "Studio Dentistico Rossi", body.Leads[0].Name)

	rec = get(t, h, "/api/search/preview")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_Estimate(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := get(t, h, "/api/estimate?target=50&tier=premium&country=IT&category=dentista&city=Milano")

	require.Equal(t, http.StatusOK, rec.Code)
	var est struct {
		TargetCount      int     `json:"target_count"`
		Tier             string  `json:"tier"`
		EstimatedResults int     `json:"estimated_results"`
		EstimatedCost    float64 `json:"estimated_cost_credits"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &est))
	assert.Equal(t, 50, est.TargetCount)
	assert.Equal(t, "premium", est.Tier)
	assert.Positive(t, est.EstimatedResults)
	assert.Positive(t, est.EstimatedCost)
}
