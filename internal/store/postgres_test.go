package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadforge/leadgen-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_CreateSearch(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO searches`).
		WithArgs(pgxmock.AnyArg(), "plumbers-lombardia", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	req := model.RunRequest{Categories: []string{"plumber"}, Country: "IT", TargetLeads: 50, Tier: "standard"}
	search, err := s.CreateSearch(context.Background(), "plumbers-lombardia", req)
	require.NoError(t, err)
	assert.NotEmpty(t, search.ID)
	assert.Equal(t, "plumbers-lombardia", search.Name)
	assert.Equal(t, req, search.Request)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM runs r JOIN searches s`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	run, err := s.GetRun(context.Background(), "nonexistent-run")
	require.NoError(t, err)
	assert.Nil(t, run)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	reqJSON, err := json.Marshal(model.RunRequest{Categories: []string{"dentist"}, Country: "IT", TargetLeads: 20, Tier: "basic"})
	require.NoError(t, err)
	now := time.Now().UTC()
	step := "enrich"

	mock.ExpectQuery(`FROM runs r JOIN searches s`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "search_id", "request", "status", "progress", "step", "result", "error", "created_at", "updated_at",
		}).AddRow(
			"run-1", "search-1", reqJSON, model.RunStatusEnriching, 70, &step, (*[]byte)(nil), (*string)(nil), now, now,
		))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, "search-1", run.SearchID)
	assert.Equal(t, model.RunStatusEnriching, run.Status)
	assert.Equal(t, 70, run.Progress)
	assert.Equal(t, "enrich", run.Step)
	assert.Equal(t, []string{"dentist"}, run.Request.Categories)
	assert.Nil(t, run.Result)
	assert.Empty(t, run.Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRunProgress(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET progress = GREATEST\(progress, \$1\)`).
		WithArgs(45, "enrich", pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.UpdateRunProgress(context.Background(), "run-1", 45, "enrich")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRunProgress_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET progress = GREATEST\(progress, \$1\)`).
		WithArgs(45, "enrich", pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateRunProgress(context.Background(), "missing", 45, "enrich")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status = \$1, progress = 100`).
		WithArgs(string(model.RunStatusComplete), pgxmock.AnyArg(), pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.CompleteRun(context.Background(), "run-1", &model.RunResult{LeadsDelivered: 42})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FailRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status = \$1, error = \$2`).
		WithArgs(string(model.RunStatusFailed), "all sources exhausted", pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.FailRun(context.Background(), "run-1", "all sources exhausted")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertCompany_Insert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, lead FROM companies WHERE search_id = \$1 AND website = \$2`).
		WithArgs("search-1", "https://mariorossi.it").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO companies`).
		WithArgs(pgxmock.AnyArg(), "search-1", "Mario Rossi SRL", "https://mariorossi.it", "+390212345678", "Milano",
			pgxmock.AnyArg(), 0.9, 0.8, 0.7, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	lead := model.Lead{
		Name: "Mario Rossi SRL", Website: "https://mariorossi.it", Phone: "+390212345678", City: "Milano",
		Scores: model.Scores{Match: 0.9, Confidence: 0.8, Quality: 0.7},
	}
	id, err := s.UpsertCompany(context.Background(), "search-1", lead)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertCompany_MergesExisting(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	stored := model.Lead{
		Name: "Studio Bianchi", Website: "https://studiobianchi.it", Source: "google_places",
		Scores: model.Scores{Match: 0.6, Quality: 0.5},
	}
	storedJSON, err := json.Marshal(stored)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT id, lead FROM companies WHERE search_id = \$1 AND website = \$2`).
		WithArgs("search-1", "https://studiobianchi.it").
		WillReturnRows(pgxmock.NewRows([]string{"id", "lead"}).AddRow("company-7", storedJSON))
	mock.ExpectExec(`UPDATE companies SET name = \$1`).
		WithArgs("Studio Bianchi", "https://studiobianchi.it", "+390687654321", pgxmock.AnyArg(),
			pgxmock.AnyArg(), 0.8, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "company-7").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	incoming := model.Lead{
		Name: "Studio Bianchi", Website: "https://studiobianchi.it", Phone: "+390687654321", Source: "overpass",
		Scores: model.Scores{Match: 0.8, Quality: 0.4},
	}
	id, err := s.UpsertCompany(context.Background(), "search-1", incoming)
	require.NoError(t, err)
	assert.Equal(t, "company-7", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_TopCompanies(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	first, err := json.Marshal(model.Lead{Name: "Alpha", Scores: model.Scores{Match: 0.9}})
	require.NoError(t, err)
	second, err := json.Marshal(model.Lead{Name: "Beta", Scores: model.Scores{Match: 0.7}})
	require.NoError(t, err)

	mock.ExpectQuery(`ORDER BY match_score DESC, confidence_score DESC`).
		WithArgs("search-1", 10).
		WillReturnRows(pgxmock.NewRows([]string{"lead"}).AddRow(first).AddRow(second))

	leads, err := s.TopCompanies(context.Background(), "search-1", 10)
	require.NoError(t, err)
	require.Len(t, leads, 2)
	assert.Equal(t, "Alpha", leads[0].Name)
	assert.Equal(t, "Beta", leads[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AddProvenance(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_company_sources"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_company_sources"},
		[]string{"id", "company_id", "source", "field", "url", "retrieved_at"}).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "company_sources" .+ ON CONFLICT \("company_id", "source", "field"\) DO UPDATE SET`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	err := s.AddProvenance(context.Background(), []model.Provenance{
		{CompanyID: "company-1", Source: "google_places", Field: "phone"},
		{CompanyID: "company-1", Source: "official_website", Field: "email", URL: "https://acme.it/contatti"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompanyKeyClause(t *testing.T) {
	tests := []struct {
		name     string
		lead     model.Lead
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "website wins",
			lead:     model.Lead{Name: "Acme", Website: "https://acme.it", Phone: "+39061234567"},
			wantSQL:  "search_id = $1 AND website = $2",
			wantArgs: []any{"s1", "https://acme.it"},
		},
		{
			name:     "phone next",
			lead:     model.Lead{Name: "Acme", Phone: "+39061234567"},
			wantSQL:  "search_id = $1 AND phone = $2",
			wantArgs: []any{"s1", "+39061234567"},
		},
		{
			name:     "name and city fallback",
			lead:     model.Lead{Name: "Acme SRL", City: "Roma"},
			wantSQL:  "search_id = $1 AND lower(name) = $2 AND lower(city) = $3",
			wantArgs: []any{"s1", "acme srl", "roma"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := companyKeyClause("s1", tt.lead, 1)
			assert.Equal(t, tt.wantSQL, where)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}
