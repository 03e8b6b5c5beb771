package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/leadforge/leadgen-cli/internal/db"
	"github.com/leadforge/leadgen-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection
// for the hot paths of a run.
var preparedStatements = map[string]string{
	"insert_run":      `INSERT INTO runs (id, search_id, status, progress, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
	"update_progress": `UPDATE runs SET progress = GREATEST(progress, $1), step = $2, updated_at = $3 WHERE id = $4`,
	"get_run":         `SELECT r.id, r.search_id, s.request, r.status, r.progress, r.step, r.result, r.error, r.created_at, r.updated_at FROM runs r JOIN searches s ON s.id = r.search_id WHERE r.id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying pool for subsystems that need direct
// query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS searches (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	request    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	search_id  TEXT NOT NULL REFERENCES searches(id),
	status     TEXT NOT NULL DEFAULT 'queued',
	progress   INTEGER NOT NULL DEFAULT 0,
	step       TEXT,
	result     JSONB,
	error      TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS companies (
	id               TEXT PRIMARY KEY,
	search_id        TEXT NOT NULL REFERENCES searches(id),
	name             TEXT NOT NULL,
	website          TEXT,
	phone            TEXT,
	city             TEXT,
	lead             JSONB NOT NULL,
	match_score      DOUBLE PRECISION NOT NULL DEFAULT 0,
	confidence_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	quality_score    DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS company_sources (
	id           TEXT PRIMARY KEY,
	company_id   TEXT NOT NULL REFERENCES companies(id),
	source       TEXT NOT NULL,
	field        TEXT NOT NULL,
	url          TEXT,
	retrieved_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (company_id, source, field)
);

CREATE INDEX IF NOT EXISTS idx_runs_search_id ON runs(search_id);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_companies_search_id ON companies(search_id);
CREATE INDEX IF NOT EXISTS idx_companies_website ON companies(search_id, website);
CREATE INDEX IF NOT EXISTS idx_companies_phone ON companies(search_id, phone);
CREATE INDEX IF NOT EXISTS idx_companies_scores ON companies(search_id, match_score DESC, confidence_score DESC);
CREATE INDEX IF NOT EXISTS idx_company_sources_company_id ON company_sources(company_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateSearch(ctx context.Context, name string, req model.RunRequest) (*model.Search, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal request")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO searches (id, name, request, created_at) VALUES ($1, $2, $3, $4)`,
		id, name, reqJSON, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert search")
	}

	return &model.Search{ID: id, Name: name, Request: req, CreatedAt: now}, nil
}

func (s *PostgresStore) GetSearch(ctx context.Context, id string) (*model.Search, error) {
	var sr model.Search
	var reqJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, name, request, created_at FROM searches WHERE id = $1`,
		id,
	).Scan(&sr.ID, &sr.Name, &reqJSON, &sr.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get search %s", id)
	}
	if err := json.Unmarshal(reqJSON, &sr.Request); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal request")
	}
	return &sr, nil
}

func (s *PostgresStore) ListSearches(ctx context.Context) ([]model.Search, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, request, created_at FROM searches ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list searches")
	}
	defer rows.Close()

	var searches []model.Search
	for rows.Next() {
		var sr model.Search
		var reqJSON []byte
		if err := rows.Scan(&sr.ID, &sr.Name, &reqJSON, &sr.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan search")
		}
		if err := json.Unmarshal(reqJSON, &sr.Request); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal request")
		}
		searches = append(searches, sr)
	}
	return searches, eris.Wrap(rows.Err(), "postgres: list searches iterate")
}

func (s *PostgresStore) CreateRun(ctx context.Context, searchID string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, search_id, status, progress, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, searchID, string(model.RunStatusQueued), 0, now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert run for search %s", searchID)
	}

	return &model.Run{
		ID:        id,
		SearchID:  searchID,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunProgress(ctx context.Context, runID string, progress int, step string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET progress = GREATEST(progress, $1), step = $2, updated_at = $3 WHERE id = $4`,
		progress, step, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run progress %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, progress = 100, result = $2, updated_at = $3 WHERE id = $4`,
		string(model.RunStatusComplete), resultJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(model.RunStatusFailed), errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	var reqJSON []byte
	var step, errMsg *string
	var resultJSON *[]byte

	err := s.pool.QueryRow(ctx,
		`SELECT r.id, r.search_id, s.request, r.status, r.progress, r.step, r.result, r.error, r.created_at, r.updated_at
		 FROM runs r JOIN searches s ON s.id = r.search_id
		 WHERE r.id = $1`,
		runID,
	).Scan(&r.ID, &r.SearchID, &reqJSON, &r.Status, &r.Progress, &step, &resultJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	if err := json.Unmarshal(reqJSON, &r.Request); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal request")
	}
	if step != nil {
		r.Step = *step
	}
	if errMsg != nil {
		r.Error = *errMsg
	}
	if resultJSON != nil {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal(*resultJSON, r.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT r.id, r.search_id, s.request, r.status, r.progress, r.step, r.result, r.error, r.created_at, r.updated_at
	          FROM runs r JOIN searches s ON s.id = r.search_id WHERE true`
	args := []any{}
	argIdx := 1

	if filter.SearchID != "" {
		query += fmt.Sprintf(` AND r.search_id = $%d`, argIdx)
		args = append(args, filter.SearchID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND r.status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY r.created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var reqJSON []byte
		var step, errMsg *string
		var resultJSON *[]byte

		if err := rows.Scan(&r.ID, &r.SearchID, &reqJSON, &r.Status, &r.Progress, &step, &resultJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if err := json.Unmarshal(reqJSON, &r.Request); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal request")
		}
		if step != nil {
			r.Step = *step
		}
		if errMsg != nil {
			r.Error = *errMsg
		}
		if resultJSON != nil {
			r.Result = &model.RunResult{}
			if err := json.Unmarshal(*resultJSON, r.Result); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal result")
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) UpsertCompany(ctx context.Context, searchID string, lead model.Lead) (string, error) {
	where, args := companyKeyClause(searchID, lead, 1)

	var existingID string
	var existingJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, lead FROM companies WHERE `+where, args...,
	).Scan(&existingID, &existingJSON)
	switch {
	case err == nil:
		var stored model.Lead
		if err := json.Unmarshal(existingJSON, &stored); err != nil {
			return "", eris.Wrap(err, "postgres: unmarshal stored lead")
		}
		merged := mergeIncoming(stored, lead)
		mergedJSON, err := json.Marshal(merged)
		if err != nil {
			return "", eris.Wrap(err, "postgres: marshal merged lead")
		}
		_, err = s.pool.Exec(ctx,
			`UPDATE companies SET name = $1, website = $2, phone = $3, city = $4, lead = $5,
			 match_score = $6, confidence_score = $7, quality_score = $8, updated_at = $9
			 WHERE id = $10`,
			merged.Name, merged.Website, merged.Phone, merged.City, mergedJSON,
			merged.Scores.Match, merged.Scores.Confidence, merged.Scores.Quality,
			time.Now().UTC(), existingID,
		)
		if err != nil {
			return "", eris.Wrapf(err, "postgres: update company %s", existingID)
		}
		return existingID, nil

	case errors.Is(err, pgx.ErrNoRows):
		id := uuid.New().String()
		now := time.Now().UTC()
		leadJSON, err := json.Marshal(lead)
		if err != nil {
			return "", eris.Wrap(err, "postgres: marshal lead")
		}
		_, err = s.pool.Exec(ctx,
			`INSERT INTO companies (id, search_id, name, website, phone, city, lead, match_score, confidence_score, quality_score, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			id, searchID, lead.Name, lead.Website, lead.Phone, lead.City, leadJSON,
			lead.Scores.Match, lead.Scores.Confidence, lead.Scores.Quality, now, now,
		)
		if err != nil {
			return "", eris.Wrap(err, "postgres: insert company")
		}
		return id, nil

	default:
		return "", eris.Wrap(err, "postgres: lookup company")
	}
}

// companyKeyClause builds the natural-key WHERE clause for a lead:
// website, else phone, else normalized name and city.
func companyKeyClause(searchID string, lead model.Lead, startIdx int) (string, []any) {
	switch {
	case lead.Website != "":
		return fmt.Sprintf("search_id = $%d AND website = $%d", startIdx, startIdx+1),
			[]any{searchID, lead.Website}
	case lead.Phone != "":
		return fmt.Sprintf("search_id = $%d AND phone = $%d", startIdx, startIdx+1),
			[]any{searchID, lead.Phone}
	default:
		return fmt.Sprintf("search_id = $%d AND lower(name) = $%d AND lower(city) = $%d", startIdx, startIdx+1, startIdx+2),
			[]any{searchID, strings.ToLower(lead.Name), strings.ToLower(lead.City)}
	}
}

func (s *PostgresStore) TopCompanies(ctx context.Context, searchID string, limit int) ([]model.Lead, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT lead FROM companies WHERE search_id = $1
		 ORDER BY match_score DESC, confidence_score DESC LIMIT $2`,
		searchID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: top companies")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		var leadJSON []byte
		if err := rows.Scan(&leadJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan company")
		}
		var lead model.Lead
		if err := json.Unmarshal(leadJSON, &lead); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal lead")
		}
		leads = append(leads, lead)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: top companies iterate")
}

func (s *PostgresStore) CountCompanies(ctx context.Context, searchID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM companies WHERE search_id = $1`,
		searchID,
	).Scan(&count)
	return count, eris.Wrap(err, "postgres: count companies")
}

func (s *PostgresStore) AddProvenance(ctx context.Context, provRows []model.Provenance) error {
	if len(provRows) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(provRows))
	for _, p := range provRows {
		retrieved := p.RetrievedAt
		if retrieved.IsZero() {
			retrieved = time.Now().UTC()
		}
		rows = append(rows, []any{
			uuid.New().String(), p.CompanyID, p.Source, p.Field, p.URL, retrieved,
		})
	}

	// Re-running a search revisits the same company and source pairs,
	// so fold duplicates instead of accumulating rows.
	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "company_sources",
		Columns:      []string{"id", "company_id", "source", "field", "url", "retrieved_at"},
		ConflictKeys: []string{"company_id", "source", "field"},
		UpdateCols:   []string{"url", "retrieved_at"},
	}, rows)
	return eris.Wrap(err, "postgres: add provenance")
}
