package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/leadforge/leadgen-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite, for local
// runs without a postgres instance.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures
// WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sqlDB}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS searches (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	request    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	search_id  TEXT NOT NULL REFERENCES searches(id),
	status     TEXT NOT NULL DEFAULT 'queued',
	progress   INTEGER NOT NULL DEFAULT 0,
	step       TEXT,
	result     TEXT,
	error      TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS companies (
	id               TEXT PRIMARY KEY,
	search_id        TEXT NOT NULL REFERENCES searches(id),
	name             TEXT NOT NULL,
	website          TEXT,
	phone            TEXT,
	city             TEXT,
	lead             TEXT NOT NULL,
	match_score      REAL NOT NULL DEFAULT 0,
	confidence_score REAL NOT NULL DEFAULT 0,
	quality_score    REAL NOT NULL DEFAULT 0,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS company_sources (
	id           TEXT PRIMARY KEY,
	company_id   TEXT NOT NULL REFERENCES companies(id),
	source       TEXT NOT NULL,
	field        TEXT NOT NULL,
	url          TEXT,
	retrieved_at DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (company_id, source, field)
);

CREATE INDEX IF NOT EXISTS idx_runs_search_id ON runs(search_id);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_companies_search_id ON companies(search_id);
CREATE INDEX IF NOT EXISTS idx_companies_website ON companies(search_id, website);
CREATE INDEX IF NOT EXISTS idx_companies_phone ON companies(search_id, phone);
CREATE INDEX IF NOT EXISTS idx_company_sources_company_id ON company_sources(company_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateSearch(ctx context.Context, name string, req model.RunRequest) (*model.Search, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal request")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO searches (id, name, request, created_at) VALUES (?, ?, ?, ?)`,
		id, name, string(reqJSON), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert search")
	}

	return &model.Search{ID: id, Name: name, Request: req, CreatedAt: now}, nil
}

func (s *SQLiteStore) GetSearch(ctx context.Context, id string) (*model.Search, error) {
	var sr model.Search
	var reqJSON string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, request, created_at FROM searches WHERE id = ?`,
		id,
	).Scan(&sr.ID, &sr.Name, &reqJSON, &sr.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get search %s", id)
	}
	if err := json.Unmarshal([]byte(reqJSON), &sr.Request); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal request")
	}
	return &sr, nil
}

func (s *SQLiteStore) ListSearches(ctx context.Context) ([]model.Search, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, request, created_at FROM searches ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list searches")
	}
	defer rows.Close()

	var searches []model.Search
	for rows.Next() {
		var sr model.Search
		var reqJSON string
		if err := rows.Scan(&sr.ID, &sr.Name, &reqJSON, &sr.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan search")
		}
		if err := json.Unmarshal([]byte(reqJSON), &sr.Request); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal request")
		}
		searches = append(searches, sr)
	}
	return searches, eris.Wrap(rows.Err(), "sqlite: list searches iterate")
}

func (s *SQLiteStore) CreateRun(ctx context.Context, searchID string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, search_id, status, progress, created_at, updated_at) VALUES (?, ?, ?, 0, ?, ?)`,
		id, searchID, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert run for search %s", searchID)
	}

	return &model.Run{
		ID:        id,
		SearchID:  searchID,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateRunProgress(ctx context.Context, runID string, progress int, step string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET progress = MAX(progress, ?), step = ?, updated_at = ? WHERE id = ?`,
		progress, step, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run progress %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, progress = 100, result = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusComplete), string(resultJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

const sqliteRunSelect = `SELECT r.id, r.search_id, s.request, r.status, r.progress, r.step, r.result, r.error, r.created_at, r.updated_at
 FROM runs r JOIN searches s ON s.id = r.search_id`

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx, sqliteRunSelect+` WHERE r.id = ?`, runID)
	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := sqliteRunSelect + ` WHERE 1=1`
	var args []any

	if filter.SearchID != "" {
		query += ` AND r.search_id = ?`
		args = append(args, filter.SearchID)
	}
	if filter.Status != "" {
		query += ` AND r.status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY r.created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) UpsertCompany(ctx context.Context, searchID string, lead model.Lead) (string, error) {
	where, args := sqliteCompanyKey(searchID, lead)

	var existingID string
	var existingJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, lead FROM companies WHERE `+where, args...,
	).Scan(&existingID, &existingJSON)
	switch {
	case err == nil:
		var stored model.Lead
		if err := json.Unmarshal([]byte(existingJSON), &stored); err != nil {
			return "", eris.Wrap(err, "sqlite: unmarshal stored lead")
		}
		merged := mergeIncoming(stored, lead)
		mergedJSON, err := json.Marshal(merged)
		if err != nil {
			return "", eris.Wrap(err, "sqlite: marshal merged lead")
		}
		_, err = s.db.ExecContext(ctx,
			`UPDATE companies SET name = ?, website = ?, phone = ?, city = ?, lead = ?,
			 match_score = ?, confidence_score = ?, quality_score = ?, updated_at = ?
			 WHERE id = ?`,
			merged.Name, merged.Website, merged.Phone, merged.City, string(mergedJSON),
			merged.Scores.Match, merged.Scores.Confidence, merged.Scores.Quality,
			time.Now().UTC(), existingID,
		)
		if err != nil {
			return "", eris.Wrapf(err, "sqlite: update company %s", existingID)
		}
		return existingID, nil

	case errors.Is(err, sql.ErrNoRows):
		id := uuid.New().String()
		now := time.Now().UTC()
		leadJSON, err := json.Marshal(lead)
		if err != nil {
			return "", eris.Wrap(err, "sqlite: marshal lead")
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO companies (id, search_id, name, website, phone, city, lead, match_score, confidence_score, quality_score, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, searchID, lead.Name, lead.Website, lead.Phone, lead.City, string(leadJSON),
			lead.Scores.Match, lead.Scores.Confidence, lead.Scores.Quality, now, now,
		)
		if err != nil {
			return "", eris.Wrap(err, "sqlite: insert company")
		}
		return id, nil

	default:
		return "", eris.Wrap(err, "sqlite: lookup company")
	}
}

func sqliteCompanyKey(searchID string, lead model.Lead) (string, []any) {
	switch {
	case lead.Website != "":
		return "search_id = ? AND website = ?", []any{searchID, lead.Website}
	case lead.Phone != "":
		return "search_id = ? AND phone = ?", []any{searchID, lead.Phone}
	default:
		return "search_id = ? AND lower(name) = ? AND lower(city) = ?",
			[]any{searchID, strings.ToLower(lead.Name), strings.ToLower(lead.City)}
	}
}

func (s *SQLiteStore) TopCompanies(ctx context.Context, searchID string, limit int) ([]model.Lead, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT lead FROM companies WHERE search_id = ?
		 ORDER BY match_score DESC, confidence_score DESC LIMIT ?`,
		searchID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: top companies")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		var leadJSON string
		if err := rows.Scan(&leadJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan company")
		}
		var lead model.Lead
		if err := json.Unmarshal([]byte(leadJSON), &lead); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal lead")
		}
		leads = append(leads, lead)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: top companies iterate")
}

func (s *SQLiteStore) CountCompanies(ctx context.Context, searchID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM companies WHERE search_id = ?`,
		searchID,
	).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count companies")
}

func (s *SQLiteStore) AddProvenance(ctx context.Context, provRows []model.Provenance) error {
	if len(provRows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO company_sources (id, company_id, source, field, url, retrieved_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (company_id, source, field) DO UPDATE SET url = excluded.url, retrieved_at = excluded.retrieved_at`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare provenance insert")
	}
	defer stmt.Close()

	for _, p := range provRows {
		retrieved := p.RetrievedAt
		if retrieved.IsZero() {
			retrieved = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx, uuid.New().String(), p.CompanyID, p.Source, p.Field, p.URL, retrieved); err != nil {
			return eris.Wrap(err, "sqlite: insert provenance")
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit provenance")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var reqJSON string
	var step, resultJSON, errMsg sql.NullString

	if err := row.Scan(&r.ID, &r.SearchID, &reqJSON, &r.Status, &r.Progress, &step, &resultJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(reqJSON), &r.Request); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal request")
	}
	r.Step = step.String
	r.Error = errMsg.String
	if resultJSON.Valid && resultJSON.String != "" {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), r.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
	}
	return &r, nil
}
