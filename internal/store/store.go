// Package store persists searches, runs and delivered companies in
// postgres or sqlite.
package store

import (
	"context"

	"github.com/leadforge/leadgen-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	SearchID string          `json:"search_id,omitempty"`
	Status   model.RunStatus `json:"status,omitempty"`
	Limit    int             `json:"limit,omitempty"`
	Offset   int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the lead pipeline.
type Store interface {
	// Searches
	CreateSearch(ctx context.Context, name string, req model.RunRequest) (*model.Search, error)
	GetSearch(ctx context.Context, id string) (*model.Search, error)
	ListSearches(ctx context.Context) ([]model.Search, error)

	// Runs. Progress updates are monotonic: a lower value than the
	// stored one is ignored.
	CreateRun(ctx context.Context, searchID string) (*model.Run, error)
	UpdateRunProgress(ctx context.Context, runID string, progress int, step string) error
	CompleteRun(ctx context.Context, runID string, result *model.RunResult) error
	FailRun(ctx context.Context, runID string, errMsg string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Companies. Upsert keys on website, falling back to phone, then
	// normalized name+city, always scoped to the search.
	UpsertCompany(ctx context.Context, searchID string, lead model.Lead) (string, error)
	TopCompanies(ctx context.Context, searchID string, limit int) ([]model.Lead, error)
	CountCompanies(ctx context.Context, searchID string) (int, error)

	// Source provenance
	AddProvenance(ctx context.Context, rows []model.Provenance) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// mergeIncoming folds an incoming lead into the stored one. Incoming
// non-empty fields win, scores take the maximum.
func mergeIncoming(stored, incoming model.Lead) model.Lead {
	out := stored
	out.Name = incoming.Name
	if incoming.Phone != "" {
		out.Phone = incoming.Phone
	}
	if incoming.Email != "" {
		out.Email = incoming.Email
	}
	if incoming.Website != "" {
		out.Website = incoming.Website
	}
	if incoming.Address != "" {
		out.Address = incoming.Address
	}
	if incoming.PostalCode != "" {
		out.PostalCode = incoming.PostalCode
	}
	if incoming.City != "" {
		out.City = incoming.City
	}
	if incoming.Region != "" {
		out.Region = incoming.Region
	}
	if incoming.Country != "" {
		out.Country = incoming.Country
	}
	if incoming.Category != "" {
		out.Category = incoming.Category
	}
	if incoming.Description != "" {
		out.Description = incoming.Description
	}
	out.Scores.Match = max(out.Scores.Match, incoming.Scores.Match)
	out.Scores.Quality = max(out.Scores.Quality, incoming.Scores.Quality)
	out.Scores.Completeness = max(out.Scores.Completeness, incoming.Scores.Completeness)
	out.Scores.Validation = max(out.Scores.Validation, incoming.Scores.Validation)
	out.Scores.Confidence = max(out.Scores.Confidence, incoming.Scores.Confidence)
	out.AddSource(out.Source)
	for _, s := range incoming.Sources {
		out.AddSource(s)
	}
	if incoming.Source != "" {
		out.AddSource(incoming.Source)
	}
	return out
}
