package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/leadforge/leadgen-cli/internal/model"
	"github.com/leadforge/leadgen-cli/internal/quality"
	"github.com/leadforge/leadgen-cli/internal/resilience"
	"github.com/leadforge/leadgen-cli/internal/source"
	"github.com/leadforge/leadgen-cli/internal/store"
)

// newRouter builds the read-only API. Runs are started from the CLI,
// the server only reports on searches, runs and delivered companies.
func newRouter(st store.Store, sources *source.Manager) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/sources", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, sources.Statistics())
		})
		r.Get("/sources/health", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, sources.HealthCheckAll(req.Context()))
		})
		r.Get("/sources/failures", func(w http.ResponseWriter, req *http.Request) {
			q := req.URL.Query()
			limit, _ := strconv.Atoi(q.Get("limit"))
			writeJSON(w, http.StatusOK, sources.DeadLetters(resilience.DLQFilter{
				Source:    q.Get("source"),
				ErrorType: q.Get("error_type"),
				Limit:     limit,
			}))
		})
		r.Get("/proxies", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, sources.Proxies().Statistics())
		})

		r.Get("/searches", func(w http.ResponseWriter, req *http.Request) {
			searches, err := st.ListSearches(req.Context())
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, searches)
		})
		r.Get("/searches/{searchID}", func(w http.ResponseWriter, req *http.Request) {
			search, err := st.GetSearch(req.Context(), chi.URLParam(req, "searchID"))
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			if search == nil {
				http.Error(w, `{"error":"search not found"}`, http.StatusNotFound)
				return
			}
			writeJSON(w, http.StatusOK, search)
		})
		r.Get("/searches/{searchID}/companies", func(w http.ResponseWriter, req *http.Request) {
			searchID := chi.URLParam(req, "searchID")
			limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
			if limit <= 0 {
				limit = 50
			}

			companies, err := st.TopCompanies(req.Context(), searchID, limit)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			total, err := st.CountCompanies(req.Context(), searchID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, struct {
				Total     int          `json:"total"`
				Companies []model.Lead `json:"companies"`
			}{total, companies})
		})
		r.Get("/searches/{searchID}/runs", func(w http.ResponseWriter, req *http.Request) {
			runs, err := st.ListRuns(req.Context(), store.RunFilter{
				SearchID: chi.URLParam(req, "searchID"),
			})
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, runs)
		})

		r.Get("/runs/{runID}", func(w http.ResponseWriter, req *http.Request) {
			run, err := st.GetRun(req.Context(), chi.URLParam(req, "runID"))
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			if run == nil {
				http.Error(w, `{"error":"run not found"}`, http.StatusNotFound)
				return
			}
			writeJSON(w, http.StatusOK, run)
		})

		// A live parallel fan-out across the highest-priority sources,
		// without persisting anything. Useful for checking coverage
		// before committing to a full run.
		r.Get("/search/preview", func(w http.ResponseWriter, req *http.Request) {
			q := req.URL.Query()
			query := q.Get("query")
			if query == "" {
				http.Error(w, `{"error":"query is required"}`, http.StatusBadRequest)
				return
			}
			country := strings.ToUpper(q.Get("country"))
			if country == "" {
				country = "IT"
			}
			limit, _ := strconv.Atoi(q.Get("limit"))
			if limit <= 0 {
				limit = 20
			}
			maxSources, _ := strconv.Atoi(q.Get("max_sources"))

			leads, err := sources.SearchAll(req.Context(), model.SearchCriteria{
				Query:      query,
				Country:    country,
				City:       q.Get("city"),
				Language:   q.Get("language"),
				MaxResults: limit,
			}, maxSources, nil)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, struct {
				Total int          `json:"total"`
				Leads []model.Lead `json:"leads"`
			}{len(leads), leads})
		})

		r.Get("/estimate", func(w http.ResponseWriter, req *http.Request) {
			q := req.URL.Query()
			target, _ := strconv.Atoi(q.Get("target"))
			if target <= 0 {
				target = 20
			}
			est := quality.EstimateSearch(quality.EstimateRequest{
				TargetCount: target,
				Tier:        quality.Tier(q.Get("tier")),
				Country:     q.Get("country"),
				Category:    q.Get("category"),
				City:        q.Get("city"),
				Region:      q.Get("region"),
			})
			writeJSON(w, http.StatusOK, est)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	zap.L().Error("request failed", zap.Error(err))
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
