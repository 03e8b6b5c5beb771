package model

import (
	"strings"
	"time"
)

// RunStatus represents the current state of a lead generation run.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusSearching  RunStatus = "searching"
	RunStatusDeduping   RunStatus = "deduping"
	RunStatusEnriching  RunStatus = "enriching"
	RunStatusValidating RunStatus = "validating"
	RunStatusScoring    RunStatus = "scoring"
	RunStatusStoring    RunStatus = "storing"
	RunStatusComplete   RunStatus = "complete"
	RunStatusFailed     RunStatus = "failed"
)

// SearchProgress is a point-in-time snapshot of a multi-source search.
type SearchProgress struct {
	SourcesTotal     int      `json:"sources_total"`
	SourcesCompleted int      `json:"sources_completed"`
	LeadsFound       int      `json:"leads_found"`
	CurrentSource    string   `json:"current_source,omitempty"`
	Errors           []string `json:"errors,omitempty"`
}

// Run is one pipeline execution for a stored search.
type Run struct {
	ID        string     `json:"id"`
	SearchID  string     `json:"search_id"`
	Request   RunRequest `json:"request"`
	Status    RunStatus  `json:"status"`
	Progress  int        `json:"progress"`
	Step      string     `json:"step,omitempty"`
	Result    *RunResult `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunRequest is what the caller asked the pipeline to do. It is
// immutable once stored on a search.
type RunRequest struct {
	Categories []string `json:"categories"`
	Country    string   `json:"country"`

	// Countries widens the run to extra markets. When set it takes
	// precedence over Country, which stays as the single-market form.
	Countries []string `json:"countries,omitempty"`

	Regions     []string `json:"regions,omitempty"`
	Cities      []string `json:"cities,omitempty"`
	TargetLeads int      `json:"target_leads"`
	Tier        string   `json:"tier"`

	KeywordsInclude []string `json:"keywords_include,omitempty"`
	KeywordsExclude []string `json:"keywords_exclude,omitempty"`

	// Zero thresholds fall back to the scorer defaults. Nil require
	// flags mean required.
	MinMatchScore      float64 `json:"min_match_score,omitempty"`
	MinConfidenceScore float64 `json:"min_confidence_score,omitempty"`
	RequirePhone       *bool   `json:"require_phone,omitempty"`
	RequireWebsite     *bool   `json:"require_website,omitempty"`

	// ValidatePhone and ValidateEmail force network-level contact
	// checks on or off regardless of tier. Nil keeps the tier default.
	ValidatePhone *bool `json:"validate_phone,omitempty"`
	ValidateEmail *bool `json:"validate_email,omitempty"`
}

// CountryList returns the markets the run targets, uppercased, falling
// back to the single Country field.
func (r RunRequest) CountryList() []string {
	src := r.Countries
	if len(src) == 0 && r.Country != "" {
		src = []string{r.Country}
	}
	out := make([]string, 0, len(src))
	for _, c := range src {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// RunResult holds the final outcome of a run.
type RunResult struct {
	LeadsRequested int           `json:"leads_requested"`
	LeadsRaw       int           `json:"leads_raw"`
	LeadsUnique    int           `json:"leads_unique"`
	LeadsDiscarded int           `json:"leads_discarded"`
	LeadsDelivered int           `json:"leads_delivered"`
	SourcesUsed    []string      `json:"sources_used"`
	Stages         []StageResult `json:"stages"`
	Duration       time.Duration `json:"duration"`
	Cost           float64       `json:"cost"`
}

// StageStatus represents the state of a single pipeline stage.
type StageStatus string

const (
	StageStatusRunning  StageStatus = "running"
	StageStatusComplete StageStatus = "complete"
	StageStatusFailed   StageStatus = "failed"
	StageStatusSkipped  StageStatus = "skipped"
)

// StageResult holds the outcome of one pipeline stage.
type StageResult struct {
	Name     string        `json:"name"`
	Status   StageStatus   `json:"status"`
	Duration time.Duration `json:"duration"`
	Leads    int           `json:"leads"`
	Error    string        `json:"error,omitempty"`
}
