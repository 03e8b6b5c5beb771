package model

import "time"

// Lead is a single business record as it moves through the pipeline.
// Connectors produce partial leads; dedupe, validation and enrichment
// fill in the rest.
type Lead struct {
	ID          string   `json:"id,omitempty"`
	Name        string   `json:"name"`
	Phone       string   `json:"phone,omitempty"`
	Email       string   `json:"email,omitempty"`
	Website     string   `json:"website,omitempty"`
	Address     string   `json:"address,omitempty"`
	City        string   `json:"city,omitempty"`
	Region      string   `json:"region,omitempty"`
	Country     string   `json:"country,omitempty"`
	PostalCode  string   `json:"postal_code,omitempty"`
	Category    string   `json:"category,omitempty"`
	Description string   `json:"description,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Latitude    float64  `json:"latitude,omitempty"`
	Longitude   float64  `json:"longitude,omitempty"`

	// Source is the connector that first produced the record. Sources
	// accumulates every connector that contributed during merge or
	// enrichment, in contribution order.
	Source         string   `json:"source"`
	SourcePriority int      `json:"source_priority,omitempty"`
	Sources        []string `json:"sources,omitempty"`

	Scores     Scores                     `json:"scores"`
	Validation map[string]FieldValidation `json:"validation,omitempty"`

	FetchedAt time.Time `json:"fetched_at,omitempty"`
}

// Scores holds the per-lead scoring outputs. All values are in [0, 1].
type Scores struct {
	Match        float64 `json:"match"`
	Quality      float64 `json:"quality"`
	Completeness float64 `json:"completeness"`
	Validation   float64 `json:"validation"`
	Confidence   float64 `json:"confidence"`
}

// FieldValidation records the outcome of validating one contact field.
type FieldValidation struct {
	Valid  bool    `json:"valid"`
	Score  float64 `json:"score"`
	Method string  `json:"method"`
	Detail string  `json:"detail,omitempty"`
}

// AddSource appends a contributing source if not already present.
func (l *Lead) AddSource(name string) {
	if name == "" {
		return
	}
	for _, s := range l.Sources {
		if s == name {
			return
		}
	}
	l.Sources = append(l.Sources, name)
}

// SourceCount returns how many distinct sources contributed to the lead.
// The originating source counts even when Sources was never populated.
func (l *Lead) SourceCount() int {
	if len(l.Sources) == 0 {
		if l.Source == "" {
			return 0
		}
		return 1
	}
	return len(l.Sources)
}
