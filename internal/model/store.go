package model

import "time"

// Search is a stored search definition that runs execute against.
type Search struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Request   RunRequest `json:"request"`
	CreatedAt time.Time  `json:"created_at"`
}

// Provenance records which source supplied one field of a stored
// company.
type Provenance struct {
	CompanyID   string    `json:"company_id"`
	Source      string    `json:"source"`
	Field       string    `json:"field"`
	URL         string    `json:"url,omitempty"`
	RetrievedAt time.Time `json:"retrieved_at"`
}
