package model

// SearchCriteria describes one search a connector should run.
type SearchCriteria struct {
	Query      string `json:"query"`
	Category   string `json:"category,omitempty"`
	Country    string `json:"country"`
	City       string `json:"city,omitempty"`
	Region     string `json:"region,omitempty"`
	Language   string `json:"language,omitempty"`
	MaxResults int    `json:"max_results,omitempty"`
}

// WithCity returns a copy of the criteria scoped to a single city with
// its own result cap. Used when fanning a country search out over a
// city matrix.
func (c SearchCriteria) WithCity(city string, maxResults int) SearchCriteria {
	out := c
	out.City = city
	out.MaxResults = maxResults
	return out
}
