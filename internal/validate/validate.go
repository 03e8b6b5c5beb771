// Package validate checks contact fields (phone, email, website) at
// increasing levels of rigor, from free format checks up to network
// verification.
package validate

// Level selects how deep validation goes.
type Level string

const (
	// LevelBasic runs offline format checks only.
	LevelBasic Level = "basic"
	// LevelStandard adds MX lookups and website HTTP checks.
	LevelStandard Level = "standard"
	// LevelPremium adds carrier and mailbox verification.
	LevelPremium Level = "premium"
)

// Result is the outcome of a single validation check.
type Result struct {
	IsValid    bool           `json:"is_valid"`
	Confidence float64        `json:"confidence"`
	Details    map[string]any `json:"details,omitempty"`
	Error      string         `json:"error,omitempty"`
}

func invalid(confidence float64, reason, errMsg string) Result {
	return Result{
		IsValid:    false,
		Confidence: confidence,
		Details:    map[string]any{"reason": reason},
		Error:      errMsg,
	}
}
