package quality

import (
	"fmt"
	"strings"

	"github.com/leadforge/leadgen-cli/internal/model"
)

// Field weights for the completeness component.
var fieldWeights = map[string]float64{
	"company_name": 0.15,
	"phone":        0.20,
	"email":        0.15,
	"website":      0.15,
	"address":      0.10,
	"city":         0.10,
	"category":     0.10,
	"description":  0.05,
}

// Weights for the validation component. Only fields the lead actually
// has count toward the denominator.
var validationWeights = map[string]float64{
	"phone":   0.4,
	"email":   0.3,
	"website": 0.3,
}

// Score is the detailed scoring breakdown for one lead.
type Score struct {
	QualityScore    float64 `json:"quality_score"`
	MatchScore      float64 `json:"match_score"`
	ConfidenceScore float64 `json:"confidence_score"`

	CompletenessScore float64 `json:"completeness_score"`
	ValidationScore   float64 `json:"validation_score"`
	SourceScore       float64 `json:"source_score"`

	FieldScores map[string]float64 `json:"field_scores"`

	PhoneValidated   bool `json:"phone_validated"`
	EmailValidated   bool `json:"email_validated"`
	WebsiteValidated bool `json:"website_validated"`

	SourcesCount int  `json:"sources_count"`
	Enriched     bool `json:"enriched"`
	Tier         Tier `json:"tier"`
}

// MatchCriteria is what the caller searched for, used for the match
// component of the score.
type MatchCriteria struct {
	Categories      []string
	Cities          []string
	Regions         []string
	KeywordsInclude []string
	KeywordsExclude []string
}

func (c *MatchCriteria) empty() bool {
	return c == nil || (len(c.Categories) == 0 && len(c.Cities) == 0 &&
		len(c.Regions) == 0 && len(c.KeywordsInclude) == 0 && len(c.KeywordsExclude) == 0)
}

// Scorer combines completeness, validation, source reliability and
// criteria match into the overall quality score.
type Scorer struct{}

// NewScorer returns a quality scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score computes the full breakdown for a lead. sourceConfidence is
// the trust in where the data came from; validated marks which contact
// fields passed validation.
func (s *Scorer) Score(lead *model.Lead, criteria *MatchCriteria, sourceConfidence float64, validated map[string]bool) Score {
	result := Score{FieldScores: make(map[string]float64)}

	result.CompletenessScore = s.completeness(lead, result.FieldScores)
	result.ValidationScore = s.validation(lead, validated)
	result.PhoneValidated = validated["phone"]
	result.EmailValidated = validated["email"]
	result.WebsiteValidated = validated["website"]

	result.SourceScore = sourceConfidence
	result.SourcesCount = lead.SourceCount()
	if result.SourcesCount == 0 {
		result.SourcesCount = 1
	}

	if criteria.empty() {
		result.MatchScore = 0.5
	} else {
		result.MatchScore = s.match(lead, criteria)
	}

	result.QualityScore = result.CompletenessScore*0.35 +
		result.ValidationScore*0.30 +
		result.SourceScore*0.20 +
		result.MatchScore*0.15

	result.ConfidenceScore = result.SourceScore*0.5 + result.ValidationScore*0.5

	result.Tier = TierFromScore(result.QualityScore)
	result.Enriched = result.SourcesCount > 1

	return result
}

// MeetsTier reports whether the quality score reaches the floor of the
// given tier.
func (s *Scorer) MeetsTier(score Score, tier Tier) bool {
	return score.QualityScore >= ConfigForTier(tier).MinScore
}

// ImprovementSuggestions lists concrete actions that would raise the
// lead's quality score, at most five, most impactful first. targetTier
// may be empty.
func (s *Scorer) ImprovementSuggestions(score Score, targetTier Tier) []string {
	var out []string

	for _, field := range []string{"company_name", "phone", "email", "website", "address", "city", "category", "description"} {
		if score.FieldScores[field] < 0.5 {
			out = append(out, fmt.Sprintf("add or complete the %q field", field))
		}
	}

	if !score.PhoneValidated && score.FieldScores["phone"] > 0 {
		out = append(out, "validate the phone number")
	}
	if !score.EmailValidated && score.FieldScores["email"] > 0 {
		out = append(out, "validate the email address")
	}
	if !score.WebsiteValidated && score.FieldScores["website"] > 0 {
		out = append(out, "verify the website")
	}

	if score.SourcesCount < 2 {
		out = append(out, "enrich from additional sources")
	}

	if targetTier != "" {
		if gap := ConfigForTier(targetTier).MinScore - score.QualityScore; gap > 0 {
			out = append(out, fmt.Sprintf("raise the quality score by %.0f%% to reach the %s tier", gap*100, targetTier))
		}
	}

	if len(out) > 5 {
		out = out[:5]
	}
	return out
}

func (s *Scorer) completeness(lead *model.Lead, fieldScores map[string]float64) float64 {
	values := map[string]string{
		"company_name": lead.Name,
		"phone":        lead.Phone,
		"email":        lead.Email,
		"website":      lead.Website,
		"address":      lead.Address,
		"city":         lead.City,
		"category":     lead.Category,
		"description":  lead.Description,
	}

	var totalWeight, weightedSum float64
	for field, weight := range fieldWeights {
		totalWeight += weight
		value := strings.TrimSpace(values[field])
		if value == "" {
			fieldScores[field] = 0
			continue
		}
		score := scoreFieldValue(field, value)
		fieldScores[field] = score
		weightedSum += weight * score
	}
	if totalWeight == 0 {
		return 0
	}
	return weightedSum / totalWeight
}

// scoreFieldValue grades a present value. Everything starts at 0.5 and
// earns up to another 0.5 from field-specific heuristics.
func scoreFieldValue(field, value string) float64 {
	score := 0.5

	switch field {
	case "company_name":
		if len(value) >= 5 {
			score += 0.3
		}
		if len(value) >= 15 {
			score += 0.2
		}
	case "phone":
		digits := 0
		for _, r := range value {
			if r >= '0' && r <= '9' {
				digits++
			}
		}
		if digits >= 8 && digits <= 15 {
			score += 0.5
		}
	case "email":
		if at := strings.LastIndex(value, "@"); at >= 0 && strings.Contains(value[at+1:], ".") {
			score += 0.5
		}
	case "website":
		if strings.Contains(value, ".") {
			score += 0.3
		}
		if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
			score += 0.2
		}
	case "address":
		if len(value) >= 10 {
			score += 0.3
		}
		if len(value) >= 30 {
			score += 0.2
		}
	case "city", "category":
		if len(value) >= 3 {
			score += 0.5
		}
	case "description":
		if len(value) >= 20 {
			score += 0.3
		}
		if len(value) >= 100 {
			score += 0.2
		}
	}

	if score > 1 {
		score = 1
	}
	return score
}

func (s *Scorer) validation(lead *model.Lead, validated map[string]bool) float64 {
	values := map[string]string{
		"phone":   lead.Phone,
		"email":   lead.Email,
		"website": lead.Website,
	}

	var totalWeight, weightedSum float64
	for field, weight := range validationWeights {
		if strings.TrimSpace(values[field]) == "" {
			continue
		}
		totalWeight += weight
		if validated[field] {
			weightedSum += weight
		} else {
			// Half credit for a value nobody has verified yet.
			weightedSum += weight * 0.5
		}
	}
	if totalWeight == 0 {
		return 0
	}
	return weightedSum / totalWeight
}

func (s *Scorer) match(lead *model.Lead, criteria *MatchCriteria) float64 {
	var scores []float64

	if len(criteria.Categories) > 0 {
		category := strings.ToLower(lead.Category)
		matched := 0.3
		for _, cat := range criteria.Categories {
			if strings.Contains(category, strings.ToLower(cat)) {
				matched = 1.0
				break
			}
		}
		scores = append(scores, matched)
	}

	if len(criteria.Cities) > 0 {
		city := strings.ToLower(lead.City)
		matched := 0.3
		for _, c := range criteria.Cities {
			cl := strings.ToLower(c)
			if (city != "" && strings.Contains(cl, city)) || strings.Contains(city, cl) {
				matched = 1.0
				break
			}
		}
		scores = append(scores, matched)
	} else if len(criteria.Regions) > 0 {
		region := strings.ToLower(lead.Region)
		matched := 0.5
		for _, r := range criteria.Regions {
			if strings.Contains(region, strings.ToLower(r)) {
				matched = 1.0
				break
			}
		}
		scores = append(scores, matched)
	}

	if len(criteria.KeywordsInclude) > 0 {
		text := leadText(lead)
		matchCount := 0
		for _, kw := range criteria.KeywordsInclude {
			if strings.Contains(text, strings.ToLower(kw)) {
				matchCount++
			}
		}
		scores = append(scores, float64(matchCount)/float64(len(criteria.KeywordsInclude)))
	}

	if len(criteria.KeywordsExclude) > 0 {
		text := leadText(lead)
		excluded := false
		for _, kw := range criteria.KeywordsExclude {
			if strings.Contains(text, strings.ToLower(kw)) {
				excluded = true
				break
			}
		}
		if excluded {
			scores = append(scores, 0)
		} else {
			scores = append(scores, 1)
		}
	}

	if len(scores) == 0 {
		return 0.5
	}
	var sum float64
	for _, v := range scores {
		sum += v
	}
	return sum / float64(len(scores))
}

func leadText(lead *model.Lead) string {
	parts := []string{
		lead.Name, lead.Category, lead.Description, lead.Address,
		lead.City, lead.Region, lead.Website, lead.Email,
	}
	parts = append(parts, lead.Keywords...)
	return strings.ToLower(strings.Join(parts, " "))
}
