// Package matcher scores how well a lead fits the campaign's search
// criteria and how much its data can be trusted.
package matcher

import (
	"regexp"
	"strings"

	"github.com/leadforge/leadgen-cli/internal/model"
)

// sourceQuality is the base trust in each connector's data.
var sourceQuality = map[string]float64{
	"google_places":      0.9,
	"official_website":   0.85,
	"business_directory": 0.7,
	"nominatim":          0.6,
}

// Criteria is the campaign filter a lead is scored against. Zero
// thresholds fall back to the defaults in Passes.
type Criteria struct {
	KeywordsInclude []string `json:"keywords_include,omitempty"`
	KeywordsExclude []string `json:"keywords_exclude,omitempty"`
	Categories      []string `json:"categories,omitempty"`
	Regions         []string `json:"regions,omitempty"`
	Cities          []string `json:"cities,omitempty"`

	MinMatchScore      float64 `json:"min_match_score,omitempty"`
	MinConfidenceScore float64 `json:"min_confidence_score,omitempty"`
	RequirePhone       *bool   `json:"require_phone,omitempty"`
	RequireWebsite     *bool   `json:"require_website,omitempty"`
}

// Scorer computes match and confidence scores against fixed criteria.
type Scorer struct {
	criteria Criteria

	keywordsInclude []string
	keywordsExclude []string
	categories      []string
	regions         []string
	cities          []string
}

// NewScorer precomputes lowercase criteria terms.
func NewScorer(criteria Criteria) *Scorer {
	return &Scorer{
		criteria:        criteria,
		keywordsInclude: lowerAll(criteria.KeywordsInclude),
		keywordsExclude: lowerAll(criteria.KeywordsExclude),
		categories:      lowerAll(criteria.Categories),
		regions:         lowerAll(criteria.Regions),
		cities:          lowerAll(criteria.Cities),
	}
}

// MatchScore rates how well a lead matches the criteria, in [0, 1].
// Category carries weight 0.4, keywords 0.3, geography 0.2 and
// presence signals (website, description) 0.1. Any excluded keyword
// found in the lead disqualifies it outright with a score of 0.
func (s *Scorer) MatchScore(lead *model.Lead) float64 {
	searchable := strings.ToLower(strings.TrimSpace(strings.Join([]string{
		lead.Name, lead.Category, lead.Description,
	}, " ")))

	// Excluded keywords veto everything else.
	for _, keyword := range s.keywordsExclude {
		if containsWord(searchable, keyword) {
			return 0
		}
	}

	score := 0.0

	categoryScore := 0.0
	switch {
	case len(s.categories) == 0:
		categoryScore = 0.5
	case lead.Category != "":
		categoryLower := strings.ToLower(lead.Category)
		for _, target := range s.categories {
			if strings.Contains(categoryLower, target) {
				categoryScore = 1.0
				break
			}
		}
	}
	score += categoryScore * 0.4

	keywordScore := 0.5
	if len(s.keywordsInclude) > 0 {
		matched := 0
		for _, keyword := range s.keywordsInclude {
			if containsWord(searchable, keyword) {
				matched++
			}
		}
		keywordScore = float64(matched) / float64(len(s.keywordsInclude))
	}
	score += keywordScore * 0.3

	geoScore := 0.0
	if len(s.regions) == 0 && len(s.cities) == 0 {
		geoScore = 0.5
	} else {
		if lead.Region != "" && len(s.regions) > 0 {
			regionLower := strings.ToLower(lead.Region)
			for _, target := range s.regions {
				if strings.Contains(regionLower, target) {
					geoScore += 0.6
					break
				}
			}
		}
		if lead.City != "" && len(s.cities) > 0 {
			cityLower := strings.ToLower(lead.City)
			for _, target := range s.cities {
				if strings.Contains(cityLower, target) {
					geoScore += 0.4
					break
				}
			}
		}
		if geoScore > 1 {
			geoScore = 1
		}
	}
	score += geoScore * 0.2

	signalScore := 0.0
	if lead.Website != "" {
		signalScore += 0.5
	}
	if lead.Description != "" {
		signalScore += 0.5
	}
	score += signalScore * 0.1

	if score > 1 {
		score = 1
	}
	return score
}

// ConfidenceScore rates data trustworthiness from the originating
// source's track record plus completeness bonuses.
func (s *Scorer) ConfidenceScore(lead *model.Lead) float64 {
	score, ok := sourceQuality[lead.Source]
	if !ok {
		score = 0.5
	}

	if lead.Phone != "" {
		score += 0.05
	}
	if lead.Website != "" {
		score += 0.05
	}
	if lead.Address != "" {
		score += 0.05
	}

	if lead.SourceCount() > 1 {
		score += 0.1
	}

	if score > 1 {
		score = 1
	}
	return score
}

// Passes checks the lead's scores against the campaign's minimums.
// Defaults: match at least 0.4, confidence at least 0.5, phone and
// website both required.
func (s *Scorer) Passes(matchScore, confidenceScore float64, hasPhone, hasWebsite bool) bool {
	minMatch := s.criteria.MinMatchScore
	if minMatch == 0 {
		minMatch = 0.4
	}
	minConfidence := s.criteria.MinConfidenceScore
	if minConfidence == 0 {
		minConfidence = 0.5
	}
	requirePhone := true
	if s.criteria.RequirePhone != nil {
		requirePhone = *s.criteria.RequirePhone
	}
	requireWebsite := true
	if s.criteria.RequireWebsite != nil {
		requireWebsite = *s.criteria.RequireWebsite
	}

	if matchScore < minMatch {
		return false
	}
	if confidenceScore < minConfidence {
		return false
	}
	if requirePhone && !hasPhone {
		return false
	}
	if requireWebsite && !hasWebsite {
		return false
	}
	return true
}

// SourceQuality returns the base trust for a source name, 0.5 for
// unknown sources.
func SourceQuality(source string) float64 {
	if q, ok := sourceQuality[source]; ok {
		return q
	}
	return 0.5
}

func containsWord(text, word string) bool {
	if word == "" {
		return false
	}
	re, err := regexp.Compile(`\b` + regexp.QuoteMeta(word) + `\b`)
	if err != nil {
		return strings.Contains(text, word)
	}
	return re.MatchString(text)
}

func lowerAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
