package quality

import (
	"testing"

	"github.com/leadforge/leadgen-cli/internal/model"
	"github.com/stretchr/testify/assert"
)

func fullLead() *model.Lead {
	return &model.Lead{
		Name:        "Studio Dentistico Rossi",
		Phone:       "+39 02 12345678",
		Email:       "info@studiorossi.it",
		Website:     "https://studiorossi.it",
		Address:     "Via Roma 10, 20121 Milano MI",
		City:        "Milano",
		Category:    "dentist",
		Description: "Studio dentistico nel centro di Milano, attivo dal 1998.",
		Source:      "google_places",
	}
}

func TestScore_BoundsAndComponents(t *testing.T) {
	s := NewScorer()

	score := s.Score(fullLead(), nil, 0.9, map[string]bool{
		"phone": true, "email": true, "website": true,
	})

	for name, v := range map[string]float64{
		"quality":      score.QualityScore,
		"match":        score.MatchScore,
		"confidence":   score.ConfidenceScore,
		"completeness": score.CompletenessScore,
		"validation":   score.ValidationScore,
	} {
		assert.GreaterOrEqual(t, v, 0.0, name)
		assert.LessOrEqual(t, v, 1.0, name)
	}

	// Fully validated contact fields give a perfect validation score.
	assert.Equal(t, 1.0, score.ValidationScore)
	assert.True(t, score.PhoneValidated)
	assert.Equal(t, TierFromScore(score.QualityScore), score.Tier)
}

func TestScore_EmptyLead(t *testing.T) {
	s := NewScorer()
	score := s.Score(&model.Lead{}, nil, 0.7, nil)

	assert.Equal(t, 0.0, score.CompletenessScore)
	assert.Equal(t, 0.0, score.ValidationScore)
	assert.Equal(t, TierBasic, score.Tier)
}

func TestScore_PartialCreditForUnvalidated(t *testing.T) {
	s := NewScorer()
	lead := fullLead()

	validated := s.Score(lead, nil, 0.9, map[string]bool{
		"phone": true, "email": true, "website": true,
	})
	unvalidated := s.Score(lead, nil, 0.9, nil)

	// Present-but-unverified fields earn exactly half the weight.
	assert.InDelta(t, 0.5, unvalidated.ValidationScore, 1e-9)
	assert.Greater(t, validated.ValidationScore, unvalidated.ValidationScore)
	assert.Greater(t, validated.QualityScore, unvalidated.QualityScore)
}

func TestScore_NoCriteriaIsNeutral(t *testing.T) {
	s := NewScorer()
	score := s.Score(fullLead(), nil, 0.7, nil)
	assert.Equal(t, 0.5, score.MatchScore)

	score = s.Score(fullLead(), &MatchCriteria{}, 0.7, nil)
	assert.Equal(t, 0.5, score.MatchScore)
}

func TestScore_CategoryAndCityMatch(t *testing.T) {
	s := NewScorer()
	criteria := &MatchCriteria{
		Categories: []string{"dentist"},
		Cities:     []string{"Milano"},
	}

	score := s.Score(fullLead(), criteria, 0.9, nil)
	assert.Equal(t, 1.0, score.MatchScore)

	// A lead in the wrong city with the wrong category scores low.
	other := fullLead()
	other.City = "Napoli"
	other.Category = "restaurant"
	score = s.Score(other, criteria, 0.9, nil)
	assert.InDelta(t, 0.3, score.MatchScore, 1e-9)
}

func TestScore_ExcludedKeywordDragsMatchDown(t *testing.T) {
	s := NewScorer()
	lead := fullLead()
	lead.Description = "Studio dentistico, solo ortodonzia pediatrica"

	with := s.Score(lead, &MatchCriteria{KeywordsExclude: []string{"pediatrica"}}, 0.9, nil)
	without := s.Score(lead, &MatchCriteria{KeywordsExclude: []string{"veterinario"}}, 0.9, nil)

	assert.Equal(t, 0.0, with.MatchScore)
	assert.Equal(t, 1.0, without.MatchScore)
}

func TestScore_MoreSourcesMarksEnriched(t *testing.T) {
	s := NewScorer()
	lead := fullLead()
	lead.Sources = []string{"google_places", "official_website"}

	score := s.Score(lead, nil, 0.9, nil)
	assert.True(t, score.Enriched)
	assert.Equal(t, 2, score.SourcesCount)
}

func TestScore_QualityWeighting(t *testing.T) {
	s := NewScorer()
	score := s.Score(fullLead(), nil, 0.9, map[string]bool{
		"phone": true, "email": true, "website": true,
	})

	expected := score.CompletenessScore*0.35 +
		score.ValidationScore*0.30 +
		score.SourceScore*0.20 +
		score.MatchScore*0.15
	assert.InDelta(t, expected, score.QualityScore, 1e-9)

	expectedConfidence := score.SourceScore*0.5 + score.ValidationScore*0.5
	assert.InDelta(t, expectedConfidence, score.ConfidenceScore, 1e-9)
}

func TestMeetsTier(t *testing.T) {
	s := NewScorer()
	assert.True(t, s.MeetsTier(Score{QualityScore: 0.8}, TierPremium))
	assert.False(t, s.MeetsTier(Score{QualityScore: 0.79}, TierPremium))
	assert.True(t, s.MeetsTier(Score{QualityScore: 0.6}, TierStandard))
	assert.True(t, s.MeetsTier(Score{QualityScore: 0.45}, TierBasic))
}

func TestScoreFieldValue_Heuristics(t *testing.T) {
	// Short names get the base credit only, long names max out.
	assert.Equal(t, 0.5, scoreFieldValue("company_name", "Bar"))
	assert.Equal(t, 1.0, scoreFieldValue("company_name", "Studio Dentistico Rossi"))

	assert.Equal(t, 1.0, scoreFieldValue("phone", "+39 02 12345678"))
	assert.Equal(t, 0.5, scoreFieldValue("phone", "12"))

	assert.Equal(t, 1.0, scoreFieldValue("website", "https://acme.it"))
	assert.Equal(t, 0.8, scoreFieldValue("website", "acme.it"))
}

func TestImprovementSuggestions(t *testing.T) {
	s := NewScorer()

	lead := &model.Lead{Name: "Studio Dentistico Rossi", Phone: "+39 02 12345678"}
	score := s.Score(lead, nil, 0.7, nil)

	got := s.ImprovementSuggestions(score, "")
	assert.NotEmpty(t, got)
	assert.LessOrEqual(t, len(got), 5)
	assert.Contains(t, got, `add or complete the "email" field`)
	assert.Contains(t, got, `add or complete the "website" field`)
	// The phone is present but unvalidated, yet the field suggestions
	// alone already fill the cap.
	assert.Len(t, got, 5)
}

func TestImprovementSuggestions_TargetTierGap(t *testing.T) {
	s := NewScorer()

	score := s.Score(fullLead(), nil, 0.5, nil)
	got := s.ImprovementSuggestions(score, TierPremium)

	assert.Contains(t, got, "validate the phone number")
	assert.LessOrEqual(t, len(got), 5)
}

func TestImprovementSuggestions_NoneForStrongLead(t *testing.T) {
	s := NewScorer()

	score := s.Score(fullLead(), nil, 0.95, map[string]bool{
		"phone": true, "email": true, "website": true,
	})
	score.SourcesCount = 3

	assert.Empty(t, s.ImprovementSuggestions(score, TierBasic))
}
