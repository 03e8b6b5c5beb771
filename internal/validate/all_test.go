package validate

import (
	"context"
	"testing"

	"github.com/leadforge/leadgen-cli/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAll_BasicStaysOffline(t *testing.T) {
	v := NewValidator("IT")
	v.Email = NewEmailValidatorWithLookup(func(ctx context.Context, domain string) ([]string, error) {
		t.Fatal("basic level must not hit the network")
		return nil, nil
	})

	lead := &model.Lead{
		Phone:   "+39 333 1234567",
		Email:   "info@acme.it",
		Website: "acme.it",
		Country: "IT",
	}
	results := v.ValidateAll(context.Background(), lead, LevelBasic)

	require.Len(t, results, 3)
	assert.True(t, results["phone"].IsValid)
	assert.True(t, results["email"].IsValid)
	assert.True(t, results["website"].IsValid)
}

func TestValidateAll_SkipsMissingFields(t *testing.T) {
	v := NewValidator("IT")
	lead := &model.Lead{Phone: "+39 333 1234567"}

	results := v.ValidateAll(context.Background(), lead, LevelBasic)
	require.Len(t, results, 1)
	assert.Contains(t, results, "phone")
}

func TestValidateFields_PerFieldLevels(t *testing.T) {
	v := NewValidator("IT")
	lookups := 0
	v.Email = NewEmailValidatorWithLookup(func(_ context.Context, _ string) ([]string, error) {
		lookups++
		return []string{"mx1.example.com"}, nil
	})

	lead := &model.Lead{
		Phone:   "+39 333 1234567",
		Email:   "info@acme.it",
		Website: "acme.it",
		Country: "IT",
	}
	results := v.ValidateFields(context.Background(), lead, Levels{
		Phone:   LevelBasic,
		Email:   LevelStandard,
		Website: LevelBasic,
	})

	require.Len(t, results, 3)
	// Only the email check went past the offline format pass.
	assert.Equal(t, 1, lookups)
	assert.True(t, results["phone"].IsValid)
	assert.True(t, results["email"].IsValid)
	assert.True(t, results["website"].IsValid)
}

func TestApplyLevels_RecordsPerFieldMethod(t *testing.T) {
	lead := &model.Lead{Phone: "+39 333 1234567", Email: "info@acme.it"}
	ApplyLevels(lead, map[string]Result{
		"phone": {IsValid: true, Confidence: 0.9},
		"email": {IsValid: true, Confidence: 0.85},
	}, Levels{Phone: LevelBasic, Email: LevelStandard})

	assert.Equal(t, "basic", lead.Validation["phone"].Method)
	assert.Equal(t, "standard", lead.Validation["email"].Method)
}

func TestApply(t *testing.T) {
	lead := &model.Lead{Email: "info@acme.it"}
	Apply(lead, map[string]Result{
		"email": {IsValid: true, Confidence: 0.85},
	}, LevelStandard)

	require.Contains(t, lead.Validation, "email")
	assert.True(t, lead.Validation["email"].Valid)
	assert.Equal(t, 0.85, lead.Validation["email"].Score)
	assert.Equal(t, "standard", lead.Validation["email"].Method)
}
