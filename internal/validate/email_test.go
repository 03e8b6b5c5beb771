package validate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailValidateFormat(t *testing.T) {
	v := NewEmailValidator()

	tests := []struct {
		name       string
		email      string
		valid      bool
		confidence float64
	}{
		{"clean address", "info@acme.it", true, 0.7},
		{"uppercase normalized", "INFO@ACME.IT", true, 0.7},
		{"bad shape", "not-an-email", false, 0.0},
		{"disposable domain", "user@mailinator.com", false, 0.0},
		{"typo domain", "user@gmial.com", false, 0.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.ValidateFormat(tt.email)
			assert.Equal(t, tt.valid, got.IsValid)
			assert.Equal(t, tt.confidence, got.Confidence)
		})
	}
}

func TestEmailValidateFormat_TypoSuggestion(t *testing.T) {
	v := NewEmailValidator()
	got := v.ValidateFormat("mario@gmial.com")
	assert.Equal(t, "mario@gmail.com", got.Details["suggested"])
}

func TestEmailValidateMX(t *testing.T) {
	lookups := 0
	v := NewEmailValidatorWithLookup(func(ctx context.Context, domain string) ([]string, error) {
		lookups++
		if domain == "acme.it" {
			return []string{"mx1.acme.it", "mx2.acme.it"}, nil
		}
		return nil, errors.New("no such domain")
	})

	got := v.ValidateMX(context.Background(), "info@acme.it")
	require.True(t, got.IsValid)
	assert.Equal(t, 0.85, got.Confidence)
	assert.Equal(t, []string{"mx1.acme.it", "mx2.acme.it"}, got.Details["mx_records"])

	// Second address on the same domain hits the cache.
	v.ValidateMX(context.Background(), "sales@acme.it")
	assert.Equal(t, 1, lookups)

	got = v.ValidateMX(context.Background(), "info@nomx.example")
	assert.False(t, got.IsValid)
	assert.Equal(t, 0.2, got.Confidence)
}

func TestEmailValidateSMTP_FallsBackToMX(t *testing.T) {
	v := NewEmailValidatorWithLookup(func(ctx context.Context, domain string) ([]string, error) {
		return []string{"mx.acme.it"}, nil
	})

	got := v.ValidateSMTP(context.Background(), "info@acme.it")
	assert.True(t, got.IsValid)
	assert.Equal(t, 0.85, got.Confidence)
	assert.Equal(t, "skipped", got.Details["smtp_check"])
}
