package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCompanyName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"strips srl", "Rossi Impianti S.r.l.", "rossi impianti"},
		{"strips spa", "Ferrari SpA", "ferrari"},
		{"strips gmbh", "Müller Bau GmbH", "müller bau"},
		{"strips ltd with dot", "Acme Ltd.", "acme"},
		{"punctuation becomes space", "Bar-Trattoria 'Da Luigi'", "bar trattoria da luigi"},
		{"collapses whitespace", "  Studio   Legale  ", "studio legale"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeCompanyName(tt.in))
		})
	}
}

func TestNormalizeCompanyName_SameBusinessConverges(t *testing.T) {
	a := NormalizeCompanyName("Rossi Impianti S.R.L.")
	b := NormalizeCompanyName("rossi impianti srl")
	assert.Equal(t, a, b)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("pizza napoli", "Pizza Napoli"))
	assert.Equal(t, 0.0, Similarity("idraulico", "elettricista"))
	assert.Equal(t, 0.0, Similarity("", "anything"))

	// Shared token out of three distinct.
	got := Similarity("ristorante roma", "pizzeria roma")
	assert.InDelta(t, 1.0/3.0, got, 1e-9)
}
