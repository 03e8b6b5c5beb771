package dedupe

import (
	"testing"

	"github.com/leadforge/leadgen-cli/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAreDuplicates(t *testing.T) {
	d := New()

	tests := []struct {
		name string
		a, b model.Lead
		want bool
	}{
		{
			name: "same domain different format",
			a:    model.Lead{Name: "Acme", Website: "https://www.acme.it"},
			b:    model.Lead{Name: "Acme Srl", Website: "http://acme.it/home"},
			want: true,
		},
		{
			name: "same phone",
			a:    model.Lead{Name: "A", Phone: "+393331234567"},
			b:    model.Lead{Name: "B", Phone: "+393331234567"},
			want: true,
		},
		{
			name: "same normalized name and city",
			a:    model.Lead{Name: "Rossi Impianti S.r.l.", City: "Milano"},
			b:    model.Lead{Name: "rossi impianti srl", City: "MILANO"},
			want: true,
		},
		{
			name: "same name different city",
			a:    model.Lead{Name: "Rossi Impianti", City: "Milano"},
			b:    model.Lead{Name: "Rossi Impianti", City: "Torino"},
			want: false,
		},
		{
			name: "nothing shared",
			a:    model.Lead{Name: "Acme", Phone: "+39111", Website: "acme.it"},
			b:    model.Lead{Name: "Beta", Phone: "+39222", Website: "beta.it"},
			want: false,
		},
		{
			name: "missing fields never match",
			a:    model.Lead{Name: "Acme"},
			b:    model.Lead{Name: "Acme"},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.AreDuplicates(&tt.a, &tt.b))
			// Symmetry.
			assert.Equal(t, tt.want, d.AreDuplicates(&tt.b, &tt.a))
		})
	}
}

func TestMerge_BaseWinsUnlessEmpty(t *testing.T) {
	d := New()
	base := model.Lead{
		Name:   "Acme Srl",
		Phone:  "+39111",
		City:   "Milano",
		Source: "google_places",
	}
	other := model.Lead{
		Name:    "Acme",
		Email:   "info@acme.it",
		Website: "https://acme.it",
		Source:  "business_directory",
	}

	merged := d.Merge(&base, &other)

	// Base keeps its values, gaps fill from other.
	assert.Equal(t, "Acme Srl", merged.Name)
	assert.Equal(t, "+39111", merged.Phone)
	assert.Equal(t, "info@acme.it", merged.Email)
	assert.Equal(t, "https://acme.it", merged.Website)
	assert.ElementsMatch(t, []string{"google_places", "business_directory"}, merged.Sources)
}

func TestMerge_HigherPrioritySourceOverrides(t *testing.T) {
	d := New()
	base := model.Lead{Name: "Acme Directory Listing", Source: "business_directory"}
	other := model.Lead{Name: "Acme Srl", Source: "google_places"}

	merged := d.Merge(&base, &other)
	assert.Equal(t, "Acme Srl", merged.Name)
}

func TestMerge_ScoresTakeMax(t *testing.T) {
	d := New()
	base := model.Lead{Name: "A", Scores: model.Scores{Match: 0.5, Confidence: 0.9}}
	other := model.Lead{Name: "A", Scores: model.Scores{Match: 0.8, Confidence: 0.6}}

	merged := d.Merge(&base, &other)
	assert.Equal(t, 0.8, merged.Scores.Match)
	assert.Equal(t, 0.9, merged.Scores.Confidence)
}

func TestMerge_Monotonic(t *testing.T) {
	// Merging never loses a populated field.
	d := New()
	base := model.Lead{Name: "Acme", Phone: "+39111", Source: "nominatim"}
	other := model.Lead{Name: "Acme Srl", Email: "info@acme.it", Source: "google_places"}

	merged := d.Merge(&base, &other)
	assert.NotEmpty(t, merged.Name)
	assert.NotEmpty(t, merged.Phone)
	assert.NotEmpty(t, merged.Email)
}

func TestMerge_KeywordUnion(t *testing.T) {
	d := New()
	base := model.Lead{Name: "A", Keywords: []string{"pizza", "forno"}}
	other := model.Lead{Name: "A", Keywords: []string{"pizza", "asporto"}}

	merged := d.Merge(&base, &other)
	assert.Equal(t, []string{"asporto", "forno", "pizza"}, merged.Keywords)
}

func TestBatch(t *testing.T) {
	d := New()
	leads := []model.Lead{
		{Name: "Acme Srl", City: "Milano", Phone: "+39111", Source: "google_places"},
		{Name: "acme", Website: "https://acme.it", Phone: "+39111", Source: "business_directory"},
		{Name: "Beta Snc", City: "Torino", Source: "nominatim"},
		{Name: "Acme S.R.L.", City: "milano", Email: "info@acme.it", Source: "nominatim"},
	}

	out := d.Batch(leads)
	require.Len(t, out, 2)

	acme := out[0]
	assert.Equal(t, "Acme Srl", acme.Name)
	assert.Equal(t, "https://acme.it", acme.Website)
	assert.Equal(t, "info@acme.it", acme.Email)
}

func TestBatch_Idempotent(t *testing.T) {
	d := New()
	leads := []model.Lead{
		{Name: "Acme Srl", City: "Milano", Phone: "+39111", Source: "google_places"},
		{Name: "acme", City: "Milano", Source: "nominatim"},
		{Name: "Beta", City: "Torino", Phone: "+39222", Source: "nominatim"},
	}

	once := d.Batch(leads)
	twice := d.Batch(once)
	assert.Equal(t, once, twice)
}

func TestBatch_Empty(t *testing.T) {
	d := New()
	assert.Nil(t, d.Batch(nil))
}
