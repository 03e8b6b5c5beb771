package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadforge/leadgen-cli/internal/model"
	"github.com/leadforge/leadgen-cli/internal/resilience"
)

const pagesJaunesPage = `<html><body>
<li class="bi-bloc">
	<div class="bi-denomination"><h3>Boulangerie Martin</h3></div>
	<a href="tel:01 42 36 00 00">01 42 36 00 00</a>
	<a class="bi-site-internet" href="https://www.boulangerie-martin.fr">Site internet</a>
	<div class="bi-adresse">12 rue de Rivoli, 75004 Paris</div>
	<span class="bi-activites">Boulangeries-pâtisseries</span>
</li>
<li class="bi-bloc">
	<h3>Pâtisserie Dupont</h3>
	<a class="bi-site-internet" href="https://www.pagesjaunes.fr/pros/dupont">Voir la fiche</a>
</li>
</body></html>`

func TestPagesJaunesSearch_ParsesListings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/annuaire/chercherlespros")
		assert.Equal(t, "boulangerie", r.URL.Query().Get("quoiqui"))
		assert.Equal(t, "Paris", r.URL.Query().Get("ou"))
		w.Write([]byte(pagesJaunesPage)) //nolint:errcheck
	}))
	defer server.Close()

	s := NewPagesJaunesScraper(nil, WithPagesJaunesURL(server.URL))
	leads, err := s.Search(context.Background(), model.SearchCriteria{
		Query:      "Boulangerie",
		Country:    "FR",
		City:       "Paris",
		MaxResults: 10,
	})
	require.NoError(t, err)
	require.Len(t, leads, 2)

	first := leads[0]
	assert.Equal(t, "Boulangerie Martin", first.Name)
	assert.Equal(t, "+331 42 36 00 00", first.Phone)
	assert.Equal(t, "https://www.boulangerie-martin.fr", first.Website)
	assert.Equal(t, "12 rue de Rivoli", first.Address)
	assert.Equal(t, "75004", first.PostalCode)
	assert.Equal(t, "Paris", first.City)
	assert.Equal(t, "Boulangeries-pâtisseries", first.Category)
	assert.Equal(t, "FR", first.Country)
	assert.Equal(t, "pages_jaunes", first.Source)

	// Internal directory links are not business websites.
	assert.Empty(t, leads[1].Website)
	assert.Equal(t, "Paris", leads[1].City)
}

func TestPagesJaunesSearch_NoCity(t *testing.T) {
	s := NewPagesJaunesScraper(nil)
	leads, err := s.Search(context.Background(), model.SearchCriteria{Query: "boulangerie"})
	require.NoError(t, err)
	assert.Empty(t, leads)
}

func TestPagesJaunesSearch_Blocked(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	s := NewPagesJaunesScraper(nil, WithPagesJaunesURL(server.URL))
	_, err := s.Search(context.Background(), model.SearchCriteria{
		Query:      "boulangerie",
		City:       "Paris",
		MaxResults: 10,
	})
	require.Error(t, err)
	assert.True(t, resilience.IsBlocked(err))
}
