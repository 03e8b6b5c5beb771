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

const paginasAmarillasPage = `<html><body>
<div class="listado-item">
	<h2><a href="/fichas/el-toro">Restaurante El Toro</a></h2>
	<a href="tel:91 123 45 67">91 123 45 67</a>
	<a class="web" href="https://www.eltoro.es">Web</a>
	<div class="direccion">Calle Mayor 5, 28013 Madrid</div>
	<span class="comercial-actividad">Restaurantes</span>
</div>
<div class="listado-item">
	<h2>Bar Paco</h2>
	<a class="web" href="https://www.paginasamarillas.es/fichas/paco">Ficha</a>
</div>
</body></html>`

func TestPaginasAmarillasSearch_ParsesListings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/search")
		assert.Equal(t, "restaurante", r.URL.Query().Get("what"))
		assert.Equal(t, "Madrid", r.URL.Query().Get("where"))
		w.Write([]byte(paginasAmarillasPage)) //nolint:errcheck
	}))
	defer server.Close()

	s := NewPaginasAmarillasScraper(nil, WithPaginasAmarillasURL(server.URL))
	leads, err := s.Search(context.Background(), model.SearchCriteria{
		Query:      "Restaurante",
		Country:    "ES",
		City:       "Madrid",
		MaxResults: 10,
	})
	require.NoError(t, err)
	require.Len(t, leads, 2)

	first := leads[0]
	assert.Equal(t, "Restaurante El Toro", first.Name)
	assert.Equal(t, "+3491 123 45 67", first.Phone)
	assert.Equal(t, "https://www.eltoro.es", first.Website)
	assert.Equal(t, "Calle Mayor 5", first.Address)
	assert.Equal(t, "28013", first.PostalCode)
	assert.Equal(t, "Madrid", first.City)
	assert.Equal(t, "Restaurantes", first.Category)
	assert.Equal(t, "ES", first.Country)
	assert.Equal(t, "paginas_amarillas", first.Source)

	// Internal directory links are not business websites.
	assert.Empty(t, leads[1].Website)
	assert.Equal(t, "Madrid", leads[1].City)
}

func TestPaginasAmarillasSearch_NoCity(t *testing.T) {
	s := NewPaginasAmarillasScraper(nil)
	leads, err := s.Search(context.Background(), model.SearchCriteria{Query: "restaurante"})
	require.NoError(t, err)
	assert.Empty(t, leads)
}

func TestPaginasAmarillasSearch_Blocked(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	s := NewPaginasAmarillasScraper(nil, WithPaginasAmarillasURL(server.URL))
	_, err := s.Search(context.Background(), model.SearchCriteria{
		Query:      "restaurante",
		City:       "Madrid",
		MaxResults: 10,
	})
	require.Error(t, err)
	assert.True(t, resilience.IsBlocked(err))
}
