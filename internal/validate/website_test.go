package validate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWebsiteValidateFormat(t *testing.T) {
	v := NewWebsiteValidator()

	t.Run("company domain", func(t *testing.T) {
		got := v.ValidateFormat("acme.it")
		assert.True(t, got.IsValid)
		assert.Equal(t, 0.7, got.Confidence)
		assert.Equal(t, "https://acme.it", got.Details["url"])
	})

	t.Run("generic platform flagged", func(t *testing.T) {
		got := v.ValidateFormat("https://facebook.com/acmepage")
		assert.True(t, got.IsValid)
		assert.Equal(t, 0.5, got.Confidence)
		assert.Equal(t, "generic_platform", got.Details["warning"])
	})

	t.Run("no tld", func(t *testing.T) {
		got := v.ValidateFormat("localhost")
		assert.False(t, got.IsValid)
	})
}

func TestWebsiteValidateHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.WriteHeader(http.StatusOK)
		case "/gone":
			w.WriteHeader(http.StatusNotFound)
		case "/moved":
			http.Redirect(w, r, "/ok", http.StatusMovedPermanently)
		}
	}))
	defer srv.Close()

	v := &WebsiteValidator{Client: srv.Client()}

	t.Run("reachable", func(t *testing.T) {
		got := v.ValidateHTTP(context.Background(), srv.URL+"/ok")
		assert.True(t, got.IsValid)
		assert.Equal(t, 0.95, got.Confidence)
		assert.Equal(t, 200, got.Details["status_code"])
	})

	t.Run("error status", func(t *testing.T) {
		got := v.ValidateHTTP(context.Background(), srv.URL+"/gone")
		assert.False(t, got.IsValid)
		assert.Equal(t, 0.3, got.Confidence)
	})

	t.Run("redirect followed", func(t *testing.T) {
		got := v.ValidateHTTP(context.Background(), srv.URL+"/moved")
		assert.True(t, got.IsValid)
		assert.Equal(t, true, got.Details["redirected"])
	})
}

func TestWebsiteValidateSSL(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	v := &WebsiteValidator{Client: srv.Client()}
	got := v.ValidateSSL(context.Background(), srv.URL)
	assert.True(t, got.IsValid)
	assert.Equal(t, 0.98, got.Confidence)
	assert.Equal(t, true, got.Details["ssl_valid"])
}
