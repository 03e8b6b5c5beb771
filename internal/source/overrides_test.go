package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeOverridesFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadOverrides(t *testing.T) {
	path := writeOverridesFile(t, `
google_places:
  priority: 9
  rate_limit: 2.5
serp:
  enabled: false
`)

	overrides, err := LoadOverrides(path)
	require.NoError(t, err)
	require.Len(t, overrides, 2)

	require.NotNil(t, overrides["google_places"].Priority)
	assert.Equal(t, 9, *overrides["google_places"].Priority)
	require.NotNil(t, overrides["google_places"].RateLimit)
	assert.InDelta(t, 2.5, *overrides["google_places"].RateLimit, 1e-9)
	assert.Nil(t, overrides["google_places"].Enabled)

	require.NotNil(t, overrides["serp"].Enabled)
	assert.False(t, *overrides["serp"].Enabled)
}

func TestLoadOverrides_MissingFile(t *testing.T) {
	_, err := LoadOverrides(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadOverrides_BadYAML(t *testing.T) {
	path := writeOverridesFile(t, "{{not yaml")
	_, err := LoadOverrides(path)
	assert.Error(t, err)
}

func TestApplyOverrides(t *testing.T) {
	m := NewManager(nil)
	m.Register(newFakeSource("alpha", 1, []string{"IT"}, 1))
	m.Register(newFakeSource("beta", 2, []string{"IT"}, 1))

	priority := 5
	disabled := false
	m.ApplyOverrides(map[string]Override{
		"alpha":   {Priority: &priority},
		"beta":    {Enabled: &disabled},
		"missing": {Priority: &priority},
	})

	ordered := m.ForCountry("IT")
	require.Len(t, ordered, 1)
	assert.Equal(t, "alpha", ordered[0].Config().Name)
	assert.Equal(t, 5, ordered[0].Config().Priority)
}

func TestApplyOverrides_RateLimit(t *testing.T) {
	m := NewManager(nil)
	m.Register(newFakeSource("alpha", 1, []string{"IT"}, 1))

	limit := 3.0
	m.ApplyOverrides(map[string]Override{"alpha": {RateLimit: &limit}})

	m.mu.RLock()
	defer m.mu.RUnlock()
	require.Contains(t, m.limiters, "alpha")
	assert.InDelta(t, 3.0, float64(m.limiters["alpha"].Limit()), 1e-9)
}
