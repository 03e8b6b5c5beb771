package source

import (
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

// Override adjusts a registered connector's runtime settings without
// rebuilding it. Nil fields keep the connector's own value.
type Override struct {
	Priority   *int     `yaml:"priority"`
	Enabled    *bool    `yaml:"enabled"`
	RateLimit  *float64 `yaml:"rate_limit"`
	MaxResults *int     `yaml:"max_results"`
	Confidence *float64 `yaml:"confidence"`
}

// LoadOverrides reads a yaml file mapping connector names to
// overrides:
//
//	google_places:
//	  priority: 1
//	serp:
//	  enabled: false
func LoadOverrides(path string) (map[string]Override, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "source: read overrides %s", path)
	}
	var out map[string]Override
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, eris.Wrapf(err, "source: parse overrides %s", path)
	}
	return out, nil
}

// overrideSource wraps a connector with a replaced config.
type overrideSource struct {
	Source
	cfg Config
}

func (o *overrideSource) Config() Config { return o.cfg }

// ApplyOverrides rewrites the config of registered connectors. Names
// that match nothing are logged and skipped.
func (m *Manager) ApplyOverrides(overrides map[string]Override) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, o := range overrides {
		s, ok := m.sources[name]
		if !ok {
			m.log.Warn("override for unknown source", zap.String("source", name))
			continue
		}

		cfg := s.Config()
		if o.Priority != nil {
			cfg.Priority = *o.Priority
		}
		if o.Enabled != nil {
			cfg.Enabled = *o.Enabled
		}
		if o.MaxResults != nil {
			cfg.MaxResults = *o.MaxResults
		}
		if o.Confidence != nil {
			cfg.Confidence = *o.Confidence
		}
		if o.RateLimit != nil {
			cfg.RateLimit = *o.RateLimit
			if cfg.RateLimit > 0 {
				m.limiters[name] = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
			} else {
				delete(m.limiters, name)
			}
		}

		m.sources[name] = &overrideSource{Source: s, cfg: cfg}
		m.log.Info("source override applied", zap.String("source", name))
	}
}
