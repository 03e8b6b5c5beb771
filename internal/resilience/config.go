package resilience

import (
	"time"
)

// SourceRetry builds the retry policy a connector applies to one
// operation. attempts comes from the connector's configured retry
// count; zero or negative keeps the default.
func SourceRetry(source, op string, attempts int) RetryConfig {
	cfg := DefaultRetryConfig()
	if attempts > 0 {
		cfg.MaxAttempts = attempts
	}
	cfg.OnRetry = RetryLogger(source, op)
	return cfg
}

// BreakerConfig builds a circuit breaker config from application
// settings, keeping defaults for unset values.
func BreakerConfig(failureThreshold int, resetTimeout time.Duration) CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig()
	if failureThreshold > 0 {
		cfg.FailureThreshold = failureThreshold
	}
	if resetTimeout > 0 {
		cfg.ResetTimeout = resetTimeout
	}
	return cfg
}
