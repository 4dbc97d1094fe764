package resilience

import (
	"time"
)

// Config is the resilience section of the application config.
type Config struct {
	RetryMaxAttempts      int     `yaml:"retry_max_attempts" mapstructure:"retry_max_attempts"`
	RetryInitialBackoffMs int     `yaml:"retry_initial_backoff_ms" mapstructure:"retry_initial_backoff_ms"`
	RetryMaxBackoffMs     int     `yaml:"retry_max_backoff_ms" mapstructure:"retry_max_backoff_ms"`
	RetryJitter           float64 `yaml:"retry_jitter" mapstructure:"retry_jitter"`
	BreakerThreshold      int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs      int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
	CooldownSecs          int     `yaml:"cooldown_secs" mapstructure:"cooldown_secs"`
}

// Retry converts config values to a RetryConfig. Zero values keep defaults.
func (c Config) Retry() RetryConfig {
	cfg := DefaultRetryConfig()
	if c.RetryMaxAttempts > 0 {
		cfg.MaxAttempts = c.RetryMaxAttempts
	}
	if c.RetryInitialBackoffMs > 0 {
		cfg.InitialBackoff = time.Duration(c.RetryInitialBackoffMs) * time.Millisecond
	}
	if c.RetryMaxBackoffMs > 0 {
		cfg.MaxBackoff = time.Duration(c.RetryMaxBackoffMs) * time.Millisecond
	}
	if c.RetryJitter > 0 {
		cfg.JitterFraction = c.RetryJitter
	}
	return cfg
}

// Breaker converts config values to a CircuitBreakerConfig. Rate limits and
// caller cancellation never count toward the threshold.
func (c Config) Breaker() CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig()
	if c.BreakerThreshold > 0 {
		cfg.FailureThreshold = c.BreakerThreshold
	}
	if c.BreakerResetSecs > 0 {
		cfg.ResetTimeout = time.Duration(c.BreakerResetSecs) * time.Second
	}
	cfg.ShouldTrip = TripsBreaker
	return cfg
}

// Cooldown returns the default rate-limit cooldown window.
func (c Config) Cooldown() time.Duration {
	if c.CooldownSecs > 0 {
		return time.Duration(c.CooldownSecs) * time.Second
	}
	return DefaultCooldown
}
