package upstream

import (
	"math"
	"math/rand"
	"time"

	"taskboard-go/internal/config"
	"taskboard-go/internal/constants"
	apperrors "taskboard-go/internal/errors"
)

// RetryPolicy decides silent retries. Only idempotent, non-silent requests
// to retryable endpoints are eligible, and only for server or network
// errors. A request is attempted at most 1+Max times per episode of
// retries.
type RetryPolicy struct {
	Enabled     bool
	Max         int
	Backoff     string
	Interval    time.Duration
	MaxInterval time.Duration
}

// NewRetryPolicy maps the retry section of the configuration.
func NewRetryPolicy(cfg config.RetryConfig) RetryPolicy {
	return RetryPolicy{
		Enabled:     cfg.Enabled,
		Max:         cfg.Max,
		Backoff:     cfg.Backoff,
		Interval:    time.Duration(cfg.IntervalMs) * time.Millisecond,
		MaxInterval: time.Duration(cfg.MaxIntervalMs) * time.Millisecond,
	}
}

// ShouldRetry reports whether another attempt is allowed after err, given
// that retries attempts were already retried.
func (p RetryPolicy) ShouldRetry(req *Request, eps Endpoints, err *apperrors.APIError, retries int) bool {
	if !p.Enabled || retries >= p.Max || err == nil {
		return false
	}
	if !req.Idempotent || req.Silent || !eps.Retryable(req.Path) {
		return false
	}
	return err.IsRetryable()
}

// Delay returns the wait before retry number retry (0-based).
func (p RetryPolicy) Delay(retry int) time.Duration {
	if p.Backoff != constants.BackoffExponential {
		return p.Interval
	}
	base := float64(p.Interval)
	max := float64(p.MaxInterval)
	if base <= 0 {
		base = float64(100 * time.Millisecond)
	}
	if max <= 0 {
		max = float64(constants.DefaultMaxRetryDelay)
	}
	dur := base * math.Pow(constants.RetryBackoffFactor, float64(retry))
	if dur > max {
		dur = max
	}
	jitter := 0.5 + rand.Float64()
	return time.Duration(dur * jitter)
}
