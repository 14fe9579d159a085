package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"taskboard-go/internal/constants"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s=%s]: %s", e.Field, e.Value, e.Message)
}

// ValidationResult holds the results of configuration validation
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
	Valid    bool
}

// AddError adds a validation error
func (r *ValidationResult) AddError(field, value, message string) {
	r.Errors = append(r.Errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	})
	r.Valid = false
}

// AddWarning adds a validation warning
func (r *ValidationResult) AddWarning(field, value, message string) {
	r.Warnings = append(r.Warnings, ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	})
}

// Err joins all validation errors, or returns nil when valid.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	errs := make([]error, 0, len(r.Errors))
	for _, e := range r.Errors {
		errs = append(errs, e)
	}
	return errors.Join(errs...)
}

// Validate validates the configuration and returns validation results
func (c *Config) Validate() ValidationResult {
	result := ValidationResult{Valid: true}

	if u, err := url.Parse(c.Server.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		result.AddError("server.base_url", c.Server.BaseURL, "must be an absolute http(s) URL")
	} else if u.Scheme != "http" && u.Scheme != "https" {
		result.AddError("server.base_url", c.Server.BaseURL, "scheme must be http or https")
	}

	for field, path := range map[string]string{
		"auth.login_path":    c.Auth.LoginPath,
		"auth.register_path": c.Auth.RegisterPath,
		"auth.refresh_path":  c.Auth.RefreshPath,
		"auth.logout_path":   c.Auth.LogoutPath,
		"auth.me_path":       c.Auth.MePath,
	} {
		if !strings.HasPrefix(path, "/") {
			result.AddError(field, path, "must start with /")
		}
	}
	if c.Auth.RefreshAheadSeconds < 0 {
		result.AddError("auth.refresh_ahead_seconds", strconv.Itoa(c.Auth.RefreshAheadSeconds), "must be >= 0")
	}
	if ttl := c.Mock.AccessTTLSec; ttl > 0 && c.Auth.RefreshAheadSeconds >= ttl {
		result.AddWarning("auth.refresh_ahead_seconds", strconv.Itoa(c.Auth.RefreshAheadSeconds),
			fmt.Sprintf("not shorter than mock.access_ttl_sec (%d); capped to half the token lifetime", ttl))
	}
	if c.Auth.MaxReplays < 1 {
		result.AddError("auth.max_replays", strconv.Itoa(c.Auth.MaxReplays), "must be >= 1")
	}

	if c.Retry.Max < 0 {
		result.AddError("retry.max", strconv.Itoa(c.Retry.Max), "must be >= 0")
	}
	switch c.Retry.Backoff {
	case "", constants.BackoffConstant, constants.BackoffExponential:
	default:
		result.AddError("retry.backoff", c.Retry.Backoff, "must be constant or exponential")
	}
	if c.Retry.MaxIntervalMs > 0 && c.Retry.IntervalMs > c.Retry.MaxIntervalMs {
		result.AddWarning("retry.interval_ms", strconv.Itoa(c.Retry.IntervalMs), "exceeds max_interval_ms; will be capped")
	}

	if c.Transport.RequestTimeoutSec <= 0 {
		result.AddError("transport.request_timeout_sec", strconv.Itoa(c.Transport.RequestTimeoutSec), "must be > 0")
	} else if c.Transport.RequestTimeoutSec < 10 || c.Transport.RequestTimeoutSec > 30 {
		result.AddWarning("transport.request_timeout_sec", strconv.Itoa(c.Transport.RequestTimeoutSec), "outside the recommended 10-30s range")
	}

	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		result.AddError("rate_limit", fmt.Sprintf("%d/%d", c.RateLimit.RPS, c.RateLimit.Burst), "must be >= 0")
	}

	switch c.Storage.Backend {
	case "memory", "file":
	case "redis":
		if c.Storage.RedisAddr == "" {
			result.AddError("storage.redis_addr", "", "required for redis backend")
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			result.AddError("storage.postgres_dsn", "", "required for postgres backend")
		}
	case "mongodb":
		if c.Storage.MongoURI == "" {
			result.AddError("storage.mongodb_uri", "", "required for mongodb backend")
		}
	default:
		result.AddError("storage.backend", c.Storage.Backend, "must be one of memory, file, redis, postgres, mongodb")
	}
	if k := c.Storage.EncryptionKey; k != "" && len(k) < 16 {
		result.AddError("storage.encryption_key", "***", "must be at least 16 characters")
	}

	if c.Polling.Enabled && c.Polling.IntervalSec <= 0 {
		result.AddError("polling.interval_sec", strconv.Itoa(c.Polling.IntervalSec), "must be > 0 when polling is enabled")
	}

	return result
}
