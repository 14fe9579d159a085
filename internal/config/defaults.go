package config

import (
	"taskboard-go/internal/constants"
)

// Defaults returns the configuration used when no file or env override is
// present.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL:   "http://127.0.0.1:8080",
			UserAgent: constants.ServiceName + "/" + constants.Version,
		},
		Auth: AuthConfig{
			LoginPath:           constants.DefaultLoginPath,
			RegisterPath:        constants.DefaultRegisterPath,
			RefreshPath:         constants.DefaultRefreshPath,
			LogoutPath:          constants.DefaultLogoutPath,
			MePath:              constants.DefaultMePath,
			PublicPaths:         []string{constants.DefaultHealthPath},
			RefreshAheadSeconds: int(constants.DefaultRefreshAhead.Seconds()),
			RefreshTimeoutSec:   int(constants.DefaultRefreshTimeout.Seconds()),
			MaxReplays:          constants.DefaultMaxAuthReplays,
		},
		Retry: RetryConfig{
			Enabled:       true,
			Max:           constants.DefaultMaxRetries,
			Backoff:       constants.BackoffConstant,
			IntervalMs:    int(constants.DefaultRetryInterval.Milliseconds()),
			MaxIntervalMs: int(constants.DefaultMaxRetryDelay.Milliseconds()),
		},
		Transport: TransportConfig{
			RequestTimeoutSec:        int(constants.DefaultRequestTimeout.Seconds()),
			DialTimeoutSec:           int(constants.DefaultDialTimeout.Seconds()),
			TLSHandshakeTimeoutSec:   int(constants.DefaultTLSHandshakeTimeout.Seconds()),
			ResponseHeaderTimeoutSec: int(constants.DefaultResponseHeaderTimeout.Seconds()),
		},
		Storage: StorageConfig{
			Backend:       "file",
			BaseDir:       "~/.taskboard",
			RedisAddr:     "localhost:6379",
			RedisPrefix:   "taskboard:",
			MongoDatabase: "taskboard",
			SessionKey:    "default",
		},
		Polling: PollingConfig{
			Enabled:     true,
			IntervalSec: int(constants.DefaultPollInterval.Seconds()),
			Path:        constants.DefaultUnreadCountPath,
		},
		Mock: MockConfig{
			Listen:        "127.0.0.1:8080",
			AccessTTLSec:  900,
			RefreshTTLSec: 7 * 24 * 3600,
			SigningKey:    "taskboard-dev-signing-key",
			RateLimitRPS:  50,
		},
	}
}
