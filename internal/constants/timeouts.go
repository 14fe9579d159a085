package constants

import "time"

const (
	// DefaultRequestTimeout bounds a single attempt of an outbound request.
	DefaultRequestTimeout = 20 * time.Second
	// DefaultRefreshTimeout bounds the refresh call of an episode.
	DefaultRefreshTimeout = 15 * time.Second
	// DefaultLogoutTimeout bounds the best-effort logout notification.
	DefaultLogoutTimeout = 5 * time.Second
	// DefaultPollInterval is the notification polling interval.
	DefaultPollInterval = 30 * time.Second
	// StorageTimeout bounds a single persistence operation.
	StorageTimeout = 5 * time.Second
	// ServerShutdownTimeout bounds graceful HTTP server shutdown.
	ServerShutdownTimeout = 10 * time.Second
)
