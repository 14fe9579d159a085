package constants

import "time"

// 重试策略常量
const (
	DefaultMaxRetries    = 3
	DefaultRetryInterval = 0 * time.Millisecond
	DefaultMaxRetryDelay = 10 * time.Second
	RetryBackoffFactor   = 2.0

	// Backoff kinds accepted by retry.backoff.
	BackoffConstant    = "constant"
	BackoffExponential = "exponential"
)

// 刷新协调常量
const (
	// DefaultRefreshAhead is the safety buffer before expires_at at which a
	// credential is refreshed proactively.
	DefaultRefreshAhead = 5 * time.Minute
	// DefaultMaxAuthReplays caps how many times one request may be replayed
	// after successful refresh episodes before the 401 is surfaced.
	DefaultMaxAuthReplays = 2
)

// 错误处理配置
const (
	MaxErrorMessageLength = 200
)
