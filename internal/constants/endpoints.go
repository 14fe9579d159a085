package constants

// Default backend endpoint paths.
const (
	DefaultLoginPath       = "/auth/login"
	DefaultRegisterPath    = "/auth/register"
	DefaultRefreshPath     = "/auth/refresh"
	DefaultLogoutPath      = "/auth/logout"
	DefaultMePath          = "/auth/me"
	DefaultHealthPath      = "/health"
	DefaultUnreadCountPath = "/notifications/unread-count"
)

// Persisted record keys. Both are cleared together.
const (
	RecordCredential = "credential"
	RecordIdentity   = "identity"
)
