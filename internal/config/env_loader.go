package config

const envPrefix = "TASKBOARD_"

// applyEnv overlays TASKBOARD_* environment variables onto cfg.
func applyEnv(cfg *Config) {
	envString("BASE_URL", &cfg.Server.BaseURL)
	envString("USER_AGENT", &cfg.Server.UserAgent)

	applyAuthEnvVars(cfg)
	applyRetryEnvVars(cfg)
	applyTimeoutEnvVars(cfg)
	applyStorageEnvVars(cfg)
	applyMiscEnvVars(cfg)
}

func applyAuthEnvVars(cfg *Config) {
	envString("LOGIN_PATH", &cfg.Auth.LoginPath)
	envString("REGISTER_PATH", &cfg.Auth.RegisterPath)
	envString("REFRESH_PATH", &cfg.Auth.RefreshPath)
	envString("LOGOUT_PATH", &cfg.Auth.LogoutPath)
	envString("ME_PATH", &cfg.Auth.MePath)
	envList("PUBLIC_PATHS", &cfg.Auth.PublicPaths)
	envInt("REFRESH_AHEAD_SECONDS", &cfg.Auth.RefreshAheadSeconds)
	envInt("REFRESH_TIMEOUT_SEC", &cfg.Auth.RefreshTimeoutSec)
	envInt("MAX_REPLAYS", &cfg.Auth.MaxReplays)
}

func applyRetryEnvVars(cfg *Config) {
	envBool("RETRY_ENABLED", &cfg.Retry.Enabled)
	envInt("RETRY_MAX", &cfg.Retry.Max)
	envInt("RETRY_INTERVAL_MS", &cfg.Retry.IntervalMs)
	envInt("RETRY_MAX_INTERVAL_MS", &cfg.Retry.MaxIntervalMs)
	envLower("RETRY_BACKOFF", &cfg.Retry.Backoff)
}

func applyTimeoutEnvVars(cfg *Config) {
	envInt("REQUEST_TIMEOUT_SEC", &cfg.Transport.RequestTimeoutSec)
	envInt("DIAL_TIMEOUT_SEC", &cfg.Transport.DialTimeoutSec)
	envInt("RATE_LIMIT_RPS", &cfg.RateLimit.RPS)
	envInt("RATE_LIMIT_BURST", &cfg.RateLimit.Burst)
}

func applyStorageEnvVars(cfg *Config) {
	envLower("STORAGE_BACKEND", &cfg.Storage.Backend)
	envString("STORAGE_BASE_DIR", &cfg.Storage.BaseDir)
	envString("STORAGE_ENCRYPTION_KEY", &cfg.Storage.EncryptionKey)
	envString("REDIS_ADDR", &cfg.Storage.RedisAddr)
	envString("REDIS_PASSWORD", &cfg.Storage.RedisPassword)
	envInt("REDIS_DB", &cfg.Storage.RedisDB)
	envString("REDIS_PREFIX", &cfg.Storage.RedisPrefix)
	envString("POSTGRES_DSN", &cfg.Storage.PostgresDSN)
	envString("MONGODB_URI", &cfg.Storage.MongoURI)
	envString("MONGODB_DATABASE", &cfg.Storage.MongoDatabase)
	envString("SESSION_KEY", &cfg.Storage.SessionKey)
}

func applyMiscEnvVars(cfg *Config) {
	envBool("DEBUG", &cfg.Security.Debug)
	envString("LOG_FILE", &cfg.Security.LogFile)
	envBool("POLLING_ENABLED", &cfg.Polling.Enabled)
	envInt("POLL_INTERVAL_SEC", &cfg.Polling.IntervalSec)
	envString("MOCK_LISTEN", &cfg.Mock.Listen)
	envString("MOCK_SIGNING_KEY", &cfg.Mock.SigningKey)
	envInt("MOCK_ACCESS_TTL_SEC", &cfg.Mock.AccessTTLSec)
}
