package config

import "time"

// Config 主配置结构体，包含所有功能域的配置
type Config struct {
	Server    ServerConfig    `yaml:"server" json:"server"`
	Auth      AuthConfig      `yaml:"auth" json:"auth"`
	Retry     RetryConfig     `yaml:"retry" json:"retry"`
	Transport TransportConfig `yaml:"transport" json:"transport"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	Storage   StorageConfig   `yaml:"storage" json:"storage"`
	Polling   PollingConfig   `yaml:"polling" json:"polling"`
	Security  SecurityConfig  `yaml:"security" json:"security"`
	Mock      MockConfig      `yaml:"mock" json:"mock"`
}

// ServerConfig describes the backend the client talks to.
type ServerConfig struct {
	BaseURL   string `yaml:"base_url" json:"base_url"`
	UserAgent string `yaml:"user_agent" json:"user_agent"`
}

// AuthConfig lists the authentication-bootstrap endpoints and refresh policy.
type AuthConfig struct {
	LoginPath    string `yaml:"login_path" json:"login_path"`
	RegisterPath string `yaml:"register_path" json:"register_path"`
	RefreshPath  string `yaml:"refresh_path" json:"refresh_path"`
	LogoutPath   string `yaml:"logout_path" json:"logout_path"`
	MePath       string `yaml:"me_path" json:"me_path"`
	// PublicPaths never carry a credential (e.g. /health).
	PublicPaths []string `yaml:"public_paths" json:"public_paths"`
	// RefreshAheadSeconds is the safety buffer before expires_at.
	RefreshAheadSeconds int `yaml:"refresh_ahead_seconds" json:"refresh_ahead_seconds"`
	RefreshTimeoutSec   int `yaml:"refresh_timeout_sec" json:"refresh_timeout_sec"`
	MaxReplays          int `yaml:"max_replays" json:"max_replays"`
}

// RetryConfig controls silent retries of idempotent requests.
type RetryConfig struct {
	Enabled       bool   `yaml:"enabled" json:"enabled"`
	Max           int    `yaml:"max" json:"max"`
	Backoff       string `yaml:"backoff" json:"backoff"`
	IntervalMs    int    `yaml:"interval_ms" json:"interval_ms"`
	MaxIntervalMs int    `yaml:"max_interval_ms" json:"max_interval_ms"`
}

// TransportConfig bounds network waits.
type TransportConfig struct {
	RequestTimeoutSec        int `yaml:"request_timeout_sec" json:"request_timeout_sec"`
	DialTimeoutSec           int `yaml:"dial_timeout_sec" json:"dial_timeout_sec"`
	TLSHandshakeTimeoutSec   int `yaml:"tls_handshake_timeout_sec" json:"tls_handshake_timeout_sec"`
	ResponseHeaderTimeoutSec int `yaml:"response_header_timeout_sec" json:"response_header_timeout_sec"`
}

// RateLimitConfig enables client-side outbound throttling (0 disables).
type RateLimitConfig struct {
	RPS   int `yaml:"rps" json:"rps"`
	Burst int `yaml:"burst" json:"burst"`
}

// StorageConfig selects the durable session store.
type StorageConfig struct {
	Backend       string `yaml:"backend" json:"backend"`
	BaseDir       string `yaml:"base_dir" json:"base_dir"`
	EncryptionKey string `yaml:"encryption_key" json:"-"`
	RedisAddr     string `yaml:"redis_addr" json:"redis_addr"`
	RedisPassword string `yaml:"redis_password" json:"-"`
	RedisDB       int    `yaml:"redis_db" json:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix" json:"redis_prefix"`
	PostgresDSN   string `yaml:"postgres_dsn" json:"-"`
	MongoURI      string `yaml:"mongodb_uri" json:"-"`
	MongoDatabase string `yaml:"mongodb_database" json:"mongodb_database"`
	// SessionKey namespaces persisted records, allowing several profiles.
	SessionKey string `yaml:"session_key" json:"session_key"`
}

// PollingConfig controls the notification poller.
type PollingConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	IntervalSec int    `yaml:"interval_sec" json:"interval_sec"`
	Path        string `yaml:"path" json:"path"`
}

// SecurityConfig carries logging switches.
type SecurityConfig struct {
	Debug   bool   `yaml:"debug" json:"debug"`
	LogFile string `yaml:"log_file" json:"log_file"`
}

// MockConfig configures the bundled mock backend.
type MockConfig struct {
	Listen        string `yaml:"listen" json:"listen"`
	AccessTTLSec  int    `yaml:"access_ttl_sec" json:"access_ttl_sec"`
	RefreshTTLSec int    `yaml:"refresh_ttl_sec" json:"refresh_ttl_sec"`
	SigningKey    string `yaml:"signing_key" json:"-"`
	RateLimitRPS  int    `yaml:"rate_limit_rps" json:"rate_limit_rps"`
}

// RequestTimeout returns the per-attempt timeout.
func (c *Config) RequestTimeout() time.Duration {
	return seconds(c.Transport.RequestTimeoutSec)
}

// RefreshTimeout returns the refresh call timeout.
func (c *Config) RefreshTimeout() time.Duration {
	return seconds(c.Auth.RefreshTimeoutSec)
}

// RefreshAhead returns the proactive refresh buffer.
func (c *Config) RefreshAhead() time.Duration {
	return seconds(c.Auth.RefreshAheadSeconds)
}

// PollInterval returns the notification polling interval.
func (c *Config) PollInterval() time.Duration {
	return seconds(c.Polling.IntervalSec)
}

// Clone returns a deep copy safe to hand to another goroutine.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Auth.PublicPaths = append([]string(nil), c.Auth.PublicPaths...)
	return &cp
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
