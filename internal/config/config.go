// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Data sources for table pages.
const (
	SourcePostgres = "postgres"
	SourceAPI      = "api"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Source   SourceConfig
	Table    TableConfig
	Export   ExportConfig
	Prefs    PrefsConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Mounts   MountConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response. Full
	// exports can take a while, so keep this above EXPORT_TIMEOUT or 0.
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for non-export requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string, required when DATA_SOURCE=postgres.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"20"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"4"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// SourceConfig selects where table pages come from.
type SourceConfig struct {
	// Kind is "postgres" (query tables directly) or "api" (call the REST API).
	Kind string `env:"DATA_SOURCE" default:"postgres"`

	APIURL   string        `env:"UPSTREAM_API_URL"`
	APIToken string        `env:"UPSTREAM_API_TOKEN"`
	Timeout  time.Duration `env:"UPSTREAM_TIMEOUT" default:"15s"`
}

// TableConfig holds table engine settings.
type TableConfig struct {
	// DefaultPageSize applies to entities that do not set one (default: 20)
	DefaultPageSize int `env:"TABLE_DEFAULT_PAGE_SIZE" default:"20"`

	// SearchDelay is the search debounce window (default: 500ms)
	SearchDelay time.Duration `env:"TABLE_SEARCH_DELAY" default:"500ms"`

	// QueryStaleTime is how long a reactive page is served without revalidating (default: 30s)
	QueryStaleTime time.Duration `env:"TABLE_QUERY_STALE_TIME" default:"30s"`

	// QueryTimeout bounds one background page fetch (default: 15s)
	QueryTimeout time.Duration `env:"TABLE_QUERY_TIMEOUT" default:"15s"`

	// PageCacheSize is the number of pages each table keeps (default: 32)
	PageCacheSize int `env:"TABLE_PAGE_CACHE_SIZE" default:"32"`

	// Definitions is an optional YAML file overriding the built-in entities
	Definitions string `env:"TABLE_DEFINITIONS"`
}

// ExportConfig bounds full-dataset exports.
type ExportConfig struct {
	// MaxConcurrent is the maximum number of parallel full exports (default: 3)
	MaxConcurrent int `env:"EXPORT_MAX_CONCURRENT" default:"3"`

	// MaxWaitTime is how long to wait for an export slot (default: 10s)
	MaxWaitTime time.Duration `env:"EXPORT_MAX_WAIT" default:"10s"`

	// Timeout is the maximum duration of one export (default: 5m)
	Timeout time.Duration `env:"EXPORT_TIMEOUT" default:"5m"`
}

// PrefsConfig holds column preference storage settings.
type PrefsConfig struct {
	// DSN is the SQLite file for column layouts; empty keeps them in memory
	DSN string `env:"PREFS_DSN" default:"data/prefs.db"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 300)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"300"`

	// ExportLimit is requests per minute for export endpoints (default: 10)
	ExportLimit int `env:"RATE_LIMIT_EXPORT" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAuth makes every admin route demand a signed session token
	RequireAuth bool `env:"REQUIRE_AUTH" default:"false"`

	// JWTSecret is the HS256 key admin session tokens are signed with
	JWTSecret string `env:"JWT_SECRET"`

	// JWTIssuer, when set, must match the token's iss claim
	JWTIssuer string `env:"JWT_ISSUER"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// MountConfig controls how long per-tab table state is kept.
type MountConfig struct {
	// IdleTTL drops a mounted table after this long without requests (default: 30m)
	IdleTTL time.Duration `env:"MOUNT_IDLE_TTL" default:"30m"`

	// SweepInterval is how often idle mounts are collected (default: 5m)
	SweepInterval time.Duration `env:"MOUNT_SWEEP_INTERVAL" default:"5m"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
