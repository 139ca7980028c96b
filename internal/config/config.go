package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the Vector-Analytics application.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Archive   ArchiveConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Log       LogConfig
	Metrics   MetricsConfig
	Geo       GeoConfig
	Tracking  TrackingConfig
}

type ServerConfig struct {
	Addr            string
	Env             string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// ArchiveConfig configures the ClickHouse raw event archive.
type ArchiveConfig struct {
	Enabled  bool
	Addr     string
	Database string
	User     string
	Password string
}

type AuthConfig struct {
	Enabled   bool
	MasterKey string
	SkipPaths []string
}

type RateLimitConfig struct {
	Enabled    bool
	TrackRPS   float64
	TrackBurst int
	StatsRPS   float64
	StatsBurst int
}

type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// GeoConfig configures GeoIP enrichment of archived events.
type GeoConfig struct {
	Enabled      bool
	DatabasePath string
}

// TrackingConfig holds the client/server tracking contract settings.
type TrackingConfig struct {
	// SiteOrigin is the site's own origin; referrers from this host are
	// not counted as traffic sources.
	SiteOrigin string
	// SessionTimeout is the client session idle expiry.
	SessionTimeout time.Duration
	// SettleDelay is how long the client waits after a navigation
	// before the enter event fires.
	SettleDelay time.Duration
	// MinDwellSeconds is the threshold below which exit events are not sent.
	MinDwellSeconds int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:            getEnv("VECTOR_ANALYTICS_HTTP_ADDR", ":8080"),
			Env:             getEnv("VECTOR_ANALYTICS_ENV", "development"),
			ShutdownTimeout: getDurationEnv("VECTOR_ANALYTICS_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("VECTOR_ANALYTICS_DB_HOST", "localhost"),
			Port:     getIntEnv("VECTOR_ANALYTICS_DB_PORT", 5432),
			User:     getEnv("VECTOR_ANALYTICS_DB_USER", "vectoranalytics"),
			Password: getEnv("VECTOR_ANALYTICS_DB_PASSWORD", "vectoranalytics_secret"),
			DBName:   getEnv("VECTOR_ANALYTICS_DB_NAME", "vectoranalytics"),
			SSLMode:  getEnv("VECTOR_ANALYTICS_DB_SSLMODE", "disable"),
			MaxConns: getIntEnv("VECTOR_ANALYTICS_DB_MAX_CONNS", 25),
			MinConns: getIntEnv("VECTOR_ANALYTICS_DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Addr:     getEnv("VECTOR_ANALYTICS_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("VECTOR_ANALYTICS_REDIS_PASSWORD", ""),
			DB:       getIntEnv("VECTOR_ANALYTICS_REDIS_DB", 0),
			PoolSize: getIntEnv("VECTOR_ANALYTICS_REDIS_POOL_SIZE", 50),
		},
		Archive: ArchiveConfig{
			Enabled:  getBoolEnv("VECTOR_ANALYTICS_ARCHIVE_ENABLED", false),
			Addr:     getEnv("VECTOR_ANALYTICS_ARCHIVE_ADDR", "localhost:9000"),
			Database: getEnv("VECTOR_ANALYTICS_ARCHIVE_DB", "analytics"),
			User:     getEnv("VECTOR_ANALYTICS_ARCHIVE_USER", "default"),
			Password: getEnv("VECTOR_ANALYTICS_ARCHIVE_PASSWORD", ""),
		},
		Auth: AuthConfig{
			Enabled:   getBoolEnv("VECTOR_ANALYTICS_AUTH_ENABLED", true),
			MasterKey: getEnv("VECTOR_ANALYTICS_API_KEY_MASTER", ""),
			SkipPaths: getSliceEnv("VECTOR_ANALYTICS_AUTH_SKIP_PATHS", []string{"/health", "/metrics", "/track/analytics", "/track/keyword"}),
		},
		RateLimit: RateLimitConfig{
			Enabled:    getBoolEnv("VECTOR_ANALYTICS_RATE_LIMIT_ENABLED", true),
			TrackRPS:   getFloatEnv("VECTOR_ANALYTICS_RATE_LIMIT_TRACK_RPS", 500),
			TrackBurst: getIntEnv("VECTOR_ANALYTICS_RATE_LIMIT_TRACK_BURST", 100),
			StatsRPS:   getFloatEnv("VECTOR_ANALYTICS_RATE_LIMIT_STATS_RPS", 50),
			StatsBurst: getIntEnv("VECTOR_ANALYTICS_RATE_LIMIT_STATS_BURST", 10),
		},
		Log: LogConfig{
			Level:  getEnv("VECTOR_ANALYTICS_LOG_LEVEL", "info"),
			Format: getEnv("VECTOR_ANALYTICS_LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getBoolEnv("VECTOR_ANALYTICS_METRICS_ENABLED", true),
			Path:    getEnv("VECTOR_ANALYTICS_METRICS_PATH", "/metrics"),
		},
		Geo: GeoConfig{
			Enabled:      getBoolEnv("VECTOR_ANALYTICS_GEO_ENABLED", false),
			DatabasePath: getEnv("VECTOR_ANALYTICS_GEO_DB_PATH", "/app/data/GeoLite2-Country.mmdb"),
		},
		Tracking: TrackingConfig{
			SiteOrigin:      getEnv("VECTOR_ANALYTICS_SITE_ORIGIN", "https://localhost"),
			SessionTimeout:  getDurationEnv("VECTOR_ANALYTICS_SESSION_TIMEOUT", 30*time.Minute),
			SettleDelay:     getDurationEnv("VECTOR_ANALYTICS_SETTLE_DELAY", time.Second),
			MinDwellSeconds: getIntEnv("VECTOR_ANALYTICS_MIN_DWELL_SECONDS", 5),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Auth.Enabled && c.Auth.MasterKey == "" {
		return fmt.Errorf("VECTOR_ANALYTICS_API_KEY_MASTER is required when auth is enabled")
	}
	if c.Tracking.SessionTimeout <= 0 {
		return fmt.Errorf("VECTOR_ANALYTICS_SESSION_TIMEOUT must be positive")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Helper functions for reading environment variables

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getFloatEnv(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getSliceEnv(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				result = append(result, p)
			}
		}
		return result
	}
	return def
}
