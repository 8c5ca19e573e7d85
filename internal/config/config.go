package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"secure-user-api/pkg/security"
)

// Config holds all configuration for the application.
// It is built once at startup and must not be modified afterwards.
type Config struct {
	App       AppConfig
	DB        DatabaseConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Logger    LoggerConfig
}

// AppConfig holds configuration for the application server
type AppConfig struct {
	Name                   string   `mapstructure:"APP_NAME"`
	Env                    string   `mapstructure:"APP_ENV"`
	HTTPPort               string   `mapstructure:"HTTP_PORT"`
	ShutdownTimeoutSeconds int      `mapstructure:"SHUTDOWN_TIMEOUT_SECONDS"`
	TrustedProxies         []string `mapstructure:"TRUSTED_PROXIES"`
	MaxBodyBytes           int64    `mapstructure:"MAX_BODY_BYTES"`
	DocsEnabled            bool     `mapstructure:"DOCS_ENABLED"`
}

// DatabaseConfig holds configuration for the database
type DatabaseConfig struct {
	URL             string `mapstructure:"DATABASE_URL"`
	MaxOpenConns    int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	ConnMaxLifetime int    `mapstructure:"DB_CONN_MAX_LIFETIME"`
	ConnMaxIdleTime int    `mapstructure:"DB_CONN_MAX_IDLE_TIME"`
	AutoMigrate     bool   `mapstructure:"DB_AUTO_MIGRATE"`
}

// AuthConfig holds the API key settings.
type AuthConfig struct {
	HeaderName string   `mapstructure:"API_KEY_HEADER"`
	ActiveKeys []string `mapstructure:"ACTIVE_API_KEYS"`
}

// RateLimitConfig holds configuration for the per-caller rate limiter.
type RateLimitConfig struct {
	Enabled bool   `mapstructure:"RATE_LIMIT_ENABLED"`
	Default string `mapstructure:"DEFAULT_RATE_LIMIT"`
	Backend string `mapstructure:"RATE_LIMIT_BACKEND"`
}

// RedisConfig holds configuration for Redis
type RedisConfig struct {
	Host        string `mapstructure:"REDIS_HOST"`
	Port        string `mapstructure:"REDIS_PORT"`
	Password    string `mapstructure:"REDIS_PASSWORD"`
	DB          int    `mapstructure:"REDIS_DB"`
	MaxRetries  int    `mapstructure:"REDIS_MAX_RETRIES"`
	PoolSize    int    `mapstructure:"REDIS_POOL_SIZE"`
	MinIdleConn int    `mapstructure:"REDIS_MIN_IDLE_CONN"`
}

// CacheConfig holds configuration for the optional user read cache.
type CacheConfig struct {
	Enabled    bool `mapstructure:"CACHE_ENABLED"`
	TTLSeconds int  `mapstructure:"CACHE_TTL_SECONDS"`
}

// LoggerConfig holds configuration for the logger
type LoggerConfig struct {
	Level            string  `mapstructure:"LOG_LEVEL"`
	Format           string  `mapstructure:"LOG_FORMAT"`
	OutputPath       string  `mapstructure:"LOG_OUTPUT_PATH"`
	SlowQuerySeconds float64 `mapstructure:"LOG_SLOW_QUERY_SECONDS"`
	EnableSampling   bool    `mapstructure:"LOG_ENABLE_SAMPLING"`
	ServiceName      string  `mapstructure:"SERVICE_NAME"`
	ServiceVersion   string  `mapstructure:"SERVICE_VERSION"`
}

// Rate limiter backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Database drivers derived from DATABASE_URL.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set defaults first
	setDefaults(v)

	v.AddConfigPath(path)
	v.SetConfigName("app") // Look for app.env
	v.SetConfigType("env")

	v.AutomaticEnv() // Read from environment variables

	// Try to read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if we have env vars
	}

	var config Config

	config.App.Name = v.GetString("APP_NAME")
	config.App.Env = v.GetString("APP_ENV")
	config.App.HTTPPort = v.GetString("HTTP_PORT")
	config.App.ShutdownTimeoutSeconds = v.GetInt("SHUTDOWN_TIMEOUT_SECONDS")
	config.App.TrustedProxies = splitList(v.GetString("TRUSTED_PROXIES"))
	config.App.MaxBodyBytes = v.GetInt64("MAX_BODY_BYTES")
	config.App.DocsEnabled = v.GetBool("DOCS_ENABLED")

	config.DB.URL = v.GetString("DATABASE_URL")
	config.DB.MaxOpenConns = v.GetInt("DB_MAX_OPEN_CONNS")
	config.DB.MaxIdleConns = v.GetInt("DB_MAX_IDLE_CONNS")
	config.DB.ConnMaxLifetime = v.GetInt("DB_CONN_MAX_LIFETIME")
	config.DB.ConnMaxIdleTime = v.GetInt("DB_CONN_MAX_IDLE_TIME")
	config.DB.AutoMigrate = v.GetBool("DB_AUTO_MIGRATE")

	config.Auth.HeaderName = strings.TrimSpace(v.GetString("API_KEY_HEADER"))
	if config.Auth.HeaderName == "" {
		config.Auth.HeaderName = security.DefaultAPIKeyHeader
	}
	config.Auth.ActiveKeys = splitList(v.GetString("ACTIVE_API_KEYS"))

	config.RateLimit.Enabled = v.GetBool("RATE_LIMIT_ENABLED")
	config.RateLimit.Default = v.GetString("DEFAULT_RATE_LIMIT")
	config.RateLimit.Backend = strings.ToLower(v.GetString("RATE_LIMIT_BACKEND"))

	config.Redis.Host = v.GetString("REDIS_HOST")
	config.Redis.Port = v.GetString("REDIS_PORT")
	config.Redis.Password = v.GetString("REDIS_PASSWORD")
	config.Redis.DB = v.GetInt("REDIS_DB")
	config.Redis.MaxRetries = v.GetInt("REDIS_MAX_RETRIES")
	config.Redis.PoolSize = v.GetInt("REDIS_POOL_SIZE")
	config.Redis.MinIdleConn = v.GetInt("REDIS_MIN_IDLE_CONN")

	config.Cache.Enabled = v.GetBool("CACHE_ENABLED")
	config.Cache.TTLSeconds = v.GetInt("CACHE_TTL_SECONDS")

	config.Logger.Level = v.GetString("LOG_LEVEL")
	config.Logger.Format = v.GetString("LOG_FORMAT")
	config.Logger.OutputPath = v.GetString("LOG_OUTPUT_PATH")
	config.Logger.SlowQuerySeconds = v.GetFloat64("LOG_SLOW_QUERY_SECONDS")
	config.Logger.EnableSampling = v.GetBool("LOG_ENABLE_SAMPLING")
	config.Logger.ServiceName = v.GetString("SERVICE_NAME")
	config.Logger.ServiceVersion = v.GetString("SERVICE_VERSION")

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", "Secure User CRUD API")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("SHUTDOWN_TIMEOUT_SECONDS", 10)
	v.SetDefault("TRUSTED_PROXIES", "")
	v.SetDefault("MAX_BODY_BYTES", 1<<20)
	v.SetDefault("DOCS_ENABLED", true)

	v.SetDefault("DATABASE_URL", "sqlite:///./secure_users.db")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", 300)
	v.SetDefault("DB_CONN_MAX_IDLE_TIME", 60)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("API_KEY_HEADER", security.DefaultAPIKeyHeader)
	v.SetDefault("ACTIVE_API_KEYS", "")

	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("DEFAULT_RATE_LIMIT", "60/minute")
	v.SetDefault("RATE_LIMIT_BACKEND", BackendMemory)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_MAX_RETRIES", 3)
	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("REDIS_MIN_IDLE_CONN", 2)

	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("CACHE_TTL_SECONDS", 300)

	// Logger defaults
	if v.GetString("APP_ENV") == "production" {
		v.SetDefault("LOG_LEVEL", "info")
		v.SetDefault("LOG_FORMAT", "json")
		v.SetDefault("LOG_ENABLE_SAMPLING", true)
	} else {
		v.SetDefault("LOG_LEVEL", "debug")
		v.SetDefault("LOG_FORMAT", "console")
		v.SetDefault("LOG_ENABLE_SAMPLING", false)
	}
	v.SetDefault("LOG_OUTPUT_PATH", "stdout")
	v.SetDefault("LOG_SLOW_QUERY_SECONDS", 0.2)
	v.SetDefault("SERVICE_NAME", "secure-user-api")
	v.SetDefault("SERVICE_VERSION", "1.0.0")
}

// splitList splits a comma separated value and drops blank entries.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks the configuration for values the application cannot start with.
// An empty key set is not an error here: it is reported per request. The rate
// rule's syntax is checked where the limiter is built.
func (c *Config) Validate() error {
	var errs []error

	if c.App.HTTPPort == "" {
		errs = append(errs, errors.New("HTTP_PORT is required"))
	}
	if c.App.ShutdownTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT_SECONDS must be positive"))
	}
	if _, err := c.DB.Driver(); err != nil {
		errs = append(errs, err)
	}
	if c.Auth.HeaderName == "" {
		errs = append(errs, errors.New("API_KEY_HEADER must not be empty"))
	}
	if c.RateLimit.Enabled && strings.TrimSpace(c.RateLimit.Default) == "" {
		errs = append(errs, errors.New("DEFAULT_RATE_LIMIT is required when rate limiting is enabled"))
	}
	switch c.RateLimit.Backend {
	case BackendMemory, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("RATE_LIMIT_BACKEND must be %q or %q, got %q", BackendMemory, BackendRedis, c.RateLimit.Backend))
	}
	if c.NeedsRedis() && (c.Redis.Host == "" || c.Redis.Port == "") {
		errs = append(errs, errors.New("REDIS_HOST and REDIS_PORT are required when the cache or the redis rate limit backend is enabled"))
	}
	if c.Cache.Enabled && c.Cache.TTLSeconds <= 0 {
		errs = append(errs, errors.New("CACHE_TTL_SECONDS must be positive when the cache is enabled"))
	}

	return errors.Join(errs...)
}

// NeedsRedis reports whether any component is configured to use Redis.
func (c *Config) NeedsRedis() bool {
	return (c.RateLimit.Enabled && c.RateLimit.Backend == BackendRedis) || c.Cache.Enabled
}

// Driver returns the database driver named by the URL scheme.
func (c *DatabaseConfig) Driver() (string, error) {
	switch {
	case strings.HasPrefix(c.URL, "sqlite://"):
		return DriverSQLite, nil
	case strings.HasPrefix(c.URL, "postgres://"), strings.HasPrefix(c.URL, "postgresql://"):
		return DriverPostgres, nil
	case c.URL == "":
		return "", errors.New("DATABASE_URL is required")
	default:
		return "", fmt.Errorf("DATABASE_URL has an unsupported scheme: %q", redactURL(c.URL))
	}
}

// DSN returns the data source name handed to the driver. For SQLite the
// SQLAlchemy-style forms sqlite:///relative.db and sqlite:////absolute.db are accepted.
func (c *DatabaseConfig) DSN() string {
	if rest, ok := strings.CutPrefix(c.URL, "sqlite://"); ok {
		if strings.HasPrefix(rest, "/") {
			rest = rest[1:]
		}
		return rest
	}
	return c.URL
}

// redactURL keeps only the scheme so credentials never reach logs or errors.
func redactURL(u string) string {
	if scheme, _, ok := strings.Cut(u, "://"); ok {
		return scheme + "://..."
	}
	return "..."
}
