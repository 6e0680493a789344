package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	SinkPostgres = "postgres"
	SinkCSV      = "csv"
)

// Config holds all application configuration
type Config struct {
	// Database
	DatabaseURL      string `envconfig:"DATABASE_URL"`
	DatabaseMaxConns int32  `envconfig:"DATABASE_MAX_CONNS" default:"4"`

	// Source page
	SourceURL        string        `envconfig:"SOURCE_URL" default:"https://www.spotrac.com/nba/rankings/player/_/year/2025/sort/cash_total"`
	SeasonYear       int           `envconfig:"SEASON_YEAR"`
	FetchMaxAttempts int           `envconfig:"FETCH_MAX_ATTEMPTS" default:"3"`
	FetchTimeout     time.Duration `envconfig:"FETCH_TIMEOUT" default:"30s"`
	FetchRetryBase   time.Duration `envconfig:"FETCH_RETRY_BASE" default:"1s"`

	// Sink
	Sink      string `envconfig:"SINK" default:"postgres"`
	ExportDir string `envconfig:"EXPORT_DIR" default:"./export"`
	DryRun    bool   `envconfig:"DRY_RUN" default:"false"` // fetch, extract and resolve only

	// Redis page cache
	RedisHost     string        `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int           `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	CacheTTLPage  time.Duration `envconfig:"CACHE_TTL_PAGE" default:"0s"` // 0 disables the cache

	// Application
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Scheduler
	EnableScheduler    bool   `envconfig:"ENABLE_SCHEDULER" default:"true"`
	InitialSyncEnabled bool   `envconfig:"INITIAL_SYNC_ENABLED" default:"true"`
	RefreshCron        string `envconfig:"REFRESH_CRON" default:"0 6 * * *"`

	// Monitoring
	EnableMetrics bool `envconfig:"ENABLE_METRICS" default:"true"`
	MetricsPort   int  `envconfig:"METRICS_PORT" default:"9090"`
}

// ConfigError reports missing or invalid configuration. It is fatal and is
// raised before any network or database activity.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

// Load loads configuration from environment variables
// It first attempts to load from .env file if present. Overrides are applied
// before validation.
func Load(overrides ...func(*Config)) (*Config, error) {
	// Try to load .env file (ignore error if doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{Field: "environment", Reason: err.Error()}
	}

	for _, override := range overrides {
		override(&cfg)
	}

	if cfg.SeasonYear == 0 {
		cfg.SeasonYear = time.Now().UTC().Year()
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Sink {
	case SinkPostgres:
		if c.DatabaseURL == "" && !c.DryRun {
			return &ConfigError{Field: "DATABASE_URL", Reason: "is required"}
		}
	case SinkCSV:
		if c.ExportDir == "" {
			return &ConfigError{Field: "EXPORT_DIR", Reason: "is required when SINK=csv"}
		}
	default:
		return &ConfigError{Field: "SINK", Reason: fmt.Sprintf("must be %q or %q, got %q", SinkPostgres, SinkCSV, c.Sink)}
	}

	if c.SourceURL == "" {
		return &ConfigError{Field: "SOURCE_URL", Reason: "is required"}
	}

	if c.FetchMaxAttempts < 1 {
		return &ConfigError{Field: "FETCH_MAX_ATTEMPTS", Reason: "must be at least 1"}
	}

	if c.FetchTimeout <= 0 {
		return &ConfigError{Field: "FETCH_TIMEOUT", Reason: "must be positive"}
	}

	if c.SeasonYear < 1946 || c.SeasonYear > 2100 {
		return &ConfigError{Field: "SEASON_YEAR", Reason: fmt.Sprintf("out of range: %d", c.SeasonYear)}
	}

	return nil
}

// RedisAddr returns the Redis address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// CacheEnabled reports whether fetched pages should be cached in Redis
func (c *Config) CacheEnabled() bool {
	return c.CacheTTLPage > 0
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// MustLoad loads configuration or exits on error
// Use this in main() where we want to fail fast
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
