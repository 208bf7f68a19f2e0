// Package config handles application configuration loading and validation using Viper.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Leagues   LeaguesConfig   `mapstructure:"leagues"`
	Goals     GoalsConfig     `mapstructure:"goals"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port        int    `mapstructure:"port"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig contains database connection settings for PostgreSQL and Redis.
type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains PostgreSQL database connection and pool settings.
type PostgresConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Database        string `mapstructure:"database"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	MigrationsMode  string `mapstructure:"migrations_mode"` // 'auto' (gorm) or 'sql' (golang-migrate)
}

// RedisConfig contains Redis cache connection and pool settings.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// LeaguesConfig contains league seeding and session defaults.
type LeaguesConfig struct {
	SeedFile        string `mapstructure:"seed_file"`       // YAML file with the tier ladder
	SessionDays     int    `mapstructure:"session_days"`    // default session window length
	StandingsTTL    int    `mapstructure:"standings_ttl"`   // cached standings TTL in seconds
	DefaultTierName string `mapstructure:"default_tier_name"`
}

// GoalsConfig contains goal scoring and rollover settings.
type GoalsConfig struct {
	BasePoints      int     `mapstructure:"base_points"`       // points for completing a goal before multipliers
	DecayFactor     float64 `mapstructure:"decay_factor"`      // multiplier decay on a missed check
	DefaultSkipDays int     `mapstructure:"default_skip_days"` // skip allowance for reduce goals
}

// SchedulerConfig contains background job scheduling settings.
type SchedulerConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	SessionCloseTime string `mapstructure:"session_close_time"` // "HH:MM" daily sweep for expired sessions
	GoalRolloverTime string `mapstructure:"goal_rollover_time"` // cron expression for goal rollover
	Timezone         string `mapstructure:"timezone"`
}

// NotifyConfig contains chat webhook notification settings.
type NotifyConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Channel    string `mapstructure:"channel"`
	Enabled    bool   `mapstructure:"enabled"`
}

// MetricsConfig contains Prometheus metrics exporter settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig contains application logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/recycle-league/")
	}

	// Explicit env bindings for 12-factor deployments
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.environment", "SERVER_ENVIRONMENT")

	_ = v.BindEnv("database.postgres.host", "POSTGRES_HOST")
	_ = v.BindEnv("database.postgres.port", "POSTGRES_PORT")
	_ = v.BindEnv("database.postgres.database", "POSTGRES_DB")
	_ = v.BindEnv("database.postgres.user", "POSTGRES_USER")
	_ = v.BindEnv("database.postgres.password", "POSTGRES_PASSWORD")
	_ = v.BindEnv("database.postgres.ssl_mode", "POSTGRES_SSL_MODE")
	_ = v.BindEnv("database.postgres.max_open_conns", "POSTGRES_MAX_OPEN_CONNS")
	_ = v.BindEnv("database.postgres.max_idle_conns", "POSTGRES_MAX_IDLE_CONNS")
	_ = v.BindEnv("database.postgres.conn_max_lifetime", "POSTGRES_CONN_MAX_LIFETIME")
	_ = v.BindEnv("database.postgres.migrations_mode", "POSTGRES_MIGRATIONS_MODE")

	_ = v.BindEnv("database.redis.host", "REDIS_HOST")
	_ = v.BindEnv("database.redis.port", "REDIS_PORT")
	_ = v.BindEnv("database.redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("database.redis.db", "REDIS_DB")
	_ = v.BindEnv("database.redis.pool_size", "REDIS_POOL_SIZE")

	_ = v.BindEnv("leagues.seed_file", "LEAGUES_SEED_FILE")
	_ = v.BindEnv("leagues.session_days", "LEAGUES_SESSION_DAYS")
	_ = v.BindEnv("leagues.standings_ttl", "LEAGUES_STANDINGS_TTL")

	_ = v.BindEnv("goals.base_points", "GOALS_BASE_POINTS")
	_ = v.BindEnv("goals.decay_factor", "GOALS_DECAY_FACTOR")
	_ = v.BindEnv("goals.default_skip_days", "GOALS_DEFAULT_SKIP_DAYS")

	_ = v.BindEnv("scheduler.enabled", "SCHEDULER_ENABLED")
	_ = v.BindEnv("scheduler.session_close_time", "SCHEDULER_SESSION_CLOSE_TIME")
	_ = v.BindEnv("scheduler.goal_rollover_time", "SCHEDULER_GOAL_ROLLOVER_TIME")
	_ = v.BindEnv("scheduler.timezone", "SCHEDULER_TIMEZONE")

	_ = v.BindEnv("notify.webhook_url", "NOTIFY_WEBHOOK_URL")
	_ = v.BindEnv("notify.channel", "NOTIFY_CHANNEL")
	_ = v.BindEnv("notify.enabled", "NOTIFY_ENABLED")

	_ = v.BindEnv("logging.level", "LOG_LEVEL")
	_ = v.BindEnv("logging.format", "LOG_FORMAT")
	_ = v.BindEnv("logging.output", "LOG_OUTPUT")

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.postgres.migrations_mode", "auto")
	v.SetDefault("leagues.session_days", 30)
	v.SetDefault("leagues.standings_ttl", 60)
	v.SetDefault("goals.base_points", 10)
	v.SetDefault("goals.decay_factor", 0.9)
	v.SetDefault("goals.default_skip_days", 2)
	v.SetDefault("scheduler.timezone", "UTC")
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if c.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if c.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}
	if c.Database.Redis.Host == "" {
		return fmt.Errorf("database.redis.host is required")
	}
	if c.Leagues.SessionDays <= 0 {
		return fmt.Errorf("leagues.session_days must be positive")
	}
	if c.Goals.DecayFactor < 0 || c.Goals.DecayFactor > 1 {
		return fmt.Errorf("goals.decay_factor must be in [0, 1]")
	}
	return nil
}

// GetLocation returns the scheduler timezone location.
func (c *SchedulerConfig) GetLocation() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// StandingsTTLDuration returns the standings cache TTL as a duration.
func (c *LeaguesConfig) StandingsTTLDuration() time.Duration {
	return time.Duration(c.StandingsTTL) * time.Second
}
