package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// HTTP server
	Server ServerConfig `mapstructure:"server"`

	// PostgreSQL
	Postgres PostgresConfig `mapstructure:"postgres"`

	// Redis
	Redis RedisConfig `mapstructure:"redis"`

	// NATS
	NATS NATSConfig `mapstructure:"nats"`

	// Prometheus
	Prometheus PrometheusConfig `mapstructure:"prometheus"`

	// Short link behaviour
	Link LinkConfig `mapstructure:"link"`

	// Logging
	Log LogConfig `mapstructure:"log"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	BaseURL         string        `mapstructure:"base_url"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimit       int           `mapstructure:"rate_limit"`
	RateWindow      time.Duration `mapstructure:"rate_window"`
}

type PostgresConfig struct {
	Host              string `mapstructure:"host"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	Database          string `mapstructure:"database"`
	Port              int    `mapstructure:"port"`
	SSLMode           string `mapstructure:"sslmode"`
	MaxConns          int32  `mapstructure:"max_conns"`
	MinConns          int32  `mapstructure:"min_conns"`
	MaxConnLifetime   string `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   string `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod string `mapstructure:"health_check_period"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	TLS      bool   `mapstructure:"tls"`
}

type NATSConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	MonitorPort int    `mapstructure:"monitor_port"`
	Enabled     bool   `mapstructure:"enabled"`
}

type PrometheusConfig struct {
	Port    int  `mapstructure:"port"`
	Enabled bool `mapstructure:"enabled"`
}

// LinkConfig tunes code allocation, caching and dependency timeouts.
type LinkConfig struct {
	CodeLength        int           `mapstructure:"code_length"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	RetryBackoff      time.Duration `mapstructure:"retry_backoff"`
	Lifetime          time.Duration `mapstructure:"lifetime"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
	StoreTimeout      time.Duration `mapstructure:"store_timeout"`
	CacheTimeout      time.Duration `mapstructure:"cache_timeout"`
	DNSTimeout        time.Duration `mapstructure:"dns_timeout"`
	BackgroundTimeout time.Duration `mapstructure:"background_timeout"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Encoding   string `mapstructure:"encoding"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

func Load() (*Config, error) {
	// Load local .env for development (ignored when missing).
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	// Search for config/config.yaml (plus root for overrides).
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Allow environment variables to override YAML entries.
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Preserve legacy env variable names.
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Validate rejects values the link services cannot work with.
func (c *Config) Validate() error {
	l := c.Link
	switch {
	case l.CodeLength < 4 || l.CodeLength > 32:
		return errors.New("link.code_length must be between 4 and 32")
	case l.MaxAttempts < 1:
		return errors.New("link.max_attempts must be at least 1")
	case l.RetryBackoff < 0:
		return errors.New("link.retry_backoff must not be negative")
	case l.Lifetime <= 0:
		return errors.New("link.lifetime must be positive")
	case l.CacheTTL <= 0:
		return errors.New("link.cache_ttl must be positive")
	case l.StoreTimeout <= 0 || l.CacheTimeout <= 0 || l.DNSTimeout <= 0 || l.BackgroundTimeout <= 0:
		return errors.New("link timeouts must be positive")
	}
	if c.Server.BaseURL == "" {
		return errors.New("server.base_url is required")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.rate_limit", 60)
	v.SetDefault("server.rate_window", time.Minute)

	v.SetDefault("nats.enabled", true)
	v.SetDefault("prometheus.enabled", true)

	v.SetDefault("link.code_length", 7)
	v.SetDefault("link.max_attempts", 5)
	v.SetDefault("link.retry_backoff", time.Duration(0))
	v.SetDefault("link.lifetime", 30*24*time.Hour)
	v.SetDefault("link.cache_ttl", time.Hour)
	v.SetDefault("link.store_timeout", 2*time.Second)
	v.SetDefault("link.cache_timeout", 500*time.Millisecond)
	v.SetDefault("link.dns_timeout", 3*time.Second)
	v.SetDefault("link.background_timeout", 5*time.Second)
	v.SetDefault("link.sweep_interval", 10*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 14)
}

func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.addr", "SERVER_ADDR")
	v.BindEnv("server.base_url", "BASE_URL")

	// PostgreSQL
	v.BindEnv("postgres.host", "PG_HOST")
	v.BindEnv("postgres.user", "PG_USER")
	v.BindEnv("postgres.password", "PG_PASSWORD")
	v.BindEnv("postgres.database", "PG_DB")
	v.BindEnv("postgres.port", "PG_PORT")
	v.BindEnv("postgres.sslmode", "PG_SSLMODE")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")
	v.BindEnv("redis.tls", "REDIS_TLS")

	// NATS
	v.BindEnv("nats.host", "NATS_HOST")
	v.BindEnv("nats.port", "NATS_PORT")
	v.BindEnv("nats.user", "NATS_USER")
	v.BindEnv("nats.password", "NATS_PASSWORD")
	v.BindEnv("nats.monitor_port", "NATS_MONITOR_PORT")

	// Prometheus
	v.BindEnv("prometheus.port", "PROM_PORT")

	// Logging
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.file", "LOG_FILE")
}
