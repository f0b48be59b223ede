// Package config loads monitor service configuration from defaults, an
// optional YAML file, and MONITOR_-prefixed environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Dispatch   DispatchConfig   `mapstructure:"dispatch"`
	Reconcile  ReconcileConfig  `mapstructure:"reconcile"`
	Analysis   AnalysisConfig   `mapstructure:"analysis"`
	OpenSearch OpenSearchConfig `mapstructure:"opensearch"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type AuthConfig struct {
	// JWTSecret enables bearer token validation on the ingestion
	// endpoints when non-empty.
	JWTSecret string `mapstructure:"jwt_secret"`
}

type DatabaseConfig struct {
	// URL is the Postgres connection string. Empty selects the in-memory
	// stores (development and tests only; no durability).
	URL            string        `mapstructure:"url"`
	MigrationsPath string        `mapstructure:"migrations_path"`
	// OpTimeout bounds every storage operation reached from a request
	// handler. Exceeding it surfaces a storage timeout, never a hang.
	OpTimeout time.Duration `mapstructure:"op_timeout"`
}

type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	// DedupeWindow is how long a dedupe key stays claimed in the
	// fast-path registry.
	DedupeWindow time.Duration `mapstructure:"dedupe_window"`
}

type NATSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

type DispatchConfig struct {
	Workers      int           `mapstructure:"workers"`
	QueueSize    int           `mapstructure:"queue_size"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	BaseBackoff  time.Duration `mapstructure:"base_backoff"`
	MaxBackoff   time.Duration `mapstructure:"max_backoff"`
	JobTimeout   time.Duration `mapstructure:"job_timeout"`
}

type ReconcileConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

type AnalysisConfig struct {
	// ThresholdsPath points at the YAML file configuring the built-in
	// drift detectors and metric calculator.
	ThresholdsPath string `mapstructure:"thresholds_path"`
}

type OpenSearchConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	URL           string `mapstructure:"url"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	TLSSkipVerify bool   `mapstructure:"tls_skip_verify"`
	IndexPrefix   string `mapstructure:"index_prefix"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", 8086)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("database.url", "")
	v.SetDefault("database.migrations_path", "migrations")
	v.SetDefault("database.op_timeout", "5s")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.dedupe_window", "10m")
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("dispatch.workers", 4)
	v.SetDefault("dispatch.queue_size", 1024)
	v.SetDefault("dispatch.max_attempts", 5)
	v.SetDefault("dispatch.base_backoff", "200ms")
	v.SetDefault("dispatch.max_backoff", "30s")
	v.SetDefault("dispatch.job_timeout", "30s")
	v.SetDefault("reconcile.enabled", true)
	v.SetDefault("reconcile.interval", "1m")
	v.SetDefault("analysis.thresholds_path", "")
	v.SetDefault("opensearch.enabled", false)
	v.SetDefault("opensearch.url", "https://localhost:9200")
	v.SetDefault("opensearch.username", "admin")
	v.SetDefault("opensearch.tls_skip_verify", true)
	v.SetDefault("opensearch.index_prefix", "driftwatch")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/driftwatch/monitor")
	}

	// Environment variables override
	v.SetEnvPrefix("MONITOR")
	v.AutomaticEnv()

	// Read config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
