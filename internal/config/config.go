// Package config defines the configuration tree of the synastry services.
// No I/O lives here, only plain data types and validation.
package config

import (
	"fmt"
	"time"

	"github.com/turtacn/Synastry-Intelligence/internal/infrastructure/monitoring/logging"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationPath   string        `mapstructure:"migration_path"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DatabaseConfig groups the relational stores.
type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// CacheConfig groups cache backends.
type CacheConfig struct {
	Enabled bool        `mapstructure:"enabled"`
	Redis   RedisConfig `mapstructure:"redis"`
}

// KafkaConfig holds producer and consumer parameters.
type KafkaConfig struct {
	Brokers         []string      `mapstructure:"brokers"`
	GroupID         string        `mapstructure:"group_id"`
	ClientID        string        `mapstructure:"client_id"`
	AutoOffsetReset string        `mapstructure:"auto_offset_reset"` // "earliest" | "latest"
	BatchSize       int           `mapstructure:"batch_size"`
	BatchTimeout    time.Duration `mapstructure:"batch_timeout"`
	RequiredAcks    int           `mapstructure:"required_acks"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"`
	DLQSuffix       string        `mapstructure:"dlq_suffix"`
	// TopicReplication is the replication factor used when the services
	// create their topics at startup.
	TopicReplication int `mapstructure:"topic_replication"`
}

// MessagingConfig groups brokers.
type MessagingConfig struct {
	Enabled bool        `mapstructure:"enabled"`
	Kafka   KafkaConfig `mapstructure:"kafka"`
}

// PrometheusConfig controls the metrics registry and scrape path.
type PrometheusConfig struct {
	Enabled              bool   `mapstructure:"enabled"`
	Namespace            string `mapstructure:"namespace"`
	Subsystem            string `mapstructure:"subsystem"`
	Path                 string `mapstructure:"path"`
	EnableProcessMetrics bool   `mapstructure:"enable_process_metrics"`
	EnableGoMetrics      bool   `mapstructure:"enable_go_metrics"`
}

// MonitoringConfig groups observability backends.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// ScoringConfig tunes the compatibility pipeline.
type ScoringConfig struct {
	// MinorAspectCap bounds how many minor aspects enter the score.
	MinorAspectCap int `mapstructure:"minor_aspect_cap"`
	// ResultTTL is how long a computed result stays in the cache.
	ResultTTL time.Duration `mapstructure:"result_ttl"`
	// ActivationTTL is the upper bound for a cached daily activation; entries
	// also expire at the next UTC midnight.
	ActivationTTL time.Duration `mapstructure:"activation_ttl"`
	// BatchConcurrency bounds parallel pair evaluation in batch activation.
	BatchConcurrency int `mapstructure:"batch_concurrency"`
}

// WorkerConfig holds background-worker execution parameters.
type WorkerConfig struct {
	Concurrency     int           `mapstructure:"concurrency"`
	HandlerTimeout  time.Duration `mapstructure:"handler_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// HealthPort serves /healthz, /readyz and the metrics endpoint.
	HealthPort int `mapstructure:"health_port"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration shared by the API server, the worker and
// the CLI.
type Config struct {
	Server     ServerConfig      `mapstructure:"server"`
	Database   DatabaseConfig    `mapstructure:"database"`
	Cache      CacheConfig       `mapstructure:"cache"`
	Messaging  MessagingConfig   `mapstructure:"messaging"`
	Log        logging.LogConfig `mapstructure:"log"`
	Monitoring MonitoringConfig  `mapstructure:"monitoring"`
	Scoring    ScoringConfig     `mapstructure:"scoring"`
	Worker     WorkerConfig      `mapstructure:"worker"`
}

// DSN renders the connection string for the pgx stdlib driver.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode)
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate returns the first semantic error in c.  Callers treat any error
// as fatal.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	pg := c.Database.Postgres
	if pg.Host == "" {
		return fmt.Errorf("config: database.postgres.host is required")
	}
	if pg.Port < 1 || pg.Port > 65535 {
		return fmt.Errorf("config: database.postgres.port %d is out of range [1, 65535]", pg.Port)
	}
	if pg.DBName == "" {
		return fmt.Errorf("config: database.postgres.db_name is required")
	}
	if pg.MaxOpenConns < 1 {
		return fmt.Errorf("config: database.postgres.max_open_conns must be >= 1, got %d", pg.MaxOpenConns)
	}

	if c.Cache.Enabled {
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("config: cache.redis.addr is required when cache is enabled")
		}
		if c.Cache.Redis.DB < 0 {
			return fmt.Errorf("config: cache.redis.db must be >= 0, got %d", c.Cache.Redis.DB)
		}
	}

	if c.Messaging.Enabled {
		if len(c.Messaging.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: messaging.kafka.brokers must contain at least one broker address")
		}
		if c.Messaging.Kafka.GroupID == "" {
			return fmt.Errorf("config: messaging.kafka.group_id is required")
		}
	}

	if c.Scoring.MinorAspectCap < 0 {
		return fmt.Errorf("config: scoring.minor_aspect_cap must be >= 0, got %d", c.Scoring.MinorAspectCap)
	}
	if c.Scoring.BatchConcurrency < 1 {
		return fmt.Errorf("config: scoring.batch_concurrency must be >= 1, got %d", c.Scoring.BatchConcurrency)
	}

	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("config: worker.concurrency must be >= 1, got %d", c.Worker.Concurrency)
	}
	if c.Worker.HealthPort < 1 || c.Worker.HealthPort > 65535 {
		return fmt.Errorf("config: worker.health_port %d is out of range [1, 65535]", c.Worker.HealthPort)
	}

	switch c.Log.Level {
	case logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, logging.LevelError:
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}
