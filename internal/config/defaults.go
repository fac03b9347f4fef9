package config

import (
	"time"

	"github.com/spf13/viper"
)

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerPort            = 8080
	DefaultServerMode            = "release"
	DefaultServerReadTimeout     = 15 * time.Second
	DefaultServerWriteTimeout    = 15 * time.Second
	DefaultServerMaxBodySize     = 1 << 20
	DefaultServerShutdownTimeout = 10 * time.Second

	DefaultDBHost          = "localhost"
	DefaultDBPort          = 5432
	DefaultDBUser          = "synastry"
	DefaultDBName          = "synastry"
	DefaultDBSSLMode       = "disable"
	DefaultDBMaxOpenConns  = 25
	DefaultDBMaxIdleConns  = 5
	DefaultDBConnLifetime  = 30 * time.Minute
	DefaultDBMigrationPath = "file://migrations"

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisPoolSize  = 20
	DefaultRedisKeyPrefix = "synastry:"

	DefaultKafkaBroker       = "localhost:9092"
	DefaultKafkaGroupID      = "synastry-worker"
	DefaultKafkaClientID     = "synastry"
	DefaultKafkaBatchSize    = 100
	DefaultKafkaBatchTimeout = 10 * time.Millisecond
	DefaultKafkaMaxRetries   = 3
	DefaultKafkaRetryBackoff = 200 * time.Millisecond
	DefaultKafkaDLQSuffix    = ".dlq"

	DefaultMetricsNamespace = "synastry"
	DefaultMetricsPath      = "/metrics"

	DefaultMinorAspectCap   = 18
	DefaultResultTTL        = 24 * time.Hour
	DefaultActivationTTL    = 24 * time.Hour
	DefaultBatchConcurrency = 8

	DefaultWorkerConcurrency    = 4
	DefaultWorkerHandlerTimeout = 30 * time.Second
	DefaultWorkerMaxRetries     = 3
	DefaultWorkerHealthPort     = 8081

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// setDefaults registers every key with viper.  Keys viper does not know about
// are invisible to AutomaticEnv during Unmarshal, so this is what makes pure
// SYNASTRY_* environment configuration work.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.mode", DefaultServerMode)
	v.SetDefault("server.read_timeout", DefaultServerReadTimeout)
	v.SetDefault("server.write_timeout", DefaultServerWriteTimeout)
	v.SetDefault("server.max_body_size", DefaultServerMaxBodySize)
	v.SetDefault("server.shutdown_timeout", DefaultServerShutdownTimeout)

	v.SetDefault("database.postgres.host", DefaultDBHost)
	v.SetDefault("database.postgres.port", DefaultDBPort)
	v.SetDefault("database.postgres.user", DefaultDBUser)
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.db_name", DefaultDBName)
	v.SetDefault("database.postgres.ssl_mode", DefaultDBSSLMode)
	v.SetDefault("database.postgres.max_open_conns", DefaultDBMaxOpenConns)
	v.SetDefault("database.postgres.max_idle_conns", DefaultDBMaxIdleConns)
	v.SetDefault("database.postgres.conn_max_lifetime", DefaultDBConnLifetime)
	v.SetDefault("database.postgres.conn_max_idle_time", 0)
	v.SetDefault("database.postgres.migration_path", DefaultDBMigrationPath)
	v.SetDefault("database.postgres.auto_migrate", true)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.redis.addr", DefaultRedisAddr)
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.pool_size", DefaultRedisPoolSize)
	v.SetDefault("cache.redis.min_idle_conns", 0)
	v.SetDefault("cache.redis.dial_timeout", 5*time.Second)
	v.SetDefault("cache.redis.read_timeout", 3*time.Second)
	v.SetDefault("cache.redis.write_timeout", 3*time.Second)
	v.SetDefault("cache.redis.key_prefix", DefaultRedisKeyPrefix)

	v.SetDefault("messaging.enabled", true)
	v.SetDefault("messaging.kafka.brokers", []string{DefaultKafkaBroker})
	v.SetDefault("messaging.kafka.group_id", DefaultKafkaGroupID)
	v.SetDefault("messaging.kafka.client_id", DefaultKafkaClientID)
	v.SetDefault("messaging.kafka.auto_offset_reset", "earliest")
	v.SetDefault("messaging.kafka.batch_size", DefaultKafkaBatchSize)
	v.SetDefault("messaging.kafka.batch_timeout", DefaultKafkaBatchTimeout)
	v.SetDefault("messaging.kafka.required_acks", -1)
	v.SetDefault("messaging.kafka.max_retries", DefaultKafkaMaxRetries)
	v.SetDefault("messaging.kafka.retry_backoff", DefaultKafkaRetryBackoff)
	v.SetDefault("messaging.kafka.dlq_suffix", DefaultKafkaDLQSuffix)
	v.SetDefault("messaging.kafka.topic_replication", 1)

	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
	v.SetDefault("log.output_paths", []string{"stdout"})
	v.SetDefault("log.error_output_paths", []string{"stderr"})

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.namespace", DefaultMetricsNamespace)
	v.SetDefault("monitoring.prometheus.subsystem", "")
	v.SetDefault("monitoring.prometheus.path", DefaultMetricsPath)
	v.SetDefault("monitoring.prometheus.enable_process_metrics", true)
	v.SetDefault("monitoring.prometheus.enable_go_metrics", true)

	v.SetDefault("scoring.minor_aspect_cap", DefaultMinorAspectCap)
	v.SetDefault("scoring.result_ttl", DefaultResultTTL)
	v.SetDefault("scoring.activation_ttl", DefaultActivationTTL)
	v.SetDefault("scoring.batch_concurrency", DefaultBatchConcurrency)

	v.SetDefault("worker.concurrency", DefaultWorkerConcurrency)
	v.SetDefault("worker.handler_timeout", DefaultWorkerHandlerTimeout)
	v.SetDefault("worker.max_retries", DefaultWorkerMaxRetries)
	v.SetDefault("worker.shutdown_timeout", DefaultServerShutdownTimeout)
	v.SetDefault("worker.health_port", DefaultWorkerHealthPort)
}

// ApplyDefaults fills zero-value fields in cfg.  Explicit values always win.
// Booleans are not touched here since false cannot be told apart from unset;
// their defaults come from setDefaults when loading through viper.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultServerReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultServerWriteTimeout
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = DefaultServerMaxBodySize
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultServerShutdownTimeout
	}

	// ── Postgres ──────────────────────────────────────────────────────────────
	pg := &cfg.Database.Postgres
	if pg.Host == "" {
		pg.Host = DefaultDBHost
	}
	if pg.Port == 0 {
		pg.Port = DefaultDBPort
	}
	if pg.User == "" {
		pg.User = DefaultDBUser
	}
	if pg.DBName == "" {
		pg.DBName = DefaultDBName
	}
	if pg.SSLMode == "" {
		pg.SSLMode = DefaultDBSSLMode
	}
	if pg.MaxOpenConns == 0 {
		pg.MaxOpenConns = DefaultDBMaxOpenConns
	}
	if pg.MaxIdleConns == 0 {
		pg.MaxIdleConns = DefaultDBMaxIdleConns
	}
	if pg.ConnMaxLifetime == 0 {
		pg.ConnMaxLifetime = DefaultDBConnLifetime
	}
	if pg.MigrationPath == "" {
		pg.MigrationPath = DefaultDBMigrationPath
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	// DB 0 is both valid and the default, so it is left alone.
	rc := &cfg.Cache.Redis
	if rc.Addr == "" {
		rc.Addr = DefaultRedisAddr
	}
	if rc.PoolSize == 0 {
		rc.PoolSize = DefaultRedisPoolSize
	}
	if rc.KeyPrefix == "" {
		rc.KeyPrefix = DefaultRedisKeyPrefix
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	kc := &cfg.Messaging.Kafka
	if len(kc.Brokers) == 0 {
		kc.Brokers = []string{DefaultKafkaBroker}
	}
	if kc.GroupID == "" {
		kc.GroupID = DefaultKafkaGroupID
	}
	if kc.ClientID == "" {
		kc.ClientID = DefaultKafkaClientID
	}
	if kc.AutoOffsetReset == "" {
		kc.AutoOffsetReset = "earliest"
	}
	if kc.BatchSize == 0 {
		kc.BatchSize = DefaultKafkaBatchSize
	}
	if kc.BatchTimeout == 0 {
		kc.BatchTimeout = DefaultKafkaBatchTimeout
	}
	if kc.MaxRetries == 0 {
		kc.MaxRetries = DefaultKafkaMaxRetries
	}
	if kc.RetryBackoff == 0 {
		kc.RetryBackoff = DefaultKafkaRetryBackoff
	}
	if kc.DLQSuffix == "" {
		kc.DLQSuffix = DefaultKafkaDLQSuffix
	}
	if kc.TopicReplication == 0 {
		kc.TopicReplication = 1
	}

	// ── Monitoring ────────────────────────────────────────────────────────────
	if cfg.Monitoring.Prometheus.Namespace == "" {
		cfg.Monitoring.Prometheus.Namespace = DefaultMetricsNamespace
	}
	if cfg.Monitoring.Prometheus.Path == "" {
		cfg.Monitoring.Prometheus.Path = DefaultMetricsPath
	}

	// ── Scoring ───────────────────────────────────────────────────────────────
	// A zero minor cap is meaningful (score majors only), so it is not filled.
	if cfg.Scoring.ResultTTL == 0 {
		cfg.Scoring.ResultTTL = DefaultResultTTL
	}
	if cfg.Scoring.ActivationTTL == 0 {
		cfg.Scoring.ActivationTTL = DefaultActivationTTL
	}
	if cfg.Scoring.BatchConcurrency == 0 {
		cfg.Scoring.BatchConcurrency = DefaultBatchConcurrency
	}

	// ── Worker ────────────────────────────────────────────────────────────────
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = DefaultWorkerConcurrency
	}
	if cfg.Worker.HandlerTimeout == 0 {
		cfg.Worker.HandlerTimeout = DefaultWorkerHandlerTimeout
	}
	if cfg.Worker.MaxRetries == 0 {
		cfg.Worker.MaxRetries = DefaultWorkerMaxRetries
	}
	if cfg.Worker.ShutdownTimeout == 0 {
		cfg.Worker.ShutdownTimeout = DefaultServerShutdownTimeout
	}
	if cfg.Worker.HealthPort == 0 {
		cfg.Worker.HealthPort = DefaultWorkerHealthPort
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}

// Default returns a fully defaulted Config, as used by the CLI when no file
// is given.  The minor cap starts at its default here.
func Default() *Config {
	cfg := &Config{
		Cache:      CacheConfig{Enabled: true},
		Messaging:  MessagingConfig{Enabled: true},
		Monitoring: MonitoringConfig{Prometheus: PrometheusConfig{Enabled: true}},
		Scoring:    ScoringConfig{MinorAspectCap: DefaultMinorAspectCap},
	}
	cfg.Database.Postgres.AutoMigrate = true
	ApplyDefaults(cfg)
	return cfg
}
