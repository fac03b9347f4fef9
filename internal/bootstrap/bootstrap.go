// Package bootstrap opens the infrastructure shared by the API server and
// the worker and builds the application services on top of it.
package bootstrap

import (
	"context"
	"os"
	"time"

	"github.com/turtacn/Synastry-Intelligence/internal/application/activation"
	"github.com/turtacn/Synastry-Intelligence/internal/application/compatibility"
	"github.com/turtacn/Synastry-Intelligence/internal/config"
	"github.com/turtacn/Synastry-Intelligence/internal/domain/chart"
	"github.com/turtacn/Synastry-Intelligence/internal/domain/synastry"
	"github.com/turtacn/Synastry-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/Synastry-Intelligence/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/Synastry-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/Synastry-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/Synastry-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Synastry-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/Synastry-Intelligence/internal/interfaces/http/handlers"
)

// pairLockTTL bounds how long a crashed worker can block a pair.
const pairLockTTL = 30 * time.Second

// LoadConfig reads path when it exists and falls back to defaults plus
// SYNASTRY_* environment variables otherwise.
func LoadConfig(path string) (*config.Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return config.Load(path)
		}
	}
	return config.LoadFromEnv()
}

// NewLogger builds the process logger and installs it as the default.
func NewLogger(cfg *config.Config) (logging.Logger, error) {
	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	logging.SetDefault(logger)
	return logger, nil
}

// Infra holds the opened clients.  Redis and Kafka fields are nil when the
// corresponding section is disabled.
type Infra struct {
	Config    *config.Config
	Logger    logging.Logger
	Collector prometheus.MetricsCollector
	Metrics   *prometheus.SynastryMetrics

	Postgres *postgres.Connection
	Charts   chart.Repository
	Results  synastry.Repository

	Redis    *redis.Client
	Cache    redis.Cache
	Transits *redis.TransitStore

	Producer *kafka.Producer
}

// Open connects to every configured backend.  On failure the clients opened
// so far are closed again.
func Open(ctx context.Context, cfg *config.Config, logger logging.Logger) (_ *Infra, err error) {
	infra := &Infra{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			infra.Close()
		}
	}()

	if err = infra.openMetrics(); err != nil {
		return nil, err
	}
	if err = infra.openPostgres(ctx); err != nil {
		return nil, err
	}
	if cfg.Cache.Enabled {
		if err = infra.openRedis(ctx); err != nil {
			return nil, err
		}
	}
	if cfg.Messaging.Enabled {
		if err = infra.openKafka(ctx); err != nil {
			return nil, err
		}
	}
	return infra, nil
}

func (i *Infra) openMetrics() error {
	pc := i.Config.Monitoring.Prometheus
	if !pc.Enabled {
		i.Collector = prometheus.NewNoopCollector()
		i.Metrics = prometheus.NewNoopMetrics()
		return nil
	}
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            pc.Namespace,
		Subsystem:            pc.Subsystem,
		EnableProcessMetrics: pc.EnableProcessMetrics,
		EnableGoMetrics:      pc.EnableGoMetrics,
	}, i.Logger)
	if err != nil {
		return err
	}
	i.Collector = collector
	i.Metrics = prometheus.NewSynastryMetrics(collector)
	return nil
}

func (i *Infra) openPostgres(ctx context.Context) error {
	pg := i.Config.Database.Postgres
	conn, err := postgres.NewConnection(ctx, postgres.PoolConfig{
		DSN:             pg.DSN(),
		MaxOpenConns:    pg.MaxOpenConns,
		MaxIdleConns:    pg.MaxIdleConns,
		ConnMaxLifetime: pg.ConnMaxLifetime,
		ConnMaxIdleTime: pg.ConnMaxIdleTime,
	}, i.Logger)
	if err != nil {
		return err
	}
	i.Postgres = conn

	if pg.AutoMigrate {
		m, err := postgres.NewMigrator(conn, pg.MigrationPath, i.Logger)
		if err != nil {
			return err
		}
		err = m.Up()
		_ = m.Close()
		if err != nil {
			return err
		}
	}

	i.Charts = repositories.NewPostgresChartRepo(conn, i.Metrics, i.Logger)
	i.Results = repositories.NewPostgresCompatibilityRepo(conn, i.Metrics, i.Logger)
	return nil
}

func (i *Infra) openRedis(ctx context.Context) error {
	rc := i.Config.Cache.Redis
	client, err := redis.NewClient(ctx, redis.ClientConfig{
		Addrs:        []string{rc.Addr},
		Password:     rc.Password,
		DB:           rc.DB,
		PoolSize:     rc.PoolSize,
		MinIdleConns: rc.MinIdleConns,
		DialTimeout:  rc.DialTimeout,
		ReadTimeout:  rc.ReadTimeout,
		WriteTimeout: rc.WriteTimeout,
	}, i.Logger)
	if err != nil {
		return err
	}
	i.Redis = client
	i.Cache = redis.NewRedisCache(client, i.Logger,
		redis.WithPrefix(rc.KeyPrefix),
		redis.WithDefaultTTL(i.Config.Scoring.ResultTTL),
		redis.WithJitter(0.1),
	)
	i.Transits = redis.NewTransitStore(client, rc.KeyPrefix, i.Logger)
	return nil
}

func (i *Infra) openKafka(ctx context.Context) error {
	kc := i.Config.Messaging.Kafka
	tm, err := kafka.NewTopicManager(ctx, kc.Brokers, i.Logger)
	if err != nil {
		return err
	}
	err = tm.EnsureTopics(kafka.DefaultTopics(kc.TopicReplication, kc.DLQSuffix))
	_ = tm.Close()
	if err != nil {
		return err
	}

	p, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      kc.Brokers,
		ClientID:     kc.ClientID,
		RequiredAcks: kc.RequiredAcks,
		MaxRetries:   kc.MaxRetries,
		BatchSize:    kc.BatchSize,
		BatchTimeout: kc.BatchTimeout,
	}, i.Logger)
	if err != nil {
		return err
	}
	i.Producer = p
	return nil
}

// CompatibilityService wires the scoring service to the opened backends.
func (i *Infra) CompatibilityService() compatibility.Service {
	deps := compatibility.Deps{
		Charts:  i.Charts,
		Results: i.Results,
		Metrics: i.Metrics,
		Logger:  i.Logger,
	}
	if i.Cache != nil {
		deps.Cache = i.Cache
	}
	if i.Producer != nil {
		deps.Publisher = i.Producer
	}
	return compatibility.NewService(compatibility.Config{
		MinorAspectCap: i.Config.Scoring.MinorAspectCap,
		ResultTTL:      i.Config.Scoring.ResultTTL,
	}, deps)
}

// ActivationService wires the transit matcher.  Without Redis there is no
// transit store, so only requests carrying inline transits succeed.
func (i *Infra) ActivationService(scorer activation.PairScorer) activation.Service {
	deps := activation.Deps{
		Scorer:   scorer,
		Partners: i.Results,
		Metrics:  i.Metrics,
		Logger:   i.Logger,
	}
	if i.Redis != nil {
		client := i.Redis
		deps.Source = i.Transits
		deps.Cache = i.Cache
		deps.NewLock = func(key string) activation.Locker {
			return redis.NewPairLock(client, key, pairLockTTL)
		}
	}
	if i.Producer != nil {
		deps.Publisher = i.Producer
	}
	return activation.NewService(activation.Config{
		ActivationTTL:    i.Config.Scoring.ActivationTTL,
		BatchConcurrency: i.Config.Scoring.BatchConcurrency,
	}, deps)
}

// HealthCheckers reports one checker per opened backend.
func (i *Infra) HealthCheckers() []handlers.HealthChecker {
	var out []handlers.HealthChecker
	if i.Postgres != nil {
		out = append(out, handlers.NewChecker("postgres", i.Postgres.HealthCheck))
	}
	if i.Redis != nil {
		out = append(out, handlers.NewChecker("redis", i.Redis.Ping))
	}
	return out
}

// Close releases the clients in reverse order of opening.
func (i *Infra) Close() {
	if i.Producer != nil {
		if err := i.Producer.Close(); err != nil {
			i.Logger.Warn("kafka producer close failed", logging.Err(err))
		}
	}
	if i.Redis != nil {
		if err := i.Redis.Close(); err != nil {
			i.Logger.Warn("redis close failed", logging.Err(err))
		}
	}
	if i.Postgres != nil {
		if err := i.Postgres.Close(); err != nil {
			i.Logger.Warn("postgres close failed", logging.Err(err))
		}
	}
}

// WatchLogLevel follows edits of the config file and applies a changed
// log level.  Other settings need a restart.
func WatchLogLevel(path string, logger logging.Logger) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return config.Watch(path, func(cfg *config.Config) {
		if logging.SetLevel(logger, cfg.Log.Level) {
			logger.Info("log level changed", logging.String("level", cfg.Log.Level))
		}
	}, func(err error) {
		logger.Warn("config reload rejected", logging.Err(err))
	})
}
