package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/Synastry-Intelligence/internal/bootstrap"
	"github.com/turtacn/Synastry-Intelligence/internal/config"
	"github.com/turtacn/Synastry-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/Synastry-Intelligence/internal/infrastructure/monitoring/logging"
	httpapi "github.com/turtacn/Synastry-Intelligence/internal/interfaces/http"
	"github.com/turtacn/Synastry-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/Synastry-Intelligence/internal/interfaces/http/middleware"
	"github.com/turtacn/Synastry-Intelligence/internal/interfaces/worker"
	"github.com/turtacn/Synastry-Intelligence/pkg/errors"
)

var version = "dev"

const defaultConfigPath = "configs/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	concurrency := flag.Int("workers", 0, "concurrent fetch loops (default from config)")
	flag.Parse()

	if err := run(*configPath, *concurrency); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, concurrency int) error {
	cfg, err := bootstrap.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if !cfg.Messaging.Enabled {
		return errors.New(errors.ErrCodeValidation, "the worker needs messaging.enabled")
	}
	if !cfg.Cache.Enabled {
		return errors.New(errors.ErrCodeValidation, "the worker needs cache.enabled for the transit store")
	}
	if concurrency > 0 {
		cfg.Worker.Concurrency = concurrency
	}

	logger, err := bootstrap.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.Named("worker")
	logger.Info("starting synastry worker",
		logging.String("version", version),
		logging.Int("concurrency", cfg.Worker.Concurrency),
	)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	infra, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer infra.Close()

	compat := infra.CompatibilityService()
	act := infra.ActivationService(compat)

	consumer, err := kafka.NewConsumer(consumerConfig(cfg), logger)
	if err != nil {
		return err
	}
	err = worker.Register(consumer, infra.Metrics,
		worker.NewCompatibilityRequestedHandler(compat, logger),
		worker.NewTransitsReadyHandler(infra.Transits, act, 0, logger),
	)
	if err != nil {
		_ = consumer.Close()
		return err
	}

	health := httpapi.NewServer(httpapi.ServerConfig{Port: cfg.Worker.HealthPort},
		httpapi.NewRouter(httpapi.RouterConfig{
			HealthHandler:    handlers.NewHealthHandler(version, infra.HealthCheckers()...),
			Logger:           logger,
			Metrics:          infra.Metrics,
			MetricsCollector: infra.Collector,
			MetricsPath:      cfg.Monitoring.Prometheus.Path,
			Logging:          middleware.DefaultLoggingConfig(),
		}), logger)
	errCh := make(chan error, 1)
	go func() { errCh <- health.Start() }()

	if err := bootstrap.WatchLogLevel(configPath, logger); err != nil {
		logger.Warn("config watch disabled", logging.Err(err))
	}

	if err := consumer.Start(ctx); err != nil {
		_ = consumer.Close()
		return err
	}

	var runErr error
	select {
	case runErr = <-errCh:
		logger.Error("health server failed", logging.Err(runErr))
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	// Close waits for in-flight handlers.
	if err := consumer.Close(); err != nil {
		logger.Warn("consumer close failed", logging.Err(err))
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer cancel()
	if err := health.Stop(shutdownCtx); err != nil {
		logger.Warn("health server shutdown failed", logging.Err(err))
	}
	logger.Info("synastry worker stopped")
	return runErr
}

func consumerConfig(cfg *config.Config) kafka.ConsumerConfig {
	kc := cfg.Messaging.Kafka
	return kafka.ConsumerConfig{
		Brokers:         kc.Brokers,
		GroupID:         kc.GroupID,
		Topics:          []string{kafka.TopicCompatibilityRequested, kafka.TopicTransitsReady},
		AutoOffsetReset: kc.AutoOffsetReset,
		Concurrency:     cfg.Worker.Concurrency,
		HandlerTimeout:  cfg.Worker.HandlerTimeout,
		Retry: kafka.RetryConfig{
			MaxRetries:   cfg.Worker.MaxRetries,
			RetryBackoff: kc.RetryBackoff,
			DLQSuffix:    kc.DLQSuffix,
			Permanent:    worker.IsPermanent,
		},
	}
}
