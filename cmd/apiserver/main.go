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
	"github.com/turtacn/Synastry-Intelligence/internal/infrastructure/monitoring/logging"
	httpapi "github.com/turtacn/Synastry-Intelligence/internal/interfaces/http"
	"github.com/turtacn/Synastry-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/Synastry-Intelligence/internal/interfaces/http/middleware"
)

var version = "dev"

const defaultConfigPath = "configs/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := bootstrap.LoadConfig(configPath)
	if err != nil {
		return err
	}
	logger, err := bootstrap.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.Named("apiserver")
	logger.Info("starting synastry API server",
		logging.String("version", version),
		logging.Int("port", cfg.Server.Port),
	)

	gin.SetMode(cfg.Server.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	infra, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer infra.Close()

	compat := infra.CompatibilityService()
	act := infra.ActivationService(compat)

	router := httpapi.NewRouter(httpapi.RouterConfig{
		ChartHandler:         handlers.NewChartHandler(compat),
		CompatibilityHandler: handlers.NewCompatibilityHandler(compat),
		ActivationHandler:    handlers.NewActivationHandler(act),
		HealthHandler:        handlers.NewHealthHandler(version, infra.HealthCheckers()...),
		Logger:               logger,
		Metrics:              infra.Metrics,
		MetricsCollector:     infra.Collector,
		MetricsPath:          cfg.Monitoring.Prometheus.Path,
		Logging:              middleware.DefaultLoggingConfig(),
		MaxBodySize:          cfg.Server.MaxBodySize,
	})
	srv := httpapi.NewServer(httpapi.ServerConfig{
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, router, logger)

	if err := bootstrap.WatchLogLevel(configPath, logger); err != nil {
		logger.Warn("config watch disabled", logging.Err(err))
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	if err := srv.Stop(context.Background()); err != nil {
		logger.Error("graceful shutdown failed", logging.Err(err))
		return err
	}
	logger.Info("synastry API server stopped")
	return nil
}
