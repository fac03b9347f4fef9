// Package integration runs the HTTP API against real PostgreSQL and Redis.
// The tests are skipped unless SYNASTRY_INTEGRATION_TEST is set; connection
// settings come from the usual SYNASTRY_* variables, for example
// SYNASTRY_DATABASE_POSTGRES_HOST and SYNASTRY_CACHE_REDIS_ADDR.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/Synastry-Intelligence/internal/application/activation"
	"github.com/turtacn/Synastry-Intelligence/internal/application/compatibility"
	"github.com/turtacn/Synastry-Intelligence/internal/bootstrap"
	"github.com/turtacn/Synastry-Intelligence/internal/config"
	"github.com/turtacn/Synastry-Intelligence/internal/infrastructure/monitoring/logging"
	httpapi "github.com/turtacn/Synastry-Intelligence/internal/interfaces/http"
	"github.com/turtacn/Synastry-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/Synastry-Intelligence/internal/interfaces/http/middleware"
	"github.com/turtacn/Synastry-Intelligence/pkg/types/common"
)

const (
	// EnvIntegrationEnabled controls whether integration tests run.
	EnvIntegrationEnabled = "SYNASTRY_INTEGRATION_TEST"

	// SetupTimeout bounds connecting and migrating.
	SetupTimeout = 60 * time.Second

	migrationsURL = "file://../../migrations"
)

func SkipIfNoIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv(EnvIntegrationEnabled) == "" {
		t.Skipf("skipping integration test: set %s=1 to enable", EnvIntegrationEnabled)
	}
}

// TestEnvironment bundles the opened backends, the services and an HTTP test
// server running the production router.
type TestEnvironment struct {
	Ctx           context.Context
	Cfg           *config.Config
	Infra         *bootstrap.Infra
	Compatibility compatibility.Service
	Activation    activation.Service
	Server        *httptest.Server
}

// SetupTestEnvironment opens a fresh environment for t.  Redis keys carry a
// per-test prefix so parallel runs do not see each other's cache entries.
func SetupTestEnvironment(t *testing.T) *TestEnvironment {
	t.Helper()
	SkipIfNoIntegration(t)

	cfg, err := config.LoadFromEnv()
	require.NoError(t, err)
	cfg.Database.Postgres.MigrationPath = migrationsURL
	cfg.Database.Postgres.AutoMigrate = true
	cfg.Cache.Enabled = true
	cfg.Cache.Redis.KeyPrefix = "it-" + uuid.NewString()[:8] + ":"
	cfg.Messaging.Enabled = false
	cfg.Monitoring.Prometheus.Enabled = false

	ctx, cancel := context.WithTimeout(context.Background(), SetupTimeout)
	defer cancel()
	infra, err := bootstrap.Open(ctx, cfg, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(infra.Close)

	compat := infra.CompatibilityService()
	act := infra.ActivationService(compat)

	gin.SetMode(gin.TestMode)
	router := httpapi.NewRouter(httpapi.RouterConfig{
		ChartHandler:         handlers.NewChartHandler(compat),
		CompatibilityHandler: handlers.NewCompatibilityHandler(compat),
		ActivationHandler:    handlers.NewActivationHandler(act),
		HealthHandler:        handlers.NewHealthHandler("integration", infra.HealthCheckers()...),
		Metrics:              infra.Metrics,
		MetricsCollector:     infra.Collector,
		Logging:              middleware.DefaultLoggingConfig(),
		MaxBodySize:          cfg.Server.MaxBodySize,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &TestEnvironment{
		Ctx:           context.Background(),
		Cfg:           cfg,
		Infra:         infra,
		Compatibility: compat,
		Activation:    act,
		Server:        srv,
	}
}

// Envelope is the API response with the data left undecoded.
type Envelope struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *common.ErrorDetail `json:"error"`
}

// Do sends body as JSON and decodes the response envelope.
func (e *TestEnvironment) Do(t *testing.T, method, path string, body interface{}) (int, Envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequestWithContext(e.Ctx, method, e.Server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.Server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

// DecodeData unmarshals the envelope payload into dst.
func DecodeData(t *testing.T, env Envelope, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

// UniqueID returns a chart ID that does not collide across runs.
func UniqueID(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}
