package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/Synastry-Intelligence/internal/application/activation"
	"github.com/turtacn/Synastry-Intelligence/internal/config"
	"github.com/turtacn/Synastry-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Synastry-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/Synastry-Intelligence/internal/testutil"
	"github.com/turtacn/Synastry-Intelligence/pkg/errors"
)

func offlineInfra() *Infra {
	return &Infra{
		Config:  config.Default(),
		Logger:  logging.NewNopLogger(),
		Metrics: prometheus.NewNoopMetrics(),
		Results: &testutil.MockResultRepository{},
	}
}

func TestLoadConfig_MissingFileFallsBackToEnv(t *testing.T) {
	t.Setenv("SYNASTRY_SERVER_PORT", "9191")
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.Port)
}

func TestLoadConfig_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synastry.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scoring:\n  minor_aspect_cap: 2\n"), 0o600))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Scoring.MinorAspectCap)
}

func TestCompatibilityService_ScoresWithoutOptionalBackends(t *testing.T) {
	svc := offlineInfra().CompatibilityService()
	res, err := svc.Score(context.Background(),
		testutil.SunMoonChart("alice", 10, 100, 40, 200),
		testutil.SunMoonChart("bob", 130, 280, 45, 20))
	require.NoError(t, err)
	assert.Equal(t, "alice", res.ChartAID)
}

func TestActivationService_WithoutRedisNeedsInlineTransits(t *testing.T) {
	infra := offlineInfra()
	svc := infra.ActivationService(infra.CompatibilityService())
	_, err := svc.Evaluate(context.Background(), activation.Request{ChartAID: "a", ChartBID: "b"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeTransitsInvalid))
}

func TestHealthCheckers_OnlyOpenedBackends(t *testing.T) {
	assert.Empty(t, offlineInfra().HealthCheckers())
}

func TestWatchLogLevel_NoFile(t *testing.T) {
	assert.NoError(t, WatchLogLevel("", logging.NewNopLogger()))
	assert.NoError(t, WatchLogLevel(filepath.Join(t.TempDir(), "absent.yaml"), logging.NewNopLogger()))
}

func TestClose_NothingOpened(t *testing.T) {
	assert.NotPanics(t, offlineInfra().Close)
}
