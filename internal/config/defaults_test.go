package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaults_FillsZeroValues(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, DefaultDBHost, cfg.Database.Postgres.Host)
	assert.Equal(t, []string{DefaultKafkaBroker}, cfg.Messaging.Kafka.Brokers)
	assert.Equal(t, DefaultResultTTL, cfg.Scoring.ResultTTL)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Equal(t, 0, cfg.Scoring.MinorAspectCap)
	assert.False(t, cfg.Cache.Enabled)
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 1234
	cfg.Scoring.ResultTTL = time.Minute
	cfg.Cache.Redis.KeyPrefix = "x:"
	ApplyDefaults(cfg)

	assert.Equal(t, 1234, cfg.Server.Port)
	assert.Equal(t, time.Minute, cfg.Scoring.ResultTTL)
	assert.Equal(t, "x:", cfg.Cache.Redis.KeyPrefix)
}

func TestApplyDefaults_Nil(t *testing.T) {
	assert.NotPanics(t, func() { ApplyDefaults(nil) })
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, DefaultMinorAspectCap, cfg.Scoring.MinorAspectCap)
	assert.NoError(t, cfg.Validate())
}
