package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults are valid", func(*Config) {}, ""},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"bad mode", func(c *Config) { c.Server.Mode = "prod" }, "server.mode"},
		{"missing db host", func(c *Config) { c.Database.Postgres.Host = "" }, "database.postgres.host"},
		{"missing db name", func(c *Config) { c.Database.Postgres.DBName = "" }, "db_name"},
		{"no open conns", func(c *Config) { c.Database.Postgres.MaxOpenConns = 0 }, "max_open_conns"},
		{"redis addr required when enabled", func(c *Config) { c.Cache.Redis.Addr = "" }, "cache.redis.addr"},
		{"redis addr ignored when disabled", func(c *Config) { c.Cache.Enabled = false; c.Cache.Redis.Addr = "" }, ""},
		{"kafka brokers required", func(c *Config) { c.Messaging.Kafka.Brokers = nil }, "brokers"},
		{"kafka ignored when disabled", func(c *Config) { c.Messaging.Enabled = false; c.Messaging.Kafka.GroupID = "" }, ""},
		{"negative minor cap", func(c *Config) { c.Scoring.MinorAspectCap = -1 }, "minor_aspect_cap"},
		{"zero minor cap allowed", func(c *Config) { c.Scoring.MinorAspectCap = 0 }, ""},
		{"batch concurrency", func(c *Config) { c.Scoring.BatchConcurrency = 0 }, "batch_concurrency"},
		{"worker concurrency", func(c *Config) { c.Worker.Concurrency = 0 }, "worker.concurrency"},
		{"worker health port", func(c *Config) { c.Worker.HealthPort = 70000 }, "worker.health_port"},
		{"log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "text" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{User: "u", Password: "p", Host: "h", Port: 5432, DBName: "d", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/d?sslmode=disable", p.DSN())
}
