package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Layering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http_addr: ":9090"
orders:
  status_policy: stepwise
  sequencer_backend: redis
  timezone: Europe/Berlin
realtime:
  bridge_backend: redis
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("HTTP_ADDR", ":7070")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.HTTPAddr, "env wins over file")
	assert.Equal(t, "stepwise", cfg.Orders.StatusPolicy)
	assert.Equal(t, "redis", cfg.Orders.SequencerBackend)
	assert.Equal(t, "redis", cfg.Realtime.BridgeBackend)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "order.events", cfg.Kafka.OutboxTopic, "default kept")
	assert.Equal(t, 10*time.Minute, cfg.Orders.IdempotencyTTL)
	assert.Equal(t, "Europe/Berlin", cfg.Location().String())
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Auth.JWTSecret = "x"
	require.NoError(t, cfg.Validate())

	cfg.Orders.StatusPolicy = "sideways"
	cfg.Orders.StoreBackend = "memory"
	cfg.Realtime.BridgeBackend = "carrier-pigeon"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sideways")
	assert.Contains(t, err.Error(), "postgres sequencer requires the postgres store")
	assert.Contains(t, err.Error(), "carrier-pigeon")
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestParse_SkipsOrderChecks(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("CATALOG_POLL_INTERVAL", "2s")
	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.Catalog.PollInterval)
	assert.Equal(t, "config/menu.yaml", cfg.Catalog.FixturePath)
}
