package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, []string{"localhost:9092"}, cfg.Infra.Kafka.Brokers)
	assert.Equal(t, 3*time.Second, cfg.Saga.DownstreamTimeout.Std())
	assert.Equal(t, 5, cfg.Saga.Sweep.MaxAttempts)
	assert.Equal(t, "0.20", cfg.Saga.Accounting.TaxRate)
}

func TestLoadYamlOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
infra:
  kafka:
    brokers: ["kafka-1:9092", "kafka-2:9092"]
saga:
  downstreamTimeout: 5s
  sweep:
    interval: 10s
    maxAttempts: 8
    batchSize: 20
  accounting:
    taxRate: "0.19"
  notification:
    maxAttempts: 5
    rules:
      - name: order-confirmation
        expression: eventType == "order.created"
        channel: EMAIL
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Infra.Kafka.Brokers)
	assert.Equal(t, 5*time.Second, cfg.Saga.DownstreamTimeout.Std())
	assert.Equal(t, 8, cfg.Saga.Sweep.MaxAttempts)
	assert.Equal(t, "0.19", cfg.Saga.Accounting.TaxRate)
	require.Len(t, cfg.Saga.Notification.Rules, 1)
	assert.Equal(t, "EMAIL", cfg.Saga.Notification.Rules[0].Channel)

	// 未覆盖的字段保持缺省值
	assert.Equal(t, "localhost:6379", cfg.Infra.Redis.Addr)
}

func TestEnvOverridesWinOverYaml(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker-a:9092,broker-b:9092")
	t.Setenv("MYSQL_DSN", "user:pass@tcp(db:3306)/orders")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, []string{"broker-a:9092", "broker-b:9092"}, cfg.Infra.Kafka.Brokers)
	assert.Equal(t, "user:pass@tcp(db:3306)/orders", cfg.Infra.Mysql.DSN)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load("/does/not/exist.yaml")
	assert.Error(t, err)
}
