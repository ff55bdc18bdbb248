package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 8090, cfg.HTTPPort)
	assert.Equal(t, 9090, cfg.GRPCPort)
	assert.Equal(t, "bib_product", cfg.DB.Name)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "bib.product.events", cfg.Kafka.EventsTopic)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.PollInterval)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, "product-service", cfg.Telemetry.ServiceName)
	assert.False(t, cfg.TLS.Enabled())
	assert.Empty(t, cfg.CORSOrigins)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("SCHEDULER_POLL_INTERVAL", "5s")
	t.Setenv("SCHEDULER_ENABLED", "false")
	t.Setenv("DB_MAX_CONNS", "7")
	t.Setenv("CALENDAR_ID", "UK")
	t.Setenv("GRPC_PORT", "not-a-number")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://ops.bib.example")

	cfg := Load()

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 5*time.Second, cfg.Scheduler.PollInterval)
	assert.False(t, cfg.Scheduler.Enabled)
	assert.Equal(t, int32(7), cfg.DB.Postgres().MaxConns)
	assert.Equal(t, "UK", cfg.CalendarID)
	assert.Equal(t, 9090, cfg.GRPCPort)
	assert.Equal(t, []string{"https://ops.bib.example"}, cfg.CORSOrigins)
}

func TestValidate(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("JWT_PUBLIC_KEY", "")
	cfg := Load()
	require.Error(t, cfg.Validate())

	cfg.JWT.Secret = "secret"
	assert.NoError(t, cfg.Validate())

	cfg.Kafka.Brokers = nil
	assert.Error(t, cfg.Validate())
}

func TestKafkaConversion(t *testing.T) {
	cfg := KafkaConfig{Brokers: []string{"b:9092"}, ConsumerGroup: "g", SASLEnabled: true, SASLMechanism: "SCRAM-SHA-512"}
	k := cfg.Kafka()

	assert.Equal(t, []string{"b:9092"}, k.Brokers)
	assert.Equal(t, "g", k.ConsumerGroup)
	assert.True(t, k.SASLEnabled)
	assert.Equal(t, "SCRAM-SHA-512", k.SASLMechanism)
}
