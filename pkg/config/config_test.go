package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("order-service")
	require.NoError(t, err)

	assert.Equal(t, "order-service", cfg.ServiceName)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.Order.AcceptanceTimeout)
	assert.Equal(t, 2*time.Hour, cfg.Order.PickupWindow)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.Interval)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "order-events", cfg.Kafka.Topic)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("ORDER_ACCEPTANCE_TIMEOUT", "90s")
	t.Setenv("ORDER_TAX_RATE_BPS", "825")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")

	cfg, err := Load("order-service")
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, 90*time.Second, cfg.Order.AcceptanceTimeout)
	assert.Equal(t, 825, cfg.Order.TaxRateBasisPoints)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
}

func TestGetDSN(t *testing.T) {
	db := DatabaseConfig{
		Host: "db", Port: "5432", User: "svc", Password: "secret",
		Name: "orders", SSLMode: "disable",
	}
	assert.Equal(t, "host=db port=5432 user=svc password=secret dbname=orders sslmode=disable", db.GetDSN())
}

func TestLoadRejectsEmptyBrokers(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " , ")
	_, err := Load("order-service")
	assert.Error(t, err)
}
