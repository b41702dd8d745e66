package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.True(t, cfg.ReleaseStockOnPaymentReject)
	assert.False(t, cfg.RestockOnRefund)
	assert.Nil(t, cfg.KafkaBrokerList())
	assert.Equal(t, "ecorder", cfg.KafkaTopicPrefix)
}

func TestLoad_JWTSecretRequired(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PORT", ":9000")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("RESTOCK_ON_REFUND", "true")
	t.Setenv("RELEASE_STOCK_ON_PAYMENT_REJECT", "false")
	t.Setenv("ACCESS_TOKEN_TTL", "1h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokerList())
	assert.True(t, cfg.RestockOnRefund)
	assert.False(t, cfg.ReleaseStockOnPaymentReject)
	assert.Equal(t, time.Hour, cfg.AccessTokenTTL)
}

func TestDSN(t *testing.T) {
	cfg := Config{
		PostgresHost: "db", PostgresPort: 5433, PostgresUser: "u",
		PostgresPassword: "p", PostgresDB: "shop", PostgresSSLMode: "disable",
	}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=shop sslmode=disable", cfg.DSN())

	cfg.DatabaseURL = "postgres://x"
	assert.Equal(t, "postgres://x", cfg.DSN())
}
