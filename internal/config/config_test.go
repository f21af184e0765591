package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/ec?sslmode=disable")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("GO_ENV", "dev")
}

func TestLoad_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "50", cfg.ShippingFee.String())
	assert.Equal(t, "EGP", cfg.Currency)
	assert.Equal(t, 100*time.Second, cfg.CacheTTL)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, cfg.DatabaseURL, cfg.DSN())
}

func TestLoad_Overrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("SHIPPING_FEE", "12.5")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("CURRENCY", "usd")
	t.Setenv("PAYMOB_INTEGRATION_ID", "123")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "12.5", cfg.ShippingFee.String())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "USD", cfg.Currency)
	assert.Equal(t, int64(123), cfg.Paymob.IntegrationID)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("JWT_SECRETなし", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("JWT_SECRET", "")
		_, err := Load()
		assert.ErrorContains(t, err, "JWT_SECRET")
	})
	t.Run("送料が負", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("SHIPPING_FEE", "-1")
		_, err := Load()
		assert.ErrorContains(t, err, "SHIPPING_FEE")
	})
	t.Run("DB設定なし", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("DATABASE_URL", "")
		t.Setenv("POSTGRES_USER", "")
		_, err := Load()
		assert.ErrorContains(t, err, "POSTGRES_USER")
	})
}
