package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeTempConfig(t, "logging:\n  level: debug\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "BTCUSDT", cfg.Trading.SpotSymbol)
	assert.Equal(t, "BTCUSDT_251226", cfg.Trading.FutureSymbol)
	assert.Equal(t, "USDT", cfg.Trading.CashAsset)
	assert.Equal(t, "USDT", cfg.Trading.UnderlyingQuote)
	assert.Equal(t, 0.001, cfg.Trading.SpotFeeRate)
	assert.Equal(t, 0.0004, cfg.Trading.FutureFeeRate)
	assert.Equal(t, 0.02, cfg.Trading.RiskRateAsked)
	assert.Equal(t, 60.0, cfg.Trading.MaxDaysToExpiry)
	assert.True(t, cfg.Trading.IsolatedMargin)
	assert.Equal(t, 10*time.Second, cfg.Binance.Timeout)
	assert.Equal(t, "https://fapi.binance.com", cfg.Binance.FuturesBaseURL)
}

func TestLoad_FileValues(t *testing.T) {
	path := writeTempConfig(t, `
server:
  port: 9090
binance:
  timeout: 3s
  requests_per_second: 2
trading:
  spot_symbol: ETHUSDT
  future_symbol: ETHUSDT_251226
  underlying_base: ETH
  risk_rate_asked: 0.01
  max_days_to_expiry: 120
  isolated_margin: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Binance.Timeout)
	assert.Equal(t, 2.0, cfg.Binance.RequestsPerSecond)

	params := cfg.TradingParams()
	assert.Equal(t, "ETHUSDT", params.SpotSymbol)
	assert.Equal(t, "ETHUSDT_251226", params.FutureSymbol)
	assert.Equal(t, "ETH", params.UnderlyingBase)
	assert.Equal(t, 0.01, params.RiskRateAsked)
	assert.Equal(t, 120.0, params.MaxDaysToExpiry)
	assert.False(t, params.IsolatedMargin)

	gw := cfg.GatewayConfig()
	assert.Equal(t, 3*time.Second, gw.Timeout)
	assert.Equal(t, 5, gw.Burst)
}

func TestLoad_CredentialsFromEnv(t *testing.T) {
	t.Setenv("API_KEY", "env-key")
	t.Setenv("API_SECRET", "env-secret")
	t.Setenv("CARRY_TRADING_CASH_ASSET", "USDC")

	cfg, err := Load(writeTempConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Binance.APIKey)
	assert.Equal(t, "env-secret", cfg.Binance.APISecret)
	assert.Equal(t, "USDC", cfg.Trading.CashAsset)
}

func TestLoad_InvalidFile(t *testing.T) {
	_, err := Load(writeTempConfig(t, "server: [unterminated\n"))
	assert.Error(t, err)
}

func TestLoad_ValidationFailure(t *testing.T) {
	_, err := Load(writeTempConfig(t, "trading:\n  max_days_to_expiry: 0\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_days_to_expiry")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg, err := Load(writeTempConfig(t, "{}\n"))
		require.NoError(t, err)
		return *cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative spot fee", func(c *Config) { c.Trading.SpotFeeRate = -0.001 }},
		{"negative risk", func(c *Config) { c.Trading.RiskRateAsked = -1 }},
		{"empty future", func(c *Config) { c.Trading.FutureSymbol = "" }},
		{"empty quote", func(c *Config) { c.Trading.UnderlyingQuote = "" }},
		{"zero timeout", func(c *Config) { c.Binance.Timeout = 0 }},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			require.NoError(t, cfg.Validate())
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
