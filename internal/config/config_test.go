package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
env: dev
api_port: 9090
storage: memory
auth:
  jwt_secret: s3cret
  token_ttl: 2h
trading:
  starting_cash: "2500.50"
quote:
  api_key: demo
  breaker_threshold: 3
redis:
  addr: localhost:6379
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, 9090, cfg.ApiPort)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "demo", cfg.Quote.APIKey)
	assert.Equal(t, 3, cfg.Quote.BreakerThreshold)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.True(t, cfg.StartingCashDecimal().Equal(decimal.RequireFromString("2500.50")))
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "env: local\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.ApiHost)
	assert.Equal(t, 8080, cfg.ApiPort)
	assert.Equal(t, StoragePostgres, cfg.Storage)
	assert.Equal(t, "session", cfg.Auth.CookieName)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 5*time.Second, cfg.Quote.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Quote.BreakerReset)
	assert.Equal(t, time.Minute, cfg.Redis.QuoteTTL)
	assert.Empty(t, cfg.Log.File)
	assert.True(t, cfg.StartingCashDecimal().Equal(decimal.NewFromInt(10000)))
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"bad starting cash", "trading:\n  starting_cash: lots\n", "trading.starting_cash"},
		{"negative starting cash", "trading:\n  starting_cash: \"-1\"\n", "trading.starting_cash"},
		{"unknown storage", "storage: sqlite\n", "storage"},
		{"unknown quote provider", "quote:\n  provider: yahoo\n", "quote.provider"},
		{"static provider without prices", "quote:\n  provider: static\n", "quote.static"},
		{"static price not a number", "quote:\n  provider: static\n  static:\n    AAPL: cheap\n", "quote.static.AAPL"},
		{"static price zero", "quote:\n  provider: static\n  static:\n    AAPL: \"0\"\n", "quote.static.AAPL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)

			var cfgErr *Error
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadStaticProvider(t *testing.T) {
	path := writeConfig(t, `
storage: memory
quote:
  provider: static
  static:
    AAPL: "150.00"
    NFLX: "1000"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ProviderStatic, cfg.Quote.Provider)

	prices := cfg.StaticPrices()
	require.Len(t, prices, 2)
	assert.True(t, prices["AAPL"].Equal(decimal.RequireFromString("150")))
	assert.True(t, prices["NFLX"].Equal(decimal.NewFromInt(1000)))

	// callers get a copy
	delete(prices, "AAPL")
	assert.Len(t, cfg.StaticPrices(), 2)
}

func TestStartingCashParsedOnce(t *testing.T) {
	cfg, err := Load(writeConfig(t, "trading:\n  starting_cash: \"123.45\"\n"))
	require.NoError(t, err)
	assert.True(t, cfg.StartingCashDecimal().Equal(decimal.RequireFromString("123.45")))

	// the raw string is not consulted after Load
	cfg.Trading.StartingCash = "garbage"
	assert.True(t, cfg.StartingCashDecimal().Equal(decimal.RequireFromString("123.45")))
}
