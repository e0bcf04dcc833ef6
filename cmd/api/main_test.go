package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/IlyasAtabaev731/finance/internal/config"
	"github.com/IlyasAtabaev731/finance/internal/quote"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadConfig(t *testing.T, body string) *config.Config {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestSetupQuotesStatic(t *testing.T) {
	cfg := loadConfig(t, `
storage: memory
quote:
  provider: static
  static:
    aapl: "150.00"
`)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	lookup, closeQuotes := setupQuotes(cfg, log)
	defer closeQuotes()

	require.IsType(t, &quote.Static{}, lookup)

	q, err := lookup.Lookup(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", q.Symbol)
	assert.True(t, q.Price.Equal(decimal.RequireFromString("150")))

	_, err = lookup.Lookup(context.Background(), "MSFT")
	assert.ErrorIs(t, err, quote.ErrNotFound)
}

func TestSetupQuotesProviderChain(t *testing.T) {
	cfg := loadConfig(t, "storage: memory\n")
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	lookup, closeQuotes := setupQuotes(cfg, log)
	defer closeQuotes()

	assert.IsType(t, &quote.Breaker{}, lookup)
}

func TestSetupStorageMemory(t *testing.T) {
	cfg := loadConfig(t, "storage: memory\n")

	store, closeStore, err := setupStorage(cfg)
	require.NoError(t, err)
	defer closeStore()

	assert.NotNil(t, store)
}
