package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IlyasAtabaev731/finance/internal/api"
	"github.com/IlyasAtabaev731/finance/internal/config"
	"github.com/IlyasAtabaev731/finance/internal/lib/logger/sl"
	"github.com/IlyasAtabaev731/finance/internal/quote"
	"github.com/IlyasAtabaev731/finance/internal/services/trading"
	"github.com/IlyasAtabaev731/finance/internal/storage"
	"github.com/IlyasAtabaev731/finance/internal/storage/memory"
	"github.com/IlyasAtabaev731/finance/internal/storage/postgres"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"gopkg.in/natefinch/lumberjack.v2"

	_ "github.com/lib/pq"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	// .env is optional, real environment wins
	_ = godotenv.Load()

	cfg := config.MustLoad()

	log := setupLogger(cfg)

	log.Info("Starting application",
		slog.String("env", cfg.Env),
		slog.String("host", cfg.ApiHost),
		slog.Int("port", cfg.ApiPort),
		slog.String("storage", cfg.Storage),
	)

	store, closeStore, err := setupStorage(cfg)
	if err != nil {
		log.Error("Failed to set up storage", sl.Err(err))
		os.Exit(1)
	}
	defer closeStore()

	quotes, closeQuotes := setupQuotes(cfg, log)
	defer closeQuotes()

	service := trading.New(log, store, quotes, cfg.StartingCashDecimal())

	apiServer := api.New(cfg, log, service)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		apiServer.MustStart()
	}()

	<-sigChan
	log.Info("Got signal to shutdown server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Stop(ctx); err != nil {
		log.Error("Stopping server error", sl.Err(err))
	}
}

func setupStorage(cfg *config.Config) (storage.Storage, func(), error) {
	if cfg.Storage == config.StorageMemory {
		return memory.New(), func() {}, nil
	}

	dbUrl := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.Postgres.User,
		cfg.Postgres.Pass,
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.Db,
	)

	s, err := postgres.New(dbUrl)
	if err != nil {
		return nil, nil, err
	}

	return s, func() { _ = s.Stop() }, nil
}

// setupQuotes builds the provider chain: HTTP client behind a circuit
// breaker, optionally fronted by a redis cache. The static provider serves
// the configured price table and needs neither.
func setupQuotes(cfg *config.Config, log *slog.Logger) (quote.Lookup, func()) {
	if cfg.Quote.Provider == config.ProviderStatic {
		static := quote.NewStatic()
		for symbol, price := range cfg.StaticPrices() {
			static.Set(symbol, quote.Normalize(symbol), price)
		}
		log.Info("Serving static quotes", slog.Int("symbols", len(cfg.Quote.Static)))
		return static, func() {}
	}

	var lookup quote.Lookup = quote.NewBreaker(
		quote.NewClient(cfg.Quote.ProviderURL, cfg.Quote.APIKey, cfg.Quote.Timeout),
		cfg.Quote.BreakerThreshold,
		cfg.Quote.BreakerReset,
		log,
	)

	if cfg.Redis.Addr == "" {
		return lookup, func() {}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	log.Info("Caching quotes in redis",
		slog.String("addr", cfg.Redis.Addr),
		slog.Duration("ttl", cfg.Redis.QuoteTTL),
	)

	return quote.NewCached(lookup, quote.NewRedisStore(rdb), cfg.Redis.QuoteTTL, log), func() { _ = rdb.Close() }
}

func setupLogger(cfg *config.Config) *slog.Logger {
	var out io.Writer = os.Stdout
	if cfg.Log.File != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
		}
	}

	var log *slog.Logger
	switch cfg.Env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}
	return log
}
