package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/tradesim/portfolio-engine/internal/api"
	"github.com/tradesim/portfolio-engine/internal/config"
	"github.com/tradesim/portfolio-engine/internal/gateway"
	"github.com/tradesim/portfolio-engine/internal/ledger"
	"github.com/tradesim/portfolio-engine/internal/metrics"
	"github.com/tradesim/portfolio-engine/internal/portfolio"
	"github.com/tradesim/portfolio-engine/internal/quote"
	"github.com/tradesim/portfolio-engine/internal/store"
	"github.com/tradesim/portfolio-engine/internal/trade"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Initialize store ---
	st, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("storage setup failed", "backend", cfg.StoreBackend, "err", err)
		os.Exit(1)
	}
	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	var journal portfolio.Journal
	if cfg.JournalPath != "" {
		j, err := store.OpenJournal(cfg.JournalPath)
		if err != nil {
			slog.Error("journal open failed", "path", cfg.JournalPath, "err", err)
			os.Exit(1)
		}
		defer j.Close()
		journal = j
	}

	// --- Quotes ---
	var quotes quote.Provider
	if cfg.AlpacaAPIKey != "" {
		quotes = quote.NewAlpacaProvider(cfg.AlpacaAPIKey, cfg.AlpacaSecretKey)
		slog.Info("using Alpaca market data for quotes")
	} else {
		quotes = quote.NewFileProvider(cfg.QuotesFile)
		slog.Info("using quotes file", "path", cfg.QuotesFile)
	}

	// --- Position limits ---
	var limiter *trade.Limiter
	if cfg.MaxPositionPerSymbol > 0 {
		limiter = trade.NewLimiter(cfg.MaxPositionPerSymbol, decimal.Zero)
	}

	// --- Ledger ---
	state := ledger.NewState()
	gw := gateway.New(st, state)
	svc := portfolio.NewService(state, gw, portfolio.Options{
		InitialCash: cfg.InitialCash,
		Limiter:     limiter,
		Quotes:      quotes,
		Journal:     journal,
	})

	// --- WebSocket hub ---
	wsHub := api.NewWSHub()
	go wsHub.Run(ctx)
	svc.Subscribe(wsHub.Publish)

	// Starting cash is only applied once the persisted ledger is in memory,
	// so a stored portfolio is never overwritten by the default balance.
	gw.OnHydrationComplete(func() {
		metrics.Hydrated.Set(1)
		res, err := svc.Initialize(ctx, cfg.InitialCash)
		if err != nil {
			slog.Error("initialize after hydration failed", "err", err)
			return
		}
		slog.Info("ledger ready", "message", res.Message, "cash", svc.Snapshot().Cash.Decimal.String())
	})
	go hydrate(ctx, gw)

	// --- HTTP router ---
	r := api.NewRouter(svc, wsHub, api.RouterOptions{RequestTimeout: cfg.RequestTimeout})

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		slog.Info("portfolio-engine listening", "port", cfg.Port, "backend", cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	slog.Info("shutting down portfolio-engine...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	slog.Info("portfolio-engine stopped")
}

// hydrate retries loading the ledger until it succeeds or ctx ends. The
// API answers 503 on ledger routes meanwhile.
func hydrate(ctx context.Context, gw *gateway.Gateway) {
	backoff := 500 * time.Millisecond
	for {
		err := gw.Hydrate(ctx)
		if err == nil {
			return
		}
		slog.Warn("ledger hydration failed, retrying", "err", err, "backoff", backoff.String())

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// openStore builds the configured backend, wrapping it in a Redis
// read-through cache when REDIS_URL is set and Redis is not already the
// primary.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, []func(), error) {
	var cleanup []func()

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb = redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
	}

	var st store.Store
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, cleanup, fmt.Errorf("database connection failed: %w", err)
		}
		cleanup = append(cleanup, pool.Close)
		pg := store.NewPostgresStore(pool, cfg.StorageKey)
		if err := pg.Migrate(ctx); err != nil {
			return nil, cleanup, err
		}
		st = pg
		slog.Info("connected to PostgreSQL")

	case config.BackendRedis:
		st = store.NewRedisStore(rdb, cfg.StorageKey)
		slog.Info("using Redis as primary store")

	case config.BackendDynamo:
		ds, err := store.NewDynamoStore(ctx, cfg.AWSRegion, cfg.DynamoTable, cfg.StorageKey)
		if err != nil {
			return nil, cleanup, err
		}
		st = ds
		slog.Info("using DynamoDB store", "table", cfg.DynamoTable, "region", cfg.AWSRegion)

	case config.BackendFile:
		st = store.NewFileStore(cfg.DataFile, cfg.StorageKey)
		slog.Info("using file store", "path", cfg.DataFile)

	default:
		slog.Warn("using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	if rdb != nil && cfg.StoreBackend != config.BackendRedis && cfg.StoreBackend != config.BackendMemory {
		st = store.NewCachedStore(st, rdb, cfg.StorageKey, cfg.CacheTTL)
		slog.Info("Redis cache enabled", "ttl", cfg.CacheTTL.String())
	}

	return st, cleanup, nil
}
