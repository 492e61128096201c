package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"stockledger/internal/cache"
	"stockledger/internal/config"
	"stockledger/internal/httpapi"
	"stockledger/internal/logging"
	"stockledger/internal/performance"
	"stockledger/internal/service"
	"stockledger/internal/store"
	"stockledger/internal/store/memory"
	pgstore "stockledger/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := validateSecurityConfig(cfg); err != nil {
		logger.Fatal("invalid security configuration", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	backend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("repository unavailable", zap.Error(err))
	}
	closers := backend.closers

	statsCache := cache.StatsCache(cache.NoopStatsCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisStatsCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, using noop cache", zap.Error(err))
		} else {
			statsCache = redisCache
			closers = append(closers, redisCache.Close)
			logger.Info("cache: redis", zap.String("addr", cfg.RedisAddr))
		}
	} else {
		logger.Info("cache: noop")
	}

	perf := performance.NewEngine(statsCache, time.Duration(cfg.StatsCacheTTLSeconds)*time.Second, cfg.CommissionRate, logger)
	svc := service.New(backend.repo, backend.journal, perf, logger)
	auth := httpapi.NewAuthManager(ctx, cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, backend.users)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, logger)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("stock ledger listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Error("close error", zap.Error(err))
		}
	}

	logger.Info("server stopped")
}

type ledgerBackend struct {
	repo    *memory.Store
	journal store.Journal
	users   httpapi.UserStore
	closers []func() error
}

// openBackend builds the in-memory ledger. With DATABASE_URL set it is
// rebuilt from Postgres and every committed change is journaled back.
func openBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (ledgerBackend, error) {
	if cfg.DatabaseURL == "" {
		repo := memory.New()
		if cfg.SeedDemo {
			seeded, err := memory.NewSeeded()
			if err != nil {
				return ledgerBackend{}, err
			}
			repo = seeded
		}
		logger.Info("repository: in-memory", zap.Bool("seeded", cfg.SeedDemo))
		return ledgerBackend{repo: repo, journal: store.NoopJournal{}, users: repo}, nil
	}

	pg, err := pgstore.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return ledgerBackend{}, fmt.Errorf("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback: %w", err)
	}
	if err := pg.Migrate(ctx); err != nil {
		_ = pg.Close()
		return ledgerBackend{}, fmt.Errorf("migrate: %w", err)
	}

	repo := memory.New()
	stats, err := pg.Hydrate(ctx, repo, logger)
	if err != nil {
		_ = pg.Close()
		return ledgerBackend{}, err
	}
	if stats == (pgstore.HydrateStats{}) && cfg.SeedDemo {
		seeded, err := memory.NewSeeded()
		if err != nil {
			_ = pg.Close()
			return ledgerBackend{}, err
		}
		if err := persistSeed(ctx, seeded, pg); err != nil {
			_ = pg.Close()
			return ledgerBackend{}, fmt.Errorf("seed database: %w", err)
		}
		repo = seeded
		logger.Info("seeded empty database")
	}

	logger.Info("repository: postgres-backed memory")
	return ledgerBackend{
		repo:    repo,
		journal: pg,
		users:   pg.MirrorUsers(repo),
		closers: []func() error{pg.Close},
	}, nil
}

func persistSeed(ctx context.Context, src *memory.Store, pg *pgstore.Store) error {
	users, err := src.ListUsers(ctx)
	if err != nil {
		return err
	}
	for _, user := range users {
		if err := pg.SaveUser(ctx, user); err != nil {
			return err
		}
	}
	products, err := src.ListProducts(ctx)
	if err != nil {
		return err
	}
	for _, product := range products {
		if err := pg.SaveProduct(ctx, product); err != nil {
			return err
		}
	}
	suppliers, err := src.ListSuppliers(ctx)
	if err != nil {
		return err
	}
	for _, supplier := range suppliers {
		if err := pg.SaveSupplier(ctx, supplier); err != nil {
			return err
		}
	}
	return nil
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if !cfg.CommissionRate.IsPositive() {
		return fmt.Errorf("COMMISSION_RATE must be positive")
	}
	return nil
}
