package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"finanzas/internal/auth"
	"finanzas/internal/backend"
	"finanzas/internal/cache"
	"finanzas/internal/cli"
	"finanzas/internal/core"
	apphttp "finanzas/internal/http"
	"finanzas/internal/log"
	"finanzas/internal/middleware/ratelimit"
	"finanzas/internal/services"
)

const (
	statsCacheSize = 1024
	statsCacheTTL  = 5 * time.Minute
	sweepInterval  = time.Minute
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	logger.Info("Starting finanzas")

	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to create backend", log.FieldError, err,
			"storage", backendCfg.Storage, "events", backendCfg.Events)
		os.Exit(1)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	repo := res.Repository
	stats := cache.NewLRUCache[int64, core.Stats](statsCacheSize, statsCacheTTL)
	sweeper := cache.NewManager(stats)

	authSvc := auth.NewService(repo, cfg.SessionTTL)
	if cfg.AdminPassword != "" {
		user, err := authSvc.EnsureUser(context.Background(), cfg.AdminUsername, cfg.AdminPassword)
		if err != nil {
			logger.Error("Failed to provision admin user", log.FieldError, err, "username", cfg.AdminUsername)
			os.Exit(1)
		}
		logger.Info("Admin user ready", log.FieldUserID, user.ID, "username", user.Username)
	}

	var rateStore ratelimit.Store
	if cfg.RedisURL != "" {
		client, err := ratelimit.NewRedisClient(context.Background(), cfg.RedisURL)
		if err != nil {
			logger.Error("Failed to connect to Redis", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		rateStore = ratelimit.NewRedisStore(client, "finanzas:ratelimit", cfg.RateLimitPerMinute)
		logger.Info("Rate limiting through Redis", "per_minute", cfg.RateLimitPerMinute)
	} else {
		limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute})
		sweeper.Register(limiter)
		rateStore = limiter
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Auth:       authSvc,
		Ledger:     services.NewLedgerService(repo, res.Publisher, stats),
		Envelopes:  services.NewEnvelopeService(repo, res.Publisher),
		Transfers:  services.NewTransferEngine(repo, res.Publisher, stats),
		Categories: services.NewCategoryService(repo),
		Storage:    repo,
		RateStore:  rateStore,
		Logger:     logger,
	}, apphttp.Options{
		CORSOrigins:    cfg.CORSOrigins,
		SecureCookies:  cfg.SecureCookies,
		TrustedProxies: cfg.TrustedProxies,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sweeper.Run(gctx, sweepInterval)
	})
	g.Go(func() error {
		logger.Info("Listening", "port", cfg.Port, "storage", repo.Backend(), "events", cfg.EventsBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
