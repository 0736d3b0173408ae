package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/pestward/pestward/internal/app"
	"github.com/pestward/pestward/internal/auth"
	"github.com/pestward/pestward/internal/masterdata"
	"github.com/pestward/pestward/internal/observability"
	"github.com/pestward/pestward/internal/platform/cache"
	"github.com/pestward/pestward/internal/platform/db"
	"github.com/pestward/pestward/internal/pricing"
	"github.com/pestward/pestward/internal/revenue"
	"github.com/pestward/pestward/internal/sales"
	"github.com/pestward/pestward/internal/shared"
	"github.com/pestward/pestward/internal/visits"
	"github.com/pestward/pestward/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, caches disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	metrics := observability.NewMetrics()

	authService := auth.NewService(auth.NewRepository(pool), redisClient, cfg.AuthCacheTTL)
	authMiddleware := auth.Middleware{Service: authService, Logger: logger}

	masterdataService := masterdata.NewService(masterdata.NewRepository(pool), auditLogger)
	masterdataHandler := masterdata.NewHandler(logger, masterdataService)

	pricingService := pricing.NewService(pricing.NewRepository(pool))
	pricingHandler := pricing.NewHandler(logger, pricingService)

	reportCache := revenue.NewCache(redisClient, cfg.RevenueCacheTTL)

	visitService := visits.NewService(visits.NewRepository(pool), auditLogger, reportCache, logger,
		visits.ServiceConfig{Currency: cfg.DefaultCurrency})
	visitService.UseIdempotencyGuard(shared.NewIdempotencyStore(pool))
	visitHandler := visits.NewHandler(logger, visitService)

	saleService := sales.NewService(sales.NewRepository(pool))
	saleHandler := sales.NewHandler(saleService)

	revenueService := revenue.NewService(visitService, pricingService, saleService, reportCache, logger,
		revenue.ServiceConfig{Currency: cfg.DefaultCurrency})
	revenueHandler := revenue.NewHandler(revenueService, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		AuthMiddleware:    authMiddleware,
		MasterDataHandler: masterdataHandler,
		PricingHandler:    pricingHandler,
		VisitsHandler:     visitHandler,
		SalesHandler:      saleHandler,
		RevenueHandler:    revenueHandler,
		JobHandler:        jobHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
