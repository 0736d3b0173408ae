package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/pestward/pestward/internal/app"
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
		slog.Default().Info("test mode detected, skipping worker startup")
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
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	reportCache := revenue.NewCache(redisClient, cfg.RevenueCacheTTL)
	visitService := visits.NewService(visits.NewRepository(pool), shared.NewAuditLogger(pool), reportCache, logger,
		visits.ServiceConfig{Currency: cfg.DefaultCurrency})
	pricingService := pricing.NewService(pricing.NewRepository(pool))
	saleService := sales.NewService(sales.NewRepository(pool))
	revenueService := revenue.NewService(visitService, pricingService, saleService, reportCache, logger,
		revenue.ServiceConfig{Currency: cfg.DefaultCurrency})

	warmupJob := jobs.NewRevenueWarmupJob(revenueService, pool, logger, nil)
	reminderJob := jobs.NewVisitReminderJob(pool, logger, nil)
	cleanupJob := jobs.NewIdempotencyCleanupJob(shared.NewIdempotencyStore(pool), logger, nil)

	warmupTask, err := jobs.NewRevenueWarmupTask(jobs.RevenueWarmupPayload{Months: 2})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}
	reminderTask, err := jobs.NewVisitReminderTask(jobs.VisitReminderPayload{HorizonDays: 3})
	if err != nil {
		logger.Error("build reminder task", slog.Any("error", err))
		os.Exit(1)
	}
	cleanupTask, err := jobs.NewIdempotencyCleanupTask(jobs.IdempotencyCleanupPayload{RetentionHours: 48})
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskRevenueWarmup, Handler: warmupJob.Handle},
			{Type: jobs.TaskVisitReminder, Handler: reminderJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "15 1 * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 6 * * *", Task: reminderTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 3 * * *", Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
