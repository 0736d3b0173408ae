package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/pestward/pestward/internal/jobs"
	"github.com/pestward/pestward/internal/revenue"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// RevenueWarmupJob pre-populates monthly revenue report caches so the first
// dashboard load of the day does not pay the full aggregation cost.
type RevenueWarmupJob struct {
	Revenue *revenue.Service
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewRevenueWarmupJob wires dependencies for the warmup handler.
func NewRevenueWarmupJob(revenueSvc *revenue.Service, pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *RevenueWarmupJob {
	return &RevenueWarmupJob{
		Revenue: revenueSvc,
		Pool:    pool,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes revenue warmup tasks.
func (j *RevenueWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("revenue warmup: handler not configured")
	}
	var payload RevenueWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Months <= 0 {
		payload.Months = 2
	}

	tracker := j.metrics().Track(TaskRevenueWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("months", payload.Months))
	logger.Info("starting revenue warmup")

	companies, err := j.fetchCompanies(ctx)
	if err != nil {
		resultErr = err
		logger.Error("load warmup companies", slog.Any("error", err))
		return resultErr
	}
	if len(companies) == 0 {
		logger.Info("no companies discovered for warmup")
		return resultErr
	}

	now := j.now()
	warmed := 0
	for _, companyID := range companies {
		if err := j.warmCompany(ctx, companyID, now, payload.Months); err != nil {
			resultErr = err
			logger.Error("warm company", slog.Int64("company_id", companyID), slog.Any("error", err))
			return resultErr
		}
		warmed++
	}

	logger.Info("completed revenue warmup", slog.Int("companies", warmed), slog.Duration("duration", time.Since(now)))
	return resultErr
}

func (j *RevenueWarmupJob) warmCompany(ctx context.Context, companyID int64, now time.Time, months int) error {
	if j.Revenue == nil {
		return nil
	}
	// Tighten each company with a timeout to avoid long-running jobs.
	companyCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	for i := 0; i < months; i++ {
		m := now.AddDate(0, -i, 0)
		if _, err := j.Revenue.MonthlyReport(companyCtx, companyID, m.Year(), m.Month()); err != nil {
			return err
		}
	}
	return nil
}

func (j *RevenueWarmupJob) fetchCompanies(ctx context.Context) ([]int64, error) {
	if j.Pool == nil {
		return nil, errors.New("revenue warmup: pool not configured")
	}
	rows, err := j.Pool.Query(ctx, `SELECT id FROM companies WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var companies []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		companies = append(companies, id)
	}
	return companies, rows.Err()
}

func (j *RevenueWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskRevenueWarmup))
	}
	return slog.Default().With(slog.String("job", TaskRevenueWarmup))
}

func (j *RevenueWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *RevenueWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
