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
)

// VisitReminderJob surfaces service requests whose scheduled date is close
// and which still lack an operator.
type VisitReminderJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewVisitReminderJob wires dependencies for the reminder handler.
func NewVisitReminderJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *VisitReminderJob {
	return &VisitReminderJob{
		Pool:    pool,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

type upcomingRequest struct {
	ID            int64
	CompanyID     int64
	CustomerName  string
	BranchName    string
	ScheduledDate time.Time
	Status        string
	HasOperator   bool
}

// Handle processes visit reminder tasks.
func (j *VisitReminderJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("visit reminder: handler not configured")
	}
	var payload VisitReminderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.HorizonDays <= 0 {
		payload.HorizonDays = 3
	}

	tracker := j.metrics().Track(TaskVisitReminder)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	now := j.now()
	horizon := now.AddDate(0, 0, payload.HorizonDays)
	requests, err := j.fetchUpcoming(ctx, now, horizon)
	if err != nil {
		resultErr = err
		j.logger().Error("load upcoming requests", slog.Any("error", err))
		return resultErr
	}

	unassigned := 0
	for _, req := range requests {
		attrs := []any{
			slog.Int64("request_id", req.ID),
			slog.Int64("company_id", req.CompanyID),
			slog.String("customer", req.CustomerName),
			slog.String("branch", req.BranchName),
			slog.Time("scheduled", req.ScheduledDate),
			slog.String("status", req.Status),
		}
		if req.HasOperator {
			j.logger().Info("upcoming visit", attrs...)
			continue
		}
		unassigned++
		j.logger().Warn("upcoming visit has no operator", attrs...)
	}
	j.logger().Info("completed visit reminder scan",
		slog.Int("upcoming", len(requests)),
		slog.Int("unassigned", unassigned),
		slog.Int("horizon_days", payload.HorizonDays))
	return resultErr
}

const upcomingQuery = `
SELECT r.id, r.company_id, c.name, b.name, r.scheduled_date, r.status, r.operator_id IS NOT NULL
FROM service_requests r
JOIN customers c ON c.id = r.customer_id
JOIN branches b ON b.id = r.branch_id
WHERE r.status IN ('pending', 'assigned')
  AND r.scheduled_date >= $1 AND r.scheduled_date < $2
ORDER BY r.scheduled_date, r.id`

func (j *VisitReminderJob) fetchUpcoming(ctx context.Context, from, to time.Time) ([]upcomingRequest, error) {
	if j.Pool == nil {
		return nil, errors.New("visit reminder: pool not configured")
	}
	rows, err := j.Pool.Query(ctx, upcomingQuery, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []upcomingRequest
	for rows.Next() {
		var req upcomingRequest
		if err := rows.Scan(&req.ID, &req.CompanyID, &req.CustomerName, &req.BranchName,
			&req.ScheduledDate, &req.Status, &req.HasOperator); err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (j *VisitReminderJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskVisitReminder))
	}
	return slog.Default().With(slog.String("job", TaskVisitReminder))
}

func (j *VisitReminderJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *VisitReminderJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
