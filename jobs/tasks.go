package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRevenueWarmup pre-populates revenue report caches.
	TaskRevenueWarmup = "revenue:warmup"
	// TaskVisitReminder notifies operators about upcoming service requests.
	TaskVisitReminder = "visits:reminder"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// RevenueWarmupPayload selects how many trailing months to warm per company.
type RevenueWarmupPayload struct {
	Months int `json:"months"`
}

// NewRevenueWarmupTask constructs a revenue warmup task.
func NewRevenueWarmupTask(payload RevenueWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRevenueWarmup, data), nil
}

// VisitReminderPayload selects the look-ahead window in days.
type VisitReminderPayload struct {
	HorizonDays int `json:"horizon_days"`
}

// NewVisitReminderTask constructs a visit reminder task.
func NewVisitReminderTask(payload VisitReminderPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskVisitReminder, data), nil
}

// IdempotencyCleanupPayload selects the retention window in hours.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask constructs a cleanup task.
func NewIdempotencyCleanupTask(payload IdempotencyCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}
