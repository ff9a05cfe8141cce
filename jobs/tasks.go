package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDocumentEmail renders an invoice or quotation and e-mails it.
	TaskDocumentEmail = "document:email"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// IdempotencyCleanupPayload controls the retention window of the purge.
type IdempotencyCleanupPayload struct {
	RetainHours int `json:"retain_hours"`
}

// Retention returns the configured window, defaulting to seven days.
func (p IdempotencyCleanupPayload) Retention() time.Duration {
	if p.RetainHours <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(p.RetainHours) * time.Hour
}

// NewDocumentEmailTask constructs the e-mail task for a sent document.
func NewDocumentEmailTask(mail shared.DocumentMail) (*asynq.Task, error) {
	data, err := json.Marshal(mail)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDocumentEmail, data, asynq.MaxRetry(5), asynq.Timeout(2*time.Minute)), nil
}

// NewIdempotencyCleanupTask constructs the purge task.
func NewIdempotencyCleanupTask(retainHours int) (*asynq.Task, error) {
	data, err := json.Marshal(IdempotencyCleanupPayload{RetainHours: retainHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data, asynq.MaxRetry(3)), nil
}
