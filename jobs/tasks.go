package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/parleyhq/parley/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeSessionGC is the task type for the session garbage sweep.
	TaskTypeSessionGC = "session:gc"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Locale  string `json:"locale,omitempty"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// NewSessionGCTask constructs the periodic session sweep task. It carries
// no payload; the sweep snapshots its own cutoff when it runs.
func NewSessionGCTask() *asynq.Task {
	return asynq.NewTask(TaskTypeSessionGC, nil)
}

// NewSendEmailHandler returns the asynq handler for TaskTypeSendEmail.
func NewSendEmailHandler(metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("send_email")
		var payload SendEmailPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			_ = tracker.End(err)
			return asynq.SkipRetry
		}
		// Placeholder until SMTP relay settings land in deployment config.
		if logger != nil {
			logger.Info("send email",
				slog.String("to", payload.To),
				slog.String("subject", payload.Subject),
				slog.String("locale", payload.Locale))
		}
		return tracker.End(nil)
	}
}
