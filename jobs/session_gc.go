package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/parleyhq/parley/internal/jobs"
)

// SessionSweeper is the slice of the session store the sweep needs.
type SessionSweeper interface {
	GarbageCollect(ctx context.Context, now time.Time) (int, error)
}

// NewSessionGCHandler returns the asynq handler for TaskTypeSessionGC.
// The sweep runs independently of request traffic so idle sessions do not
// accumulate unbounded.
func NewSessionGCHandler(store SessionSweeper, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("session_gc")
		purged, err := store.GarbageCollect(ctx, time.Now().UTC())
		if err != nil {
			if logger != nil {
				logger.Error("session gc", slog.Any("error", err))
			}
			return tracker.End(err)
		}
		metrics.AddReclaimed(purged)
		if logger != nil && purged > 0 {
			logger.Info("session gc", slog.Int("purged", purged))
		}
		return tracker.End(nil)
	}
}
