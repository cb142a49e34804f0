package tasks

import (
	"context"
	"fmt"
	"time"
)

// Finished invocation audit rows only matter for the rate limit window, so
// they are swept far more aggressively than messages.
const invocationRetention = 24 * time.Hour

// newRetentionSweepTask creates the scheduled task that enforces the data
// retention policy on messages, stale sessions, and invocation audit rows.
func newRetentionSweepTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "retention_sweep")

	return func(ctx context.Context) error {
		now := time.Now().UTC()
		messageHorizon := now.AddDate(0, 0, -deps.Config.Database.RetentionDays)
		invocationHorizon := now.Add(-invocationRetention)

		log.InfoContext(ctx, "Starting retention sweep",
			"message_horizon", messageHorizon, "invocation_horizon", invocationHorizon)
		startTime := time.Now()

		err := deps.Store.PurgeOldData(ctx, messageHorizon, invocationHorizon)

		duration := time.Since(startTime)
		if err != nil {
			log.ErrorContext(ctx, "Retention sweep failed", "error", err, "duration", duration)
			return fmt.Errorf("retention sweep failed: %w", err)
		}

		log.InfoContext(ctx, "Retention sweep completed", "duration", duration)
		return nil
	}
}
