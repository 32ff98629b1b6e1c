package queue

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Inspector reports queue depths and dead-lettered tasks.
type Inspector interface {
	Stats(ctx context.Context) (*QueueStats, error)
	FailedTasks(ctx context.Context, limit int) ([]*FailedTask, error)
}

var _ Inspector = (*RedisQueue)(nil)

// ReportStats returns a job that logs the queue depths and, when the DLQ is
// not empty, up to sample of the most recent failures.
func ReportStats(q Inspector, sample int) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		stats, err := q.Stats(ctx)
		if err != nil {
			return err
		}

		entry := logrus.WithFields(logrus.Fields{
			"main":       stats.MainQueue,
			"delayed":    stats.DelayedQueue,
			"processing": stats.ProcessingQueue,
			"dlq":        stats.DLQ,
		})
		if stats.DLQ == 0 {
			entry.Debug("Task queue stats")
			return nil
		}
		entry.Warn("Task queue has dead-lettered tasks")

		failed, err := q.FailedTasks(ctx, sample)
		if err != nil {
			return fmt.Errorf("failed to sample DLQ: %w", err)
		}
		for _, f := range failed {
			fields := logrus.Fields{
				"failed_at": f.FailedAt,
				"attempts":  f.Attempts,
			}
			if f.Task != nil {
				fields["task_id"] = f.Task.ID
				fields["type"] = f.Task.Type
			}
			logrus.WithFields(fields).Warnf("Dead-lettered task: %s", f.Error)
		}
		return nil
	}
}
