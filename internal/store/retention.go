package store

import (
	"context"
	"log/slog"
	"time"
)

// RetentionInterval is how often the retention worker sweeps.
const RetentionInterval = 10 * time.Minute

// StartRetentionWorker runs a background goroutine that periodically deletes
// exchanges older than retention. The returned channel is closed when the
// worker exits after ctx is canceled.
func StartRetentionWorker(ctx context.Context, repo Repository, retention, interval time.Duration) <-chan struct{} {
	if interval <= 0 {
		interval = RetentionInterval
	}
	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		slog.Info("Retention worker started", "interval", interval, "retention", retention)

		for {
			select {
			case <-ticker.C:
				sweep(ctx, repo, retention)
			case <-ctx.Done():
				slog.Info("Retention worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
	return done
}

func sweep(ctx context.Context, repo Repository, retention time.Duration) {
	deleted, err := repo.CleanupExpired(ctx, retention)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Error("Retention worker failed to delete expired exchanges", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("Retention worker deleted expired exchanges", "count", deleted)
	}
}
