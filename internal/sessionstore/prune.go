package sessionstore

import (
	"context"
	"log/slog"
	"time"
)

// RunPruner periodically expires snapshot entries that have not been written
// for longer than ttl. It runs one pass immediately, then every interval,
// and returns when ctx is cancelled. Individual prune failures are logged
// and skipped; losing an expired snapshot is never worth crashing over.
//
// Stores that do not implement Pruner, or a ttl of zero, disable pruning.
func RunPruner(ctx context.Context, store Store, prefix string, ttl, interval time.Duration) {
	pruner, ok := store.(Pruner)
	if !ok || ttl <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Hour
	}

	slog.Info("snapshot pruner started", "ttl", ttl.String(), "interval", interval.String())

	prunePass(ctx, pruner, prefix, ttl)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("snapshot pruner stopped")
			return
		case <-ticker.C:
			prunePass(ctx, pruner, prefix, ttl)
		}
	}
}

func prunePass(ctx context.Context, pruner Pruner, prefix string, ttl time.Duration) {
	start := time.Now()
	pruned, err := pruner.PruneOlderThan(ctx, prefix, time.Now().Add(-ttl))
	if err != nil {
		slog.Error("snapshot prune failed", "error", err)
		return
	}
	if pruned > 0 {
		slog.Info("pruned stale snapshots",
			"entries_pruned", pruned,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
