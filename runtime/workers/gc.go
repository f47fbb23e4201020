package workers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const gcDiscardRatio = 0.5

// GCWorker periodically rewrites BadgerDB value log files whose
// reclaimable space exceeds the discard ratio. The message log is
// append-only, so reclaimed space comes from compaction artifacts,
// not deletions.
type GCWorker struct {
	log      *slog.Logger
	db       *badger.DB
	interval time.Duration
}

func NewGCWorker(log *slog.Logger, db *badger.DB, interval time.Duration) *GCWorker {
	return &GCWorker{log: log, db: db, interval: interval}
}

func (w *GCWorker) Run(ctx context.Context) error {
	w.log.Info("Starting value log GC worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			passes := 0
			for {
				err := w.db.RunValueLogGC(gcDiscardRatio)
				if err != nil {
					if !errors.Is(err, badger.ErrNoRewrite) {
						w.log.Warn("Value log GC failed", "error", err)
					}
					break
				}
				passes++
			}
			if passes > 0 {
				w.log.Debug("Value log GC rewrote files", "passes", passes)
			}
		}
	}
}
