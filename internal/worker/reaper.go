package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pulse-engage/backend/internal/kvstore"
	"github.com/pulse-engage/backend/internal/models"
)

// ProgressReaper deletes quiz_progress documents that have not been touched
// within the TTL. An abandoned quiz session otherwise leaves its progress
// document orphaned forever.
type ProgressReaper struct {
	store    kvstore.Store
	ttl      time.Duration
	interval time.Duration
	logger   *zap.Logger
}

// NewProgressReaper creates a reaper sweeping every interval.
func NewProgressReaper(store kvstore.Store, ttl, interval time.Duration, logger *zap.Logger) *ProgressReaper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressReaper{store: store, ttl: ttl, interval: interval, logger: logger}
}

// Run sweeps until ctx is done.
func (r *ProgressReaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := r.Sweep(ctx); err != nil {
				r.logger.Warn("progress sweep failed", zap.Error(err))
			} else if n > 0 {
				r.logger.Info("expired quiz progress reaped", zap.Int("count", n))
			}
		}
	}
}

// Sweep deletes all progress documents older than the TTL and reports how many.
func (r *ProgressReaper) Sweep(ctx context.Context) (int, error) {
	docs, err := r.store.ScanByPrefix(ctx, models.PrefixQuizProgress)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-r.ttl)
	n := 0
	for _, d := range docs {
		if d.UpdatedAt.After(cutoff) {
			continue
		}
		if err := r.store.Delete(ctx, d.Key); err != nil {
			if err == kvstore.ErrNotFound {
				continue
			}
			return n, err
		}
		n++
	}
	return n, nil
}
