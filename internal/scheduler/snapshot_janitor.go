package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrSnakeDoc/tabkeeper/internal/logger"
)

const (
	// DefaultJanitorInterval is the period between orphan snapshot collections
	DefaultJanitorInterval = time.Hour
)

// OrphanCollector discards snapshots that no hibernated tab owns.
type OrphanCollector interface {
	CollectOrphans(ctx context.Context) (int, error)
}

// SnapshotJanitor handles periodic cleanup of orphaned snapshots
type SnapshotJanitor struct {
	collector OrphanCollector
	logger    logger.Logger
	interval  time.Duration
	stopCh    chan struct{}
	done      chan struct{}
	started   atomic.Bool
	stopOnce  sync.Once
}

// NewSnapshotJanitor creates a new janitor
func NewSnapshotJanitor(collector OrphanCollector, log logger.Logger, interval time.Duration) *SnapshotJanitor {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	return &SnapshotJanitor{
		collector: collector,
		logger:    log,
		interval:  interval,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start begins the periodic collection
func (j *SnapshotJanitor) Start(ctx context.Context) error {
	j.started.Store(true)
	ticker := time.NewTicker(j.interval)
	go func() {
		defer close(j.done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := j.Collect(ctx); err != nil {
					j.logger.Error("snapshot collection failed",
						logger.Error(err))
				}
			case <-j.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the janitor and waits for its goroutine
func (j *SnapshotJanitor) Stop() {
	j.stopOnce.Do(func() {
		close(j.stopCh)
		if !j.started.Load() {
			close(j.done)
		}
	})
	<-j.done
}

// Collect runs one collection pass
func (j *SnapshotJanitor) Collect(ctx context.Context) (int, error) {
	n, err := j.collector.CollectOrphans(ctx)
	if err != nil {
		return 0, err
	}

	if n > 0 {
		j.logger.Info("orphan snapshots discarded",
			logger.Int("count", n))
	} else {
		j.logger.Debug("no orphan snapshots")
	}
	return n, nil
}
