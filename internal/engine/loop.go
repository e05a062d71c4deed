package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/MrSnakeDoc/tabkeeper/internal/domain"
	"github.com/MrSnakeDoc/tabkeeper/internal/logger"
)

// DefaultQueueSize is the capacity of the mutation queue.
const DefaultQueueSize = 256

// ErrLoopStopped is returned for operations submitted after Stop.
var ErrLoopStopped = errors.New("engine loop stopped")

type job func(ctx context.Context)

// Loop runs every engine operation on a single owner goroutine.
type Loop struct {
	engine *Engine
	logger logger.Logger
	queue  chan job

	started  atomic.Bool
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewLoop wraps an engine. The engine must not be used directly afterwards.
func NewLoop(e *Engine, size int, log logger.Logger) *Loop {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Loop{
		engine: e,
		logger: log,
		queue:  make(chan job, size),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches the owner goroutine. ctx is handed to posted operations.
func (l *Loop) Start(ctx context.Context) {
	if !l.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(l.done)
		for {
			select {
			case j := <-l.queue:
				j(ctx)
			case <-l.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the owner goroutine and waits for it. Queued operations that
// have not started are dropped.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
		if !l.started.Load() {
			close(l.done)
		}
	})
	<-l.done
}

// Do runs fn on the owner goroutine and waits for its result.
func (l *Loop) Do(ctx context.Context, fn func(ctx context.Context, e *Engine) error) error {
	result := make(chan error, 1)
	j := func(context.Context) {
		// The caller may have given up while the job was queued.
		if err := ctx.Err(); err != nil {
			result <- err
			return
		}
		result <- fn(ctx, l.engine)
	}

	if l.stopped() {
		return ErrLoopStopped
	}
	select {
	case l.queue <- j:
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopCh:
		return ErrLoopStopped
	case <-l.done:
		return ErrLoopStopped
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		// The job may have run just before the loop exited.
		select {
		case err := <-result:
			return err
		default:
			return ErrLoopStopped
		}
	}
}

// Post queues fn without waiting for it to run. It blocks only while the
// queue is full and returns false once the loop has stopped.
func (l *Loop) Post(fn func(ctx context.Context, e *Engine)) bool {
	j := func(ctx context.Context) {
		fn(ctx, l.engine)
	}
	if l.stopped() {
		return false
	}
	select {
	case l.queue <- j:
		return true
	case <-l.stopCh:
		return false
	case <-l.done:
		return false
	}
}

// stopped reports whether Stop was called or the owner goroutine exited.
func (l *Loop) stopped() bool {
	select {
	case <-l.stopCh:
		return true
	case <-l.done:
		return true
	default:
		return false
	}
}

// OnLoad is a domain.LoadListener that hands completions to the engine.
func (l *Loop) OnLoad(ev domain.LoadEvent) {
	ok := l.Post(func(ctx context.Context, e *Engine) {
		if err := e.HandleLoadComplete(ctx, ev); err != nil {
			l.logger.Debug("load completion ignored",
				logger.Tab(uint64(ev.Tab)),
				logger.Uint64("handle", uint64(ev.Handle)),
				logger.Error(err))
		}
	})
	if !ok {
		l.logger.Debug("load completion dropped, loop stopped", logger.Tab(uint64(ev.Tab)))
	}
}

// Sweep runs an eviction pass on the owner goroutine.
func (l *Loop) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	err := l.Do(ctx, func(ctx context.Context, e *Engine) error {
		result = e.Sweep(ctx)
		return nil
	})
	if err != nil {
		return SweepResult{}, err
	}
	return result, nil
}

// CollectOrphans discards snapshots without a hibernated owner.
func (l *Loop) CollectOrphans(ctx context.Context) (int, error) {
	var n int
	err := l.Do(ctx, func(ctx context.Context, e *Engine) error {
		var err error
		n, err = e.CollectOrphanSnapshots(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
