package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrSnakeDoc/tabkeeper/internal/logger"
	"github.com/MrSnakeDoc/tabkeeper/internal/memstat"
	"github.com/MrSnakeDoc/tabkeeper/internal/metrics"
)

const (
	// DefaultMonitorInterval is the sampling period
	DefaultMonitorInterval = 60 * time.Second
	// DefaultMemoryThreshold is the system memory percent above which a sweep runs
	DefaultMemoryThreshold = 75.0
	// DefaultHistorySize is the number of trailing samples kept for the trend
	DefaultHistorySize = 10
)

// Trigger reasons
const (
	ReasonThreshold = "threshold"
	ReasonTrend     = "trend"
	ReasonManual    = "manual"
)

// SweepFunc runs one eviction sweep.
type SweepFunc func(ctx context.Context) error

// MonitorStatus is what the infra endpoint reports about the monitor.
type MonitorStatus struct {
	Interval    time.Duration   `json:"interval"`
	Threshold   float64         `json:"threshold_percent"`
	Samples     int             `json:"samples"`
	Increasing  bool            `json:"increasing"`
	LastSample  *memstat.Sample `json:"last_sample,omitempty"`
	LastTrigger time.Time       `json:"last_trigger,omitempty"`
	LastReason  string          `json:"last_reason,omitempty"`
}

// PressureMonitor periodically samples memory and triggers sweeps when the
// system is above threshold or memory use is trending up. It never evicts
// anything itself.
type PressureMonitor struct {
	sampler       memstat.Sampler
	sweep         SweepFunc
	logger        logger.Logger
	metrics       *metrics.Metrics
	interval      time.Duration
	threshold     float64
	historySize   int
	stopCh        chan struct{}
	manualTrigger chan struct{}
	done          chan struct{}
	started       atomic.Bool
	stopOnce      sync.Once

	mu          sync.Mutex
	history     []memstat.Sample
	lastTrigger time.Time
	lastReason  string
}

// NewPressureMonitor creates a monitor. Zero values fall back to the defaults.
// m may be nil.
func NewPressureMonitor(
	sampler memstat.Sampler,
	sweep SweepFunc,
	log logger.Logger,
	m *metrics.Metrics,
	interval time.Duration,
	threshold float64,
	historySize int,
	manualTrigger chan struct{},
) *PressureMonitor {
	if interval <= 0 {
		interval = DefaultMonitorInterval
	}
	if threshold <= 0 {
		threshold = DefaultMemoryThreshold
	}
	if historySize < 2 {
		historySize = DefaultHistorySize
	}
	return &PressureMonitor{
		sampler:       sampler,
		sweep:         sweep,
		logger:        log,
		metrics:       m,
		interval:      interval,
		threshold:     threshold,
		historySize:   historySize,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
		done:          make(chan struct{}),
	}
}

// Start runs an immediate tick, then ticks periodically until Stop or ctx ends.
func (pm *PressureMonitor) Start(ctx context.Context) error {
	// Sample immediately on start
	pm.Tick(ctx)

	pm.started.Store(true)
	ticker := time.NewTicker(pm.interval)
	go func() {
		defer close(pm.done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				pm.Tick(ctx)
			case <-pm.manualTrigger:
				pm.logger.Info("manual sweep triggered")
				pm.trigger(ctx, ReasonManual)
			case <-pm.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the monitor and waits for its goroutine.
func (pm *PressureMonitor) Stop() {
	pm.stopOnce.Do(func() {
		close(pm.stopCh)
		if !pm.started.Load() {
			close(pm.done)
		}
	})
	<-pm.done
}

// Tick samples once and triggers a sweep on pressure. It reports whether a
// sweep was triggered. A failed sample counts as no pressure.
func (pm *PressureMonitor) Tick(ctx context.Context) bool {
	sample, err := pm.sampler.Sample(ctx)
	if err != nil {
		pm.logger.Warn("memory sample failed, assuming no pressure", logger.Error(err))
		return false
	}

	pm.mu.Lock()
	pm.history = append(pm.history, sample)
	if len(pm.history) > pm.historySize {
		pm.history = pm.history[len(pm.history)-pm.historySize:]
	}
	increasing := pm.increasingLocked()
	pm.mu.Unlock()

	if pm.metrics != nil {
		pm.metrics.MemoryPercent.Set(sample.SystemPercent)
		pm.metrics.ProcessRSS.Set(float64(sample.ProcessRSS))
	}

	pm.logger.Debug("memory sampled",
		logger.Float64("system_percent", sample.SystemPercent),
		logger.Uint64("rss", sample.ProcessRSS),
		logger.Bool("increasing", increasing))

	switch {
	case sample.SystemPercent > pm.threshold:
		pm.trigger(ctx, ReasonThreshold)
	case increasing:
		pm.trigger(ctx, ReasonTrend)
	default:
		return false
	}
	return true
}

// Status returns a snapshot of the monitor state.
func (pm *PressureMonitor) Status() MonitorStatus {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	st := MonitorStatus{
		Interval:    pm.interval,
		Threshold:   pm.threshold,
		Samples:     len(pm.history),
		Increasing:  pm.increasingLocked(),
		LastTrigger: pm.lastTrigger,
		LastReason:  pm.lastReason,
	}
	if n := len(pm.history); n > 0 {
		last := pm.history[n-1]
		st.LastSample = &last
	}
	return st
}

func (pm *PressureMonitor) trigger(ctx context.Context, reason string) {
	pm.mu.Lock()
	pm.lastTrigger = time.Now()
	pm.lastReason = reason
	pm.mu.Unlock()

	if pm.metrics != nil {
		pm.metrics.PressureTriggers.WithLabelValues(reason).Inc()
	}
	pm.logger.Info("memory pressure, sweeping", logger.String("reason", reason))

	if err := pm.sweep(ctx); err != nil {
		pm.logger.Error("sweep failed", logger.Error(err))
	}
}

// increasingLocked compares the newest system usage with the oldest in the window.
func (pm *PressureMonitor) increasingLocked() bool {
	if len(pm.history) < 2 {
		return false
	}
	return pm.history[len(pm.history)-1].SystemPercent > pm.history[0].SystemPercent
}
