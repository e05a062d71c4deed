package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/MrSnakeDoc/tabkeeper/internal/logger"
	"github.com/MrSnakeDoc/tabkeeper/internal/memstat"
	"github.com/MrSnakeDoc/tabkeeper/internal/metrics"
)

// sequence returns the given system percentages in order, repeating the last.
func sequence(percents ...float64) memstat.Sampler {
	var mu sync.Mutex
	i := 0
	return memstat.SamplerFunc(func(context.Context) (memstat.Sample, error) {
		mu.Lock()
		defer mu.Unlock()
		p := percents[i]
		if i < len(percents)-1 {
			i++
		}
		return memstat.Sample{At: time.Now(), SystemPercent: p}, nil
	})
}

type sweepCounter struct {
	mu    sync.Mutex
	calls int
	ch    chan struct{}
}

func newSweepCounter() *sweepCounter {
	return &sweepCounter{ch: make(chan struct{}, 16)}
}

func (s *sweepCounter) sweep(context.Context) error {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	s.ch <- struct{}{}
	return nil
}

func (s *sweepCounter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newMonitor(sampler memstat.Sampler, sc *sweepCounter, history int) *PressureMonitor {
	return NewPressureMonitor(sampler, sc.sweep, logger.New("error", false), metrics.New(),
		time.Hour, DefaultMemoryThreshold, history, make(chan struct{}, 1))
}

func TestPressureMonitor_Tick(t *testing.T) {
	tests := []struct {
		name     string
		percents []float64
		want     []bool
		reason   string
	}{
		{
			name:     "above threshold",
			percents: []float64{80},
			want:     []bool{true},
			reason:   ReasonThreshold,
		},
		{
			name:     "at threshold is not above",
			percents: []float64{75},
			want:     []bool{false},
		},
		{
			name:     "increasing trend",
			percents: []float64{40, 41},
			want:     []bool{false, true},
			reason:   ReasonTrend,
		},
		{
			name:     "flat and falling",
			percents: []float64{50, 50, 40},
			want:     []bool{false, false, false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := newSweepCounter()
			pm := newMonitor(sequence(tt.percents...), sc, DefaultHistorySize)

			triggered := 0
			for i, want := range tt.want {
				if got := pm.Tick(context.Background()); got != want {
					t.Errorf("tick %d: expected %v, got %v", i, want, got)
				}
				if want {
					triggered++
				}
			}

			if sc.count() != triggered {
				t.Errorf("expected %d sweeps, got %d", triggered, sc.count())
			}
			if got := pm.Status().LastReason; got != tt.reason {
				t.Errorf("expected reason %q, got %q", tt.reason, got)
			}
		})
	}
}

func TestPressureMonitor_SamplerErrorIsNoPressure(t *testing.T) {
	sc := newSweepCounter()
	failing := memstat.SamplerFunc(func(context.Context) (memstat.Sample, error) {
		return memstat.Sample{}, errors.New("meminfo unavailable")
	})
	pm := newMonitor(failing, sc, DefaultHistorySize)

	if pm.Tick(context.Background()) {
		t.Error("Expected no trigger on sampler failure")
	}
	if sc.count() != 0 {
		t.Errorf("Expected no sweep, got %d", sc.count())
	}
	if st := pm.Status(); st.Samples != 0 || st.LastSample != nil {
		t.Errorf("Expected empty history, got %+v", st)
	}
}

func TestPressureMonitor_HistoryIsBounded(t *testing.T) {
	sc := newSweepCounter()
	// Rising overall, but the last three samples fall.
	pm := newMonitor(sequence(10, 20, 30, 25, 24, 23), sc, 3)

	for i := 0; i < 6; i++ {
		pm.Tick(context.Background())
	}

	st := pm.Status()
	if st.Samples != 3 {
		t.Errorf("Expected 3 samples, got %d", st.Samples)
	}
	if st.Increasing {
		t.Error("Expected the trend to follow only the window")
	}
	if st.LastSample == nil || st.LastSample.SystemPercent != 23 {
		t.Errorf("Expected last sample 23, got %+v", st.LastSample)
	}
}

func TestPressureMonitor_StartTriggerStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	sc := newSweepCounter()
	trigger := make(chan struct{}, 1)
	pm := NewPressureMonitor(sequence(90, 10), sc.sweep, logger.New("error", false), nil,
		time.Hour, DefaultMemoryThreshold, DefaultHistorySize, trigger)

	if err := pm.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	// Immediate tick is above threshold.
	<-sc.ch

	trigger <- struct{}{}
	select {
	case <-sc.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("manual trigger did not sweep")
	}

	pm.Stop()
	pm.Stop()

	if sc.count() != 2 {
		t.Errorf("Expected 2 sweeps, got %d", sc.count())
	}
	if got := pm.Status().LastReason; got != ReasonManual {
		t.Errorf("Expected manual reason, got %q", got)
	}
}

func TestPressureMonitor_StopBeforeStart(t *testing.T) {
	defer goleak.VerifyNone(t)

	pm := newMonitor(sequence(10), newSweepCounter(), DefaultHistorySize)
	pm.Stop()
}
