// Package memstat samples system and process memory usage.
package memstat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/procfs"
)

// Sample is one memory reading.
type Sample struct {
	At            time.Time `json:"at"`
	SystemPercent float64   `json:"system_percent"`
	ProcessRSS    uint64    `json:"process_rss_bytes"`
}

// Sampler produces memory readings.
type Sampler interface {
	Sample(ctx context.Context) (Sample, error)
}

// SamplerFunc adapts a function to Sampler.
type SamplerFunc func(ctx context.Context) (Sample, error)

func (f SamplerFunc) Sample(ctx context.Context) (Sample, error) { return f(ctx) }

// ProcSampler reads /proc through procfs.
type ProcSampler struct {
	fs  procfs.FS
	now func() time.Time
}

// NewProcSampler opens the default /proc mount.
func NewProcSampler() (*ProcSampler, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, fmt.Errorf("failed to open procfs: %w", err)
	}
	return &ProcSampler{fs: fs, now: time.Now}, nil
}

// NewProcSamplerAt reads a procfs tree rooted at mountPoint.
func NewProcSamplerAt(mountPoint string) (*ProcSampler, error) {
	fs, err := procfs.NewFS(mountPoint)
	if err != nil {
		return nil, fmt.Errorf("failed to open procfs at %s: %w", mountPoint, err)
	}
	return &ProcSampler{fs: fs, now: time.Now}, nil
}

// Sample reads system memory usage and the resident size of this process.
func (p *ProcSampler) Sample(ctx context.Context) (Sample, error) {
	if err := ctx.Err(); err != nil {
		return Sample{}, err
	}

	mi, err := p.fs.Meminfo()
	if err != nil {
		return Sample{}, fmt.Errorf("failed to read meminfo: %w", err)
	}
	percent, err := UsedPercent(mi)
	if err != nil {
		return Sample{}, err
	}

	s := Sample{At: p.now(), SystemPercent: percent}

	// RSS is informational; a missing self entry does not fail the sample.
	if self, err := p.fs.Self(); err == nil {
		if stat, err := self.Stat(); err == nil {
			s.ProcessRSS = uint64(stat.ResidentMemory())
		}
	}
	return s, nil
}

// UsedPercent computes (total - available) / total in percent.
func UsedPercent(mi procfs.Meminfo) (float64, error) {
	if mi.MemTotal == nil || *mi.MemTotal == 0 {
		return 0, errors.New("meminfo has no MemTotal")
	}
	total := float64(*mi.MemTotal)

	var available float64
	switch {
	case mi.MemAvailable != nil:
		available = float64(*mi.MemAvailable)
	case mi.MemFree != nil:
		// Kernels before 3.14 lack MemAvailable.
		available = float64(*mi.MemFree)
		if mi.Buffers != nil {
			available += float64(*mi.Buffers)
		}
		if mi.Cached != nil {
			available += float64(*mi.Cached)
		}
	default:
		return 0, errors.New("meminfo has neither MemAvailable nor MemFree")
	}

	used := (total - available) / total * 100
	switch {
	case used < 0:
		return 0, nil
	case used > 100:
		return 100, nil
	default:
		return used, nil
	}
}
