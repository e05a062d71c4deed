package memstat

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/procfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v uint64) *uint64 { return &v }

func TestUsedPercent(t *testing.T) {
	tests := []struct {
		name    string
		mi      procfs.Meminfo
		want    float64
		wantErr bool
	}{
		{
			name: "available",
			mi:   procfs.Meminfo{MemTotal: ptr(1000), MemAvailable: ptr(250)},
			want: 75,
		},
		{
			name: "legacy free buffers cached",
			mi:   procfs.Meminfo{MemTotal: ptr(1000), MemFree: ptr(100), Buffers: ptr(50), Cached: ptr(350)},
			want: 50,
		},
		{
			name:    "no total",
			mi:      procfs.Meminfo{MemAvailable: ptr(10)},
			wantErr: true,
		},
		{
			name:    "no available",
			mi:      procfs.Meminfo{MemTotal: ptr(10)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UsedPercent(tt.mi)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestProcSamplerReadsMeminfo(t *testing.T) {
	root := t.TempDir()
	meminfo := "MemTotal:       16000000 kB\nMemFree:         1000000 kB\nMemAvailable:    4000000 kB\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "meminfo"), []byte(meminfo), 0o644))

	s, err := NewProcSamplerAt(root)
	require.NoError(t, err)

	sample, err := s.Sample(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 75, sample.SystemPercent, 1e-9)
	assert.False(t, sample.At.IsZero())
}

func TestProcSamplerHonorsContext(t *testing.T) {
	s, err := NewProcSamplerAt(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Sample(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
