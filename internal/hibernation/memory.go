package hibernation

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/MrSnakeDoc/tabkeeper/internal/domain"
)

// MemoryBackend keeps snapshots in process memory.
type MemoryBackend struct {
	mu        sync.RWMutex
	snapshots map[domain.TabID]domain.Snapshot
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		snapshots: make(map[domain.TabID]domain.Snapshot),
	}
}

func (m *MemoryBackend) Name() string { return "memory" }

func (m *MemoryBackend) Put(_ context.Context, id domain.TabID, snap domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshots[id] = snap
	return nil
}

func (m *MemoryBackend) Take(_ context.Context, id domain.TabID) (domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap, ok := m.snapshots[id]
	if !ok {
		return domain.Snapshot{}, fmt.Errorf("%w: snapshot for tab %d", domain.ErrNotFound, id)
	}
	delete(m.snapshots, id)
	return snap, nil
}

func (m *MemoryBackend) Delete(_ context.Context, id domain.TabID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.snapshots, id)
	return nil
}

func (m *MemoryBackend) IDs(_ context.Context) ([]domain.TabID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]domain.TabID, 0, len(m.snapshots))
	for id := range m.snapshots {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// Len returns the number of stored snapshots.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.snapshots)
}
