package hibernation

import (
	"context"

	"github.com/MrSnakeDoc/tabkeeper/internal/domain"
)

// Backend persists snapshots keyed by tab id.
type Backend interface {
	// Put stores or replaces the snapshot of a tab.
	Put(ctx context.Context, id domain.TabID, snap domain.Snapshot) error
	// Take returns and removes the snapshot of a tab. A missing snapshot
	// yields an error wrapping domain.ErrNotFound.
	Take(ctx context.Context, id domain.TabID) (domain.Snapshot, error)
	// Delete removes a snapshot. Deleting a missing snapshot is not an error.
	Delete(ctx context.Context, id domain.TabID) error
	// IDs lists every tab with a stored snapshot.
	IDs(ctx context.Context) ([]domain.TabID, error)
	// Name identifies the backend in logs and the infra endpoint.
	Name() string
}
