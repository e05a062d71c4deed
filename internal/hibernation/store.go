// Package hibernation captures the restorable state of a tab before its
// resource is destroyed and hands it back exactly once on wake.
package hibernation

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/tabkeeper/internal/domain"
	"github.com/MrSnakeDoc/tabkeeper/internal/logger"
)

// StateReader reads the restorable state of a live resource.
type StateReader interface {
	ReadState(ctx context.Context, h domain.ResourceHandle) (domain.PageState, error)
}

// Store captures, restores and discards tab snapshots.
type Store struct {
	backend Backend
	reader  StateReader
	logger  logger.Logger
}

// NewStore creates a store over a backend.
func NewStore(backend Backend, reader StateReader, log logger.Logger) *Store {
	return &Store{
		backend: backend,
		reader:  reader,
		logger:  log,
	}
}

// Capture reads the state of a live resource and persists it. The resource
// is left untouched: destroying it is the caller's next step.
func (s *Store) Capture(ctx context.Context, id domain.TabID, h domain.ResourceHandle) (domain.Snapshot, error) {
	if h == domain.NoResource {
		return domain.Snapshot{}, fmt.Errorf("%w: tab %d has no live resource", domain.ErrInvariantViolation, id)
	}
	state, err := s.reader.ReadState(ctx, h)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("failed to read state of tab %d: %w", id, err)
	}

	snap := domain.Snapshot{
		URL:            state.URL,
		Title:          state.Title,
		ScrollPosition: state.ScrollPosition,
	}
	if err := s.backend.Put(ctx, id, snap); err != nil {
		return domain.Snapshot{}, err
	}

	s.logger.Debug("snapshot captured",
		logger.Tab(uint64(id)),
		logger.String("url", snap.URL),
		logger.Float64("scroll", snap.ScrollPosition))
	return snap, nil
}

// Restore consumes the snapshot of a tab. A second Restore for the same
// hibernation fails with domain.ErrNotFound.
func (s *Store) Restore(ctx context.Context, id domain.TabID) (domain.Snapshot, error) {
	return s.backend.Take(ctx, id)
}

// Put writes a snapshot back, used to undo a Restore whose wake failed.
func (s *Store) Put(ctx context.Context, id domain.TabID, snap domain.Snapshot) error {
	return s.backend.Put(ctx, id, snap)
}

// Discard drops the snapshot of a tab that will never be woken.
func (s *Store) Discard(ctx context.Context, id domain.TabID) error {
	if err := s.backend.Delete(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return nil
}

// IDs lists the tabs that currently have a stored snapshot.
func (s *Store) IDs(ctx context.Context) ([]domain.TabID, error) {
	return s.backend.IDs(ctx)
}

// Backend returns the backend name.
func (s *Store) Backend() string {
	return s.backend.Name()
}
