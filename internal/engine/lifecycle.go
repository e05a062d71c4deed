package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/tabkeeper/internal/domain"
	"github.com/MrSnakeDoc/tabkeeper/internal/logger"
)

// HibernateTab captures a tab's state and destroys its live resource.
func (e *Engine) HibernateTab(ctx context.Context, id domain.TabID) error {
	tab, err := e.tab(id)
	if err != nil {
		return err
	}
	if err := e.hibernate(ctx, tab); err != nil {
		return err
	}
	if e.organizer.Focus() == id {
		_ = e.organizer.SetFocus(domain.NoTab)
	}
	e.observe()
	return nil
}

// WakeTab reverses whichever suspension a tab is in and refreshes its
// access time. Waking an Active tab only refreshes the access time; waking
// a tab whose load is still pending does nothing.
func (e *Engine) WakeTab(ctx context.Context, id domain.TabID) error {
	tab, err := e.tab(id)
	if err != nil {
		return err
	}

	from := tab.State
	switch from {
	case domain.Active:
		tab.LastAccessed = e.now()
		return nil
	case domain.Waking:
		e.logger.Debug("wake ignored, load already pending", logger.Tab(uint64(id)))
		return nil
	case domain.Frozen, domain.Snoozed:
		err = e.resume(ctx, tab)
	case domain.Hibernated:
		err = e.reload(ctx, tab)
	default:
		err = e.transition(tab, domain.Active)
	}
	if err != nil {
		return err
	}

	tab.LastAccessed = e.now()
	if e.metrics != nil {
		e.metrics.Wakes.WithLabelValues(from.String()).Inc()
	}
	e.observe()
	e.logger.Info("tab woken",
		logger.Tab(uint64(id)),
		logger.String("from", from.String()),
		logger.String("state", tab.State.String()))
	return nil
}

// HandleLoadComplete finishes a wake once the surface reports the load of a
// waking tab. Completions for closed tabs, tabs that are not waking, or a
// handle other than the tab's current one are rejected without side effects.
func (e *Engine) HandleLoadComplete(ctx context.Context, ev domain.LoadEvent) error {
	tab, ok := e.tabs[ev.Tab]
	if !ok {
		return fmt.Errorf("%w: completion for closed tab %d", domain.ErrNotFound, ev.Tab)
	}
	if tab.State != domain.Waking {
		return fmt.Errorf("%w: completion for tab %d in state %s", domain.ErrInvalidTransition, ev.Tab, tab.State)
	}
	h, ok := tab.Payload.Live()
	if !ok || h != ev.Handle {
		return fmt.Errorf("%w: completion for stale handle %d of tab %d", domain.ErrInvalidArgument, ev.Handle, ev.Tab)
	}
	if ev.Err != nil {
		e.logger.Warn("load failed, tab stays waking",
			logger.Tab(uint64(ev.Tab)), logger.Error(ev.Err))
		return nil
	}
	if err := e.transition(tab, domain.Active); err != nil {
		return err
	}

	if err := e.surface.ApplyScroll(ctx, h, tab.PendingScroll); err != nil {
		e.logger.Warn("failed to restore scroll position",
			logger.Tab(uint64(tab.ID)),
			logger.Float64("scroll", tab.PendingScroll),
			logger.Error(err))
	}
	tab.State = domain.Active
	tab.PendingScroll = 0
	tab.LastAccessed = e.now()

	if e.pendingFocus == tab.ID {
		e.pendingFocus = domain.NoTab
		if err := e.organizer.SetFocus(tab.ID); err != nil {
			e.logger.Warn("failed to apply deferred focus", logger.Tab(uint64(tab.ID)), logger.Error(err))
		}
	}
	e.observe()

	e.logger.Info("wake completed", logger.Tab(uint64(tab.ID)), logger.String("url", tab.URL))
	return nil
}

// hibernate captures then destroys. A failed destroy discards the fresh
// snapshot so the tab stays exactly as it was.
func (e *Engine) hibernate(ctx context.Context, tab *domain.Tab) error {
	if err := e.transition(tab, domain.Hibernated); err != nil {
		return err
	}
	h, ok := tab.Payload.Live()
	if !ok {
		return fmt.Errorf("%w: tab %d in state %s has no live resource",
			domain.ErrInvariantViolation, tab.ID, tab.State)
	}

	snap, err := e.store.Capture(ctx, tab.ID, h)
	if err != nil {
		return fmt.Errorf("failed to capture tab %d: %w", tab.ID, err)
	}
	if err := e.surface.DestroyResource(ctx, h); err != nil {
		if derr := e.store.Discard(ctx, tab.ID); derr != nil {
			e.logger.Error("failed to roll back snapshot", logger.Tab(uint64(tab.ID)), logger.Error(derr))
		}
		return fmt.Errorf("failed to destroy resource of tab %d: %w", tab.ID, err)
	}

	tab.State = domain.Hibernated
	tab.Payload = domain.SnapshotPayload(snap)
	tab.URL = snap.URL

	e.logger.Info("tab hibernated",
		logger.Tab(uint64(tab.ID)),
		logger.String("url", snap.URL),
		logger.Float64("scroll", snap.ScrollPosition))
	return nil
}

func (e *Engine) suspend(ctx context.Context, tab *domain.Tab, to domain.TabState) error {
	level := domain.SuspendFreeze
	if to == domain.Snoozed {
		level = domain.SuspendSnooze
	}
	if err := e.transition(tab, to); err != nil {
		return err
	}
	h, ok := tab.Payload.Live()
	if !ok {
		return fmt.Errorf("%w: tab %d has no live resource", domain.ErrInvariantViolation, tab.ID)
	}
	if err := e.surface.SuspendResource(ctx, h, level); err != nil {
		return fmt.Errorf("failed to %s tab %d: %w", level, tab.ID, err)
	}
	tab.State = to
	e.logger.Debug("tab suspended", logger.Tab(uint64(tab.ID)), logger.String("level", level.String()))
	return nil
}

func (e *Engine) resume(ctx context.Context, tab *domain.Tab) error {
	if err := e.transition(tab, domain.Active); err != nil {
		return err
	}
	h, ok := tab.Payload.Live()
	if !ok {
		return fmt.Errorf("%w: tab %d has no live resource", domain.ErrInvariantViolation, tab.ID)
	}
	if err := e.surface.ResumeResource(ctx, h); err != nil {
		return fmt.Errorf("failed to resume tab %d: %w", tab.ID, err)
	}
	tab.State = domain.Active
	return nil
}

// reload consumes the stored snapshot and starts loading it into a new
// resource. If the resource cannot be created the snapshot is put back.
func (e *Engine) reload(ctx context.Context, tab *domain.Tab) error {
	if err := e.transition(tab, domain.Waking); err != nil {
		return err
	}
	held, ok := tab.Payload.Snapshot()
	if !ok {
		return fmt.Errorf("%w: hibernated tab %d has no snapshot", domain.ErrInvariantViolation, tab.ID)
	}

	snap, err := e.store.Restore(ctx, tab.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		e.logger.Warn("stored snapshot missing, using the copy held by the tab", logger.Tab(uint64(tab.ID)))
		snap = held
	case err != nil:
		return fmt.Errorf("failed to restore tab %d: %w", tab.ID, err)
	}

	h, err := e.surface.CreateResource(ctx, tab.ID, snap.URL)
	if err != nil {
		if perr := e.store.Put(ctx, tab.ID, snap); perr != nil {
			e.logger.Error("failed to put back snapshot after failed wake",
				logger.Tab(uint64(tab.ID)), logger.Error(perr))
		}
		return fmt.Errorf("failed to recreate resource of tab %d: %w", tab.ID, err)
	}

	tab.State = domain.Waking
	tab.Payload = domain.LivePayload(h)
	tab.URL = snap.URL
	tab.PendingScroll = snap.ScrollPosition
	return nil
}
