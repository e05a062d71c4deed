// Package engine owns the tab table and applies every lifecycle operation:
// open, close, focus, group changes, suspension sweeps and wakes.
//
// An Engine is not safe for concurrent use. Callers on several goroutines
// go through a Loop, which funnels every operation into one owner goroutine.
package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/MrSnakeDoc/tabkeeper/internal/domain"
	"github.com/MrSnakeDoc/tabkeeper/internal/eviction"
	"github.com/MrSnakeDoc/tabkeeper/internal/hibernation"
	"github.com/MrSnakeDoc/tabkeeper/internal/logger"
	"github.com/MrSnakeDoc/tabkeeper/internal/metrics"
	"github.com/MrSnakeDoc/tabkeeper/internal/organizer"
)

// Options tunes an Engine.
type Options struct {
	CollapseThreshold int
	Policy            eviction.Policy
	Now               func() time.Time // for testing, defaults to time.Now
}

// Engine is the tab lifecycle and memory-management core.
type Engine struct {
	tabs      map[domain.TabID]*domain.Tab
	nextTab   domain.TabID
	organizer *organizer.Organizer
	policy    eviction.Policy
	store     *hibernation.Store
	surface   domain.Surface
	metrics   *metrics.Metrics
	logger    logger.Logger
	now       func() time.Time

	// pendingFocus is a hibernated tab whose focus waits for its load.
	pendingFocus domain.TabID
}

// New creates an engine. m may be nil.
func New(surface domain.Surface, store *hibernation.Store, m *metrics.Metrics, log logger.Logger, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Policy.Validate() != nil {
		opts.Policy = eviction.DefaultPolicy()
	}
	return &Engine{
		tabs:      make(map[domain.TabID]*domain.Tab),
		organizer: organizer.New(opts.CollapseThreshold, log),
		policy:    opts.Policy,
		store:     store,
		surface:   surface,
		metrics:   m,
		logger:    log,
		now:       opts.Now,
	}
}

// ─────────────────────────────────────────────────────────────────
// Tabs
// ─────────────────────────────────────────────────────────────────

// OpenTab creates an Active tab loading url, optionally inside a group.
func (e *Engine) OpenTab(ctx context.Context, url, group string) (domain.TabID, error) {
	if url == "" {
		return domain.NoTab, fmt.Errorf("%w: empty url", domain.ErrInvalidArgument)
	}
	if group != "" {
		if _, err := e.organizer.Lookup(group); err != nil {
			return domain.NoTab, err
		}
	}

	id := e.nextTab + 1
	h, err := e.surface.CreateResource(ctx, id, url)
	if err != nil {
		return domain.NoTab, fmt.Errorf("failed to create resource: %w", err)
	}

	if err := e.organizer.AddTab(id); err != nil {
		e.destroyQuietly(ctx, id, h)
		return domain.NoTab, err
	}
	if group != "" {
		if err := e.organizer.AddToGroup(id, group); err != nil {
			_ = e.organizer.RemoveTab(id)
			e.destroyQuietly(ctx, id, h)
			return domain.NoTab, err
		}
	}

	now := e.now()
	e.nextTab = id
	e.tabs[id] = &domain.Tab{
		ID:           id,
		State:        domain.Active,
		LastAccessed: now,
		CreatedAt:    now,
		Payload:      domain.LivePayload(h),
		URL:          url,
	}
	e.observe()

	e.logger.Info("tab opened",
		logger.Tab(uint64(id)),
		logger.String("url", url),
		logger.Group(group))
	return id, nil
}

// CloseTab destroys a tab in any state. Collaborator failures are logged;
// the tab is always removed.
func (e *Engine) CloseTab(ctx context.Context, id domain.TabID) error {
	tab, err := e.tab(id)
	if err != nil {
		return err
	}

	switch tab.State {
	case domain.Hibernated:
		if err := e.store.Discard(ctx, id); err != nil {
			e.logger.Warn("failed to discard snapshot of closed tab",
				logger.Tab(uint64(id)), logger.Error(err))
		}
	case domain.Waking:
		if h, ok := tab.Payload.Live(); ok {
			e.surface.CancelLoad(h)
			e.destroyQuietly(ctx, id, h)
		}
	default:
		if h, ok := tab.Payload.Live(); ok {
			e.destroyQuietly(ctx, id, h)
		}
	}

	if err := e.organizer.RemoveTab(id); err != nil {
		e.logger.Warn("organizer did not track closed tab", logger.Tab(uint64(id)), logger.Error(err))
	}
	delete(e.tabs, id)
	if e.pendingFocus == id {
		e.pendingFocus = domain.NoTab
	}
	e.observe()

	e.logger.Info("tab closed",
		logger.Tab(uint64(id)),
		logger.String("state", tab.State.String()))
	return nil
}

// FocusTab makes a tab the input focus. Suspended tabs are woken first; a
// hibernated tab receives focus once its load completes.
func (e *Engine) FocusTab(ctx context.Context, id domain.TabID) error {
	tab, err := e.tab(id)
	if err != nil {
		return err
	}

	switch {
	case tab.State == domain.Hibernated || tab.State == domain.Waking:
		if err := e.WakeTab(ctx, id); err != nil {
			return err
		}
		e.pendingFocus = id
		e.logger.Debug("focus deferred until load completes", logger.Tab(uint64(id)))
		return nil
	case tab.State.Suspended():
		if err := e.WakeTab(ctx, id); err != nil {
			return err
		}
	}

	tab.LastAccessed = e.now()
	e.pendingFocus = domain.NoTab
	return e.organizer.SetFocus(id)
}

// Focus returns the focused tab or NoTab.
func (e *Engine) Focus() domain.TabID {
	return e.organizer.Focus()
}

// Tab returns a copy of a tab.
func (e *Engine) Tab(id domain.TabID) (domain.Tab, bool) {
	tab, ok := e.tabs[id]
	if !ok {
		return domain.Tab{}, false
	}
	return *tab, true
}

// Len returns the number of open tabs.
func (e *Engine) Len() int {
	return len(e.tabs)
}

// ─────────────────────────────────────────────────────────────────
// Groups
// ─────────────────────────────────────────────────────────────────

// CreateGroup creates a group under parent ("" for top level).
func (e *Engine) CreateGroup(name, color, parent string) (domain.GroupID, error) {
	return e.organizer.CreateGroup(name, color, parent)
}

// DeleteGroup removes a group and its descendants; members become ungrouped.
func (e *Engine) DeleteGroup(path string) error {
	return e.organizer.DeleteGroup(path)
}

// ToggleGroup collapses or expands a group. When expanding moves focus into
// the group, the target tab is focused (and woken if needed).
func (e *Engine) ToggleGroup(ctx context.Context, path string) error {
	target, err := e.organizer.ToggleGroup(path)
	if err != nil {
		return err
	}
	if target == domain.NoTab {
		return nil
	}
	if err := e.FocusTab(ctx, target); err != nil {
		e.logger.Warn("failed to focus first member of expanded group",
			logger.Group(path), logger.Tab(uint64(target)), logger.Error(err))
	}
	return nil
}

// MoveToGroup moves a tab into the group at path.
func (e *Engine) MoveToGroup(id domain.TabID, path string) error {
	if _, err := e.tab(id); err != nil {
		return err
	}
	return e.organizer.AddToGroup(id, path)
}

// RemoveFromGroup makes a tab ungrouped.
func (e *Engine) RemoveFromGroup(id domain.TabID) error {
	if _, err := e.tab(id); err != nil {
		return err
	}
	return e.organizer.RemoveFromGroup(id)
}

// SetKeepActive pins or unpins a group against eviction.
func (e *Engine) SetKeepActive(path string, keep bool) error {
	return e.organizer.SetKeepActive(path, keep)
}

// VisibleLayout returns the tab strip order.
func (e *Engine) VisibleLayout() []domain.TabID {
	return e.organizer.Organize()
}

// ─────────────────────────────────────────────────────────────────
// Maintenance
// ─────────────────────────────────────────────────────────────────

// HibernatedTabs returns the ids of tabs currently hibernated, ascending.
func (e *Engine) HibernatedTabs() []domain.TabID {
	var ids []domain.TabID
	for id, tab := range e.tabs {
		if tab.State == domain.Hibernated {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// CollectOrphanSnapshots discards stored snapshots that no hibernated tab owns.
func (e *Engine) CollectOrphanSnapshots(ctx context.Context) (int, error) {
	stored, err := e.store.IDs(ctx)
	if err != nil {
		return 0, err
	}
	discarded := 0
	for _, id := range stored {
		if tab, ok := e.tabs[id]; ok && tab.State == domain.Hibernated {
			continue
		}
		if err := e.store.Discard(ctx, id); err != nil {
			e.logger.Warn("failed to discard orphan snapshot", logger.Tab(uint64(id)), logger.Error(err))
			continue
		}
		discarded++
	}
	if discarded > 0 && e.metrics != nil {
		e.metrics.OrphanSnapshots.Add(float64(discarded))
	}
	return discarded, nil
}

// Check verifies every engine and organizer invariant.
func (e *Engine) Check() error {
	for id, tab := range e.tabs {
		if !tab.PayloadMatchesState() {
			return fmt.Errorf("%w: tab %d in state %s holds the wrong payload",
				domain.ErrInvariantViolation, id, tab.State)
		}
		if !e.organizer.HasTab(id) {
			return fmt.Errorf("%w: tab %d unknown to organizer", domain.ErrInvariantViolation, id)
		}
	}
	return e.organizer.Check()
}

// ─────────────────────────────────────────────────────────────────
// internals
// ─────────────────────────────────────────────────────────────────

func (e *Engine) tab(id domain.TabID) (*domain.Tab, error) {
	tab, ok := e.tabs[id]
	if !ok {
		return nil, fmt.Errorf("%w: tab %d", domain.ErrNotFound, id)
	}
	return tab, nil
}

func (e *Engine) destroyQuietly(ctx context.Context, id domain.TabID, h domain.ResourceHandle) {
	if err := e.surface.DestroyResource(ctx, h); err != nil {
		e.logger.Warn("failed to destroy resource",
			logger.Tab(uint64(id)),
			logger.Uint64("handle", uint64(h)),
			logger.Error(err))
	}
}

// transition checks the state table and counts rejections.
func (e *Engine) transition(tab *domain.Tab, to domain.TabState) error {
	err := domain.CheckTransition(tab.ID, tab.State, to)
	if err != nil && errors.Is(err, domain.ErrInvalidTransition) {
		e.logger.Warn("transition rejected",
			logger.Tab(uint64(tab.ID)),
			logger.String("from", tab.State.String()),
			logger.String("to", to.String()))
		if e.metrics != nil {
			e.metrics.RejectedTransitions.WithLabelValues(tab.State.String(), to.String()).Inc()
		}
	}
	return err
}

// observe refreshes the per-state gauges.
func (e *Engine) observe() {
	if e.metrics == nil {
		return
	}
	counts := make(map[domain.TabState]int, len(domain.States))
	for _, tab := range e.tabs {
		counts[tab.State]++
	}
	for _, s := range domain.States {
		e.metrics.TabsByState.WithLabelValues(s.String()).Set(float64(counts[s]))
	}
}
