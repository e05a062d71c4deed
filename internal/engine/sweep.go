package engine

import (
	"context"
	"slices"
	"time"

	"github.com/MrSnakeDoc/tabkeeper/internal/domain"
	"github.com/MrSnakeDoc/tabkeeper/internal/eviction"
	"github.com/MrSnakeDoc/tabkeeper/internal/logger"
)

// SweepResult summarizes one eviction pass.
type SweepResult struct {
	Focus   domain.TabID         `json:"focus"`
	Scored  int                  `json:"scored"`
	Pinned  int                  `json:"pinned"`
	Skipped int                  `json:"skipped"`
	Failed  int                  `json:"failed"`
	Applied []eviction.Candidate `json:"applied"`
}

// Sweep runs an eviction pass around the current focus.
func (e *Engine) Sweep(ctx context.Context) SweepResult {
	return e.SweepAround(ctx, e.organizer.Focus())
}

// SweepAround scores every tab except focus and applies the chosen actions,
// most evictable first. Pinned tabs are never touched. Active tabs receive
// the chosen action; frozen and snoozed tabs only escalate to hibernation;
// hibernated and waking tabs are left alone. Each decision is re-checked
// against the tab's current state right before it is applied.
func (e *Engine) SweepAround(ctx context.Context, focus domain.TabID) SweepResult {
	result := SweepResult{Focus: focus}
	now := e.now()

	visible := make(map[domain.TabID]struct{})
	for _, id := range e.organizer.Organize() {
		visible[id] = struct{}{}
	}

	ids := make([]domain.TabID, 0, len(e.tabs))
	for id := range e.tabs {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var candidates []eviction.Candidate
	for _, id := range ids {
		if id == focus {
			continue
		}
		tab := e.tabs[id]
		if err := e.organizer.CheckTab(id); err != nil {
			e.logger.Warn("skipping tab with broken group state", logger.Tab(uint64(id)), logger.Error(err))
			result.Skipped++
			continue
		}
		if !tab.PayloadMatchesState() {
			e.logger.Warn("skipping tab whose payload does not match its state",
				logger.Tab(uint64(id)), logger.String("state", tab.State.String()))
			result.Skipped++
			continue
		}
		if e.organizer.KeepActive(id) {
			result.Pinned++
			continue
		}
		if tab.State == domain.Hibernated || tab.State == domain.Waking {
			continue
		}

		_, isVisible := visible[id]
		priority := e.priority(tab, isVisible, now)
		action := e.policy.Decide(priority)
		result.Scored++

		if tab.State != domain.Active && action != eviction.Hibernate {
			continue
		}
		candidates = append(candidates, eviction.Candidate{
			Tab:      id,
			State:    tab.State,
			Priority: priority,
			Action:   action,
		})
	}

	eviction.Rank(candidates)

	for _, c := range candidates {
		if ctx.Err() != nil {
			e.logger.Warn("sweep interrupted", logger.Error(ctx.Err()))
			break
		}
		tab, ok := e.tabs[c.Tab]
		if !ok || tab.State != c.State {
			e.logger.Debug("tab changed since scoring, skipping", logger.Tab(uint64(c.Tab)))
			result.Skipped++
			continue
		}
		if err := e.apply(ctx, tab, c.Action); err != nil {
			e.logger.Warn("sweep action failed",
				logger.Tab(uint64(c.Tab)),
				logger.String("action", c.Action.String()),
				logger.Error(err))
			result.Failed++
			continue
		}
		result.Applied = append(result.Applied, c)
		if e.metrics != nil {
			e.metrics.SweepActions.WithLabelValues(c.Action.String()).Inc()
		}
	}

	if e.metrics != nil {
		e.metrics.Sweeps.Inc()
	}
	e.observe()

	e.logger.Info("sweep finished",
		logger.Tab(uint64(focus)),
		logger.Int("scored", result.Scored),
		logger.Int("pinned", result.Pinned),
		logger.Int("applied", len(result.Applied)),
		logger.Int("skipped", result.Skipped),
		logger.Int("failed", result.Failed))
	return result
}

func (e *Engine) apply(ctx context.Context, tab *domain.Tab, action eviction.Action) error {
	if action == eviction.Hibernate {
		return e.hibernate(ctx, tab)
	}
	return e.suspend(ctx, tab, action.Target())
}

// priority scores a tab with the eviction policy.
func (e *Engine) priority(tab *domain.Tab, visible bool, now time.Time) float64 {
	return e.policy.Score(eviction.Input{
		LastAccessed: tab.LastAccessed,
		Now:          now,
		Visible:      visible,
		KeepActive:   e.organizer.KeepActive(tab.ID),
	})
}
