package engine

import (
	"cmp"
	"slices"
	"time"

	"github.com/MrSnakeDoc/tabkeeper/internal/domain"
	"github.com/MrSnakeDoc/tabkeeper/internal/organizer"
)

// TabInfo is the diagnostic view of one tab.
type TabInfo struct {
	ID           domain.TabID          `json:"id"`
	State        domain.TabState       `json:"state"`
	URL          string                `json:"url"`
	Group        string                `json:"group,omitempty"`
	Pinned       bool                  `json:"pinned"`
	Priority     float64               `json:"priority"`
	LastAccessed time.Time             `json:"last_accessed"`
	Handle       domain.ResourceHandle `json:"handle,omitempty"`
	Snapshot     *domain.Snapshot      `json:"snapshot,omitempty"`
}

// Debug is the full diagnostic view of the engine.
type Debug struct {
	Tabs            []TabInfo               `json:"tabs"`
	Groups          []organizer.GroupInfo   `json:"groups"`
	Representatives map[string]domain.TabID `json:"representatives"`
	Layout          []domain.TabID          `json:"layout"`
	Focus           domain.TabID            `json:"focus"`
	PendingFocus    domain.TabID            `json:"pending_focus,omitempty"`
}

// DebugSnapshot returns per-tab state, group membership and the
// representative of every collapsed group.
func (e *Engine) DebugSnapshot() Debug {
	d := Debug{
		Tabs:            make([]TabInfo, 0, len(e.tabs)),
		Groups:          e.organizer.Snapshot(),
		Representatives: make(map[string]domain.TabID),
		Layout:          e.organizer.Organize(),
		Focus:           e.organizer.Focus(),
		PendingFocus:    e.pendingFocus,
	}

	for _, g := range d.Groups {
		if g.Collapsed && g.Representative != domain.NoTab {
			d.Representatives[g.Path] = g.Representative
		}
	}

	visible := make(map[domain.TabID]struct{}, len(d.Layout))
	for _, id := range d.Layout {
		visible[id] = struct{}{}
	}
	now := e.now()

	for _, tab := range e.tabs {
		_, isVisible := visible[tab.ID]
		info := TabInfo{
			ID:           tab.ID,
			State:        tab.State,
			URL:          tab.URL,
			Pinned:       e.organizer.KeepActive(tab.ID),
			Priority:     e.priority(tab, isVisible, now),
			LastAccessed: tab.LastAccessed,
		}
		if g, ok := e.organizer.GroupOf(tab.ID); ok {
			info.Group = e.organizer.Path(g)
		}
		if h, ok := tab.Payload.Live(); ok {
			info.Handle = h
		}
		if snap, ok := tab.Payload.Snapshot(); ok {
			info.Snapshot = &snap
		}
		d.Tabs = append(d.Tabs, info)
	}
	slices.SortFunc(d.Tabs, func(a, b TabInfo) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return d
}
