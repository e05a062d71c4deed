package organizer

import (
	"slices"

	"github.com/MrSnakeDoc/tabkeeper/internal/domain"
)

// PathSeparator joins ancestor group names into a path.
const PathSeparator = "/"

// Group is a named, colored, optionally nested container of tabs.
type Group struct {
	ID     domain.GroupID
	Name   string
	Color  string
	Parent domain.GroupID

	// Members keeps insertion order; it is the order used by the layout.
	Members []domain.TabID

	KeepActive     bool
	Collapsed      bool
	Representative domain.TabID
}

func (g *Group) has(tab domain.TabID) bool {
	return slices.Contains(g.Members, tab)
}

func (g *Group) remove(tab domain.TabID) {
	if i := slices.Index(g.Members, tab); i >= 0 {
		g.Members = slices.Delete(g.Members, i, i+1)
	}
}

// GroupInfo is a copy of a group's state for diagnostics.
type GroupInfo struct {
	ID             domain.GroupID `json:"id"`
	Name           string         `json:"name"`
	Path           string         `json:"path"`
	Color          string         `json:"color"`
	Parent         domain.GroupID `json:"parent,omitempty"`
	Members        []domain.TabID `json:"members"`
	KeepActive     bool           `json:"keep_active"`
	Collapsed      bool           `json:"collapsed"`
	Representative domain.TabID   `json:"representative,omitempty"`
}
