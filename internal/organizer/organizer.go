package organizer

import (
	"fmt"
	"slices"
	"strings"

	"github.com/MrSnakeDoc/tabkeeper/internal/domain"
	"github.com/MrSnakeDoc/tabkeeper/internal/logger"
)

// DefaultCollapseThreshold is the member count at which a group is forced collapsed.
const DefaultCollapseThreshold = 3

// Organizer owns group membership, collapse state and representatives.
// It is not safe for concurrent use; the engine loop is its only caller.
type Organizer struct {
	threshold int
	logger    logger.Logger

	nextGroup domain.GroupID
	groups    map[domain.GroupID]*Group
	order     []domain.GroupID // creation order

	tabs     []domain.TabID // creation order, for ungrouped layout
	tabGroup map[domain.TabID]domain.GroupID
	known    map[domain.TabID]struct{}

	focus domain.TabID
}

// New creates an organizer. A threshold below 1 falls back to the default.
func New(threshold int, log logger.Logger) *Organizer {
	if threshold < 1 {
		threshold = DefaultCollapseThreshold
	}
	return &Organizer{
		threshold: threshold,
		logger:    log,
		groups:    make(map[domain.GroupID]*Group),
		tabGroup:  make(map[domain.TabID]domain.GroupID),
		known:     make(map[domain.TabID]struct{}),
	}
}

// ─────────────────────────────────────────────────────────────────
// Tabs
// ─────────────────────────────────────────────────────────────────

// AddTab starts tracking an ungrouped tab.
func (o *Organizer) AddTab(tab domain.TabID) error {
	if tab == domain.NoTab {
		return fmt.Errorf("%w: zero tab id", domain.ErrInvalidArgument)
	}
	if _, ok := o.known[tab]; ok {
		return fmt.Errorf("%w: tab %d already tracked", domain.ErrInvalidArgument, tab)
	}
	o.known[tab] = struct{}{}
	o.tabs = append(o.tabs, tab)
	return nil
}

// HasTab reports whether the tab is tracked.
func (o *Organizer) HasTab(tab domain.TabID) bool {
	_, ok := o.known[tab]
	return ok
}

// RemoveTab forgets a closed tab, repairing its group's representative
// and deleting the group if it becomes empty.
func (o *Organizer) RemoveTab(tab domain.TabID) error {
	if !o.HasTab(tab) {
		return fmt.Errorf("%w: tab %d", domain.ErrNotFound, tab)
	}
	if o.focus == tab {
		o.focus = domain.NoTab
	}
	if _, grouped := o.tabGroup[tab]; grouped {
		o.detach(tab)
	}
	delete(o.known, tab)
	if i := slices.Index(o.tabs, tab); i >= 0 {
		o.tabs = slices.Delete(o.tabs, i, i+1)
	}
	return nil
}

// GroupOf returns the group a tab belongs to.
func (o *Organizer) GroupOf(tab domain.TabID) (domain.GroupID, bool) {
	g, ok := o.tabGroup[tab]
	return g, ok
}

// SetFocus records the input focus. NoTab clears it. A focused member of a
// collapsed group becomes its representative so it stays in the layout.
func (o *Organizer) SetFocus(tab domain.TabID) error {
	if tab != domain.NoTab && !o.HasTab(tab) {
		return fmt.Errorf("%w: tab %d", domain.ErrNotFound, tab)
	}
	o.focus = tab
	if id, ok := o.tabGroup[tab]; ok {
		if g := o.groups[id]; g.Collapsed {
			g.Representative = tab
		}
	}
	return nil
}

// Focus returns the focused tab or NoTab.
func (o *Organizer) Focus() domain.TabID {
	return o.focus
}

// ─────────────────────────────────────────────────────────────────
// Groups
// ─────────────────────────────────────────────────────────────────

// CreateGroup creates a group under parentPath ("" for top level).
func (o *Organizer) CreateGroup(name, color, parentPath string) (domain.GroupID, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.Contains(name, PathSeparator) {
		return domain.NoGroup, fmt.Errorf("%w: group name %q", domain.ErrInvalidArgument, name)
	}

	parent := domain.NoGroup
	if parentPath != "" {
		id, err := o.Lookup(parentPath)
		if err != nil {
			return domain.NoGroup, err
		}
		parent = id
	}
	if o.child(parent, name) != domain.NoGroup {
		return domain.NoGroup, fmt.Errorf("%w: %q", domain.ErrDuplicateName, o.joinPath(parent, name))
	}

	o.nextGroup++
	g := &Group{
		ID:     o.nextGroup,
		Name:   name,
		Color:  color,
		Parent: parent,
	}
	// Only one top-level group may be expanded at a time.
	if parent == domain.NoGroup && o.expandedTopLevel() != domain.NoGroup {
		g.Collapsed = true
	}
	o.groups[g.ID] = g
	o.order = append(o.order, g.ID)

	o.logger.Debug("group created",
		logger.String("path", o.Path(g.ID)),
		logger.Bool("collapsed", g.Collapsed))
	return g.ID, nil
}

// DeleteGroup removes a group and its descendants, detaching every member.
func (o *Organizer) DeleteGroup(path string) error {
	id, err := o.Lookup(path)
	if err != nil {
		return err
	}
	o.deleteGroup(id)
	return nil
}

// Lookup resolves a slash-joined path to a group id.
func (o *Organizer) Lookup(path string) (domain.GroupID, error) {
	path = strings.Trim(strings.TrimSpace(path), PathSeparator)
	if path == "" {
		return domain.NoGroup, fmt.Errorf("%w: empty group path", domain.ErrNotFound)
	}
	current := domain.NoGroup
	for _, name := range strings.Split(path, PathSeparator) {
		current = o.child(current, strings.TrimSpace(name))
		if current == domain.NoGroup {
			return domain.NoGroup, fmt.Errorf("%w: group %q", domain.ErrNotFound, path)
		}
	}
	return current, nil
}

// Path returns the slash-joined ancestor names of a group.
func (o *Organizer) Path(id domain.GroupID) string {
	var names []string
	for g, ok := o.groups[id]; ok; g, ok = o.groups[g.Parent] {
		names = append(names, g.Name)
	}
	slices.Reverse(names)
	return strings.Join(names, PathSeparator)
}

// Group returns a copy of a group's state.
func (o *Organizer) Group(id domain.GroupID) (GroupInfo, bool) {
	g, ok := o.groups[id]
	if !ok {
		return GroupInfo{}, false
	}
	return o.info(g), true
}

// AddToGroup moves a tab into the group at path, leaving any prior group first.
func (o *Organizer) AddToGroup(tab domain.TabID, path string) error {
	if !o.HasTab(tab) {
		return fmt.Errorf("%w: tab %d", domain.ErrNotFound, tab)
	}
	id, err := o.Lookup(path)
	if err != nil {
		return err
	}
	if current, ok := o.tabGroup[tab]; ok {
		if current == id {
			return nil
		}
		// The target is never deleted here: only a group without members
		// and without children is removed, and the target is not the old group.
		o.detach(tab)
	}

	g, ok := o.groups[id]
	if !ok {
		return fmt.Errorf("%w: group %q vanished during move", domain.ErrInvariantViolation, path)
	}
	g.Members = append(g.Members, tab)
	o.tabGroup[tab] = id

	switch {
	case g.Collapsed:
		if tab == o.focus {
			g.Representative = tab
		} else {
			o.ensureRepresentative(g)
		}
	case len(g.Members) >= o.threshold:
		o.collapse(g)
		o.logger.Info("group auto-collapsed",
			logger.String("path", o.Path(id)),
			logger.Int("members", len(g.Members)),
			logger.Uint64("representative", uint64(g.Representative)))
	}
	return nil
}

// RemoveFromGroup detaches a tab from its group. Removing an ungrouped tab is a no-op.
func (o *Organizer) RemoveFromGroup(tab domain.TabID) error {
	if !o.HasTab(tab) {
		return fmt.Errorf("%w: tab %d", domain.ErrNotFound, tab)
	}
	if _, ok := o.tabGroup[tab]; !ok {
		return nil
	}
	o.detach(tab)
	return nil
}

// ToggleGroup collapses an expanded group or expands a collapsed one.
// Expanding collapses every other top-level group first. The returned tab is
// the group's first member when focus should move into the group, else NoTab.
func (o *Organizer) ToggleGroup(path string) (domain.TabID, error) {
	id, err := o.Lookup(path)
	if err != nil {
		return domain.NoTab, err
	}
	g := o.groups[id]

	if !g.Collapsed {
		o.collapse(g)
		return domain.NoTab, nil
	}

	root := o.root(id)
	for _, other := range o.order {
		og := o.groups[other]
		if og.Parent != domain.NoGroup || other == root || og.Collapsed {
			continue
		}
		o.collapse(og)
	}
	g.Collapsed = false
	g.Representative = domain.NoTab

	if len(g.Members) == 0 || g.has(o.focus) {
		return domain.NoTab, nil
	}
	return g.Members[0], nil
}

// SetKeepActive sets the eviction exemption flag on a group.
func (o *Organizer) SetKeepActive(path string, keep bool) error {
	id, err := o.Lookup(path)
	if err != nil {
		return err
	}
	o.groups[id].KeepActive = keep
	return nil
}

// KeepActive reports whether a tab is exempt from eviction through its group
// or any of the group's ancestors.
func (o *Organizer) KeepActive(tab domain.TabID) bool {
	id, ok := o.tabGroup[tab]
	if !ok {
		return false
	}
	for g, ok := o.groups[id]; ok; g, ok = o.groups[g.Parent] {
		if g.KeepActive {
			return true
		}
	}
	return false
}

// Representative returns the representative of a collapsed group.
func (o *Organizer) Representative(id domain.GroupID) (domain.TabID, bool) {
	g, ok := o.groups[id]
	if !ok || !g.Collapsed || g.Representative == domain.NoTab {
		return domain.NoTab, false
	}
	return g.Representative, true
}

// ─────────────────────────────────────────────────────────────────
// Layout
// ─────────────────────────────────────────────────────────────────

// Organize returns the visible tab order: groups in creation order (only the
// representative for collapsed groups), then ungrouped tabs in creation order.
func (o *Organizer) Organize() []domain.TabID {
	layout := make([]domain.TabID, 0, len(o.tabs))
	for _, id := range o.order {
		g := o.groups[id]
		if !g.Collapsed {
			layout = append(layout, g.Members...)
			continue
		}
		if len(g.Members) == 0 {
			continue
		}
		if !g.has(g.Representative) {
			o.logger.Warn("repairing stale representative",
				logger.String("path", o.Path(id)),
				logger.Uint64("representative", uint64(g.Representative)))
			g.Representative = o.chooseRepresentative(g)
		}
		layout = append(layout, g.Representative)
	}
	for _, tab := range o.tabs {
		if _, grouped := o.tabGroup[tab]; !grouped {
			layout = append(layout, tab)
		}
	}
	return layout
}

// Snapshot returns every group in creation order.
func (o *Organizer) Snapshot() []GroupInfo {
	out := make([]GroupInfo, 0, len(o.order))
	for _, id := range o.order {
		out = append(out, o.info(o.groups[id]))
	}
	return out
}

// ─────────────────────────────────────────────────────────────────
// Invariants
// ─────────────────────────────────────────────────────────────────

// CheckTab verifies the membership invariants that involve one tab.
func (o *Organizer) CheckTab(tab domain.TabID) error {
	id, grouped := o.tabGroup[tab]
	if !grouped {
		return nil
	}
	g, ok := o.groups[id]
	if !ok {
		return fmt.Errorf("%w: tab %d points to missing group %d", domain.ErrInvariantViolation, tab, id)
	}
	if !g.has(tab) {
		return fmt.Errorf("%w: tab %d not in members of %q", domain.ErrInvariantViolation, tab, o.Path(id))
	}
	return o.checkRepresentative(g)
}

// Check verifies every organizer invariant.
func (o *Organizer) Check() error {
	expanded := 0
	for _, id := range o.order {
		g := o.groups[id]
		if g.Parent == domain.NoGroup && !g.Collapsed {
			expanded++
		}
		seen := make(map[domain.TabID]struct{}, len(g.Members))
		for _, tab := range g.Members {
			if _, dup := seen[tab]; dup {
				return fmt.Errorf("%w: tab %d listed twice in %q", domain.ErrInvariantViolation, tab, o.Path(id))
			}
			seen[tab] = struct{}{}
			if o.tabGroup[tab] != id {
				return fmt.Errorf("%w: tab %d member of %q but indexed to %d",
					domain.ErrInvariantViolation, tab, o.Path(id), o.tabGroup[tab])
			}
		}
		if err := o.checkRepresentative(g); err != nil {
			return err
		}
	}
	if expanded > 1 {
		return fmt.Errorf("%w: %d top-level groups expanded", domain.ErrInvariantViolation, expanded)
	}
	for tab := range o.tabGroup {
		if err := o.CheckTab(tab); err != nil {
			return err
		}
	}
	return nil
}

func (o *Organizer) checkRepresentative(g *Group) error {
	if g.Collapsed && len(g.Members) > 0 && !g.has(g.Representative) {
		return fmt.Errorf("%w: representative %d of %q is not a member",
			domain.ErrInvariantViolation, g.Representative, o.Path(g.ID))
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────
// internals
// ─────────────────────────────────────────────────────────────────

func (o *Organizer) child(parent domain.GroupID, name string) domain.GroupID {
	for _, id := range o.order {
		g := o.groups[id]
		if g.Parent == parent && g.Name == name {
			return id
		}
	}
	return domain.NoGroup
}

func (o *Organizer) children(parent domain.GroupID) []domain.GroupID {
	var out []domain.GroupID
	for _, id := range o.order {
		if o.groups[id].Parent == parent {
			out = append(out, id)
		}
	}
	return out
}

func (o *Organizer) joinPath(parent domain.GroupID, name string) string {
	if parent == domain.NoGroup {
		return name
	}
	return o.Path(parent) + PathSeparator + name
}

func (o *Organizer) root(id domain.GroupID) domain.GroupID {
	for {
		g := o.groups[id]
		if g.Parent == domain.NoGroup {
			return id
		}
		id = g.Parent
	}
}

func (o *Organizer) expandedTopLevel() domain.GroupID {
	for _, id := range o.order {
		g := o.groups[id]
		if g.Parent == domain.NoGroup && !g.Collapsed {
			return id
		}
	}
	return domain.NoGroup
}

func (o *Organizer) collapse(g *Group) {
	g.Collapsed = true
	g.Representative = o.chooseRepresentative(g)
}

func (o *Organizer) ensureRepresentative(g *Group) {
	if !g.has(g.Representative) {
		g.Representative = o.chooseRepresentative(g)
	}
}

// chooseRepresentative prefers the focused tab, else the lowest id member.
func (o *Organizer) chooseRepresentative(g *Group) domain.TabID {
	if len(g.Members) == 0 {
		return domain.NoTab
	}
	if g.has(o.focus) {
		return o.focus
	}
	return slices.Min(g.Members)
}

// detach removes a grouped tab from its group and keeps both sides in sync.
func (o *Organizer) detach(tab domain.TabID) {
	id := o.tabGroup[tab]
	delete(o.tabGroup, tab)
	g, ok := o.groups[id]
	if !ok {
		return
	}
	g.remove(tab)

	if len(g.Members) == 0 && len(o.children(id)) == 0 {
		o.logger.Info("deleting emptied group", logger.String("path", o.Path(id)))
		o.deleteGroup(id)
		return
	}
	if g.Representative == tab {
		g.Representative = domain.NoTab
		if g.Collapsed {
			g.Representative = o.chooseRepresentative(g)
		}
	}
}

// deleteGroup removes a group, its descendants and every membership entry.
func (o *Organizer) deleteGroup(id domain.GroupID) {
	for _, child := range o.children(id) {
		o.deleteGroup(child)
	}
	g, ok := o.groups[id]
	if !ok {
		return
	}
	for _, tab := range g.Members {
		delete(o.tabGroup, tab)
	}
	delete(o.groups, id)
	if i := slices.Index(o.order, id); i >= 0 {
		o.order = slices.Delete(o.order, i, i+1)
	}
}

func (o *Organizer) info(g *Group) GroupInfo {
	rep := domain.NoTab
	if g.Collapsed {
		rep = g.Representative
	}
	return GroupInfo{
		ID:             g.ID,
		Name:           g.Name,
		Path:           o.Path(g.ID),
		Color:          g.Color,
		Parent:         g.Parent,
		Members:        slices.Clone(g.Members),
		KeepActive:     g.KeepActive,
		Collapsed:      g.Collapsed,
		Representative: rep,
	}
}
