package organizer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/tabkeeper/internal/domain"
	"github.com/MrSnakeDoc/tabkeeper/internal/logger"
)

func newOrganizer(t *testing.T, tabs ...domain.TabID) *Organizer {
	t.Helper()
	o := New(DefaultCollapseThreshold, logger.Nop())
	for _, tab := range tabs {
		require.NoError(t, o.AddTab(tab))
	}
	return o
}

func TestAutoCollapseAtThreshold(t *testing.T) {
	o := newOrganizer(t, 1, 2, 3, 4)
	_, err := o.CreateGroup("Research", "blue", "")
	require.NoError(t, err)

	require.NoError(t, o.AddToGroup(1, "Research"))
	require.NoError(t, o.AddToGroup(2, "Research"))
	assert.Equal(t, []domain.TabID{1, 2, 3, 4}, o.Organize(), "below threshold the group stays expanded")

	require.NoError(t, o.AddToGroup(3, "Research"))

	id, err := o.Lookup("Research")
	require.NoError(t, err)
	rep, ok := o.Representative(id)
	require.True(t, ok)
	assert.Equal(t, domain.TabID(1), rep)
	assert.Equal(t, []domain.TabID{1, 4}, o.Organize())
	require.NoError(t, o.Check())
}

func TestAutoCollapsePrefersFocusedMember(t *testing.T) {
	o := newOrganizer(t, 1, 2, 3)
	_, err := o.CreateGroup("Research", "", "")
	require.NoError(t, err)
	require.NoError(t, o.SetFocus(2))

	for _, tab := range []domain.TabID{1, 2, 3} {
		require.NoError(t, o.AddToGroup(tab, "Research"))
	}

	id, _ := o.Lookup("Research")
	rep, ok := o.Representative(id)
	require.True(t, ok)
	assert.Equal(t, domain.TabID(2), rep)
}

func TestCloseRepresentativeRepairs(t *testing.T) {
	o := newOrganizer(t, 1, 2, 3, 4)
	_, err := o.CreateGroup("G", "", "")
	require.NoError(t, err)
	for _, tab := range []domain.TabID{4, 2, 1, 3} {
		require.NoError(t, o.AddToGroup(tab, "G"))
	}
	id, _ := o.Lookup("G")
	rep, _ := o.Representative(id)
	require.Equal(t, domain.TabID(1), rep)

	require.NoError(t, o.RemoveTab(1))

	info, ok := o.Group(id)
	require.True(t, ok)
	assert.True(t, info.Collapsed)
	assert.Equal(t, domain.TabID(2), info.Representative, "lowest remaining id wins when none is focused")
	assert.Equal(t, []domain.TabID{4, 2, 3}, info.Members)
	require.NoError(t, o.Check())
}

func TestRemovingLastMemberDeletesGroup(t *testing.T) {
	o := newOrganizer(t, 1, 2)
	_, err := o.CreateGroup("Solo", "", "")
	require.NoError(t, err)
	require.NoError(t, o.AddToGroup(1, "Solo"))

	require.NoError(t, o.RemoveFromGroup(1))

	_, err = o.Lookup("Solo")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	_, grouped := o.GroupOf(1)
	assert.False(t, grouped)
	assert.Equal(t, []domain.TabID{1, 2}, o.Organize())
}

func TestClosingAllMembersDeletesCollapsedGroup(t *testing.T) {
	o := newOrganizer(t, 1, 2, 3)
	_, err := o.CreateGroup("G", "", "")
	require.NoError(t, err)
	for _, tab := range []domain.TabID{1, 2, 3} {
		require.NoError(t, o.AddToGroup(tab, "G"))
	}
	for _, tab := range []domain.TabID{1, 2, 3} {
		require.NoError(t, o.RemoveTab(tab))
		require.NoError(t, o.Check())
	}
	assert.Empty(t, o.Snapshot())
	assert.Empty(t, o.Organize())
}

func TestAddToGroupMovesWithoutDualMembership(t *testing.T) {
	o := newOrganizer(t, 1, 2)
	_, err := o.CreateGroup("A", "", "")
	require.NoError(t, err)
	_, err = o.CreateGroup("B", "", "")
	require.NoError(t, err)

	require.NoError(t, o.AddToGroup(1, "A"))
	require.NoError(t, o.AddToGroup(2, "A"))
	require.NoError(t, o.AddToGroup(1, "B"))

	a, _ := o.Lookup("A")
	b, _ := o.Lookup("B")
	infoA, _ := o.Group(a)
	infoB, _ := o.Group(b)
	assert.Equal(t, []domain.TabID{2}, infoA.Members)
	assert.Equal(t, []domain.TabID{1}, infoB.Members)
	g, _ := o.GroupOf(1)
	assert.Equal(t, b, g)
	require.NoError(t, o.Check())
}

func TestDuplicateSiblingName(t *testing.T) {
	o := newOrganizer(t)
	_, err := o.CreateGroup("Work", "", "")
	require.NoError(t, err)

	_, err = o.CreateGroup("Work", "red", "")
	assert.True(t, errors.Is(err, domain.ErrDuplicateName))

	// Same name under a different parent is fine.
	_, err = o.CreateGroup("Work", "", "Work")
	require.NoError(t, err)
	id, err := o.Lookup("Work/Work")
	require.NoError(t, err)
	assert.Equal(t, "Work/Work", o.Path(id))
}

func TestNotFoundDoesNotMutate(t *testing.T) {
	o := newOrganizer(t, 1)
	_, err := o.CreateGroup("A", "", "")
	require.NoError(t, err)
	require.NoError(t, o.AddToGroup(1, "A"))
	before := o.Snapshot()

	assert.True(t, errors.Is(o.AddToGroup(1, "Missing"), domain.ErrNotFound))
	assert.True(t, errors.Is(o.AddToGroup(99, "A"), domain.ErrNotFound))
	assert.True(t, errors.Is(o.DeleteGroup("Missing"), domain.ErrNotFound))
	assert.True(t, errors.Is(o.RemoveTab(99), domain.ErrNotFound))
	_, err = o.ToggleGroup("Missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	_, err = o.CreateGroup("Child", "", "Missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	assert.Equal(t, before, o.Snapshot())
}

func TestToggleKeepsSingleExpansion(t *testing.T) {
	o := newOrganizer(t, 1, 2, 3, 4)
	_, err := o.CreateGroup("G1", "", "")
	require.NoError(t, err)
	_, err = o.CreateGroup("G2", "", "")
	require.NoError(t, err)

	g1, _ := o.Lookup("G1")
	g2, _ := o.Lookup("G2")
	info2, _ := o.Group(g2)
	assert.True(t, info2.Collapsed, "second top-level group starts collapsed")

	require.NoError(t, o.AddToGroup(1, "G1"))
	require.NoError(t, o.AddToGroup(2, "G1"))
	require.NoError(t, o.AddToGroup(3, "G2"))
	require.NoError(t, o.AddToGroup(4, "G2"))

	// Collapse G1 and expand G2.
	_, err = o.ToggleGroup("G1")
	require.NoError(t, err)
	_, err = o.ToggleGroup("G2")
	require.NoError(t, err)
	require.NoError(t, o.SetFocus(3))

	// Expanding G1 collapses G2 and moves focus to G1's first member.
	target, err := o.ToggleGroup("G1")
	require.NoError(t, err)
	assert.Equal(t, domain.TabID(1), target)

	info1, _ := o.Group(g1)
	info2, _ = o.Group(g2)
	assert.False(t, info1.Collapsed)
	assert.True(t, info2.Collapsed)
	assert.Equal(t, domain.TabID(3), info2.Representative, "focused member becomes representative")
	require.NoError(t, o.Check())

	assert.Equal(t, []domain.TabID{1, 2, 3}, o.Organize())
}

func TestToggleKeepsFocusInsideGroup(t *testing.T) {
	o := newOrganizer(t, 1, 2, 3)
	_, err := o.CreateGroup("G", "", "")
	require.NoError(t, err)
	for _, tab := range []domain.TabID{1, 2, 3} {
		require.NoError(t, o.AddToGroup(tab, "G"))
	}
	require.NoError(t, o.SetFocus(2))

	target, err := o.ToggleGroup("G")
	require.NoError(t, err)
	assert.Equal(t, domain.NoTab, target)
}

func TestOrganizeIsIdempotent(t *testing.T) {
	o := newOrganizer(t, 1, 2, 3, 4, 5, 6)
	_, err := o.CreateGroup("A", "", "")
	require.NoError(t, err)
	_, err = o.CreateGroup("B", "", "")
	require.NoError(t, err)
	require.NoError(t, o.AddToGroup(5, "A"))
	require.NoError(t, o.AddToGroup(2, "A"))
	require.NoError(t, o.AddToGroup(6, "B"))
	require.NoError(t, o.AddToGroup(3, "B"))

	first := o.Organize()
	second := o.Organize()
	assert.Equal(t, first, second)
	assert.Equal(t, []domain.TabID{5, 2, 6, 1, 4}, first)
}

func TestDeleteGroupCascades(t *testing.T) {
	o := newOrganizer(t, 1, 2, 3)
	_, err := o.CreateGroup("Work", "", "")
	require.NoError(t, err)
	_, err = o.CreateGroup("Docs", "", "Work")
	require.NoError(t, err)
	require.NoError(t, o.AddToGroup(1, "Work"))
	require.NoError(t, o.AddToGroup(2, "Work/Docs"))

	require.NoError(t, o.DeleteGroup("Work"))

	assert.Empty(t, o.Snapshot())
	for _, tab := range []domain.TabID{1, 2} {
		_, grouped := o.GroupOf(tab)
		assert.False(t, grouped)
	}
	assert.Equal(t, []domain.TabID{1, 2, 3}, o.Organize())
}

func TestEmptiedChildKeepsParentWithChildren(t *testing.T) {
	o := newOrganizer(t, 1, 2)
	_, err := o.CreateGroup("Work", "", "")
	require.NoError(t, err)
	_, err = o.CreateGroup("Docs", "", "Work")
	require.NoError(t, err)
	require.NoError(t, o.AddToGroup(1, "Work"))
	require.NoError(t, o.AddToGroup(2, "Work/Docs"))

	require.NoError(t, o.RemoveFromGroup(1))

	_, err = o.Lookup("Work")
	assert.NoError(t, err, "a group that still has child groups is not deleted")
}

func TestKeepActiveInheritsFromAncestors(t *testing.T) {
	o := newOrganizer(t, 1, 2)
	_, err := o.CreateGroup("Pinned", "", "")
	require.NoError(t, err)
	_, err = o.CreateGroup("Inner", "", "Pinned")
	require.NoError(t, err)
	require.NoError(t, o.AddToGroup(1, "Pinned/Inner"))

	assert.False(t, o.KeepActive(1))
	require.NoError(t, o.SetKeepActive("Pinned", true))
	assert.True(t, o.KeepActive(1))
	assert.False(t, o.KeepActive(2))
}

func TestOrganizeRepairsStaleRepresentative(t *testing.T) {
	o := newOrganizer(t, 1, 2, 3)
	_, err := o.CreateGroup("G", "", "")
	require.NoError(t, err)
	for _, tab := range []domain.TabID{1, 2, 3} {
		require.NoError(t, o.AddToGroup(tab, "G"))
	}
	id, _ := o.Lookup("G")
	o.groups[id].Representative = 42

	assert.True(t, errors.Is(o.CheckTab(1), domain.ErrInvariantViolation))
	assert.Equal(t, []domain.TabID{1}, o.Organize())
	assert.NoError(t, o.Check())
}

func TestFocusPromotesRepresentative(t *testing.T) {
	o := newOrganizer(t, 1, 2, 3, 4)
	_, err := o.CreateGroup("G", "", "")
	require.NoError(t, err)
	for _, tab := range []domain.TabID{1, 2, 3} {
		require.NoError(t, o.AddToGroup(tab, "G"))
	}
	assert.Equal(t, []domain.TabID{1, 4}, o.Organize())

	require.NoError(t, o.SetFocus(3))
	assert.Equal(t, []domain.TabID{3, 4}, o.Organize())
	require.NoError(t, o.Check())
}

func TestMovingFocusedTabIntoCollapsedGroupKeepsItVisible(t *testing.T) {
	o := newOrganizer(t, 1, 2, 3, 4)
	_, err := o.CreateGroup("G", "", "")
	require.NoError(t, err)
	for _, tab := range []domain.TabID{1, 2, 3} {
		require.NoError(t, o.AddToGroup(tab, "G"))
	}
	require.NoError(t, o.SetFocus(4))

	require.NoError(t, o.AddToGroup(4, "G"))

	id, _ := o.Lookup("G")
	rep, ok := o.Representative(id)
	require.True(t, ok)
	assert.Equal(t, domain.TabID(4), rep)
	assert.Equal(t, []domain.TabID{4}, o.Organize())
	require.NoError(t, o.Check())
}
