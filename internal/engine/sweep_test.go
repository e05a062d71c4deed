package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/tabkeeper/internal/domain"
	"github.com/MrSnakeDoc/tabkeeper/internal/eviction"
)

func TestSweepHibernatesLongIdleTab(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ids := f.open(t, 2)

	f.clock.Advance(2 * time.Hour)
	require.NoError(t, f.engine.FocusTab(ctx, ids[0]))

	result := f.engine.Sweep(ctx)

	assert.Equal(t, ids[0], result.Focus)
	assert.Equal(t, domain.Active, f.state(t, ids[0]))
	assert.Equal(t, domain.Hibernated, f.state(t, ids[1]))
	require.Len(t, result.Applied, 1)
	assert.Equal(t, eviction.Hibernate, result.Applied[0].Action)
	require.NoError(t, f.engine.Check())
}

func TestSweepActionTiers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	focus := f.open(t, 1)[0]
	stale := f.open(t, 1)[0]
	f.clock.Advance(80 * time.Minute)
	idle := f.open(t, 1)[0]
	f.clock.Advance(30 * time.Minute)
	recent := f.open(t, 1)[0]
	f.clock.Advance(10 * time.Minute)
	require.NoError(t, f.engine.FocusTab(ctx, focus))

	result := f.engine.Sweep(ctx)

	assert.Equal(t, domain.Hibernated, f.state(t, stale))
	assert.Equal(t, domain.Snoozed, f.state(t, idle))
	assert.Equal(t, domain.Frozen, f.state(t, recent))
	assert.Equal(t, domain.Active, f.state(t, focus))

	var order []domain.TabID
	for _, c := range result.Applied {
		order = append(order, c.Tab)
	}
	assert.Equal(t, []domain.TabID{stale, idle, recent}, order, "most evictable first")

	page, _ := f.surface.Page(f.handle(t, idle))
	assert.Equal(t, domain.SuspendSnooze, page.Level)
}

func TestSweepScoresHiddenTabsLower(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ids := f.open(t, 4)
	_, err := f.engine.CreateGroup("G", "", "")
	require.NoError(t, err)
	for _, id := range ids[:3] {
		require.NoError(t, f.engine.MoveToGroup(id, "G"))
	}

	f.clock.Advance(10 * time.Minute)
	require.NoError(t, f.engine.FocusTab(ctx, ids[3]))
	f.engine.Sweep(ctx)

	assert.Equal(t, domain.Frozen, f.state(t, ids[0]), "the representative is visible")
	assert.Equal(t, domain.Snoozed, f.state(t, ids[1]))
	assert.Equal(t, domain.Snoozed, f.state(t, ids[2]))
}

func TestSweepRespectsPinning(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ids := f.open(t, 3)
	_, err := f.engine.CreateGroup("Work", "", "")
	require.NoError(t, err)
	_, err = f.engine.CreateGroup("Docs", "", "Work")
	require.NoError(t, err)
	require.NoError(t, f.engine.MoveToGroup(ids[1], "Work"))
	require.NoError(t, f.engine.MoveToGroup(ids[2], "Work/Docs"))
	require.NoError(t, f.engine.SetKeepActive("Work", true))

	f.clock.Advance(3 * time.Hour)
	require.NoError(t, f.engine.FocusTab(ctx, ids[0]))
	result := f.engine.Sweep(ctx)

	assert.Equal(t, 2, result.Pinned)
	assert.Empty(t, result.Applied)
	assert.Equal(t, domain.Active, f.state(t, ids[1]))
	assert.Equal(t, domain.Active, f.state(t, ids[2]))
}

func TestSweepEscalatesSuspendedTabsOnlyToHibernate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ids := f.open(t, 2)

	f.clock.Advance(10 * time.Minute)
	require.NoError(t, f.engine.FocusTab(ctx, ids[0]))
	f.engine.Sweep(ctx)
	require.Equal(t, domain.Frozen, f.state(t, ids[1]))

	f.clock.Advance(20 * time.Minute) // snooze territory
	f.engine.Sweep(ctx)
	assert.Equal(t, domain.Frozen, f.state(t, ids[1]), "frozen tabs are not re-suspended")

	f.clock.Advance(time.Hour)
	f.engine.Sweep(ctx)
	assert.Equal(t, domain.Hibernated, f.state(t, ids[1]))
}

func TestSweepSkipsWakingAndHibernated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ids := f.open(t, 3)
	require.NoError(t, f.engine.HibernateTab(ctx, ids[1]))
	require.NoError(t, f.engine.HibernateTab(ctx, ids[2]))
	require.NoError(t, f.engine.WakeTab(ctx, ids[2]))
	waking := f.handle(t, ids[2])

	f.clock.Advance(2 * time.Hour)
	require.NoError(t, f.engine.FocusTab(ctx, ids[0]))
	result := f.engine.Sweep(ctx)

	assert.Zero(t, result.Scored)
	assert.Equal(t, domain.Hibernated, f.state(t, ids[1]))
	assert.Equal(t, domain.Waking, f.state(t, ids[2]))
	assert.Equal(t, waking, f.handle(t, ids[2]))
}

func TestSweepSkipsCorruptedTabAndContinues(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ids := f.open(t, 3)
	f.engine.tabs[ids[1]].Payload = domain.SnapshotPayload(domain.Snapshot{URL: "broken"})

	f.clock.Advance(2 * time.Hour)
	require.NoError(t, f.engine.FocusTab(ctx, ids[0]))
	result := f.engine.Sweep(ctx)

	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, domain.Active, f.state(t, ids[1]))
	assert.Equal(t, domain.Hibernated, f.state(t, ids[2]))
}

func TestSweepAroundExplicitFocus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ids := f.open(t, 2)
	f.clock.Advance(2 * time.Hour)

	f.engine.SweepAround(ctx, ids[1])

	assert.Equal(t, domain.Hibernated, f.state(t, ids[0]))
	assert.Equal(t, domain.Active, f.state(t, ids[1]))
}
