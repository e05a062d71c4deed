package workspace

import (
	"context"
	"errors"
	"testing"

	"github.com/MrSnakeDoc/tabkeeper/internal/domain"
	"github.com/MrSnakeDoc/tabkeeper/internal/engine"
	"github.com/MrSnakeDoc/tabkeeper/internal/hibernation"
	"github.com/MrSnakeDoc/tabkeeper/internal/logger"
	"github.com/MrSnakeDoc/tabkeeper/internal/renderer"
)

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()
	surface := renderer.NewMemory(false)
	t.Cleanup(func() { _ = surface.Close() })
	store := hibernation.NewStore(hibernation.NewMemoryBackend(), surface, logger.Nop())
	return engine.New(surface, store, nil, logger.Nop(), engine.Options{})
}

func TestApplySeedsEngine(t *testing.T) {
	e := newEngine(t)
	config := &Config{
		Groups: []GroupEntry{
			{Name: "Research", KeepActive: true, Groups: []GroupEntry{{Name: "Papers"}}},
			{Name: "Chat"},
		},
		Tabs: []TabEntry{
			{URL: "https://example.com/a", Group: "Research/Papers"},
			{URL: "https://example.com/b"},
		},
		Focus: 2,
	}

	res, err := NewApplier(logger.Nop()).Apply(context.Background(), e, config)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if res.Groups != 3 || res.Tabs != 2 {
		t.Errorf("Apply() = %+v, want 3 groups and 2 tabs", res)
	}
	if e.Len() != 2 {
		t.Errorf("engine has %d tabs, want 2", e.Len())
	}

	debug := e.DebugSnapshot()
	var papers *engine.TabInfo
	for i := range debug.Tabs {
		if debug.Tabs[i].Group == "Research/Papers" {
			papers = &debug.Tabs[i]
		}
	}
	if papers == nil {
		t.Fatalf("no tab in Research/Papers: %+v", debug.Tabs)
	}
	if !papers.Pinned {
		t.Error("tab under a keep_active group should be pinned")
	}
	if e.Focus() == 0 {
		t.Error("focus should be set")
	}
}

type failingTarget struct {
	openErr error
}

func (f *failingTarget) CreateGroup(name, color, parent string) (domain.GroupID, error) {
	return 1, nil
}
func (f *failingTarget) SetKeepActive(path string, keep bool) error { return nil }
func (f *failingTarget) OpenTab(ctx context.Context, url, group string) (domain.TabID, error) {
	return 0, f.openErr
}
func (f *failingTarget) FocusTab(ctx context.Context, id domain.TabID) error { return nil }

func TestApplyStopsOnOpenFailure(t *testing.T) {
	boom := errors.New("surface down")
	target := &failingTarget{openErr: boom}
	config := &Config{
		Groups: []GroupEntry{{Name: "Work"}},
		Tabs:   []TabEntry{{URL: "https://a"}, {URL: "https://b"}},
	}

	res, err := NewApplier(logger.Nop()).Apply(context.Background(), target, config)
	if !errors.Is(err, boom) {
		t.Fatalf("Apply() error = %v, want %v", err, boom)
	}
	if res.Groups != 1 || res.Tabs != 0 {
		t.Errorf("Apply() = %+v", res)
	}
}

func TestApplyUnknownGroup(t *testing.T) {
	e := newEngine(t)
	config := &Config{Tabs: []TabEntry{{URL: "https://a", Group: "Missing"}}}

	_, err := NewApplier(logger.Nop()).Apply(context.Background(), e, config)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Apply() error = %v, want ErrNotFound", err)
	}
}
