package workspace

import (
	"context"
	"fmt"

	"github.com/MrSnakeDoc/tabkeeper/internal/domain"
	"github.com/MrSnakeDoc/tabkeeper/internal/logger"
)

// Target is the part of the engine a workspace is applied to
type Target interface {
	CreateGroup(name, color, parent string) (domain.GroupID, error)
	SetKeepActive(path string, keep bool) error
	OpenTab(ctx context.Context, url, group string) (domain.TabID, error)
	FocusTab(ctx context.Context, id domain.TabID) error
}

// Result counts what Apply created
type Result struct {
	Groups int
	Tabs   int
}

// Applier seeds an engine from a workspace config
type Applier struct {
	logger logger.Logger
}

// NewApplier creates a new applier
func NewApplier(log logger.Logger) *Applier {
	return &Applier{logger: log}
}

// Apply creates groups depth-first, then opens tabs in file order
func (a *Applier) Apply(ctx context.Context, target Target, config *Config) (Result, error) {
	var res Result

	if err := a.createGroups(target, config.Groups, "", &res); err != nil {
		return res, err
	}

	ids := make([]domain.TabID, 0, len(config.Tabs))
	for _, tab := range config.Tabs {
		id, err := target.OpenTab(ctx, tab.URL, tab.Group)
		if err != nil {
			return res, fmt.Errorf("failed to open %s: %w", tab.URL, err)
		}
		ids = append(ids, id)
		res.Tabs++
	}

	if config.Focus > 0 {
		if err := target.FocusTab(ctx, ids[config.Focus-1]); err != nil {
			return res, fmt.Errorf("failed to focus tab %d: %w", config.Focus, err)
		}
	}

	a.logger.Info("workspace applied",
		logger.Int("groups", res.Groups),
		logger.Int("tabs", res.Tabs))
	return res, nil
}

func (a *Applier) createGroups(target Target, groups []GroupEntry, parent string, res *Result) error {
	for _, g := range groups {
		if _, err := target.CreateGroup(g.Name, g.Color, parent); err != nil {
			return fmt.Errorf("failed to create group %q: %w", join(parent, g.Name), err)
		}
		res.Groups++
		path := join(parent, g.Name)
		if g.KeepActive {
			if err := target.SetKeepActive(path, true); err != nil {
				return err
			}
		}
		if err := a.createGroups(target, g.Groups, path, res); err != nil {
			return err
		}
	}
	return nil
}
