package handlers

import (
	"context"
	"net/http"

	"github.com/MrSnakeDoc/tabkeeper/internal/domain"
	"github.com/MrSnakeDoc/tabkeeper/internal/engine"
	"github.com/MrSnakeDoc/tabkeeper/internal/httpserver/deps"
	"github.com/MrSnakeDoc/tabkeeper/internal/logger"
)

type openTabRequest struct {
	URL   string `json:"url"`
	Group string `json:"group"`
}

type tabResponse struct {
	ID    domain.TabID    `json:"id"`
	State domain.TabState `json:"state"`
	Focus domain.TabID    `json:"focus"`
}

type moveTabRequest struct {
	Group string `json:"group"`
}

// OpenTab creates a tab, optionally inside a group.
func OpenTab(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req openTabRequest
		if err := decode(w, r, &req); err != nil {
			writeError(w, err)
			return
		}

		var resp tabResponse
		err := d.Loop.Do(r.Context(), func(ctx context.Context, e *engine.Engine) error {
			id, err := e.OpenTab(ctx, req.URL, req.Group)
			if err != nil {
				return err
			}
			resp = describe(e, id)
			return nil
		})
		if err != nil {
			d.Logger.Debug("open tab failed", logger.String("url", req.URL), logger.Error(err))
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

// CloseTab destroys a tab in any state.
func CloseTab(d deps.Deps) http.HandlerFunc {
	return tabAction(d, func(ctx context.Context, e *engine.Engine, id domain.TabID) error {
		return e.CloseTab(ctx, id)
	}, http.StatusNoContent)
}

// FocusTab focuses a tab. A hibernated tab starts waking and is focused
// once its load completes.
func FocusTab(d deps.Deps) http.HandlerFunc {
	return tabAction(d, func(ctx context.Context, e *engine.Engine, id domain.TabID) error {
		return e.FocusTab(ctx, id)
	}, http.StatusOK)
}

// HibernateTab hibernates a tab on request, bypassing the eviction policy.
func HibernateTab(d deps.Deps) http.HandlerFunc {
	return tabAction(d, func(ctx context.Context, e *engine.Engine, id domain.TabID) error {
		return e.HibernateTab(ctx, id)
	}, http.StatusOK)
}

// MoveTab moves a tab into the group at the given path.
func MoveTab(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req moveTabRequest
		if err := decode(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
		tabAction(d, func(_ context.Context, e *engine.Engine, id domain.TabID) error {
			return e.MoveToGroup(id, req.Group)
		}, http.StatusOK)(w, r)
	}
}

// UngroupTab removes a tab from its group.
func UngroupTab(d deps.Deps) http.HandlerFunc {
	return tabAction(d, func(_ context.Context, e *engine.Engine, id domain.TabID) error {
		return e.RemoveFromGroup(id)
	}, http.StatusOK)
}

// tabAction runs fn for the {id} path parameter on the engine loop and
// answers with the tab's resulting state, or no body for 204.
func tabAction(d deps.Deps, fn func(ctx context.Context, e *engine.Engine, id domain.TabID) error, status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := tabID(r)
		if err != nil {
			writeError(w, err)
			return
		}

		var resp tabResponse
		err = d.Loop.Do(r.Context(), func(ctx context.Context, e *engine.Engine) error {
			if err := fn(ctx, e, id); err != nil {
				return err
			}
			resp = describe(e, id)
			return nil
		})
		if err != nil {
			writeError(w, err)
			return
		}
		if status == http.StatusNoContent {
			w.WriteHeader(status)
			return
		}
		writeJSON(w, status, resp)
	}
}

func describe(e *engine.Engine, id domain.TabID) tabResponse {
	resp := tabResponse{ID: id, Focus: e.Focus()}
	if tab, ok := e.Tab(id); ok {
		resp.State = tab.State
	}
	return resp
}
