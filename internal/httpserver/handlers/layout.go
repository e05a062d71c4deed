package handlers

import (
	"context"
	"net/http"

	"github.com/MrSnakeDoc/tabkeeper/internal/engine"
	"github.com/MrSnakeDoc/tabkeeper/internal/httpserver/deps"
)

// Layout returns the visible tab sequence.
func Layout(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var resp layoutResponse
		err := d.Loop.Do(r.Context(), func(_ context.Context, e *engine.Engine) error {
			resp = layoutResponse{Layout: e.VisibleLayout(), Focus: e.Focus()}
			return nil
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// Debug returns per-tab state, groups and representatives.
func Debug(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var snap engine.Debug
		err := d.Loop.Do(r.Context(), func(_ context.Context, e *engine.Engine) error {
			snap = e.DebugSnapshot()
			return nil
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}
