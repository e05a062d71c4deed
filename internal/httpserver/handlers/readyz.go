package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/tabkeeper/internal/engine"
	"github.com/MrSnakeDoc/tabkeeper/internal/httpserver/deps"
)

const readyTimeout = time.Second

type readyzResponse struct {
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

// Readyz is ready once the engine loop answers a no-op.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		err := d.Loop.Do(ctx, func(context.Context, *engine.Engine) error { return nil })
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, readyzResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, readyzResponse{Ready: true})
	}
}
