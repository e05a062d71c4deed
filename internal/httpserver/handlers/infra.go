package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/tabkeeper/internal/domain"
	"github.com/MrSnakeDoc/tabkeeper/internal/engine"
	"github.com/MrSnakeDoc/tabkeeper/internal/httpserver/deps"
	"github.com/MrSnakeDoc/tabkeeper/internal/scheduler"
)

type componentStatus struct {
	OK        bool   `json:"ok"`
	Mode      string `json:"mode,omitempty"`
	Snapshots *int   `json:"snapshots,omitempty"`
	Error     string `json:"error,omitempty"`
}

type infraResponse struct {
	Pressure   string                     `json:"pressure"`
	Tabs       map[string]int             `json:"tabs"`
	Monitor    *scheduler.MonitorStatus   `json:"monitor,omitempty"`
	Components map[string]componentStatus `json:"components"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tabs := make(map[string]int, len(domain.States))
		for _, s := range domain.States {
			tabs[s.String()] = 0
		}
		engineStatus := componentStatus{OK: true, Mode: d.Renderer}
		err := d.Loop.Do(r.Context(), func(_ context.Context, e *engine.Engine) error {
			for _, info := range e.DebugSnapshot().Tabs {
				tabs[info.State.String()]++
			}
			return nil
		})
		if err != nil {
			engineStatus = componentStatus{OK: false, Mode: d.Renderer, Error: err.Error()}
		}

		response := infraResponse{
			Tabs: tabs,
			Components: map[string]componentStatus{
				"engine":    engineStatus,
				"snapshots": checkSnapshots(r.Context(), d),
			},
		}
		if d.Monitor != nil {
			status := d.Monitor.Status()
			response.Monitor = &status
		}
		response.Pressure = determinePressure(response.Monitor)

		writeJSON(w, http.StatusOK, response)
	}
}

// determinePressure summarises the last sample against the threshold.
func determinePressure(status *scheduler.MonitorStatus) string {
	switch {
	case status == nil:
		return "disabled"
	case status.LastSample == nil:
		return "unknown"
	case status.LastSample.SystemPercent > status.Threshold:
		return "high"
	case status.Increasing:
		return "rising"
	default:
		return "normal"
	}
}

func checkSnapshots(ctx context.Context, d deps.Deps) componentStatus {
	if d.Snapshots == nil {
		return componentStatus{OK: false, Error: "backend not initialized"}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	ids, err := d.Snapshots.IDs(ctx)
	if err != nil {
		return componentStatus{
			OK:    false,
			Mode:  d.Snapshots.Name(),
			Error: err.Error(),
		}
	}
	n := len(ids)
	return componentStatus{
		OK:        true,
		Mode:      d.Snapshots.Name(),
		Snapshots: &n,
	}
}
