package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/tabkeeper/internal/httpserver/deps"
	"github.com/MrSnakeDoc/tabkeeper/internal/logger"
)

type sweepResponse struct {
	Triggered bool   `json:"triggered"`
	Message   string `json:"message"`
}

// Sweep asks the pressure monitor for an immediate sweep
func Sweep(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case d.SweepTrigger <- struct{}{}:
			d.Logger.Info("manual sweep triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, http.StatusAccepted, sweepResponse{
				Triggered: true,
				Message:   "sweep triggered",
			})
		default:
			d.Logger.Warn("sweep already pending",
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, http.StatusTooManyRequests, sweepResponse{
				Message: "sweep already pending, please wait",
			})
		}
	}
}
