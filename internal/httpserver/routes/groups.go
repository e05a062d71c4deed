package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/tabkeeper/internal/httpserver/deps"
	"github.com/MrSnakeDoc/tabkeeper/internal/httpserver/handlers"
)

func init() { RegisterAPI(registerGroups) }

func registerGroups(r chi.Router, d deps.Deps) {
	r.Route("/groups", func(r chi.Router) {
		r.Post("/", handlers.CreateGroup(d))
		r.Delete("/", handlers.DeleteGroup(d))
		r.Post("/toggle", handlers.ToggleGroup(d))
		r.Put("/keep-active", handlers.SetKeepActive(d))
	})
}
