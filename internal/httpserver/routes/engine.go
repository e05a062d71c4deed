package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/tabkeeper/internal/httpserver/deps"
	"github.com/MrSnakeDoc/tabkeeper/internal/httpserver/handlers"
)

func init() { RegisterAPI(registerEngine) }

func registerEngine(r chi.Router, d deps.Deps) {
	r.Get("/infra", handlers.Infra(d))
	r.Get("/layout", handlers.Layout(d))
	r.Get("/debug", handlers.Debug(d))
	r.Post("/sweep", handlers.Sweep(d))
}
