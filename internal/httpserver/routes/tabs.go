package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/tabkeeper/internal/httpserver/deps"
	"github.com/MrSnakeDoc/tabkeeper/internal/httpserver/handlers"
)

func init() { RegisterAPI(registerTabs) }

func registerTabs(r chi.Router, d deps.Deps) {
	r.Route("/tabs", func(r chi.Router) {
		r.Post("/", handlers.OpenTab(d))
		r.Delete("/{id}", handlers.CloseTab(d))
		r.Post("/{id}/focus", handlers.FocusTab(d))
		r.Post("/{id}/hibernate", handlers.HibernateTab(d))
		r.Put("/{id}/group", handlers.MoveTab(d))
		r.Delete("/{id}/group", handlers.UngroupTab(d))
	})
}
