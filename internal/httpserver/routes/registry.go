package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/tabkeeper/internal/httpserver/deps"
	"github.com/MrSnakeDoc/tabkeeper/internal/httpserver/mw"
)

type Registrar func(r chi.Router, d deps.Deps)

var (
	root []Registrar
	api  []Registrar
)

// Register adds routes at the server root (probes, metrics).
func Register(reg Registrar) {
	root = append(root, reg)
}

// RegisterAPI adds routes under /api, behind the CIDR allow-list and the
// rate limit on mutating requests.
func RegisterAPI(reg Registrar) {
	api = append(api, reg)
}

// Called once from server.New()
func RegisterAll(r chi.Router, d deps.Deps) {
	for _, reg := range root {
		reg(r, d)
	}

	r.Route("/api", func(sub chi.Router) {
		sub.Use(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger))
		if d.RateLimit.Burst > 0 {
			sub.Use(mw.RateLimit(mw.RateLimitConfig{
				Burst:             d.RateLimit.Burst,
				RefillPerIPPerMin: d.RateLimit.PerMinute,
				MaxEntries:        1024,
				TrustProxy:        d.TrustProxy,
				Now:               d.TimeNow,
			}))
		}
		for _, reg := range api {
			reg(sub, d)
		}
	})
}
