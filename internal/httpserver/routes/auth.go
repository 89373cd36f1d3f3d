package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/marks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marks/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/marks/internal/httpserver/mw"
)

func init() { Register(registerAuth) }

func registerAuth(r chi.Router, d deps.Deps) {
	r = r.With(mw.EnforceHost(d.AllowedHosts, d.Logger))

	r.With(mw.RequireUser(d.Sessions, d.Logger)).Get("/api/me", handlers.Me(d))
	r.Post("/api/auth/signout", handlers.SignOut(d))

	if d.DevLogin {
		limit := mw.RateLimit(mw.RateLimitConfig{
			Burst:             5,
			RefillPerIPPerMin: 10,
			MaxEntries:        10000,
			TrustProxy:        d.TrustProxy,
		})
		r.With(limit).Post("/api/auth/dev-login", handlers.DevLogin(d))
	}
}
