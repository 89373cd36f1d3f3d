package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/marks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marks/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/marks/internal/httpserver/mw"
)

func init() { Register(registerBookmarks) }

func registerBookmarks(r chi.Router, d deps.Deps) {
	limit := mw.RateLimit(mw.RateLimitConfig{
		Burst:             d.RateLimitBurst,
		RefillPerIPPerMin: d.RateLimitPerMin,
		MaxEntries:        10000,
		TrustProxy:        d.TrustProxy,
	})

	r.With(mw.EnforceHost(d.AllowedHosts, d.Logger), mw.RequireUser(d.Sessions, d.Logger), mw.Tab).
		Route("/api/bookmarks", func(r chi.Router) {
			r.Get("/", handlers.ListBookmarks(d))

			r.With(limit).Post("/", handlers.CreateBookmark(d))
			r.With(limit).Post("/import", handlers.ImportBookmarks(d))
			r.With(limit).Put("/{id}", handlers.UpdateBookmark(d))
			r.With(limit).Delete("/{id}", handlers.DeleteBookmark(d))
		})
}
