package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/marks/internal/httpserver/deps"
)

type (
	Registrar  func(r chi.Router, d deps.Deps)
	Middleware = func(http.Handler) http.Handler
)

type entry struct {
	reg Registrar
	mws []Middleware
	// stream routes hold their connection open and skip the request timeout
	stream bool
}

var registry []entry

// Register a registrar with optional per-route middlewares.
func Register(reg Registrar, mws ...Middleware) {
	registry = append(registry, entry{reg: reg, mws: mws})
}

// RegisterStream registers long-lived routes (WebSocket) that must not get
// the per-request timeout.
func RegisterStream(reg Registrar, mws ...Middleware) {
	registry = append(registry, entry{reg: reg, mws: mws, stream: true})
}

// Called once from server.New()
func RegisterAll(r chi.Router, d deps.Deps) {
	for _, e := range registry {
		mws := e.mws
		if !e.stream && d.RequestTimeout > 0 {
			mws = append([]Middleware{middleware.Timeout(d.RequestTimeout)}, mws...)
		}
		if len(mws) == 0 {
			e.reg(r, d)
			continue
		}
		sub := r.With(mws...) // apply per-route middlewares
		e.reg(sub, d)
	}
}
