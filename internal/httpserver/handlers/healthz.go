package handlers

import (
	"net/http"
	"time"

	"github.com/MrSnakeDoc/marks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marks/internal/version"
)

type healthzResponse struct {
	Status        string  `json:"status"`
	Backend       string  `json:"backend,omitempty"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	version.Info
}

func Healthz(d deps.Deps) http.HandlerFunc {
	now := d.TimeNow
	if now == nil {
		now = time.Now
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthzResponse{
			Status:        "ok",
			Backend:       d.Backend,
			Info:          d.Build,
			UptimeSeconds: now().Sub(d.StartTime).Seconds(),
		})
	}
}
