package handlers

import (
	"context"
	"net/http"

	"github.com/MrSnakeDoc/marks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marks/internal/querycache"
)

type componentStatus struct {
	OK      bool              `json:"ok"`
	Backend string            `json:"backend,omitempty"`
	Cache   *querycache.Stats `json:"cache,omitempty"`
	Owners  *int              `json:"owners,omitempty"`
	Impact  string            `json:"impact,omitempty"`
	Error   string            `json:"error,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := d.Cache.Stats()
		owners := d.Listener.Owners()

		components := map[string]componentStatus{
			"store":      checkStore(r.Context(), d),
			"querycache": {OK: true, Cache: &stats},
			"livesync":   {OK: true, Owners: &owners},
		}

		writeJSON(w, http.StatusOK, infraResponse{
			Mode:       determineMode(components),
			Components: components,
		})
	}
}

func determineMode(components map[string]componentStatus) string {
	// Store down = nothing can be read or written
	if s, ok := components["store"]; ok && !s.OK {
		return "critical"
	}
	return "operational"
}

func checkStore(ctx context.Context, d deps.Deps) componentStatus {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := d.Store.Ping(ctx); err != nil {
		return componentStatus{
			OK:      false,
			Backend: d.Backend,
			Impact:  "reads-and-writes-failing",
			Error:   err.Error(),
		}
	}
	return componentStatus{OK: true, Backend: d.Backend}
}
