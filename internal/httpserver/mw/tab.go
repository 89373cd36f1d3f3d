package mw

import (
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/marks/internal/notify"
)

// maxTabLen bounds the tab header; live tab ids are UUIDs.
const maxTabLen = 64

// Tab stores the live tab id sent in notify.TabHeader on the request context,
// so mutation toasts go back to that tab only.
func Tab(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tab := strings.TrimSpace(r.Header.Get(notify.TabHeader))
		if tab != "" && len(tab) <= maxTabLen {
			r = r.WithContext(notify.WithTab(r.Context(), tab))
		}
		next.ServeHTTP(w, r)
	})
}
