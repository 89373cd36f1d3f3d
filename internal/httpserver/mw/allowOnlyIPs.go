package mw

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/marks/internal/logger"
)

// AllowOnlyCIDRS guards the ops endpoints (healthz, readyz, infra) with an
// address allow-list. An empty list lets everything through.
func AllowOnlyCIDRS(allowed []string, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	cidrs, invalid := parseCIDRs(allowed)
	for _, s := range invalid {
		log.Warn("AllowOnlyCIDRS: ignoring invalid entry", logger.String("entry", s))
	}
	if len(cidrs) == 0 {
		log.Debug("AllowOnlyCIDRS: no rules, passthrough mode")
		return func(next http.Handler) http.Handler { return next }
	}

	log.Debugf("AllowOnlyCIDRS: initialized with %d rules, trustProxy=%v", len(cidrs), trustProxy)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr, ok := clientAddr(r, trustProxy)
			if !ok || !cidrs.allow(addr) {
				log.Warn("ops request rejected",
					logger.String("path", r.URL.Path),
					logger.String("remote_ip", ClientIP(r, trustProxy)),
					logger.String("request_id", middleware.GetReqID(r.Context())),
				)
				reject(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
