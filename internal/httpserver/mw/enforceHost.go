package mw

import (
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/marks/internal/logger"
)

// hostPattern is an exact host or a "*.example.com" suffix, lower-cased.
type hostPattern struct {
	host   string
	suffix string
}

func compileHosts(allowed []string) []hostPattern {
	out := make([]hostPattern, 0, len(allowed))
	for _, raw := range allowed {
		s := strings.ToLower(strings.TrimSpace(raw))
		if h, _, err := net.SplitHostPort(s); err == nil {
			s = h
		}
		switch {
		case s == "":
		case strings.HasPrefix(s, "*."):
			out = append(out, hostPattern{suffix: s[1:]})
		default:
			out = append(out, hostPattern{host: s})
		}
	}
	return out
}

func (p hostPattern) match(host string) bool {
	if p.suffix != "" {
		return strings.HasSuffix(host, p.suffix)
	}
	return host == p.host
}

// requestHost is r.Host without port, lower-cased.
func requestHost(r *http.Request) string {
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(host)
}

// EnforceHost lets a request through only when its Host (port ignored)
// matches one of allowedHosts. An empty list is a passthrough.
func EnforceHost(allowedHosts []string, log logger.Logger) func(http.Handler) http.Handler {
	patterns := compileHosts(allowedHosts)
	if len(patterns) == 0 {
		log.Debug("EnforceHost: no hosts, passthrough mode")
		return func(next http.Handler) http.Handler { return next }
	}

	log.Debugf("EnforceHost: initialized with hosts=%v", allowedHosts)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host := requestHost(r)
			for _, p := range patterns {
				if p.match(host) {
					next.ServeHTTP(w, r)
					return
				}
			}

			log.Warn("request for unknown host rejected",
				logger.String("host", r.Host),
				logger.String("path", r.URL.Path),
				logger.String("request_id", middleware.GetReqID(r.Context())),
			)
			reject(w, http.StatusForbidden, "forbidden")
		})
	}
}
