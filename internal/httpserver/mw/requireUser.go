package mw

import (
	"errors"
	"net/http"

	"github.com/MrSnakeDoc/marks/internal/auth"
	"github.com/MrSnakeDoc/marks/internal/logger"
)

// RequireUser rejects requests without a valid session with 401 and stores
// the signed-in user in the request context otherwise.
func RequireUser(sessions *auth.Sessions, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := sessions.CurrentUser(r)
			if err != nil {
				if !errors.Is(err, auth.ErrNoSession) {
					log.Debug("RequireUser: rejected session", logger.Error(err))
				}
				reject(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), user)))
		})
	}
}
