package handlers

import (
	"net/http"
	"net/mail"
	"time"

	"github.com/MrSnakeDoc/marks/internal/auth"
	"github.com/MrSnakeDoc/marks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marks/internal/logger"
)

// Me returns the signed-in user.
func Me(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := auth.UserFrom(r.Context())
		writeJSON(w, http.StatusOK, user)
	}
}

// SignOut clears the session cookie and drops the owner's cached pages.
// It succeeds without a session.
func SignOut(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if user, err := d.Sessions.CurrentUser(r); err == nil {
			d.Cache.Purge(user.ID)
			d.Logger.Info("signed out", logger.String("owner", user.ID))
		}
		d.Sessions.ClearCookie(w)
		w.WriteHeader(http.StatusNoContent)
	}
}

type devLoginRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

type devLoginResponse struct {
	User      auth.User `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DevLogin signs in any e-mail address. Only mounted when dev login is enabled.
func DevLogin(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req devLoginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		addr, err := mail.ParseAddress(req.Email)
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "Enter a valid e-mail", Field: "email"})
			return
		}

		// "Alice <alice@example.com>" names the user when no display_name is sent.
		user := auth.DevUser(addr.Address).Named(addr.Name).Named(req.DisplayName)
		token, expires, err := d.Sessions.Issue(user)
		if err != nil {
			d.Logger.Error("issue session failed", logger.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		d.Sessions.SetCookie(w, token, expires)
		d.Logger.Info("dev login", logger.String("owner", user.ID))
		writeJSON(w, http.StatusOK, devLoginResponse{User: user, Token: token, ExpiresAt: expires})
	}
}
