// Package auth issues and checks signed session tokens and exposes the
// signed-in user to handlers.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultCookieName = "marks_session"
	DefaultTTL        = 7 * 24 * time.Hour
	DefaultIssuer     = "marks"
)

var (
	ErrNoSession       = errors.New("no session")
	ErrInvalidToken    = errors.New("invalid session token")
	ErrTokenExpired    = errors.New("session token expired")
	ErrSecretRequired  = errors.New("session secret is required")
	ErrInvalidIdentity = errors.New("user id and email are required")
)

// devNamespace derives stable owner ids from e-mail addresses for dev logins.
var devNamespace = uuid.MustParse("6f1c3a52-8d0e-4c57-9a8b-2b7e1f4d9c30")

// User is the authenticated owner.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
}

type claims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

type Options struct {
	Secret       string
	TTL          time.Duration
	Issuer       string
	CookieName   string
	SecureCookie bool
	Now          func() time.Time
}

// Sessions signs HS256 session tokens and reads them back from requests.
type Sessions struct {
	secret     []byte
	ttl        time.Duration
	issuer     string
	cookieName string
	secure     bool
	now        func() time.Time
}

func New(opts Options) (*Sessions, error) {
	if opts.Secret == "" {
		return nil, ErrSecretRequired
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Issuer == "" {
		opts.Issuer = DefaultIssuer
	}
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Sessions{
		secret:     []byte(opts.Secret),
		ttl:        opts.TTL,
		issuer:     opts.Issuer,
		cookieName: opts.CookieName,
		secure:     opts.SecureCookie,
		now:        opts.Now,
	}, nil
}

// Issue signs a token for u and returns it with its expiry.
func (s *Sessions) Issue(u User) (string, time.Time, error) {
	if u.ID == "" || u.Email == "" {
		return "", time.Time{}, ErrInvalidIdentity
	}

	now := s.now().UTC()
	expires := now.Add(s.ttl)
	c := claims{
		Email: u.Email,
		Name:  u.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return signed, expires, nil
}

// Parse validates token and returns its user.
func (s *Sessions) Parse(token string) (User, error) {
	parsed, err := jwt.ParseWithClaims(token, &claims{},
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithLeeway(5*time.Second),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return User{}, ErrTokenExpired
		}
		return User{}, ErrInvalidToken
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid || c.Subject == "" {
		return User{}, ErrInvalidToken
	}
	return User{ID: c.Subject, Email: c.Email, DisplayName: c.Name}, nil
}

// CurrentUser reads the session cookie, falling back to an Authorization bearer token.
func (s *Sessions) CurrentUser(r *http.Request) (User, error) {
	if c, err := r.Cookie(s.cookieName); err == nil && c.Value != "" {
		return s.Parse(c.Value)
	}

	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") && token != "" {
			return s.Parse(strings.TrimSpace(token))
		}
		return User{}, ErrInvalidToken
	}

	return User{}, ErrNoSession
}

func (s *Sessions) SetCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Sessions) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// MaxDisplayName caps display names, in runes.
const MaxDisplayName = 100

// DevUser maps an e-mail to a user with a stable id. The display name
// defaults to the local part of the address.
func DevUser(email string) User {
	email = strings.ToLower(strings.TrimSpace(email))
	local, _, _ := strings.Cut(email, "@")
	return User{
		ID:          uuid.NewSHA1(devNamespace, []byte(email)).String(),
		Email:       email,
		DisplayName: local,
	}
}

// Named returns u with name as display name, when name is not blank.
func (u User) Named(name string) User {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return u
	}
	if r := []rune(name); len(r) > MaxDisplayName {
		name = string(r[:MaxDisplayName])
	}
	u.DisplayName = name
	return u
}

type ctxKey struct{}

func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFrom returns the user stored by WithUser.
func UserFrom(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(ctxKey{}).(User)
	return u, ok
}
