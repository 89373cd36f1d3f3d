package mw

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrSnakeDoc/marks/internal/notify"
)

func TestCORS(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })

	tests := []struct {
		name        string
		origins     []string
		method      string
		origin      string
		preflight   bool
		wantCode    int
		wantAllowed string
	}{
		{"passthrough when unconfigured", nil, http.MethodGet, "https://app.example", false, http.StatusTeapot, ""},
		{"allowed origin", []string{"https://app.example/"}, http.MethodGet, "https://app.example", false, http.StatusTeapot, "https://app.example"},
		{"other origin", []string{"https://app.example"}, http.MethodGet, "https://evil.example", false, http.StatusTeapot, ""},
		{"wildcard echoes origin", []string{"*"}, http.MethodGet, "https://any.example", false, http.StatusTeapot, "https://any.example"},
		{"preflight", []string{"https://app.example"}, http.MethodOptions, "https://app.example", true, http.StatusNoContent, "https://app.example"},
		{"same origin request", []string{"https://app.example"}, http.MethodGet, "", false, http.StatusTeapot, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/bookmarks", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()
			CORS(tt.origins)(ok).ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllowed {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantAllowed)
			}
			if tt.preflight && rec.Header().Get("Access-Control-Allow-Methods") == "" {
				t.Error("preflight without Allow-Methods")
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(RateLimitConfig{Burst: 2, RefillPerIPPerMin: 1})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/bookmarks", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}

	other := httptest.NewRequest(http.MethodPost, "/api/bookmarks", nil)
	other.RemoteAddr = "10.0.0.2:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	if rec.Code != http.StatusOK {
		t.Errorf("second client = %d, want 200", rec.Code)
	}
}

func TestTab(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"no header", "", ""},
		{"tab id", " 6f1c2a9e-0000-4000-8000-000000000001 ", "6f1c2a9e-0000-4000-8000-000000000001"},
		{"oversized", strings.Repeat("x", maxTabLen+1), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := Tab(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, _ = notify.TabFrom(r.Context())
			}))
			req := httptest.NewRequest(http.MethodPost, "/api/bookmarks", nil)
			if tt.header != "" {
				req.Header.Set(notify.TabHeader, tt.header)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if got != tt.want {
				t.Errorf("tab = %q, want %q", got, tt.want)
			}
		})
	}
}
