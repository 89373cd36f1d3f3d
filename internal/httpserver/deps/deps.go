package deps

import (
	"time"

	"github.com/MrSnakeDoc/marks/internal/auth"
	"github.com/MrSnakeDoc/marks/internal/livesync"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/mutation"
	"github.com/MrSnakeDoc/marks/internal/notify"
	"github.com/MrSnakeDoc/marks/internal/querycache"
	"github.com/MrSnakeDoc/marks/internal/store"
	"github.com/MrSnakeDoc/marks/internal/version"
)

type Deps struct {
	Logger    logger.Logger
	StartTime time.Time
	Build     version.Info
	TimeNow   func() time.Time // for testing, defaults to time.Now

	AllowedHosts []string // Host headers allowed to access the server
	AllowedCIDRS []string // IPs allowed to access healthz/readyz/infra endpoints
	CORSOrigins  []string // browser origins allowed to call the API and open the live socket
	TrustProxy   bool     // true if running behind a trusted reverse proxy (e.g., cloudflared)

	Backend   string                // name of the configured record store
	Store     store.RecordStore     // record store, also pinged by readyz
	Cache     *querycache.Cache     // read path
	Mutations *mutation.Coordinator // write path
	Listener  *livesync.Listener    // per-owner change feeds
	Hub       *notify.Hub           // mutation toasts for live sessions
	Sessions  *auth.Sessions        // signed session cookies

	DevLogin        bool          // expose POST /api/auth/dev-login
	SearchDebounce  time.Duration // live session search delay
	DefaultPageSize int           // page size when the client sends none
	RequestTimeout  time.Duration // applied to every route except the live socket
	RateLimitBurst  int           // mutation bucket size per user
	RateLimitPerMin int           // mutation refill per user
}
