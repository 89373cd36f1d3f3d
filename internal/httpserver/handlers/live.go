package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/MrSnakeDoc/marks/internal/auth"
	"github.com/MrSnakeDoc/marks/internal/dashboard"
	"github.com/MrSnakeDoc/marks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marks/internal/logger"
)

const liveWriteTimeout = 10 * time.Second

// wsSink writes dashboard messages as JSON text frames.
type wsSink struct {
	conn *websocket.Conn
}

func (s wsSink) Send(ctx context.Context, msg dashboard.Message) error {
	ctx, cancel := context.WithTimeout(ctx, liveWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, s.conn, msg)
}

// Live upgrades to a WebSocket and runs a dashboard session for the signed-in
// user until either side goes away. The tab first receives its tab id, then
// sends dashboard commands and receives snapshots, change events and toasts.
func Live(d deps.Deps) http.HandlerFunc {
	opts := &websocket.AcceptOptions{OriginPatterns: originHosts(d.CORSOrigins)}

	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := auth.UserFrom(r.Context())
		log := d.Logger.With(logger.String("owner", user.ID))

		// the server read/write timeouts would otherwise cut the socket
		rc := http.NewResponseController(w)
		_ = rc.SetReadDeadline(time.Time{})
		_ = rc.SetWriteDeadline(time.Time{})

		conn, err := websocket.Accept(w, r, opts)
		if err != nil {
			log.Warn("live upgrade failed", logger.Error(err))
			return
		}
		defer conn.CloseNow()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		tab := uuid.NewString()
		log = log.With(logger.String("tab", tab))

		session := dashboard.New(user.ID, d.Cache, wsSink{conn: conn}, log, dashboard.Options{
			SearchDelay: d.SearchDebounce,
			PageSize:    d.DefaultPageSize,
			Tab:         tab,
		})

		feed := d.Listener.NewSession(session.OnChange)
		feed.SetOwner(user.ID)
		defer feed.Close()

		toasts, unsubscribe := d.Hub.Subscribe(user.ID, tab)
		defer unsubscribe()

		go func() {
			defer cancel()
			for {
				var cmd dashboard.Command
				if err := wsjson.Read(ctx, conn, &cmd); err != nil {
					return
				}
				if err := session.Handle(cmd); err != nil {
					log.Debug("live command ignored", logger.Error(err))
				}
			}
		}()

		log.Info("live session opened")
		err = session.Run(ctx, toasts)
		switch {
		case errors.Is(err, context.Canceled), websocket.CloseStatus(err) != -1:
			log.Info("live session closed")
		default:
			log.Warn("live session ended", logger.Error(err))
		}
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}
}

// originHosts turns allowed origins into the host patterns the WebSocket
// handshake checks. "*" allows every origin.
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
		}
	}
	return hosts
}
