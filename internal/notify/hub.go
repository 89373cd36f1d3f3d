// Package notify carries user-facing mutation outcomes (toasts) to the tab
// that made the change.
package notify

import (
	"context"
	"sync"

	"github.com/MrSnakeDoc/marks/internal/logger"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is one toast.
type Notification struct {
	Level      Level  `json:"level"`
	Op         string `json:"op"`
	Message    string `json:"message"`
	BookmarkID string `json:"bookmark_id,omitempty"`
}

const defaultBuffer = 16

// TabHeader carries the live tab id on mutation requests, so the outcome is
// toasted in that tab only.
const TabHeader = "X-Marks-Tab"

type tabKey struct{}

// WithTab marks ctx as a mutation issued from tab.
func WithTab(ctx context.Context, tab string) context.Context {
	if tab == "" {
		return ctx
	}
	return context.WithValue(ctx, tabKey{}, tab)
}

// TabFrom returns the tab a mutation came from, if any.
func TabFrom(ctx context.Context) (string, bool) {
	tab, ok := ctx.Value(tabKey{}).(string)
	return tab, ok && tab != ""
}

type subscriber struct {
	tab string
	ch  chan Notification
}

// Hub logs every notification and hands it to the owner's subscribers.
// A subscriber that does not keep up loses notifications instead of blocking mutations.
type Hub struct {
	log    logger.Logger
	buffer int

	mu     sync.Mutex
	subs   map[string]map[uint64]subscriber
	nextID uint64
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{
		log:    log,
		buffer: defaultBuffer,
		subs:   make(map[string]map[uint64]subscriber),
	}
}

// Notify delivers n to the tab named by ctx (see WithTab). Without a tab,
// every subscriber of ownerID gets it.
func (h *Hub) Notify(ctx context.Context, ownerID string, n Notification) {
	tab, scoped := TabFrom(ctx)

	fields := []logger.Field{
		logger.String("owner", ownerID),
		logger.String("op", n.Op),
		logger.String("message", n.Message),
	}
	if n.BookmarkID != "" {
		fields = append(fields, logger.String("bookmark_id", n.BookmarkID))
	}
	if scoped {
		fields = append(fields, logger.String("tab", tab))
	}
	if n.Level == LevelError {
		h.log.Warn("mutation failed", fields...)
	} else {
		h.log.Info("mutation succeeded", fields...)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs[ownerID] {
		if scoped && sub.tab != tab {
			continue
		}
		select {
		case sub.ch <- n:
		default:
			h.log.Warn("notification dropped, subscriber is full", logger.String("owner", ownerID))
		}
	}
}

// Subscribe returns a channel of ownerID's notifications for tab and a
// cancel func that unregisters and closes it.
func (h *Hub) Subscribe(ownerID, tab string) (<-chan Notification, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	ch := make(chan Notification, h.buffer)
	if h.subs[ownerID] == nil {
		h.subs[ownerID] = make(map[uint64]subscriber)
	}
	h.subs[ownerID][id] = subscriber{tab: tab, ch: ch}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[ownerID], id)
			if len(h.subs[ownerID]) == 0 {
				delete(h.subs, ownerID)
			}
			close(ch)
		})
	}
	return ch, cancel
}

// Subscribers returns the number of live subscriptions for ownerID.
func (h *Hub) Subscribers(ownerID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[ownerID])
}
