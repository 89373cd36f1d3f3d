// Package store defines the Record Store contract every backend implements.
package store

import (
	"context"
	"sync"

	"github.com/MrSnakeDoc/marks/internal/domain"
)

// Reader is the read side used by the query cache.
type Reader interface {
	// Query returns one window of the owner's bookmarks, newest first.
	Query(ctx context.Context, ownerID, search string, offset, limit int) ([]domain.Bookmark, error)
	// Count returns how many of the owner's bookmarks match search.
	Count(ctx context.Context, ownerID, search string) (int, error)
}

// Writer is the mutation side. Update and Delete are always filtered by id AND owner
// and report how many rows they touched.
type Writer interface {
	Insert(ctx context.Context, ownerID string, in domain.Input) (domain.Bookmark, error)
	Update(ctx context.Context, id, ownerID string, in domain.Input) (int64, error)
	Delete(ctx context.Context, id, ownerID string) (int64, error)
}

// Feed delivers change events for a single owner.
type Feed interface {
	Subscribe(ctx context.Context, ownerID string, onEvent func(domain.ChangeEvent)) (Subscription, error)
}

// RecordStore is the full backend contract.
type RecordStore interface {
	Reader
	Writer
	Feed
	Ping(ctx context.Context) error
	Close() error
}

// Subscription is a live change feed handle.
type Subscription interface {
	// Done is closed once the feed stops delivering events, for any reason.
	Done() <-chan struct{}
	// Err is nil after Unsubscribe and the failure cause after a drop.
	Err() error
	Unsubscribe() error
}

// Handle is a Subscription backends can embed. stop must not block on the
// goroutine that calls Fail.
type Handle struct {
	once sync.Once
	done chan struct{}
	stop func()

	mu  sync.Mutex
	err error
}

func NewHandle(stop func()) *Handle {
	return &Handle{done: make(chan struct{}), stop: stop}
}

func (h *Handle) Done() <-chan struct{} { return h.done }

func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *Handle) Unsubscribe() error {
	h.finish(nil)
	return nil
}

// Fail ends the subscription with err. Only the first call wins.
func (h *Handle) Fail(err error) {
	h.finish(err)
}

func (h *Handle) finish(err error) {
	h.once.Do(func() {
		h.mu.Lock()
		h.err = err
		h.mu.Unlock()
		if h.stop != nil {
			h.stop()
		}
		close(h.done)
	})
}
