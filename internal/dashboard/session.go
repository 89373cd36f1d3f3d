// Package dashboard drives one connected dashboard tab: it owns the search term
// and pagination state, reads pages through the query cache and pushes
// snapshots, change events and toasts to the tab.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MrSnakeDoc/marks/internal/debounce"
	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/notify"
	"github.com/MrSnakeDoc/marks/internal/pagination"
	"github.com/MrSnakeDoc/marks/internal/querycache"
)

// Reader is the part of the query cache a session reads through.
type Reader interface {
	Read(ctx context.Context, q domain.Query) (querycache.Result, error)
}

// Sink is the transport to the tab. Send is only called from Run.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// ErrUnknownCommand is returned by Handle for an unsupported command type.
var ErrUnknownCommand = errors.New("unknown command")

const changeBuffer = 32

type Options struct {
	SearchDelay time.Duration
	PageSize    int
	Tab         string // announced in the hello message when set
}

type Session struct {
	ownerID string
	tab     string
	reader  Reader
	sink    Sink
	log     logger.Logger

	pager  *pagination.Controller
	search *debounce.Debouncer[string]

	mu   sync.Mutex
	term string
	// gen moves on every view state change. A snapshot read under an older
	// generation is dropped, the newer state already queued its own read.
	gen uint64

	kick    chan struct{}
	changes chan domain.ChangeEvent
}

func New(ownerID string, reader Reader, sink Sink, log logger.Logger, opts Options) *Session {
	s := &Session{
		ownerID: ownerID,
		tab:     opts.Tab,
		reader:  reader,
		sink:    sink,
		log:     log.With(logger.String("owner", ownerID)),
		pager:   pagination.New(opts.PageSize),
		kick:    make(chan struct{}, 1),
		changes: make(chan domain.ChangeEvent, changeBuffer),
	}
	s.search = debounce.New(opts.SearchDelay, s.setSearch)
	return s
}

// Snapshot reads the current page. Read failures are reported inside the
// snapshot as retryable, never as an error.
func (s *Session) Snapshot(ctx context.Context) Snapshot {
	s.mu.Lock()
	term := s.term
	s.mu.Unlock()

	q := domain.Query{OwnerID: s.ownerID, Search: term, Page: s.pager.Page(), PageSize: s.pager.PageSize()}
	res, err := s.reader.Read(ctx, q)
	if err != nil {
		return s.failed(q, err)
	}

	s.pager.SetTotalCount(res.TotalCount)
	if page := s.pager.Page(); page != q.Page {
		// the page emptied under us, read the new last page instead
		q.Page = page
		if res, err = s.reader.Read(ctx, q); err != nil {
			return s.failed(q, err)
		}
		s.pager.SetTotalCount(res.TotalCount)
	}

	return Snapshot{
		Rows:       res.Rows,
		TotalCount: res.TotalCount,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: s.pager.TotalPages(),
		HasNext:    s.pager.HasNext(),
		HasPrev:    s.pager.HasPrev(),
		Search:     q.Search,
	}
}

func (s *Session) failed(q domain.Query, err error) Snapshot {
	s.log.Warn("dashboard read failed", logger.Int("page", q.Page), logger.Error(err))
	return Snapshot{
		Rows:       []domain.Bookmark{},
		TotalCount: s.pager.TotalCount(),
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: s.pager.TotalPages(),
		HasNext:    s.pager.HasNext(),
		HasPrev:    s.pager.HasPrev(),
		Search:     q.Search,
		Error:      "Error fetching bookmarks",
		Retryable:  true,
	}
}

// Handle applies a command from the tab. Search is debounced, everything else
// takes effect immediately, after any search still waiting out its delay.
func (s *Session) Handle(cmd Command) error {
	if cmd.Type == CommandSearch {
		s.search.Push(cmd.Search)
		return nil
	}
	if cmd.Type != CommandRefresh {
		// a late search would reset the page this command picks
		s.search.Flush()
	}

	switch cmd.Type {
	case CommandPage:
		if s.pager.GoToPage(cmd.Page) {
			s.touch()
		}
	case CommandNext:
		if s.pager.Next() {
			s.touch()
		}
	case CommandPrev:
		if s.pager.Prev() {
			s.touch()
		}
	case CommandLimit:
		s.pager.ChangeLimit(cmd.Limit)
		s.touch()
	case CommandRefresh:
		s.refresh()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}
	return nil
}

// OnChange is a livesync watcher. It never blocks the feed.
func (s *Session) OnChange(ev domain.ChangeEvent) {
	select {
	case s.changes <- ev:
	default:
		// the snapshot that follows covers the dropped event
	}
	s.refresh()
}

// Run serializes everything sent to the tab until ctx ends.
// toasts may be nil.
func (s *Session) Run(ctx context.Context, toasts <-chan notify.Notification) error {
	defer s.search.Stop()

	if s.tab != "" {
		if err := s.sink.Send(ctx, Message{Type: MessageHello, Tab: s.tab}); err != nil {
			return err
		}
	}

	s.refresh()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev := <-s.changes:
			change := Change{Type: ev.Type, ID: ev.Row.ID}
			if err := s.sink.Send(ctx, Message{Type: MessageChange, Change: &change}); err != nil {
				return err
			}

		case n, ok := <-toasts:
			if !ok {
				toasts = nil
				continue
			}
			if err := s.sink.Send(ctx, Message{Type: MessageToast, Toast: &n}); err != nil {
				return err
			}

		case <-s.kick:
			if err := s.push(ctx); err != nil {
				return err
			}
		}
	}
}

func (s *Session) push(ctx context.Context) error {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	snap := s.Snapshot(ctx)

	s.mu.Lock()
	superseded := gen != s.gen
	s.mu.Unlock()
	if superseded {
		s.log.Debug("dropping superseded snapshot")
		return nil
	}

	return s.sink.Send(ctx, Message{Type: MessageSnapshot, Snapshot: &snap})
}

func (s *Session) setSearch(term string) {
	term = strings.TrimSpace(term)

	s.mu.Lock()
	if term == s.term {
		s.mu.Unlock()
		return
	}
	s.term = term
	s.mu.Unlock()

	s.pager.Reset()
	s.touch()
}

// touch records a state change and queues a read.
func (s *Session) touch() {
	s.mu.Lock()
	s.gen++
	s.mu.Unlock()
	s.refresh()
}

func (s *Session) refresh() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}
