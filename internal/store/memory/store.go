// Package memory is an in-process Record Store. It backs local development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/store"
)

type record struct {
	bookmark domain.Bookmark
	seq      int64 // insertion order, breaks created_at ties
}

type listener struct {
	onEvent func(domain.ChangeEvent)
	handle  *store.Handle
}

// Store keeps bookmarks in memory and publishes changes to in-process subscribers.
type Store struct {
	mu          sync.RWMutex
	records     map[string]*record // ID -> record
	seq         int64
	lastCreated time.Time
	now         func() time.Time

	subsMu  sync.Mutex
	subs    map[string]map[uint64]*listener // owner -> subscription id -> listener
	nextSub uint64
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		records: make(map[string]*record),
		subs:    make(map[string]map[uint64]*listener),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ store.RecordStore = (*Store)(nil)

// Query returns a window of the owner's matching bookmarks, newest first.
func (s *Store) Query(ctx context.Context, ownerID, search string, offset, limit int) ([]domain.Bookmark, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matched := s.matching(ownerID, search)
	if offset >= len(matched) || limit <= 0 {
		return []domain.Bookmark{}, nil
	}
	if offset < 0 {
		offset = 0
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}

	rows := make([]domain.Bookmark, 0, end-offset)
	for _, r := range matched[offset:end] {
		rows = append(rows, r.bookmark)
	}
	return rows, nil
}

// Count returns the number of the owner's bookmarks matching search.
func (s *Store) Count(ctx context.Context, ownerID, search string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return len(s.matching(ownerID, search)), nil
}

func (s *Store) matching(ownerID, search string) []*record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*record, 0)
	for _, r := range s.records {
		if r.bookmark.OwnerID != ownerID {
			continue
		}
		if !domain.MatchesSearch(r.bookmark, search) {
			continue
		}
		matched = append(matched, r)
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.bookmark.CreatedAt.Equal(b.bookmark.CreatedAt) {
			return a.bookmark.CreatedAt.After(b.bookmark.CreatedAt)
		}
		return a.seq > b.seq
	})
	return matched
}

// Insert stores a new bookmark for ownerID.
func (s *Store) Insert(ctx context.Context, ownerID string, in domain.Input) (domain.Bookmark, error) {
	if err := ctx.Err(); err != nil {
		return domain.Bookmark{}, err
	}

	s.mu.Lock()
	created := s.now().UTC()
	// Keep created_at strictly increasing so newest-first is total even with a coarse clock.
	if !created.After(s.lastCreated) {
		created = s.lastCreated.Add(time.Microsecond)
	}
	s.lastCreated = created
	s.seq++

	b := domain.Bookmark{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Title:     in.Title,
		URL:       in.URL,
		CreatedAt: created,
	}
	s.records[b.ID] = &record{bookmark: b, seq: s.seq}
	s.mu.Unlock()

	s.publish(domain.ChangeEvent{Type: domain.EventInsert, OwnerID: ownerID, Row: b, At: created})
	return b, nil
}

// Update changes title and url of the bookmark matching both id and owner.
func (s *Store) Update(ctx context.Context, id, ownerID string, in domain.Input) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	r, ok := s.records[id]
	if !ok || r.bookmark.OwnerID != ownerID {
		s.mu.Unlock()
		return 0, nil
	}
	r.bookmark.Title = in.Title
	r.bookmark.URL = in.URL
	updated := r.bookmark
	s.mu.Unlock()

	s.publish(domain.ChangeEvent{Type: domain.EventUpdate, OwnerID: ownerID, Row: updated, At: s.now().UTC()})
	return 1, nil
}

// Delete removes the bookmark matching both id and owner.
func (s *Store) Delete(ctx context.Context, id, ownerID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	r, ok := s.records[id]
	if !ok || r.bookmark.OwnerID != ownerID {
		s.mu.Unlock()
		return 0, nil
	}
	delete(s.records, id)
	s.mu.Unlock()

	s.publish(domain.ChangeEvent{
		Type:    domain.EventDelete,
		OwnerID: ownerID,
		Row:     domain.Bookmark{ID: r.bookmark.ID, OwnerID: ownerID},
		At:      s.now().UTC(),
	})
	return 1, nil
}

// Get returns a bookmark by id regardless of owner. Test helper.
func (s *Store) Get(id string) (domain.Bookmark, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return domain.Bookmark{}, false
	}
	return r.bookmark, true
}

// Subscribe registers onEvent for every change to ownerID's rows.
// Events are delivered synchronously after the write is applied.
func (s *Store) Subscribe(ctx context.Context, ownerID string, onEvent func(domain.ChangeEvent)) (store.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	s.nextSub++
	id := s.nextSub
	h := store.NewHandle(func() { s.removeSub(ownerID, id) })

	if s.subs[ownerID] == nil {
		s.subs[ownerID] = make(map[uint64]*listener)
	}
	s.subs[ownerID][id] = &listener{onEvent: onEvent, handle: h}
	return h, nil
}

// DropFeed ends every live subscription of ownerID with err, as a dropped connection would.
func (s *Store) DropFeed(ownerID string, err error) {
	s.subsMu.Lock()
	handles := make([]*store.Handle, 0, len(s.subs[ownerID]))
	for _, l := range s.subs[ownerID] {
		handles = append(handles, l.handle)
	}
	s.subsMu.Unlock()

	for _, h := range handles {
		h.Fail(err)
	}
}

// Subscribers returns the number of live subscriptions for ownerID.
func (s *Store) Subscribers(ownerID string) int {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	return len(s.subs[ownerID])
}

func (s *Store) removeSub(ownerID string, id uint64) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	delete(s.subs[ownerID], id)
	if len(s.subs[ownerID]) == 0 {
		delete(s.subs, ownerID)
	}
}

func (s *Store) publish(ev domain.ChangeEvent) {
	s.subsMu.Lock()
	targets := make([]func(domain.ChangeEvent), 0, len(s.subs[ev.OwnerID]))
	for _, l := range s.subs[ev.OwnerID] {
		targets = append(targets, l.onEvent)
	}
	s.subsMu.Unlock()

	for _, fn := range targets {
		fn(ev)
	}
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

// Close drops every subscription.
func (s *Store) Close() error {
	s.subsMu.Lock()
	handles := make([]*store.Handle, 0)
	for _, owner := range s.subs {
		for _, l := range owner {
			handles = append(handles, l.handle)
		}
	}
	s.subsMu.Unlock()

	for _, h := range handles {
		_ = h.Unsubscribe()
	}
	return nil
}
