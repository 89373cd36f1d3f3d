// Package querycache keeps the result of each bookmark read keyed by
// (owner, search, page, page size) and decides when a read must go back to the store.
package querycache

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/store"
)

const (
	DefaultStaleTime    = 5 * time.Minute
	DefaultFetchTimeout = 10 * time.Second

	// maxAttempts bounds how often a read is retried when invalidations keep
	// landing while its fetch is in flight.
	maxAttempts = 3
)

// errSuperseded is returned by a fetch that finished after its owner was invalidated.
var errSuperseded = errors.New("fetch superseded by invalidation")

// Result is one cached page. Rows must be treated as read-only.
type Result struct {
	Rows       []domain.Bookmark
	TotalCount int
	FetchedAt  time.Time
}

type entry struct {
	result Result
	epoch  uint64
	stale  bool
}

// Options tunes a Cache. Zero values pick the defaults.
type Options struct {
	StaleTime    time.Duration
	FetchTimeout time.Duration
	Now          func() time.Time
}

// Stats is a point-in-time view for the infra endpoint.
type Stats struct {
	Entries int    `json:"entries"`
	Owners  int    `json:"owners"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
}

type Cache struct {
	reader       store.Reader
	log          logger.Logger
	staleTime    time.Duration
	fetchTimeout time.Duration
	now          func() time.Time

	mu      sync.Mutex
	entries map[domain.Query]*entry
	// epochs moves forward on every invalidation of an owner. Values come from
	// a single counter so a purged owner never reuses an old epoch.
	epochs map[string]uint64
	seq    uint64

	group  singleflight.Group
	hits   atomic.Uint64
	misses atomic.Uint64
}

func New(reader store.Reader, log logger.Logger, opts Options) *Cache {
	if opts.StaleTime <= 0 {
		opts.StaleTime = DefaultStaleTime
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Cache{
		reader:       reader,
		log:          log,
		staleTime:    opts.StaleTime,
		fetchTimeout: opts.FetchTimeout,
		now:          opts.Now,
		entries:      make(map[domain.Query]*entry),
		epochs:       make(map[string]uint64),
	}
}

// Read returns the page for q. A fresh entry is returned without touching the
// store. Otherwise the count and the window are fetched, concurrent readers of
// the same key share one fetch, and the result is cached unless the owner was
// invalidated meanwhile.
func (c *Cache) Read(ctx context.Context, q domain.Query) (Result, error) {
	q = q.Normalize()
	if q.OwnerID == "" {
		return Result{}, domain.ErrNoOwner
	}

	var last Result
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		c.mu.Lock()
		epoch := c.epochLocked(q.OwnerID)
		if e, ok := c.entries[q]; ok && c.freshLocked(e, epoch) {
			res := e.result
			c.mu.Unlock()
			c.hits.Add(1)
			return clone(res), nil
		}
		c.mu.Unlock()
		c.misses.Add(1)

		// Readers arriving after an invalidation carry a new epoch and never join an older flight.
		key := fmt.Sprintf("%d|%s", epoch, q)
		ch := c.group.DoChan(key, func() (any, error) {
			return c.fetch(context.WithoutCancel(ctx), q, epoch)
		})

		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case r := <-ch:
			res, _ := r.Val.(Result)
			if r.Err == nil {
				return clone(res), nil
			}
			if !errors.Is(r.Err, errSuperseded) {
				return Result{}, r.Err
			}
			last = res
			c.log.Debug("cache read superseded, retrying",
				logger.String("owner", q.OwnerID),
				logger.Int("attempt", attempt))
		}
	}

	// Invalidations kept racing the fetch. Hand back the newest read without caching it.
	return clone(last), nil
}

func (c *Cache) fetch(ctx context.Context, q domain.Query, epoch uint64) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	total, err := c.reader.Count(ctx, q.OwnerID, q.Search)
	if err != nil {
		return Result{}, &domain.FetchError{Query: q, Err: err}
	}
	rows, err := c.reader.Query(ctx, q.OwnerID, q.Search, q.Offset(), q.PageSize)
	if err != nil {
		return Result{}, &domain.FetchError{Query: q, Err: err}
	}

	res := Result{Rows: rows, TotalCount: total, FetchedAt: c.now()}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epochs[q.OwnerID] != epoch {
		return res, errSuperseded
	}
	c.entries[q] = &entry{result: res, epoch: epoch}
	return res, nil
}

// Invalidate marks every entry of ownerID stale. Nothing is refetched until the
// next Read. Calling it twice is the same as calling it once.
func (c *Cache) Invalidate(ownerID string) {
	c.InvalidateMatching(ownerID, nil)
}

// InvalidateMatching marks the owner's entries accepted by match stale.
// A nil match selects every entry of the owner.
func (c *Cache) InvalidateMatching(ownerID string, match func(domain.Query) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	c.epochs[ownerID] = c.seq
	for q, e := range c.entries {
		if q.OwnerID != ownerID {
			continue
		}
		if match == nil || match(q) {
			e.stale = true
			continue
		}
		// untouched entries follow the owner to the new epoch
		e.epoch = c.seq
	}
}

// Purge drops every entry of ownerID. Used at sign-out.
func (c *Cache) Purge(ownerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for q := range c.entries {
		if q.OwnerID == ownerID {
			delete(c.entries, q)
		}
	}
	delete(c.epochs, ownerID)
}

// Sweep removes entries that can no longer be served and returns how many were dropped.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for q, e := range c.entries {
		if !c.freshLocked(e, c.epochs[q.OwnerID]) {
			delete(c.entries, q)
			removed++
		}
	}
	return removed
}

// Peek returns the cached entry for q and whether it is still fresh.
func (c *Cache) Peek(q domain.Query) (Result, bool, bool) {
	q = q.Normalize()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[q]
	if !ok {
		return Result{}, false, false
	}
	return clone(e.result), true, c.freshLocked(e, c.epochs[q.OwnerID])
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	entries, owners := len(c.entries), len(c.epochs)
	c.mu.Unlock()

	return Stats{
		Entries: entries,
		Owners:  owners,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}

func (c *Cache) epochLocked(ownerID string) uint64 {
	epoch, ok := c.epochs[ownerID]
	if !ok {
		c.seq++
		epoch = c.seq
		c.epochs[ownerID] = epoch
	}
	return epoch
}

func (c *Cache) freshLocked(e *entry, epoch uint64) bool {
	return !e.stale && e.epoch == epoch && c.now().Sub(e.result.FetchedAt) < c.staleTime
}

func clone(r Result) Result {
	r.Rows = slices.Clone(r.Rows)
	if r.Rows == nil {
		r.Rows = []domain.Bookmark{}
	}
	return r
}
