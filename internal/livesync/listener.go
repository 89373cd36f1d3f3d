// Package livesync keeps one change feed subscription per owner and turns every
// event into a cache invalidation plus a fan-out to the owner's sessions.
package livesync

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/store"
)

const (
	DefaultMinBackoff = 500 * time.Millisecond
	DefaultMaxBackoff = 30 * time.Second
)

// Invalidator is the part of the query cache the listener drives.
type Invalidator interface {
	Invalidate(ownerID string)
}

type Options struct {
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

type Listener struct {
	feed       store.Feed
	cache      Invalidator
	log        logger.Logger
	minBackoff time.Duration
	maxBackoff time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	owners map[string]*ownerFeed
}

// ownerFeed is the single subscription shared by all watchers of one owner.
type ownerFeed struct {
	ownerID    string
	cancel     context.CancelFunc
	watchers   map[uint64]func(domain.ChangeEvent)
	nextID     uint64
	subscribed bool
}

func New(feed store.Feed, cache Invalidator, log logger.Logger, opts Options) *Listener {
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = DefaultMinBackoff
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = DefaultMaxBackoff
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Listener{
		feed:       feed,
		cache:      cache,
		log:        log,
		minBackoff: opts.MinBackoff,
		maxBackoff: opts.MaxBackoff,
		ctx:        ctx,
		cancel:     cancel,
		owners:     make(map[string]*ownerFeed),
	}
}

// Watch registers fn for ownerID's changes. The first watcher of an owner opens
// the subscription, the release of the last one closes it. fn runs after the
// owner's cache was invalidated and must not block.
func (l *Listener) Watch(ownerID string, fn func(domain.ChangeEvent)) (release func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	of, ok := l.owners[ownerID]
	if !ok {
		ctx, cancel := context.WithCancel(l.ctx)
		of = &ownerFeed{
			ownerID:  ownerID,
			cancel:   cancel,
			watchers: make(map[uint64]func(domain.ChangeEvent)),
		}
		l.owners[ownerID] = of

		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.run(ctx, of)
		}()
	}

	of.nextID++
	id := of.nextID
	of.watchers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() { l.release(of, id) })
	}
}

func (l *Listener) release(of *ownerFeed, id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(of.watchers, id)
	if len(of.watchers) > 0 {
		return
	}
	if l.owners[of.ownerID] == of {
		delete(l.owners, of.ownerID)
	}
	of.cancel()
}

// run keeps ownerID subscribed until ctx ends, resubscribing with exponential
// backoff whenever the feed fails or drops.
func (l *Listener) run(ctx context.Context, of *ownerFeed) {
	log := l.log.With(logger.String("owner", of.ownerID))
	wait := l.minBackoff
	resync := false

	for {
		sub, err := l.feed.Subscribe(ctx, of.ownerID, func(ev domain.ChangeEvent) {
			l.dispatch(of, ev)
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("change feed subscribe failed, retrying",
				logger.Error(&domain.SubscriptionError{OwnerID: of.ownerID, Err: err}),
				logger.Duration("next_retry_in", wait))
			if !sleep(ctx, wait) {
				return
			}
			wait = next(wait, l.maxBackoff)
			resync = true
			continue
		}

		l.setSubscribed(of, true)
		wait = l.minBackoff
		if resync {
			log.Info("change feed re-established")
			l.dispatch(of, domain.ChangeEvent{Type: domain.EventResync, OwnerID: of.ownerID, At: time.Now().UTC()})
		} else {
			log.Debug("change feed subscribed")
		}

		select {
		case <-ctx.Done():
			_ = sub.Unsubscribe()
			l.setSubscribed(of, false)
			log.Debug("change feed released")
			return
		case <-sub.Done():
			l.setSubscribed(of, false)
			log.Warn("change feed dropped, resubscribing",
				logger.Error(&domain.SubscriptionError{OwnerID: of.ownerID, Err: sub.Err()}),
				logger.Duration("next_retry_in", wait))
			if !sleep(ctx, wait) {
				return
			}
			wait = next(wait, l.maxBackoff)
			resync = true
		}
	}
}

// dispatch invalidates the owner's reads, then hands ev to every watcher.
func (l *Listener) dispatch(of *ownerFeed, ev domain.ChangeEvent) {
	l.cache.Invalidate(of.ownerID)

	l.mu.Lock()
	fns := make([]func(domain.ChangeEvent), 0, len(of.watchers))
	for _, fn := range of.watchers {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (l *Listener) setSubscribed(of *ownerFeed, v bool) {
	l.mu.Lock()
	of.subscribed = v
	l.mu.Unlock()
}

// Subscribed reports whether ownerID currently has a live subscription.
func (l *Listener) Subscribed(ownerID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	of, ok := l.owners[ownerID]
	return ok && of.subscribed
}

// Watchers returns the number of watchers of ownerID.
func (l *Listener) Watchers(ownerID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if of, ok := l.owners[ownerID]; ok {
		return len(of.watchers)
	}
	return 0
}

// Owners returns the number of owners with an open feed.
func (l *Listener) Owners() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.owners)
}

// Close stops every subscription and waits for them to wind down.
func (l *Listener) Close() {
	l.cancel()
	l.wg.Wait()

	l.mu.Lock()
	l.owners = make(map[string]*ownerFeed)
	l.mu.Unlock()
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func next(wait, limit time.Duration) time.Duration {
	wait *= 2
	if wait > limit {
		wait = limit
	}
	return wait
}
