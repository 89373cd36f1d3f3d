package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/marks/internal/logger"
)

// DefaultSweepInterval is used when no interval is configured.
const DefaultSweepInterval = 10 * time.Minute

// Sweeper drops expired entries and reports how many it removed.
type Sweeper interface {
	Sweep() int
}

// CacheSweeper periodically drops expired query cache entries so pages nobody
// reads again do not pile up.
type CacheSweeper struct {
	cache    Sweeper
	logger   logger.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewCacheSweeper(cache Sweeper, log logger.Logger, interval time.Duration) *CacheSweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &CacheSweeper{
		cache:    cache,
		logger:   log,
		interval: interval,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the periodic sweep.
func (s *CacheSweeper) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	go func() {
		defer close(s.done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Collect()
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the sweeper and waits for the loop to exit. It is safe to call
// more than once.
func (s *CacheSweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.done
}

// Collect runs one sweep.
func (s *CacheSweeper) Collect() int {
	removed := s.cache.Sweep()
	if removed > 0 {
		s.logger.Info("query cache swept", logger.Int("removed", removed))
	} else {
		s.logger.Debug("no expired query cache entries")
	}
	return removed
}
