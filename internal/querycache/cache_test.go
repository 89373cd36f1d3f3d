package querycache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/store/memory"
)

// countingReader wraps a reader and counts store round-trips.
type countingReader struct {
	inner  *memory.Store
	counts atomic.Int32
	// gate, when set, blocks Query until it is closed
	gate chan struct{}
	// entered is signalled once per Query call
	entered chan struct{}
	fail    error
}

func (r *countingReader) Count(ctx context.Context, ownerID, search string) (int, error) {
	if r.fail != nil {
		return 0, r.fail
	}
	return r.inner.Count(ctx, ownerID, search)
}

func (r *countingReader) Query(ctx context.Context, ownerID, search string, offset, limit int) ([]domain.Bookmark, error) {
	r.counts.Add(1)
	if r.entered != nil {
		r.entered <- struct{}{}
	}
	if r.gate != nil {
		<-r.gate
	}
	return r.inner.Query(ctx, ownerID, search, offset, limit)
}

func seed(t *testing.T, s *memory.Store, owner string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := s.Insert(context.Background(), owner, domain.Input{Title: "bm", URL: "https://example.com"}); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}
}

func TestReadCachesFreshEntries(t *testing.T) {
	mem := memory.New()
	seed(t, mem, "u1", 20)
	r := &countingReader{inner: mem}
	c := New(r, logger.NewNop(), Options{})

	q := domain.Query{OwnerID: "u1", Page: 3, PageSize: 9}
	res, err := c.Read(context.Background(), q)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if res.TotalCount != 20 || len(res.Rows) != 2 {
		t.Errorf("Read() = %d rows, total %d; want 2 rows, total 20", len(res.Rows), res.TotalCount)
	}

	if _, err := c.Read(context.Background(), q); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got := r.counts.Load(); got != 1 {
		t.Errorf("store queried %d times, want 1", got)
	}
	if st := c.Stats(); st.Hits != 1 || st.Misses != 1 {
		t.Errorf("Stats() = %+v, want 1 hit and 1 miss", st)
	}
}

func TestReadRequiresOwner(t *testing.T) {
	c := New(memory.New(), logger.NewNop(), Options{})
	if _, err := c.Read(context.Background(), domain.Query{}); !errors.Is(err, domain.ErrNoOwner) {
		t.Errorf("Read() error = %v, want ErrNoOwner", err)
	}
}

func TestInvalidateIsIdempotentAndOwnerScoped(t *testing.T) {
	mem := memory.New()
	seed(t, mem, "u1", 3)
	seed(t, mem, "u2", 3)
	r := &countingReader{inner: mem}
	c := New(r, logger.NewNop(), Options{})
	ctx := context.Background()

	q1 := domain.Query{OwnerID: "u1"}
	q2 := domain.Query{OwnerID: "u2"}
	_, _ = c.Read(ctx, q1)
	_, _ = c.Read(ctx, q2)

	c.Invalidate("u1")
	c.Invalidate("u1")

	if _, _, fresh := c.Peek(q1); fresh {
		t.Error("u1 entry should be stale after Invalidate")
	}
	if _, _, fresh := c.Peek(q2); !fresh {
		t.Error("u2 entry should stay fresh")
	}

	_, _ = c.Read(ctx, q1)
	if got := r.counts.Load(); got != 3 {
		t.Errorf("store queried %d times, want 3 (one refetch after double invalidation)", got)
	}
}

func TestInvalidateMatching(t *testing.T) {
	mem := memory.New()
	seed(t, mem, "u1", 3)
	c := New(mem, logger.NewNop(), Options{})
	ctx := context.Background()

	all := domain.Query{OwnerID: "u1"}
	search := domain.Query{OwnerID: "u1", Search: "react"}
	_, _ = c.Read(ctx, all)
	_, _ = c.Read(ctx, search)

	c.InvalidateMatching("u1", func(q domain.Query) bool { return q.Search != "" })

	if _, _, fresh := c.Peek(all); !fresh {
		t.Error("unmatched entry should stay fresh")
	}
	if _, _, fresh := c.Peek(search); fresh {
		t.Error("matched entry should be stale")
	}
}

func TestEntriesExpireAfterStaleTime(t *testing.T) {
	mem := memory.New()
	seed(t, mem, "u1", 1)

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	c := New(mem, logger.NewNop(), Options{StaleTime: time.Minute, Now: clock})

	q := domain.Query{OwnerID: "u1"}
	_, _ = c.Read(context.Background(), q)

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()

	if _, ok, fresh := c.Peek(q); !ok || fresh {
		t.Errorf("Peek() = (ok=%v, fresh=%v), want stale entry", ok, fresh)
	}
	if n := c.Sweep(); n != 1 {
		t.Errorf("Sweep() removed %d, want 1", n)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after sweep, want 0", c.Len())
	}
}

func TestFetchErrorsAreNotCached(t *testing.T) {
	boom := errors.New("connection refused")
	r := &countingReader{inner: memory.New(), fail: boom}
	c := New(r, logger.NewNop(), Options{})

	_, err := c.Read(context.Background(), domain.Query{OwnerID: "u1"})
	var fErr *domain.FetchError
	if !errors.As(err, &fErr) || !errors.Is(err, boom) {
		t.Fatalf("Read() error = %v, want FetchError wrapping %v", err, boom)
	}
	if c.Len() != 0 {
		t.Error("failed read must not be cached")
	}

	r.fail = nil
	if _, err := c.Read(context.Background(), domain.Query{OwnerID: "u1"}); err != nil {
		t.Errorf("Read() after recovery error = %v", err)
	}
}

func TestConcurrentReadsShareOneFetch(t *testing.T) {
	mem := memory.New()
	seed(t, mem, "u1", 5)
	r := &countingReader{inner: mem, gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	c := New(r, logger.NewNop(), Options{})
	q := domain.Query{OwnerID: "u1"}

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	read := func() {
		defer wg.Done()
		_, err := c.Read(context.Background(), q)
		errs <- err
	}

	wg.Add(1)
	go read()
	<-r.entered

	wg.Add(1)
	go read()
	// give the second reader time to join the flight
	time.Sleep(20 * time.Millisecond)
	close(r.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
	}
	if got := r.counts.Load(); got != 1 {
		t.Errorf("store queried %d times, want 1", got)
	}
}

func TestInvalidationDuringFetchIsNotCachedAsFresh(t *testing.T) {
	mem := memory.New()
	seed(t, mem, "u1", 1)
	r := &countingReader{inner: mem, gate: make(chan struct{}), entered: make(chan struct{}, 4)}
	c := New(r, logger.NewNop(), Options{})
	q := domain.Query{OwnerID: "u1"}

	done := make(chan Result, 1)
	go func() {
		res, _ := c.Read(context.Background(), q)
		done <- res
	}()

	<-r.entered
	// a write lands while the first fetch is in flight
	_, _ = mem.Insert(context.Background(), "u1", domain.Input{Title: "new", URL: "https://new.example"})
	c.Invalidate("u1")
	close(r.gate)

	res := <-done
	if res.TotalCount != 2 {
		t.Errorf("TotalCount = %d, want 2 (read must reflect the write that invalidated it)", res.TotalCount)
	}
	if got := r.counts.Load(); got != 2 {
		t.Errorf("store queried %d times, want 2 (superseded fetch retried)", got)
	}
	if _, _, fresh := c.Peek(q); !fresh {
		t.Error("retried result should be cached as fresh")
	}
}

func TestPurge(t *testing.T) {
	mem := memory.New()
	seed(t, mem, "u1", 1)
	seed(t, mem, "u2", 1)
	c := New(mem, logger.NewNop(), Options{})
	ctx := context.Background()

	_, _ = c.Read(ctx, domain.Query{OwnerID: "u1"})
	_, _ = c.Read(ctx, domain.Query{OwnerID: "u1", Page: 2})
	_, _ = c.Read(ctx, domain.Query{OwnerID: "u2"})

	c.Purge("u1")
	if c.Len() != 1 {
		t.Errorf("Len() = %d after Purge, want 1", c.Len())
	}
}

func TestReadHonoursCallerCancellation(t *testing.T) {
	mem := memory.New()
	r := &countingReader{inner: mem, gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	c := New(r, logger.NewNop(), Options{})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := c.Read(ctx, domain.Query{OwnerID: "u1"})
		errc <- err
	}()

	<-r.entered
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Errorf("Read() error = %v, want context.Canceled", err)
	}
	close(r.gate)
}
