package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrSnakeDoc/marks/internal/domain"
)

func fixedClock() func() time.Time {
	t0 := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return t0 }
}

func TestInsertOrdersNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := New(WithClock(fixedClock()))

	first, _ := s.Insert(ctx, "u1", domain.Input{Title: "first", URL: "https://one.example"})
	second, _ := s.Insert(ctx, "u1", domain.Input{Title: "second", URL: "https://two.example"})

	if !second.CreatedAt.After(first.CreatedAt) {
		t.Fatalf("created_at should be strictly increasing, got %v then %v", first.CreatedAt, second.CreatedAt)
	}

	rows, err := s.Query(ctx, "u1", "", 0, 10)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(rows) != 2 || rows[0].ID != second.ID || rows[1].ID != first.ID {
		t.Errorf("Query() order = %+v, want newest first", rows)
	}
}

func TestQueryWindowAndCount(t *testing.T) {
	ctx := context.Background()
	s := New()

	for i := 0; i < 20; i++ {
		if _, err := s.Insert(ctx, "u1", domain.Input{Title: "bm", URL: "https://example.com"}); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}
	_, _ = s.Insert(ctx, "u2", domain.Input{Title: "other", URL: "https://example.com"})

	n, _ := s.Count(ctx, "u1", "")
	if n != 20 {
		t.Errorf("Count() = %d, want 20", n)
	}

	tests := []struct {
		offset, limit, want int
	}{
		{0, 9, 9},
		{9, 9, 9},
		{18, 9, 2},
		{27, 9, 0},
	}
	for _, tt := range tests {
		rows, err := s.Query(ctx, "u1", "", tt.offset, tt.limit)
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		if len(rows) != tt.want {
			t.Errorf("Query(offset=%d, limit=%d) = %d rows, want %d", tt.offset, tt.limit, len(rows), tt.want)
		}
	}
}

func TestSearchMatchesTitleOrURL(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, _ = s.Insert(ctx, "u1", domain.Input{Title: "React Docs", URL: "https://react.dev"})
	_, _ = s.Insert(ctx, "u1", domain.Input{Title: "Go Tour", URL: "https://go.dev"})

	if n, _ := s.Count(ctx, "u1", "react"); n != 1 {
		t.Errorf("Count(react) = %d, want 1", n)
	}
	if n, _ := s.Count(ctx, "u1", "dev"); n != 2 {
		t.Errorf("Count(dev) = %d, want 2", n)
	}
	rows, _ := s.Query(ctx, "u1", "REACT", 0, 10)
	if len(rows) != 1 || rows[0].Title != "React Docs" {
		t.Errorf("Query(REACT) = %+v", rows)
	}
}

func TestUpdateAndDeleteRequireOwner(t *testing.T) {
	ctx := context.Background()
	s := New()
	b, _ := s.Insert(ctx, "u1", domain.Input{Title: "mine", URL: "https://example.com"})

	n, err := s.Update(ctx, b.ID, "u2", domain.Input{Title: "stolen", URL: "https://evil.example"})
	if err != nil || n != 0 {
		t.Fatalf("Update() by other owner = (%d, %v), want (0, nil)", n, err)
	}
	n, err = s.Delete(ctx, b.ID, "u2")
	if err != nil || n != 0 {
		t.Fatalf("Delete() by other owner = (%d, %v), want (0, nil)", n, err)
	}

	got, ok := s.Get(b.ID)
	if !ok || got.Title != "mine" {
		t.Errorf("record was mutated by another owner: %+v", got)
	}

	if n, _ := s.Update(ctx, b.ID, "u1", domain.Input{Title: "renamed", URL: "https://example.com"}); n != 1 {
		t.Errorf("Update() by owner affected %d rows, want 1", n)
	}
	if n, _ := s.Delete(ctx, b.ID, "u1"); n != 1 {
		t.Errorf("Delete() by owner affected %d rows, want 1", n)
	}
	if _, ok := s.Get(b.ID); ok {
		t.Error("record still present after delete")
	}
}

func TestSubscribeDeliversOwnerEventsOnly(t *testing.T) {
	ctx := context.Background()
	s := New()

	var got []domain.ChangeEvent
	sub, err := s.Subscribe(ctx, "u1", func(ev domain.ChangeEvent) { got = append(got, ev) })
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	b, _ := s.Insert(ctx, "u1", domain.Input{Title: "a", URL: "https://a.example"})
	_, _ = s.Insert(ctx, "u2", domain.Input{Title: "b", URL: "https://b.example"})
	_, _ = s.Update(ctx, b.ID, "u1", domain.Input{Title: "a2", URL: "https://a.example"})
	_, _ = s.Delete(ctx, b.ID, "u1")

	want := []domain.EventType{domain.EventInsert, domain.EventUpdate, domain.EventDelete}
	if len(got) != len(want) {
		t.Fatalf("received %d events, want %d", len(got), len(want))
	}
	for i, ev := range got {
		if ev.Type != want[i] || ev.OwnerID != "u1" {
			t.Errorf("event[%d] = %+v, want type %s for u1", i, ev, want[i])
		}
	}

	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if s.Subscribers("u1") != 0 {
		t.Error("subscription still registered after Unsubscribe")
	}
	select {
	case <-sub.Done():
	default:
		t.Error("Done() not closed after Unsubscribe")
	}
}

func TestDropFeedReportsError(t *testing.T) {
	s := New()
	sub, _ := s.Subscribe(context.Background(), "u1", func(domain.ChangeEvent) {})

	boom := errors.New("connection reset")
	s.DropFeed("u1", boom)

	<-sub.Done()
	if !errors.Is(sub.Err(), boom) {
		t.Errorf("Err() = %v, want %v", sub.Err(), boom)
	}
}
