package debounce

import (
	"sync"
	"testing"
	"time"
)

type sink struct {
	mu  sync.Mutex
	got []string
}

func (s *sink) deliver(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, v)
}

func (s *sink) values() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.got...)
}

func TestLastValueWins(t *testing.T) {
	s := &sink{}
	d := New(30*time.Millisecond, s.deliver)

	for _, v := range []string{"r", "re", "rea", "react"} {
		d.Push(v)
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)

	got := s.values()
	if len(got) != 1 || got[0] != "react" {
		t.Errorf("delivered %v, want [react]", got)
	}
}

func TestQuietPeriodsDeliverEach(t *testing.T) {
	s := &sink{}
	d := New(10*time.Millisecond, s.deliver)

	d.Push("go")
	time.Sleep(60 * time.Millisecond)
	d.Push("rust")
	time.Sleep(60 * time.Millisecond)

	got := s.values()
	if len(got) != 2 || got[0] != "go" || got[1] != "rust" {
		t.Errorf("delivered %v, want [go rust]", got)
	}
}

func TestFlushAndCancel(t *testing.T) {
	s := &sink{}
	d := New(time.Hour, s.deliver)

	if d.Flush() {
		t.Error("Flush() with nothing pending should report false")
	}

	d.Push("now")
	if !d.Flush() {
		t.Error("Flush() should deliver the pending value")
	}

	d.Push("never")
	d.Cancel()
	if d.Flush() {
		t.Error("Flush() after Cancel should report false")
	}

	got := s.values()
	if len(got) != 1 || got[0] != "now" {
		t.Errorf("delivered %v, want [now]", got)
	}
}

func TestStopIgnoresPush(t *testing.T) {
	s := &sink{}
	d := New(5*time.Millisecond, s.deliver)

	d.Stop()
	d.Push("late")
	time.Sleep(30 * time.Millisecond)

	if got := s.values(); len(got) != 0 {
		t.Errorf("delivered %v after Stop", got)
	}
}

func TestDefaultWait(t *testing.T) {
	d := New(0, func(int) {})
	if d.wait != DefaultWait {
		t.Errorf("wait = %v, want %v", d.wait, DefaultWait)
	}
}
