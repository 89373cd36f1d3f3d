package livesync

import (
	"sync"

	"github.com/MrSnakeDoc/marks/internal/domain"
)

// Session holds at most one watch, for the owner currently signed in on a tab.
type Session struct {
	listener *Listener
	onEvent  func(domain.ChangeEvent)

	mu      sync.Mutex
	ownerID string
	release func()
}

func (l *Listener) NewSession(onEvent func(domain.ChangeEvent)) *Session {
	return &Session{listener: l, onEvent: onEvent}
}

// SetOwner moves the watch to ownerID, releasing the previous owner first.
// An empty ownerID only releases.
func (s *Session) SetOwner(ownerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ownerID == s.ownerID {
		return
	}
	if s.release != nil {
		s.release()
		s.release = nil
	}
	s.ownerID = ownerID
	if ownerID != "" {
		s.release = s.listener.Watch(ownerID, s.onEvent)
	}
}

func (s *Session) OwnerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ownerID
}

// Close releases the watch.
func (s *Session) Close() {
	s.SetOwner("")
}
