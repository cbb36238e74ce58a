package announcement

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Dismissals remembers which announcements each login session has dismissed. It is process
// memory only: a restart or a logout forgets everything.
type Dismissals struct {
	mu       sync.Mutex
	sessions map[string]*sessionDismissals
	now      func() time.Time
}

type sessionDismissals struct {
	ids      map[uuid.UUID]struct{}
	lastSeen time.Time
}

func NewDismissals() *Dismissals {
	return &Dismissals{sessions: make(map[string]*sessionDismissals), now: time.Now}
}

func (d *Dismissals) Dismiss(sessionID string, id uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.sessions[sessionID]
	if !ok {
		s = &sessionDismissals{ids: make(map[uuid.UUID]struct{})}
		d.sessions[sessionID] = s
	}
	s.ids[id] = struct{}{}
	s.lastSeen = d.now()
}

// For returns a snapshot predicate for one session. Later dismissals do not affect it.
func (d *Dismissals) For(sessionID string) func(uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.sessions[sessionID]
	if !ok {
		return func(uuid.UUID) bool { return false }
	}
	s.lastSeen = d.now()
	ids := make(map[uuid.UUID]struct{}, len(s.ids))
	for id := range s.ids {
		ids[id] = struct{}{}
	}
	return func(id uuid.UUID) bool {
		_, ok := ids[id]
		return ok
	}
}

func (d *Dismissals) Clear(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.sessions, sessionID)
}

// Sweep drops sessions idle for longer than maxIdle and returns how many were removed.
func (d *Dismissals) Sweep(maxIdle time.Duration) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := d.now().Add(-maxIdle)
	removed := 0
	for id, s := range d.sessions {
		if s.lastSeen.Before(cutoff) {
			delete(d.sessions, id)
			removed++
		}
	}
	return removed
}

func (d *Dismissals) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}
