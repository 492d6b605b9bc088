package alerting

import (
	"sync"
	"time"
)

// DefaultRecentWindow is how long a dispatched alert id suppresses repeats.
const DefaultRecentWindow = time.Hour

// RecentSet remembers recently dispatched alert ids in memory.
type RecentSet struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]time.Time
	now    func() time.Time
}

// NewRecentSet builds a set with the given suppression window.
func NewRecentSet(window time.Duration, now func() time.Time) *RecentSet {
	if window <= 0 {
		window = DefaultRecentWindow
	}
	if now == nil {
		now = time.Now
	}
	return &RecentSet{window: window, seen: make(map[string]time.Time), now: now}
}

// Filter drops alerts whose id was remembered within the window, and
// duplicates within alerts itself.
func (s *RecentSet) Filter(alerts []Alert) []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire()

	out := make([]Alert, 0, len(alerts))
	batch := make(map[string]struct{}, len(alerts))
	for _, a := range alerts {
		if _, ok := s.seen[a.ID]; ok {
			continue
		}
		if _, ok := batch[a.ID]; ok {
			continue
		}
		batch[a.ID] = struct{}{}
		out = append(out, a)
	}
	return out
}

// Remember records alerts as dispatched now.
func (s *RecentSet) Remember(alerts []Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for _, a := range alerts {
		s.seen[a.ID] = now
	}
	s.expire()
}

// Len reports how many ids are currently suppressed.
func (s *RecentSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire()
	return len(s.seen)
}

func (s *RecentSet) expire() {
	cutoff := s.now().Add(-s.window)
	for id, at := range s.seen {
		if !at.After(cutoff) {
			delete(s.seen, id)
		}
	}
}
