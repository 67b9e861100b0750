package remind

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store holds pending reminders, keyed by id. One mutex serializes inserts
// against snapshots; that single synchronization point is what makes the
// claim-and-remove contract race-free. Nothing here survives a restart.
type Store struct {
	mu    sync.Mutex
	items map[string]Reminder
}

func NewStore() *Store {
	return &Store{items: map[string]Reminder{}}
}

// Insert adds a pending reminder and returns its assigned id.
//
// A zero or past DueAt is coerced to now, so the reminder fires on the next
// sweep instead of being silently unreachable.
func (s *Store) Insert(r Reminder) string {
	now := time.Now().UTC()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.DueAt.Before(now) {
		r.DueAt = now
	}
	r.Status = StatusPending

	s.mu.Lock()
	s.items[r.ID] = r
	s.mu.Unlock()
	return r.ID
}

// DueSnapshot returns every reminder with DueAt <= now and removes them in
// the same critical section. A reminder is returned by exactly one call,
// no matter how sweeps overlap; removal here is the sole re-delivery guard.
//
// Results are ordered by DueAt (oldest first) for stable logs.
func (s *Store) DueSnapshot(now time.Time) []Reminder {
	s.mu.Lock()
	var due []Reminder
	for id, r := range s.items {
		if !r.DueAt.After(now) {
			due = append(due, r)
			delete(s.items, id)
		}
	}
	s.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].DueAt.Before(due[j].DueAt) })
	return due
}

// Size reports the number of pending reminders. Diagnostics only.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Pending returns a copy of all pending reminders ordered by DueAt.
// Diagnostics only; the reminders stay in the store.
func (s *Store) Pending() []Reminder {
	s.mu.Lock()
	out := make([]Reminder, 0, len(s.items))
	for _, r := range s.items {
		out = append(out, r)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.Before(out[j].DueAt) })
	return out
}
