package history

import (
	"context"
	"sync"
	"testing"
	"time"

	"ronbot/internal/eventbus"
	"ronbot/internal/remind"
	logx "ronbot/pkg/logx"
)

type memStore struct {
	mu      sync.Mutex
	entries []Entry
}

func (m *memStore) Append(ctx context.Context, e Entry) error {
	m.mu.Lock()
	m.entries = append(m.entries, e)
	m.mu.Unlock()
	return nil
}

func (m *memStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out, nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func TestRecorderWritesOutcomes(t *testing.T) {
	t.Parallel()
	store := &memStore{}
	bus := eventbus.New()
	rec := NewRecorder(store, bus, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = rec.Run(ctx)
		close(done)
	}()

	// Give Run a moment to subscribe before publishing.
	time.Sleep(20 * time.Millisecond)

	now := time.Now().UTC()
	bus.Publish(eventbus.Event{Type: remind.EventDelivered, Data: remind.ReminderEvent{
		ID: "r-ok", ContextID: "ctx", DueAt: now.Add(-time.Second), At: now, Latency: time.Second,
	}})
	bus.Publish(eventbus.Event{Type: remind.EventFailed, Data: remind.ReminderEvent{
		ID: "r-bad", ContextID: "ctx", DueAt: now, At: now, Error: "callback unreachable",
	}})
	bus.Publish(eventbus.Event{Type: "config.applied"}) // unrelated, must be ignored

	deadline := time.Now().Add(2 * time.Second)
	for store.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not exit after cancel")
	}

	entries, _ := store.Recent(context.Background(), 0)
	if len(entries) != 2 {
		t.Fatalf("recorded %d entries, want 2", len(entries))
	}
	if entries[0].Outcome != OutcomeDelivered || entries[0].ReminderID != "r-ok" || entries[0].LatencyMS != 1000 {
		t.Fatalf("unexpected delivered entry: %+v", entries[0])
	}
	if entries[1].Outcome != OutcomeFailed || entries[1].Error != "callback unreachable" {
		t.Fatalf("unexpected failed entry: %+v", entries[1])
	}
}

func TestRecorderDisabled(t *testing.T) {
	t.Parallel()
	rec := NewRecorder(nil, eventbus.New(), logx.Nop())
	if err := rec.Run(context.Background()); err != nil {
		t.Fatalf("Run with nil store error: %v", err)
	}
}
