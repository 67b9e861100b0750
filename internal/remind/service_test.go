package remind

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ronbot/internal/eventbus"
	logx "ronbot/pkg/logx"
)

type stubSender struct {
	mu      sync.Mutex
	sent    []Reminder
	failIDs map[string]error

	inflight atomic.Int32
	maxSeen  atomic.Int32
	delay    time.Duration
}

func (s *stubSender) Send(ctx context.Context, r Reminder) error {
	cur := s.inflight.Add(1)
	for {
		max := s.maxSeen.Load()
		if cur <= max || s.maxSeen.CompareAndSwap(max, cur) {
			break
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.inflight.Add(-1)

	s.mu.Lock()
	s.sent = append(s.sent, r)
	err := s.failIDs[r.ID]
	s.mu.Unlock()
	return err
}

func (s *stubSender) sentIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.sent))
	for _, r := range s.sent {
		ids = append(ids, r.ID)
	}
	return ids
}

func drainEvents(ch <-chan eventbus.Event) []eventbus.Event {
	var out []eventbus.Event
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestSweepDeliversDue(t *testing.T) {
	t.Parallel()
	store := NewStore()
	sender := &stubSender{}
	bus := eventbus.New()
	svc := New(Config{Enabled: true}, store, sender, bus, logx.Nop())

	store.Insert(Reminder{ID: "due-1", Message: "first", DueAt: time.Now().Add(-time.Minute)})
	store.Insert(Reminder{ID: "due-2", Message: "second", DueAt: time.Now().Add(-time.Second)})
	store.Insert(Reminder{ID: "later", Message: "future", DueAt: time.Now().Add(time.Hour)})

	ch, unsub := bus.Subscribe(8)
	defer unsub()

	svc.sweep(context.Background(), time.Now().Add(time.Second))

	ids := sender.sentIDs()
	if len(ids) != 2 {
		t.Fatalf("sent %d reminders, want 2 (ids: %v)", len(ids), ids)
	}
	if got := store.Size(); got != 1 {
		t.Fatalf("Size after sweep = %d, want 1", got)
	}

	events := drainEvents(ch)
	delivered := 0
	for _, ev := range events {
		if ev.Type == EventDelivered {
			delivered++
		}
	}
	if delivered != 2 {
		t.Fatalf("delivered events = %d, want 2", delivered)
	}

	snap := svc.Snapshot()
	if snap.Delivered != 2 || snap.Failed != 0 {
		t.Fatalf("Snapshot delivered/failed = %d/%d, want 2/0", snap.Delivered, snap.Failed)
	}
	if snap.LastSweepDue != 2 {
		t.Fatalf("LastSweepDue = %d, want 2", snap.LastSweepDue)
	}
}

func TestSweepFailureIsNotRetried(t *testing.T) {
	t.Parallel()
	store := NewStore()
	sender := &stubSender{failIDs: map[string]error{"doomed": errors.New("callback unreachable")}}
	bus := eventbus.New()
	svc := New(Config{Enabled: true}, store, sender, bus, logx.Nop())

	store.Insert(Reminder{ID: "doomed", Message: "will fail", DueAt: time.Now().Add(-time.Minute)})

	ch, unsub := bus.Subscribe(8)
	defer unsub()

	sweepAt := time.Now().Add(time.Second)
	svc.sweep(context.Background(), sweepAt)

	// The claim removed it; a later sweep must not see it again.
	if got := store.Size(); got != 0 {
		t.Fatalf("Size after failed delivery = %d, want 0", got)
	}
	svc.sweep(context.Background(), sweepAt.Add(time.Minute))
	if got := len(sender.sentIDs()); got != 1 {
		t.Fatalf("send attempts = %d, want 1 (no retry)", got)
	}

	events := drainEvents(ch)
	var failed *eventbus.Event
	for i := range events {
		if events[i].Type == EventFailed {
			failed = &events[i]
		}
	}
	if failed == nil {
		t.Fatalf("no %s event published (got %d events)", EventFailed, len(events))
	}
	ev, ok := failed.Data.(ReminderEvent)
	if !ok {
		t.Fatalf("event data type = %T, want ReminderEvent", failed.Data)
	}
	if ev.ID != "doomed" || ev.Error == "" {
		t.Fatalf("unexpected failure event: %+v", ev)
	}

	snap := svc.Snapshot()
	if snap.Failed != 1 {
		t.Fatalf("Snapshot failed = %d, want 1", snap.Failed)
	}
}

func TestSweepBoundsConcurrency(t *testing.T) {
	t.Parallel()
	store := NewStore()
	sender := &stubSender{delay: 20 * time.Millisecond}
	svc := New(Config{Enabled: true, MaxConcurrent: 2}, store, sender, eventbus.New(), logx.Nop())

	for i := 0; i < 6; i++ {
		store.Insert(Reminder{DueAt: time.Now().Add(-time.Minute)})
	}

	svc.sweep(context.Background(), time.Now().Add(time.Second))

	if got := len(sender.sentIDs()); got != 6 {
		t.Fatalf("sent %d reminders, want 6", got)
	}
	if max := sender.maxSeen.Load(); max > 2 {
		t.Fatalf("max in-flight deliveries = %d, want <= 2", max)
	}
}

func TestServiceStartStop(t *testing.T) {
	t.Parallel()
	svc := New(
		Config{Enabled: true, Sweep: "@every 1h"},
		NewStore(), &stubSender{}, eventbus.New(), logx.Nop(),
	)

	ctx := context.Background()
	svc.Start(ctx)
	if snap := svc.Snapshot(); !snap.Running {
		t.Fatal("Snapshot.Running = false after Start")
	}
	// Second Start is a no-op while running.
	svc.Start(ctx)

	svc.Stop(ctx)
	if snap := svc.Snapshot(); snap.Running {
		t.Fatal("Snapshot.Running = true after Stop")
	}

	// Start again after a full stop.
	svc.Start(ctx)
	svc.Stop(ctx)
}

func TestServiceApplyRestartsOnScheduleChange(t *testing.T) {
	t.Parallel()
	svc := New(
		Config{Enabled: true, Sweep: "@every 1h"},
		NewStore(), &stubSender{}, eventbus.New(), logx.Nop(),
	)

	ctx := context.Background()
	svc.Start(ctx)
	defer svc.Stop(ctx)

	svc.Apply(Config{Enabled: true, Sweep: "30s"})
	snap := svc.Snapshot()
	if snap.Sweep != "@every 30s" {
		t.Fatalf("Sweep after Apply = %q, want %q", snap.Sweep, "@every 30s")
	}
	if !snap.Running {
		t.Fatal("service stopped by Apply")
	}
}
