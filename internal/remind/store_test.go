package remind

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestStoreInsertAssignsID(t *testing.T) {
	t.Parallel()
	s := NewStore()

	id := s.Insert(Reminder{Message: "water plants", DueAt: time.Now().Add(time.Hour)})
	if id == "" {
		t.Fatal("Insert returned empty id")
	}
	if got := s.Size(); got != 1 {
		t.Fatalf("Size = %d, want 1", got)
	}
}

func TestStoreInsertCoercesPastDue(t *testing.T) {
	t.Parallel()
	s := NewStore()

	s.Insert(Reminder{Message: "already late", DueAt: time.Now().Add(-time.Hour)})

	due := s.DueSnapshot(time.Now().Add(time.Second))
	if len(due) != 1 {
		t.Fatalf("DueSnapshot returned %d reminders, want 1", len(due))
	}
	if due[0].DueAt.Before(time.Now().Add(-time.Minute)) {
		t.Fatalf("past DueAt was not coerced forward: %v", due[0].DueAt)
	}
}

func TestStoreDueSnapshotBoundary(t *testing.T) {
	t.Parallel()
	s := NewStore()

	due := time.Now().Add(time.Hour).UTC()
	s.Insert(Reminder{Message: "on the tick", DueAt: due})

	if got := s.DueSnapshot(due.Add(-time.Nanosecond)); len(got) != 0 {
		t.Fatalf("claimed %d reminders before due time", len(got))
	}
	// DueAt exactly equal to the sweep time counts as due.
	if got := s.DueSnapshot(due); len(got) != 1 {
		t.Fatalf("claimed %d reminders at due time, want 1", len(got))
	}
}

func TestStoreDueSnapshotRemoves(t *testing.T) {
	t.Parallel()
	s := NewStore()

	s.Insert(Reminder{Message: "one-shot", DueAt: time.Now().Add(-time.Minute)})
	sweep := time.Now().Add(time.Second)

	if got := s.DueSnapshot(sweep); len(got) != 1 {
		t.Fatalf("first snapshot claimed %d, want 1", len(got))
	}
	if got := s.DueSnapshot(sweep); len(got) != 0 {
		t.Fatalf("second snapshot claimed %d, want 0", len(got))
	}
	if got := s.Size(); got != 0 {
		t.Fatalf("Size = %d, want 0", got)
	}
}

func TestStoreDueSnapshotOrdering(t *testing.T) {
	t.Parallel()
	s := NewStore()

	base := time.Now().Add(time.Hour).UTC()
	s.Insert(Reminder{ID: "c", Message: "third", DueAt: base.Add(2 * time.Minute)})
	s.Insert(Reminder{ID: "a", Message: "first", DueAt: base})
	s.Insert(Reminder{ID: "b", Message: "second", DueAt: base.Add(time.Minute)})

	due := s.DueSnapshot(base.Add(time.Hour))
	if len(due) != 3 {
		t.Fatalf("claimed %d reminders, want 3", len(due))
	}
	for i, want := range []string{"a", "b", "c"} {
		if due[i].ID != want {
			t.Fatalf("due[%d].ID = %s, want %s", i, due[i].ID, want)
		}
	}
}

func TestStorePendingLeavesItems(t *testing.T) {
	t.Parallel()
	s := NewStore()

	s.Insert(Reminder{Message: "keep me", DueAt: time.Now().Add(time.Hour)})

	if got := s.Pending(); len(got) != 1 {
		t.Fatalf("Pending returned %d, want 1", len(got))
	}
	if got := s.Size(); got != 1 {
		t.Fatalf("Size after Pending = %d, want 1", got)
	}
}

func TestStoreClaimsAtMostOnce(t *testing.T) {
	t.Parallel()
	s := NewStore()

	const preloaded = 200
	const workers = 8
	const perWorker = 25

	for i := 0; i < preloaded; i++ {
		s.Insert(Reminder{ID: fmt.Sprintf("pre-%d", i), DueAt: time.Now().Add(-time.Minute)})
	}
	sweep := time.Now().Add(time.Minute)

	var mu sync.Mutex
	seen := map[string]int{}
	record := func(batch []Reminder) {
		mu.Lock()
		for _, r := range batch {
			seen[r.ID]++
		}
		mu.Unlock()
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				s.Insert(Reminder{ID: fmt.Sprintf("w%d-%d", w, i), DueAt: time.Now().Add(-time.Minute)})
				record(s.DueSnapshot(sweep))
			}
		}()
	}
	wg.Wait()
	record(s.DueSnapshot(sweep))

	want := preloaded + workers*perWorker
	if len(seen) != want {
		t.Fatalf("claimed %d distinct reminders, want %d", len(seen), want)
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("reminder %s claimed %d times", id, n)
		}
	}
	if got := s.Size(); got != 0 {
		t.Fatalf("Size after drain = %d, want 0", got)
	}
}
