package dispatch

import (
	"fmt"
	"testing"
	"time"

	"friday/internal/agenda"
)

func TestQueuePopDueOrdering(t *testing.T) {
	t.Parallel()
	q := NewQueue()
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	// Inserted out of order on purpose.
	q.Insert("c", base.Add(3*time.Minute))
	q.Insert("a", base.Add(1*time.Minute))
	q.Insert("b", base.Add(2*time.Minute))

	due := q.PopDue(base.Add(2 * time.Minute))
	if len(due) != 2 || due[0] != "a" || due[1] != "b" {
		t.Fatalf("PopDue = %v, want [a b]", due)
	}
	if q.Len() != 1 {
		t.Fatalf("Len = %d, want 1", q.Len())
	}
}

func TestQueuePopDueNeverReturnsFutureEntries(t *testing.T) {
	t.Parallel()
	q := NewQueue()
	now := time.Now()
	q.Insert("future", now.Add(time.Hour))

	if due := q.PopDue(now); len(due) != 0 {
		t.Fatalf("PopDue returned future entry: %v", due)
	}
	if q.Len() != 1 {
		t.Fatal("future entry must stay queued")
	}
}

func TestQueueFIFOTieBreak(t *testing.T) {
	t.Parallel()
	q := NewQueue()
	at := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	// Identical fire times drain in insertion order.
	for i := 0; i < 10; i++ {
		q.Insert(fmt.Sprintf("e%d", i), at)
	}
	due := q.PopDue(at)
	if len(due) != 10 {
		t.Fatalf("len(due) = %d, want 10", len(due))
	}
	for i, id := range due {
		if want := fmt.Sprintf("e%d", i); id != want {
			t.Fatalf("due[%d] = %s, want %s", i, id, want)
		}
	}
}

func TestQueuePeekNextFireTime(t *testing.T) {
	t.Parallel()
	q := NewQueue()
	if _, ok := q.PeekNextFireTime(); ok {
		t.Fatal("empty queue must report no next fire time")
	}

	early := time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC)
	q.Insert("late", early.Add(time.Hour))
	q.Insert("early", early)

	got, ok := q.PeekNextFireTime()
	if !ok || !got.Equal(early) {
		t.Fatalf("PeekNextFireTime = %v/%v, want %v/true", got, ok, early)
	}
	if q.Len() != 2 {
		t.Fatal("Peek must not remove entries")
	}
}

func TestQueueInsertUpsertsByID(t *testing.T) {
	t.Parallel()
	q := NewQueue()
	at := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	q.Insert("x", at)
	q.Insert("x", at.Add(time.Hour))

	if q.Len() != 1 {
		t.Fatalf("Len = %d, want 1", q.Len())
	}
	got, _ := q.PeekNextFireTime()
	if !got.Equal(at.Add(time.Hour)) {
		t.Fatalf("upsert kept old fire time: %v", got)
	}
}

func TestQueueRemove(t *testing.T) {
	t.Parallel()
	q := NewQueue()
	at := time.Now()
	q.Insert("keep", at)
	q.Insert("drop", at)

	if !q.Remove("drop") {
		t.Fatal("Remove(drop) = false")
	}
	if q.Remove("drop") {
		t.Fatal("Remove twice must report false")
	}
	due := q.PopDue(at)
	if len(due) != 1 || due[0] != "keep" {
		t.Fatalf("PopDue = %v, want [keep]", due)
	}
}

func TestQueueRebuildOnlyPending(t *testing.T) {
	t.Parallel()
	q := NewQueue()
	q.Insert("stale", time.Now())

	at := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	n := q.Rebuild([]agenda.Commitment{
		{ID: "p1", Status: agenda.StatusPending, FireAt: at},
		{ID: "f1", Status: agenda.StatusFired, FireAt: at},
		{ID: "p2", Status: agenda.StatusPending, FireAt: at.Add(time.Minute)},
		{ID: "c1", Status: agenda.StatusCancelled, FireAt: at},
	})
	if n != 2 {
		t.Fatalf("Rebuild inserted %d, want 2", n)
	}
	if q.Len() != 2 {
		t.Fatalf("Len = %d, want 2 (stale entry must be discarded)", q.Len())
	}
	due := q.PopDue(at.Add(time.Hour))
	if len(due) != 2 || due[0] != "p1" || due[1] != "p2" {
		t.Fatalf("PopDue after rebuild = %v, want [p1 p2]", due)
	}
}
