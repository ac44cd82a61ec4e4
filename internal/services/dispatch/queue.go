package dispatch

import (
	"container/heap"
	"sync"
	"time"

	"friday/internal/agenda"
)

// entry is the lightweight queue record: when to fire and which commitment.
// seq breaks fire-time ties in insertion order so delivery is deterministic.
type entry struct {
	id     string
	fireAt time.Time
	seq    uint64
	index  int // heap index, maintained by entryHeap
}

type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	if h[i].fireAt.Equal(h[j].fireAt) {
		return h[i].seq < h[j].seq
	}
	return h[i].fireAt.Before(h[j].fireAt)
}
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Queue is a thread-safe min-priority queue of pending commitments.
//
// Insert may be called concurrently with PopDue and other Inserts; a single
// mutex serializes all mutations (tens-to-low-thousands of entries, so
// contention is a non-issue).
type Queue struct {
	mu   sync.Mutex
	h    entryHeap
	byID map[string]*entry
	seq  uint64
}

func NewQueue() *Queue {
	return &Queue{byID: map[string]*entry{}}
}

// Insert adds an entry. Re-inserting an existing id moves it to the new
// fire time (upsert, mirroring how schedules replace by name).
func (q *Queue) Insert(id string, fireAt time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if old, ok := q.byID[id]; ok {
		heap.Remove(&q.h, old.index)
	}
	q.seq++
	e := &entry{id: id, fireAt: fireAt, seq: q.seq}
	q.byID[id] = e
	heap.Push(&q.h, e)
}

// Remove drops the entry for id, if present.
func (q *Queue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.byID[id]
	if !ok {
		return false
	}
	heap.Remove(&q.h, e.index)
	delete(q.byID, id)
	return true
}

// PopDue atomically removes and returns every id whose fire time is <= now,
// in ascending fire-time order (insertion order among ties). Entries not yet
// due stay put.
func (q *Queue) PopDue(now time.Time) []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	var due []string
	for len(q.h) > 0 && !q.h[0].fireAt.After(now) {
		e := heap.Pop(&q.h).(*entry)
		delete(q.byID, e.id)
		due = append(due, e.id)
	}
	return due
}

// PeekNextFireTime returns the smallest pending fire time without removing
// it. ok is false when the queue is empty.
func (q *Queue) PeekNextFireTime() (at time.Time, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.h) == 0 {
		return time.Time{}, false
	}
	return q.h[0].fireAt, true
}

// Rebuild discards the queue and re-inserts one entry per pending
// commitment, in the order given. Fired and cancelled commitments are never
// re-queued. This is the sole recovery path after a restart.
func (q *Queue) Rebuild(commitments []agenda.Commitment) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.h = q.h[:0]
	q.byID = map[string]*entry{}
	q.seq = 0
	n := 0
	for _, c := range commitments {
		if c.Status != agenda.StatusPending {
			continue
		}
		q.seq++
		e := &entry{id: c.ID, fireAt: c.FireAt, seq: q.seq}
		q.byID[c.ID] = e
		heap.Push(&q.h, e)
		n++
	}
	return n
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.h)
}
