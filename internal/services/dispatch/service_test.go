package dispatch

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"friday/internal/agenda"
	"friday/internal/storage"
	logx "friday/pkg/logx"
)

type fakeSink struct {
	mu    sync.Mutex
	got   []string
	fail  bool
	calls int
}

func (f *fakeSink) Notify(ctx context.Context, c agenda.Commitment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.got = append(f.got, c.Label)
	if f.fail {
		return errors.New("sink down")
	}
	return nil
}

func (f *fakeSink) labels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.got...)
}

func newTestService(t *testing.T, sink *fakeSink) (*Service, storage.Store) {
	t.Helper()
	st, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "store")}, logx.Nop())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	svc := New(Config{MaxSleep: 50 * time.Millisecond}, st, sink, logx.Nop(), nil)
	return svc, st
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestServiceDeliversDueCommitment(t *testing.T) {
	t.Parallel()
	sink := &fakeSink{}
	svc, st := newTestService(t, sink)
	ctx := context.Background()

	c := agenda.Commitment{ID: "r1", Kind: agenda.KindReminder, Label: "drink water",
		CreatedAt: time.Now(), FireAt: time.Now().Add(30 * time.Millisecond), Status: agenda.StatusPending}
	if err := st.Append(ctx, c); err != nil {
		t.Fatalf("Append: %v", err)
	}
	svc.Insert(c.ID, c.FireAt)

	svc.Start(ctx)
	defer svc.Stop(ctx)

	waitFor(t, func() bool { return len(sink.labels()) == 1 })
	if got := sink.labels()[0]; got != "drink water" {
		t.Fatalf("delivered %q, want %q", got, "drink water")
	}
	waitFor(t, func() bool {
		cc, err := st.Get(ctx, "r1")
		return err == nil && cc.Status == agenda.StatusFired
	})
}

func TestServiceWakesOnEarlierInsert(t *testing.T) {
	t.Parallel()
	sink := &fakeSink{}
	svc, st := newTestService(t, sink)
	ctx := context.Background()

	// A far-future entry keeps the loop asleep; the late insert must
	// interrupt that sleep, not wait out MaxSleep cycles until its turn.
	far := agenda.Commitment{ID: "far", Kind: agenda.KindMeeting, Label: "far meeting",
		CreatedAt: time.Now(), FireAt: time.Now().Add(time.Hour), Status: agenda.StatusPending}
	if err := st.Append(ctx, far); err != nil {
		t.Fatalf("Append: %v", err)
	}
	svc.Insert(far.ID, far.FireAt)
	svc.Start(ctx)
	defer svc.Stop(ctx)

	soon := agenda.Commitment{ID: "soon", Kind: agenda.KindReminder, Label: "take medicine",
		CreatedAt: time.Now(), FireAt: time.Now().Add(20 * time.Millisecond), Status: agenda.StatusPending}
	if err := st.Append(ctx, soon); err != nil {
		t.Fatalf("Append: %v", err)
	}
	svc.Insert(soon.ID, soon.FireAt)

	waitFor(t, func() bool { return len(sink.labels()) == 1 })
	if got := sink.labels()[0]; got != "take medicine" {
		t.Fatalf("delivered %q, want %q", got, "take medicine")
	}
	if svc.Snapshot().QueueLen != 1 {
		t.Fatal("far entry must stay queued")
	}
}

func TestServiceSinkErrorStillMarksFired(t *testing.T) {
	t.Parallel()
	sink := &fakeSink{fail: true}
	svc, st := newTestService(t, sink)
	ctx := context.Background()

	c := agenda.Commitment{ID: "bad", Kind: agenda.KindReminder, Label: "doomed",
		CreatedAt: time.Now(), FireAt: time.Now(), Status: agenda.StatusPending}
	if err := st.Append(ctx, c); err != nil {
		t.Fatalf("Append: %v", err)
	}
	svc.Insert(c.ID, c.FireAt)
	svc.Start(ctx)
	defer svc.Stop(ctx)

	// Fired despite the sink error: no infinite repeat loop.
	waitFor(t, func() bool {
		cc, err := st.Get(ctx, "bad")
		return err == nil && cc.Status == agenda.StatusFired
	})
	if sink.calls != 1 {
		t.Fatalf("sink calls = %d, want 1", sink.calls)
	}

	snap := svc.Snapshot()
	if len(snap.History) != 1 || snap.History[0].Error == "" {
		t.Fatalf("history should record the sink error: %+v", snap.History)
	}
}

func TestServiceSkipsCancelledEntry(t *testing.T) {
	t.Parallel()
	sink := &fakeSink{}
	svc, st := newTestService(t, sink)
	ctx := context.Background()

	c := agenda.Commitment{ID: "cx", Kind: agenda.KindReminder, Label: "never speak this",
		CreatedAt: time.Now(), FireAt: time.Now().Add(30 * time.Millisecond), Status: agenda.StatusPending}
	if err := st.Append(ctx, c); err != nil {
		t.Fatalf("Append: %v", err)
	}
	svc.Insert(c.ID, c.FireAt)
	if err := st.MarkCancelled(ctx, c.ID); err != nil {
		t.Fatalf("MarkCancelled: %v", err)
	}
	// Entry left in the queue deliberately: deliver() must check the store.
	svc.Start(ctx)
	defer svc.Stop(ctx)

	waitFor(t, func() bool { return svc.Snapshot().QueueLen == 0 })
	if n := len(sink.labels()); n != 0 {
		t.Fatalf("cancelled commitment delivered %d times", n)
	}
	cc, _ := st.Get(ctx, "cx")
	if cc.Status != agenda.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", cc.Status)
	}
}

func TestServiceConcurrentInsertsAllDeliver(t *testing.T) {
	t.Parallel()
	sink := &fakeSink{}
	svc, st := newTestService(t, sink)
	ctx := context.Background()

	svc.Start(ctx)
	defer svc.Stop(ctx)

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := agenda.Commitment{
				ID:        agendaID(i),
				Kind:      agenda.KindReminder,
				Label:     agendaID(i),
				CreatedAt: time.Now(),
				FireAt:    time.Now().Add(time.Duration(i) * time.Millisecond),
				Status:    agenda.StatusPending,
			}
			if err := st.Append(ctx, c); err != nil {
				t.Errorf("Append: %v", err)
				return
			}
			svc.Insert(c.ID, c.FireAt)
		}(i)
	}
	wg.Wait()

	waitFor(t, func() bool { return len(sink.labels()) == n })
	waitFor(t, func() bool {
		all, err := st.LoadAll(ctx)
		if err != nil || len(all) != n {
			return false
		}
		for _, c := range all {
			if c.Status != agenda.StatusFired {
				return false
			}
		}
		return true
	})
}

func agendaID(i int) string {
	return "c" + string(rune('a'+i/10)) + string(rune('a'+i%10))
}
