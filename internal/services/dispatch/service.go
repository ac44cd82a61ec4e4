package dispatch

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"friday/internal/agenda"
	"friday/internal/eventbus"
	"friday/internal/storage"
	logx "friday/pkg/logx"
)

// Service owns the queue and the background loop that drains it.
type Service struct {
	mu sync.Mutex

	log      logx.Logger
	cfg      Config
	queue    *Queue
	store    storage.Store
	notifier Notifier
	bus      eventbus.Bus

	// wake interrupts the current sleep when an earlier entry arrives.
	// Buffered so Insert never blocks on the loop.
	wake chan struct{}

	stopCh    chan struct{}
	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, store storage.Store, notifier Notifier, log logx.Logger, bus eventbus.Bus) *Service {
	return &Service{
		cfg:      cfg.withDefaults(),
		queue:    NewQueue(),
		store:    store,
		notifier: notifier,
		log:      log,
		bus:      bus,
		wake:     make(chan struct{}, 1),
	}
}

// Insert registers a new timer entry and pokes the loop. Returns
// immediately regardless of what the loop is doing.
func (s *Service) Insert(id string, fireAt time.Time) {
	s.queue.Insert(id, fireAt)
	s.poke()
}

// Remove drops a pending entry (cancel path).
func (s *Service) Remove(id string) bool {
	return s.queue.Remove(id)
}

// Rebuild replaces the queue content with the pending subset of the given
// commitments. Called once at startup, before Start.
func (s *Service) Rebuild(commitments []agenda.Commitment) int {
	n := s.queue.Rebuild(commitments)
	s.poke()
	return n
}

func (s *Service) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.stopCh != nil {
		// already running
		s.mu.Unlock()
		return
	}
	s.stopCh = make(chan struct{})
	s.runCtx, s.runCancel = context.WithCancel(ctx)
	runCtx := s.runCtx
	stopCh := s.stopCh
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("panic in dispatch loop", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
			}
		}()
		s.loop(runCtx, stopCh)
	}()
	s.log.Info("dispatch started", logx.Int("pending", s.queue.Len()), logx.Duration("max_sleep", s.cfg.MaxSleep))
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	stopCh := s.stopCh
	cancel := s.runCancel
	s.stopCh = nil
	s.runCancel = nil
	s.mu.Unlock()
	if stopCh == nil {
		return
	}

	close(stopCh)
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("dispatch stopped")
	case <-ctx.Done():
		// loop exits on its own; don't hold up shutdown
	}
}

func (s *Service) loop(ctx context.Context, stopCh <-chan struct{}) {
	for {
		sleep := s.cfg.MaxSleep
		if next, ok := s.queue.PeekNextFireTime(); ok {
			until := time.Until(next)
			if until < 0 {
				until = 0
			}
			if until < sleep {
				sleep = until
			}
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-stopCh:
			timer.Stop()
			return
		case <-s.wake:
			// New entry; recompute the sleep.
			timer.Stop()
		case <-timer.C:
		}

		s.drain(ctx)
	}
}

// drain pops everything due right now and delivers it, oldest fire time
// first. One bad entry never halts the loop.
func (s *Service) drain(ctx context.Context) {
	due := s.queue.PopDue(time.Now())
	for _, id := range due {
		if ctx.Err() != nil {
			return
		}
		s.deliver(ctx, id)
	}
}

func (s *Service) deliver(ctx context.Context, id string) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		s.log.Error("due commitment not in store", logx.String("id", id), logx.Err(err))
		return
	}
	if c.Status != agenda.StatusPending {
		// Cancelled (or already fired) under our feet; nothing to deliver.
		s.log.Debug("skipping non-pending commitment", logx.String("id", id), logx.String("status", string(c.Status)))
		return
	}

	item := HistoryItem{ID: c.ID, Label: c.Label, FireAt: c.FireAt, Delivered: time.Now()}
	if err := s.notifier.Notify(ctx, c); err != nil {
		// Sink failure: log and mark fired anyway. Retrying a permanently
		// broken sink forever would repeat the notification without end.
		s.log.Warn("notification sink failed", logx.String("id", c.ID), logx.String("label", c.Label), logx.Err(err))
		item.Error = err.Error()
	}
	if err := s.store.MarkFired(ctx, c.ID); err != nil {
		s.log.Error("mark fired failed", logx.String("id", c.ID), logx.Err(err))
	}
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.EventAgendaFired, Data: map[string]string{"id": c.ID, "label": c.Label}})
	}
	s.appendHistory(item)
	s.log.Info("commitment fired", logx.String("id", c.ID), logx.String("kind", string(c.Kind)), logx.String("label", c.Label), logx.Time("fire_at", c.FireAt))
}

func (s *Service) appendHistory(it HistoryItem) {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	s.history = append(s.history, it)
	if len(s.history) > s.cfg.HistorySize {
		s.history = s.history[len(s.history)-s.cfg.HistorySize:]
	}
}

func (s *Service) Snapshot() Snapshot {
	var snap Snapshot
	snap.QueueLen = s.queue.Len()
	if next, ok := s.queue.PeekNextFireTime(); ok {
		snap.NextFireAt = next
	}
	s.hmu.Lock()
	snap.History = append([]HistoryItem(nil), s.history...)
	s.hmu.Unlock()
	return snap
}
