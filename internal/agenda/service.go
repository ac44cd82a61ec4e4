package agenda

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"friday/internal/eventbus"
	logx "friday/pkg/logx"
)

var (
	// ErrAlreadyDone means the commitment is in a terminal state.
	ErrAlreadyDone = errors.New("commitment already fired or cancelled")
)

// Store is the durable side of the agenda. Satisfied by storage.Store.
type Store interface {
	Append(ctx context.Context, c Commitment) error
	Get(ctx context.Context, id string) (Commitment, error)
	MarkCancelled(ctx context.Context, id string) error
	LoadAll(ctx context.Context) ([]Commitment, error)
}

// Timers is the transient side: the dispatch queue. Satisfied by
// dispatch.Service.
type Timers interface {
	Insert(id string, fireAt time.Time)
	Remove(id string) bool
	Rebuild(commitments []Commitment) int
}

// Service is the synchronous API the command layer calls. Adds return as
// soon as the commitment is durable and queued; they never wait for the
// notification to fire.
type Service struct {
	log    logx.Logger
	res    Resolver
	store  Store
	timers Timers
	bus    eventbus.Bus

	now func() time.Time
}

func NewService(res Resolver, store Store, timers Timers, log logx.Logger, bus eventbus.Bus) *Service {
	return &Service{
		log:    log,
		res:    res,
		store:  store,
		timers: timers,
		bus:    bus,
		now:    time.Now,
	}
}

// AddReminder schedules a one-shot reminder for the next occurrence of the
// given "HH:MM" time of day.
func (s *Service) AddReminder(ctx context.Context, task, timeSpec string) (Commitment, error) {
	now := s.now()
	fireAt, err := s.res.ResolveTimeOfDay(timeSpec, now)
	if err != nil {
		return Commitment{}, err
	}
	return s.add(ctx, Commitment{
		ID:        uuid.NewString(),
		Kind:      KindReminder,
		Label:     task,
		CreatedAt: now,
		FireAt:    fireAt,
		Status:    StatusPending,
	})
}

// AddMeeting schedules a meeting notification at an absolute
// "YYYY-MM-DD HH:MM:SS" datetime. A datetime in the past is rejected.
func (s *Service) AddMeeting(ctx context.Context, description, datetimeSpec string) (Commitment, error) {
	now := s.now()
	fireAt, err := s.res.ResolveAbsoluteDateTime(datetimeSpec, now)
	if err != nil {
		return Commitment{}, err
	}
	return s.add(ctx, Commitment{
		ID:        uuid.NewString(),
		Kind:      KindMeeting,
		Label:     description,
		CreatedAt: now,
		FireAt:    fireAt,
		Status:    StatusPending,
	})
}

// add persists first, queues second. A crash in between re-delivers on the
// next start (the store holds a pending record), which is the right failure
// direction: at-least-once, never silent loss.
func (s *Service) add(ctx context.Context, c Commitment) (Commitment, error) {
	if err := s.store.Append(ctx, c); err != nil {
		return Commitment{}, err
	}
	s.timers.Insert(c.ID, c.FireAt)
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.EventAgendaAdded, Data: map[string]string{"id": c.ID, "label": c.Label}})
	}
	s.log.Info("commitment scheduled",
		logx.String("id", c.ID),
		logx.String("kind", string(c.Kind)),
		logx.String("label", c.Label),
		logx.Time("fire_at", c.FireAt))
	return c, nil
}

// Cancel moves a pending commitment to the cancelled terminal state and
// drops its timer entry.
func (s *Service) Cancel(ctx context.Context, id string) error {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.Status.Terminal() {
		return ErrAlreadyDone
	}
	if err := s.store.MarkCancelled(ctx, id); err != nil {
		return err
	}
	s.timers.Remove(id)
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.EventAgendaCancelled, Data: map[string]string{"id": id, "label": c.Label}})
	}
	s.log.Info("commitment cancelled", logx.String("id", id), logx.String("label", c.Label))
	return nil
}

// List returns every stored commitment in append order, for "list my
// reminders" and status views.
func (s *Service) List(ctx context.Context) ([]Commitment, error) {
	return s.store.LoadAll(ctx)
}

// Pending returns only commitments still waiting to fire.
func (s *Service) Pending(ctx context.Context) ([]Commitment, error) {
	all, err := s.store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	pending := all[:0:0]
	for _, c := range all {
		if c.Status == StatusPending {
			pending = append(pending, c)
		}
	}
	return pending, nil
}

// Recover rebuilds the dispatch queue from the store. Called once at
// startup before the dispatch loop runs; returns the number of pending
// commitments re-queued.
func (s *Service) Recover(ctx context.Context) (int, error) {
	all, err := s.store.LoadAll(ctx)
	if err != nil {
		return 0, err
	}
	n := s.timers.Rebuild(all)
	s.log.Info("agenda recovered", logx.Int("total", len(all)), logx.Int("pending", n))
	return n, nil
}
