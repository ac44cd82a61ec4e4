package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"friday/internal/agenda"
	logx "friday/pkg/logx"
)

var ErrNoSink = errors.New("no notification sink delivered")

// Service implements dispatch.Notifier over a set of sinks.
//
// Safe for concurrent use. Apply() may swap the rate limit at runtime
// (config hot reload); sinks are fixed at construction.
type Service struct {
	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter

	log   logx.Logger
	sinks []Sink

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, log logx.Logger, sinks ...Sink) *Service {
	s := &Service{log: log, sinks: sinks}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	cfg = cfg.withDefaults()
	s.cfg = cfg
	// Token bucket: burst = rate per sec, so short spikes don't block too hard.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

// Notify formats and delivers one fired commitment. It returns an error only
// when every sink failed; partial delivery counts as delivered.
func (s *Service) Notify(ctx context.Context, c agenda.Commitment) error {
	return s.send(ctx, Format(c), c.FireAt)
}

// Announce delivers a free-form assistant message (agenda digest, status)
// through the same sinks and rate limit as fired commitments.
func (s *Service) Announce(ctx context.Context, msg string) error {
	return s.send(ctx, msg, time.Now())
}

func (s *Service) send(ctx context.Context, msg string, at time.Time) error {
	s.mu.Lock()
	lim := s.limiter
	s.mu.Unlock()
	if err := lim.Wait(ctx); err != nil {
		return err
	}

	var failed []string
	var firstErr error
	delivered := 0
	for _, sink := range s.sinks {
		if err := sink.Send(ctx, msg); err != nil {
			s.log.Warn("sink send failed", logx.String("sink", sink.Name()), logx.Err(err))
			failed = append(failed, sink.Name())
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		delivered++
	}
	s.appendHistory(HistoryItem{At: at, Message: msg, Failed: failed})

	if delivered == 0 {
		if firstErr != nil {
			return fmt.Errorf("%w: %v", ErrNoSink, firstErr)
		}
		return ErrNoSink
	}
	return nil
}

// Format renders the spoken/written notification line for a commitment.
func Format(c agenda.Commitment) string {
	switch c.Kind {
	case agenda.KindMeeting:
		return "Meeting now: " + c.Label
	default:
		return "Reminder: " + c.Label
	}
}

func (s *Service) appendHistory(it HistoryItem) {
	s.mu.Lock()
	max := s.cfg.HistorySize
	s.mu.Unlock()

	s.hmu.Lock()
	defer s.hmu.Unlock()
	s.history = append(s.history, it)
	if len(s.history) > max {
		s.history = s.history[len(s.history)-max:]
	}
}

// History returns a copy of recent deliveries, oldest first.
func (s *Service) History() []HistoryItem {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	return append([]HistoryItem(nil), s.history...)
}
