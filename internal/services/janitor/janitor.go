// Package janitor runs friday's background maintenance on cron schedules:
// periodic store compaction and an evening digest of upcoming commitments.
// Nothing here touches the dispatch loop; the janitor only reads the agenda
// and rewrites storage.
package janitor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"friday/internal/agenda"
	"friday/internal/eventbus"
	logx "friday/pkg/logx"
)

// Config controls the janitor service.
type Config struct {
	Enabled     bool
	CompactSpec string // cron spec or descriptor; default "@daily"
	DigestSpec  string // default "0 21 * * *" (21:00 local)
	Timezone    string // IANA TZ; empty means local
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.CompactSpec) == "" {
		c.CompactSpec = "@daily"
	}
	if strings.TrimSpace(c.DigestSpec) == "" {
		c.DigestSpec = "0 21 * * *"
	}
	return c
}

// Compacter is the storage slice the janitor needs.
type Compacter interface {
	Compact(ctx context.Context) error
}

// Agenda is the read side used for the digest.
type Agenda interface {
	Pending(ctx context.Context) ([]agenda.Commitment, error)
}

// Announcer delivers the digest line. Satisfied by notify.Service.
type Announcer interface {
	Announce(ctx context.Context, msg string) error
}

type Service struct {
	log   logx.Logger
	store Compacter
	ag    Agenda
	ann   Announcer
	bus   eventbus.Bus

	mu  sync.Mutex
	cfg Config
	c   *cron.Cron
}

func New(cfg Config, store Compacter, ag Agenda, ann Announcer, log logx.Logger, bus eventbus.Bus) *Service {
	return &Service{
		log:   log,
		cfg:   cfg.withDefaults(),
		store: store,
		ag:    ag,
		ann:   ann,
		bus:   bus,
	}
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked(ctx)
}

func (s *Service) startLocked(ctx context.Context) error {
	if !s.cfg.Enabled {
		s.log.Debug("janitor disabled")
		return nil
	}
	if s.c != nil {
		return nil
	}

	loc := time.Local
	if tz := strings.TrimSpace(s.cfg.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			s.log.Warn("bad janitor timezone; using local", logx.String("tz", tz), logx.Err(err))
		} else {
			loc = l
		}
	}
	s.c = cron.New(cron.WithLocation(loc))

	if _, err := s.c.AddFunc(s.cfg.CompactSpec, func() { s.compact(ctx) }); err != nil {
		s.c = nil
		return fmt.Errorf("janitor compact_spec: %w", err)
	}
	if _, err := s.c.AddFunc(s.cfg.DigestSpec, func() { s.digest(ctx) }); err != nil {
		s.c = nil
		return fmt.Errorf("janitor digest_spec: %w", err)
	}

	s.c.Start()
	s.log.Info("janitor started", logx.String("compact", s.cfg.CompactSpec), logx.String("digest", s.cfg.DigestSpec), logx.String("tz", loc.String()))
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(ctx)
}

func (s *Service) stopLocked(ctx context.Context) {
	if s.c == nil {
		return
	}
	stopCtx := s.c.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	s.c = nil
	s.log.Info("janitor stopped")
}

// Apply swaps the schedule at runtime by restarting the cron runner.
// Specs should be validated before Commit; an invalid spec here leaves the
// janitor stopped.
func (s *Service) Apply(ctx context.Context, cfg Config) error {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg == s.cfg {
		return nil
	}
	s.stopLocked(ctx)
	s.cfg = cfg
	return s.startLocked(ctx)
}

func (s *Service) compact(ctx context.Context) {
	start := time.Now()
	if err := s.store.Compact(ctx); err != nil {
		s.log.Warn("store compaction failed", logx.Err(err))
		return
	}
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.EventStoreCompacted})
	}
	s.log.Debug("store compacted", logx.Duration("took", time.Since(start)))
}

func (s *Service) digest(ctx context.Context) {
	msg, n, err := s.buildDigest(ctx, time.Now())
	if err != nil {
		s.log.Warn("digest build failed", logx.Err(err))
		return
	}
	if n == 0 {
		s.log.Debug("digest skipped; nothing due in the next 24h")
		return
	}
	if err := s.ann.Announce(ctx, msg); err != nil {
		s.log.Warn("digest announce failed", logx.Err(err))
	}
}

// buildDigest summarizes pending commitments due in the next 24 hours,
// soonest first.
func (s *Service) buildDigest(ctx context.Context, now time.Time) (string, int, error) {
	pending, err := s.ag.Pending(ctx)
	if err != nil {
		return "", 0, err
	}
	horizon := now.Add(24 * time.Hour)
	var due []agenda.Commitment
	for _, c := range pending {
		if c.FireAt.After(horizon) {
			continue
		}
		due = append(due, c)
	}
	if len(due) == 0 {
		return "", 0, nil
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].FireAt.Before(due[j].FireAt) })

	var b strings.Builder
	fmt.Fprintf(&b, "Coming up (%d):", len(due))
	for _, c := range due {
		fmt.Fprintf(&b, " %s at %s;", c.Label, c.FireAt.Format("Mon 15:04"))
	}
	return strings.TrimSuffix(b.String(), ";"), len(due), nil
}
