// Package app wires friday's components together: config, logging,
// storage, the notification pipeline, the dispatch loop, the agenda
// service, and background maintenance.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"friday/internal/agenda"
	"friday/internal/config"
	"friday/internal/eventbus"
	"friday/internal/services/dispatch"
	"friday/internal/services/janitor"
	"friday/internal/services/notify"
	"friday/internal/storage"
	logx "friday/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	notif *notify.Service
	disp  *dispatch.Service
	ag    *agenda.Service
	jan   *janitor.Service
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	// Sinks: structured log always, console for the local surface, Telegram
	// only when configured.
	sinks := []notify.Sink{
		notify.LogSink{Log: log.With(logx.String("comp", "notify"))},
		notify.NewConsoleSink(os.Stdout),
	}
	if cfg.Telegram != nil {
		tg, err := notify.NewTelegramSink(notify.TelegramConfig{
			Token:  cfg.Telegram.Token,
			ChatID: cfg.Telegram.ChatID,
		})
		if err != nil {
			return nil, fmt.Errorf("telegram sink: %w", err)
		}
		sinks = append(sinks, tg)
		log.Info("telegram mirror sink enabled")
	}
	ncfg, err := mapNotifyConfig(cfg)
	if err != nil {
		return nil, err
	}
	notifSvc := notify.New(ncfg, log.With(logx.String("comp", "notify")), sinks...)

	dcfg, err := mapDispatchConfig(cfg)
	if err != nil {
		return nil, err
	}
	dispSvc := dispatch.New(dcfg, store, notifSvc, log.With(logx.String("comp", "dispatch")), bus)

	loc, err := agendaLocation(cfg)
	if err != nil {
		return nil, err
	}
	agSvc := agenda.NewService(agenda.NewResolver(loc), store, dispSvc,
		log.With(logx.String("comp", "agenda")), bus)

	janSvc := janitor.New(mapJanitorConfig(cfg), store, agSvc, notifSvc,
		log.With(logx.String("comp", "janitor")), bus)

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		notif:   notifSvc,
		disp:    dispSvc,
		ag:      agSvc,
		jan:     janSvc,
	}, nil
}

// Agenda exposes the command surface (add, cancel, list).
func (a *App) Agenda() *agenda.Service { return a.ag }

// Config returns the currently committed configuration.
func (a *App) Config() *config.Config { return a.cfgm.Get() }

// Done is closed when the supervisor context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = NewSupervisor(ctx, WithLogger(a.log), WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validateConfig(cfg)
	})

	// Requeue pending commitments before the loop runs so nothing persisted
	// is lost across restarts.
	if _, err := a.ag.Recover(a.sup.Context()); err != nil {
		return fmt.Errorf("recover agenda: %w", err)
	}

	a.disp.Start(a.sup.Context())
	if err := a.jan.Start(a.sup.Context()); err != nil {
		return err
	}

	// Debug-level event trace; components subscribe themselves for real work.
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyConfig(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

// applyConfig applies a validated hot-reloaded config. Logging, notify
// limits, and janitor schedules change live; storage, dispatch, and
// telegram need a restart.
func (a *App) applyConfig(prev, cfg *config.Config) {
	a.logs.Apply(mapLoggingConfig(cfg))

	if ncfg, err := mapNotifyConfig(cfg); err != nil {
		a.log.Warn("invalid notify config; keeping previous", logx.Err(err))
	} else {
		a.notif.Apply(ncfg)
	}

	if prev != nil {
		if prev.Storage != cfg.Storage {
			a.log.Warn("storage config changed; restart required")
		}
		if prev.Dispatch != cfg.Dispatch {
			a.log.Warn("dispatch config changed; restart required")
		}
		if prev.Janitor != cfg.Janitor || prev.Dispatch.Timezone != cfg.Dispatch.Timezone {
			if err := a.jan.Apply(a.sup.Context(), mapJanitorConfig(cfg)); err != nil {
				a.log.Warn("janitor reschedule failed", logx.Err(err))
			}
		}
	}

	a.log.Info("config reloaded")
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")

	a.sup.Cancel()

	// Bound each shutdown step so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}
		start := time.Now()
		if err := fn(stepCtx); err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	}

	step("janitor", 2*time.Second, func(c context.Context) error { a.jan.Stop(c); return nil })
	step("dispatch", 2*time.Second, func(c context.Context) error { a.disp.Stop(c); return nil })
	step("storage", 1*time.Second, func(context.Context) error { return a.store.Close() })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
