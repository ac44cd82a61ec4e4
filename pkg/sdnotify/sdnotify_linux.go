//go:build linux

// Package sdnotify integrates fridayd with the systemd service manager:
// readiness notification on startup and periodic watchdog pings when the
// unit enables WatchdogSec. Everything degrades to a no-op when fridayd
// is not running under systemd.
package sdnotify

import (
	"context"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "friday/pkg/logx"
)

// Notifier pings the systemd watchdog and reports lifecycle state.
type Notifier struct {
	log logx.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(log logx.Logger) *Notifier {
	return &Notifier{log: log}
}

// Ready tells systemd the service is up. Safe to call outside systemd.
func (n *Notifier) Ready() {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		n.log.Warn("sd_notify READY failed", logx.Err(err))
		return
	}
	if sent {
		n.log.Debug("sd_notify READY sent")
	}
}

// Stopping tells systemd a shutdown is in progress.
func (n *Notifier) Stopping() {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
}

// StartWatchdog begins pinging the watchdog at half the unit's WatchdogSec
// interval. It is a no-op when the unit has no watchdog configured.
func (n *Notifier) StartWatchdog(ctx context.Context) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		n.log.Warn("watchdog query failed", logx.Err(err))
		return
	}
	if interval == 0 {
		n.log.Debug("systemd watchdog not enabled")
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	n.cancel = cancel
	n.done = make(chan struct{})

	tick := interval / 2
	n.log.Info("systemd watchdog active", logx.Duration("interval", tick))

	go func() {
		defer close(n.done)
		t := time.NewTicker(tick)
		defer t.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-t.C:
				if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
					n.log.Warn("watchdog ping failed", logx.Err(err))
				}
			}
		}
	}()
}

// StopWatchdog stops the ping loop and waits for it to exit.
func (n *Notifier) StopWatchdog() {
	n.mu.Lock()
	cancel, done := n.cancel, n.done
	n.cancel, n.done = nil, nil
	n.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
