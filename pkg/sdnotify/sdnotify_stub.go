//go:build !linux

package sdnotify

import (
	"context"

	logx "friday/pkg/logx"
)

// Notifier is a no-op on non-linux platforms.
type Notifier struct{}

func New(logx.Logger) *Notifier { return &Notifier{} }

func (*Notifier) Ready()                        {}
func (*Notifier) Stopping()                     {}
func (*Notifier) StartWatchdog(context.Context) {}
func (*Notifier) StopWatchdog()                 {}
