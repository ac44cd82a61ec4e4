// Package notify delivers fired commitments and assistant announcements to
// one or more sinks behind a shared rate limit.
package notify

import (
	"context"
	"time"
)

// Config controls the notification pipeline.
type Config struct {
	// RatePerSec bounds outbound deliveries across all sinks (default 3).
	RatePerSec int
	// HistorySize bounds the in-memory delivery history (default 300).
	HistorySize int
}

func (c Config) withDefaults() Config {
	if c.RatePerSec <= 0 {
		c.RatePerSec = 3
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 300
	}
	return c
}

// Sink is one delivery surface. Send is called sequentially per message;
// implementations only need to be safe across messages.
type Sink interface {
	Name() string
	Send(ctx context.Context, msg string) error
}

// HistoryItem records one delivery attempt.
type HistoryItem struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
	// Failed lists sinks that rejected this message, empty on full delivery.
	Failed []string `json:"failed,omitempty"`
}
