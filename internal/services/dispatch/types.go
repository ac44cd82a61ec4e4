package dispatch

import (
	"context"
	"time"

	"friday/internal/agenda"
)

// Config controls the dispatch loop.
type Config struct {
	// MaxSleep caps how long the loop sleeps between checks even when the
	// next fire time is far away (safety poll; default 30s).
	MaxSleep time.Duration
	// HistorySize bounds the in-memory delivery history (default 200).
	HistorySize int
}

func (c Config) withDefaults() Config {
	if c.MaxSleep <= 0 {
		c.MaxSleep = 30 * time.Second
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 200
	}
	return c
}

// Notifier delivers a fired commitment's label to the user.
// The notify service implements it; tests use a recording double.
type Notifier interface {
	Notify(ctx context.Context, c agenda.Commitment) error
}

// HistoryItem records one delivery attempt, for status introspection.
type HistoryItem struct {
	ID        string
	Label     string
	FireAt    time.Time
	Delivered time.Time
	Error     string
}

// Snapshot is a point-in-time view of the dispatch state.
type Snapshot struct {
	QueueLen   int
	NextFireAt time.Time
	History    []HistoryItem
}
