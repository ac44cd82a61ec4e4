package storage

import (
	"context"
	"errors"
	"strings"

	"friday/internal/agenda"
	logx "friday/pkg/logx"
)

// Store is the durable commitment record used by the agenda and dispatch.
//
// Append and the Mark* calls serialize through a single writer; LoadAll
// returns commitments in original append order.
type Store interface {
	Append(ctx context.Context, c agenda.Commitment) error
	Get(ctx context.Context, id string) (agenda.Commitment, error)
	MarkFired(ctx context.Context, id string) error
	MarkCancelled(ctx context.Context, id string) error
	LoadAll(ctx context.Context) ([]agenda.Commitment, error)
	// Compact rewrites the backing storage to its minimal form.
	// Drivers without journals may treat it as a no-op.
	Compact(ctx context.Context) error
	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
