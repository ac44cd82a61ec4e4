//go:build sqlite
// +build sqlite

package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"friday/internal/agenda"
	logx "friday/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Append(ctx context.Context, c agenda.Commitment) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO commitments(id, kind, label, created_at, fire_at, status)
		 VALUES(?,?,?,?,?,?)`,
		c.ID, string(c.Kind), c.Label,
		c.CreatedAt.Format(time.RFC3339Nano), c.FireAt.Format(time.RFC3339Nano),
		string(c.Status),
	)
	return err
}

func (s *sqliteStore) Get(ctx context.Context, id string) (agenda.Commitment, error) {
	if s == nil || s.db == nil {
		return agenda.Commitment{}, ErrClosed
	}
	var c agenda.Commitment
	var kind, status, createdAt, fireAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, kind, label, created_at, fire_at, status FROM commitments WHERE id = ?`, id,
	).Scan(&c.ID, &kind, &c.Label, &createdAt, &fireAt, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return agenda.Commitment{}, ErrNotFound
	}
	if err != nil {
		return agenda.Commitment{}, err
	}
	c.Kind = agenda.Kind(kind)
	c.Status = agenda.Status(status)
	if c.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return agenda.Commitment{}, err
	}
	if c.FireAt, err = time.Parse(time.RFC3339Nano, fireAt); err != nil {
		return agenda.Commitment{}, err
	}
	return c, nil
}

func (s *sqliteStore) MarkFired(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, agenda.StatusFired)
}

func (s *sqliteStore) MarkCancelled(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, agenda.StatusCancelled)
}

func (s *sqliteStore) setStatus(ctx context.Context, id string, status agenda.Status) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	// Terminal states stick: the WHERE clause makes repeat marks a no-op.
	res, err := s.db.ExecContext(ctx,
		`UPDATE commitments SET status = ? WHERE id = ? AND status = ?`,
		string(status), id, string(agenda.StatusPending),
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var cur string
		err := s.db.QueryRowContext(ctx, `SELECT status FROM commitments WHERE id = ?`, id).Scan(&cur)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		// Row exists with a terminal status: idempotent success.
		return err
	}
	return nil
}

func (s *sqliteStore) LoadAll(ctx context.Context) ([]agenda.Commitment, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, label, created_at, fire_at, status FROM commitments ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []agenda.Commitment
	for rows.Next() {
		var c agenda.Commitment
		var kind, status, createdAt, fireAt string
		if err := rows.Scan(&c.ID, &kind, &c.Label, &createdAt, &fireAt, &status); err != nil {
			return nil, err
		}
		c.Kind = agenda.Kind(kind)
		c.Status = agenda.Status(status)
		if c.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			s.log.Warn("bad created_at in store; skipping row", logx.String("id", c.ID), logx.Err(err))
			continue
		}
		if c.FireAt, err = time.Parse(time.RFC3339Nano, fireAt); err != nil {
			s.log.Warn("bad fire_at in store; skipping row", logx.String("id", c.ID), logx.Err(err))
			continue
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Compact(ctx context.Context) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	_, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`)
	return err
}
