package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"friday/internal/agenda"
	logx "friday/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.agenda.snapshot.json (ordered JSON array of commitments)
//   - <prefix>.agenda.journal.jsonl (append-only journal)
//
// Every mutation is journaled; the journal is periodically compacted into
// the snapshot. All records are plain JSON so an operator can read and,
// at a pinch, repair the files by hand.
//
// A corrupt or missing backing file is a recovery problem, not a fatal one:
// we log what we could not read and start from whatever survived. New
// commitments must never be blocked by broken history.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	journalFile  *os.File
	snapshotPath string

	// order preserves append order; index maps id -> position in order.
	order []agenda.Commitment
	index map[string]int

	statusWrites int
}

// compactEvery bounds journal growth between snapshot rewrites.
const compactEvery = 1000

type journalRecord struct {
	Op         string             `json:"op"` // "add" | "status"
	Commitment *agenda.Commitment `json:"commitment,omitempty"`
	ID         string             `json:"id,omitempty"`
	Status     agenda.Status      `json:"status,omitempty"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	snapPath := prefix + ".agenda.snapshot.json"
	journalPath := prefix + ".agenda.journal.jsonl"

	s := &fileStore{
		log:          log,
		snapshotPath: snapPath,
		index:        map[string]int{},
	}

	// Load snapshot + journal. Failures degrade to an empty set.
	if err := s.loadSnapshot(snapPath); err != nil && !os.IsNotExist(err) {
		log.Warn("agenda snapshot unreadable; starting from journal only", logx.String("path", snapPath), logx.Err(err))
	}
	if err := s.replayJournal(journalPath); err != nil && !os.IsNotExist(err) {
		log.Warn("agenda journal replay incomplete", logx.String("path", journalPath), logx.Err(err))
	}

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	s.journalFile = jf
	return s, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return nil
	}
	err := s.journalFile.Close()
	s.journalFile = nil
	return err
}

func (s *fileStore) Append(ctx context.Context, c agenda.Commitment) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return ErrClosed
	}
	if _, dup := s.index[c.ID]; dup {
		return errors.New("duplicate commitment id: " + c.ID)
	}
	cc := c
	if err := json.NewEncoder(s.journalFile).Encode(journalRecord{Op: "add", Commitment: &cc}); err != nil {
		return err
	}
	s.index[c.ID] = len(s.order)
	s.order = append(s.order, c)
	return nil
}

func (s *fileStore) Get(ctx context.Context, id string) (agenda.Commitment, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return agenda.Commitment{}, ErrNotFound
	}
	return s.order[i], nil
}

func (s *fileStore) MarkFired(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, agenda.StatusFired)
}

func (s *fileStore) MarkCancelled(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, agenda.StatusCancelled)
}

func (s *fileStore) setStatus(ctx context.Context, id string, status agenda.Status) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return ErrClosed
	}
	i, ok := s.index[id]
	if !ok {
		return ErrNotFound
	}
	// Terminal states stick; marking twice is a no-op.
	if s.order[i].Status.Terminal() {
		return nil
	}
	if err := json.NewEncoder(s.journalFile).Encode(journalRecord{Op: "status", ID: id, Status: status}); err != nil {
		return err
	}
	s.order[i].Status = status

	s.statusWrites++
	if s.statusWrites%compactEvery == 0 {
		// Best-effort compact.
		if err := s.compactLocked(); err != nil {
			s.log.Debug("agenda compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) LoadAll(ctx context.Context) ([]agenda.Commitment, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]agenda.Commitment, len(s.order))
	copy(out, s.order)
	return out, nil
}

func (s *fileStore) Compact(ctx context.Context) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return ErrClosed
	}
	return s.compactLocked()
}

func (s *fileStore) compactLocked() error {
	tmp := s.snapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.order); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		return err
	}
	// Truncate journal.
	if err := s.journalFile.Truncate(0); err != nil {
		return err
	}
	_, err = s.journalFile.Seek(0, 2)
	return err
}

func (s *fileStore) loadSnapshot(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var list []agenda.Commitment
	if err := json.NewDecoder(f).Decode(&list); err != nil {
		return err
	}
	for _, c := range list {
		if c.ID == "" {
			continue
		}
		if _, dup := s.index[c.ID]; dup {
			continue
		}
		s.index[c.ID] = len(s.order)
		s.order = append(s.order, c)
	}
	return nil
}

func (s *fileStore) replayJournal(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r journalRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			// Skip malformed lines (partial write at crash).
			continue
		}
		switch r.Op {
		case "add":
			if r.Commitment == nil || r.Commitment.ID == "" {
				continue
			}
			if _, dup := s.index[r.Commitment.ID]; dup {
				continue
			}
			s.index[r.Commitment.ID] = len(s.order)
			s.order = append(s.order, *r.Commitment)
		case "status":
			i, ok := s.index[r.ID]
			if !ok {
				continue
			}
			if s.order[i].Status.Terminal() {
				continue
			}
			s.order[i].Status = r.Status
		}
	}
	return sc.Err()
}
