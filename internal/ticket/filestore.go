package ticket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/fabrik-io/fabrik/pkg/protocol"
)

// FileStore keeps one JSON record per ticket (<id>.json) in a directory.
// A single mutex serializes every mutation: the process is the only writer,
// so the mutex is the whole concurrency story for record-level operations.
// Identifier assignment is delegated to a durable Sequence so it does not
// depend on racy directory scans.
type FileStore struct {
	mu     sync.Mutex
	dir    string
	seq    *Sequence
	logger *slog.Logger
}

// NewFileStore opens (or creates) a ticket directory backed by seq for
// identifier assignment.
func NewFileStore(dir string, seq *Sequence, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ticket store: create %s: %w", dir, err)
	}
	return &FileStore{dir: dir, seq: seq, logger: logger}, nil
}

// ScanHighest returns the largest <n> among TASK-<n>.json records in dir,
// or 0 if none exist. Used to seed the sequence when adopting a directory
// written before the durable counter existed.
func ScanHighest(dir string) int64 {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	var highest int64
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), ".json")
		n, ok := parseID(name)
		if ok && n > highest {
			highest = n
		}
	}
	return highest
}

// parseID extracts <n> from a TASK-<n> identifier.
func parseID(id string) (int64, bool) {
	rest, ok := strings.CutPrefix(id, "TASK-")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func (s *FileStore) NextID() (string, error) {
	n, err := s.seq.Next()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("TASK-%d", n), nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *FileStore) Create(t *protocol.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(t)
}

func (s *FileStore) Save(t *protocol.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(t)
}

// write persists a record. Caller holds s.mu.
func (s *FileStore) write(t *protocol.Ticket) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("ticket store: encode %s: %w", t.ID, err)
	}
	if err := os.WriteFile(s.path(t.ID), data, 0o644); err != nil {
		return fmt.Errorf("ticket store: write %s: %w", t.ID, err)
	}
	return nil
}

func (s *FileStore) Get(id string) (*protocol.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(id)
}

// read loads a record. Caller holds s.mu.
func (s *FileStore) read(id string) (*protocol.Ticket, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("ticket %q: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("ticket store: read %s: %w", id, err)
	}
	var t protocol.Ticket
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("ticket %q: %w: %v", id, ErrCorruptRecord, err)
	}
	return &t, nil
}

func (s *FileStore) List() ([]*protocol.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAll()
}

// readAll loads every record, skipping corrupt ones with a warning.
// Caller holds s.mu.
func (s *FileStore) readAll() ([]*protocol.Ticket, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("ticket store: list %s: %w", s.dir, err)
	}

	tickets := make([]*protocol.Ticket, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".json")
		t, err := s.read(id)
		if err != nil {
			s.logger.Warn("skipping unreadable ticket record", "file", e.Name(), "error", err)
			continue
		}
		tickets = append(tickets, t)
	}

	sort.Slice(tickets, func(i, j int) bool {
		return tickets[i].CreatedAt.After(tickets[j].CreatedAt)
	})
	return tickets, nil
}

func (s *FileStore) FindDuplicate(title string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tickets, err := s.readAll()
	if err != nil {
		return false, err
	}
	for _, t := range tickets {
		if t.Title == title && t.Status != protocol.TicketCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (s *FileStore) Transition(id string, from, to protocol.TicketStatus, mutate func(*protocol.Ticket)) (*protocol.Ticket, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.read(id)
	if err != nil {
		return nil, false, err
	}
	if t.Status != from {
		return t, false, nil
	}
	t.Status = to
	if mutate != nil {
		mutate(t)
	}
	if err := s.write(t); err != nil {
		return nil, false, err
	}
	return t, true, nil
}
