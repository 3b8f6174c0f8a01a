package ticket

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Sequence is a durable, atomic counter for ticket identifiers, backed by a
// single SQLite row. Scanning the ticket directory for the highest existing
// id is a read-then-compute race; the sequence row makes assignment atomic
// regardless of how many submissions interleave.
type Sequence struct {
	db *sql.DB
}

// OpenSequence opens (or creates) the sequence database at path. seed sets
// the starting value on first creation; an existing sequence is raised to
// seed if it has fallen behind (e.g. the database was deleted while ticket
// records survived).
func OpenSequence(path string, seed int64) (*Sequence, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sequence: open: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sequence: wal: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sequences (
			name  TEXT PRIMARY KEY,
			value INTEGER NOT NULL
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("sequence: migrate: %w", err)
	}

	if _, err := db.Exec(`INSERT OR IGNORE INTO sequences (name, value) VALUES ('ticket', ?)`, seed); err != nil {
		db.Close()
		return nil, fmt.Errorf("sequence: seed: %w", err)
	}
	if _, err := db.Exec(`UPDATE sequences SET value = ? WHERE name = 'ticket' AND value < ?`, seed, seed); err != nil {
		db.Close()
		return nil, fmt.Errorf("sequence: reseed: %w", err)
	}

	return &Sequence{db: db}, nil
}

// Next increments the counter and returns the new value. The single UPDATE
// ... RETURNING statement is atomic under SQLite's writer lock, so
// concurrent callers always observe distinct, strictly increasing values.
func (s *Sequence) Next() (int64, error) {
	var n int64
	err := s.db.QueryRow(`UPDATE sequences SET value = value + 1 WHERE name = 'ticket' RETURNING value`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sequence: next: %w", err)
	}
	return n, nil
}

// Current returns the last assigned value without consuming one.
func (s *Sequence) Current() (int64, error) {
	var n int64
	err := s.db.QueryRow(`SELECT value FROM sequences WHERE name = 'ticket'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sequence: current: %w", err)
	}
	return n, nil
}

// Close releases the underlying database.
func (s *Sequence) Close() error {
	return s.db.Close()
}
