// Package logbuf captures recent slog records into a fixed-size ring so the
// daemon can serve them over the API without touching the log files.
package logbuf

import (
	"log/slog"
	"sync"
	"time"
)

// Record is one captured log record.
type Record struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// Ring is a thread-safe ring buffer of log records.
type Ring struct {
	mu    sync.Mutex
	buf   []Record
	pos   int
	count int
}

// NewRing creates a ring holding up to capacity records.
func NewRing(capacity int) *Ring {
	return &Ring{buf: make([]Record, capacity)}
}

// Append adds a record, evicting the oldest when full.
func (r *Ring) Append(rec Record) {
	r.mu.Lock()
	r.buf[r.pos] = rec
	r.pos = (r.pos + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
	r.mu.Unlock()
}

// Query returns records at or above minLevel recorded after since (zero
// since means all), oldest first, keeping at most limit newest entries when
// limit > 0.
func (r *Ring) Query(since time.Time, minLevel slog.Level, limit int) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := 0
	if r.count == len(r.buf) {
		start = r.pos
	}

	var out []Record
	for i := 0; i < r.count; i++ {
		rec := r.buf[(start+i)%len(r.buf)]
		if !since.IsZero() && rec.Time.Before(since) {
			continue
		}
		if levelValue(rec.Level) < minLevel {
			continue
		}
		out = append(out, rec)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func levelValue(s string) slog.Level {
	switch s {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel maps a lowercase level name to slog.Level, defaulting to debug
// so unfiltered queries see everything.
func ParseLevel(s string) slog.Level {
	switch s {
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}
