// Package progress fans lifecycle events out to attached sinks. Delivery is
// fire-and-forget: at most once per currently attached sink, no buffering or
// replay, and a slow sink never blocks the lifecycle.
package progress

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/fabrik-io/fabrik/pkg/protocol"
)

// Sink receives progress events. Implementations must not block in Deliver;
// drop instead.
type Sink interface {
	Deliver(ev protocol.Event) error
}

// Broadcaster is an explicit subscriber registry. Publish iterates a
// snapshot of the registry, so sinks may attach and detach concurrently
// with a publish in flight.
type Broadcaster struct {
	mu     sync.Mutex
	next   int
	sinks  map[int]Sink
	logger *slog.Logger
}

// NewBroadcaster creates an empty registry.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{sinks: make(map[int]Sink), logger: logger}
}

// Attach registers a sink and returns a function that detaches it.
func (b *Broadcaster) Attach(s Sink) (detach func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.sinks[id] = s
	n := len(b.sinks)
	b.mu.Unlock()

	b.logger.Debug("progress sink attached", "sinks", n)
	return func() {
		b.mu.Lock()
		delete(b.sinks, id)
		b.mu.Unlock()
	}
}

// Publish builds an event and delivers it to every attached sink. Sink
// errors are logged and swallowed; the event is also mirrored to the
// process log so progress survives without any sink attached.
func (b *Broadcaster) Publish(kind protocol.EventKind, format string, args ...any) {
	ev := protocol.NewEvent(kind, fmt.Sprintf(format, args...))

	b.mu.Lock()
	snapshot := make([]Sink, 0, len(b.sinks))
	for _, s := range b.sinks {
		snapshot = append(snapshot, s)
	}
	b.mu.Unlock()

	b.logger.Info(ev.Message, "kind", string(ev.Kind))
	for _, s := range snapshot {
		if err := s.Deliver(ev); err != nil {
			b.logger.Warn("progress delivery failed", "error", err)
		}
	}
}

// Count returns the number of attached sinks.
func (b *Broadcaster) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sinks)
}
