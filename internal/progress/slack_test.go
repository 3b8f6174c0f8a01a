package progress

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fabrik-io/fabrik/pkg/protocol"
)

func TestSlackSink_PostsQueuedEvents(t *testing.T) {
	var mu sync.Mutex
	var posted []string
	s := newSlackSink(func(_ context.Context, text string) error {
		mu.Lock()
		posted = append(posted, text)
		mu.Unlock()
		return nil
	})
	defer s.Close()

	if err := s.Deliver(protocol.NewEvent(protocol.EventSuccess, "ticket created: TASK-1")); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(posted)
		mu.Unlock()
		if n == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(posted) != 1 {
		t.Fatalf("posted %d messages", len(posted))
	}
	if !strings.Contains(posted[0], "ticket created: TASK-1") || !strings.Contains(posted[0], ":white_check_mark:") {
		t.Errorf("text = %q", posted[0])
	}
}

func TestSlackSink_DeliverNeverBlocks(t *testing.T) {
	// The post function hangs until released, simulating an unresponsive
	// endpoint. Deliver must keep returning immediately and start dropping
	// once the queue is full.
	release := make(chan struct{})
	s := newSlackSink(func(ctx context.Context, _ string) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return ctx.Err()
	})
	defer s.Close()
	defer close(release)

	done := make(chan struct{})
	var dropped int
	go func() {
		defer close(done)
		// Worker capacity is one in-flight post plus the buffer; anything
		// beyond that must be dropped, not waited on.
		for i := 0; i < slackSendBuffer+10; i++ {
			if err := s.Deliver(protocol.NewEvent(protocol.EventInfo, "event")); err != nil {
				dropped++
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Deliver blocked on an unresponsive endpoint")
	}
	if dropped == 0 {
		t.Error("expected events beyond the buffer to be dropped")
	}
}

func TestSlackSink_DeliverAfterClose(t *testing.T) {
	s := newSlackSink(func(context.Context, string) error { return nil })
	s.Close()

	if err := s.Deliver(protocol.NewEvent(protocol.EventInfo, "late")); err == nil {
		t.Fatal("expected an error delivering to a closed sink")
	}
}

func TestNewSlackSink_Validation(t *testing.T) {
	if _, err := NewSlackSink("", "C123"); err == nil {
		t.Error("expected error for missing token")
	}
	if _, err := NewSlackSink("xoxb-1", ""); err == nil {
		t.Error("expected error for missing channel")
	}
}
