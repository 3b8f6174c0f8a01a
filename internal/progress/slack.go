package progress

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/slack-go/slack"

	"github.com/fabrik-io/fabrik/pkg/protocol"
)

const (
	slackSendBuffer  = 32
	slackPostTimeout = 10 * time.Second
)

// SlackSink posts progress events to a Slack channel. Outbound only; the
// bot token needs chat:write. Deliver never blocks: events are queued for a
// worker goroutine and dropped when the queue is full, and every post runs
// under a deadline so a stalled Slack endpoint cannot back up the queue
// forever.
type SlackSink struct {
	post func(ctx context.Context, text string) error
	send chan protocol.Event
	done chan struct{}
}

// NewSlackSink creates a sink posting to the given channel id and starts
// its worker goroutine.
func NewSlackSink(botToken, channel string) (*SlackSink, error) {
	if botToken == "" {
		return nil, fmt.Errorf("slack sink: bot token is required")
	}
	if channel == "" {
		return nil, fmt.Errorf("slack sink: channel is required")
	}
	client := slack.New(botToken, slack.OptionHTTPClient(&http.Client{Timeout: slackPostTimeout}))
	s := newSlackSink(func(ctx context.Context, text string) error {
		_, _, err := client.PostMessageContext(ctx, channel, slack.MsgOptionText(text, false))
		return err
	})
	return s, nil
}

func newSlackSink(post func(ctx context.Context, text string) error) *SlackSink {
	s := &SlackSink{
		post: post,
		send: make(chan protocol.Event, slackSendBuffer),
		done: make(chan struct{}),
	}
	go s.postLoop()
	return s
}

func (s *SlackSink) postLoop() {
	for {
		select {
		case ev := <-s.send:
			ctx, cancel := context.WithTimeout(context.Background(), slackPostTimeout)
			s.post(ctx, fmt.Sprintf("%s %s", kindEmoji(ev.Kind), ev.Message))
			cancel()
		case <-s.done:
			return
		}
	}
}

// Deliver queues the event for posting, dropping it if the worker cannot
// keep up.
func (s *SlackSink) Deliver(ev protocol.Event) error {
	select {
	case s.send <- ev:
		return nil
	case <-s.done:
		return fmt.Errorf("slack sink: closed")
	default:
		return fmt.Errorf("slack sink: send buffer full, event dropped")
	}
}

// Close stops the worker goroutine. Queued events are discarded.
func (s *SlackSink) Close() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

func kindEmoji(kind protocol.EventKind) string {
	switch kind {
	case protocol.EventSuccess:
		return ":white_check_mark:"
	case protocol.EventWarning:
		return ":warning:"
	case protocol.EventError:
		return ":x:"
	default:
		return ":information_source:"
	}
}
