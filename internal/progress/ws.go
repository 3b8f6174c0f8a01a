package progress

import (
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fabrik-io/fabrik/pkg/protocol"
)

const (
	wsSendBuffer   = 16
	wsWriteTimeout = 5 * time.Second
)

// WSSink delivers events over a WebSocket connection. Deliver never blocks:
// events beyond the send buffer are dropped, which is the documented
// behavior for slow or unresponsive clients.
type WSSink struct {
	conn *websocket.Conn
	send chan protocol.Event
	done chan struct{}
}

// NewWSSink wraps a connection and starts its writer goroutine. The caller
// owns the read side and should Close the sink when the client goes away.
func NewWSSink(conn *websocket.Conn) *WSSink {
	s := &WSSink{
		conn: conn,
		send: make(chan protocol.Event, wsSendBuffer),
		done: make(chan struct{}),
	}
	go s.writeLoop()
	return s
}

func (s *WSSink) writeLoop() {
	for {
		select {
		case ev := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := s.conn.WriteJSON(ev); err != nil {
				s.conn.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}

// Deliver queues an event for the connection, dropping it if the client
// cannot keep up.
func (s *WSSink) Deliver(ev protocol.Event) error {
	select {
	case s.send <- ev:
		return nil
	case <-s.done:
		return fmt.Errorf("ws sink: closed")
	default:
		return fmt.Errorf("ws sink: send buffer full, event dropped")
	}
}

// Close stops the writer goroutine and closes the connection.
func (s *WSSink) Close() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	s.conn.Close()
}
