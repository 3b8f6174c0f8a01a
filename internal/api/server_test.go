package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fabrik-io/fabrik/internal/lifecycle"
	"github.com/fabrik-io/fabrik/internal/progress"
	"github.com/fabrik-io/fabrik/internal/ticket"
	"github.com/fabrik-io/fabrik/pkg/protocol"
)

// mockService implements Service for testing.
type mockService struct {
	tickets    []*protocol.Ticket
	submitted  []string
	duplicate  bool
	developErr error
}

func (m *mockService) Submit(instructions string) (*lifecycle.SubmitResult, error) {
	if strings.TrimSpace(instructions) == "" {
		return nil, lifecycle.ErrEmptyInstructions
	}
	m.submitted = append(m.submitted, instructions)
	if m.duplicate {
		return &lifecycle.SubmitResult{Duplicate: true}, nil
	}
	return &lifecycle.SubmitResult{TicketID: "TASK-1", TaskFile: "task_x.txt"}, nil
}

func (m *mockService) Develop(_ context.Context, id string) (*protocol.Ticket, error) {
	t, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	if m.developErr != nil {
		t.Status = protocol.TicketFailed
		t.Error = m.developErr.Error()
		return t, m.developErr
	}
	t.Status = protocol.TicketCompleted
	return t, nil
}

func (m *mockService) List() ([]*protocol.Ticket, error) { return m.tickets, nil }

func (m *mockService) Get(id string) (*protocol.Ticket, error) {
	for _, t := range m.tickets {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, fmt.Errorf("store: %w", ticket.ErrNotFound)
}

func newTestServer(svc Service, key string) *Server {
	return NewServer(svc, Config{Host: "127.0.0.1", Port: 0, Key: key}, nil, nil, progress.NewBroadcaster(nil))
}

func TestHealth(t *testing.T) {
	srv := newTestServer(&mockService{}, "")
	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestSubmitTask(t *testing.T) {
	svc := &mockService{}
	srv := newTestServer(svc, "")
	req := httptest.NewRequest("POST", "/api/tasks", strings.NewReader(`{"instructions":"build a blog"}`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var res lifecycle.SubmitResult
	json.NewDecoder(w.Body).Decode(&res)
	if res.TicketID != "TASK-1" || res.Duplicate {
		t.Errorf("result = %+v", res)
	}
	if len(svc.submitted) != 1 || svc.submitted[0] != "build a blog" {
		t.Errorf("submitted = %v", svc.submitted)
	}
}

func TestSubmitTask_Empty(t *testing.T) {
	srv := newTestServer(&mockService{}, "")
	req := httptest.NewRequest("POST", "/api/tasks", strings.NewReader(`{"instructions":"  "}`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
}

func TestSubmitTask_InvalidJSON(t *testing.T) {
	srv := newTestServer(&mockService{}, "")
	req := httptest.NewRequest("POST", "/api/tasks", strings.NewReader(`{`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
}

func TestSubmitTask_Duplicate(t *testing.T) {
	srv := newTestServer(&mockService{duplicate: true}, "")
	req := httptest.NewRequest("POST", "/api/tasks", strings.NewReader(`{"instructions":"again"}`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	// Duplicates are a non-error outcome.
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var res lifecycle.SubmitResult
	json.NewDecoder(w.Body).Decode(&res)
	if !res.Duplicate || res.TicketID != "" {
		t.Errorf("result = %+v", res)
	}
}

func TestListTickets(t *testing.T) {
	svc := &mockService{tickets: []*protocol.Ticket{
		{ID: "TASK-2", Status: protocol.TicketCompleted},
		{ID: "TASK-1", Status: protocol.TicketPending},
	}}
	srv := newTestServer(svc, "")
	req := httptest.NewRequest("GET", "/api/tickets", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var tickets []*protocol.Ticket
	json.NewDecoder(w.Body).Decode(&tickets)
	if len(tickets) != 2 {
		t.Errorf("got %d tickets", len(tickets))
	}
}

func TestListTickets_StatusFilter(t *testing.T) {
	svc := &mockService{tickets: []*protocol.Ticket{
		{ID: "TASK-2", Status: protocol.TicketCompleted},
		{ID: "TASK-1", Status: protocol.TicketPending},
	}}
	srv := newTestServer(svc, "")
	req := httptest.NewRequest("GET", "/api/tickets?status=pending", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	var tickets []*protocol.Ticket
	json.NewDecoder(w.Body).Decode(&tickets)
	if len(tickets) != 1 || tickets[0].ID != "TASK-1" {
		t.Errorf("tickets = %+v", tickets)
	}
}

func TestGetTicket(t *testing.T) {
	svc := &mockService{tickets: []*protocol.Ticket{{ID: "TASK-7", Title: "seven"}}}
	srv := newTestServer(svc, "")
	req := httptest.NewRequest("GET", "/api/tickets/TASK-7", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got protocol.Ticket
	json.NewDecoder(w.Body).Decode(&got)
	if got.Title != "seven" {
		t.Errorf("ticket = %+v", got)
	}
}

func TestGetTicket_NotFound(t *testing.T) {
	srv := newTestServer(&mockService{}, "")
	req := httptest.NewRequest("GET", "/api/tickets/TASK-404", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d", w.Code)
	}
}

func TestDevelop(t *testing.T) {
	svc := &mockService{tickets: []*protocol.Ticket{{ID: "TASK-1", Status: protocol.TicketPending}}}
	srv := newTestServer(svc, "")
	req := httptest.NewRequest("POST", "/api/tickets/TASK-1/develop", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var got protocol.Ticket
	json.NewDecoder(w.Body).Decode(&got)
	if got.Status != protocol.TicketCompleted {
		t.Errorf("status = %q", got.Status)
	}
}

func TestDevelop_FailureReturnsTicket(t *testing.T) {
	svc := &mockService{
		tickets:    []*protocol.Ticket{{ID: "TASK-1", Status: protocol.TicketPending}},
		developErr: fmt.Errorf("generation failed: quota"),
	}
	srv := newTestServer(svc, "")
	req := httptest.NewRequest("POST", "/api/tickets/TASK-1/develop", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Error  string           `json:"error"`
		Ticket *protocol.Ticket `json:"ticket"`
	}
	json.NewDecoder(w.Body).Decode(&body)
	if body.Ticket == nil || body.Ticket.Status != protocol.TicketFailed {
		t.Errorf("body = %+v", body)
	}
}

func TestDevelop_NotFound(t *testing.T) {
	srv := newTestServer(&mockService{}, "")
	req := httptest.NewRequest("POST", "/api/tickets/TASK-9/develop", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d", w.Code)
	}
}

func TestAuth(t *testing.T) {
	srv := newTestServer(&mockService{}, "secret")

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic secret", http.StatusUnauthorized},
		{"wrong key", "Bearer nope", http.StatusUnauthorized},
		{"correct", "Bearer secret", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/tickets", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, req)
			if w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}

func TestAuth_HealthIsOpen(t *testing.T) {
	srv := newTestServer(&mockService{}, "secret")
	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(&mockService{}, "secret")
	req := httptest.NewRequest("OPTIONS", "/api/tickets", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("allow-origin = %q", got)
	}
}

func TestWS_ReceivesProgressEvents(t *testing.T) {
	bc := progress.NewBroadcaster(nil)
	srv := NewServer(&mockService{}, Config{Host: "127.0.0.1", Port: 0}, nil, nil, bc)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The sink attaches during the upgrade handler; wait for it.
	deadline := time.Now().Add(2 * time.Second)
	for bc.Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if bc.Count() == 0 {
		t.Fatal("sink never attached")
	}

	bc.Publish(protocol.EventSuccess, "ticket created: %s", "TASK-1")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev protocol.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Kind != protocol.EventSuccess || ev.Message != "ticket created: TASK-1" {
		t.Errorf("event = %+v", ev)
	}
}
