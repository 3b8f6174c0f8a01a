package protocol

import "time"

// TicketStatus represents the lifecycle state of a ticket.
type TicketStatus string

const (
	TicketPending    TicketStatus = "pending"
	TicketInProgress TicketStatus = "in_progress"
	TicketCompleted  TicketStatus = "completed"
	TicketFailed     TicketStatus = "failed"
)

// Terminal reports whether no further transition may leave this status.
func (s TicketStatus) Terminal() bool {
	return s == TicketCompleted || s == TicketFailed
}

// Ticket is the persisted record of one unit of requested work.
//
// JSON field names match the on-disk record format: one ticket per
// <id>.json file under the data directory.
type Ticket struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Status       TicketStatus `json:"status"`
	CreatedAt    time.Time    `json:"createdAt"`
	StartedAt    *time.Time   `json:"startedAt,omitempty"`
	CompletedAt  *time.Time   `json:"completedAt,omitempty"`
	TaskFile     string       `json:"taskFile"`
	ProjectPath  string       `json:"projectPath,omitempty"`
	FilesCreated int          `json:"filesCreated,omitempty"`
	Error        string       `json:"error,omitempty"`
}
