// Package ticket persists ticket records and owns identifier assignment.
package ticket

import (
	"errors"

	"github.com/fabrik-io/fabrik/pkg/protocol"
)

// Sentinel errors for the store. Persistence failures are wrapped with
// context; callers match with errors.Is.
var (
	// ErrNotFound means no record exists for the given id.
	ErrNotFound = errors.New("ticket not found")
	// ErrCorruptRecord means a persisted record could not be decoded.
	// Bulk listings skip corrupt records instead of aborting.
	ErrCorruptRecord = errors.New("corrupt ticket record")
)

// Store is the persistence interface for tickets.
type Store interface {
	// NextID returns the next TASK-<n> identifier. Identifiers are unique
	// and strictly increasing across all tickets ever created, never
	// reused, even after failures.
	NextID() (string, error)
	// Create persists a new ticket record.
	Create(t *protocol.Ticket) error
	// Get retrieves a ticket by id.
	Get(id string) (*protocol.Ticket, error)
	// Save overwrites an existing ticket record.
	Save(t *protocol.Ticket) error
	// List returns all tickets ordered by creation time, newest first.
	List() ([]*protocol.Ticket, error)
	// FindDuplicate reports whether any stored ticket has the given title
	// and a status other than completed.
	FindDuplicate(title string) (bool, error)
	// Transition atomically moves a ticket from one status to another,
	// applying mutate before persisting. The returned bool is false when
	// the ticket was not in the from status; the current record is
	// returned either way.
	Transition(id string, from, to protocol.TicketStatus, mutate func(*protocol.Ticket)) (*protocol.Ticket, bool, error)
}
