// Package lifecycle coordinates a ticket from submission through
// development: identity assignment, duplicate suppression, the generative
// call, extraction, materialization and every status transition in between.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/fabrik-io/fabrik/internal/extract"
	"github.com/fabrik-io/fabrik/internal/progress"
	"github.com/fabrik-io/fabrik/internal/project"
	"github.com/fabrik-io/fabrik/internal/provider"
	"github.com/fabrik-io/fabrik/internal/ticket"
	"github.com/fabrik-io/fabrik/pkg/protocol"
)

// titleLen is how many runes of the instructions become the ticket title. The
// truncated title is also the duplicate-detection key; the imprecision of
// comparing truncated titles is a known, accepted limitation.
const titleLen = 100

// ErrEmptyInstructions rejects submissions with no content.
var ErrEmptyInstructions = errors.New("lifecycle: instructions are empty")

// Coordinator drives the ticket state machine.
type Coordinator struct {
	store    ticket.Store
	prov     provider.Provider
	mat      *project.Materializer
	progress *progress.Broadcaster
	logger   *slog.Logger

	tasksDir   string
	strategy   extract.BlockStrategy
	genTimeout time.Duration

	// submitMu serializes the duplicate check with the subsequent create,
	// so two identical near-simultaneous submissions cannot both pass the
	// check.
	submitMu sync.Mutex
}

// Options tunes a Coordinator.
type Options struct {
	TasksDir      string
	BlockStrategy extract.BlockStrategy
	GenTimeout    time.Duration
	Logger        *slog.Logger
}

// New wires a coordinator.
func New(store ticket.Store, prov provider.Provider, mat *project.Materializer, bc *progress.Broadcaster, opts Options) *Coordinator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.BlockStrategy == "" {
		opts.BlockStrategy = extract.BlockFirst
	}
	if opts.GenTimeout <= 0 {
		opts.GenTimeout = 180 * time.Second
	}
	return &Coordinator{
		store:      store,
		prov:       prov,
		mat:        mat,
		progress:   bc,
		logger:     opts.Logger,
		tasksDir:   opts.TasksDir,
		strategy:   opts.BlockStrategy,
		genTimeout: opts.GenTimeout,
	}
}

// SubmitResult is the outcome of a submission. Duplicate submissions are a
// non-error result: no ticket is created and no identifier is consumed.
type SubmitResult struct {
	TicketID  string `json:"ticket_id,omitempty"`
	TaskFile  string `json:"task_file,omitempty"`
	Duplicate bool   `json:"duplicate"`
}

// Submit records new instructions as a pending ticket.
func (c *Coordinator) Submit(instructions string) (*SubmitResult, error) {
	if strings.TrimSpace(instructions) == "" {
		return nil, ErrEmptyInstructions
	}

	title := truncate(instructions, titleLen)
	c.progress.Publish(protocol.EventInfo, "instructions received: %s", title)

	c.submitMu.Lock()
	defer c.submitMu.Unlock()

	dup, err := c.store.FindDuplicate(title)
	if err != nil {
		return nil, err
	}
	if dup {
		c.progress.Publish(protocol.EventWarning, "duplicate ticket already exists, nothing created")
		return &SubmitResult{Duplicate: true}, nil
	}

	taskFile, err := c.writeTaskArtifact(instructions)
	if err != nil {
		return nil, err
	}
	c.progress.Publish(protocol.EventSuccess, "task artifact saved: %s", taskFile)

	id, err := c.store.NextID()
	if err != nil {
		return nil, err
	}

	t := &protocol.Ticket{
		ID:          id,
		Title:       title,
		Description: instructions,
		Status:      protocol.TicketPending,
		CreatedAt:   time.Now().UTC(),
		TaskFile:    taskFile,
	}
	if err := c.store.Create(t); err != nil {
		return nil, err
	}

	c.progress.Publish(protocol.EventSuccess, "ticket created: %s", id)
	return &SubmitResult{TicketID: id, TaskFile: taskFile}, nil
}

// Develop runs the generation pipeline for a pending ticket. Calls on a
// ticket that is already in_progress or terminal return the current record
// unchanged: the pending→in_progress compare-and-set is the only gate, so
// two developments of the same ticket can never run concurrently.
//
// A failure is recorded on the ticket and persisted before it is returned,
// so the record survives the caller's connection.
func (c *Coordinator) Develop(ctx context.Context, id string) (*protocol.Ticket, error) {
	t, ok, err := c.store.Transition(id, protocol.TicketPending, protocol.TicketInProgress, func(t *protocol.Ticket) {
		now := time.Now().UTC()
		t.StartedAt = &now
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		c.logger.Info("develop is a no-op", "ticket", id, "status", string(t.Status))
		return t, nil
	}

	c.progress.Publish(protocol.EventInfo, "development started: %s", id)

	genCtx, cancel := context.WithTimeout(ctx, c.genTimeout)
	defer cancel()

	c.progress.Publish(protocol.EventInfo, "requesting generation from %s", c.prov.Name())
	text, err := c.prov.Generate(genCtx, buildPrompt(t.Description))
	if err != nil {
		return c.fail(id, fmt.Sprintf("generation failed: %v", err), err)
	}
	c.progress.Publish(protocol.EventSuccess, "generation received (%d chars)", len(text))

	specs := extract.Extract(text, c.strategy)
	if len(specs) == 0 {
		// Business outcome, not a crash: the ticket fails, the call
		// succeeds.
		t, _, err := c.store.Transition(id, protocol.TicketInProgress, protocol.TicketFailed, func(t *protocol.Ticket) {
			t.Error = "no file content could be extracted"
		})
		if err != nil {
			return nil, err
		}
		c.progress.Publish(protocol.EventError, "extraction failed for %s: no file content", id)
		return t, nil
	}

	result, err := c.mat.Materialize(t.Title, t.Description, specs)
	if err != nil {
		return c.fail(id, fmt.Sprintf("materialization failed: %v", err), err)
	}
	c.progress.Publish(protocol.EventSuccess, "%d files created under %s", len(result.Files), result.Path)

	t, _, err = c.store.Transition(id, protocol.TicketInProgress, protocol.TicketCompleted, func(t *protocol.Ticket) {
		now := time.Now().UTC()
		t.CompletedAt = &now
		t.ProjectPath = result.Path
		t.FilesCreated = len(result.Files)
	})
	if err != nil {
		return nil, err
	}

	c.progress.Publish(protocol.EventSuccess, "development completed: %s", id)
	return t, nil
}

// fail records cause on the ticket, persists it, then surfaces cause.
func (c *Coordinator) fail(id, message string, cause error) (*protocol.Ticket, error) {
	t, _, err := c.store.Transition(id, protocol.TicketInProgress, protocol.TicketFailed, func(t *protocol.Ticket) {
		t.Error = message
	})
	if err != nil {
		c.logger.Error("failed to persist ticket failure", "ticket", id, "error", err)
		return nil, errors.Join(cause, err)
	}
	c.progress.Publish(protocol.EventError, "development failed: %s: %s", id, message)
	return t, cause
}

// List returns all tickets, newest first.
func (c *Coordinator) List() ([]*protocol.Ticket, error) {
	return c.store.List()
}

// Get returns one ticket by id.
func (c *Coordinator) Get(id string) (*protocol.Ticket, error) {
	return c.store.Get(id)
}

// writeTaskArtifact persists the raw instructions next to the tickets.
// Colons and dots in the timestamp are replaced so the name is safe on
// every filesystem.
func (c *Coordinator) writeTaskArtifact(instructions string) (string, error) {
	if err := os.MkdirAll(c.tasksDir, 0o755); err != nil {
		return "", fmt.Errorf("lifecycle: create tasks dir: %w", err)
	}
	stamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	name := "task_" + strings.NewReplacer(":", "-", ".", "-").Replace(stamp) + ".txt"
	if err := os.WriteFile(filepath.Join(c.tasksDir, name), []byte(instructions), 0o644); err != nil {
		return "", fmt.Errorf("lifecycle: write task artifact: %w", err)
	}
	return name, nil
}

// buildPrompt frames the ticket description so the model answers with one
// heading plus fenced block per file, the shape the extractor expects.
func buildPrompt(description string) string {
	return fmt.Sprintf(`Generate a complete project for the following requirements:

%s

Response format:
1. State the project name first.
2. For every file, write a heading with the file path in backticks, followed by one fenced code block with the full file content, for example:

## `+"`src/App.tsx`"+`
`+"```typescript"+`
// file content
`+"```"+`

Include every file the project needs (package.json, configuration files, and so on).`, description)
}

// truncate cuts s to at most n runes, never splitting a UTF-8 sequence.
// The result doubles as the duplicate-detection key, so it must survive a
// persist-and-reload round trip byte-identical. Truncation is lossy and
// intentional.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
