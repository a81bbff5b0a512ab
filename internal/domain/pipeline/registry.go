package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// ProcessRegistry is the single source of truth for tracked pipeline
// processes. Implementations must be safe for concurrent use: each poller
// goroutine writes only to its own record, but readers and writers overlap
// arbitrarily.
//
// Patch, AppendLog, and Remove are no-ops (not errors) for unknown ids so
// that late-arriving updates from a poller whose process was cleared are
// tolerated.
type ProcessRegistry interface {
	// Create inserts a new process record. It fails only if the id is
	// already present, which indicates a programmer error rather than a
	// runtime condition to recover from.
	Create(ctx context.Context, p *Process) error

	// Patch shallow-merges the given fields into the existing record.
	// Unspecified fields are untouched.
	Patch(ctx context.Context, id uuid.UUID, patch Patch) error

	// AppendLog pushes entries to the end of the record's log view. Earlier
	// entries are never mutated.
	AppendLog(ctx context.Context, id uuid.UUID, entries ...LogEntry) error

	// Get returns a deep-copied snapshot of one record.
	Get(ctx context.Context, id uuid.UUID) (*Process, error)

	// List returns deep-copied snapshots of every record in creation order.
	List(ctx context.Context) ([]*Process, error)

	// Remove deletes a record. Safe to call regardless of the record's
	// status.
	Remove(ctx context.Context, id uuid.UUID) error
}

// ProcessExistsError indicates a Create with an id that is already
// registered.
type ProcessExistsError struct {
	id uuid.UUID
}

// NewProcessExistsError creates a new ProcessExistsError.
func NewProcessExistsError(id uuid.UUID) *ProcessExistsError {
	return &ProcessExistsError{id: id}
}

// Error returns a string representation of the error.
func (e *ProcessExistsError) Error() string {
	return fmt.Sprintf("process %s already exists", e.id)
}

// ProcessID returns the offending id.
func (e *ProcessExistsError) ProcessID() uuid.UUID { return e.id }

// ProcessNotFoundError indicates a read of an id the registry does not hold.
// Write operations never return it; only Get does.
type ProcessNotFoundError struct {
	id uuid.UUID
}

// NewProcessNotFoundError creates a new ProcessNotFoundError.
func NewProcessNotFoundError(id uuid.UUID) *ProcessNotFoundError {
	return &ProcessNotFoundError{id: id}
}

// Error returns a string representation of the error.
func (e *ProcessNotFoundError) Error() string {
	return fmt.Sprintf("process %s not found", e.id)
}

// ProcessID returns the missing id.
func (e *ProcessNotFoundError) ProcessID() uuid.UUID { return e.id }
