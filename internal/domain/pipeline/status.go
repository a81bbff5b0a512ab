package pipeline

import "fmt"

// ProcessStatus represents the current state of a generation pipeline
// process. It enables tracking of the pipeline lifecycle from initialization
// through completion, failure, or cancellation.
type ProcessStatus string

const (
	// StatusInitializing indicates a process has been created locally but the
	// backend start call has not resolved yet.
	StatusInitializing ProcessStatus = "initializing"

	// StatusRunning indicates the backend accepted the pipeline and a poller
	// is actively tracking it.
	StatusRunning ProcessStatus = "running"

	// StatusComplete indicates the pipeline finished successfully.
	StatusComplete ProcessStatus = "complete"

	// StatusError indicates the pipeline failed, either remotely or because
	// the tracker could not reach the backend.
	StatusError ProcessStatus = "error"

	// StatusCancelled indicates the backend confirmed a cancellation request.
	StatusCancelled ProcessStatus = "cancelled"
)

func (s ProcessStatus) String() string { return string(s) }

// IsTerminal reports whether the status admits no further transitions.
func (s ProcessStatus) IsTerminal() bool {
	return s == StatusComplete || s == StatusError || s == StatusCancelled
}

// ParseStatus converts a string to a ProcessStatus. Unknown values map to
// the empty status.
func ParseStatus(s string) ProcessStatus {
	switch s {
	case "initializing":
		return StatusInitializing
	case "running":
		return StatusRunning
	case "complete":
		return StatusComplete
	case "error":
		return StatusError
	case "cancelled":
		return StatusCancelled
	default:
		return "" // represents unspecified
	}
}

// ValidateTransition checks if a status transition is valid and returns an
// error if not.
func (s ProcessStatus) ValidateTransition(target ProcessStatus) error {
	if !s.isValidTransition(target) {
		return fmt.Errorf("invalid process status transition from %s to %s", s, target)
	}
	return nil
}

// isValidTransition checks if the current status can transition to the
// target status. It enforces the process lifecycle rules to prevent invalid
// state changes.
func (s ProcessStatus) isValidTransition(target ProcessStatus) bool {
	switch s {
	case StatusInitializing:
		// A process leaves initializing when its poller starts, when the
		// start call fails, or when a cancel is confirmed before the first
		// running patch lands.
		return target == StatusRunning || target == StatusError || target == StatusCancelled
	case StatusRunning:
		return target == StatusComplete || target == StatusError || target == StatusCancelled
	case StatusComplete, StatusError, StatusCancelled:
		// Terminal states - no further transitions allowed.
		return false
	default:
		return false
	}
}
