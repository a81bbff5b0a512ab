package pipeline

import (
	"time"

	"github.com/fablecraft/pipeline-tracker/pkg/common/timeutil"
)

// Timeline tracks temporal aspects of a pipeline process.
type Timeline struct {
	startedAt    time.Time
	completedAt  time.Time
	lastUpdate   time.Time
	timeProvider timeutil.Provider
}

// NewTimeline creates a new Timeline instance anchored at the provider's
// current time.
func NewTimeline(timeProvider timeutil.Provider) *Timeline {
	now := timeProvider.Now()
	return &Timeline{
		startedAt:    now,
		lastUpdate:   now,
		timeProvider: timeProvider,
	}
}

// ReconstructTimeline creates a Timeline from stored timestamps. This should
// only be used when rebuilding a process from a snapshot copy.
func ReconstructTimeline(startedAt, completedAt, lastUpdate time.Time) *Timeline {
	return &Timeline{
		startedAt:    startedAt,
		completedAt:  completedAt,
		lastUpdate:   lastUpdate,
		timeProvider: timeutil.Default(),
	}
}

// StartedAt returns the time the process was created.
func (t *Timeline) StartedAt() time.Time { return t.startedAt }

// CompletedAt returns the time the process reached a terminal status.
func (t *Timeline) CompletedAt() time.Time { return t.completedAt }

// LastUpdate returns the time the process was last updated.
func (t *Timeline) LastUpdate() time.Time { return t.lastUpdate }

// MarkStarted re-anchors the start time. Called when the process transitions
// from initializing to running, which marks the beginning of actual backend
// execution.
func (t *Timeline) MarkStarted() {
	t.startedAt = t.timeProvider.Now()
	t.UpdateLastUpdate()
}

// MarkCompleted records completion time.
func (t *Timeline) MarkCompleted() {
	t.completedAt = t.timeProvider.Now()
	t.UpdateLastUpdate()
}

// UpdateLastUpdate updates the last update timestamp.
func (t *Timeline) UpdateLastUpdate() {
	t.lastUpdate = t.timeProvider.Now()
}

// IsCompleted checks if the timeline has been marked as completed.
func (t *Timeline) IsCompleted() bool { return !t.completedAt.IsZero() }
