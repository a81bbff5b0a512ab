package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fablecraft/pipeline-tracker/pkg/common/timeutil"
)

// Process tracks the full lifecycle and local view of a single generation
// pipeline. It accumulates the merged log view and the latest projected
// progress/stage fields, and enforces the status state machine.
type Process struct {
	id        uuid.UUID
	backendID string
	name      string
	kind      Kind

	status   ProcessStatus
	progress float64
	stages   []Stage

	currentStage   string
	currentItem    int
	totalItems     int
	completedItems int

	logs []LogEntry

	timeline  *Timeline
	errDetail string
}

// ProcessOption defines functional options for configuring a new Process.
type ProcessOption func(*Process)

// WithTimeProvider sets a custom time provider for the process timeline.
func WithTimeProvider(tp timeutil.Provider) ProcessOption {
	return func(p *Process) { p.timeline = NewTimeline(tp) }
}

// NewProcess creates a process record in the initializing state with an
// empty log view and zero progress.
func NewProcess(id uuid.UUID, name string, kind Kind, opts ...ProcessOption) *Process {
	p := &Process{
		id:       id,
		name:     name,
		kind:     kind,
		status:   StatusInitializing,
		logs:     []LogEntry{},
		timeline: NewTimeline(timeutil.Default()),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// ReconstructProcess rebuilds a Process from stored fields, bypassing
// creation invariants. This should only be used by the registry when handing
// out deep copies.
func ReconstructProcess(
	id uuid.UUID,
	backendID string,
	name string,
	kind Kind,
	status ProcessStatus,
	progress float64,
	stages []Stage,
	currentStage string,
	currentItem, totalItems, completedItems int,
	logs []LogEntry,
	timeline *Timeline,
	errDetail string,
) *Process {
	return &Process{
		id:             id,
		backendID:      backendID,
		name:           name,
		kind:           kind,
		status:         status,
		progress:       progress,
		stages:         stages,
		currentStage:   currentStage,
		currentItem:    currentItem,
		totalItems:     totalItems,
		completedItems: completedItems,
		logs:           logs,
		timeline:       timeline,
		errDetail:      errDetail,
	}
}

// ID returns the locally generated identifier, assigned at creation and
// never reassigned.
func (p *Process) ID() uuid.UUID { return p.id }

// BackendID returns the correlation id assigned by the remote start call.
// Empty until the start call resolves.
func (p *Process) BackendID() string { return p.backendID }

// Name returns the human-readable label fixed at creation.
func (p *Process) Name() string { return p.name }

// Kind returns the pipeline kind fixed at creation.
func (p *Process) Kind() Kind { return p.kind }

// Status returns the current lifecycle status.
func (p *Process) Status() ProcessStatus { return p.status }

// Progress returns the latest reported progress fraction. The remote value
// is trusted verbatim.
func (p *Process) Progress() float64 { return p.progress }

// Stages returns a copy of the latest reported stage list.
func (p *Process) Stages() []Stage { return CopyStages(p.stages) }

// CurrentStage returns the latest reported stage name.
func (p *Process) CurrentStage() string { return p.currentStage }

// CurrentItem returns the latest reported item index.
func (p *Process) CurrentItem() int { return p.currentItem }

// TotalItems returns the latest reported item total.
func (p *Process) TotalItems() int { return p.totalItems }

// CompletedItems returns the latest reported completed item count.
func (p *Process) CompletedItems() int { return p.completedItems }

// Logs returns a copy of the merged, append-only log view.
func (p *Process) Logs() []LogEntry {
	out := make([]LogEntry, len(p.logs))
	copy(out, p.logs)
	return out
}

// StartTime returns when this process was created or, once running, when
// backend execution began.
func (p *Process) StartTime() time.Time { return p.timeline.StartedAt() }

// EndTime returns when this process reached a terminal status. The second
// return value is false while the process is non-terminal.
func (p *Process) EndTime() (time.Time, bool) {
	if p.status.IsTerminal() {
		return p.timeline.CompletedAt(), true
	}
	return time.Time{}, false
}

// LastUpdate returns the time this process's local view last changed.
func (p *Process) LastUpdate() time.Time { return p.timeline.LastUpdate() }

// Timeline provides access to the process's timeline information.
func (p *Process) Timeline() *Timeline { return p.timeline }

// ErrorDetail returns the failure detail. Populated only in the error state.
func (p *Process) ErrorDetail() string { return p.errDetail }

// UpdateStatus changes the process's status after validating the transition.
// Setting the status it already has is a silent no-op, which tolerates
// duplicate terminal snapshots. It returns an error for any other invalid
// transition.
func (p *Process) UpdateStatus(newStatus ProcessStatus) error {
	if newStatus == p.status {
		return nil
	}

	if err := p.status.ValidateTransition(newStatus); err != nil {
		return err
	}

	// Mark the start time when leaving initializing as this represents the
	// beginning of actual backend execution.
	if p.status == StatusInitializing && newStatus == StatusRunning {
		p.timeline.MarkStarted()
	}

	if newStatus.IsTerminal() {
		p.timeline.MarkCompleted()
	}

	p.status = newStatus
	return nil
}

// AppendLog pushes entries onto the end of the merged log view. Earlier
// entries are never mutated, shortened, or reordered.
func (p *Process) AppendLog(entries ...LogEntry) {
	p.logs = append(p.logs, entries...)
	p.timeline.UpdateLastUpdate()
}

// Patch carries a partial update for a process. Nil fields leave the
// corresponding record fields untouched; a non-nil Stages slice replaces the
// stage list wholesale.
type Patch struct {
	Status         *ProcessStatus
	BackendID      *string
	Progress       *float64
	Stages         []Stage
	CurrentStage   *string
	CurrentItem    *int
	TotalItems     *int
	CompletedItems *int
	Error          *string
}

// StatusPatch is a convenience for a patch that only moves the status.
func StatusPatch(status ProcessStatus) Patch {
	return Patch{Status: &status}
}

// ErrorPatch builds the patch used for every local failure path: terminal
// error status plus the failure detail.
func ErrorPatch(detail string) Patch {
	status := StatusError
	return Patch{Status: &status, Error: &detail}
}

// Apply shallow-merges the patch into the process. Status changes go through
// the state machine; all other present fields are last-snapshot-wins
// overwrites. A patch that attempts an invalid status transition fails
// without applying anything.
func (p *Process) Apply(patch Patch) error {
	if patch.Status != nil && *patch.Status != p.status {
		if err := p.status.ValidateTransition(*patch.Status); err != nil {
			return fmt.Errorf("applying patch to process %s: %w", p.id, err)
		}
	}

	if patch.Status != nil {
		// Already validated; UpdateStatus also stamps the timeline.
		_ = p.UpdateStatus(*patch.Status)
	}
	if patch.BackendID != nil {
		p.backendID = *patch.BackendID
	}
	if patch.Progress != nil {
		p.progress = *patch.Progress
	}
	if patch.Stages != nil {
		p.stages = CopyStages(patch.Stages)
	}
	if patch.CurrentStage != nil {
		p.currentStage = *patch.CurrentStage
	}
	if patch.CurrentItem != nil {
		p.currentItem = *patch.CurrentItem
	}
	if patch.TotalItems != nil {
		p.totalItems = *patch.TotalItems
	}
	if patch.CompletedItems != nil {
		p.completedItems = *patch.CompletedItems
	}
	if patch.Error != nil {
		p.errDetail = *patch.Error
	}

	p.timeline.UpdateLastUpdate()
	return nil
}
