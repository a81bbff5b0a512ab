// Package memory provides the in-memory implementation of the pipeline
// process registry. Process history does not survive a restart; that is by
// design, the registry exists for the lifetime of one client session.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/fablecraft/pipeline-tracker/internal/domain/pipeline"
)

// ProcessRegistry is a mutex-guarded in-memory registry of pipeline
// processes. Every poller writes only to its own record, but reads and
// writes from different goroutines overlap arbitrarily, so all access is
// synchronized.
type ProcessRegistry struct {
	mu        sync.RWMutex
	processes map[uuid.UUID]*pipeline.Process
	order     []uuid.UUID // creation order, for stable List output
}

// NewProcessRegistry creates an empty registry.
func NewProcessRegistry() *ProcessRegistry {
	return &ProcessRegistry{
		processes: make(map[uuid.UUID]*pipeline.Process),
	}
}

var _ pipeline.ProcessRegistry = (*ProcessRegistry)(nil)

// Create inserts a new process record. A duplicate id is a programmer error
// and fails loudly.
func (r *ProcessRegistry) Create(ctx context.Context, p *pipeline.Process) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.processes[p.ID()]; exists {
		return pipeline.NewProcessExistsError(p.ID())
	}

	r.processes[p.ID()] = p
	r.order = append(r.order, p.ID())
	return nil
}

// Patch shallow-merges the given fields into the existing record. Unknown
// ids are a no-op so late-arriving poller updates for a cleared process are
// harmless.
func (r *ProcessRegistry) Patch(ctx context.Context, id uuid.UUID, patch pipeline.Patch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.processes[id]
	if !exists {
		return nil
	}

	return p.Apply(patch)
}

// AppendLog pushes entries onto the record's append-only log view. Unknown
// ids are a no-op.
func (r *ProcessRegistry) AppendLog(ctx context.Context, id uuid.UUID, entries ...pipeline.LogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.processes[id]
	if !exists {
		return nil
	}

	p.AppendLog(entries...)
	return nil
}

// Get returns a deep-copied snapshot of one record so callers can never
// alias registry-owned state.
func (r *ProcessRegistry) Get(ctx context.Context, id uuid.UUID) (*pipeline.Process, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.processes[id]
	if !exists {
		return nil, pipeline.NewProcessNotFoundError(id)
	}

	return deepCopy(p), nil
}

// List returns deep-copied snapshots of every record in creation order.
func (r *ProcessRegistry) List(ctx context.Context) ([]*pipeline.Process, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*pipeline.Process, 0, len(r.order))
	for _, id := range r.order {
		if p, exists := r.processes[id]; exists {
			out = append(out, deepCopy(p))
		}
	}
	return out, nil
}

// Remove deletes a record. Safe to call regardless of the record's status;
// unknown ids are a no-op.
func (r *ProcessRegistry) Remove(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.processes[id]; !exists {
		return nil
	}

	delete(r.processes, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func deepCopy(p *pipeline.Process) *pipeline.Process {
	end, _ := p.EndTime()
	return pipeline.ReconstructProcess(
		p.ID(),
		p.BackendID(),
		p.Name(),
		p.Kind(),
		p.Status(),
		p.Progress(),
		p.Stages(), // already a copy
		p.CurrentStage(),
		p.CurrentItem(),
		p.TotalItems(),
		p.CompletedItems(),
		p.Logs(), // already a copy
		pipeline.ReconstructTimeline(p.StartTime(), end, p.LastUpdate()),
		p.ErrorDetail(),
	)
}
