package tracking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fablecraft/pipeline-tracker/internal/domain/pipeline"
	"github.com/fablecraft/pipeline-tracker/pkg/common/logger"
	"github.com/fablecraft/pipeline-tracker/pkg/common/timeutil"
)

// defaultMaxTrackingDuration bounds how long a single pipeline may be polled
// before it is declared failed. Backends occasionally lose jobs without ever
// reporting a terminal status, and without a cap those records would poll
// forever.
const defaultMaxTrackingDuration = 30 * time.Minute

// StartFunc kicks off a pipeline on the backend and returns the backend's
// identifier for it. The returned id is what every subsequent status poll and
// cancel request is keyed on.
type StartFunc func(ctx context.Context) (string, error)

// TrackerOption defines functional options for configuring a Tracker.
type TrackerOption func(*Tracker)

// WithPollInterval overrides the poll interval for one pipeline kind.
func WithPollInterval(kind pipeline.Kind, interval time.Duration) TrackerOption {
	return func(t *Tracker) { t.pollIntervals[kind] = interval }
}

// WithMaxTrackingDuration overrides the per-pipeline tracking cap. Zero
// disables the cap entirely.
func WithMaxTrackingDuration(d time.Duration) TrackerOption {
	return func(t *Tracker) { t.maxDuration = d }
}

// WithTrackerTimeProvider sets a custom time source, used by tests.
func WithTrackerTimeProvider(tp timeutil.Provider) TrackerOption {
	return func(t *Tracker) { t.timeProvider = tp }
}

// Tracker is the entry point for tracking generation pipelines. It owns the
// registry of tracked processes and one polling goroutine per in-flight
// pipeline. Registration is synchronous; the backend start call and all
// subsequent polling happen in the background so callers see the new record
// immediately, in the initializing state.
type Tracker struct {
	registry    pipeline.ProcessRegistry
	backend     BackendClient
	coordinator *CancellationCoordinator

	pollIntervals map[pipeline.Kind]time.Duration
	maxDuration   time.Duration

	timeProvider timeutil.Provider

	logger *logger.Logger
	tracer trace.Tracer

	mu      sync.Mutex
	cancels map[uuid.UUID]context.CancelFunc
	wg      sync.WaitGroup
}

// NewTracker creates a tracker backed by the given registry and backend
// client.
func NewTracker(
	registry pipeline.ProcessRegistry,
	backend BackendClient,
	logger *logger.Logger,
	tracer trace.Tracer,
	opts ...TrackerOption,
) *Tracker {
	t := &Tracker{
		registry:      registry,
		backend:       backend,
		coordinator:   NewCancellationCoordinator(registry, backend, logger, tracer),
		pollIntervals: make(map[pipeline.Kind]time.Duration),
		maxDuration:   defaultMaxTrackingDuration,
		timeProvider:  timeutil.Default(),
		logger:        logger.With("component", "tracker"),
		tracer:        tracer,
		cancels:       make(map[uuid.UUID]context.CancelFunc),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// StartPipeline registers a new pipeline record and launches its lifecycle in
// the background. The returned id is valid for Get, Cancel, and Remove from
// the moment this call returns, before the backend has acknowledged anything.
// A failed start surfaces asynchronously as an error-status record, not as an
// error from this method.
func (t *Tracker) StartPipeline(
	ctx context.Context,
	name string,
	kind pipeline.Kind,
	start StartFunc,
) (uuid.UUID, error) {
	ctx, span := t.tracer.Start(ctx, "tracker.start_pipeline",
		trace.WithAttributes(
			attribute.String("pipeline_name", name),
			attribute.String("pipeline_kind", kind.String()),
		))
	defer span.End()

	id := uuid.New()
	proc := pipeline.NewProcess(id, name, kind, pipeline.WithTimeProvider(t.timeProvider))
	if err := t.registry.Create(ctx, proc); err != nil {
		span.RecordError(err)
		return uuid.Nil, fmt.Errorf("registering pipeline %q: %w", name, err)
	}

	// The lifecycle goroutine must outlive the caller's request context, so
	// it runs under its own cancelable context detached from ctx.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t.mu.Lock()
	t.cancels[id] = cancel
	t.mu.Unlock()

	t.wg.Add(1)
	go t.track(runCtx, id, kind, start)

	t.logger.Info(ctx, "Pipeline registered", "pipeline_id", id, "name", name, "kind", kind)
	return id, nil
}

// track runs one pipeline's lifecycle: start it on the backend, then poll it
// to a terminal state.
func (t *Tracker) track(ctx context.Context, id uuid.UUID, kind pipeline.Kind, start StartFunc) {
	defer t.wg.Done()
	defer t.release(id)

	ctx, span := t.tracer.Start(ctx, "tracker.track",
		trace.WithAttributes(attribute.String("pipeline_id", id.String())))
	defer span.End()

	backendID, err := start(ctx)
	if err != nil {
		span.RecordError(err)
		t.logger.Error(ctx, "Pipeline start failed", "pipeline_id", id, "error", err)

		msg := fmt.Sprintf("Failed to start pipeline: %v", err)
		t.registry.AppendLog(ctx, id, pipeline.LogEntry{
			Text:       msg,
			Severity:   pipeline.SeverityError,
			ObservedAt: t.timeProvider.Now(),
		})
		t.registry.Patch(ctx, id, pipeline.ErrorPatch(msg))
		return
	}

	t.registry.Patch(ctx, id, pipeline.Patch{BackendID: &backendID})

	poller := NewStatusPoller(
		id, backendID,
		t.pollInterval(kind), t.maxDuration,
		t.registry, t.backend,
		t.logger, t.tracer,
	)
	if err := poller.Run(ctx); err != nil {
		// Only context cancellation reaches here; every backend failure is
		// recorded on the pipeline itself.
		t.logger.Info(ctx, "Pipeline tracking stopped", "pipeline_id", id, "reason", err)
	}
}

// Cancel relays a cancellation request for the given pipeline to the backend.
// It returns an error only for unknown ids; see CancellationCoordinator for
// the advisory semantics.
func (t *Tracker) Cancel(ctx context.Context, id uuid.UUID) error {
	return t.coordinator.RequestCancel(ctx, id)
}

// Get returns a snapshot of one tracked pipeline.
func (t *Tracker) Get(ctx context.Context, id uuid.UUID) (*pipeline.Process, error) {
	return t.registry.Get(ctx, id)
}

// List returns snapshots of all tracked pipelines in creation order.
func (t *Tracker) List(ctx context.Context) ([]*pipeline.Process, error) {
	return t.registry.List(ctx)
}

// Remove stops tracking a pipeline and deletes its record. The backend job,
// if still running, is left alone; callers who want it stopped should Cancel
// first. Removing an unknown id is a no-op.
func (t *Tracker) Remove(ctx context.Context, id uuid.UUID) error {
	t.mu.Lock()
	if cancel, ok := t.cancels[id]; ok {
		cancel()
	}
	t.mu.Unlock()

	return t.registry.Remove(ctx, id)
}

// Stop cancels every in-flight polling goroutine and waits for them to exit,
// bounded by ctx. Tracked records stay in the registry.
func (t *Tracker) Stop(ctx context.Context) error {
	t.mu.Lock()
	for _, cancel := range t.cancels {
		cancel()
	}
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// release forgets the cancel func for a finished lifecycle goroutine.
func (t *Tracker) release(id uuid.UUID) {
	t.mu.Lock()
	if cancel, ok := t.cancels[id]; ok {
		cancel()
		delete(t.cancels, id)
	}
	t.mu.Unlock()
}

func (t *Tracker) pollInterval(kind pipeline.Kind) time.Duration {
	if d, ok := t.pollIntervals[kind]; ok && d > 0 {
		return d
	}
	return kind.DefaultPollInterval()
}
