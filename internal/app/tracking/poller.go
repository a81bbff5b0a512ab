package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fablecraft/pipeline-tracker/internal/domain/pipeline"
	"github.com/fablecraft/pipeline-tracker/pkg/common/logger"
	"github.com/fablecraft/pipeline-tracker/pkg/common/timeutil"
)

// StatusPoller drives a single tracked pipeline from running to a terminal
// state by periodically fetching the backend's status snapshot and folding
// it into the registry. One poller instance owns one pipeline; pollers for
// different pipelines run independently and never block each other.
type StatusPoller struct {
	processID uuid.UUID
	backendID string

	interval    time.Duration
	maxDuration time.Duration

	registry   pipeline.ProcessRegistry
	fetcher    StatusFetcher
	reconciler *LogReconciler

	timeProvider timeutil.Provider

	logger *logger.Logger
	tracer trace.Tracer
}

// NewStatusPoller creates a poller for a pipeline already registered under
// processID and started on the backend under backendID. maxDuration caps how
// long the poller will track the pipeline before declaring it failed; zero
// disables the cap.
func NewStatusPoller(
	processID uuid.UUID,
	backendID string,
	interval time.Duration,
	maxDuration time.Duration,
	registry pipeline.ProcessRegistry,
	fetcher StatusFetcher,
	logger *logger.Logger,
	tracer trace.Tracer,
) *StatusPoller {
	return &StatusPoller{
		processID:    processID,
		backendID:    backendID,
		interval:     interval,
		maxDuration:  maxDuration,
		registry:     registry,
		fetcher:      fetcher,
		reconciler:   NewLogReconciler(timeutil.Default()),
		timeProvider: timeutil.Default(),
		logger:       logger.With("component", "status_poller", "pipeline_id", processID.String()),
		tracer:       tracer,
	}
}

// Run marks the pipeline running and polls the backend until the pipeline
// reaches a terminal status, the tracking duration cap expires, or ctx is
// cancelled. The first poll happens immediately rather than waiting for the
// first tick. Run returns nil on normal termination; it returns ctx.Err()
// only when cancelled from outside.
func (p *StatusPoller) Run(ctx context.Context) error {
	ctx, span := p.tracer.Start(ctx, "status_poller.run",
		trace.WithAttributes(
			attribute.String("pipeline_id", p.processID.String()),
			attribute.String("backend_id", p.backendID),
		))
	defer span.End()

	p.logger.Info(ctx, "Starting status poller", "backend_id", p.backendID, "interval", p.interval)

	running := pipeline.StatusRunning
	p.registry.Patch(ctx, p.processID, pipeline.Patch{Status: &running})

	var deadline time.Time
	if p.maxDuration > 0 {
		deadline = p.timeProvider.Now().Add(p.maxDuration)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Poll once up front so short-lived pipelines are observed at least once.
	if done := p.tick(ctx); done {
		return nil
	}

	for {
		select {
		case <-ticker.C:
			if !deadline.IsZero() && p.timeProvider.Now().After(deadline) {
				p.abandon(ctx)
				return nil
			}
			if done := p.tick(ctx); done {
				return nil
			}
		case <-ctx.Done():
			span.SetStatus(codes.Error, ctx.Err().Error())
			p.logger.Info(ctx, "Stopping status poller", "reason", ctx.Err())
			return ctx.Err()
		}
	}
}

// tick fetches one status snapshot and applies it. It reports true once the
// pipeline no longer needs polling, either because it reached a terminal
// status or because the fetch itself failed.
func (p *StatusPoller) tick(ctx context.Context) bool {
	ctx, span := p.tracer.Start(ctx, "status_poller.tick",
		trace.WithAttributes(attribute.String("backend_id", p.backendID)))
	defer span.End()

	snap, err := p.fetcher.FetchStatus(ctx, p.backendID)
	if err != nil {
		// A poll that cannot reach the backend fails the pipeline outright;
		// there is no retry, so the record must not stay running forever.
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Error(ctx, "Status fetch failed, marking pipeline failed", "error", err)

		msg := fmt.Sprintf("Status polling failed: %v", err)
		p.registry.AppendLog(ctx, p.processID, pipeline.LogEntry{
			Text:       msg,
			Severity:   pipeline.SeverityError,
			ObservedAt: p.timeProvider.Now(),
		})
		p.registry.Patch(ctx, p.processID, pipeline.ErrorPatch(msg))
		return true
	}

	patch := ProjectSnapshot(snap)
	p.registry.Patch(ctx, p.processID, patch)

	if fresh := p.reconciler.Reconcile(snap.Logs); len(fresh) > 0 {
		p.registry.AppendLog(ctx, p.processID, fresh...)
	}

	if snap.Status.IsTerminal() {
		span.AddEvent("pipeline_terminal",
			trace.WithAttributes(attribute.String("status", snap.Status.String())))
		p.logger.Info(ctx, "Pipeline reached terminal status", "status", snap.Status)
		return true
	}
	return false
}

// abandon fails a pipeline that exceeded the tracking duration cap.
func (p *StatusPoller) abandon(ctx context.Context) {
	msg := fmt.Sprintf("Pipeline exceeded maximum tracking duration of %s", p.maxDuration)
	p.logger.Warn(ctx, "Abandoning pipeline", "max_duration", p.maxDuration)
	p.registry.AppendLog(ctx, p.processID, pipeline.LogEntry{
		Text:       msg,
		Severity:   pipeline.SeverityError,
		ObservedAt: p.timeProvider.Now(),
	})
	p.registry.Patch(ctx, p.processID, pipeline.ErrorPatch(msg))
}
