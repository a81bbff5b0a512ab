package tracking

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fablecraft/pipeline-tracker/internal/domain/pipeline"
	"github.com/fablecraft/pipeline-tracker/pkg/common/logger"
	"github.com/fablecraft/pipeline-tracker/pkg/common/timeutil"
)

// CancellationCoordinator relays cancellation requests to the backend.
// Cancellation is advisory: the coordinator asks the backend to stop and
// records that it asked, but it never flips the local status itself. The
// pipeline becomes cancelled only when a later status poll observes the
// backend reporting it so. A backend that keeps running after a cancel
// request simply keeps being tracked to whatever end it reaches.
type CancellationCoordinator struct {
	registry  pipeline.ProcessRegistry
	canceller PipelineCanceller

	timeProvider timeutil.Provider

	logger *logger.Logger
	tracer trace.Tracer
}

// NewCancellationCoordinator creates a coordinator that relays cancel
// requests through the given backend canceller.
func NewCancellationCoordinator(
	registry pipeline.ProcessRegistry,
	canceller PipelineCanceller,
	logger *logger.Logger,
	tracer trace.Tracer,
) *CancellationCoordinator {
	return &CancellationCoordinator{
		registry:     registry,
		canceller:    canceller,
		timeProvider: timeutil.Default(),
		logger:       logger.With("component", "cancellation_coordinator"),
		tracer:       tracer,
	}
}

// RequestCancel asks the backend to cancel the pipeline tracked under id.
// It returns an error only when id is unknown; a failed or impossible relay
// is recorded in the pipeline's log and otherwise swallowed, since the
// request is best-effort by contract. The call never blocks on the
// pipeline actually stopping.
func (c *CancellationCoordinator) RequestCancel(ctx context.Context, id uuid.UUID) error {
	ctx, span := c.tracer.Start(ctx, "cancellation_coordinator.request_cancel",
		trace.WithAttributes(attribute.String("pipeline_id", id.String())))
	defer span.End()

	proc, err := c.registry.Get(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("cancel pipeline: %w", err)
	}

	if proc.Status().IsTerminal() {
		span.AddEvent("already_terminal",
			trace.WithAttributes(attribute.String("status", proc.Status().String())))
		c.logger.Info(ctx, "Cancel requested for finished pipeline, ignoring",
			"pipeline_id", id, "status", proc.Status())
		return nil
	}

	c.appendAdvisory(ctx, id, "Cancellation requested")

	backendID := proc.BackendID()
	if backendID == "" {
		// The backend never acknowledged a start, so there is nothing to
		// cancel remotely. The request stays recorded locally.
		c.logger.Warn(ctx, "Cancel requested before backend assigned an id", "pipeline_id", id)
		return nil
	}

	if err := c.canceller.CancelPipeline(ctx, backendID); err != nil {
		span.RecordError(err)
		c.logger.Error(ctx, "Cancel relay to backend failed",
			"pipeline_id", id, "backend_id", backendID, "error", err)
		c.appendAdvisory(ctx, id, fmt.Sprintf("Cancellation request could not be delivered: %v", err))
		return nil
	}

	c.logger.Info(ctx, "Cancel relayed to backend", "pipeline_id", id, "backend_id", backendID)
	return nil
}

func (c *CancellationCoordinator) appendAdvisory(ctx context.Context, id uuid.UUID, text string) {
	entry := pipeline.LogEntry{
		Text:       text,
		Severity:   pipeline.SeverityWarning,
		ObservedAt: c.timeProvider.Now(),
	}
	if err := c.registry.AppendLog(ctx, id, entry); err != nil {
		c.logger.Error(ctx, "Failed to record cancellation note", "pipeline_id", id, "error", err)
	}
}
