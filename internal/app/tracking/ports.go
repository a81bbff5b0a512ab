// Package tracking implements the client-side tracking layer for remotely
// executed generation pipelines: per-process status pollers, log
// reconciliation, snapshot projection, and advisory cancellation. The
// process registry is the only shared mutable state; everything here is a
// function of the snapshots it receives.
package tracking

import (
	"context"

	"github.com/fablecraft/pipeline-tracker/internal/domain/pipeline"
)

// StatusFetcher retrieves the current status snapshot for a pipeline from
// the remote backend, keyed by the backend's correlation id.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, backendID string) (pipeline.StatusSnapshot, error)
}

// PipelineCanceller issues a best-effort cancel against the remote backend.
// The backend is free to ignore it; confirmation only ever arrives through a
// later status snapshot.
type PipelineCanceller interface {
	CancelPipeline(ctx context.Context, backendID string) error
}

// BackendClient is the full remote-endpoint surface the tracker depends on.
type BackendClient interface {
	StatusFetcher
	PipelineCanceller
}
