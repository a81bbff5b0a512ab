// Package backend implements the HTTP client for the remote generation
// service. It is the only place that knows the service's wire format; the
// rest of the system works with domain snapshots.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fablecraft/pipeline-tracker/internal/domain/pipeline"
	"github.com/fablecraft/pipeline-tracker/pkg/common"
)

// maxErrorBodyBytes bounds how much of an error response body is carried in
// the returned error.
const maxErrorBodyBytes = 512

// Client talks to the generation service's pipeline API with rate limiting
// and tracing. Calls are single-shot: a transport failure is returned to the
// caller as-is, never retried, because the polling layer treats an
// unreachable backend as a failed pipeline rather than a transient blip.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	token       string
	rateLimiter *common.RateLimiter
	tracer      trace.Tracer
}

// Option defines functional options for configuring a Client.
type Option func(*Client)

// WithToken sets the bearer token attached to every request. Empty means
// unauthenticated.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithRateLimit overrides the request rate cap shared by all calls.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.rateLimiter = common.NewRateLimiter(rps, burst) }
}

// NewClient creates a client for the generation service at baseURL.
func NewClient(baseURL string, tracer trace.Tracer, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   10 * time.Second,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		// Generous default. Pollers fire at second granularity per
		// pipeline, so this caps total concurrent tracking load.
		rateLimiter: common.NewRateLimiter(50, 100),
		tracer:      tracer,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type startRequest struct {
	Kind   string         `json:"kind"`
	Name   string         `json:"name,omitempty"`
	Params map[string]any `json:"params,omitempty"`
}

type startResponse struct {
	PipelineID string `json:"pipeline_id"`
}

// StartPipeline asks the service to begin a generation run and returns the
// service's identifier for it.
func (c *Client) StartPipeline(
	ctx context.Context,
	kind pipeline.Kind,
	name string,
	params map[string]any,
) (string, error) {
	ctx, span := c.tracer.Start(ctx, "backend_client.start_pipeline",
		trace.WithAttributes(attribute.String("pipeline_kind", kind.String())))
	defer span.End()

	body := startRequest{Kind: kind.String(), Name: name, Params: params}

	var resp startResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/pipelines", body, &resp); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("starting %s pipeline: %w", kind, err)
	}
	if resp.PipelineID == "" {
		err := fmt.Errorf("backend accepted %s pipeline but returned no id", kind)
		span.RecordError(err)
		return "", err
	}

	span.SetAttributes(attribute.String("backend_id", resp.PipelineID))
	return resp.PipelineID, nil
}

type stageDTO struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type statusResponse struct {
	Status         string     `json:"status"`
	Progress       *float64   `json:"progress"`
	Logs           []string   `json:"logs"`
	Stages         []stageDTO `json:"stages"`
	CurrentStage   *string    `json:"current_stage"`
	CurrentItem    *int       `json:"current_item"`
	TotalItems     *int       `json:"total_items"`
	CompletedItems *int       `json:"completed_items"`
	Error          *string    `json:"error"`
}

// FetchStatus retrieves the pipeline's full current state.
func (c *Client) FetchStatus(ctx context.Context, backendID string) (pipeline.StatusSnapshot, error) {
	ctx, span := c.tracer.Start(ctx, "backend_client.fetch_status",
		trace.WithAttributes(attribute.String("backend_id", backendID)))
	defer span.End()

	var resp statusResponse
	path := fmt.Sprintf("/v1/pipelines/%s/status", backendID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		span.RecordError(err)
		return pipeline.StatusSnapshot{}, fmt.Errorf("fetching status for %s: %w", backendID, err)
	}

	return toSnapshot(resp), nil
}

// CancelPipeline asks the service to stop a run. A 2xx only means the request
// was received; whether the run actually stops shows up in later status
// polls.
func (c *Client) CancelPipeline(ctx context.Context, backendID string) error {
	ctx, span := c.tracer.Start(ctx, "backend_client.cancel_pipeline",
		trace.WithAttributes(attribute.String("backend_id", backendID)))
	defer span.End()

	path := fmt.Sprintf("/v1/pipelines/%s/cancel", backendID)
	if err := c.doJSON(ctx, http.MethodPost, path, nil, nil); err != nil {
		span.RecordError(err)
		return fmt.Errorf("cancelling pipeline %s: %w", backendID, err)
	}
	return nil
}

// doJSON performs one rate-limited request and decodes a JSON response into
// out when out is non-nil. Non-2xx responses become errors carrying the
// status code and a truncated body.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return fmt.Errorf("%s %s: unexpected status %d: %s",
			method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

// toSnapshot maps the wire representation to the domain snapshot. An
// unrecognized status string maps to the empty status, which the projection
// layer then leaves out of the patch.
func toSnapshot(resp statusResponse) pipeline.StatusSnapshot {
	snap := pipeline.StatusSnapshot{
		Status:         pipeline.ParseStatus(resp.Status),
		Progress:       resp.Progress,
		Logs:           resp.Logs,
		CurrentStage:   resp.CurrentStage,
		CurrentItem:    resp.CurrentItem,
		TotalItems:     resp.TotalItems,
		CompletedItems: resp.CompletedItems,
		Error:          resp.Error,
	}

	if resp.Stages != nil {
		stages := make([]pipeline.Stage, len(resp.Stages))
		for i, s := range resp.Stages {
			stages[i] = pipeline.Stage{
				Name:    s.Name,
				Status:  pipeline.StageStatus(s.Status),
				Message: s.Message,
			}
		}
		snap.Stages = stages
	}

	return snap
}
