package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/fablecraft/pipeline-tracker/internal/app/tracking"
	"github.com/fablecraft/pipeline-tracker/internal/config"
	"github.com/fablecraft/pipeline-tracker/internal/domain/pipeline"
	"github.com/fablecraft/pipeline-tracker/internal/infra/storage/pipeline/memory"
	"github.com/fablecraft/pipeline-tracker/pkg/common/logger"
)

// fakeBackend stands in for the generation service, implementing both the
// tracker's polling client and the API's starter.
type fakeBackend struct {
	startFn  func(ctx context.Context, kind pipeline.Kind, name string, params map[string]any) (string, error)
	fetchFn  func(ctx context.Context, backendID string) (pipeline.StatusSnapshot, error)
	cancelFn func(ctx context.Context, backendID string) error
}

func (f *fakeBackend) StartPipeline(ctx context.Context, kind pipeline.Kind, name string, params map[string]any) (string, error) {
	if f.startFn == nil {
		return "backend-1", nil
	}
	return f.startFn(ctx, kind, name, params)
}

func (f *fakeBackend) FetchStatus(ctx context.Context, backendID string) (pipeline.StatusSnapshot, error) {
	if f.fetchFn == nil {
		return pipeline.StatusSnapshot{Status: pipeline.StatusComplete}, nil
	}
	return f.fetchFn(ctx, backendID)
}

func (f *fakeBackend) CancelPipeline(ctx context.Context, backendID string) error {
	if f.cancelFn == nil {
		return nil
	}
	return f.cancelFn(ctx, backendID)
}

func newTestServer(t *testing.T, backend *fakeBackend) (*Server, *tracking.Tracker) {
	t.Helper()

	log := logger.Noop()
	tracer := noop.NewTracerProvider().Tracer("test")
	registry := memory.NewProcessRegistry()

	tracker := tracking.NewTracker(registry, backend, log, tracer,
		tracking.WithPollInterval(pipeline.KindStory, time.Millisecond),
		tracking.WithPollInterval(pipeline.KindStoryboard, time.Millisecond),
		tracking.WithPollInterval(pipeline.KindAsset, time.Millisecond),
	)
	t.Cleanup(func() { _ = tracker.Stop(context.Background()) })

	cfg := &config.Config{}
	cfg.ApplyDefaults()

	srv, err := NewServer(cfg, log, tracer, tracker, backend)
	require.NoError(t, err)
	return srv, tracker
}

func doRequest(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, &fakeBackend{})

	assert.Equal(t, http.StatusOK, doRequest(t, srv, http.MethodGet, "/v1/health", nil).Code)
	assert.Equal(t, http.StatusOK, doRequest(t, srv, http.MethodGet, "/v1/readiness", nil).Code)
}

func TestServer_StartPipeline(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		startFn: func(_ context.Context, kind pipeline.Kind, name string, params map[string]any) (string, error) {
			assert.Equal(t, pipeline.KindStory, kind)
			assert.Equal(t, "heist story", name)
			assert.Equal(t, "a heist in venice", params["pitch"])
			return "backend-55", nil
		},
	}
	srv, tracker := newTestServer(t, backend)

	rec := doRequest(t, srv, http.MethodPost, "/v1/pipelines", map[string]any{
		"name":   "heist story",
		"kind":   "story",
		"params": map[string]any{"pitch": "a heist in venice"},
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	id, err := uuid.Parse(resp.ID)
	require.NoError(t, err)

	// The default fake backend reports complete on the first poll.
	require.Eventually(t, func() bool {
		proc, err := tracker.Get(context.Background(), id)
		return err == nil && proc.Status() == pipeline.StatusComplete
	}, time.Second, 2*time.Millisecond)
}

func TestServer_StartPipelineValidation(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, &fakeBackend{})

	tests := []struct {
		name string
		body map[string]any
	}{
		{name: "missing name", body: map[string]any{"kind": "story"}},
		{name: "missing kind", body: map[string]any{"name": "x"}},
		{name: "unknown kind", body: map[string]any{"name": "x", "kind": "poem"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPost, "/v1/pipelines", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestServer_StartPipelineMalformedBody(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, &fakeBackend{})

	req := httptest.NewRequest(http.MethodPost, "/v1/pipelines", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_GetPipeline(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		fetchFn: func(_ context.Context, _ string) (pipeline.StatusSnapshot, error) {
			return pipeline.StatusSnapshot{
				Status:   pipeline.StatusComplete,
				Progress: func() *float64 { v := 1.0; return &v }(),
				Logs:     []string{"Generated successfully"},
			}, nil
		},
	}
	srv, tracker := newTestServer(t, backend)

	rec := doRequest(t, srv, http.MethodPost, "/v1/pipelines", map[string]any{
		"name": "asset sheet", "kind": "asset",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := uuid.MustParse(created.ID)

	require.Eventually(t, func() bool {
		proc, err := tracker.Get(context.Background(), id)
		return err == nil && proc.Status() == pipeline.StatusComplete
	}, time.Second, 2*time.Millisecond)

	rec = doRequest(t, srv, http.MethodGet, "/v1/pipelines/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		ID        string  `json:"id"`
		BackendID string  `json:"backend_id"`
		Name      string  `json:"name"`
		Kind      string  `json:"kind"`
		Status    string  `json:"status"`
		Progress  float64 `json:"progress"`
		Logs      []struct {
			Text     string `json:"text"`
			Severity string `json:"severity"`
		} `json:"logs"`
		EndTime *time.Time `json:"end_time"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, created.ID, resp.ID)
	assert.Equal(t, "backend-1", resp.BackendID)
	assert.Equal(t, "asset sheet", resp.Name)
	assert.Equal(t, "asset", resp.Kind)
	assert.Equal(t, "complete", resp.Status)
	assert.Equal(t, 1.0, resp.Progress)
	require.Len(t, resp.Logs, 1)
	assert.Equal(t, "success", resp.Logs[0].Severity)
	require.NotNil(t, resp.EndTime)
}

func TestServer_GetPipelineNotFound(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, &fakeBackend{})

	rec := doRequest(t, srv, http.MethodGet, "/v1/pipelines/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/v1/pipelines/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_ListPipelines(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, &fakeBackend{})

	for i := range 3 {
		rec := doRequest(t, srv, http.MethodPost, "/v1/pipelines", map[string]any{
			"name": fmt.Sprintf("run %d", i), "kind": "story",
		})
		require.Equal(t, http.StatusAccepted, rec.Code)
	}

	rec := doRequest(t, srv, http.MethodGet, "/v1/pipelines", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []pipelineResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 3)
	assert.Equal(t, "run 0", resp[0].Name)
	assert.Equal(t, "run 2", resp[2].Name)
}

func TestServer_CancelPipeline(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	backend := &fakeBackend{
		fetchFn: func(ctx context.Context, _ string) (pipeline.StatusSnapshot, error) {
			select {
			case <-block:
				return pipeline.StatusSnapshot{Status: pipeline.StatusCancelled}, nil
			default:
				return pipeline.StatusSnapshot{Status: pipeline.StatusRunning}, nil
			}
		},
		cancelFn: func(_ context.Context, _ string) error {
			close(block)
			return nil
		},
	}
	srv, tracker := newTestServer(t, backend)

	rec := doRequest(t, srv, http.MethodPost, "/v1/pipelines", map[string]any{
		"name": "long run", "kind": "story",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := uuid.MustParse(created.ID)

	require.Eventually(t, func() bool {
		proc, err := tracker.Get(context.Background(), id)
		return err == nil && proc.Status() == pipeline.StatusRunning
	}, time.Second, 2*time.Millisecond)

	rec = doRequest(t, srv, http.MethodPost, "/v1/pipelines/"+created.ID+"/cancel", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		proc, err := tracker.Get(context.Background(), id)
		return err == nil && proc.Status() == pipeline.StatusCancelled
	}, time.Second, 2*time.Millisecond)
}

func TestServer_CancelPipelineNotFound(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, &fakeBackend{})

	rec := doRequest(t, srv, http.MethodPost, "/v1/pipelines/"+uuid.NewString()+"/cancel", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_RemovePipeline(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, &fakeBackend{})

	rec := doRequest(t, srv, http.MethodPost, "/v1/pipelines", map[string]any{
		"name": "short run", "kind": "story",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doRequest(t, srv, http.MethodDelete, "/v1/pipelines/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/v1/pipelines/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Removing again is harmless.
	rec = doRequest(t, srv, http.MethodDelete, "/v1/pipelines/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
