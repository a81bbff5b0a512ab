package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fablecraft/pipeline-tracker/internal/domain/pipeline"
)

type startPipelineRequest struct {
	Name   string         `json:"name" validate:"required,min=1,max=200"`
	Kind   string         `json:"kind" validate:"required,oneof=story storyboard director asset"`
	Params map[string]any `json:"params,omitempty"`
}

type startPipelineResponse struct {
	ID string `json:"id"`
}

type stageResponse struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type logEntryResponse struct {
	Text       string    `json:"text"`
	Severity   string    `json:"severity"`
	ObservedAt time.Time `json:"observed_at"`
}

type pipelineResponse struct {
	ID             string             `json:"id"`
	BackendID      string             `json:"backend_id,omitempty"`
	Name           string             `json:"name"`
	Kind           string             `json:"kind"`
	Status         string             `json:"status"`
	Progress       float64            `json:"progress"`
	CurrentStage   string             `json:"current_stage,omitempty"`
	CurrentItem    int                `json:"current_item,omitempty"`
	TotalItems     int                `json:"total_items,omitempty"`
	CompletedItems int                `json:"completed_items,omitempty"`
	Stages         []stageResponse    `json:"stages,omitempty"`
	Logs           []logEntryResponse `json:"logs"`
	Error          string             `json:"error,omitempty"`
	StartTime      time.Time          `json:"start_time"`
	EndTime        *time.Time         `json:"end_time,omitempty"`
	LastUpdate     time.Time          `json:"last_update"`
}

func toPipelineResponse(p *pipeline.Process) pipelineResponse {
	resp := pipelineResponse{
		ID:             p.ID().String(),
		BackendID:      p.BackendID(),
		Name:           p.Name(),
		Kind:           p.Kind().String(),
		Status:         p.Status().String(),
		Progress:       p.Progress(),
		CurrentStage:   p.CurrentStage(),
		CurrentItem:    p.CurrentItem(),
		TotalItems:     p.TotalItems(),
		CompletedItems: p.CompletedItems(),
		Error:          p.ErrorDetail(),
		StartTime:      p.StartTime(),
		LastUpdate:     p.LastUpdate(),
		Logs:           []logEntryResponse{},
	}

	if end, ok := p.EndTime(); ok {
		resp.EndTime = &end
	}

	for _, st := range p.Stages() {
		resp.Stages = append(resp.Stages, stageResponse{
			Name:    st.Name,
			Status:  st.Status.String(),
			Message: st.Message,
		})
	}

	for _, entry := range p.Logs() {
		resp.Logs = append(resp.Logs, logEntryResponse{
			Text:       entry.Text,
			Severity:   entry.Severity.String(),
			ObservedAt: entry.ObservedAt,
		})
	}

	return resp
}

func (s *Server) handleStartPipeline(w http.ResponseWriter, r *http.Request) {
	var req startPipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Error(r.Context(), "failed to decode request", "error", err)
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	if err := checkValid(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	kind := pipeline.ParseKind(req.Kind)
	id, err := s.tracker.StartPipeline(r.Context(), req.Name, kind,
		func(ctx context.Context) (string, error) {
			return s.starter.StartPipeline(ctx, kind, req.Name, req.Params)
		})
	if err != nil {
		s.logger.Error(r.Context(), "failed to register pipeline", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.respond(w, r, http.StatusAccepted, startPipelineResponse{ID: id.String()})
}

func (s *Server) handleListPipelines(w http.ResponseWriter, r *http.Request) {
	procs, err := s.tracker.List(r.Context())
	if err != nil {
		s.logger.Error(r.Context(), "failed to list pipelines", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := make([]pipelineResponse, 0, len(procs))
	for _, p := range procs {
		resp = append(resp, toPipelineResponse(p))
	}
	s.respond(w, r, http.StatusOK, resp)
}

func (s *Server) handleGetPipeline(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pipelineID(w, r)
	if !ok {
		return
	}

	proc, err := s.tracker.Get(r.Context(), id)
	if err != nil {
		var notFound *pipeline.ProcessNotFoundError
		if errors.As(err, &notFound) {
			http.Error(w, "pipeline not found", http.StatusNotFound)
			return
		}
		s.logger.Error(r.Context(), "failed to get pipeline", "id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.respond(w, r, http.StatusOK, toPipelineResponse(proc))
}

func (s *Server) handleCancelPipeline(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pipelineID(w, r)
	if !ok {
		return
	}

	if err := s.tracker.Cancel(r.Context(), id); err != nil {
		var notFound *pipeline.ProcessNotFoundError
		if errors.As(err, &notFound) {
			http.Error(w, "pipeline not found", http.StatusNotFound)
			return
		}
		s.logger.Error(r.Context(), "failed to cancel pipeline", "id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleRemovePipeline(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pipelineID(w, r)
	if !ok {
		return
	}

	if err := s.tracker.Remove(r.Context(), id); err != nil {
		s.logger.Error(r.Context(), "failed to remove pipeline", "id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) pipelineID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid pipeline id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error(r.Context(), "failed to encode response", "error", err)
	}
}
