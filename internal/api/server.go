// Package api exposes the tracker's HTTP interface: starting pipelines,
// reading tracked records, and relaying cancellations.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"

	"github.com/fablecraft/pipeline-tracker/internal/app/tracking"
	"github.com/fablecraft/pipeline-tracker/internal/config"
	"github.com/fablecraft/pipeline-tracker/internal/domain/pipeline"
	"github.com/fablecraft/pipeline-tracker/pkg/common/logger"
	"github.com/fablecraft/pipeline-tracker/pkg/common/otel"
)

// PipelineStarter launches a generation run on the remote backend.
type PipelineStarter interface {
	StartPipeline(ctx context.Context, kind pipeline.Kind, name string, params map[string]any) (string, error)
}

type Server struct {
	cfg     *config.Config
	logger  *logger.Logger
	router  *chi.Mux
	tracker *tracking.Tracker
	starter PipelineStarter
	tracer  trace.Tracer
}

func NewServer(
	cfg *config.Config,
	log *logger.Logger,
	tracer trace.Tracer,
	tracker *tracking.Tracker,
	starter PipelineStarter,
) (*Server, error) {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(otel.Middleware(tracer))
	r.Use(loggerMiddleware(log))
	r.Use(middleware.Recoverer)

	s := &Server{
		cfg:     cfg,
		logger:  log,
		router:  r,
		tracker: tracker,
		starter: starter,
		tracer:  tracer,
	}

	s.routes()
	return s, nil
}

func loggerMiddleware(log *logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				ctx := r.Context()
				log.Info(ctx, "Request completed",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"duration", time.Since(start),
					"trace_id", otel.GetTraceID(ctx),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

func (s *Server) routes() {
	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/readiness", s.handleReadiness)

		r.Route("/pipelines", func(r chi.Router) {
			r.Post("/", s.handleStartPipeline)
			r.Get("/", s.handleListPipelines)
			r.Get("/{id}", s.handleGetPipeline)
			r.Post("/{id}/cancel", s.handleCancelPipeline)
			r.Delete("/{id}", s.handleRemovePipeline)
		})
	})
}

// Handler exposes the configured router, used by tests to exercise the API
// without binding a socket.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.cfg.API.Host, s.cfg.API.Port),
		Handler:      s.router,
		ReadTimeout:  s.cfg.API.ReadTimeout.Std(),
		WriteTimeout: s.cfg.API.WriteTimeout.Std(),
		IdleTimeout:  s.cfg.API.IdleTimeout.Std(),
		ErrorLog:     logger.NewStdLogger(s.logger, logger.LevelError),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(shutdownCtx, "failed to shutdown server", "error", err)
		}
	}()

	s.logger.Info(ctx, "starting server",
		"addr", server.Addr,
		"service", "pipeline-tracker",
	)

	return server.ListenAndServe()
}
