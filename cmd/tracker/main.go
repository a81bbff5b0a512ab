package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"

	"github.com/fablecraft/pipeline-tracker/internal/api"
	"github.com/fablecraft/pipeline-tracker/internal/api/debug"
	"github.com/fablecraft/pipeline-tracker/internal/app/tracking"
	"github.com/fablecraft/pipeline-tracker/internal/config/fileloader"
	"github.com/fablecraft/pipeline-tracker/internal/domain/pipeline"
	"github.com/fablecraft/pipeline-tracker/internal/infra/backend"
	"github.com/fablecraft/pipeline-tracker/internal/infra/storage/pipeline/memory"
	"github.com/fablecraft/pipeline-tracker/pkg/common/logger"
	"github.com/fablecraft/pipeline-tracker/pkg/common/otel"
)

var build = "develop"

const serviceType = "pipeline-tracker"

func main() {
	// Set the correct number of threads for the service
	_, _ = maxprocs.Set()

	hostname, err := os.Hostname()
	if err != nil {
		log.Fatalf("failed to get hostname: %v", err)
	}

	var logg *logger.Logger

	logEvents := logger.Events{
		Error: func(ctx context.Context, r logger.Record) {
			errorAttrs := map[string]any{
				"error_message": r.Message,
				"error_time":    r.Time.UTC().Format(time.RFC3339),
				"trace_id":      otel.GetTraceID(ctx),
			}

			for k, v := range r.Attributes {
				errorAttrs[k] = v
			}

			errorAttrsJSON, err := json.Marshal(errorAttrs)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to marshal error attributes: %v\n", err)
				return
			}

			fmt.Fprintf(os.Stderr, "Error event: %s, details: %s\n",
				r.Message, errorAttrsJSON)
		},
	}

	traceIDFn := func(ctx context.Context) string {
		return otel.GetTraceID(ctx)
	}

	svcName := fmt.Sprintf("TRACKER-%s", hostname)
	metadata := map[string]string{
		"service":  svcName,
		"hostname": hostname,
		"app":      serviceType,
		"build":    build,
	}

	logg = logger.NewWithMetadata(os.Stdout, logger.LevelInfo, svcName, traceIDFn, logEvents, metadata)

	ctx := context.Background()

	if err := run(ctx, logg, hostname); err != nil {
		logg.Error(ctx, "startup", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *logger.Logger, hostname string) error {
	log.Info(ctx, "startup", "GOMAXPROCS", runtime.GOMAXPROCS(0))

	// -------------------------------------------------------------------------
	// Configuration

	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := fileloader.NewFileLoader(*configPath).Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if token := os.Getenv("BACKEND_TOKEN"); token != "" {
		cfg.Backend.Token = token
	}
	if cfg.Backend.BaseURL == "" {
		return fmt.Errorf("backend base_url is required")
	}

	// -------------------------------------------------------------------------
	// Start Tracing Support

	log.Info(ctx, "startup", "status", "initializing tracing support")

	traceProvider, teardown, err := otel.InitTelemetry(log, otel.Config{
		ServiceName:      cfg.Otel.ServiceName,
		ExporterEndpoint: cfg.Otel.ExporterEndpoint,
		ExcludedRoutes: map[string]struct{}{
			"/v1/health":    {},
			"/v1/readiness": {},
			"/debug":        {},
		},
		Probability: cfg.Otel.Probability,
		ResourceAttributes: map[string]string{
			"library.language": "go",
			"host.name":        hostname,
		},
	})
	if err != nil {
		return fmt.Errorf("starting tracing: %w", err)
	}
	defer teardown(context.Background())

	tracer := traceProvider.Tracer(cfg.Otel.ServiceName)

	// -------------------------------------------------------------------------
	// Start Debug Service

	go func() {
		log.Info(ctx, "startup", "status", "debug router started", "host", cfg.Debug.Host)

		if err := http.ListenAndServe(cfg.Debug.Host, debug.Mux()); err != nil {
			log.Error(ctx, "shutdown", "status", "debug router closed", "host", cfg.Debug.Host, "msg", err)
		}
	}()

	// -------------------------------------------------------------------------
	// Build the tracking stack

	backendClient := backend.NewClient(cfg.Backend.BaseURL, tracer,
		backend.WithToken(cfg.Backend.Token),
		backend.WithTimeout(cfg.Backend.Timeout.Std()),
		backend.WithRateLimit(cfg.Backend.RateLimit, cfg.Backend.RateBurst),
	)

	registry := memory.NewProcessRegistry()

	trackerOpts := []tracking.TrackerOption{
		tracking.WithMaxTrackingDuration(cfg.Tracking.MaxDuration.Std()),
	}
	for kindName, interval := range cfg.Tracking.PollIntervals {
		kind := pipeline.ParseKind(kindName)
		if kind == "" {
			return fmt.Errorf("unknown pipeline kind %q in poll_intervals", kindName)
		}
		trackerOpts = append(trackerOpts, tracking.WithPollInterval(kind, interval.Std()))
	}
	tracker := tracking.NewTracker(registry, backendClient, log, tracer, trackerOpts...)

	server, err := api.NewServer(cfg, log, tracer, tracker, backendClient)
	if err != nil {
		return fmt.Errorf("creating api server: %w", err)
	}

	// -------------------------------------------------------------------------
	// Start API Service

	log.Info(ctx, "startup", "status", "initializing API support")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(gctx); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background(), "shutdown", "status", "stopping pollers")

		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return tracker.Stop(stopCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info(context.Background(), "shutdown", "status", "shutdown complete")
	return nil
}
