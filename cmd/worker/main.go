// Package main provides the entrypoint for the ambientwx collector worker.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	"github.com/ambientwx/ambientwx/internal/api/response"
	"github.com/ambientwx/ambientwx/internal/app"
	"github.com/ambientwx/ambientwx/internal/config"
	"github.com/ambientwx/ambientwx/internal/provider/resilience"
	"github.com/ambientwx/ambientwx/internal/telemetry"
	"github.com/ambientwx/ambientwx/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "ambientwx-worker"

	envFile := flag.String("env", ".env", "path to an optional .env file")
	once := flag.Bool("once", false, "run a single collection and exit")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		bootLog := app.NewLogger(os.Stderr, "info", serviceName, Version)
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := app.NewLogger(os.Stdout, cfg.LogLevel, serviceName, Version)
	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Env).
		Msg("starting ambientwx worker")

	if !cfg.ArchiveEnabled {
		log.Fatal().Msg("the collector stores observations; set ARCHIVE_ENABLED=true")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	providerMetrics, err := resilience.NewProviderMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize provider metrics")
	}

	stack, err := app.Build(ctx, cfg, app.Options{
		Logger:   log,
		Registry: resilience.NewRegistry(),
		Metrics:  providerMetrics,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize weather service")
	}
	defer stack.Close()

	job := worker.NewCollectJob(worker.CollectJobConfig{
		Config: worker.CollectConfig{
			Stations:    cfg.Collector.Stations,
			Concurrency: cfg.Collector.Concurrency,
			Schedule:    cfg.Collector.Schedule,
		},
		Logger:  log.With().Str("component", "collector").Logger(),
		Service: stack.Service,
	})

	if *once {
		result := job.Run(ctx)
		if result.Failed > 0 {
			log.Error().Int("failed", result.Failed).Msg("collection finished with failures")
			os.Exit(1) //nolint:gocritic // deferred cleanup is best-effort on failure
		}
		return
	}

	scheduler, err := worker.NewScheduler(job, log)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid collect schedule")
	}
	if err := scheduler.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}

	if cfg.PubSub.ProjectID != "" && cfg.PubSub.Subscription != "" {
		go runPubSub(ctx, cfg.PubSub, job, log)
	}

	// The health server keeps the worker alive on platforms that expect a listening port.
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           healthRouter(job, scheduler, stack),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down worker")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		log.Warn().Msg("collection still running at shutdown")
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}

func runPubSub(ctx context.Context, cfg config.PubSubConfig, job *worker.CollectJob, log zerolog.Logger) {
	handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
		ProjectID:        cfg.ProjectID,
		SubscriptionName: cfg.Subscription,
		Dispatcher:       worker.NewDispatcher(job, log),
		Logger:           log.With().Str("component", "pubsub").Logger(),
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to create pubsub handler")
		return
	}
	defer func() {
		if err := handler.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close pubsub client")
		}
	}()

	if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("pubsub handler stopped")
	}
}

func healthRouter(job *worker.CollectJob, scheduler *worker.Scheduler, stack *app.Stack) http.Handler {
	r := chi.NewRouter()

	registry := prometheus.NewRegistry()
	registry.MustRegister(worker.NewPrometheusCollector(job))
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status, code := "healthy", http.StatusOK
		if err := stack.Ping(r.Context()); err != nil {
			status, code = "archive unavailable", http.StatusServiceUnavailable
		}
		response.JSON(w, r, code, map[string]string{"status": status, "version": Version})
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{
			"metrics":  job.MetricsSnapshot(),
			"next_run": scheduler.Next(),
		}
		if last := scheduler.LastRun(); last != nil {
			body["last_run"] = map[string]any{
				"started_at": last.StartTime,
				"duration":   last.Duration.String(),
				"stations":   last.TotalStations,
				"successful": last.Successful,
				"failed":     last.Failed,
				"stored":     last.Stored,
			}
		}
		response.JSON(w, r, http.StatusOK, body)
	})

	return r
}
