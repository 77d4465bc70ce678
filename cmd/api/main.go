// Package main provides the entrypoint for the ambientwx API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/ambientwx/ambientwx/internal/api"
	"github.com/ambientwx/ambientwx/internal/api/handler"
	"github.com/ambientwx/ambientwx/internal/api/middleware"
	"github.com/ambientwx/ambientwx/internal/app"
	"github.com/ambientwx/ambientwx/internal/config"
	"github.com/ambientwx/ambientwx/internal/provider/resilience"
	"github.com/ambientwx/ambientwx/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "ambientwx-api"

	envFile := flag.String("env", ".env", "path to an optional .env file")
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
		Msg("starting ambientwx API")

	ctx := context.Background()

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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()
	if tp.Enabled() {
		log.Info().Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).Msg("OpenTelemetry initialized")
	}

	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize HTTP metrics")
	}
	providerMetrics, err := resilience.NewProviderMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize provider metrics")
	}

	registry := resilience.NewRegistry()
	stack, err := app.Build(ctx, cfg, app.Options{
		Logger:   log,
		Registry: registry,
		Metrics:  providerMetrics,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize weather service")
	}
	defer stack.Close()

	router := api.NewRouter(api.RouterConfig{
		Version:         Version,
		BuildTime:       BuildTime,
		Logger:          log,
		ServiceName:     serviceName,
		Metrics:         httpMetrics,
		Service:         stack.Service,
		Registry:        registry,
		ReadinessChecks: readinessChecks(stack),
	})

	server := newServer(cfg.Port, router)

	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server stopped")
}

// readinessChecks reports the archive as a dependency only when it is configured.
func readinessChecks(stack *app.Stack) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{}
	if stack.Pool != nil {
		checks["archive"] = stack.Ping
	}
	return checks
}

// newServer builds the API server. WriteTimeout leaves room for a full retry
// budget against the vendor API.
func newServer(port string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + port,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      3 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
}
