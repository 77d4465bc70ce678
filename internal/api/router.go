// Package api provides the read-only HTTP API for ambientwx.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ambientwx/ambientwx/internal/api/handler"
	"github.com/ambientwx/ambientwx/internal/api/middleware"
	"github.com/ambientwx/ambientwx/internal/api/response"
	"github.com/ambientwx/ambientwx/internal/provider/resilience"
)

// DefaultServiceName is used for tracing when RouterConfig.ServiceName is empty.
const DefaultServiceName = "ambientwx-api"

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	Service     handler.StationService
	Registry    *resilience.Registry

	// ReadinessChecks are run by /v1/ops/ready and reported by /v1/ops/status.
	ReadinessChecks map[string]handler.ReadinessCheck
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = DefaultServiceName
	}

	// Order matters: the request ID must exist before tracing and logging read it.
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.ContentTypeJSON)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no route matches "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, methodNotAllowed(r))
	})

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Registry, cfg.ReadinessChecks)
	weatherHandler := handler.NewWeatherHandler(cfg.Service, cfg.Logger)

	upstreamRateLimit := middleware.RateLimitByIP(middleware.UpstreamRateLimit)
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		r.Route("/devices", func(r chi.Router) {
			// Live endpoints call the vendor API and share its tighter budget.
			r.With(upstreamRateLimit).Get("/", weatherHandler.ListDevices)
			r.With(upstreamRateLimit).Get("/{mac}/observations", weatherHandler.ListObservations)

			r.With(standardRateLimit).Get("/{mac}/history", weatherHandler.History)
			r.With(standardRateLimit).Get("/{mac}/latest", weatherHandler.Latest)
		})
	})

	return r
}
