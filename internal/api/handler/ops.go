// Package handler provides HTTP handlers for the ambientwx API.
package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/ambientwx/ambientwx/internal/api/models"
	"github.com/ambientwx/ambientwx/internal/api/response"
	"github.com/ambientwx/ambientwx/internal/provider/resilience"
)

// readinessTimeout bounds each readiness check.
const readinessTimeout = 2 * time.Second

// ReadinessCheck reports whether a local dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	registry  *resilience.Registry
	checks    map[string]ReadinessCheck
}

// NewOpsHandler creates a new OpsHandler. registry and checks may be nil.
func NewOpsHandler(version, buildTime string, registry *resilience.Registry, checks map[string]ReadinessCheck) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		registry:  registry,
		checks:    checks,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.NewTimestamp(time.Now()),
		Details: map[string]any{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. It fails when any local dependency check fails.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	subsystems := h.runChecks(r.Context())

	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.NewTimestamp(time.Now()),
	}
	details := map[string]any{}
	for _, s := range subsystems {
		details[s.Name] = s.Status
		if s.Status == models.HealthStatusFail {
			health.Status = models.HealthStatusFail
		}
	}
	if len(details) > 0 {
		health.Details = details
	}

	status := http.StatusOK
	if health.Status == models.HealthStatusFail {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, r, status, health)
}

// SystemStatus handles GET /v1/ops/status - provider and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.NewTimestamp(time.Now()),
		Subsystems: h.runChecks(r.Context()),
		Providers:  h.providerStatuses(),
	}

	for _, s := range status.Subsystems {
		status.Status = worst(status.Status, s.Status)
	}
	for _, p := range status.Providers {
		status.Status = worst(status.Status, p.Status)
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) runChecks(ctx context.Context) []models.SubsystemStatus {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]models.SubsystemStatus, 0, len(names))
	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, readinessTimeout)
		err := h.checks[name](checkCtx)
		cancel()

		s := models.SubsystemStatus{Name: name, Status: models.HealthStatusOK}
		if err != nil {
			detail := err.Error()
			s.Status = models.HealthStatusFail
			s.Detail = &detail
		}
		out = append(out, s)
	}
	return out
}

func (h *OpsHandler) providerStatuses() []models.ProviderStatus {
	if h.registry == nil {
		return []models.ProviderStatus{}
	}

	all := h.registry.GetAllHealth()
	out := make([]models.ProviderStatus, 0, len(all))
	for _, health := range all {
		p := models.ProviderStatus{
			Provider:     health.Name,
			Status:       models.HealthStatusOK,
			CircuitState: health.CircuitState.String(),
		}
		switch {
		case health.IsUnhealthy():
			p.Status = models.HealthStatusFail
		case health.IsDegraded():
			p.Status = models.HealthStatusDegraded
		}
		if health.LastSuccessAt != nil {
			ts := models.NewTimestamp(*health.LastSuccessAt)
			p.LastSuccessAt = &ts
		}
		if health.LastFailureAt != nil {
			ts := models.NewTimestamp(*health.LastFailureAt)
			p.LastFailureAt = &ts
		}
		if health.LastErrorKind != "" {
			kind := health.LastErrorKind
			p.LastErrorKind = &kind
		}
		if health.LastError != "" {
			msg := health.LastError
			p.Message = &msg
		}
		out = append(out, p)
	}
	return out
}

func worst(a, b models.HealthStatus) models.HealthStatus {
	rank := map[models.HealthStatus]int{
		models.HealthStatusOK:       0,
		models.HealthStatusDegraded: 1,
		models.HealthStatusFail:     2,
	}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
