package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ambientwx/ambientwx/internal/api/handler"
	"github.com/ambientwx/ambientwx/internal/provider/resilience"
)

func okCheck(context.Context) error { return nil }

func failingCheck(context.Context) error { return errors.New("connection refused") }

func TestOpsHandler_HealthCheck(t *testing.T) {
	h := handler.NewOpsHandler("1.2.3", "2024-05-01", nil, nil)

	w := httptest.NewRecorder()
	h.HealthCheck(w, httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody))

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "OK", body["status"])
	assert.Equal(t, "1.2.3", body["details"].(map[string]any)["version"])
}

func TestOpsHandler_ReadinessCheck(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]handler.ReadinessCheck
		status int
		health string
	}{
		{"no checks", nil, http.StatusOK, "OK"},
		{"healthy archive", map[string]handler.ReadinessCheck{"archive": okCheck}, http.StatusOK, "OK"},
		{"failing archive", map[string]handler.ReadinessCheck{"archive": failingCheck}, http.StatusServiceUnavailable, "FAIL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler.NewOpsHandler("dev", "", nil, tt.checks)

			w := httptest.NewRecorder()
			h.ReadinessCheck(w, httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody))

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.health, decodeBody(t, w)["status"])
		})
	}
}

func TestOpsHandler_SystemStatus(t *testing.T) {
	registry := resilience.NewRegistry()
	registry.Register("ambientweather", nil)
	registry.RecordSuccess("ambientweather")
	registry.RecordFailure("ambientweather", &resilience.FetchError{Kind: resilience.KindTimeout, URL: "https://rt.ambientweather.net/v1/devices"})

	h := handler.NewOpsHandler("dev", "", registry, map[string]handler.ReadinessCheck{"archive": okCheck})

	w := httptest.NewRecorder()
	h.SystemStatus(w, httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody))
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "DEGRADED", body["status"])

	providers := body["providers"].([]any)
	require.Len(t, providers, 1)
	p := providers[0].(map[string]any)
	assert.Equal(t, "ambientweather", p["provider"])
	assert.Equal(t, "DEGRADED", p["status"])
	assert.Equal(t, "closed", p["circuitState"])
	assert.Equal(t, "timeout", p["lastErrorKind"])
	assert.NotEmpty(t, p["lastSuccessAt"])

	subsystems := body["subsystems"].([]any)
	require.Len(t, subsystems, 1)
	assert.Equal(t, "archive", subsystems[0].(map[string]any)["name"])
}

func TestOpsHandler_SystemStatusWithoutRegistry(t *testing.T) {
	h := handler.NewOpsHandler("dev", "", nil, nil)

	w := httptest.NewRecorder()
	h.SystemStatus(w, httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody))

	body := decodeBody(t, w)
	assert.Equal(t, "OK", body["status"])
	assert.Equal(t, []any{}, body["providers"])
	assert.Equal(t, []any{}, body["subsystems"])
}
