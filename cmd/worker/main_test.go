package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ambientwx/ambientwx/internal/app"
	"github.com/ambientwx/ambientwx/internal/weather"
	"github.com/ambientwx/ambientwx/internal/worker"
)

type stubStations struct{}

func (stubStations) Devices(context.Context) ([]*weather.Device, error) {
	return nil, nil
}

func (stubStations) Collect(context.Context, string, weather.ObservationOptions) (*weather.CollectResult, error) {
	return &weather.CollectResult{Fetched: 3, Stored: 2}, nil
}

func newHealthRouter(t *testing.T) (http.Handler, *worker.Scheduler) {
	t.Helper()
	job := worker.NewCollectJob(worker.CollectJobConfig{
		Config:  worker.CollectConfig{Stations: []string{"00:11:22:33:44:55"}},
		Logger:  zerolog.Nop(),
		Service: stubStations{},
	})
	scheduler, err := worker.NewScheduler(job, zerolog.Nop())
	require.NoError(t, err)
	return healthRouter(job, scheduler, &app.Stack{}), scheduler
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, http.NoBody))
	return w
}

func TestHealthRouter_Health(t *testing.T) {
	h, _ := newHealthRouter(t)

	w := get(h, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
}

func TestHealthRouter_StatusAndMetricsAfterRun(t *testing.T) {
	h, scheduler := newHealthRouter(t)
	scheduler.RunNow(context.Background())

	w := get(h, "/status")
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	lastRun, ok := body["last_run"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), lastRun["successful"])
	assert.Equal(t, float64(2), lastRun["stored"])

	w = get(h, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ambientwx_collector_runs_total 1")
}
