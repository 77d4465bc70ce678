package worker_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ambientwx/ambientwx/internal/worker"
)

func gatherValues(t *testing.T, registry *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)

	values := make(map[string]float64, len(families))
	for _, mf := range families {
		require.Len(t, mf.GetMetric(), 1)
		m := mf.GetMetric()[0]
		switch {
		case m.GetCounter() != nil:
			values[mf.GetName()] = m.GetCounter().GetValue()
		case m.GetGauge() != nil:
			values[mf.GetName()] = m.GetGauge().GetValue()
		}
	}
	return values
}

func TestPrometheusCollector(t *testing.T) {
	job := worker.NewCollectJob(worker.CollectJobConfig{
		Config:  worker.CollectConfig{Stations: []string{"00:00:00:00:00:01", "00:00:00:00:00:02"}},
		Logger:  zerolog.Nop(),
		Service: &fakeService{},
	})

	registry := prometheus.NewRegistry()
	require.NoError(t, registry.Register(worker.NewPrometheusCollector(job)))

	before := gatherValues(t, registry)
	assert.Len(t, before, 7)
	assert.Zero(t, before["ambientwx_collector_runs_total"])
	assert.Zero(t, before["ambientwx_collector_last_run_timestamp_seconds"])

	job.Run(context.Background())

	after := gatherValues(t, registry)
	assert.Equal(t, 1.0, after["ambientwx_collector_runs_total"])
	assert.Equal(t, 2.0, after["ambientwx_collector_stations_successful_total"])
	assert.Equal(t, 0.0, after["ambientwx_collector_stations_failed_total"])
	assert.Equal(t, 20.0, after["ambientwx_collector_observations_fetched_total"])
	assert.Equal(t, 8.0, after["ambientwx_collector_observations_stored_total"])
	assert.Positive(t, after["ambientwx_collector_last_run_timestamp_seconds"])
}
