package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ambientwx/ambientwx/internal/weather"
	"github.com/ambientwx/ambientwx/internal/worker"
)

type fakeService struct {
	mu        sync.Mutex
	devices   []*weather.Device
	devErr    error
	failing   map[string]error
	delay     time.Duration
	collected []string
	limits    []int
}

func (f *fakeService) Devices(_ context.Context) ([]*weather.Device, error) {
	if f.devErr != nil {
		return nil, f.devErr
	}
	return f.devices, nil
}

func (f *fakeService) Collect(ctx context.Context, mac string, opts weather.ObservationOptions) (*weather.CollectResult, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.collected = append(f.collected, mac)
	f.limits = append(f.limits, opts.Limit)

	if err, ok := f.failing[mac]; ok {
		return nil, err
	}
	return &weather.CollectResult{Fetched: 10, Stored: 4}, nil
}

func (f *fakeService) collectedStations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.collected...)
}

func TestDefaultCollectConfig(t *testing.T) {
	cfg := worker.DefaultCollectConfig()

	assert.Equal(t, 3, cfg.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 288, cfg.Limit)
	assert.Equal(t, "*/5 * * * *", cfg.Schedule)
	assert.Empty(t, cfg.Stations)
}

func TestNewCollectJob_FillsDefaults(t *testing.T) {
	job := worker.NewCollectJob(worker.CollectJobConfig{
		Config: worker.CollectConfig{Concurrency: 5},
		Logger: zerolog.Nop(),
	})

	cfg := job.Config()
	assert.Equal(t, 5, cfg.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 288, cfg.Limit)
	assert.Equal(t, worker.DefaultSchedule, cfg.Schedule)
}

func TestCollectJob_Run_ConfiguredStations(t *testing.T) {
	svc := &fakeService{}
	job := worker.NewCollectJob(worker.CollectJobConfig{
		Config: worker.CollectConfig{
			Stations:    []string{"00:00:00:00:00:01", "00:00:00:00:00:02", "00:00:00:00:00:03"},
			Concurrency: 2,
			Limit:       12,
		},
		Logger:  zerolog.Nop(),
		Service: svc,
	})

	result := job.Run(context.Background())

	assert.Equal(t, 3, result.TotalStations)
	assert.Equal(t, 3, result.Successful)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 30, result.Fetched)
	assert.Equal(t, 12, result.Stored)
	assert.Empty(t, result.Errors)
	assert.ElementsMatch(t, []string{"00:00:00:00:00:01", "00:00:00:00:00:02", "00:00:00:00:00:03"}, svc.collectedStations())
	assert.Equal(t, []int{12, 12, 12}, svc.limits)
}

func TestCollectJob_Run_DiscoversStations(t *testing.T) {
	svc := &fakeService{devices: []*weather.Device{
		{MACAddress: "00:00:00:00:00:0A"},
		{MACAddress: "00:00:00:00:00:0B"},
	}}
	job := worker.NewCollectJob(worker.CollectJobConfig{Logger: zerolog.Nop(), Service: svc})

	result := job.Run(context.Background())

	assert.Equal(t, 2, result.TotalStations)
	assert.Equal(t, 2, result.Successful)
	assert.ElementsMatch(t, []string{"00:00:00:00:00:0A", "00:00:00:00:00:0B"}, svc.collectedStations())
}

func TestCollectJob_Run_DiscoveryFailure(t *testing.T) {
	svc := &fakeService{devErr: errors.New("unauthorized")}
	job := worker.NewCollectJob(worker.CollectJobConfig{Logger: zerolog.Nop(), Service: svc})

	result := job.Run(context.Background())

	assert.Equal(t, 0, result.TotalStations)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Empty(t, result.Errors[0].Station)
	assert.Contains(t, result.Errors[0].Error, "unauthorized")
}

func TestCollectJob_Run_PartialFailure(t *testing.T) {
	svc := &fakeService{failing: map[string]error{"00:00:00:00:00:02": errors.New("retries exhausted")}}
	job := worker.NewCollectJob(worker.CollectJobConfig{
		Config:  worker.CollectConfig{Stations: []string{"00:00:00:00:00:01", "00:00:00:00:00:02"}},
		Logger:  zerolog.Nop(),
		Service: svc,
	})

	result := job.Run(context.Background())

	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "00:00:00:00:00:02", result.Errors[0].Station)
	assert.Equal(t, "retries exhausted", result.Errors[0].Error)
}

func TestCollectJob_Run_StationTimeout(t *testing.T) {
	svc := &fakeService{delay: time.Second}
	job := worker.NewCollectJob(worker.CollectJobConfig{
		Config: worker.CollectConfig{
			Stations: []string{"00:00:00:00:00:01"},
			Timeout:  20 * time.Millisecond,
		},
		Logger:  zerolog.Nop(),
		Service: svc,
	})

	start := time.Now()
	result := job.Run(context.Background())

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, 1, result.Failed)
	assert.Contains(t, result.Errors[0].Error, "deadline exceeded")
}

func TestCollectJob_Run_ContextCancellation(t *testing.T) {
	stations := make([]string, 20)
	for i := range stations {
		stations[i] = "00:00:00:00:00:01"
	}
	svc := &fakeService{}
	job := worker.NewCollectJob(worker.CollectJobConfig{
		Config:  worker.CollectConfig{Stations: stations, Concurrency: 1},
		Logger:  zerolog.Nop(),
		Service: svc,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := job.Run(ctx)

	assert.Equal(t, 20, result.Failed)
	assert.Empty(t, svc.collectedStations())
}

func TestCollectJob_RunFor_OverridesStations(t *testing.T) {
	svc := &fakeService{}
	job := worker.NewCollectJob(worker.CollectJobConfig{
		Config:  worker.CollectConfig{Stations: []string{"00:00:00:00:00:01"}},
		Logger:  zerolog.Nop(),
		Service: svc,
	})

	result := job.RunFor(context.Background(), []string{"00:00:00:00:00:09"})

	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, []string{"00:00:00:00:00:09"}, svc.collectedStations())
}

func TestCollectJob_Metrics(t *testing.T) {
	svc := &fakeService{}
	job := worker.NewCollectJob(worker.CollectJobConfig{
		Config:  worker.CollectConfig{Stations: []string{"00:00:00:00:00:01"}},
		Logger:  zerolog.Nop(),
		Service: svc,
	})

	assert.Equal(t, int64(0), job.GetMetrics().TotalRuns)

	_ = job.Run(context.Background())
	_ = job.Run(context.Background())

	metrics := job.GetMetrics()
	assert.Equal(t, int64(2), metrics.TotalRuns)
	assert.Equal(t, int64(2), metrics.SuccessfulCollections)
	assert.Equal(t, int64(20), metrics.ObservationsFetched)
	assert.Equal(t, int64(8), metrics.ObservationsStored)
	assert.NotZero(t, metrics.LastRunAt)

	snapshot := job.MetricsSnapshot()
	assert.Contains(t, snapshot, "total_runs")
	assert.Contains(t, snapshot, "observations_stored")
	assert.Contains(t, snapshot, "last_run_duration")
}

func TestCollectJob_WithWeatherService(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	provider := &staticProvider{observations: []*weather.Observation{
		{Date: base, DateUTC: base.UnixMilli(), Quantities: map[string]weather.Quantity{}, Extra: map[string]any{}},
	}}
	repo := weather.NewInMemoryRepository()
	svc := weather.NewService(weather.ServiceConfig{Provider: provider, Repository: repo, Logger: zerolog.Nop()})

	job := worker.NewCollectJob(worker.CollectJobConfig{
		Config:  worker.CollectConfig{Stations: []string{"00:11:22:33:44:55"}},
		Logger:  zerolog.Nop(),
		Service: svc,
	})

	first := job.Run(context.Background())
	assert.Equal(t, 1, first.Stored)

	second := job.Run(context.Background())
	assert.Equal(t, 1, second.Fetched)
	assert.Equal(t, 0, second.Stored)
}

type staticProvider struct {
	observations []*weather.Observation
}

func (p *staticProvider) ListDevices(_ context.Context) ([]*weather.Device, error) {
	return []*weather.Device{{MACAddress: "00:11:22:33:44:55"}}, nil
}

func (p *staticProvider) ListObservations(_ context.Context, _ string, _ weather.ObservationOptions) ([]*weather.Observation, error) {
	return p.observations, nil
}

func (p *staticProvider) Name() string {
	return "static"
}
