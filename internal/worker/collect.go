package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ambientwx/ambientwx/internal/weather"
)

// StationService is the part of weather.Service the collector needs.
type StationService interface {
	Devices(ctx context.Context) ([]*weather.Device, error)
	Collect(ctx context.Context, mac string, opts weather.ObservationOptions) (*weather.CollectResult, error)
}

// CollectJob pulls recent observations for every configured station and archives them.
type CollectJob struct {
	config  CollectConfig
	logger  zerolog.Logger
	service StationService
	metrics *CollectMetrics
}

// CollectMetrics tracks cumulative collect job statistics.
type CollectMetrics struct {
	mu sync.RWMutex

	TotalRuns             int64
	SuccessfulCollections int64
	FailedCollections     int64
	ObservationsFetched   int64
	ObservationsStored    int64

	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// CollectJobConfig holds configuration for creating a CollectJob.
type CollectJobConfig struct {
	Config  CollectConfig
	Logger  zerolog.Logger
	Service StationService
}

// NewCollectJob creates a new collect job.
func NewCollectJob(cfg CollectJobConfig) *CollectJob {
	return &CollectJob{
		config:  cfg.Config.withDefaults(),
		logger:  cfg.Logger,
		service: cfg.Service,
		metrics: &CollectMetrics{},
	}
}

// Config returns the effective configuration.
func (j *CollectJob) Config() CollectConfig {
	return j.config
}

// CollectResult contains the result of one run.
type CollectResult struct {
	StartTime     time.Time
	EndTime       time.Time
	Duration      time.Duration
	TotalStations int
	Successful    int
	Failed        int
	Fetched       int
	Stored        int
	Errors        []CollectError
}

// CollectError records a failed station. Station is empty when discovery failed.
type CollectError struct {
	Station string
	Error   string
}

// Run collects every configured station once. Failures are counted per
// station and never abort the run.
func (j *CollectJob) Run(ctx context.Context) *CollectResult {
	return j.RunFor(ctx, nil)
}

// RunFor collects the given stations, falling back to the configured ones when empty.
func (j *CollectJob) RunFor(ctx context.Context, stations []string) *CollectResult {
	startTime := time.Now()
	result := &CollectResult{StartTime: startTime}

	stations, err := j.stations(ctx, stations)
	if err != nil {
		j.logger.Error().Err(err).Msg("station discovery failed")
		result.Failed = 1
		result.Errors = append(result.Errors, CollectError{Error: err.Error()})
		return j.finish(result)
	}
	result.TotalStations = len(stations)

	j.logger.Info().
		Int("stations", result.TotalStations).
		Int("concurrency", j.config.Concurrency).
		Msg("starting collect job")

	stationsChan := make(chan string, len(stations))
	resultsChan := make(chan stationResult, len(stations))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.collectWorker(ctx, stationsChan, resultsChan)
		}()
	}

	for _, mac := range stations {
		stationsChan <- mac
	}
	close(stationsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for sr := range resultsChan {
		if sr.err != nil {
			result.Failed++
			result.Errors = append(result.Errors, CollectError{Station: sr.mac, Error: sr.err.Error()})
			continue
		}
		result.Successful++
		result.Fetched += sr.fetched
		result.Stored += sr.stored
	}

	return j.finish(result)
}

func (j *CollectJob) finish(result *CollectResult) *CollectResult {
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("fetched", result.Fetched).
		Int("stored", result.Stored).
		Msg("collect job completed")

	return result
}

func (j *CollectJob) stations(ctx context.Context, override []string) ([]string, error) {
	if len(override) > 0 {
		return override, nil
	}
	if len(j.config.Stations) > 0 {
		return j.config.Stations, nil
	}

	devices, err := j.service.Devices(ctx)
	if err != nil {
		return nil, fmt.Errorf("discovering stations: %w", err)
	}

	stations := make([]string, 0, len(devices))
	for _, d := range devices {
		stations = append(stations, d.MACAddress)
	}
	return stations, nil
}

type stationResult struct {
	mac     string
	fetched int
	stored  int
	err     error
}

func (j *CollectJob) collectWorker(ctx context.Context, stations <-chan string, results chan<- stationResult) {
	for mac := range stations {
		if err := ctx.Err(); err != nil {
			results <- stationResult{mac: mac, err: err}
			continue
		}
		results <- j.collectStation(ctx, mac)
	}
}

func (j *CollectJob) collectStation(ctx context.Context, mac string) stationResult {
	stationCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	res, err := j.service.Collect(stationCtx, mac, weather.ObservationOptions{Limit: j.config.Limit})
	if err != nil {
		j.logger.Warn().Err(err).Str("mac", mac).Msg("station collect failed")
		return stationResult{mac: mac, err: err}
	}

	return stationResult{mac: mac, fetched: res.Fetched, stored: res.Stored}
}

func (j *CollectJob) updateMetrics(result *CollectResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.SuccessfulCollections += int64(result.Successful)
	j.metrics.FailedCollections += int64(result.Failed)
	j.metrics.ObservationsFetched += int64(result.Fetched)
	j.metrics.ObservationsStored += int64(result.Stored)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *CollectJob) GetMetrics() CollectMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return CollectMetrics{
		TotalRuns:             j.metrics.TotalRuns,
		SuccessfulCollections: j.metrics.SuccessfulCollections,
		FailedCollections:     j.metrics.FailedCollections,
		ObservationsFetched:   j.metrics.ObservationsFetched,
		ObservationsStored:    j.metrics.ObservationsStored,
		LastRunAt:             j.metrics.LastRunAt,
		LastRunDuration:       j.metrics.LastRunDuration,
		TotalDuration:         j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *CollectJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":             m.TotalRuns,
		"successful_collections": m.SuccessfulCollections,
		"failed_collections":     m.FailedCollections,
		"observations_fetched":   m.ObservationsFetched,
		"observations_stored":    m.ObservationsStored,
		"last_run_at":            m.LastRunAt,
		"last_run_duration":      m.LastRunDuration.String(),
		"total_duration":         m.TotalDuration.String(),
	}
}
