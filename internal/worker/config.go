// Package worker collects station observations in the background and archives them.
package worker

import (
	"time"

	"github.com/ambientwx/ambientwx/internal/weather"
)

// CollectConfig holds configuration for the collect job.
type CollectConfig struct {
	// Stations are the MAC addresses to collect.
	// If empty, every device on the account is collected.
	Stations []string

	// Concurrency is the number of stations collected at once.
	// Default: 3
	Concurrency int

	// Timeout bounds the collection of a single station.
	// Default: 30 seconds
	Timeout time.Duration

	// Limit is the number of observations requested per station.
	// Default: 288
	Limit int

	// Schedule is the cron expression used by the Scheduler.
	// Default: every five minutes
	Schedule string
}

// DefaultSchedule runs a collection every five minutes, matching the station upload interval.
const DefaultSchedule = "*/5 * * * *"

// DefaultCollectConfig returns the default collect configuration.
func DefaultCollectConfig() CollectConfig {
	return CollectConfig{
		Concurrency: 3,
		Timeout:     30 * time.Second,
		Limit:       weather.DefaultObservationLimit,
		Schedule:    DefaultSchedule,
	}
}

// withDefaults fills zero fields from DefaultCollectConfig.
func (c CollectConfig) withDefaults() CollectConfig {
	d := DefaultCollectConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.Limit <= 0 {
		c.Limit = d.Limit
	}
	if c.Schedule == "" {
		c.Schedule = d.Schedule
	}
	return c
}
