package worker

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metricsNamespace prefixes every collector metric.
const metricsNamespace = "ambientwx_collector"

// PrometheusCollector exposes CollectJob metrics to a Prometheus registry.
type PrometheusCollector struct {
	job *CollectJob

	runs         *prometheus.Desc
	successful   *prometheus.Desc
	failed       *prometheus.Desc
	fetched      *prometheus.Desc
	stored       *prometheus.Desc
	lastRun      *prometheus.Desc
	lastDuration *prometheus.Desc
}

// NewPrometheusCollector creates a collector reading job's metrics on every scrape.
func NewPrometheusCollector(job *CollectJob) *PrometheusCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "", name), help, nil, nil)
	}
	return &PrometheusCollector{
		job:          job,
		runs:         desc("runs_total", "Collect runs started."),
		successful:   desc("stations_successful_total", "Stations collected without error."),
		failed:       desc("stations_failed_total", "Stations that failed to collect."),
		fetched:      desc("observations_fetched_total", "Observations fetched from the vendor API."),
		stored:       desc("observations_stored_total", "Observations newly written to the archive."),
		lastRun:      desc("last_run_timestamp_seconds", "Unix time the last run finished."),
		lastDuration: desc("last_run_duration_seconds", "Duration of the last run."),
	}
}

// Describe implements prometheus.Collector.
func (c *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.runs
	ch <- c.successful
	ch <- c.failed
	ch <- c.fetched
	ch <- c.stored
	ch <- c.lastRun
	ch <- c.lastDuration
}

// Collect implements prometheus.Collector.
func (c *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	m := c.job.GetMetrics()

	ch <- prometheus.MustNewConstMetric(c.runs, prometheus.CounterValue, float64(m.TotalRuns))
	ch <- prometheus.MustNewConstMetric(c.successful, prometheus.CounterValue, float64(m.SuccessfulCollections))
	ch <- prometheus.MustNewConstMetric(c.failed, prometheus.CounterValue, float64(m.FailedCollections))
	ch <- prometheus.MustNewConstMetric(c.fetched, prometheus.CounterValue, float64(m.ObservationsFetched))
	ch <- prometheus.MustNewConstMetric(c.stored, prometheus.CounterValue, float64(m.ObservationsStored))

	var lastRun float64
	if !m.LastRunAt.IsZero() {
		lastRun = float64(m.LastRunAt.UnixNano()) / 1e9
	}
	ch <- prometheus.MustNewConstMetric(c.lastRun, prometheus.GaugeValue, lastRun)
	ch <- prometheus.MustNewConstMetric(c.lastDuration, prometheus.GaugeValue, m.LastRunDuration.Seconds())
}
