package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "gridbalance_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	fetchAttempts *prometheus.CounterVec

	ingestRuns    *prometheus.CounterVec
	ingestLatency *prometheus.HistogramVec
	recordsSaved  *prometheus.CounterVec

	schedulerRunning *prometheus.GaugeVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		fetchAttempts = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "fetch_attempts_total",
				Help: "Total external fetch attempts by granularity and result",
			},
			[]string{"granularity", "result"},
		)
		ingestRuns = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_runs_total",
				Help: "Total ingest runs by granularity and result",
			},
			[]string{"granularity", "result"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Ingest run latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"granularity", "result"},
		)
		recordsSaved = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "records_saved_total",
				Help: "Total balance records saved by granularity",
			},
			[]string{"granularity"},
		)
		schedulerRunning = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "scheduler_running",
				Help: "Whether the granularity scheduler is running (1) or stopped (0)",
			},
			[]string{"granularity"},
		)
		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total balance export operations by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Balance export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			fetchAttempts,
			ingestRuns,
			ingestLatency,
			recordsSaved,
			schedulerRunning,
			exportTotal,
			exportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// IncFetchAttempt increments the fetch attempt counter.
func IncFetchAttempt(granularity, result string) {
	if result == "" {
		result = resultSuccess
	}
	if fetchAttempts != nil {
		fetchAttempts.WithLabelValues(granularity, result).Inc()
	}
}

// ObserveIngestRun records ingest run duration and result.
func ObserveIngestRun(granularity, result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if ingestRuns != nil {
		ingestRuns.WithLabelValues(granularity, result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(granularity, result).Observe(duration.Seconds())
	}
}

// AddRecordsSaved increments the saved record counter by count.
func AddRecordsSaved(granularity string, count int) {
	if count <= 0 {
		return
	}
	if recordsSaved != nil {
		recordsSaved.WithLabelValues(granularity).Add(float64(count))
	}
}

// SetSchedulerRunning flags a scheduler as running or stopped.
func SetSchedulerRunning(granularity string, running bool) {
	if schedulerRunning == nil {
		return
	}
	value := 0.0
	if running {
		value = 1.0
	}
	schedulerRunning.WithLabelValues(granularity).Set(value)
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
