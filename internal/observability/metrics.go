package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingest pipeline.
type Metrics struct {
	FilesDiscovered   *prometheus.CounterVec // labels: scope={obs,model}
	FilesRegistered   *prometheus.CounterVec // labels: scope
	FilesLoaded       *prometheus.CounterVec // labels: scope
	FilesSkipped      *prometheus.CounterVec // labels: scope, reason={malformed,no_timestamp,empty}
	RowsLoaded        *prometheus.CounterVec // labels: scope
	DuplicatesDeleted prometheus.Counter
	SourcesRegistered prometheus.Counter
	PipelineErrors    *prometheus.CounterVec // labels: scope, stage={discover,register,bind,load,dedupe}
	PipelineRunning   prometheus.Gauge

	StageDuration *prometheus.HistogramVec // labels: scope, stage
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		FilesDiscovered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gauge_ingest",
			Name:      "files_discovered_total",
			Help:      "Harvest files found on disk that were not yet in the ledger.",
		}, []string{"scope"}),
		FilesRegistered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gauge_ingest",
			Name:      "files_registered_total",
			Help:      "Harvest files appended to the known-file ledger.",
		}, []string{"scope"}),
		FilesLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gauge_ingest",
			Name:      "files_loaded_total",
			Help:      "Harvest files whose rows reached the data table.",
		}, []string{"scope"}),
		FilesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gauge_ingest",
			Name:      "files_skipped_total",
			Help:      "Harvest files skipped during discovery, by reason.",
		}, []string{"scope", "reason"}),
		RowsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gauge_ingest",
			Name:      "rows_loaded_total",
			Help:      "Data rows bulk-copied into the warehouse.",
		}, []string{"scope"}),
		DuplicatesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gauge_ingest",
			Name:      "duplicates_deleted_total",
			Help:      "Rows removed by the duplicate-time resolver.",
		}),
		SourcesRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gauge_ingest",
			Name:      "sources_registered_total",
			Help:      "New measurement sources registered.",
		}),
		PipelineErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gauge_ingest",
			Name:      "pipeline_errors_total",
			Help:      "Pipeline stage failures by scope and stage.",
		}, []string{"scope", "stage"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gauge_ingest",
			Name:      "pipeline_running",
			Help:      "1 while a pipeline run is active, 0 otherwise.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gauge_ingest",
			Name:      "stage_duration_seconds",
			Help:      "Duration of one pipeline stage for one source.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"scope", "stage"}),
	}

	prometheus.MustRegister(
		m.FilesDiscovered,
		m.FilesRegistered,
		m.FilesLoaded,
		m.FilesSkipped,
		m.RowsLoaded,
		m.DuplicatesDeleted,
		m.SourcesRegistered,
		m.PipelineErrors,
		m.PipelineRunning,
		m.StageDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		FilesDiscovered:   prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "gauge_ingest", Name: "files_discovered_total"}, []string{"scope"}),
		FilesRegistered:   prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "gauge_ingest", Name: "files_registered_total"}, []string{"scope"}),
		FilesLoaded:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "gauge_ingest", Name: "files_loaded_total"}, []string{"scope"}),
		FilesSkipped:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "gauge_ingest", Name: "files_skipped_total"}, []string{"scope", "reason"}),
		RowsLoaded:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "gauge_ingest", Name: "rows_loaded_total"}, []string{"scope"}),
		DuplicatesDeleted: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "gauge_ingest", Name: "duplicates_deleted_total"}),
		SourcesRegistered: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "gauge_ingest", Name: "sources_registered_total"}),
		PipelineErrors:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "gauge_ingest", Name: "pipeline_errors_total"}, []string{"scope", "stage"}),
		PipelineRunning:   prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "gauge_ingest", Name: "pipeline_running"}),
		StageDuration:     prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "gauge_ingest", Name: "stage_duration_seconds"}, []string{"scope", "stage"}),
	}
}
