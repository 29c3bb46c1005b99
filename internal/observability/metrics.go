package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// regridding pipeline.
type Metrics struct {
	UnitsProcessed  prometheus.Counter
	UnitFailures    prometheus.Counter
	FieldsRegridded prometheus.Counter
	PipelineRunning prometheus.Gauge

	// Per-unit processing metrics.
	UnitDuration prometheus.Histogram

	// Weight matrix metrics.
	WeightComputeDuration prometheus.Histogram
	WeightCache           *prometheus.CounterVec // label: result={memory,disk,computed}

	// Completion event metrics.
	EventsPublished prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		UnitsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "emissions_regrid",
			Name:      "units_processed_total",
			Help:      "Total (year, month, day-type, sector) units regridded successfully.",
		}),
		UnitFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "emissions_regrid",
			Name:      "unit_failures_total",
			Help:      "Total units that failed to process.",
		}),
		FieldsRegridded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "emissions_regrid",
			Name:      "fields_regridded_total",
			Help:      "Total variable fields remapped onto the output grid.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "emissions_regrid",
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		UnitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "emissions_regrid",
			Name:      "unit_duration_seconds",
			Help:      "Duration of a complete load-regrid-write cycle for one unit.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200},
		}),
		WeightComputeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "emissions_regrid",
			Name:      "weight_compute_duration_seconds",
			Help:      "Time spent computing a conservative weight matrix from scratch.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}),
		WeightCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "emissions_regrid",
			Name:      "weight_cache_total",
			Help:      "Weight matrix lookups by source of the matrix.",
		}, []string{"result"}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "emissions_regrid",
			Name:      "events_published_total",
			Help:      "Total unit completion events published.",
		}),
	}

	prometheus.MustRegister(
		m.UnitsProcessed,
		m.UnitFailures,
		m.FieldsRegridded,
		m.PipelineRunning,
		m.UnitDuration,
		m.WeightComputeDuration,
		m.WeightCache,
		m.EventsPublished,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		UnitsProcessed:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "emissions_regrid", Name: "units_processed_total"}),
		UnitFailures:          prometheus.NewCounter(prometheus.CounterOpts{Namespace: "emissions_regrid", Name: "unit_failures_total"}),
		FieldsRegridded:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "emissions_regrid", Name: "fields_regridded_total"}),
		PipelineRunning:       prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "emissions_regrid", Name: "pipeline_running"}),
		UnitDuration:          prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "emissions_regrid", Name: "unit_duration_seconds"}),
		WeightComputeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "emissions_regrid", Name: "weight_compute_duration_seconds"}),
		WeightCache:           prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "emissions_regrid", Name: "weight_cache_total"}, []string{"result"}),
		EventsPublished:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "emissions_regrid", Name: "events_published_total"}),
	}
}
