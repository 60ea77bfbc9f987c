package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the import pipeline.
type Metrics struct {
	Imports             *prometheus.CounterVec // labels: outcome={success,extract_error,load_error,check_error,unknown_type}
	Observations        prometheus.Counter
	ObservationsSkipped *prometheus.CounterVec // labels: reason={invalid_row,unknown_channel,invalid_class,invalid_speed}
	BinsProduced        *prometheus.CounterVec // labels: kind={class,speed,volume,bicycle}
	WarningsEmitted     *prometheus.CounterVec // labels: rule
	ImportDuration      prometheus.Histogram
	PipelineRunning     prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)

	prometheus.MustRegister(
		m.Imports,
		m.Observations,
		m.ObservationsSkipped,
		m.BinsProduced,
		m.WarningsEmitted,
		m.ImportDuration,
		m.PipelineRunning,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}

	return &Metrics{
		Imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "traffic_etl",
			Name:      "imports_total",
			Help:      help("Count files processed, by outcome."),
		}, []string{"outcome"}),
		Observations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "traffic_etl",
			Name:      "observations_total",
			Help:      help("Individual vehicle observations read from count files."),
		}),
		ObservationsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "traffic_etl",
			Name:      "observations_skipped_total",
			Help:      help("Observations skipped during aggregation, by reason."),
		}, []string{"reason"}),
		BinsProduced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "traffic_etl",
			Name:      "bins_produced_total",
			Help:      help("Aggregated rows handed to the loader, by kind."),
		}, []string{"kind"}),
		WarningsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "traffic_etl",
			Name:      "warnings_total",
			Help:      help("Data-quality warnings, by rule."),
		}, []string{"rule"}),
		ImportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "traffic_etl",
			Name:      "import_duration_seconds",
			Help:      help("Duration of extracting, aggregating, loading and checking one count."),
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "traffic_etl",
			Name:      "pipeline_running",
			Help:      help("1 while an import run is in progress, 0 otherwise."),
		}),
	}
}
