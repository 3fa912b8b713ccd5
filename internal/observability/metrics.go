package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "price_refiner"

// Metrics holds the Prometheus counters, histograms, and gauges for the refiner.
type Metrics struct {
	HoursRefined   *prometheus.CounterVec // labels: outcome={success,error}
	RefineDuration prometheus.Histogram
	PriceFetches   *prometheus.CounterVec // labels: outcome={success,error}

	// Day run metrics.
	RunDuration       prometheus.Histogram
	RunAttempts       prometheus.Counter
	LastSuccessfulRun prometheus.Gauge
	SchedulerRunning  prometheus.Gauge

	// Sink metrics.
	SinkWrites *prometheus.CounterVec // labels: sink={influx,kafka,sqlite}, outcome={success,error}
}

// NewMetrics creates and registers all refiner metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates all refiner metrics and registers them with reg.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(
		m.HoursRefined,
		m.RefineDuration,
		m.PriceFetches,
		m.RunDuration,
		m.RunAttempts,
		m.LastSuccessfulRun,
		m.SchedulerRunning,
		m.SinkWrites,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		HoursRefined: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hours_refined_total",
			Help:      "Refined hours by outcome.",
		}, []string{"outcome"}),
		RefineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refine_duration_seconds",
			Help:      "Duration of one hour's fetch, classification, and write.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		PriceFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_fetches_total",
			Help:      "Reads of the price_info series by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of one attempt at refining a day.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		RunAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_attempts_total",
			Help:      "Day run attempts, including retries.",
		}),
		LastSuccessfulRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_successful_run_timestamp_seconds",
			Help:      "Unix time of the last run in which every hour was refined.",
		}),
		SchedulerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_running",
			Help:      "1 when the cron scheduler is active, 0 when stopped.",
		}),
		SinkWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_writes_total",
			Help:      "Refined record writes by sink and outcome.",
		}, []string{"sink", "outcome"}),
	}
}

// Outcome maps an error to the outcome label value.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
