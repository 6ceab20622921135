package runtime

import "github.com/prometheus/client_golang/prometheus"

var (
	loadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "inferd",
		Subsystem: "model",
		Name:      "loads_total",
		Help:      "Total number of successful engine constructions",
	})

	loadDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "inferd",
		Subsystem: "model",
		Name:      "load_duration_seconds",
		Help:      "Duration of engine construction in seconds",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	generateDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "inferd",
		Subsystem: "generate",
		Name:      "duration_seconds",
		Help:      "Duration of generation calls in seconds",
		Buckets:   prometheus.DefBuckets,
	})

	generateFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "inferd",
		Subsystem: "generate",
		Name:      "failures_total",
		Help:      "Total number of failed generation calls",
	})
)

func init() {
	prometheus.MustRegister(loadsTotal, loadDuration, generateDuration, generateFailures)
}
