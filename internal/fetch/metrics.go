package fetch

import "github.com/prometheus/client_golang/prometheus"

var (
	downloadAttempts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "inferd",
		Subsystem: "fetch",
		Name:      "download_attempts_total",
		Help:      "Total number of model download attempts",
	})

	downloadFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "inferd",
		Subsystem: "fetch",
		Name:      "download_failures_total",
		Help:      "Total number of failed model download attempts",
	})

	downloadBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "inferd",
		Subsystem: "fetch",
		Name:      "download_bytes_total",
		Help:      "Total bytes written by completed model downloads",
	})
)

func init() {
	prometheus.MustRegister(downloadAttempts, downloadFailures, downloadBytes)
}
