package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptforge_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "promptforge_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	GenerationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptforge_generations_total",
			Help: "Total number of generation requests by modality and outcome.",
		},
		[]string{"modality", "status"},
	)

	VendorRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "promptforge_vendor_request_duration_seconds",
			Help:    "Latency of outbound vendor API calls.",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"vendor"},
	)

	TrialDenialsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "promptforge_trial_denials_total",
			Help: "Generation requests denied because the free trial was exhausted.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		GenerationsTotal,
		VendorRequestDuration,
		TrialDenialsTotal,
	)
}
