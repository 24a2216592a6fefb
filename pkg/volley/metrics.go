package volley

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "volley_requests_total",
		Help: "Total completed transport calls by method and status",
	}, []string{"method", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "volley_request_duration_seconds",
		Help:    "Single-attempt request duration in seconds by method",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"method"})

	requestFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "volley_request_failures_total",
		Help: "Terminal per-request failures by class",
	}, []string{"class"}) // "status", "transport", "other"

	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "volley_retries_total",
		Help: "Total retry attempts after transient transport failures",
	})

	retryExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "volley_retry_exhausted_total",
		Help: "Total requests that exhausted their retry budget",
	})

	batchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "volley_batches_total",
		Help: "Total batch invocations",
	})

	batchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "volley_batch_size",
		Help:    "Number of requests per batch",
		Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
	})
)
