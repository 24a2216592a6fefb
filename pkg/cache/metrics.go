package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "volley_cache_hits_total",
			Help: "Total response cache hits by layer",
		},
		[]string{"layer"}, // "memory", "redis"
	)

	cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "volley_cache_misses_total",
			Help: "Total response cache misses",
		},
	)

	cacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "volley_cache_errors_total",
			Help: "Total cache backend errors by operation",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
