// Package metrics anchors the Prometheus registry used by volley.
// Metric vectors are defined in the packages that own the behavior
// (pkg/volley for requests and retries, pkg/cache for the response
// cache); this package documents them in one place.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the Prometheus registerer volley metrics attach to.
// All metrics register automatically via promauto in their packages.
var Registry = prometheus.DefaultRegisterer

// Metrics catalog
//
// Request metrics (pkg/volley):
//   - volley_requests_total{method, status} (Counter): completed transport calls
//   - volley_request_duration_seconds{method} (Histogram): single-attempt duration
//   - volley_request_failures_total{class} (Counter): terminal per-request failures
//     by class (status, transport, other)
//
// Retry metrics (pkg/volley):
//   - volley_retries_total (Counter): retry attempts after transient failures
//   - volley_retry_exhausted_total (Counter): requests that ran out of retries
//
// Batch metrics (pkg/volley):
//   - volley_batches_total (Counter): batch invocations
//   - volley_batch_size (Histogram): requests per batch
//
// Cache metrics (pkg/cache):
//   - volley_cache_hits_total{layer} (Counter): response cache hits by layer
//     (memory, redis)
//   - volley_cache_misses_total (Counter): response cache misses
//   - volley_cache_errors_total{operation} (Counter): cache backend errors
//
// Example queries:
//
//   # Failure rate
//   sum(rate(volley_request_failures_total[5m])) / sum(rate(volley_requests_total[5m]))
//
//   # P95 single-attempt latency
//   histogram_quantile(0.95, rate(volley_request_duration_seconds_bucket[5m]))
//
//   # Cache hit rate
//   sum(rate(volley_cache_hits_total[5m])) /
//   (sum(rate(volley_cache_hits_total[5m])) + sum(rate(volley_cache_misses_total[5m])))
