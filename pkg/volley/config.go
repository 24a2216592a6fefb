package volley

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/volleyhttp/volley/pkg/cache"
	"github.com/volleyhttp/volley/pkg/transport"
)

// maxDerivedConcurrency caps the derived concurrency limit. Very large
// in-flight counts produce excess timeouts rather than throughput, so
// the derived value never exceeds this regardless of connection limits.
const maxDerivedConcurrency = 1000

// ResponseFunc transforms a raw response into the value stored in the
// batch results. Implementations own the response body.
type ResponseFunc func(*http.Response) (any, error)

// RawResponse is the pass-through ResponseFunc: the result value is the
// untouched *http.Response and the caller must close its body.
func RawResponse(resp *http.Response) (any, error) {
	return resp, nil
}

// DecodeJSON is the default ResponseFunc: it decodes the body as JSON
// into a generic value and closes it. An empty body decodes to nil.
func DecodeJSON(resp *http.Response) (any, error) {
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode JSON response: %w", err)
	}
	return v, nil
}

// Concurrency is the three-state in-flight limit: the zero value
// derives the limit from the connection limit, MaxInFlight pins it,
// and Unbounded disables gating so only transport limits apply.
type Concurrency struct {
	mode int
	n    int64
}

const (
	concurrencyDerived = iota
	concurrencyFixed
	concurrencyUnbounded
)

// MaxInFlight caps the number of simultaneously in-flight requests at n.
func MaxInFlight(n int) Concurrency {
	return Concurrency{mode: concurrencyFixed, n: int64(n)}
}

// Unbounded disables the concurrency gate entirely.
func Unbounded() Concurrency {
	return Concurrency{mode: concurrencyUnbounded}
}

// resolve returns the effective gate capacity, 0 meaning ungated.
func (c Concurrency) resolve(maxConnections int) int64 {
	switch c.mode {
	case concurrencyFixed:
		return c.n
	case concurrencyUnbounded:
		return 0
	default:
		if maxConnections <= 0 || maxConnections > maxDerivedConcurrency {
			return maxDerivedConcurrency
		}
		return int64(maxConnections)
	}
}

// Config is the shared configuration of one batch. Build it from
// DefaultConfig and override fields as needed; it is immutable for the
// batch's lifetime once passed to New.
type Config struct {
	// Method is the HTTP method for every request in the batch.
	// Case-insensitive; must be one of the supported verbs.
	Method string

	// BaseURL is prepended to relative targets. Ignored when Client is set.
	BaseURL string

	// Headers are applied to every request. Ignored when Client is set.
	Headers map[string]string

	// Payloads are per-request bodies, aligned with the URL list.
	// One payload broadcasts across many URLs and vice versa.
	Payloads []any

	// ResponseFunc transforms each response. Nil means DecodeJSON;
	// RawResponse returns responses untouched.
	ResponseFunc ResponseFunc

	// FlattenResult splices slice-valued results into the collected
	// output. RequestError elements stay atomic. Collect-all only.
	FlattenResult bool

	// MaxConnections bounds the transport connection pool and seeds the
	// derived concurrency limit. 0 means unlimited connections.
	MaxConnections int

	// Timeout is the per-request timeout convenience. Zero means 10s.
	Timeout time.Duration

	// MaxRetriesOnTimeout is how many times a timed-out request is
	// reissued before failing. Zero means fail on first timeout.
	MaxRetriesOnTimeout int

	// RetryBackoff is the fixed pause before each retry. Zero means 1s.
	RetryBackoff time.Duration

	// RaiseOnErrorStatus turns responses with status >= 400 into
	// terminal RequestError failures.
	RaiseOnErrorStatus bool

	// Limits overrides the derived transport connection limits.
	Limits *transport.Limits

	// Timeouts overrides the derived transport timeouts.
	Timeouts *transport.Timeouts

	// Client, when set, is borrowed for the batch: BaseURL, Headers,
	// Limits and Timeouts are ignored and the client is never closed.
	Client *http.Client

	// Progress renders a completion progress bar on stderr.
	Progress bool

	// Concurrency is the in-flight request limit. The zero value
	// derives min(MaxConnections, 1000).
	Concurrency Concurrency

	// Cache enables the optional GET response cache.
	Cache *cache.Manager
}

// DefaultConfig mirrors the documented defaults: GET, 100 connections,
// 10s timeout, 3 retries on timeout with a 1s fixed backoff, error
// statuses raised, progress shown.
func DefaultConfig() Config {
	return Config{
		Method:              http.MethodGet,
		MaxConnections:      100,
		Timeout:             10 * time.Second,
		MaxRetriesOnTimeout: 3,
		RetryBackoff:        time.Second,
		RaiseOnErrorStatus:  true,
		Progress:            true,
	}
}

// resolved is the validated, normalized form of a Config plus its
// request descriptors.
type resolved struct {
	requests []Request
	method   string
	limits   transport.Limits
	timeouts transport.Timeouts
	gateCap  int64
	retries  int
	backoff  time.Duration
}

// resolveConfig validates the configuration and aligns URLs with
// payloads. All validation failures surface here, before any request
// is issued.
func resolveConfig(urls []string, cfg Config) (*resolved, error) {
	methodIn := cfg.Method
	if methodIn == "" {
		methodIn = http.MethodGet
	}
	method, err := transport.NormalizeMethod(methodIn)
	if err != nil {
		return nil, err
	}

	urls, payloads, err := alignInputs(urls, cfg.Payloads)
	if err != nil {
		return nil, err
	}

	requests := make([]Request, len(urls))
	for i, u := range urls {
		requests[i] = Request{Index: i, URL: u, Method: method}
		if payloads != nil {
			requests[i].Payload = payloads[i]
		}
	}

	limits := transport.Limits{
		MaxConnections: cfg.MaxConnections,
		MaxKeepalive:   transport.DefaultLimits().MaxKeepalive,
	}
	if cfg.Limits != nil {
		limits = *cfg.Limits
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = transport.DefaultTimeouts().Request
	}
	timeouts := transport.Timeouts{Request: timeout}
	if cfg.Timeouts != nil {
		timeouts = *cfg.Timeouts
	}

	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = time.Second
	}

	retries := cfg.MaxRetriesOnTimeout
	if retries < 0 {
		retries = 0
	}

	return &resolved{
		requests: requests,
		method:   method,
		limits:   limits,
		timeouts: timeouts,
		gateCap:  cfg.Concurrency.resolve(cfg.MaxConnections),
		retries:  retries,
		backoff:  backoff,
	}, nil
}

// alignInputs applies the broadcast policy: one URL spreads over many
// payloads, one payload spreads over many URLs, otherwise the counts
// must match exactly.
func alignInputs(urls []string, payloads []any) ([]string, []any, error) {
	if len(payloads) == 0 {
		return urls, nil, nil
	}

	if len(urls) == 1 && len(payloads) > 1 {
		broadcast := make([]string, len(payloads))
		for i := range broadcast {
			broadcast[i] = urls[0]
		}
		urls = broadcast
	}
	if len(payloads) == 1 && len(urls) > 1 {
		broadcast := make([]any, len(urls))
		for i := range broadcast {
			broadcast[i] = payloads[0]
		}
		payloads = broadcast
	}

	if len(urls) != len(payloads) {
		return nil, nil, misalignedError(len(urls), len(payloads))
	}
	return urls, payloads, nil
}
