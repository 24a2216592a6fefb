package volley

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"

	"github.com/volleyhttp/volley/pkg/cache"
	"github.com/volleyhttp/volley/pkg/gate"
	"github.com/volleyhttp/volley/pkg/transport"
)

// Request describes one unit of work in a batch: its position in the
// input list, target, method, and optional payload.
type Request struct {
	Index   int
	URL     string
	Method  string
	Payload any
}

// Outcome is the result of one request: either a transformed Value or a
// terminal *RequestError, never both.
type Outcome struct {
	Index int
	Value any
	Err   *RequestError
}

// executor runs individual requests with gating, retries on transient
// transport failures, and the configured response transform. It is
// shared by all workers of a batch.
type executor struct {
	client        *transport.Client
	gate          *gate.Gate
	cache         *cache.Manager
	responseFn    ResponseFunc
	maxRetries    int
	backoff       time.Duration
	raiseOnStatus bool
	logger        zerolog.Logger
}

// execute issues req, retrying timeouts and connection failures with a
// fixed backoff. All failures are captured in the Outcome; execute
// never returns an error to the batch loop.
func (e *executor) execute(ctx context.Context, req Request) Outcome {
	if v, ok := e.cacheLookup(ctx, req); ok {
		return Outcome{Index: req.Index, Value: v}
	}

	attempts := 0
	value, err := retry.DoWithData(
		func() (any, error) {
			attempts++
			return e.attempt(ctx, req)
		},
		retry.Context(ctx),
		retry.Attempts(uint(e.maxRetries)+1),
		retry.Delay(e.backoff),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return retry.IsRecoverable(err) && transport.IsTransient(err)
		}),
		retry.OnRetry(func(n uint, err error) {
			retriesTotal.Inc()
			e.logger.Debug().
				Str("url", req.URL).
				Str("method", req.Method).
				Uint("attempt", n+1).
				Err(err).
				Msg("Retrying after transient failure")
		}),
	)
	if err != nil {
		class := classifyFailure(err)
		requestFailures.WithLabelValues(class).Inc()
		if class == "transport" && attempts > e.maxRetries {
			retryExhausted.Inc()
		}
		e.logger.Warn().
			Str("url", req.URL).
			Str("method", req.Method).
			Int("attempts", attempts).
			Str("failure_class", class).
			Err(err).
			Msg("Request failed")
		return Outcome{Index: req.Index, Err: &RequestError{
			URL:     req.URL,
			Method:  req.Method,
			Payload: req.Payload,
			Err:     err,
		}}
	}

	return Outcome{Index: req.Index, Value: value}
}

// attempt performs a single gated transport call followed by the
// response transform. The gate is held only for the call itself, so a
// slow transform never starves other requests.
func (e *executor) attempt(ctx context.Context, req Request) (any, error) {
	if err := e.gate.Acquire(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := e.client.Do(ctx, req.Method, req.URL, req.Payload)
	e.gate.Release()

	if err != nil {
		return nil, err
	}

	requestDuration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())
	requestsTotal.WithLabelValues(req.Method, strconv.Itoa(resp.StatusCode)).Inc()

	if e.raiseOnStatus && resp.StatusCode >= http.StatusBadRequest {
		drainAndClose(resp)
		return nil, retry.Unrecoverable(&StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			URL:        req.URL,
		})
	}

	e.cacheStore(ctx, req, resp)

	value, err := e.responseFn(resp)
	if err != nil {
		return nil, retry.Unrecoverable(err)
	}
	return value, nil
}

// cacheLookup serves GET requests from the cache when one is configured.
func (e *executor) cacheLookup(ctx context.Context, req Request) (any, bool) {
	if e.cache == nil || req.Method != http.MethodGet {
		return nil, false
	}

	entry, err := e.cache.Get(ctx, cache.Key(req.Method, e.client.Target(req.URL)))
	if err != nil {
		return nil, false
	}

	value, err := e.responseFn(entry.Response())
	if err != nil {
		e.logger.Debug().Err(err).Str("url", req.URL).Msg("Discarding unusable cache entry")
		return nil, false
	}
	return value, true
}

// cacheStore records a successful GET response. The body is restored so
// the response transform still sees it.
func (e *executor) cacheStore(ctx context.Context, req Request, resp *http.Response) {
	if e.cache == nil || req.Method != http.MethodGet || resp.StatusCode != http.StatusOK {
		return
	}

	entry, err := cache.ResponseToEntry(resp, e.cache.TTL())
	if err != nil {
		e.logger.Debug().Err(err).Str("url", req.URL).Msg("Skipping cache store")
		return
	}
	e.cache.Set(ctx, cache.Key(req.Method, e.client.Target(req.URL)), entry)
}

// classifyFailure buckets a terminal error for metrics and logs.
func classifyFailure(err error) string {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return "status"
	}
	if transport.IsTransient(err) {
		return "transport"
	}
	return "other"
}

func drainAndClose(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
