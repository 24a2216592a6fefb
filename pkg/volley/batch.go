package volley

import (
	"context"
	"reflect"
	"sync"

	"github.com/rs/zerolog"

	"github.com/volleyhttp/volley/pkg/gate"
	"github.com/volleyhttp/volley/pkg/logging"
	"github.com/volleyhttp/volley/pkg/progress"
	"github.com/volleyhttp/volley/pkg/transport"
)

// Batch is a validated set of requests sharing one configuration. A
// Batch is single-use: consume it through All or Stream exactly once.
type Batch struct {
	cfg    Config
	res    *resolved
	logger zerolog.Logger
}

// New validates cfg against urls and builds a batch. Invalid methods
// and unreconcilable url/payload counts fail here, before any request
// is issued.
func New(urls []string, cfg Config) (*Batch, error) {
	res, err := resolveConfig(urls, cfg)
	if err != nil {
		return nil, err
	}

	return &Batch{
		cfg:    cfg,
		res:    res,
		logger: logging.NewLogger("batch"),
	}, nil
}

// Up is the one-call form: build a batch from urls and cfg, run it, and
// return the results in input order.
func Up(ctx context.Context, urls []string, cfg Config) ([]any, error) {
	b, err := New(urls, cfg)
	if err != nil {
		return nil, err
	}
	return b.All(ctx)
}

// Len returns the number of requests in the batch after broadcasting.
func (b *Batch) Len() int {
	return len(b.res.requests)
}

// All runs the batch and returns one result per request, ordered by
// input position. Successes contribute their transformed value,
// failures their *RequestError; a failed request never fails the batch.
// The returned error is reserved for batch-level aborts such as context
// cancellation.
func (b *Batch) All(ctx context.Context) ([]any, error) {
	out := make(chan Outcome)
	go b.run(ctx, out)

	outcomes := make([]Outcome, 0, b.Len())
	for oc := range out {
		outcomes = append(outcomes, oc)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	values := sortByIndex(outcomes)
	if b.cfg.FlattenResult {
		values = flatten(values)
	}
	return values, nil
}

// Stream runs the batch and delivers outcomes as they complete, in
// completion order. The channel is unbuffered and closes once all
// requests finish or the context is cancelled. FlattenResult does not
// apply to streamed outcomes.
func (b *Batch) Stream(ctx context.Context) <-chan Outcome {
	if b.cfg.FlattenResult {
		b.logger.Warn().Msg("FlattenResult is ignored when streaming")
	}

	out := make(chan Outcome)
	go b.run(ctx, out)
	return out
}

// run issues every request through a shared executor and forwards
// outcomes to out. It owns out and closes it when done. Workers write
// into a buffered staging channel so a slow consumer never blocks
// request completion accounting.
func (b *Batch) run(ctx context.Context, out chan<- Outcome) {
	defer close(out)

	client, err := b.newClient()
	if err != nil {
		b.failAll(ctx, out, err)
		return
	}
	defer client.Close()

	batchesTotal.Inc()
	batchSize.Observe(float64(b.Len()))
	b.logger.Debug().
		Int("requests", b.Len()).
		Int64("concurrency", b.res.gateCap).
		Str("method", b.res.method).
		Msg("Issuing batch")

	exec := &executor{
		client:        client,
		gate:          gate.New(b.res.gateCap),
		cache:         b.cfg.Cache,
		responseFn:    b.responseFunc(),
		maxRetries:    b.res.retries,
		backoff:       b.res.backoff,
		raiseOnStatus: b.cfg.RaiseOnErrorStatus,
		logger:        logging.NewLogger("request"),
	}

	staged := make(chan Outcome, b.Len())
	var wg sync.WaitGroup
	for _, req := range b.res.requests {
		wg.Add(1)
		go func(req Request) {
			defer wg.Done()
			staged <- exec.execute(ctx, req)
		}(req)
	}
	go func() {
		wg.Wait()
		close(staged)
	}()

	bar := progress.New(b.Len(), b.cfg.Progress, "volley "+b.res.method)
	defer bar.Finish()

	for oc := range staged {
		bar.Increment()
		select {
		case out <- oc:
		case <-ctx.Done():
			return
		}
	}
}

// failAll reports a client construction failure as a RequestError per
// request, keeping the all-failures-are-data contract.
func (b *Batch) failAll(ctx context.Context, out chan<- Outcome, err error) {
	for _, req := range b.res.requests {
		oc := Outcome{Index: req.Index, Err: &RequestError{
			URL:     req.URL,
			Method:  req.Method,
			Payload: req.Payload,
			Err:     err,
		}}
		select {
		case out <- oc:
		case <-ctx.Done():
			return
		}
	}
}

func (b *Batch) newClient() (*transport.Client, error) {
	if b.cfg.Client != nil {
		return transport.Borrow(b.cfg.Client), nil
	}
	return transport.NewClient(b.cfg.BaseURL, b.cfg.Headers, b.res.limits, b.res.timeouts)
}

func (b *Batch) responseFunc() ResponseFunc {
	if b.cfg.ResponseFunc != nil {
		return b.cfg.ResponseFunc
	}
	return DecodeJSON
}

// flatten splices slice-valued results into the output list. Non-slice
// values, []byte payloads and *RequestError entries pass through
// atomically, so one failed page never dissolves into its elements.
func flatten(values []any) []any {
	flat := make([]any, 0, len(values))
	for _, v := range values {
		switch t := v.(type) {
		case *RequestError:
			flat = append(flat, t)
			continue
		case []byte:
			flat = append(flat, t)
			continue
		case []any:
			flat = append(flat, t...)
			continue
		}

		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice {
			for i := 0; i < rv.Len(); i++ {
				flat = append(flat, rv.Index(i).Interface())
			}
			continue
		}
		flat = append(flat, v)
	}
	return flat
}
