// Package transport wraps the net/http client behind the capability the
// batch executor drives: issue one request with a method, a target URL
// (absolute or relative to a base URL), and an optional payload.
//
// Clients come in two flavors. Owned clients are built from base URL,
// headers, connection limits and timeouts, and must be released via
// Close when the batch is done. Borrowed clients wrap a caller-supplied
// *http.Client; their own configuration governs and Close never touches
// them.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

const defaultBinaryContentType = "application/octet-stream"

// Limits bounds the transport connection pool.
type Limits struct {
	// MaxConnections is the total number of TCP connections.
	MaxConnections int

	// MaxKeepalive is the number of idle keep-alive connections retained.
	MaxKeepalive int
}

// DefaultLimits returns the default connection limits.
func DefaultLimits() Limits {
	return Limits{
		MaxConnections: 100,
		MaxKeepalive:   20,
	}
}

// Timeouts holds per-request transport timeouts. Zero fields fall back
// to net/http defaults.
type Timeouts struct {
	// Request bounds a whole request including body read.
	Request time.Duration

	// Dial bounds connection establishment.
	Dial time.Duration

	// TLSHandshake bounds the TLS handshake.
	TLSHandshake time.Duration

	// ResponseHeader bounds the wait for response headers.
	ResponseHeader time.Duration
}

// DefaultTimeouts returns the default timeouts.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Request: 10 * time.Second,
	}
}

// Client issues single HTTP requests. It is safe for concurrent use and
// never mutated after construction.
type Client struct {
	hc      *http.Client
	baseURL *url.URL
	headers map[string]string
	owned   bool
}

// NewClient builds an owned client from base URL, headers, limits and
// timeouts. An empty baseURL is valid; all targets must then be
// absolute URLs.
func NewClient(baseURL string, headers map[string]string, limits Limits, timeouts Timeouts) (*Client, error) {
	var base *url.URL
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("parse base URL: %w", err)
		}
		base = u
	}

	dialer := &net.Dialer{Timeout: timeouts.Dial}
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxConnsPerHost:       limits.MaxConnections,
		MaxIdleConns:          limits.MaxKeepalive,
		MaxIdleConnsPerHost:   limits.MaxKeepalive,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   timeouts.TLSHandshake,
		ResponseHeaderTimeout: timeouts.ResponseHeader,
	}

	return &Client{
		hc: &http.Client{
			Transport: tr,
			Timeout:   timeouts.Request,
		},
		baseURL: base,
		headers: headers,
		owned:   true,
	}, nil
}

// Borrow wraps a caller-supplied *http.Client. The wrapped client's own
// configuration governs; base URL, headers, limits and timeouts from
// the batch configuration do not apply, and Close is a no-op.
func Borrow(hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{hc: hc, owned: false}
}

// Owned reports whether this client is owned by the batch and will be
// released by Close.
func (c *Client) Owned() bool {
	return c.owned
}

// Do issues one HTTP request. target is resolved against the base URL
// when relative. A non-nil payload is attached as the request body:
// []byte and json.RawMessage pass through as-is, anything else is
// JSON-encoded. The body is replayable so a retried request can be
// reissued safely.
func (c *Client) Do(ctx context.Context, method, target string, payload any) (*http.Response, error) {
	u, err := c.resolve(target)
	if err != nil {
		return nil, err
	}

	body, contentType, err := encodePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Body = io.NopCloser(bytes.NewReader(body))
		req.ContentLength = int64(len(body))
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	return c.hc.Do(req)
}

// Target returns the absolute URL a target resolves to. Unresolvable
// targets are returned verbatim; Do will report the error.
func (c *Client) Target(target string) string {
	u, err := c.resolve(target)
	if err != nil {
		return target
	}
	return u.String()
}

// Close releases an owned client's idle connections. Borrowed clients
// are left untouched.
func (c *Client) Close() {
	if c == nil || !c.owned {
		return
	}
	c.hc.CloseIdleConnections()
}

func (c *Client) resolve(target string) (*url.URL, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parse target URL %q: %w", target, err)
	}
	if u.IsAbs() {
		return u, nil
	}
	if c.baseURL == nil {
		return nil, fmt.Errorf("relative target %q without a base URL", target)
	}
	return c.baseURL.ResolveReference(u), nil
}

func encodePayload(payload any) (body []byte, contentType string, err error) {
	switch p := payload.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return p, defaultBinaryContentType, nil
	case json.RawMessage:
		return p, "application/json", nil
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return nil, "", err
		}
		return data, "application/json", nil
	}
}

// IsTransient reports whether err is a timeout or network-level failure
// worth retrying. Context cancellation is never transient; a client
// timeout (which surfaces as a *url.Error with Timeout set) is.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var oe *net.OpError
	return errors.As(err, &oe)
}
