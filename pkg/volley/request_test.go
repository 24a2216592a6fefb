package volley

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/volleyhttp/volley/internal/testutil"
	"github.com/volleyhttp/volley/pkg/cache"
	"github.com/volleyhttp/volley/pkg/gate"
	"github.com/volleyhttp/volley/pkg/transport"
)

func newTestExecutor(t *testing.T, baseURL string, timeout time.Duration) *executor {
	t.Helper()

	client, err := transport.NewClient(baseURL, nil, transport.DefaultLimits(), transport.Timeouts{Request: timeout})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	t.Cleanup(client.Close)

	return &executor{
		client:        client,
		gate:          gate.New(10),
		responseFn:    DecodeJSON,
		maxRetries:    0,
		backoff:       time.Millisecond,
		raiseOnStatus: true,
	}
}

func TestExecuteDecodesJSON(t *testing.T) {
	server := testutil.NewMockServer()
	defer server.Close()
	server.SetJSONResponse("/item", map[string]any{"id": 7.0, "name": "widget"})

	exec := newTestExecutor(t, server.URL(), time.Second)
	oc := exec.execute(context.Background(), Request{Index: 3, URL: "/item", Method: "GET"})

	if oc.Err != nil {
		t.Fatalf("execute() error = %v", oc.Err)
	}
	if oc.Index != 3 {
		t.Errorf("Index = %d, want 3", oc.Index)
	}
	body, ok := oc.Value.(map[string]any)
	if !ok {
		t.Fatalf("Value = %T, want map[string]any", oc.Value)
	}
	if body["name"] != "widget" {
		t.Errorf("body = %v", body)
	}
}

func TestExecuteRawResponse(t *testing.T) {
	server := testutil.NewMockServer()
	defer server.Close()

	exec := newTestExecutor(t, server.URL(), time.Second)
	exec.responseFn = RawResponse

	oc := exec.execute(context.Background(), Request{URL: "/raw", Method: "GET"})
	if oc.Err != nil {
		t.Fatalf("execute() error = %v", oc.Err)
	}

	resp, ok := oc.Value.(*http.Response)
	if !ok {
		t.Fatalf("Value = %T, want *http.Response", oc.Value)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d", resp.StatusCode)
	}
}

func TestExecuteRaisesErrorStatus(t *testing.T) {
	server := testutil.NewMockServer()
	defer server.Close()
	server.SetResponse("/down", testutil.MockResponse{StatusCode: http.StatusServiceUnavailable})

	exec := newTestExecutor(t, server.URL(), time.Second)
	exec.maxRetries = 3

	oc := exec.execute(context.Background(), Request{URL: "/down", Method: "GET"})
	if oc.Err == nil {
		t.Fatal("expected a RequestError")
	}

	var statusErr *StatusError
	if !errors.As(oc.Err, &statusErr) {
		t.Fatalf("Err = %v, want wrapped *StatusError", oc.Err)
	}
	if statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d, want 503", statusErr.StatusCode)
	}

	// Error statuses are terminal, never retried.
	if n := server.PathCount("/down"); n != 1 {
		t.Errorf("server hits = %d, want 1", n)
	}
}

func TestExecuteErrorStatusNotRaised(t *testing.T) {
	server := testutil.NewMockServer()
	defer server.Close()
	server.SetResponse("/down", testutil.MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error":"oops"}`,
	})

	exec := newTestExecutor(t, server.URL(), time.Second)
	exec.raiseOnStatus = false

	oc := exec.execute(context.Background(), Request{URL: "/down", Method: "GET"})
	if oc.Err != nil {
		t.Fatalf("execute() error = %v", oc.Err)
	}
	body, ok := oc.Value.(map[string]any)
	if !ok || body["error"] != "oops" {
		t.Errorf("Value = %v", oc.Value)
	}
}

func TestExecuteRetriesOnTimeout(t *testing.T) {
	server := testutil.NewMockServer()
	defer server.Close()

	for _, retries := range []int{0, 1, 3} {
		t.Run(fmt.Sprintf("retries=%d", retries), func(t *testing.T) {
			path := fmt.Sprintf("/slow/%d", retries)
			server.SetHandler(path, testutil.SlowHandler(200*time.Millisecond))

			exec := newTestExecutor(t, server.URL(), 20*time.Millisecond)
			exec.maxRetries = retries

			oc := exec.execute(context.Background(), Request{URL: path, Method: "GET"})
			if oc.Err == nil {
				t.Fatal("expected a timeout RequestError")
			}
			if !transport.IsTransient(oc.Err.Err) {
				t.Errorf("underlying error %v is not transient", oc.Err.Err)
			}

			if n := server.PathCount(path); n != retries+1 {
				t.Errorf("server hits = %d, want %d", n, retries+1)
			}
		})
	}
}

func TestExecuteCancelledContext(t *testing.T) {
	server := testutil.NewMockServer()
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := newTestExecutor(t, server.URL(), time.Second)
	oc := exec.execute(ctx, Request{URL: "/a", Method: "GET"})
	if oc.Err == nil {
		t.Fatal("expected a RequestError for cancelled context")
	}
	if !errors.Is(oc.Err, context.Canceled) {
		t.Errorf("Err = %v, want context.Canceled", oc.Err)
	}
}

func TestExecuteEchoesRequestInError(t *testing.T) {
	server := testutil.NewMockServer()
	defer server.Close()
	server.SetResponse("/bad", testutil.MockResponse{StatusCode: http.StatusBadRequest})

	exec := newTestExecutor(t, server.URL(), time.Second)
	payload := map[string]any{"key": "value"}
	oc := exec.execute(context.Background(), Request{Index: 2, URL: "/bad", Method: "POST", Payload: payload})

	if oc.Err == nil {
		t.Fatal("expected a RequestError")
	}
	if oc.Err.URL != "/bad" || oc.Err.Method != "POST" {
		t.Errorf("RequestError = %+v", oc.Err)
	}
	if oc.Err.Payload == nil {
		t.Error("payload not echoed in RequestError")
	}
}

func TestClassifyFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"status", &StatusError{StatusCode: 500}, "status"},
		{"transport", context.DeadlineExceeded, "transport"},
		{"other", errors.New("decode failed"), "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyFailure(tt.err); got != tt.want {
				t.Errorf("classifyFailure() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExecuteServesFromCache(t *testing.T) {
	server := testutil.NewMockServer()
	defer server.Close()
	server.SetJSONResponse("/cached", map[string]any{"v": 1.0})

	exec := newTestExecutor(t, server.URL(), time.Second)
	exec.cache = cache.New(cache.Config{TTL: time.Minute})

	req := Request{URL: "/cached", Method: "GET"}
	if oc := exec.execute(context.Background(), req); oc.Err != nil {
		t.Fatalf("first execute() error = %v", oc.Err)
	}
	oc := exec.execute(context.Background(), req)
	if oc.Err != nil {
		t.Fatalf("second execute() error = %v", oc.Err)
	}
	body, ok := oc.Value.(map[string]any)
	if !ok || body["v"] != 1.0 {
		t.Errorf("cached Value = %v", oc.Value)
	}

	if n := server.PathCount("/cached"); n != 1 {
		t.Errorf("server hits = %d, want 1 (second call cached)", n)
	}
}

func TestExecuteSkipsCacheForPost(t *testing.T) {
	server := testutil.NewMockServer()
	defer server.Close()

	exec := newTestExecutor(t, server.URL(), time.Second)
	exec.cache = cache.New(cache.Config{TTL: time.Minute})

	req := Request{URL: "/thing", Method: "POST", Payload: map[string]any{"a": 1}}
	exec.execute(context.Background(), req)
	exec.execute(context.Background(), req)

	if n := server.PathCount("/thing"); n != 2 {
		t.Errorf("server hits = %d, want 2 (POST is never cached)", n)
	}
}
