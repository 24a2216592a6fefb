// Package testutil provides a configurable mock HTTP server for volley
// tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior of a mocked endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockServer is an httptest-backed server with per-path handlers and
// request accounting. Safe for concurrent requests.
type MockServer struct {
	server *httptest.Server

	mu         sync.Mutex
	handlers   map[string]http.HandlerFunc
	total      int
	pathCounts map[string]int
}

// NewMockServer starts a mock server. Paths without a configured
// handler answer 200 with a small JSON body.
func NewMockServer() *MockServer {
	m := &MockServer{
		handlers:   make(map[string]http.HandlerFunc),
		pathCounts: make(map[string]int),
	}

	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.total++
		m.pathCounts[r.URL.Path]++
		handler, ok := m.handlers[r.URL.Path]
		m.mu.Unlock()

		if ok {
			handler(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}))

	return m
}

// URL returns the server base URL.
func (m *MockServer) URL() string {
	return m.server.URL
}

// Client returns an *http.Client configured for the server.
func (m *MockServer) Client() *http.Client {
	return m.server.Client()
}

// Close shuts the server down.
func (m *MockServer) Close() {
	m.server.Close()
}

// Reset clears request counters.
func (m *MockServer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total = 0
	m.pathCounts = make(map[string]int)
}

// SetHandler installs a custom handler for path.
func (m *MockServer) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a static response for path.
func (m *MockServer) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for k, v := range resp.Headers {
			w.Header().Set(k, v)
		}
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetJSONResponse configures a 200 response with v marshaled as JSON.
func (m *MockServer) SetJSONResponse(path string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	m.SetResponse(path, MockResponse{
		StatusCode: http.StatusOK,
		Body:       string(data),
	})
}

// RequestCount returns the total number of requests served.
func (m *MockServer) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// PathCount returns how many requests hit path.
func (m *MockServer) PathCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pathCounts[path]
}

// SlowHandler answers 200 after delay. Combined with a short client
// timeout it simulates a request that always times out.
func SlowHandler(delay time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(delay)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"late":true}`))
	}
}

// FlakyHandler fails with 500 for the first failures requests to its
// path, then answers 200 with body.
func FlakyHandler(failures int, body string) http.HandlerFunc {
	var mu sync.Mutex
	var calls int
	return func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()

		if n <= failures {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":"flaky"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body))
	}
}
