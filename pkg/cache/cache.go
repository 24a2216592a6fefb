// Package cache provides an optional response cache for batch GET
// requests. Successful responses are stored keyed by method and
// resolved URL with a fixed TTL, so repeated batches against the same
// targets skip the network entirely.
//
// The cache has a fast in-memory layer and an optional Redis layer for
// sharing entries across processes. It is entirely opt-in: a batch
// without a configured cache never touches this package.
package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/volleyhttp/volley/pkg/logging"
)

var (
	// ErrCacheMiss indicates the key was not found or the entry expired.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates a stored entry could not be decoded.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// DefaultTTL is used when Config.TTL is zero.
const DefaultTTL = 60 * time.Second

// Config holds cache configuration.
type Config struct {
	// TTL is how long entries stay valid. Defaults to DefaultTTL.
	TTL time.Duration

	// Redis enables the shared second layer when non-nil.
	Redis *redis.Client

	// MaxEntries bounds the in-memory layer. Defaults to 4096.
	// When full, new entries still go to Redis but skip memory.
	MaxEntries int
}

// Entry is one cached response.
type Entry struct {
	StatusCode int         `json:"status_code"`
	Header     http.Header `json:"header"`
	Body       []byte      `json:"body"`
	Expires    time.Time   `json:"expires"`
}

// IsExpired reports whether the entry is past its TTL.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the remaining lifetime, 0 if expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Response synthesizes an *http.Response from the entry. The body is
// freshly readable on every call.
func (e *Entry) Response() *http.Response {
	return &http.Response{
		StatusCode:    e.StatusCode,
		Status:        http.StatusText(e.StatusCode),
		Header:        e.Header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
	}
}

// ResponseToEntry reads resp's body into an Entry valid for ttl and
// restores the body so the caller can still consume it.
func ResponseToEntry(resp *http.Response, ttl time.Duration) (*Entry, error) {
	if resp == nil {
		return nil, fmt.Errorf("response cannot be nil")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))

	return &Entry{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
		Expires:    time.Now().Add(ttl),
	}, nil
}

// Key builds the deterministic cache key for a request.
// Format: volley:METHOD:url
func Key(method, url string) string {
	return "volley:" + method + ":" + url
}

// Manager is the two-layer cache. Safe for concurrent use.
type Manager struct {
	cfg    Config
	redis  *redis.Client
	logger zerolog.Logger

	mu  sync.RWMutex
	mem map[string]*Entry
}

// New creates a cache manager. A zero Config yields a memory-only cache
// with DefaultTTL.
func New(cfg Config) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 4096
	}
	return &Manager{
		cfg:    cfg,
		redis:  cfg.Redis,
		logger: logging.NewLogger("cache"),
		mem:    make(map[string]*Entry),
	}
}

// TTL returns the configured entry lifetime.
func (m *Manager) TTL() time.Duration {
	return m.cfg.TTL
}

// Get returns the entry for key or ErrCacheMiss. The memory layer is
// consulted first; a Redis hit is promoted into memory.
func (m *Manager) Get(ctx context.Context, key string) (*Entry, error) {
	m.mu.RLock()
	entry, ok := m.mem[key]
	m.mu.RUnlock()

	if ok {
		if entry.IsExpired() {
			m.mu.Lock()
			delete(m.mem, key)
			m.mu.Unlock()
		} else {
			cacheHits.WithLabelValues("memory").Inc()
			return entry, nil
		}
	}

	if m.redis == nil {
		cacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	data, err := m.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			cacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		cacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		cacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if e.IsExpired() {
		cacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	cacheHits.WithLabelValues("redis").Inc()
	m.storeMemory(key, &e)
	return &e, nil
}

// Set stores an entry in both layers. An expired entry is dropped
// silently. Redis failures degrade to memory-only with a warning; they
// never fail the request that produced the entry.
func (m *Manager) Set(ctx context.Context, key string, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}
	ttl := entry.TTL()
	if ttl <= 0 {
		return nil
	}

	m.storeMemory(key, entry)

	if m.redis == nil {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	if err := m.redis.Set(ctx, key, data, ttl).Err(); err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		m.logger.Warn().Err(err).Str("key", key).Msg("Redis cache set failed")
	}
	return nil
}

// Delete removes an entry from both layers.
func (m *Manager) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.mem, key)
	m.mu.Unlock()

	if m.redis == nil {
		return nil
	}
	if err := m.redis.Del(ctx, key).Err(); err != nil {
		cacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (m *Manager) storeMemory(key string, entry *Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.mem) >= m.cfg.MaxEntries {
		// Reclaim expired entries before giving up on the memory layer.
		for k, e := range m.mem {
			if e.IsExpired() {
				delete(m.mem, k)
			}
		}
		if len(m.mem) >= m.cfg.MaxEntries {
			return
		}
	}
	m.mem[key] = entry
}
