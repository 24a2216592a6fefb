package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/volleyhttp/volley/internal/testutil"
	"github.com/volleyhttp/volley/pkg/cache"
	"github.com/volleyhttp/volley/pkg/volley"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

// TestBatchWithRedisCache runs two identical batches through a
// Redis-backed cache and verifies the second batch never reaches the
// server.
func TestBatchWithRedisCache(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	server := testutil.NewMockServer()
	defer server.Close()

	urls := make([]string, 4)
	for i := range urls {
		path := fmt.Sprintf("/items/%d", i)
		server.SetJSONResponse(path, map[string]any{"item": float64(i)})
		urls[i] = path
	}

	cfg := volley.DefaultConfig()
	cfg.BaseURL = server.URL()
	cfg.Progress = false
	cfg.Cache = cache.New(cache.Config{
		TTL:   time.Minute,
		Redis: redisClient,
	})

	ctx := context.Background()

	results, err := volley.Up(ctx, urls, cfg)
	if err != nil {
		t.Fatalf("First batch failed: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("First batch results = %d, want 4", len(results))
	}
	if server.RequestCount() != 4 {
		t.Errorf("After first batch: server requests = %d, want 4", server.RequestCount())
	}

	// Let the Redis writes land before re-running.
	time.Sleep(100 * time.Millisecond)

	results2, err := volley.Up(ctx, urls, cfg)
	if err != nil {
		t.Fatalf("Second batch failed: %v", err)
	}
	if len(results2) != 4 {
		t.Fatalf("Second batch results = %d, want 4", len(results2))
	}
	if server.RequestCount() != 4 {
		t.Errorf("After second batch: server requests = %d, want 4 (cache hits)", server.RequestCount())
	}

	for i, r := range results2 {
		body, ok := r.(map[string]any)
		if !ok {
			t.Fatalf("results2[%d] = %T, want map[string]any", i, r)
		}
		if body["item"] != float64(i) {
			t.Errorf("results2[%d] = %v, want item=%d", i, body, i)
		}
	}
}

// TestRedisCacheSurvivesProcessBoundary verifies that a fresh cache
// manager sharing the same Redis still serves entries written by the
// first one, as a second process would.
func TestRedisCacheSurvivesProcessBoundary(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	server := testutil.NewMockServer()
	defer server.Close()
	server.SetJSONResponse("/shared", map[string]any{"shared": true})

	ctx := context.Background()

	cfg := volley.DefaultConfig()
	cfg.BaseURL = server.URL()
	cfg.Progress = false
	cfg.Cache = cache.New(cache.Config{TTL: time.Minute, Redis: redisClient})

	if _, err := volley.Up(ctx, []string{"/shared"}, cfg); err != nil {
		t.Fatalf("Seeding batch failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	// Fresh manager, empty memory layer, same Redis.
	cfg.Cache = cache.New(cache.Config{TTL: time.Minute, Redis: redisClient})

	results, err := volley.Up(ctx, []string{"/shared"}, cfg)
	if err != nil {
		t.Fatalf("Second batch failed: %v", err)
	}
	body, ok := results[0].(map[string]any)
	if !ok || body["shared"] != true {
		t.Errorf("results[0] = %v, want cached body", results[0])
	}
	if n := server.PathCount("/shared"); n != 1 {
		t.Errorf("server requests = %d, want 1 (served from Redis)", n)
	}
}

// TestExpiredRedisEntriesRefetch verifies that a short TTL forces a
// refetch once the entry expires.
func TestExpiredRedisEntriesRefetch(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	server := testutil.NewMockServer()
	defer server.Close()

	cfg := volley.DefaultConfig()
	cfg.BaseURL = server.URL()
	cfg.Progress = false
	cfg.Cache = cache.New(cache.Config{TTL: time.Second, Redis: redisClient})

	ctx := context.Background()

	if _, err := volley.Up(ctx, []string{"/ttl"}, cfg); err != nil {
		t.Fatalf("First batch failed: %v", err)
	}

	time.Sleep(2 * time.Second)

	if _, err := volley.Up(ctx, []string{"/ttl"}, cfg); err != nil {
		t.Fatalf("Second batch failed: %v", err)
	}
	if n := server.PathCount("/ttl"); n != 2 {
		t.Errorf("server requests = %d, want 2 (entry expired)", n)
	}
}
