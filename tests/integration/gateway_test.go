//go:build integration

package integration

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/card-gateway/internal/testutil"
	"github.com/Sternrassler/card-gateway/pkg/cache"
	"github.com/Sternrassler/card-gateway/pkg/gateway"
	"github.com/Sternrassler/card-gateway/pkg/generation"
	"github.com/Sternrassler/card-gateway/pkg/lookup"
	"github.com/Sternrassler/card-gateway/pkg/render"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

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

// newGateway wires every component against Redis and the mock upstream.
func newGateway(t *testing.T, redisClient *redis.Client, upstream string, ttl time.Duration) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zerolog.Nop()

	store := cache.NewRedisStore(redisClient, 1<<20)
	coord, err := generation.New(store, generation.Config{TTL: ttl, RenderTimeout: 5 * time.Second}, logger)
	if err != nil {
		t.Fatalf("generation.New failed: %v", err)
	}

	httpRenderer, err := render.NewHTTPRenderer(render.HTTPConfig{BaseURL: upstream, Timeout: 5 * time.Second}, logger)
	if err != nil {
		t.Fatalf("NewHTTPRenderer failed: %v", err)
	}
	t.Cleanup(func() { httpRenderer.Close() })

	svc, err := render.NewService(httpRenderer, logger)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	searchClient, err := lookup.NewXIVAPIClient(lookup.ClientConfig{BaseURL: upstream, Timeout: 5 * time.Second}, logger)
	if err != nil {
		t.Fatalf("NewXIVAPIClient failed: %v", err)
	}
	t.Cleanup(func() { searchClient.Close() })

	resolver, err := lookup.NewResolver(searchClient, lookup.DefaultRetries, logger)
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}

	h, err := gateway.NewHandler(coord, resolver, svc, logger,
		gateway.Check{Name: "renderer", Run: svc.EnsureInit},
		gateway.Check{Name: "store", Run: store.Ping},
	)
	if err != nil {
		t.Fatalf("NewHandler failed: %v", err)
	}

	server := httptest.NewServer(gateway.NewRouter(h, gateway.RouterOptions{Logger: logger}))
	t.Cleanup(server.Close)
	return server
}

func get(t *testing.T, url string) (int, []byte) {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, body
}

// TestFullRequestFlow tests name resolution, rendering, caching and serving.
func TestFullRequestFlow(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockUpstream()
	defer mock.Close()
	// The search index lags once before finding the character.
	mock.SetSearchResults(
		[]testutil.SearchResult{},
		[]testutil.SearchResult{{ID: 12345, Name: "Noname", Server: "Gilgamesh"}},
	)

	server := newGateway(t, redisClient, mock.URL(), time.Hour)

	t.Log("Request 1: name -> id -> image, cache miss")
	status, body := get(t, server.URL+"/characters/equipments/name/Gilgamesh/Noname.png")
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", status, body)
	}
	if !bytes.Equal(body, testutil.CardBytes("/cards/equipment/12345.png")) {
		t.Errorf("body = %q", body)
	}
	if mock.GetSearchCount() != 2 {
		t.Errorf("search calls = %d, want 2", mock.GetSearchCount())
	}

	t.Log("Request 2: id image, cache hit")
	status, _ = get(t, server.URL+"/characters/equipments/id/12345.png")
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if mock.GetRenderCount() != 1 {
		t.Errorf("render calls = %d, want 1", mock.GetRenderCount())
	}

	exists, err := redisClient.Exists(context.Background(), "cardgate:img:eq:12345").Result()
	if err != nil || exists != 1 {
		t.Errorf("card not stored in redis: exists=%d err=%v", exists, err)
	}

	status, _ = get(t, server.URL+"/readyz")
	if status != http.StatusOK {
		t.Errorf("readyz = %d, want 200", status)
	}
}

// TestConcurrentRequestsRenderOnce checks that a burst for one card renders it once.
func TestConcurrentRequestsRenderOnce(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetRenderDelay(200 * time.Millisecond)

	server := newGateway(t, redisClient, mock.URL(), time.Hour)

	const n = 32
	var wg sync.WaitGroup
	statuses := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			statuses[i], _ = get(t, server.URL+"/prepare/id/42")
		}(i)
	}
	wg.Wait()

	for i, status := range statuses {
		if status != http.StatusOK {
			t.Errorf("request %d status = %d", i, status)
		}
	}
	if mock.GetRenderCount() != 1 {
		t.Errorf("render calls = %d for %d requests, want 1", mock.GetRenderCount(), n)
	}
}

// TestExpiredCardIsRegenerated checks that nothing is served past its TTL.
func TestExpiredCardIsRegenerated(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockUpstream()
	defer mock.Close()

	server := newGateway(t, redisClient, mock.URL(), time.Second)

	if status, _ := get(t, server.URL+"/characters/id/7.png"); status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	time.Sleep(1500 * time.Millisecond)
	if status, _ := get(t, server.URL+"/characters/id/7.png"); status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}

	if mock.GetRenderCount() != 2 {
		t.Errorf("render calls = %d, want 2", mock.GetRenderCount())
	}
}

// TestRenderFailureIsNotCached checks that a failed render is retried on the next request.
func TestRenderFailureIsNotCached(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetRenderStatus(http.StatusInternalServerError)

	server := newGateway(t, redisClient, mock.URL(), time.Hour)

	if status, _ := get(t, server.URL+"/prepare/id/9"); status != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", status)
	}

	mock.SetRenderStatus(http.StatusOK)
	if status, _ := get(t, server.URL+"/prepare/id/9"); status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if mock.GetRenderCount() != 2 {
		t.Errorf("render calls = %d, want 2", mock.GetRenderCount())
	}
}
