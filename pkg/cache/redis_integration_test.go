//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedisContainer starts a Redis container for integration testing.
func setupRedisContainer(t *testing.T) (*redis.Client, func()) {
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

// Two managers over one Redis share entries, and an invalidation issued by one
// is visible to the other.
func TestIntegration_SharedInvalidation(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	ctx := context.Background()
	a := NewManager(NewRedisStore(redisClient), zerolog.Nop())
	b := NewManager(NewRedisStore(redisClient), zerolog.Nop())

	key := CacheKey{Endpoint: "/todos"}
	entry := &CacheEntry{
		Data:       []byte(`[]`),
		StatusCode: 200,
		Tags:       []string{"Todos"},
		CachedAt:   time.Now(),
		Expires:    time.Now().Add(time.Minute),
	}
	if err := a.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, err := b.Get(ctx, key); err != nil {
		t.Fatalf("second manager missed shared entry: %v", err)
	}

	n, err := b.Invalidate(ctx, "Todos")
	if err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Invalidate removed %d, want 1", n)
	}

	if _, err := a.Get(ctx, key); err != ErrCacheMiss {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

// Members whose entries expired are pruned from the tag index on the next write.
func TestIntegration_TagIndexPrunedOnWrite(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRedisStore(redisClient)

	for key, ttl := range map[string]time.Duration{
		"todo:todos:_page=1": 20 * time.Millisecond,
		"todo:todos:_page=2": 30 * time.Millisecond,
	} {
		entry := &CacheEntry{
			Data:     []byte(`[]`),
			Tags:     []string{"Todos"},
			CachedAt: time.Now(),
			Expires:  time.Now().Add(ttl),
		}
		if err := store.Set(ctx, key, entry); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	time.Sleep(100 * time.Millisecond)

	if err := store.Set(ctx, "todo:todos:live", &CacheEntry{Data: []byte(`[]`), Tags: []string{"Todos"}}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	n, err := redisClient.ZCard(ctx, tagKey("Todos")).Result()
	if err != nil {
		t.Fatalf("ZCard failed: %v", err)
	}
	if n != 1 {
		t.Errorf("tag index size = %d, want 1", n)
	}
}
