package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestRedisStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Redis integration test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	t.Cleanup(func() { container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("endpoint: %v", err)
	}
	client, err := NewRedisClient(ctx, "redis://"+endpoint+"/0")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	store := NewRedisStore(client, "test", 2)
	for i, want := range []bool{true, true, false} {
		ok, reset, err := store.Allow(ctx, "ip")
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if ok != want {
			t.Fatalf("request %d allowed = %v, want %v", i+1, ok, want)
		}
		if reset <= 0 || reset > time.Minute {
			t.Errorf("reset = %v", reset)
		}
	}
}
