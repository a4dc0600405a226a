package cache

import (
	"context"
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestCache(size int, ttl time.Duration) (*LRUCache[int64, string], *clock) {
	clk := &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int64, string](size, ttl)
	c.now = clk.now
	return c, clk
}

func TestLRUCache_GetSet(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)
	c.Set(1, "one")
	c.Set(2, "two")

	if v, ok := c.Get(1); !ok || v != "one" {
		t.Fatalf("Get(1) = %q, %v", v, ok)
	}
	// 2 is now least recently used
	c.Set(3, "three")
	if _, ok := c.Get(2); ok {
		t.Fatalf("expected 2 to be evicted")
	}
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
}

func TestLRUCache_Overwrite(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)
	c.Set(1, "one")
	c.Set(1, "uno")
	if v, _ := c.Get(1); v != "uno" {
		t.Fatalf("Get(1) = %q, want uno", v)
	}
	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", c.Len())
	}
}

func TestLRUCache_Expiry(t *testing.T) {
	c, clk := newTestCache(10, time.Minute)
	c.Set(1, "one")
	c.Set(2, "two")

	clk.t = clk.t.Add(2 * time.Minute)
	c.Set(3, "three")

	if _, ok := c.Get(1); ok {
		t.Fatalf("expired entry returned")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("CleanExpired() = %d, want 1", n)
	}
	if _, ok := c.Get(3); !ok {
		t.Fatalf("fresh entry missing")
	}
}

func TestLRUCache_Delete(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	c.Set(1, "one")
	c.Delete(1)
	c.Delete(42)
	if c.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", c.Len())
	}
}

func TestManager(t *testing.T) {
	c, clk := newTestCache(10, time.Minute)
	c.Set(1, "one")
	clk.t = clk.t.Add(time.Hour)

	m := NewManager()
	m.Register(c)
	if n := m.Sweep(); n != 1 {
		t.Fatalf("Sweep() = %d, want 1", n)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, time.Millisecond) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not stop after cancel")
	}
}

func TestLRUCache_SetIfVersion(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)

	v := c.Version(1)
	if !c.SetIfVersion(1, v, "one") {
		t.Fatalf("SetIfVersion with current version refused")
	}

	// a delete between reading the version and storing wins
	v = c.Version(1)
	c.Delete(1)
	if c.SetIfVersion(1, v, "stale") {
		t.Fatalf("SetIfVersion stored a stale value")
	}
	if _, ok := c.Get(1); ok {
		t.Fatalf("stale value visible")
	}

	// so does a delete of an absent key
	v = c.Version(2)
	c.Delete(2)
	if c.SetIfVersion(2, v, "stale") {
		t.Fatalf("SetIfVersion stored a stale value after delete of absent key")
	}
}
