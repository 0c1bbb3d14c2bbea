package cache

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
)

func TestTTLCacheExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newTTLCache[string, int](func() time.Time { return now }, 10)

	c.Set("a", 1, time.Minute)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected hit, got %v %v", v, ok)
	}

	now = now.Add(time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected entry to expire")
	}

	c.Set("b", 2, 0)
	if _, ok := c.Get("b"); ok {
		t.Fatal("zero ttl must not be stored")
	}
}

func TestTTLCacheBounded(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newTTLCache[int, int](func() time.Time { return now }, 2)

	c.Set(1, 1, time.Second)
	c.Set(2, 2, time.Hour)
	now = now.Add(2 * time.Second)
	c.Set(3, 3, time.Hour)

	if _, ok := c.Get(1); ok {
		t.Fatal("expired entry should have been swept")
	}
	if _, ok := c.Get(2); !ok {
		t.Fatal("live entry should survive the sweep")
	}
	if _, ok := c.Get(3); !ok {
		t.Fatal("new entry should be admitted")
	}
}

func TestClientResolverCache(t *testing.T) {
	c := NewClientResolverCache()
	c.SetClientID(" kfdb_client_abc ", snowflake.ID(42))
	c.SetClientID("kfdb_client_zero", 0)

	if id, ok := c.GetClientID("kfdb_client_abc"); !ok || id != 42 {
		t.Fatalf("expected 42, got %v %v", id, ok)
	}
	if _, ok := c.GetClientID("kfdb_client_zero"); ok {
		t.Fatal("zero ids must not be cached")
	}
}
