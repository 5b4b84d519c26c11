package cache

import (
	"context"
	"os"
	"testing"
	"time"
)

// Runs against a real server when TEXT2BLOCK_TEST_REDIS holds its address.
func TestRedisCache(t *testing.T) {
	addr := os.Getenv("TEXT2BLOCK_TEST_REDIS")
	if addr == "" {
		t.Skip("TEXT2BLOCK_TEST_REDIS not set")
	}
	ctx := context.Background()
	c, err := NewRedisCache(ctx, RedisConfig{Addr: addr, Prefix: "text2block-test:" + t.Name() + ":"})
	if err != nil {
		t.Fatalf("NewRedisCache: %v", err)
	}
	defer c.Close()

	if _, hit, err := c.Get(ctx, "k"); err != nil || hit {
		t.Fatalf("Get on empty = (%v, %v)", hit, err)
	}
	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	data, hit, err := c.Get(ctx, "k")
	if err != nil || !hit || string(data) != "v" {
		t.Fatalf("Get = (%q, %v, %v)", data, hit, err)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	for _, k := range []string{"a", "b"} {
		if err := c.Set(ctx, k, []byte("v"), time.Minute); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	if n, err := c.Clear(ctx); err != nil || n != 2 {
		t.Errorf("Clear = (%d, %v), want 2", n, err)
	}
}

func TestNewRedisCacheRequiresAddr(t *testing.T) {
	if _, err := NewRedisCache(context.Background(), RedisConfig{}); err == nil {
		t.Error("empty address should fail")
	}
}
