package cache

import (
	"context"
	"time"

	"github.com/matzehuels/text2block/pkg/observability"
)

// Instrument wraps c so every Get reports a hit or miss and every Set reports
// its size to hooks, labelled with keyType.
func Instrument(c Cache, hooks observability.CacheHooks, keyType string) Cache {
	if hooks == nil {
		return c
	}
	return &instrumented{Cache: c, hooks: hooks, keyType: keyType}
}

type instrumented struct {
	Cache
	hooks   observability.CacheHooks
	keyType string
}

func (c *instrumented) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, hit, err := c.Cache.Get(ctx, key)
	if err == nil {
		if hit {
			c.hooks.OnCacheHit(ctx, c.keyType)
		} else {
			c.hooks.OnCacheMiss(ctx, c.keyType)
		}
	}
	return data, hit, err
}

func (c *instrumented) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	err := c.Cache.Set(ctx, key, data, ttl)
	if err == nil {
		c.hooks.OnCacheSet(ctx, c.keyType, len(data))
	}
	return err
}
