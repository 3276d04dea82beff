package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"llm-fx-advisor/internal/interfaces"
	"llm-fx-advisor/internal/logger"
	"llm-fx-advisor/internal/types"
)

// Cached memoizes Fetch for ttl. The in-memory tier is always on; a Redis tier is
// consulted on a memory miss when configured, so several hosts can share one fetch.
type Cached struct {
	inner  interfaces.MarketDataSource
	ttl    time.Duration
	rdb    *redis.Client
	prefix string
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	series  types.BarSeries
	expires time.Time
}

var _ interfaces.MarketDataSource = (*Cached)(nil)

// NewCached wraps inner. rdb may be nil.
func NewCached(inner interfaces.MarketDataSource, ttl time.Duration, rdb *redis.Client, prefix string) *Cached {
	if prefix == "" {
		prefix = "fxadvisor:bars"
	}
	return &Cached{
		inner:   inner,
		ttl:     ttl,
		rdb:     rdb,
		prefix:  prefix,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

func (c *Cached) Name() string { return c.inner.Name() }

func (c *Cached) key(symbol string, tf types.Timeframe, period types.Period) string {
	return fmt.Sprintf("%s:%s:%s:%s:%s", c.prefix, c.inner.Name(), symbol, tf, period)
}

func (c *Cached) Fetch(ctx context.Context, symbol string, tf types.Timeframe, period types.Period) (types.BarSeries, error) {
	if c.ttl <= 0 {
		return c.inner.Fetch(ctx, symbol, tf, period)
	}
	key := c.key(symbol, tf, period)

	if s, ok := c.getMemory(key); ok {
		logger.Debug(ctx, "Bar cache hit", "key", key, "tier", "memory")
		return s, nil
	}
	if s, ok := c.getRedis(ctx, key); ok {
		logger.Debug(ctx, "Bar cache hit", "key", key, "tier", "redis")
		c.setMemory(key, s)
		return s, nil
	}

	s, err := c.inner.Fetch(ctx, symbol, tf, period)
	if err != nil {
		return types.BarSeries{}, err
	}
	c.setMemory(key, s)
	c.setRedis(ctx, key, s)
	return s, nil
}

func (c *Cached) getMemory(key string) (types.BarSeries, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expires) {
		return types.BarSeries{}, false
	}
	return copySeries(e.series), true
}

func (c *Cached) setMemory(key string, s types.BarSeries) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{series: copySeries(s), expires: c.now().Add(c.ttl)}
	for k, e := range c.entries {
		if !c.now().Before(e.expires) {
			delete(c.entries, k)
		}
	}
}

func (c *Cached) getRedis(ctx context.Context, key string) (types.BarSeries, bool) {
	if c.rdb == nil {
		return types.BarSeries{}, false
	}
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn(ctx, "Redis bar cache read failed", "key", key, "error", err)
		}
		return types.BarSeries{}, false
	}
	var s types.BarSeries
	if err := json.Unmarshal(data, &s); err != nil || len(s.Bars) == 0 {
		return types.BarSeries{}, false
	}
	return s, true
}

func (c *Cached) setRedis(ctx context.Context, key string, s types.BarSeries) {
	if c.rdb == nil {
		return
	}
	data, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		logger.Warn(ctx, "Redis bar cache write failed", "key", key, "error", err)
	}
}

func copySeries(s types.BarSeries) types.BarSeries {
	out := s
	out.Bars = make([]types.Bar, len(s.Bars))
	copy(out.Bars, s.Bars)
	return out
}
