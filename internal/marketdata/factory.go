package marketdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"llm-fx-advisor/internal/interfaces"
)

// Params select and configure a provider.
type Params struct {
	Provider string
	TTL      time.Duration
	Redis    RedisParams
	Yahoo    YahooParams
	Kite     KiteParams
}

type RedisParams struct {
	Addr     string
	Password string
	DB       int
}

// New builds the configured provider, wrapped in a TTL cache when TTL > 0.
func New(ctx context.Context, p Params) (interfaces.MarketDataSource, error) {
	var src interfaces.MarketDataSource
	switch strings.ToLower(p.Provider) {
	case "", "yahoo":
		src = NewYahoo(p.Yahoo)
	case "kite", "zerodha":
		k, err := NewKite(p.Kite)
		if err != nil {
			return nil, err
		}
		src = k
	case "static":
		src = NewStatic()
	default:
		return nil, fmt.Errorf("unknown market data provider %q", p.Provider)
	}

	if p.TTL <= 0 {
		return src, nil
	}

	var rdb *redis.Client
	if p.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     p.Redis.Addr,
			Password: p.Redis.Password,
			DB:       p.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis ping %s: %w", p.Redis.Addr, err)
		}
	}
	return NewCached(src, p.TTL, rdb, ""), nil
}
