package news

import (
	"context"
	"strings"
	"sync"
	"time"

	"llm-fx-advisor/internal/interfaces"
	"llm-fx-advisor/internal/logger"
)

// MaxHeadlines bounds what a prompt can carry.
const MaxHeadlines = 5

type scraper interface {
	Scrape(ctx context.Context, symbol string, limit int) []string
}

// ServiceConfig configures the headline service
type ServiceConfig struct {
	Enabled       bool
	MaxHeadlines  int
	CacheDuration time.Duration
}

// Service serves headlines per symbol from a TTL cache, scraping on a miss.
type Service struct {
	scraper scraper
	cfg     ServiceConfig
	cache   *headlineCache
}

var _ interfaces.HeadlineProvider = (*Service)(nil)

func NewService(s scraper, cfg ServiceConfig) *Service {
	if cfg.MaxHeadlines <= 0 || cfg.MaxHeadlines > MaxHeadlines {
		cfg.MaxHeadlines = MaxHeadlines
	}
	if cfg.CacheDuration <= 0 {
		cfg.CacheDuration = 15 * time.Minute
	}
	return &Service{scraper: s, cfg: cfg, cache: newHeadlineCache(cfg.CacheDuration)}
}

// Headlines never fails: disabled, empty or failing scrapes yield no headlines.
func (s *Service) Headlines(ctx context.Context, symbol string, limit int) []string {
	if !s.cfg.Enabled {
		return nil
	}
	if limit <= 0 || limit > s.cfg.MaxHeadlines {
		limit = s.cfg.MaxHeadlines
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	if cached, ok := s.cache.get(symbol); ok {
		logger.Debug(ctx, "Using cached headlines", "symbol", symbol, "count", len(cached))
		return head(cached, limit)
	}

	fresh := s.scraper.Scrape(ctx, symbol, s.cfg.MaxHeadlines)
	// failures are not cached so the next refresh retries
	if len(fresh) > 0 {
		s.cache.set(symbol, fresh)
	}
	return head(fresh, limit)
}

// ClearCache drops all cached headlines
func (s *Service) ClearCache() {
	s.cache.clear()
}

func head(h []string, n int) []string {
	if len(h) > n {
		h = h[:n]
	}
	return append([]string(nil), h...)
}

type headlineCache struct {
	mu   sync.RWMutex
	data map[string]cacheEntry
	ttl  time.Duration
	now  func() time.Time
}

type cacheEntry struct {
	headlines []string
	timestamp time.Time
}

func newHeadlineCache(ttl time.Duration) *headlineCache {
	return &headlineCache{data: make(map[string]cacheEntry), ttl: ttl, now: time.Now}
}

func (c *headlineCache) get(symbol string) ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.data[symbol]
	if !ok || c.now().Sub(entry.timestamp) > c.ttl {
		return nil, false
	}
	return entry.headlines, true
}

func (c *headlineCache) set(symbol string, headlines []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, e := range c.data {
		if now.Sub(e.timestamp) > c.ttl {
			delete(c.data, k)
		}
	}
	c.data[symbol] = cacheEntry{headlines: headlines, timestamp: now}
}

func (c *headlineCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]cacheEntry)
}
