package provider

import (
	"context"
	"sync"
	"time"

	"wavescope/pkg/model"
)

// CachingProvider wraps a strategy with an in-memory TTL cache keyed by
// symbol and day range. Several chart sessions on the same symbol plus the
// periodic watchlist refresh would otherwise repeat identical upstream calls.
type CachingProvider struct {
	inner Provider
	ttl   time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	candles []model.Candle
	stored  time.Time
}

// maxCacheEntries bounds memory; the whole cache is dropped when exceeded,
// which is cheap and good enough for a handful of tracked symbols.
const maxCacheEntries = 256

// NewCachingProvider creates a caching wrapper around a strategy or chain.
func NewCachingProvider(inner Provider, ttl time.Duration) *CachingProvider {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachingProvider{
		inner: inner,
		ttl:   ttl,
		cache: make(map[string]cacheEntry),
	}
}

func (p *CachingProvider) Name() string { return p.inner.Name() }

func (p *CachingProvider) IsAvailable() bool { return p.inner.IsAvailable() }

func (p *CachingProvider) RateLimit() int { return p.inner.RateLimit() }

// FetchDaily serves a fresh cached batch when the exact range was fetched
// recently, otherwise delegates. Failures are never cached; clean empties
// are, so an exhausted history edge does not hammer the upstream.
func (p *CachingProvider) FetchDaily(ctx context.Context, symbol string, from, to time.Time) ([]model.Candle, error) {
	key := symbol + "|" + from.UTC().Format("2006-01-02") + "|" + to.UTC().Format("2006-01-02")

	p.mu.Lock()
	if e, ok := p.cache[key]; ok && time.Since(e.stored) < p.ttl {
		p.mu.Unlock()
		out := make([]model.Candle, len(e.candles))
		copy(out, e.candles)
		return out, nil
	}
	p.mu.Unlock()

	candles, err := p.inner.FetchDaily(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if len(p.cache) >= maxCacheEntries {
		p.cache = make(map[string]cacheEntry)
	}
	stored := make([]model.Candle, len(candles))
	copy(stored, candles)
	p.cache[key] = cacheEntry{candles: stored, stored: time.Now()}
	p.mu.Unlock()

	return candles, nil
}
