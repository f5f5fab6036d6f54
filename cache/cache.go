package cache

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/use-agent/crawl4go/model"
)

// FetchFunc performs the actual fetch + content pipeline for a cache miss.
type FetchFunc func(ctx context.Context) (*model.CrawlResult, error)

// Cache wraps a Store with §4.5's cache-mode semantics and single-flight
// coalescing, so that N concurrent identical arun calls under CacheEnabled
// produce exactly one FetchFunc invocation (invariant 6).
type Cache struct {
	store Store
	ttl   time.Duration
	group singleflight.Group
}

// New builds a Cache over store, entries expiring after ttl (0 = no expiry).
func New(store Store, ttl time.Duration) *Cache {
	return &Cache{store: store, ttl: ttl}
}

// Get looks up url+cfg's cached result, honoring cfg.CacheMode.CacheReads().
// A false mode or a miss both return (nil, false, nil).
func (c *Cache) Get(rawURL string, cfg *model.RunConfig) (*model.CrawlResult, bool, error) {
	if cfg == nil || !cfg.CacheMode.CacheReads() {
		return nil, false, nil
	}
	key := Fingerprint(rawURL, cfg)
	raw, ok, err := c.store.Get(key)
	if err != nil {
		return nil, false, model.NewCrawlError(model.KindCacheError, "cache lookup failed", err)
	}
	if !ok {
		return nil, false, nil
	}
	var result model.CrawlResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, false, model.NewCrawlError(model.KindCacheError, "cache entry corrupted", err)
	}
	return &result, true, nil
}

// Set stores result under url+cfg's fingerprint, honoring
// cfg.CacheMode.CacheWrites(). Failed fetches (result.Success == false) are
// never cached, so a transient error doesn't poison future lookups.
func (c *Cache) Set(rawURL string, cfg *model.RunConfig, result *model.CrawlResult) error {
	if cfg == nil || !cfg.CacheMode.CacheWrites() || result == nil || !result.Success {
		return nil
	}
	key := Fingerprint(rawURL, cfg)
	raw, err := json.Marshal(result)
	if err != nil {
		return model.NewCrawlError(model.KindCacheError, "failed to serialize result for cache", err)
	}
	if err := c.store.Set(key, raw, c.ttl); err != nil {
		return model.NewCrawlError(model.KindCacheError, "cache write failed", err)
	}
	return nil
}

// Fetch is the single entry point arun calls: it performs a cache lookup
// per cfg.CacheMode, and on a miss runs fn exactly once across any
// concurrently-waiting callers sharing the same fingerprint, writing the
// result back per cfg.CacheMode before returning it to every waiter.
func (c *Cache) Fetch(ctx context.Context, rawURL string, cfg *model.RunConfig, fn FetchFunc) (*model.CrawlResult, error) {
	if cached, hit, err := c.Get(rawURL, cfg); err != nil {
		return nil, err
	} else if hit {
		return cached, nil
	}

	key := Fingerprint(rawURL, cfg)
	v, err, _ := c.group.Do(key, func() (any, error) {
		// Re-check the cache inside the single-flight section: a sibling
		// call may have already populated it while this one waited to be
		// scheduled.
		if cached, hit, gerr := c.Get(rawURL, cfg); gerr == nil && hit {
			return cached, nil
		}
		result, ferr := fn(ctx)
		if ferr != nil {
			return nil, ferr
		}
		if serr := c.Set(rawURL, cfg, result); serr != nil {
			return result, serr
		}
		return result, nil
	})
	if v == nil {
		return nil, err
	}
	return v.(*model.CrawlResult), err
}
