package dispatch

import (
	"context"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/use-agent/crawl4go/model"
)

// FetchOneFunc performs one URL's full arun flow (cache, fetch, content
// pipeline) and is supplied by the crawler package; Dispatcher itself knows
// nothing about fetching or content processing.
type FetchOneFunc func(ctx context.Context, rawURL string, cfg *model.RunConfig) (*model.CrawlResult, error)

// Dispatcher runs arun_many per §4.4: config routing, a semaphore-capped
// worker pool, per-host rate limiting, memory-adaptive admission,
// robots.txt compliance, and proxy rotation, with optional streaming.
// Any of RateLimiter, Memory, Proxies, Robots may be nil to disable that
// concern.
type Dispatcher struct {
	Router      *Router
	RateLimiter *RateLimiter
	Memory      *MemoryMonitor
	Proxies     *ProxyPool
	Robots      *RobotsChecker

	// MemoryPollInterval controls how often Memory.Allow() is re-checked
	// while a task waits for admission. Defaults to 200ms if zero.
	MemoryPollInterval time.Duration
}

// RunMany runs fetch over every url in urls, capped at baseCfg.SemaphoreCount
// concurrent tasks, and returns once all have completed. Order of the
// returned slice matches urls.
func (d *Dispatcher) RunMany(ctx context.Context, urls []string, baseCfg *model.RunConfig, fetch FetchOneFunc) ([]*model.CrawlResult, error) {
	results := make([]*model.CrawlResult, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(semaphoreLimit(baseCfg))

	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			results[i] = d.runTask(gctx, u, baseCfg, fetch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// RunManyStream is RunMany's streaming form: results arrive on the returned
// channel as each task completes rather than all at once, per
// RunConfig.Stream. The channel is closed once every task has completed or
// ctx is cancelled.
func (d *Dispatcher) RunManyStream(ctx context.Context, urls []string, baseCfg *model.RunConfig, fetch FetchOneFunc) <-chan *model.CrawlResult {
	out := make(chan *model.CrawlResult)
	go func() {
		defer close(out)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(semaphoreLimit(baseCfg))

		for _, u := range urls {
			u := u
			g.Go(func() error {
				result := d.runTask(gctx, u, baseCfg, fetch)
				select {
				case out <- result:
				case <-ctx.Done():
				}
				return nil
			})
		}
		_ = g.Wait()
	}()
	return out
}

func semaphoreLimit(cfg *model.RunConfig) int {
	if cfg == nil || cfg.SemaphoreCount <= 0 {
		return 5
	}
	return cfg.SemaphoreCount
}

// runTask resolves url's effective config, applies compliance/throttling
// gates, and invokes fetch, attaching DispatchResult accounting to whatever
// it returns.
func (d *Dispatcher) runTask(ctx context.Context, rawURL string, baseCfg *model.RunConfig, fetch FetchOneFunc) *model.CrawlResult {
	start := time.Now()

	cfg := baseCfg
	if d.Router != nil {
		resolved, err := d.Router.Resolve(rawURL)
		if err != nil {
			return d.finish(model.Fail(rawURL, err), start)
		}
		cfg = resolved
	}

	if cfg.CheckRobotsTxt && d.Robots != nil {
		allowed, err := d.Robots.Allowed(ctx, rawURL)
		if err != nil {
			return d.finish(model.Fail(rawURL, err), start)
		}
		if !allowed {
			err := model.NewCrawlError(model.KindRobotsDisallowed, "robots.txt disallows "+rawURL, nil)
			return d.finish(model.Fail(rawURL, err), start)
		}
	}

	if d.RateLimiter != nil {
		host := hostOf(rawURL)
		if err := d.RateLimiter.Wait(ctx, host); err != nil {
			return d.finish(model.Fail(rawURL, err), start)
		}
	}

	if d.Memory != nil {
		if err := d.waitForMemory(ctx); err != nil {
			return d.finish(model.Fail(rawURL, err), start)
		}
	}

	if d.Proxies != nil {
		if proxy, ok := d.Proxies.Next(); ok {
			cfg = cfg.Clone(func(c *model.RunConfig) { c.ProxyConfig = proxy })
		}
	}

	result, err := fetch(ctx, rawURL, cfg)
	if err != nil {
		if d.Proxies != nil && cfg.ProxyConfig != nil {
			d.Proxies.ReportFailure(*cfg.ProxyConfig)
		}
		result = model.Fail(rawURL, err)
	}
	if result.StatusCode == http429 && d.RateLimiter != nil {
		d.RateLimiter.BackOff(hostOf(rawURL), 30*time.Second)
	}
	return d.finish(result, start)
}

const http429 = 429

func (d *Dispatcher) waitForMemory(ctx context.Context) error {
	interval := d.MemoryPollInterval
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	for !d.Memory.Allow() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return nil
}

func (d *Dispatcher) finish(result *model.CrawlResult, start time.Time) *model.CrawlResult {
	dr := &model.DispatchResult{
		TaskID:    uuid.NewString(),
		StartTime: start,
		EndTime:   time.Now(),
	}
	if d.Memory != nil {
		dr.MemoryUsageMB = d.Memory.CurrentMB()
		dr.PeakMemoryMB = dr.MemoryUsageMB
	}
	if !result.Success {
		dr.ErrorMessage = result.ErrorMessage
	}
	result.DispatchResult = dr
	return result
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Host
}
