// Package crawler wires the fetch orchestrator, content pipeline, result
// cache, and concurrency dispatcher into the two operations spec.md §1
// names: a single-URL arun and a many-URL arun_many.
package crawler

import (
	"context"

	"github.com/use-agent/crawl4go/cache"
	"github.com/use-agent/crawl4go/content"
	"github.com/use-agent/crawl4go/dispatch"
	"github.com/use-agent/crawl4go/fetch"
	"github.com/use-agent/crawl4go/model"
	"github.com/use-agent/crawl4go/urlhandle"
)

// Crawler composes the four building blocks into the library's public
// surface. Cache and Dispatcher may be nil: a nil Cache skips §4.5 entirely
// (every call executes live), a nil Dispatcher means RunMany/RunManyStream
// are unavailable and only Run should be called.
type Crawler struct {
	Fetch         *fetch.Orchestrator
	Pipeline      *content.Pipeline
	Cache         *cache.Cache
	Dispatcher    *dispatch.Dispatcher
	BrowserConfig *model.BrowserConfig
}

// New builds a Crawler from its four collaborators. bcfg is the
// browser-session configuration passed through to every browser fetch; it
// may be nil when only HTTP-eligible configs are ever run.
func New(orchestrator *fetch.Orchestrator, pipeline *content.Pipeline, resultCache *cache.Cache, dispatcher *dispatch.Dispatcher, bcfg *model.BrowserConfig) *Crawler {
	return &Crawler{
		Fetch:         orchestrator,
		Pipeline:      pipeline,
		Cache:         resultCache,
		Dispatcher:    dispatcher,
		BrowserConfig: bcfg,
	}
}

// Run is arun: fetch + content pipeline for a single URL, transparently
// cached per cfg.CacheMode when c.Cache is set. A nil cfg runs with
// model.Defaults(). Run's signature matches both dispatch.FetchOneFunc and
// deepcrawl.CrawlFunc, so it can be handed directly to either as the
// fetch/crawl callback without an adapter.
func (c *Crawler) Run(ctx context.Context, rawURL string, cfg *model.RunConfig) (*model.CrawlResult, error) {
	if cfg == nil {
		defaults := model.Defaults()
		cfg = &defaults
	}

	if c.Cache == nil {
		return c.execute(ctx, rawURL, cfg)
	}
	return c.Cache.Fetch(ctx, rawURL, cfg, func(ctx context.Context) (*model.CrawlResult, error) {
		return c.execute(ctx, rawURL, cfg)
	})
}

// RunMany is arun_many: Run fanned out over urls through the dispatcher's
// semaphore-capped worker pool, honoring per-URL config routing, robots.txt,
// rate limiting, memory admission, and proxy rotation. Requires a
// Dispatcher.
func (c *Crawler) RunMany(ctx context.Context, urls []string, baseCfg *model.RunConfig) ([]*model.CrawlResult, error) {
	if baseCfg == nil {
		defaults := model.Defaults()
		baseCfg = &defaults
	}
	return c.Dispatcher.RunMany(ctx, urls, baseCfg, c.Run)
}

// RunManyStream is RunMany's streaming form, per RunConfig.Stream.
func (c *Crawler) RunManyStream(ctx context.Context, urls []string, baseCfg *model.RunConfig) <-chan *model.CrawlResult {
	if baseCfg == nil {
		defaults := model.Defaults()
		baseCfg = &defaults
	}
	return c.Dispatcher.RunManyStream(ctx, urls, baseCfg, c.Run)
}

// execute performs one live fetch + content pipeline pass, bypassing the
// cache. Fetch failures (network errors, robots-blocked, http >=400) are
// returned as plain errors rather than a Fail result, matching
// cache.FetchFunc/dispatch.FetchOneFunc's convention that the caller builds
// the Fail record.
func (c *Crawler) execute(ctx context.Context, rawURL string, cfg *model.RunConfig) (*model.CrawlResult, error) {
	fr, err := c.Fetch.Fetch(ctx, rawURL, cfg, c.BrowserConfig)
	if err != nil {
		return nil, err
	}

	finalURL := fr.FinalURL
	if finalURL == "" {
		finalURL = rawURL
	}

	result := &model.CrawlResult{
		URL:             rawURL,
		Success:         true,
		StatusCode:      fr.StatusCode,
		SessionID:       cfg.SessionID,
		ResponseHeaders: fr.ResponseHeaders,
		SSLCertificate:  fr.SSLCertificate,
		HTML:            fr.HTML,
		Screenshot:      fr.Screenshot,
		PDF:             fr.PDF,
		MHTML:           fr.MHTML,
		NetworkRequests: fr.NetworkRequests,
		ConsoleMessages: fr.ConsoleMessages,
	}
	if finalURL != rawURL {
		result.RedirectedURL = finalURL
	}

	// raw:<html> never resolves to a real URL of its own; §3/§6 name
	// cfg.BaseURL as the resolution base the content pipeline's link/media
	// extraction, markdown generation, and metadata must use instead.
	pipelineURL := finalURL
	if handle, herr := urlhandle.Parse(rawURL); herr == nil && handle.Scheme == urlhandle.SchemeRaw && cfg.BaseURL != "" {
		pipelineURL = cfg.BaseURL
	}

	if err := c.Pipeline.Run(ctx, fr.HTML, pipelineURL, cfg, result); err != nil {
		return nil, err
	}
	return result, nil
}
