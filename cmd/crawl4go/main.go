// Command crawl4go is a minimal demonstration CLI over the crawl4go
// library. It is not the "CLI" spec.md's §1 names as an external
// collaborator (that one ships auth, job queues, and output adapters of its
// own) — this binary exists the way a library's cmd/ example normally does,
// to exercise the wiring end to end.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"

	"github.com/use-agent/crawl4go/cache"
	"github.com/use-agent/crawl4go/config"
	"github.com/use-agent/crawl4go/content"
	"github.com/use-agent/crawl4go/crawler"
	"github.com/use-agent/crawl4go/dispatch"
	"github.com/use-agent/crawl4go/fetch"
	"github.com/use-agent/crawl4go/llmclient"
	"github.com/use-agent/crawl4go/model"
)

func main() {
	var (
		deep     = flag.Bool("deep", false, "run a BFS deep crawl from the given URL instead of a single fetch")
		maxDepth = flag.Int("max-depth", 2, "deep crawl max depth")
		maxPages = flag.Int("max-pages", 50, "deep crawl max pages")
	)
	flag.Parse()
	urls := flag.Args()
	if len(urls) == 0 {
		fmt.Fprintln(os.Stderr, "usage: crawl4go [-deep] [-max-depth N] [-max-pages N] <url> [url...]")
		os.Exit(2)
	}

	cfg := config.Load()
	initLogger(cfg.Log)

	browser, cleanup, err := launchBrowser(cfg.Browser)
	if err != nil {
		slog.Error("failed to launch browser", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	c, teardown := buildCrawler(cfg, browser)
	defer teardown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *deep {
		runDeep(ctx, c, urls[0], *maxDepth, *maxPages)
		return
	}
	runMany(ctx, c, urls)
}

func runMany(ctx context.Context, c *crawler.Crawler, urls []string) {
	defaults := model.Defaults()
	results, err := c.RunMany(ctx, urls, &defaults)
	if err != nil {
		slog.Error("crawl failed", "error", err)
	}
	emit(results)
}

func runDeep(ctx context.Context, c *crawler.Crawler, startURL string, maxDepth, maxPages int) {
	cfg := model.Defaults()
	cfg.DeepCrawlStrategy = &model.DeepCrawlStrategyConfig{
		Kind:     model.DeepCrawlBFS,
		MaxDepth: maxDepth,
		MaxPages: maxPages,
		Scope:    model.ScopeDomain,
	}

	results, snapshot, err := c.RunDeep(ctx, startURL, &cfg)
	if err != nil {
		slog.Error("deep crawl failed", "error", err)
	}
	slog.Info("deep crawl finished", "pages_crawled", snapshot.Stats.PagesCrawled, "pages_failed", snapshot.Stats.PagesFailed)
	emit(results)
}

func emit(results []*model.CrawlResult) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			slog.Error("failed to encode result", "error", err)
		}
	}
}

// buildCrawler wires every collaborator package into one crawler.Crawler,
// the way cmd/purify/main.go wires scraper+cleaner+cache into one router.
func buildCrawler(cfg *config.Config, browser *rod.Browser) (*crawler.Crawler, func()) {
	httpStrategy := fetch.NewHTTPStrategy()

	pool := fetch.NewPagePool(fetch.PagePoolConfig{
		MinPages:     cfg.AdaptivePool.MinPages,
		HardMax:      cfg.AdaptivePool.HardMax,
		MemThreshold: cfg.AdaptivePool.MemThreshold,
		ScaleStep:    cfg.AdaptivePool.ScaleStep,
	}, func() (*rod.Page, error) {
		return browser.Page(rod.Target{URL: "about:blank"})
	}, func(p *rod.Page) {
		_ = p.Close()
	})

	sessions := fetch.NewSessionRegistry(func() (*rod.Browser, *rod.Page, error) {
		page, err := browser.Page(rod.Target{URL: "about:blank"})
		return browser, page, err
	}, cfg.Fetch.SessionIdleTTL, cfg.Fetch.SessionIdleTTL)

	browserStrategy := &fetch.BrowserStrategy{Browser: browser, Pool: pool, Sessions: sessions}

	orchestrator := &fetch.Orchestrator{
		HTTP:    httpStrategy,
		Browser: browserStrategy,
		Memory:  fetch.NewDomainMemory(cfg.Fetch.DomainMemoryTTL),
	}

	var caller llmclient.Caller
	if cfg.LLM.APIKey != "" {
		caller = llmclient.NewClient(&http.Client{Timeout: cfg.LLM.Timeout})
	}
	pipeline := content.NewPipeline(caller, llmclient.Params{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
	})

	resultCache := cache.New(cache.NewMemoryStore(cfg.Cache.MaxEntries, 0), cfg.Cache.TTL)

	robots := dispatch.NewRobotsChecker(&http.Client{Timeout: 10 * time.Second}, "crawl4go/1.0")
	memMonitor, err := dispatch.NewMemoryMonitor(cfg.Memory.ThresholdMB, cfg.Memory.PollInterval)
	if err != nil {
		memMonitor = nil
	}
	var rateLimiter *dispatch.RateLimiter
	if cfg.RateLimit.MeanDelayS > 0 {
		rateLimiter = dispatch.NewRateLimiter(cfg.RateLimit.MeanDelayS, cfg.RateLimit.MaxRangeS)
	}

	dispatcher := &dispatch.Dispatcher{
		RateLimiter: rateLimiter,
		Memory:      memMonitor,
		Robots:      robots,
	}

	c := crawler.New(orchestrator, pipeline, resultCache, dispatcher, nil)

	teardown := func() {
		pool.Stop()
		sessions.Stop()
		if rateLimiter != nil {
			rateLimiter.Close()
		}
		if memMonitor != nil {
			memMonitor.Close()
		}
	}
	return c, teardown
}

func launchBrowser(cfg config.BrowserConfig) (*rod.Browser, func(), error) {
	if cfg.CDPUrl != "" {
		browser := rod.New().ControlURL(cfg.CDPUrl)
		if err := browser.Connect(); err != nil {
			return nil, nil, err
		}
		return browser, func() { _ = browser.Close() }, nil
	}

	l := launcher.New().Headless(cfg.Headless).NoSandbox(cfg.NoSandbox)
	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.DefaultProxy != "" {
		l = l.Proxy(cfg.DefaultProxy)
	}
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, nil, model.NewCrawlError(model.KindNetworkError, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, nil, model.NewCrawlError(model.KindNetworkError, "failed to connect to browser", err)
	}
	return browser, func() {
		_ = browser.Close()
		l.Cleanup()
	}, nil
}

func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
