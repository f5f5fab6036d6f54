package dispatch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/use-agent/crawl4go/model"
)

func fakeFetch(calls *int32) FetchOneFunc {
	return func(ctx context.Context, rawURL string, cfg *model.RunConfig) (*model.CrawlResult, error) {
		atomic.AddInt32(calls, 1)
		return &model.CrawlResult{URL: rawURL, Success: true, HTML: "<html>" + rawURL + "</html>"}, nil
	}
}

func TestDispatcherRunManyPreservesOrder(t *testing.T) {
	var calls int32
	d := &Dispatcher{}
	urls := []string{"https://a.example.com/1", "https://a.example.com/2", "https://a.example.com/3"}
	results, err := d.RunMany(context.Background(), urls, &model.RunConfig{SemaphoreCount: 2}, fakeFetch(&calls))
	if err != nil {
		t.Fatalf("RunMany: %v", err)
	}
	if len(results) != len(urls) {
		t.Fatalf("got %d results, want %d", len(results), len(urls))
	}
	for i, u := range urls {
		if results[i].URL != u {
			t.Errorf("results[%d].URL = %s, want %s", i, results[i].URL, u)
		}
		if !results[i].Success {
			t.Errorf("results[%d] should succeed", i)
		}
		if results[i].DispatchResult == nil {
			t.Errorf("results[%d] missing DispatchResult accounting", i)
		}
	}
	if calls != int32(len(urls)) {
		t.Errorf("expected %d fetch calls, got %d", len(urls), calls)
	}
}

func TestDispatcherSemaphoreCountOneIsSequential(t *testing.T) {
	var inFlight int32
	var maxInFlight int32
	d := &Dispatcher{}
	fetch := func(ctx context.Context, rawURL string, cfg *model.RunConfig) (*model.CrawlResult, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			cur := atomic.LoadInt32(&maxInFlight)
			if n <= cur || atomic.CompareAndSwapInt32(&maxInFlight, cur, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return &model.CrawlResult{URL: rawURL, Success: true}, nil
	}

	urls := []string{"https://a/1", "https://a/2", "https://a/3", "https://a/4"}
	_, err := d.RunMany(context.Background(), urls, &model.RunConfig{SemaphoreCount: 1}, fetch)
	if err != nil {
		t.Fatalf("RunMany: %v", err)
	}
	if maxInFlight != 1 {
		t.Errorf("SemaphoreCount=1 should run strictly sequentially, saw max in-flight %d", maxInFlight)
	}
}

func TestDispatcherStreamingEquivalence(t *testing.T) {
	var calls int32
	urls := []string{"https://a/1", "https://a/2", "https://a/3", "https://a/4", "https://a/5"}

	d1 := &Dispatcher{}
	batch, err := d1.RunMany(context.Background(), urls, &model.RunConfig{SemaphoreCount: 3}, fakeFetch(&calls))
	if err != nil {
		t.Fatalf("RunMany: %v", err)
	}

	d2 := &Dispatcher{}
	stream := d2.RunManyStream(context.Background(), urls, &model.RunConfig{SemaphoreCount: 3}, fakeFetch(&calls))
	var streamed []*model.CrawlResult
	for r := range stream {
		streamed = append(streamed, r)
	}

	if len(batch) != len(streamed) {
		t.Fatalf("batch has %d results, stream has %d", len(batch), len(streamed))
	}

	batchURLs := urlsOf(batch)
	streamURLs := urlsOf(streamed)
	sort.Strings(batchURLs)
	sort.Strings(streamURLs)
	for i := range batchURLs {
		if batchURLs[i] != streamURLs[i] {
			t.Errorf("batch/stream URL sets differ: %v vs %v", batchURLs, streamURLs)
		}
	}
}

func urlsOf(results []*model.CrawlResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.URL
	}
	return out
}

func TestDispatcherRouterNoMatchFails(t *testing.T) {
	router := NewRouter(nil, Route{Matcher: model.URLMatcher{Glob: "*.pdf"}, Config: &model.RunConfig{}})
	d := &Dispatcher{Router: router}
	var calls int32
	results, err := d.RunMany(context.Background(), []string{"https://a/not-pdf"}, &model.RunConfig{}, fakeFetch(&calls))
	if err != nil {
		t.Fatalf("RunMany: %v", err)
	}
	if results[0].Success {
		t.Fatal("expected failure for URL with no matching route")
	}
	if results[0].ErrorKind != model.KindNoMatchingConfig {
		t.Errorf("ErrorKind = %v, want KindNoMatchingConfig", results[0].ErrorKind)
	}
	if calls != 0 {
		t.Error("fetch should never be called for an unmatched URL")
	}
}

func TestDispatcherRouterFirstMatchSelectsConfig(t *testing.T) {
	pdfCfg := &model.RunConfig{CSSSelector: "pdf-config"}
	router := NewRouter(&model.RunConfig{CSSSelector: "catchall"},
		Route{Matcher: model.URLMatcher{Glob: "*.pdf"}, Config: pdfCfg})

	var seen *model.RunConfig
	var mu sync.Mutex
	fetch := func(ctx context.Context, rawURL string, cfg *model.RunConfig) (*model.CrawlResult, error) {
		mu.Lock()
		seen = cfg
		mu.Unlock()
		return &model.CrawlResult{URL: rawURL, Success: true}, nil
	}

	d := &Dispatcher{Router: router}
	_, err := d.RunMany(context.Background(), []string{"https://a/doc.pdf"}, &model.RunConfig{}, fetch)
	if err != nil {
		t.Fatalf("RunMany: %v", err)
	}
	if seen != pdfCfg {
		t.Errorf("expected the pdf route's config to be used, got %v", seen)
	}
}

func TestDispatcherRobotsUnreachableAllowsFetch(t *testing.T) {
	d := &Dispatcher{Robots: NewRobotsChecker(nil, "crawl4go-test")}
	// Use a RunConfig with CheckRobotsTxt=true but point at a host that
	// will fail DNS, so Allowed() falls back to allow=true and the fetch
	// proceeds; this asserts the gate is wired, not bypassed.
	var calls int32
	cfg := &model.RunConfig{CheckRobotsTxt: true}
	results, err := d.RunMany(context.Background(), []string{"https://nonexistent.invalid/x"}, cfg, fakeFetch(&calls))
	if err != nil {
		t.Fatalf("RunMany: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected fetch to proceed when robots.txt is unreachable (allow-all fallback), calls=%d", calls)
	}
	_ = results
}

func TestDispatcherMemoryGateBlocksAdmission(t *testing.T) {
	m, err := NewMemoryMonitor(0.0001, 0) // effectively unreachable ceiling -> Allow() always false
	if err != nil {
		t.Fatalf("NewMemoryMonitor: %v", err)
	}
	defer m.Close()
	d := &Dispatcher{Memory: m, MemoryPollInterval: 5 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	var calls int32
	results, err := d.RunMany(ctx, []string{"https://a/x"}, &model.RunConfig{}, fakeFetch(&calls))
	if err != nil {
		t.Fatalf("RunMany: %v", err)
	}
	if results[0].Success {
		t.Fatal("expected cancellation while waiting for memory admission")
	}
	if calls != 0 {
		t.Error("fetch should never run while memory gate refuses admission")
	}
}

func TestDispatcherProxyAssignedAndFailureReported(t *testing.T) {
	proxies := []model.ProxyConfig{{Server: "proxy-a"}, {Server: "proxy-b"}}
	pool := NewProxyPool(proxies, model.ProxyRoundRobin)
	d := &Dispatcher{Proxies: pool}

	var seenProxy *model.ProxyConfig
	fetch := func(ctx context.Context, rawURL string, cfg *model.RunConfig) (*model.CrawlResult, error) {
		seenProxy = cfg.ProxyConfig
		return nil, fmt.Errorf("boom")
	}

	results, err := d.RunMany(context.Background(), []string{"https://a/x"}, &model.RunConfig{}, fetch)
	if err != nil {
		t.Fatalf("RunMany: %v", err)
	}
	if seenProxy == nil {
		t.Fatal("expected the dispatcher to assign a proxy onto the cloned config")
	}
	if results[0].Success {
		t.Fatal("expected the fetch error to surface as a failed result")
	}
}

func TestDispatcherRateLimiter429TriggersBackoff(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	defer rl.Close()
	d := &Dispatcher{RateLimiter: rl}

	fetch := func(ctx context.Context, rawURL string, cfg *model.RunConfig) (*model.CrawlResult, error) {
		return &model.CrawlResult{URL: rawURL, Success: false, StatusCode: 429}, nil
	}
	_, err := d.RunMany(context.Background(), []string{"https://limited.example.com/x"}, &model.RunConfig{}, fetch)
	if err != nil {
		t.Fatalf("RunMany: %v", err)
	}

	start := time.Now()
	if err := rl.Wait(context.Background(), "limited.example.com"); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Errorf("expected a 429 response to trigger a backoff window, waited only %v", elapsed)
	}
}
