package fetch

import (
	"context"
	"net/url"
	"os"

	"github.com/use-agent/crawl4go/model"
	"github.com/use-agent/crawl4go/urlhandle"
)

// Orchestrator implements §4.1's fetch-strategy selection: HTTP is used
// whenever RunConfig.RequiresBrowser() is false, browser otherwise.
// DomainMemory, when set, only reorders which eligible strategy is tried
// first — it never widens or narrows eligibility.
type Orchestrator struct {
	HTTP    Strategy
	Browser Strategy
	Memory  *DomainMemory
}

// Fetch runs the documented selection rule and returns the winning
// strategy's result.
func (o *Orchestrator) Fetch(ctx context.Context, rawURL string, cfg *model.RunConfig, bcfg *model.BrowserConfig) (*Result, error) {
	handle, err := urlhandle.Parse(rawURL)
	if err != nil {
		return nil, model.NewCrawlError(model.KindInvalidScheme, "failed to classify url", err)
	}

	// raw:/file: URLs never touch the network; they're only browser-routed
	// when the config explicitly asks for DOM rendering.
	if handle.Scheme == urlhandle.SchemeRaw || handle.Scheme == urlhandle.SchemeFile {
		if cfg.RequiresBrowser() || cfg.ProcessInBrowser {
			return o.Browser.Fetch(ctx, rawURL, cfg, bcfg)
		}
		return o.httpLikeLocalFetch(handle)
	}

	if cfg.RequiresBrowser() {
		return o.Browser.Fetch(ctx, rawURL, cfg, bcfg)
	}

	// Both strategies are capable of serving an HTTP-eligible page; when
	// DomainMemory remembers which one last succeeded for this host, try
	// that one first and fall back to the other rather than failing
	// outright. With no memory (or none configured), HTTP goes first since
	// it's the cheaper path.
	first, second := o.HTTP, o.Browser
	domain := hostname(rawURL)
	if o.Memory != nil && domain != "" && o.Memory.Get(domain) == o.Browser.Name() {
		first, second = o.Browser, o.HTTP
	}

	result, err := first.Fetch(ctx, rawURL, cfg, bcfg)
	if err == nil {
		if o.Memory != nil && domain != "" {
			o.Memory.Set(domain, first.Name())
		}
		return result, nil
	}

	result, err = second.Fetch(ctx, rawURL, cfg, bcfg)
	if err == nil && o.Memory != nil && domain != "" {
		o.Memory.Set(domain, second.Name())
	}
	return result, err
}

func hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// httpLikeLocalFetch handles raw:/file: URLs that don't require a browser:
// the content is already in hand, so this is just a pass-through wrapped
// in a Result, skipping HTTPStrategy's network dialer entirely.
func (o *Orchestrator) httpLikeLocalFetch(handle urlhandle.Handle) (*Result, error) {
	switch handle.Scheme {
	case urlhandle.SchemeRaw:
		return &Result{HTML: handle.HTML, StatusCode: 200, FinalURL: handle.Raw}, nil
	case urlhandle.SchemeFile:
		data, err := os.ReadFile(handle.Path)
		if err != nil {
			return nil, model.NewCrawlError(model.KindInvalidScheme, "failed to read local file", err)
		}
		return &Result{HTML: string(data), StatusCode: 200, FinalURL: "file://" + handle.Path}, nil
	default:
		return nil, model.NewCrawlError(model.KindInvalidScheme, "unexpected scheme in local fetch", nil)
	}
}
