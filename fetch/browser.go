package fetch

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/use-agent/crawl4go/model"
	"github.com/use-agent/crawl4go/simhash"
	"github.com/use-agent/crawl4go/urlhandle"
)

// maxScanIterations bounds scan_full_page so a page with infinitely
// appending content (e.g. a broken infinite-scroll loop) can't hang a fetch.
const maxScanIterations = 30

// BrowserStrategy is the browser fetch path: a single shared *rod.Browser,
// a PagePool for session-less fetches, and an optional SessionRegistry for
// session_id-pinned fetches. It runs the eight named hooks, in order,
// around every navigation, adapted from the teacher's doScrapeRod
// lifecycle.
type BrowserStrategy struct {
	Browser  *rod.Browser
	Pool     *PagePool
	Sessions *SessionRegistry
	Hooks    *BrowserHooks

	browserCreatedOnce sync.Once
}

func (s *BrowserStrategy) Name() string { return "browser" }

func (s *BrowserStrategy) Fetch(ctx context.Context, rawURL string, cfg *model.RunConfig, bcfg *model.BrowserConfig) (*Result, error) {
	timeout := time.Duration(cfg.PageTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var createdErr error
	s.browserCreatedOnce.Do(func() {
		if s.Hooks != nil && s.Hooks.OnBrowserCreated != nil {
			createdErr = s.Hooks.OnBrowserCreated(fetchCtx, s.Browser)
		}
	})
	if createdErr != nil {
		return nil, model.HookError("on_browser_created", createdErr)
	}

	var page *rod.Page
	var handle *PageHandle
	var session *Session
	success := false

	if cfg.SessionID != "" && s.Sessions != nil {
		var err error
		session, err = s.Sessions.Get(cfg.SessionID)
		if err != nil {
			return nil, model.NewCrawlError(model.KindNetworkError, "failed to acquire session", err)
		}
		session.Lock()
		defer session.Unlock()
		page = session.Page
	} else if s.Pool != nil {
		var err error
		handle, err = s.Pool.Get()
		if err != nil {
			return nil, model.NewCrawlError(model.KindNetworkError, "failed to acquire page from pool", err)
		}
		page = handle.Page
		defer func() {
			_ = page.Navigate("about:blank")
			s.Pool.Put(handle, success)
		}()
	} else {
		var err error
		page, err = s.Browser.Page(proto.TargetCreateTarget{})
		if err != nil {
			return nil, model.NewCrawlError(model.KindNetworkError, "failed to create page", err)
		}
		defer page.Close()
	}

	if err := runHook("on_page_context_created", callIfSet(s.Hooks, func(h *BrowserHooks) error {
		if h.OnPageContextCreated == nil {
			return nil
		}
		return h.OnPageContextCreated(fetchCtx, page)
	})); err != nil {
		return nil, err
	}

	if cfg.OverrideNavigator || (bcfg != nil && bcfg.EnableStealth) {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			// stealth injection failing is non-fatal; proceed without it.
		}
	}

	p := page.Context(fetchCtx)

	if bcfg != nil {
		extraHeaders := make(map[string]string, len(bcfg.Headers)+1)
		if _, hasReferer := bcfg.Headers["Referer"]; !hasReferer {
			if ref, ok := referer(rawURL); ok {
				extraHeaders["Referer"] = ref
			}
		}
		for k, v := range bcfg.Headers {
			extraHeaders[k] = v
		}
		if len(extraHeaders) > 0 {
			_ = proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(extraHeaders)}.Call(p)
		}
		for _, c := range bcfg.Cookies {
			domain := c.Domain
			path := c.Path
			if path == "" {
				path = "/"
			}
			_, _ = proto.NetworkSetCookie{Name: c.Name, Value: c.Value, Domain: domain, Path: path}.Call(p)
		}
		if bcfg.UserAgent != "" {
			_ = proto.NetworkSetUserAgentOverride{UserAgent: bcfg.UserAgent}.Call(p)
		}
	}

	if err := runHook("before_goto", callIfSet(s.Hooks, func(h *BrowserHooks) error {
		if h.BeforeGoto == nil {
			return nil
		}
		return h.BeforeGoto(fetchCtx, p, rawURL)
	})); err != nil {
		return nil, err
	}

	handleURL, parseErr := urlhandle.Parse(rawURL)
	if parseErr != nil {
		return nil, model.NewCrawlError(model.KindInvalidScheme, "failed to classify url", parseErr)
	}

	var navErr error
	switch handleURL.Scheme {
	case urlhandle.SchemeRaw:
		navErr = p.SetDocumentContent(handleURL.HTML)
	case urlhandle.SchemeFile:
		data, err := os.ReadFile(handleURL.Path)
		if err != nil {
			return nil, model.NewCrawlError(model.KindInvalidScheme, "failed to read local file", err)
		}
		navErr = p.SetDocumentContent(string(data))
	default:
		navErr = p.Navigate(rawURL)
	}
	if navErr != nil {
		return nil, model.NewCrawlError(model.KindNavigationTimeout, "navigation to "+rawURL+" failed", navErr)
	}

	switch cfg.WaitUntil {
	case model.WaitLoad:
		_ = p.WaitLoad()
	case model.WaitNetworkIdle:
		wait := p.WaitRequestIdle(300*time.Millisecond, nil, nil, nil)
		wait()
	default:
		_ = p.WaitDOMStable(300*time.Millisecond, 0.1)
	}

	statusCode := navigationStatus(p)

	if err := runHook("after_goto", callIfSet(s.Hooks, func(h *BrowserHooks) error {
		if h.AfterGoto == nil {
			return nil
		}
		return h.AfterGoto(fetchCtx, p, rawURL, statusCode)
	})); err != nil {
		return nil, err
	}

	if bcfg != nil && bcfg.UserAgent != "" && s.Hooks != nil && s.Hooks.OnUserAgentUpdated != nil {
		if err := s.Hooks.OnUserAgentUpdated(fetchCtx, p, bcfg.UserAgent); err != nil {
			return nil, runHook("on_user_agent_updated", err)
		}
	}

	if err := runHook("on_execution_started", callIfSet(s.Hooks, func(h *BrowserHooks) error {
		if h.OnExecutionStarted == nil {
			return nil
		}
		return h.OnExecutionStarted(fetchCtx, p)
	})); err != nil {
		return nil, err
	}

	for _, code := range cfg.JSCode {
		if _, err := p.Eval(code); err != nil {
			return nil, model.NewCrawlError(model.KindNetworkError, "js_code execution failed", err)
		}
	}

	if cfg.WaitFor != "" {
		if err := waitFor(fetchCtx, p, cfg.WaitFor, timeout); err != nil {
			return nil, err
		}
	}

	if cfg.ScanFullPage {
		scanFullPage(p, time.Duration(cfg.ScrollDelayS*float64(time.Second)))
	}

	if cfg.VirtualScrollConfig != nil {
		if err := virtualScrollUnion(p, cfg.VirtualScrollConfig); err != nil {
			return nil, model.NewCrawlError(model.KindNetworkError, "virtual scroll failed", err)
		}
	}

	if cfg.DelayBeforeReturnHTMLs > 0 {
		time.Sleep(time.Duration(cfg.DelayBeforeReturnHTMLs * float64(time.Second)))
	}

	if cfg.RemoveOverlayElements {
		removeOverlayElementsJS(p)
	}

	if cfg.SimulateUser {
		_ = p.Mouse.Scroll(0, 40, 1)
	}

	var screenshotB64 string
	if cfg.Screenshot {
		if cfg.ScreenshotWaitForS > 0 {
			time.Sleep(time.Duration(cfg.ScreenshotWaitForS * float64(time.Second)))
		}
		if data, err := p.Screenshot(true, nil); err == nil {
			screenshotB64 = base64.StdEncoding.EncodeToString(data)
		}
	}

	var pdfData []byte
	if cfg.PDF {
		if res, err := (proto.PagePrintToPDF{}).Call(p); err == nil {
			pdfData = res.Data
		}
	}

	var mhtml string
	if cfg.CaptureMHTML {
		format := proto.PageCaptureSnapshotFormatMhtml
		if res, err := (proto.PageCaptureSnapshot{Format: format}).Call(p); err == nil {
			mhtml = res.Data
		}
	}

	if err := runHook("before_retrieve_html", callIfSet(s.Hooks, func(h *BrowserHooks) error {
		if h.BeforeRetrieveHTML == nil {
			return nil
		}
		return h.BeforeRetrieveHTML(fetchCtx, p)
	})); err != nil {
		return nil, err
	}

	rawHTML, err := p.HTML()
	if err != nil {
		return nil, model.NewCrawlError(model.KindNetworkError, "failed to extract page HTML", err)
	}

	if s.Hooks != nil && s.Hooks.BeforeReturnHTML != nil {
		transformed, err := s.Hooks.BeforeReturnHTML(fetchCtx, p, rawHTML)
		if err != nil {
			return nil, model.HookError("before_return_html", err)
		}
		rawHTML = transformed
	}

	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = rawURL
	}

	success = true

	return &Result{
		HTML:       rawHTML,
		StatusCode: statusCode,
		FinalURL:   finalURL,
		Screenshot: screenshotB64,
		PDF:        pdfData,
		MHTML:      mhtml,
	}, nil
}

func callIfSet(hooks *BrowserHooks, fn func(*BrowserHooks) error) error {
	if hooks == nil {
		return nil
	}
	return fn(hooks)
}

func navigationStatus(p *rod.Page) int {
	res, err := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch(e) {}
		return 0;
	}`)
	if err != nil {
		return 0
	}
	return res.Value.Int()
}

func evalStringOrEmpty(p *rod.Page, js string) string {
	res, err := p.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// waitFor polls a CSS selector's presence (default) or a "js:"-prefixed
// boolean expression every 100ms until it's satisfied or timeout elapses,
// per §5's documented wait_for polling interval.
func waitFor(ctx context.Context, p *rod.Page, condition string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	isJS := strings.HasPrefix(condition, "js:")
	expr := strings.TrimPrefix(condition, "js:")

	for {
		if ctx.Err() != nil {
			return model.NewCrawlError(model.KindCancelled, "wait_for cancelled", ctx.Err())
		}

		var ok bool
		if isJS {
			res, err := p.Eval(fmt.Sprintf(`() => { try { return !!(%s); } catch(e) { return false; } }`, expr))
			if err == nil {
				ok = res.Value.Bool()
			}
		} else {
			els, err := p.Elements(condition)
			ok = err == nil && len(els) > 0
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return model.NewCrawlError(model.KindWaitConditionTimeout, "wait_for condition not met: "+condition, nil)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// scanFullPage scrolls to the bottom of the page repeatedly until the
// document stops growing, appending newly-loaded content as it goes. This
// is distinct from the virtual-scroll union protocol, which replaces
// (rather than appends) a container's children each step.
func scanFullPage(p *rod.Page, delay time.Duration) {
	if delay <= 0 {
		delay = 300 * time.Millisecond
	}
	lastHeight := -1
	for i := 0; i < maxScanIterations; i++ {
		res, err := p.Eval(`() => document.body.scrollHeight`)
		if err != nil {
			return
		}
		h := res.Value.Int()
		if h <= lastHeight {
			return
		}
		lastHeight = h
		_, _ = p.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`)
		time.Sleep(delay)
	}
}

// virtualScrollUnion implements the protocol distinguished from
// scan_full_page: it locates container_selector, records each visible
// child's fingerprint, scrolls scroll_count times waiting
// wait_after_scroll between steps, and at the end unions every uniquely
// observed child (deduped via simhash) back into the container, rather
// than leaving only the last-rendered batch.
func virtualScrollUnion(p *rod.Page, vsc *model.VirtualScrollConfig) error {
	seen := map[uint64]string{}
	var order []uint64

	collect := func() error {
		res, err := p.Eval(`(sel) => {
			const el = document.querySelector(sel);
			if (!el) return [];
			return Array.from(el.children).map(c => c.outerHTML);
		}`, vsc.ContainerSelector)
		if err != nil {
			return err
		}
		for _, v := range res.Value.Arr() {
			child := v.Str()
			fp := simhash.Fingerprint(child)
			if _, ok := seen[fp]; !ok {
				seen[fp] = child
				order = append(order, fp)
			}
		}
		return nil
	}

	if err := collect(); err != nil {
		return err
	}

	for i := 0; i < vsc.ScrollCount; i++ {
		if err := scrollContainer(p, vsc); err != nil {
			return err
		}
		if vsc.WaitAfterScroll > 0 {
			time.Sleep(vsc.WaitAfterScroll)
		}
		if err := collect(); err != nil {
			return err
		}
	}

	union := make([]string, 0, len(order))
	for _, fp := range order {
		union = append(union, seen[fp])
	}

	_, err := p.Eval(`(sel, html) => { const el = document.querySelector(sel); if (el) el.innerHTML = html; }`,
		vsc.ContainerSelector, strings.Join(union, ""))
	return err
}

func scrollContainer(p *rod.Page, vsc *model.VirtualScrollConfig) error {
	var deltaJS string
	switch {
	case vsc.ScrollBy.ContainerHeight:
		deltaJS = "el.clientHeight"
	case vsc.ScrollBy.PageHeight:
		deltaJS = "window.innerHeight"
	default:
		deltaJS = fmt.Sprintf("%d", vsc.ScrollBy.Pixels)
	}
	js := fmt.Sprintf(`(sel) => { const el = document.querySelector(sel); if (el) el.scrollTop += %s; }`, deltaJS)
	_, err := p.Eval(js, vsc.ContainerSelector)
	return err
}

// removeOverlayElementsJS removes fixed/sticky high-z-index elements and
// common cookie/consent/popup selectors, adapted verbatim in heuristic
// from the teacher's static-HTML overlay remover, applied here live via
// the page's own JS engine instead of goquery.
func removeOverlayElementsJS(p *rod.Page) {
	const js = `() => {
		const els = document.querySelectorAll('*');
		for (const el of els) {
			const style = window.getComputedStyle(el);
			const pos = style.position;
			if (pos === 'fixed' || pos === 'sticky') {
				const z = parseInt(style.zIndex, 10);
				if (z >= 900 || style.zIndex === 'auto') {
					el.remove();
				}
			}
		}
		const selectors = [
			'[class*="cookie"]', '[class*="consent"]', '[class*="overlay"]',
			'[id*="cookie"]', '[id*="consent"]', '[id*="overlay"]',
			'[class*="popup"]', '[id*="popup"]',
			'[class*="gdpr"]', '[id*="gdpr"]',
		];
		for (const sel of selectors) {
			document.querySelectorAll(sel).forEach(el => {
				const style = window.getComputedStyle(el);
				if (style.position === 'fixed' || style.position === 'sticky' || style.position === 'absolute') {
					el.remove();
				}
			});
		}
		document.documentElement.style.overflow = '';
		document.body.style.overflow = '';
	}`
	_, _ = p.Eval(js)
}

// referer builds a plausible Google-search referer when the caller didn't
// supply one, matching the teacher's default header behavior.
func referer(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	return "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname()), true
}
