package fetch

import (
	"context"

	"github.com/go-rod/rod"

	"github.com/use-agent/crawl4go/model"
)

// BrowserHooks are the eight named extension points fired, in this exact
// order, around a single browser fetch. Any nil field is skipped. A hook
// that returns an error aborts the fetch with KindHookFailure.
type BrowserHooks struct {
	OnBrowserCreated      func(ctx context.Context, browser *rod.Browser) error
	OnPageContextCreated  func(ctx context.Context, page *rod.Page) error
	BeforeGoto            func(ctx context.Context, page *rod.Page, url string) error
	AfterGoto             func(ctx context.Context, page *rod.Page, url string, statusCode int) error
	OnUserAgentUpdated    func(ctx context.Context, page *rod.Page, userAgent string) error
	OnExecutionStarted    func(ctx context.Context, page *rod.Page) error
	BeforeRetrieveHTML    func(ctx context.Context, page *rod.Page) error
	BeforeReturnHTML      func(ctx context.Context, page *rod.Page, html string) (string, error)
}

// runHook wraps a hook invocation, translating a returned error into the
// stable KindHookFailure CrawlError naming the offending hook.
func runHook(name string, err error) error {
	if err == nil {
		return nil
	}
	return model.HookError(name, err)
}
