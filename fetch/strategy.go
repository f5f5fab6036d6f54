// Package fetch implements §4.1's fetch orchestrator: the HTTP and browser
// fetch strategies, the browser's eight named hooks, the virtual-scroll
// union protocol, session reuse, and the adaptive page pool.
package fetch

import (
	"context"

	"github.com/use-agent/crawl4go/model"
)

// Result is what either Strategy returns: the orchestrator turns this into
// CrawlResult's fetch-derived fields before handing off to the content
// pipeline.
type Result struct {
	HTML            string
	StatusCode      int
	FinalURL        string
	ResponseHeaders map[string]string
	SSLCertificate  *model.SSLCertificate
	Screenshot      string // base64 PNG
	PDF             []byte
	MHTML           string
	NetworkRequests []model.NetworkRequestLog
	ConsoleMessages []model.ConsoleMessage
}

// Strategy is one fetch path (HTTP or browser). Name identifies it for
// logging and for fetch.DomainMemory.
type Strategy interface {
	Name() string
	Fetch(ctx context.Context, rawURL string, cfg *model.RunConfig, bcfg *model.BrowserConfig) (*Result, error)
}
