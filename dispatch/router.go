// Package dispatch implements the concurrency dispatcher from §4.4:
// arun_many's worker pool, URL-to-config routing, rate limiting,
// memory-adaptive throttling, proxy rotation, and robots.txt compliance.
package dispatch

import "github.com/use-agent/crawl4go/model"

// Route pairs a URLMatcher with the RunConfig to apply when it matches.
type Route struct {
	Matcher model.URLMatcher
	Config  *model.RunConfig
}

// Router resolves each URL in an arun_many call to its effective RunConfig
// by first-match-wins order over a list of Routes, falling back to a
// default config when none match.
type Router struct {
	routes   []Route
	fallback *model.RunConfig
}

// NewRouter builds a Router. fallback is applied when no route matches; it
// may be nil, in which case Resolve fails unmatched URLs with
// KindNoMatchingConfig.
func NewRouter(fallback *model.RunConfig, routes ...Route) *Router {
	return &Router{routes: routes, fallback: fallback}
}

// Resolve returns the RunConfig for url: the first route whose Matcher
// matches, or the fallback config otherwise. Per §4.4, arun_many never
// fails a URL purely for lacking a matching route when a fallback exists;
// KindNoMatchingConfig is reserved for callers that explicitly configure no
// fallback.
func (r *Router) Resolve(url string) (*model.RunConfig, error) {
	for _, route := range r.routes {
		if route.Matcher.Matches(url) {
			return route.Config, nil
		}
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, model.NewCrawlError(model.KindNoMatchingConfig, "no route matched "+url+" and no fallback config configured", nil)
}
