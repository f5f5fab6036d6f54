package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/use-agent/crawl4go/model"
)

// RobotsChecker fetches and caches robots.txt per host, honoring
// RunConfig.CheckRobotsTxt per §4.4. Groups are cached indefinitely for the
// process lifetime; a fresh process re-fetches, which matches the
// short-lived nature of a crawl run.
type RobotsChecker struct {
	mu     sync.Mutex
	groups map[string]*robotstxt.Group
	client *http.Client
	ua     string
}

// NewRobotsChecker builds a RobotsChecker using client for robots.txt
// fetches and ua as the user-agent whose group is consulted.
func NewRobotsChecker(client *http.Client, ua string) *RobotsChecker {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RobotsChecker{groups: make(map[string]*robotstxt.Group), client: client, ua: ua}
}

// Allowed reports whether rawURL's path may be fetched according to its
// host's robots.txt. A fetch failure (including a 404, per the standard's
// convention) is treated as allow-all.
func (rc *RobotsChecker) Allowed(ctx context.Context, rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, model.NewCrawlError(model.KindInvalidScheme, "cannot parse URL for robots check", err)
	}

	group, err := rc.group(ctx, u)
	if err != nil {
		return true, nil
	}
	return group.Test(u.Path), nil
}

func (rc *RobotsChecker) group(ctx context.Context, u *url.URL) (*robotstxt.Group, error) {
	key := u.Scheme + "://" + u.Host

	rc.mu.Lock()
	g, ok := rc.groups[key]
	rc.mu.Unlock()
	if ok {
		return g, nil
	}

	robotsURL := key + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := rc.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("robots.txt fetch for %s returned status %d", key, resp.StatusCode)
	}

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, err
	}
	group := data.FindGroup(rc.ua)

	rc.mu.Lock()
	rc.groups[key] = group
	rc.mu.Unlock()
	return group, nil
}
