package deepcrawl

import (
	"net/url"
	"strings"

	"github.com/use-agent/crawl4go/model"
	"github.com/use-agent/crawl4go/urlhandle"
)

// seedOrigin captures the start URL's host, base domain and path, the reference point
// every subsequently discovered link is scoped against per spec.md §4.7.
type seedOrigin struct {
	host       string
	baseDomain string
	path       string
}

func newSeedOrigin(startURL string) seedOrigin {
	u, err := url.Parse(startURL)
	if err != nil {
		return seedOrigin{}
	}
	return seedOrigin{
		host:       strings.ToLower(u.Host),
		baseDomain: urlhandle.BaseDomain(u.Host),
		path:       u.Path,
	}
}

// inScope reports whether candidateURL may be followed from the seed,
// under the named CrawlScope: domain allows any host sharing the seed's
// registrable domain, subdomain requires the exact same host, and page
// additionally requires the candidate's path to nest under the seed's.
func inScope(origin seedOrigin, candidateURL string, scope model.CrawlScope) bool {
	u, err := url.Parse(candidateURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Host)
	switch scope {
	case model.ScopeSubdomain:
		return host == origin.host
	case model.ScopePage:
		return host == origin.host && strings.HasPrefix(u.Path, origin.path)
	default: // model.ScopeDomain
		return urlhandle.BaseDomain(host) == origin.baseDomain
	}
}

// matchesPatterns applies spec.md §4.7's include/exclude pattern filters:
// candidateURL must match at least one include pattern (when any are
// given) and none of the exclude patterns. Patterns use the same
// shell-style glob syntax as model.URLMatcher.Glob.
func matchesPatterns(candidateURL string, include, exclude []string) bool {
	for _, pattern := range exclude {
		if (model.URLMatcher{Glob: pattern}).Matches(candidateURL) {
			return false
		}
	}
	if len(include) == 0 {
		return true
	}
	for _, pattern := range include {
		if (model.URLMatcher{Glob: pattern}).Matches(candidateURL) {
			return true
		}
	}
	return false
}
