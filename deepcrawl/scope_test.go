package deepcrawl

import (
	"testing"

	"github.com/use-agent/crawl4go/model"
)

func TestInScopeDomainAllowsAnySubdomain(t *testing.T) {
	origin := newSeedOrigin("https://www.example.com/start")
	if !inScope(origin, "https://blog.example.com/post", model.ScopeDomain) {
		t.Error("ScopeDomain should allow a different subdomain of the same registrable domain")
	}
	if inScope(origin, "https://example.org/post", model.ScopeDomain) {
		t.Error("ScopeDomain should reject a different registrable domain")
	}
}

func TestInScopeSubdomainRequiresExactHost(t *testing.T) {
	origin := newSeedOrigin("https://www.example.com/start")
	if !inScope(origin, "https://www.example.com/other", model.ScopeSubdomain) {
		t.Error("ScopeSubdomain should allow the same host")
	}
	if inScope(origin, "https://blog.example.com/post", model.ScopeSubdomain) {
		t.Error("ScopeSubdomain should reject a different host")
	}
}

func TestInScopePageRequiresPathPrefix(t *testing.T) {
	origin := newSeedOrigin("https://www.example.com/docs/guide")
	if !inScope(origin, "https://www.example.com/docs/guide/chapter1", model.ScopePage) {
		t.Error("ScopePage should allow a path nested under the seed's path")
	}
	if inScope(origin, "https://www.example.com/blog/post", model.ScopePage) {
		t.Error("ScopePage should reject a path outside the seed's path")
	}
}

func TestInScopeInvalidCandidateURLIsOutOfScope(t *testing.T) {
	origin := newSeedOrigin("https://www.example.com/start")
	if inScope(origin, "://not-a-url", model.ScopeDomain) {
		t.Error("a malformed candidate URL should never be in scope")
	}
}

func TestMatchesPatternsNoPatternsAllowsAll(t *testing.T) {
	if !matchesPatterns("https://example.com/anything", nil, nil) {
		t.Error("matchesPatterns with no include/exclude patterns should allow everything")
	}
}

func TestMatchesPatternsExcludeWins(t *testing.T) {
	if matchesPatterns("https://example.com/admin/page", []string{"*"}, []string{"*/admin/*"}) {
		t.Error("a matching exclude pattern should reject even when include matches")
	}
}

func TestMatchesPatternsRequiresAnIncludeMatch(t *testing.T) {
	if matchesPatterns("https://example.com/other", []string{"*/blog/*"}, nil) {
		t.Error("with include patterns set, a non-matching URL should be rejected")
	}
	if !matchesPatterns("https://example.com/blog/post", []string{"*/blog/*"}, nil) {
		t.Error("a URL matching an include pattern should be accepted")
	}
}
