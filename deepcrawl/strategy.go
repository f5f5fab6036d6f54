// Package deepcrawl implements spec.md §4.7's BFS/DFS/Best-First URL
// frontier traversal: a single shared node lifecycle (pop, crawl, extract
// outgoing links, score, push) driven by a pluggable Frontier discipline,
// with a JSON-serializable, resumable snapshot and an optional near-duplicate
// page skip.
package deepcrawl

import (
	"context"

	"github.com/use-agent/crawl4go/filter"
	"github.com/use-agent/crawl4go/model"
	"github.com/use-agent/crawl4go/simhash"
	"github.com/use-agent/crawl4go/urlhandle"
)

// CrawlFunc performs one URL's full arun flow (cache + fetch + content
// pipeline), supplied by the crawler package exactly like
// dispatch.FetchOneFunc; Strategy itself knows nothing about fetching.
type CrawlFunc func(ctx context.Context, rawURL string, cfg *model.RunConfig) (*model.CrawlResult, error)

// Strategy runs the §4.7 traversal loop shared by all three frontier
// disciplines, deciding only how Crawl is invoked and how candidate links
// are filtered/scored before being pushed back onto the frontier.
type Strategy struct {
	Crawl CrawlFunc
}

// New builds a Strategy backed by crawl.
func New(crawl CrawlFunc) *Strategy {
	return &Strategy{Crawl: crawl}
}

// Run traverses startURL per cfg.DeepCrawlStrategy, returning every crawled
// page's result in completion order plus the final resumable snapshot. A
// cancelled ctx stops the loop early (partial results and a valid snapshot
// are still returned, per §5's cancellation guarantee).
func (s *Strategy) Run(ctx context.Context, startURL string, cfg *model.RunConfig) ([]*model.CrawlResult, *model.DeepCrawlSnapshot, error) {
	dc := cfg.DeepCrawlStrategy
	if dc == nil {
		return nil, nil, model.NewCrawlError(model.KindNoMatchingConfig, "deep crawl requires a DeepCrawlStrategyConfig", nil)
	}

	visited := make(map[string]bool)
	var stats model.DeepCrawlStats
	var seedNodes []model.FrontierNode

	if dc.ResumeState != nil {
		for _, u := range dc.ResumeState.Visited {
			visited[u] = true
		}
		seedNodes = dc.ResumeState.Frontier
		stats = dc.ResumeState.Stats
	} else {
		seedNodes = []model.FrontierNode{{URL: startURL, Depth: 0}}
	}

	origin := newSeedOrigin(startURL)
	frontier := newFrontier(dc.Kind, seedNodes)

	var results []*model.CrawlResult
	var seenFingerprints []uint64

	for frontier.Len() > 0 {
		if dc.MaxPages > 0 && stats.PagesCrawled >= dc.MaxPages {
			break
		}
		if err := ctx.Err(); err != nil {
			return results, snapshotOf(dc.Kind, visited, frontier, stats), err
		}

		node, ok := frontier.Pop()
		if !ok {
			break
		}
		canon := urlhandle.Canonicalize(node.URL)
		if visited[canon] {
			continue
		}
		visited[canon] = true

		result, err := s.Crawl(ctx, node.URL, cfg)
		if err != nil && result == nil {
			result = model.Fail(node.URL, err)
		}
		if !result.Success {
			stats.PagesFailed++
			results = append(results, result)
			notify(dc, visited, frontier, stats)
			continue
		}

		if dc.DedupeSimilarity {
			fp := simhash.Fingerprint(result.Markdown.RawMarkdown)
			if nearDuplicate(fp, seenFingerprints, dc.SimilarityThreshold) {
				stats.PagesCrawled++
				notify(dc, visited, frontier, stats)
				continue
			}
			seenFingerprints = append(seenFingerprints, fp)
		}

		stats.PagesCrawled++
		results = append(results, result)

		if node.Depth+1 <= dc.MaxDepth {
			expand(frontier, origin, node, result, dc, visited)
		}

		notify(dc, visited, frontier, stats)
	}

	return results, snapshotOf(dc.Kind, visited, frontier, stats), nil
}

// expand scores and pushes result's outgoing links onto frontier, applying
// scope, include/exclude patterns, and the visited-set check.
func expand(frontier Frontier, origin seedOrigin, node model.FrontierNode, result *model.CrawlResult, dc *model.DeepCrawlStrategyConfig, visited map[string]bool) {
	candidates := make([]model.Link, 0, len(result.Links.Internal)+len(result.Links.External))
	candidates = append(candidates, result.Links.Internal...)
	candidates = append(candidates, result.Links.External...)

	for _, link := range candidates {
		if link.Href == "" {
			continue
		}
		if visited[urlhandle.Canonicalize(link.Href)] {
			continue
		}
		if !inScope(origin, link.Href, dc.Scope) {
			continue
		}
		if !matchesPatterns(link.Href, dc.IncludePatterns, dc.ExcludePatterns) {
			continue
		}

		score := link.IntrinsicScore
		if dc.Kind == model.DeepCrawlBestFirst && dc.Query != "" {
			score += filter.ScoreLinkRelevance(link.Text, dc.Query, false)
		}

		frontier.Push(model.FrontierNode{URL: link.Href, Depth: node.Depth + 1, Score: score})
	}
}

// notify invokes dc.OnStateChange with a fresh snapshot, if set, after each
// node completes, per spec.md §4.7's "real-time persistence" requirement.
func notify(dc *model.DeepCrawlStrategyConfig, visited map[string]bool, frontier Frontier, stats model.DeepCrawlStats) {
	if dc.OnStateChange == nil {
		return
	}
	dc.OnStateChange(*snapshotOf(dc.Kind, visited, frontier, stats))
}

func snapshotOf(kind model.DeepCrawlKind, visited map[string]bool, frontier Frontier, stats model.DeepCrawlStats) *model.DeepCrawlSnapshot {
	visitedList := make([]string, 0, len(visited))
	for u := range visited {
		visitedList = append(visitedList, u)
	}
	return &model.DeepCrawlSnapshot{
		Strategy: kind,
		Visited:  visitedList,
		Frontier: frontier.Snapshot(),
		Stats:    stats,
	}
}

// nearDuplicate reports whether fp is within threshold Hamming distance of
// any fingerprint already seen. threshold<=0 uses a conservative default of
// 3 bits, matching typical SimHash near-duplicate thresholds.
func nearDuplicate(fp uint64, seen []uint64, threshold int) bool {
	if threshold <= 0 {
		threshold = 3
	}
	for _, s := range seen {
		if simhash.Similar(fp, s, threshold) {
			return true
		}
	}
	return false
}
