package crawler

import (
	"context"

	"github.com/use-agent/crawl4go/deepcrawl"
	"github.com/use-agent/crawl4go/model"
)

// RunDeep runs spec.md §4.7's BFS/DFS/Best-First traversal starting at
// startURL, using Run as the per-node fetch+pipeline callback. cfg must set
// DeepCrawlStrategy.
func (c *Crawler) RunDeep(ctx context.Context, startURL string, cfg *model.RunConfig) ([]*model.CrawlResult, *model.DeepCrawlSnapshot, error) {
	strategy := deepcrawl.New(c.Run)
	return strategy.Run(ctx, startURL, cfg)
}
