package model

// DeepCrawlKind selects the frontier discipline of a deep crawl strategy.
type DeepCrawlKind string

const (
	DeepCrawlBFS       DeepCrawlKind = "bfs"
	DeepCrawlDFS       DeepCrawlKind = "dfs"
	DeepCrawlBestFirst DeepCrawlKind = "best_first"
)

// CrawlScope controls which discovered links a deep crawl follows.
type CrawlScope string

const (
	ScopeDomain    CrawlScope = "domain"
	ScopeSubdomain CrawlScope = "subdomain"
	ScopePage      CrawlScope = "page"
)

// FrontierNode is one pending or visited URL in a deep crawl snapshot.
type FrontierNode struct {
	URL   string  `json:"url"`
	Depth int     `json:"depth"`
	Score float64 `json:"score"`
}

// DeepCrawlSnapshot is the JSON-serializable resumable state from §4.7/§6.
type DeepCrawlSnapshot struct {
	Strategy DeepCrawlKind  `json:"strategy"`
	Visited  []string       `json:"visited"`
	Frontier []FrontierNode `json:"frontier"`
	Stats    DeepCrawlStats `json:"stats"`
}

// DeepCrawlStats accumulates simple counters surfaced alongside a snapshot.
type DeepCrawlStats struct {
	PagesCrawled int `json:"pages_crawled"`
	PagesFailed  int `json:"pages_failed"`
}

// DeepCrawlStateChangeFunc is invoked after each node completes, primarily
// for real-time snapshot persistence.
type DeepCrawlStateChangeFunc func(snapshot DeepCrawlSnapshot)

// DeepCrawlStrategyConfig configures a deep crawl run. It lives in model
// (rather than the deepcrawl package, which implements the traversal loop)
// so that RunConfig can reference it without deepcrawl importing model
// circularly.
type DeepCrawlStrategyConfig struct {
	Kind            DeepCrawlKind
	MaxDepth        int
	MaxPages        int
	Scope           CrawlScope
	IncludePatterns []string
	ExcludePatterns []string
	Query           string // BM25 query for DeepCrawlBestFirst scoring
	ResumeState     *DeepCrawlSnapshot
	OnStateChange   DeepCrawlStateChangeFunc
	DedupeSimilarity bool // opt-in near-duplicate skip via simhash, off by default
	SimilarityThreshold int
}
