package model

import "time"

// CacheMode controls whether a run reads and/or writes the result cache.
type CacheMode string

const (
	CacheEnabled   CacheMode = "ENABLED"
	CacheBypass    CacheMode = "BYPASS"
	CacheDisabled  CacheMode = "DISABLED"
	CacheReadOnly  CacheMode = "READ_ONLY"
	CacheWriteOnly CacheMode = "WRITE_ONLY" // alias of CacheBypass, kept distinct for caller intent
)

// CacheReads reports whether the mode attempts a cache lookup before fetching.
func (m CacheMode) CacheReads() bool {
	return m == CacheEnabled || m == CacheReadOnly
}

// CacheWrites reports whether the mode persists a freshly fetched result.
func (m CacheMode) CacheWrites() bool {
	return m == CacheEnabled || m == CacheBypass || m == CacheWriteOnly
}

// WaitUntil names the browser lifecycle event navigation waits for.
type WaitUntil string

const (
	WaitLoad            WaitUntil = "load"
	WaitDOMContentLoaded WaitUntil = "domcontentloaded"
	WaitNetworkIdle     WaitUntil = "networkidle"
)

// ContentSource selects the HTML a markdown generator converts.
type ContentSource string

const (
	SourceCleanedHTML ContentSource = "cleaned_html"
	SourceRawHTML     ContentSource = "raw_html"
	SourceFitHTML     ContentSource = "fit_html"
)

// MatchMode combines multiple URL matchers in a list.
type MatchMode string

const (
	MatchOR  MatchMode = "OR"
	MatchAND MatchMode = "AND"
)

// ScrollBy expresses how far a virtual-scroll step moves the container.
type ScrollBy struct {
	ContainerHeight bool
	PageHeight      bool
	Pixels          int
}

// VirtualScrollConfig drives the union-based virtual scroll protocol.
type VirtualScrollConfig struct {
	ContainerSelector string
	ScrollCount       int
	ScrollBy          ScrollBy
	WaitAfterScroll   time.Duration
}

// MarkdownOptions are the deterministic HTML->Markdown conversion knobs.
type MarkdownOptions struct {
	IgnoreLinks       bool
	IgnoreImages      bool
	EscapeHTML        bool
	BodyWidth         int
	SkipInternalLinks bool
	SingleLineBreak   bool
	MarkCode          bool
	IncludeSupSub     bool
	IgnoreMailtoLinks bool
}

// MarkdownGeneratorConfig selects the markdown generator's input and filter.
type MarkdownGeneratorConfig struct {
	ContentSource ContentSource
	ContentFilter *ContentFilter // nil => no filter, fit_markdown/fit_html stay nil
	Options       MarkdownOptions
}

// ContentFilter is the tagged variant of the three filter strategies from
// §4.2 step 4. Exactly one of the embedded param structs is non-nil.
type ContentFilter struct {
	Pruning *PruningFilterParams
	BM25    *BM25FilterParams
	LLM     *LLMFilterParams
}

type PruningFilterParams struct {
	Threshold        float64
	Dynamic          bool
	MinWordThreshold int
}

type BM25FilterParams struct {
	UserQuery     string
	Threshold     float64
	UseStemming   bool
	Language      string
}

type LLMFilterParams struct {
	Instruction         string
	ChunkTokenThreshold int
}

// ExtractionStrategy is the tagged variant of §4.3's three extraction kinds.
// Exactly one field is non-nil.
type ExtractionStrategy struct {
	SchemaCSS   *SchemaExtraction
	SchemaXPath *SchemaExtraction
	Regex       *RegexExtraction
	LLM         *LLMExtraction
	InputFormat ContentSource // markdown | html (cleaned) | fit_markdown; html maps to SourceCleanedHTML
}

// ProxyConfig names one proxy endpoint.
type ProxyConfig struct {
	Server   string
	Username string
	Password string
}

// ProxyRotationStrategy names the dispatcher's proxy selection policy.
type ProxyRotationStrategy string

const (
	ProxyRoundRobin   ProxyRotationStrategy = "round_robin"
	ProxyRandom       ProxyRotationStrategy = "random"
	ProxyLeastUsed    ProxyRotationStrategy = "least_used"
	ProxyFailureAware ProxyRotationStrategy = "failure_aware"
)

// URLMatcher is the tagged variant backing arun_many's config routing.
// Exactly one of Glob/Predicate/List is set; List combines its members by Mode.
type URLMatcher struct {
	Glob      string
	Predicate func(url string) bool `json:"-"`
	List      []URLMatcher
	Mode      MatchMode
}

// Matches evaluates the matcher against url. A zero-value URLMatcher (no
// Glob, Predicate, or List) is a catch-all and always matches.
func (m URLMatcher) Matches(url string) bool {
	switch {
	case m.Predicate != nil:
		return m.Predicate(url)
	case len(m.List) > 0:
		if m.Mode == MatchAND {
			for _, sub := range m.List {
				if !sub.Matches(url) {
					return false
				}
			}
			return true
		}
		for _, sub := range m.List {
			if sub.Matches(url) {
				return true
			}
		}
		return false
	case m.Glob != "":
		return globMatch(m.Glob, url)
	default:
		return true
	}
}

// RunConfig is the per-crawl configuration value. It is treated as immutable
// once produced by Clone; callers must not mutate a shared instance.
type RunConfig struct {
	// Identity/base
	BaseURL   string
	SessionID string

	// Cache
	CacheMode CacheMode

	// Selection
	CSSSelector        string
	TargetElements     []string
	ExcludedTags       []string
	ExcludedSelector   string
	KeepDataAttributes bool
	RemoveForms        bool
	OnlyText           bool

	// Link/media filtering
	ExcludeExternalLinks           bool
	ExcludeSocialMediaLinks        bool
	ExcludeDomains                 []string
	ExcludeExternalImages          bool
	ExcludeAllImages               bool
	PreserveHTTPSForInternalLinks  bool
	ImageScoreThreshold            int
	ImageDescriptionMinWordThreshold int

	// Interaction
	JSCode                  []string
	JSOnly                  bool
	WaitFor                 string
	WaitUntil               WaitUntil
	PageTimeoutMs           int
	DelayBeforeReturnHTMLs  float64
	ScanFullPage            bool
	ScrollDelayS            float64
	ProcessIframes          bool
	RemoveOverlayElements   bool
	SimulateUser            bool
	OverrideNavigator       bool
	Magic                   bool
	VirtualScrollConfig     *VirtualScrollConfig
	InitScripts             []string

	// Media capture
	Screenshot          bool
	PDF                 bool
	CaptureMHTML        bool
	ScreenshotWaitForS  float64

	// Observability
	CaptureNetworkRequests bool
	CaptureConsoleMessages bool
	Verbose                bool

	// Extraction/markdown
	ExtractionStrategy *ExtractionStrategy
	MarkdownGenerator  MarkdownGeneratorConfig
	WordCountThreshold int

	// Dispatch (arun_many)
	Stream         bool
	SemaphoreCount int
	MeanDelayS     float64
	MaxRangeS      float64

	// Deep crawl
	DeepCrawlStrategy *DeepCrawlStrategyConfig

	// Proxy
	ProxyConfig           *ProxyConfig
	ProxyRotationStrategy ProxyRotationStrategy

	// URL matching
	URLMatcher *URLMatcher
	MatchMode  MatchMode

	// Compliance
	CheckRobotsTxt bool

	// Prefetch
	Prefetch bool

	// ProcessInBrowser forces raw:/file: content through the browser
	// strategy (via set_content) even when no other field requires it.
	ProcessInBrowser bool
}

// Defaults returns a RunConfig with the documented default values applied.
func Defaults() RunConfig {
	return RunConfig{
		CacheMode:          CacheEnabled,
		WaitUntil:          WaitDOMContentLoaded,
		PageTimeoutMs:      30000,
		WordCountThreshold: 10,
		SemaphoreCount:     5,
		MarkdownGenerator: MarkdownGeneratorConfig{
			ContentSource: SourceCleanedHTML,
		},
	}
}

// Clone returns a new RunConfig with each override applied in order. The
// receiver is never mutated. magic=true is normalized here into exactly the
// three flags it expands to, per the documented open question.
func (c RunConfig) Clone(overrides ...func(*RunConfig)) *RunConfig {
	cp := c
	cp.JSCode = append([]string(nil), c.JSCode...)
	cp.TargetElements = append([]string(nil), c.TargetElements...)
	cp.ExcludedTags = append([]string(nil), c.ExcludedTags...)
	cp.ExcludeDomains = append([]string(nil), c.ExcludeDomains...)
	cp.InitScripts = append([]string(nil), c.InitScripts...)
	for _, o := range overrides {
		o(&cp)
	}
	if cp.Magic {
		cp.RemoveOverlayElements = true
		cp.SimulateUser = true
		cp.OverrideNavigator = true
	}
	return &cp
}

// RequiresBrowser reports whether any field forces the browser fetch path,
// per §4.1's HTTP-fetch eligibility rule.
func (c *RunConfig) RequiresBrowser() bool {
	return len(c.JSCode) > 0 ||
		c.WaitFor != "" ||
		c.Screenshot ||
		c.PDF ||
		c.CaptureMHTML ||
		c.SessionID != "" ||
		c.VirtualScrollConfig != nil ||
		c.ScanFullPage ||
		c.JSOnly
}

// BrowserConfig is the per-session browser configuration. Immutable once
// constructed; shared across every RunConfig that uses the same browser
// context.
type BrowserConfig struct {
	BrowserType          string // chromium | firefox | webkit
	Headless             bool
	ViewportWidth        int
	ViewportHeight       int
	ProxyConfig          *ProxyConfig
	UserAgent            string
	UserAgentMode        string
	Cookies              []Cookie
	Headers              map[string]string
	ExtraArgs            []string
	IgnoreHTTPSErrors    bool
	JavaScriptEnabled    bool
	TextMode             bool
	LightMode            bool
	UsePersistentContext bool
	UserDataDir          string
	EnableStealth        bool
	AcceptDownloads      bool
	DownloadsPath        string
	StorageState         string
	CDPUrl               string
	CDPCleanupOnClose    bool
}

// Cookie is a single browser cookie as accepted by BrowserConfig.Cookies.
type Cookie struct {
	Name, Value, Domain, Path string
}

func globMatch(pattern, s string) bool {
	return globMatchRunes([]rune(pattern), []rune(s))
}

// globMatchRunes implements shell-style * and ? matching without regexp, so
// that it behaves the same regardless of any characters special to regexp
// appearing literally in a URL (e.g. '+', '(', ')').
func globMatchRunes(pattern, s []rune) bool {
	var px, sx int
	var starIdx = -1
	var matchIdx int
	for sx < len(s) {
		if px < len(pattern) && (pattern[px] == '?' || pattern[px] == s[sx]) {
			px++
			sx++
			continue
		}
		if px < len(pattern) && pattern[px] == '*' {
			starIdx = px
			matchIdx = sx
			px++
			continue
		}
		if starIdx != -1 {
			px = starIdx + 1
			matchIdx++
			sx = matchIdx
			continue
		}
		return false
	}
	for px < len(pattern) && pattern[px] == '*' {
		px++
	}
	return px == len(pattern)
}
