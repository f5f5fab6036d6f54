package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/use-agent/crawl4go/model"
	"github.com/use-agent/crawl4go/urlhandle"
)

// contentAffecting is the subset of RunConfig whose fields change the bytes
// a fetch would produce. Delivery-only fields (Stream, Verbose,
// SemaphoreCount, CacheMode itself, session/proxy selection, ...) are
// deliberately excluded: two runs that differ only in those fields must
// still hit the same cache entry.
type contentAffecting struct {
	CSSSelector        string
	TargetElements     []string
	ExcludedTags       []string
	ExcludedSelector   string
	KeepDataAttributes bool
	RemoveForms        bool
	OnlyText           bool

	ExcludeExternalLinks          bool
	ExcludeSocialMediaLinks       bool
	ExcludeDomains                []string
	ExcludeExternalImages         bool
	ExcludeAllImages              bool
	PreserveHTTPSForInternalLinks bool

	JSCode         []string
	JSOnly         bool
	WaitFor        string
	WaitUntil      model.WaitUntil
	ScanFullPage   bool
	ProcessIframes bool
	Magic          bool

	Screenshot   bool
	PDF          bool
	CaptureMHTML bool

	WordCountThreshold int
	MarkdownGenerator  model.MarkdownGeneratorConfig
	ExtractionStrategy *model.ExtractionStrategy
}

// Fingerprint derives the cache key for url under cfg: the canonicalized
// URL plus a hash of every content-affecting RunConfig field, per §4.5.
// ExtractionStrategy and MarkdownGenerator.ContentFilter carry function
// values (CustomTransform, Predicate) that json.Marshal cannot serialize
// directly, so those are reduced to a structural description first.
func Fingerprint(rawURL string, cfg *model.RunConfig) string {
	canon := urlhandle.Canonicalize(rawURL)

	h := sha256.New()
	h.Write([]byte(canon))
	h.Write([]byte{0})

	if cfg != nil {
		ca := contentAffecting{
			CSSSelector:                   cfg.CSSSelector,
			TargetElements:                cfg.TargetElements,
			ExcludedTags:                  cfg.ExcludedTags,
			ExcludedSelector:              cfg.ExcludedSelector,
			KeepDataAttributes:            cfg.KeepDataAttributes,
			RemoveForms:                   cfg.RemoveForms,
			OnlyText:                      cfg.OnlyText,
			ExcludeExternalLinks:          cfg.ExcludeExternalLinks,
			ExcludeSocialMediaLinks:       cfg.ExcludeSocialMediaLinks,
			ExcludeDomains:                cfg.ExcludeDomains,
			ExcludeExternalImages:         cfg.ExcludeExternalImages,
			ExcludeAllImages:              cfg.ExcludeAllImages,
			PreserveHTTPSForInternalLinks: cfg.PreserveHTTPSForInternalLinks,
			JSCode:                        cfg.JSCode,
			JSOnly:                        cfg.JSOnly,
			WaitFor:                       cfg.WaitFor,
			WaitUntil:                     cfg.WaitUntil,
			ScanFullPage:                  cfg.ScanFullPage,
			ProcessIframes:                cfg.ProcessIframes,
			Magic:                         cfg.Magic,
			Screenshot:                    cfg.Screenshot,
			PDF:                           cfg.PDF,
			CaptureMHTML:                  cfg.CaptureMHTML,
			WordCountThreshold:            cfg.WordCountThreshold,
			MarkdownGenerator:             describeMarkdownGenerator(cfg.MarkdownGenerator),
			ExtractionStrategy:            describeExtractionStrategy(cfg.ExtractionStrategy),
		}
		b, _ := json.Marshal(ca)
		h.Write(b)
	}

	return hex.EncodeToString(h.Sum(nil))
}

// describeMarkdownGenerator copies the ContentFilter's param structs (none
// carry func-typed fields today, but a custom stemming hook could add one)
// while keeping everything that changes markdown bytes.
func describeMarkdownGenerator(mg model.MarkdownGeneratorConfig) model.MarkdownGeneratorConfig {
	out := mg
	if mg.ContentFilter == nil {
		return out
	}
	cf := &model.ContentFilter{}
	if mg.ContentFilter.Pruning != nil {
		p := *mg.ContentFilter.Pruning
		cf.Pruning = &p
	}
	if mg.ContentFilter.BM25 != nil {
		b := *mg.ContentFilter.BM25
		cf.BM25 = &b
	}
	if mg.ContentFilter.LLM != nil {
		l := *mg.ContentFilter.LLM
		cf.LLM = &l
	}
	out.ContentFilter = cf
	return out
}

// describeExtractionStrategy returns a shallow copy of es for hashing. The
// only closure it can carry, SchemaField.CustomTransform, is tagged
// json:"-" and so is left out of the marshaled key. Presence and shape of
// the strategy still change extracted_content, so they contribute to the
// key even though the closure itself is not hashed.
func describeExtractionStrategy(es *model.ExtractionStrategy) *model.ExtractionStrategy {
	if es == nil {
		return nil
	}
	cp := *es
	return &cp
}
