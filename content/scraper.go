// Package content implements the deterministic HTML->(cleaned HTML,
// Markdown, media/link graph) transformation described as the content
// pipeline, plus its filtering and extraction steps.
package content

import (
	"bytes"
	nurl "net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"github.com/use-agent/crawl4go/model"
)

// overlayClassPatterns mirrors the class/id substrings the browser-side
// overlay remover targets, adapted for a DOM walk instead of computed style
// (static HTML has no CSSOM to resolve against).
var overlayClassPatterns = []string{
	"cookie", "consent", "overlay", "popup", "gdpr", "modal",
}

var inlineZIndexRe = regexp.MustCompile(`z-index\s*:\s*(-?\d+|auto)`)
var inlinePositionRe = regexp.MustCompile(`position\s*:\s*(fixed|sticky|absolute)`)

const overlayZIndexThreshold = 900

// Scraper performs step 1 (scraping/cleaning) of the content pipeline over
// parsed HTML; step 2 (link/media extraction) is ExtractLinksAndMedia.
type Scraper struct{}

// NewScraper constructs a Scraper. It holds no state: goquery documents are
// built per call, so a Scraper is safe for concurrent use.
func NewScraper() *Scraper { return &Scraper{} }

// CleanResult is the output of Clean: the cleaned HTML plus the metadata
// harvested while walking the DOM.
type CleanResult struct {
	CleanedHTML string
	Metadata    model.Metadata
	Tables      []model.Table
}

// Clean runs §4.2 step 1 over rawHTML according to the selection fields of
// cfg, returning cleaned_html and page metadata.
func (s *Scraper) Clean(rawHTML, sourceURL string, cfg *model.RunConfig) (*CleanResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, model.NewCrawlError(model.KindExtractionError, "failed to parse HTML", err)
	}

	meta := extractMetadata(doc, sourceURL)
	fillMetadataFromReadability(&meta, rawHTML, sourceURL)
	tables := extractTables(doc)

	if cfg.ProcessIframes {
		inlineIframesNoop(doc)
	}

	for _, tag := range cfg.ExcludedTags {
		doc.Find(tag).Remove()
	}
	if cfg.ExcludedSelector != "" {
		doc.Find(cfg.ExcludedSelector).Remove()
	}
	if cfg.RemoveForms {
		doc.Find("form").Remove()
	}
	if cfg.RemoveOverlayElements {
		removeOverlayNodes(doc)
	}
	if !cfg.KeepDataAttributes {
		stripDataAttributes(doc)
	}

	var cleanedHTML string
	if cfg.OnlyText {
		cleanedHTML = strings.TrimSpace(doc.Find("body").Text())
	} else {
		cleanedHTML, err = doc.Find("body").Html()
		if err != nil {
			return nil, model.NewCrawlError(model.KindExtractionError, "failed to serialize cleaned HTML", err)
		}
	}

	if cfg.CSSSelector != "" {
		narrowed, err := ApplyCSSSelector(cleanedHTML, cfg.CSSSelector)
		if err == nil {
			cleanedHTML = narrowed
		}
	}

	return &CleanResult{CleanedHTML: cleanedHTML, Metadata: meta, Tables: tables}, nil
}

// ApplyCSSSelector returns the concatenated outer HTML of every element
// matching selector, or rawHTML unchanged if nothing matches. Grounded
// directly on cleaner/selector.go's cascadia.Parse+QueryAll pair.
func ApplyCSSSelector(rawHTML, selector string) (string, error) {
	return applySelectors(rawHTML, []string{selector})
}

// NarrowToTargetElements unions the outer HTML of every CSS match in
// targetElements, for feeding markdown generation/extraction without
// disturbing link/media extraction (which always sees the un-narrowed HTML).
func NarrowToTargetElements(cleanedHTML string, targetElements []string) (string, error) {
	if len(targetElements) == 0 {
		return cleanedHTML, nil
	}
	return applySelectors(cleanedHTML, targetElements)
}

// applySelectors unions the matches of every selector in selectors (each
// itself possibly a comma-separated CSS selector list) over rawHTML, using
// cascadia directly rather than goquery so a single node matched by more
// than one selector is rendered only once.
func applySelectors(rawHTML string, selectors []string) (string, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", err
	}

	var matches []*html.Node
	seen := make(map[*html.Node]bool)
	for _, raw := range selectors {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			sel, err := cascadia.Parse(part)
			if err != nil {
				continue
			}
			for _, node := range cascadia.QueryAll(doc, sel) {
				if !seen[node] {
					seen[node] = true
					matches = append(matches, node)
				}
			}
		}
	}
	if len(matches) == 0 {
		return rawHTML, nil
	}

	var buf bytes.Buffer
	for _, node := range matches {
		if err := html.Render(&buf, node); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

func removeOverlayNodes(doc *goquery.Document) {
	doc.Find("*").Each(func(_ int, sel *goquery.Selection) {
		style, _ := sel.Attr("style")
		if style == "" {
			return
		}
		if !inlinePositionRe.MatchString(style) {
			return
		}
		m := inlineZIndexRe.FindStringSubmatch(style)
		highZ := m != nil && (m[1] == "auto" || parseIntDefault(m[1], 0) >= overlayZIndexThreshold)
		if highZ {
			sel.Remove()
		}
	})
	var selectors []string
	for _, pat := range overlayClassPatterns {
		selectors = append(selectors, `[class*="`+pat+`"]`, `[id*="`+pat+`"]`)
	}
	doc.Find(strings.Join(selectors, ", ")).Remove()
}

func stripDataAttributes(doc *goquery.Document) {
	doc.Find("*").Each(func(_ int, sel *goquery.Selection) {
		if len(sel.Nodes) == 0 {
			return
		}
		node := sel.Nodes[0]
		kept := node.Attr[:0]
		for _, a := range node.Attr {
			if strings.HasPrefix(a.Key, "data-") {
				continue
			}
			kept = append(kept, a)
		}
		node.Attr = kept
	})
}

// inlineIframesNoop sets the content of every iframe that carries a
// non-empty data-inlined-html attribute to that attribute's HTML. It does
// not fetch iframe documents and does not descend into nested iframes, and
// no fetch strategy in this module sets data-inlined-html, so for pages
// produced by fetch.HTTPStrategy or fetch.BrowserStrategy it is a no-op.
func inlineIframesNoop(doc *goquery.Document) {
	doc.Find("iframe[data-inlined-html]").Each(func(_ int, sel *goquery.Selection) {
		inlined, _ := sel.Attr("data-inlined-html")
		if inlined == "" {
			return
		}
		sel.SetHtml(inlined)
	})
}

func extractMetadata(doc *goquery.Document, sourceURL string) model.Metadata {
	meta := model.Metadata{SourceURL: sourceURL}
	meta.Title = strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find("meta").Each(func(_ int, sel *goquery.Selection) {
		name, _ := sel.Attr("name")
		prop, _ := sel.Attr("property")
		content, _ := sel.Attr("content")
		if content == "" {
			return
		}
		switch {
		case prop == "og:title" && meta.Title == "":
			meta.Title = content
		case prop == "og:description", name == "description":
			if meta.Description == "" {
				meta.Description = content
			}
		case prop == "og:site_name":
			meta.SiteName = content
		case name == "author":
			meta.Author = content
		}
	})
	if lang, ok := doc.Find("html").First().Attr("lang"); ok {
		meta.Language = lang
	}
	return meta
}

// fillMetadataFromReadability fills any metadata fields extractMetadata
// couldn't find from <title>/OpenGraph/meta tags using Mozilla Readability's
// article-extraction heuristics, the same fallback order the teacher's
// cleaner/readability.go documents (readability only runs when something is
// actually missing, since FromReader re-parses the whole document).
func fillMetadataFromReadability(meta *model.Metadata, rawHTML, sourceURL string) {
	if meta.Title != "" && meta.Description != "" && meta.SiteName != "" && meta.Author != "" && meta.Language != "" {
		return
	}
	parsedURL, err := nurl.Parse(sourceURL)
	if err != nil {
		return
	}
	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err != nil {
		return
	}
	if meta.Title == "" {
		meta.Title = article.Title
	}
	if meta.Description == "" {
		meta.Description = article.Excerpt
	}
	if meta.SiteName == "" {
		meta.SiteName = article.SiteName
	}
	if meta.Author == "" {
		meta.Author = article.Byline
	}
	if meta.Language == "" {
		meta.Language = article.Language
	}
}

func extractTables(doc *goquery.Document) []model.Table {
	var tables []model.Table
	doc.Find("table").Each(func(_ int, t *goquery.Selection) {
		var tbl model.Table
		tbl.Caption = strings.TrimSpace(t.Find("caption").First().Text())
		t.Find("thead th").Each(func(_ int, th *goquery.Selection) {
			tbl.Headers = append(tbl.Headers, strings.TrimSpace(th.Text()))
		})
		t.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
			var row []string
			tr.Find("td").Each(func(_ int, td *goquery.Selection) {
				row = append(row, strings.TrimSpace(td.Text()))
			})
			if len(row) > 0 {
				tbl.Rows = append(tbl.Rows, row)
			}
		})
		if len(tbl.Headers) > 0 || len(tbl.Rows) > 0 {
			tables = append(tables, tbl)
		}
	})
	return tables
}

func parseIntDefault(s string, def int) int {
	n := 0
	neg := false
	for i, r := range s {
		if i == 0 && r == '-' {
			neg = true
			continue
		}
		if r < '0' || r > '9' {
			return def
		}
		n = n*10 + int(r-'0')
	}
	if neg {
		n = -n
	}
	return n
}

// renderNode serializes a parsed node back to an HTML string.
func renderNode(n *html.Node) string {
	var buf bytes.Buffer
	_ = html.Render(&buf, n)
	return buf.String()
}
