package content

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"

	"github.com/use-agent/crawl4go/model"
)

// MarkdownGenerator converts HTML to Markdown deterministically and produces
// the citation-rewritten variant. A single instance's converter is reused
// across calls; it is goroutine-safe.
type MarkdownGenerator struct {
	conv *converter.Converter
}

// NewMarkdownGenerator builds the shared html-to-markdown converter, LLM
// output optimized: base plugin strips script/style/noscript noise,
// commonmark renders standard Markdown, table preserves tabular structure
// with minimal cell padding.
func NewMarkdownGenerator() *MarkdownGenerator {
	return &MarkdownGenerator{
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(
					table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
				),
			),
		),
	}
}

// Generate converts htmlContent (chosen by cfg.ContentSource upstream in the
// pipeline) to the Markdown sub-record, including the citation rewrite.
func (g *MarkdownGenerator) Generate(htmlContent, domain string) (model.Markdown, error) {
	raw, err := g.conv.ConvertString(htmlContent, converter.WithDomain(domain))
	if err != nil {
		return model.Markdown{}, model.NewCrawlError(model.KindExtractionError, "markdown conversion failed", err)
	}
	withCitations, references := ConvertToCitations(raw)
	return model.Markdown{
		RawMarkdown:           raw,
		MarkdownWithCitations: withCitations,
		ReferencesMarkdown:    references,
	}, nil
}

var inlineLinkRe = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)

// ConvertToCitations rewrites inline Markdown links `[text](url)` into
// `[text][n]` reference form, returning the rewritten body and the separate
// references block. Duplicate URLs reuse the same reference number, and
// order is stable by first occurrence — this is the inverse operation
// invariant 331 (the round-trip test) exercises.
func ConvertToCitations(markdown string) (body, references string) {
	urlToNum := make(map[string]int)
	var refs []string
	counter := 0

	body = inlineLinkRe.ReplaceAllStringFunc(markdown, func(match string) string {
		parts := inlineLinkRe.FindStringSubmatch(match)
		if len(parts) != 3 {
			return match
		}
		text, url := parts[1], parts[2]
		num, exists := urlToNum[url]
		if !exists {
			counter++
			num = counter
			urlToNum[url] = num
			refs = append(refs, fmt.Sprintf("[%d]: %s", num, url))
		}
		return fmt.Sprintf("[%s][%d]", text, num)
	})

	if len(refs) == 0 {
		return markdown, ""
	}
	return body, strings.Join(refs, "\n")
}
