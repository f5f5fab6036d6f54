package content

import (
	"context"

	"github.com/use-agent/crawl4go/extract"
	"github.com/use-agent/crawl4go/filter"
	"github.com/use-agent/crawl4go/llmclient"
	"github.com/use-agent/crawl4go/model"
)

// Pipeline runs §4.2 end to end: scraping/cleaning, link & media extraction,
// markdown generation, optional content filter, optional extraction
// strategy.
type Pipeline struct {
	scraper  *Scraper
	markdown *MarkdownGenerator
	caller   llmclient.Caller
	llmParams llmclient.Params
}

// NewPipeline builds a Pipeline. caller may be nil if no RunConfig in this
// process ever configures an LLM-backed filter or extraction strategy.
func NewPipeline(caller llmclient.Caller, llmParams llmclient.Params) *Pipeline {
	return &Pipeline{
		scraper:   NewScraper(),
		markdown:  NewMarkdownGenerator(),
		caller:    caller,
		llmParams: llmParams,
	}
}

// Run executes all five steps and fills the content-pipeline fields of
// result in place. rawHTML and finalURL come from the fetch orchestrator.
func (p *Pipeline) Run(ctx context.Context, rawHTML, finalURL string, cfg *model.RunConfig, result *model.CrawlResult) error {
	// Step 1: scraping/cleaning.
	clean, err := p.scraper.Clean(rawHTML, finalURL, cfg)
	if err != nil {
		return err
	}
	result.CleanedHTML = clean.CleanedHTML
	result.Metadata = clean.Metadata
	result.Tables = clean.Tables

	// Step 2: link & media extraction, over CleanedHTML — it already carries
	// excluded_tags/excluded_selector/remove_forms/overlay removal and, when
	// css_selector is set, that narrowing too, per the rule that css_selector
	// narrows everything downstream of step 1.
	links, media, err := ExtractLinksAndMedia(clean.CleanedHTML, finalURL, cfg)
	if err != nil {
		return err
	}
	result.Links = links
	result.Media = media

	// Narrow the markdown/extraction input per target_elements (css_selector
	// already narrowed CleanedHTML itself in step 1).
	narrowedHTML, err := NarrowToTargetElements(clean.CleanedHTML, cfg.TargetElements)
	if err != nil {
		return err
	}

	// Step 4 runs before step 3's fit_markdown generation since fit_html is
	// an input choice for the markdown generator.
	var fitHTML string
	var hasFilter bool
	if cfg.MarkdownGenerator.ContentFilter != nil {
		fitHTML, hasFilter, err = filter.Run(ctx, cfg.MarkdownGenerator.ContentFilter, p.caller, p.llmParams, narrowedHTML)
		if err != nil {
			return err
		}
		result.FitHTML = fitHTML
	}

	// Step 3: markdown generation.
	mdInput := narrowedHTML
	switch cfg.MarkdownGenerator.ContentSource {
	case model.SourceRawHTML:
		mdInput = rawHTML
	case model.SourceFitHTML:
		if hasFilter {
			mdInput = fitHTML
		}
	}
	md, err := p.markdown.Generate(mdInput, finalURL)
	if err != nil {
		return err
	}

	if hasFilter {
		fitMD, err := p.markdown.Generate(fitHTML, finalURL)
		if err != nil {
			return err
		}
		md.FitMarkdown = &fitMD.RawMarkdown
		md.FitHTML = &fitHTML
	}
	result.Markdown = md

	// Step 5: extraction.
	if cfg.ExtractionStrategy != nil {
		fitMD := ""
		if md.FitMarkdown != nil {
			fitMD = *md.FitMarkdown
		}
		extracted, err := extract.Run(ctx, cfg.ExtractionStrategy, p.caller, p.llmParams, extract.Input{
			Markdown:    md.RawMarkdown,
			HTML:        narrowedHTML,
			FitMarkdown: fitMD,
			SourceURL:   finalURL,
		})
		if err != nil {
			return err
		}
		result.ExtractedContent = extracted
	}

	return nil
}
