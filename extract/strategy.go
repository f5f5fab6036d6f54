package extract

import (
	"context"

	"github.com/use-agent/crawl4go/llmclient"
	"github.com/use-agent/crawl4go/model"
)

// Input bundles the three representations an extraction strategy may read
// from, selected by ExtractionStrategy.InputFormat.
type Input struct {
	Markdown    string
	HTML        string // cleaned_html
	FitMarkdown string
	SourceURL   string
}

func (in Input) pick(format model.ContentSource) string {
	switch format {
	case model.SourceRawHTML, model.SourceCleanedHTML:
		return in.HTML
	case model.SourceFitHTML:
		if in.FitMarkdown != "" {
			return in.FitMarkdown
		}
		return in.HTML
	default:
		return in.Markdown
	}
}

// Run dispatches cfg's extraction variant and returns the JSON-serialized
// extracted_content, or ("", nil) if cfg is nil.
func Run(ctx context.Context, cfg *model.ExtractionStrategy, caller llmclient.Caller, llmParams llmclient.Params, in Input) (string, error) {
	if cfg == nil {
		return "", nil
	}
	input := in.pick(cfg.InputFormat)

	switch {
	case cfg.SchemaCSS != nil:
		return NewSchemaStrategy(*cfg.SchemaCSS, DialectCSS).Run(input)
	case cfg.SchemaXPath != nil:
		return NewSchemaStrategy(*cfg.SchemaXPath, DialectXPath).Run(input)
	case cfg.Regex != nil:
		return NewRegexStrategy(*cfg.Regex).Run(in.SourceURL, input)
	case cfg.LLM != nil:
		return NewLLMStrategy(*cfg.LLM, caller, llmParams).Run(ctx, input)
	default:
		return "", nil
	}
}
