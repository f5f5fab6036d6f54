package filter

import (
	"context"

	"github.com/use-agent/crawl4go/llmclient"
	"github.com/use-agent/crawl4go/model"
)

// Run dispatches cfg's content filter variant over cleanedHTML and returns
// the filtered fragment (fit_html). It returns ("", false, nil) when cfg is
// nil, matching invariant 2: fit_markdown/fit_html stay nil when no filter
// is configured.
func Run(ctx context.Context, cfg *model.ContentFilter, caller llmclient.Caller, llmParams llmclient.Params, cleanedHTML string) (string, bool, error) {
	if cfg == nil {
		return "", false, nil
	}
	switch {
	case cfg.Pruning != nil:
		out, err := NewPruningFilter(*cfg.Pruning).Apply(cleanedHTML)
		return out, true, err
	case cfg.BM25 != nil:
		out, err := NewBM25Filter(*cfg.BM25).Apply(cleanedHTML)
		return out, true, err
	case cfg.LLM != nil:
		out, err := NewLLMFilter(caller, llmParams, *cfg.LLM).Apply(ctx, cleanedHTML)
		return out, true, err
	default:
		return "", false, nil
	}
}
