package filter

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/crawl4go/llmclient"
	"github.com/use-agent/crawl4go/model"
)

// LLMFilter submits candidate blocks to an LLM caller with a user
// instruction and keeps only model-approved blocks. Large inputs are
// chunked by ChunkTokenThreshold so each chunk can be dispatched
// independently.
type LLMFilter struct {
	params llmclient.Params
	caller llmclient.Caller
	instruction string
	chunkTokenThreshold int
}

// NewLLMFilter builds an LLMFilter bound to a concrete Caller and LLM params.
func NewLLMFilter(caller llmclient.Caller, params llmclient.Params, filterParams model.LLMFilterParams) *LLMFilter {
	return &LLMFilter{
		params:              params,
		caller:              caller,
		instruction:         filterParams.Instruction,
		chunkTokenThreshold: filterParams.ChunkTokenThreshold,
	}
}

// Apply chunks cleanedHTML's top-level blocks, asks the LLM which blocks to
// keep, and returns the concatenation of the approved ones.
func (f *LLMFilter) Apply(ctx context.Context, cleanedHTML string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(cleanedHTML))
	if err != nil {
		return cleanedHTML, model.NewCrawlError(model.KindExtractionError, "llm filter: parse failed", err)
	}
	body := doc.Find("body")
	if body.Length() == 0 {
		return cleanedHTML, nil
	}

	var blocks []string
	body.Children().Each(func(_ int, el *goquery.Selection) {
		text := strings.TrimSpace(el.Text())
		if text == "" {
			return
		}
		html, err := goquery.OuterHtml(el)
		if err == nil {
			blocks = append(blocks, html)
		}
	})
	if len(blocks) == 0 {
		return cleanedHTML, nil
	}

	chunks := chunkBlocks(blocks, f.chunkTokenThreshold)
	var retained []string
	for _, chunk := range chunks {
		kept, err := f.filterChunk(ctx, chunk)
		if err != nil {
			return "", err
		}
		retained = append(retained, kept...)
	}
	return strings.Join(retained, "\n"), nil
}

func (f *LLMFilter) filterChunk(ctx context.Context, blocks []string) ([]string, error) {
	system := "You select which numbered HTML blocks are relevant to the user's instruction. Reply with ONLY a comma-separated list of the block numbers to KEEP, e.g. \"1,3,4\". If none are relevant, reply \"none\"."
	var b strings.Builder
	for i, block := range blocks {
		fmt.Fprintf(&b, "Block %d:\n%s\n\n", i+1, block)
	}
	user := fmt.Sprintf("Instruction: %s\n\n%s", f.instruction, b.String())

	out, _, err := f.caller.Complete(ctx, system, user, f.params)
	if err != nil {
		return nil, model.NewCrawlError(model.KindExtractionError, "llm content filter call failed", err)
	}
	out = strings.TrimSpace(out)
	if out == "" || strings.EqualFold(out, "none") {
		return nil, nil
	}

	keep := make(map[int]bool)
	for _, tok := range strings.Split(out, ",") {
		tok = strings.TrimSpace(tok)
		n := 0
		for _, r := range tok {
			if r < '0' || r > '9' {
				n = -1
				break
			}
			n = n*10 + int(r-'0')
		}
		if n >= 1 {
			keep[n] = true
		}
	}

	var result []string
	for i, block := range blocks {
		if keep[i+1] {
			result = append(result, block)
		}
	}
	return result, nil
}

// chunkBlocks groups blocks into chunks whose combined byte length stays
// under a token budget (approximated as ~4 bytes/token), so each chunk can
// be sent to the LLM as its own call; Apply sends them one after another.
func chunkBlocks(blocks []string, chunkTokenThreshold int) [][]string {
	if chunkTokenThreshold <= 0 {
		return [][]string{blocks}
	}
	budget := chunkTokenThreshold * 4
	var chunks [][]string
	var current []string
	size := 0
	for _, b := range blocks {
		if size+len(b) > budget && len(current) > 0 {
			chunks = append(chunks, current)
			current = nil
			size = 0
		}
		current = append(current, b)
		size += len(b)
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}
