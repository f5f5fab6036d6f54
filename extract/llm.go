package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/use-agent/crawl4go/llmclient"
	"github.com/use-agent/crawl4go/model"
)

// LLMStrategy runs §4.3's LLM-based extraction: schema mode (model must
// return JSON matching a JSON Schema) or block mode (freeform chunks),
// chunking large inputs and merging results.
type LLMStrategy struct {
	cfg    model.LLMExtraction
	caller llmclient.Caller
	params llmclient.Params
}

// NewLLMStrategy builds an LLMStrategy bound to a concrete Caller.
func NewLLMStrategy(cfg model.LLMExtraction, caller llmclient.Caller, params llmclient.Params) *LLMStrategy {
	params.Model = cfg.Model
	params.JSONMode = cfg.Type == model.LLMExtractSchema
	return &LLMStrategy{cfg: cfg, caller: caller, params: params}
}

// Run chunks input by ChunkTokenThreshold/OverlapRate, dispatches each chunk
// to the LLM caller, and merges results: array concatenation for schema
// mode, block concatenation for freeform mode.
func (s *LLMStrategy) Run(ctx context.Context, input string) (string, error) {
	chunks := chunkText(input, s.cfg.ChunkTokenThreshold, s.cfg.OverlapRate)

	system := s.systemPrompt()

	if s.cfg.Type == model.LLMExtractBlock {
		var blocks []string
		for _, chunk := range chunks {
			out, _, err := s.caller.Complete(ctx, system, chunk, s.params)
			if err != nil {
				return "", model.NewCrawlError(model.KindExtractionError, "llm extraction call failed", err)
			}
			blocks = append(blocks, strings.TrimSpace(out))
		}
		b, err := json.Marshal(blocks)
		if err != nil {
			return "", model.NewCrawlError(model.KindExtractionError, "failed to serialize llm blocks", err)
		}
		return string(b), nil
	}

	var merged []json.RawMessage
	for _, chunk := range chunks {
		out, _, err := s.caller.Complete(ctx, system, chunk, s.params)
		if err != nil {
			return "", model.NewCrawlError(model.KindExtractionError, "llm extraction call failed", err)
		}
		if !json.Valid([]byte(out)) {
			return "", model.NewCrawlError(model.KindExtractionError, "llm returned invalid JSON", nil)
		}

		var asArray []json.RawMessage
		if json.Unmarshal([]byte(out), &asArray) == nil {
			merged = append(merged, asArray...)
			continue
		}
		merged = append(merged, json.RawMessage(out))
	}

	if len(chunks) == 1 && len(merged) == 1 {
		return string(merged[0]), nil
	}
	b, err := json.Marshal(merged)
	if err != nil {
		return "", model.NewCrawlError(model.KindExtractionError, "failed to serialize llm schema results", err)
	}
	return string(b), nil
}

func (s *LLMStrategy) systemPrompt() string {
	if s.cfg.Type == model.LLMExtractBlock {
		if s.cfg.Instruction != "" {
			return s.cfg.Instruction
		}
		return "Extract the relevant content as freeform text."
	}
	schemaJSON, _ := json.Marshal(s.cfg.JSONSchema)
	return fmt.Sprintf(`You are a structured data extraction assistant. Extract information from the provided content and return it as JSON matching the following schema.

Schema:
%s

Instruction: %s

Rules:
- Return ONLY valid JSON, no markdown fences or explanation.
- If a field cannot be found in the content, use null.`, string(schemaJSON), s.cfg.Instruction)
}

// chunkText splits input into chunks of at most chunkTokenThreshold tokens
// (approximated at ~4 chars/token), each overlapping the previous by
// overlapRate of its length, per §4.3.
func chunkText(input string, chunkTokenThreshold int, overlapRate float64) []string {
	if chunkTokenThreshold <= 0 {
		return []string{input}
	}
	runes := []rune(input)
	budget := chunkTokenThreshold * 4
	if budget >= len(runes) {
		return []string{input}
	}
	overlap := int(float64(budget) * overlapRate)
	if overlap >= budget {
		overlap = budget / 2
	}

	var chunks []string
	for start := 0; start < len(runes); {
		end := start + budget
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
		start = end - overlap
	}
	return chunks
}

func estimateTokens(s string) int {
	n := utf8.RuneCountInString(s)
	if n == 0 {
		return 0
	}
	if n/4 < 1 {
		return 1
	}
	return n / 4
}
