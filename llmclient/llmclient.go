// Package llmclient defines the "LLM caller" contract the core consumes
// (spec §1: LLM provider HTTP clients are an external collaborator) and
// ships one concrete OpenAI-compatible implementation so the core is usable
// out of the box.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/use-agent/crawl4go/model"
)

// Caller is the contract extract.LLMStrategy and filter.LLMFilter depend on.
// Implementers may substitute any provider.
type Caller interface {
	// Complete sends systemPrompt + userContent to the model and returns the
	// raw text completion plus token usage. It does not interpret the
	// response; callers decide how to parse it (JSON schema vs free text).
	Complete(ctx context.Context, systemPrompt, userContent string, params Params) (string, model.LLMUsage, error)
}

// Params is the per-call LLM configuration (bring-your-own-key).
type Params struct {
	APIKey      string
	Model       string
	BaseURL     string // e.g. "https://api.openai.com/v1"
	JSONMode    bool
	Temperature float64
}

// Client is a lightweight OpenAI-compatible chat-completions client. It uses
// net/http directly, matching the teacher's llm package — no SDK needed for
// a single-endpoint BYOK integration.
type Client struct {
	httpClient *http.Client
}

// NewClient builds a Client. Pass nil to use a new zero-value http.Client
// (no timeout).
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{httpClient: httpClient}
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete implements Caller.
func (c *Client) Complete(ctx context.Context, systemPrompt, userContent string, params Params) (string, model.LLMUsage, error) {
	reqBody := chatRequest{
		Model: params.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userContent},
		},
		Temperature: params.Temperature,
	}
	if params.JSONMode {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", model.LLMUsage{}, model.NewCrawlError(model.KindExtractionError, "marshal LLM request", err)
	}

	endpoint := strings.TrimRight(params.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", model.LLMUsage{}, model.NewCrawlError(model.KindExtractionError, "build LLM request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+params.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", model.LLMUsage{}, model.NewCrawlError(model.KindExtractionError, "LLM request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", model.LLMUsage{}, model.NewCrawlError(model.KindExtractionError, "read LLM response", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp chatErrorResponse
		msg := "LLM API error"
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error.Message != "" {
			msg = errResp.Error.Message
		}
		return "", model.LLMUsage{}, model.NewCrawlError(model.KindExtractionError,
			fmt.Sprintf("LLM API returned %d: %s", resp.StatusCode, msg), nil)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", model.LLMUsage{}, model.NewCrawlError(model.KindExtractionError, "parse LLM response", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", model.LLMUsage{}, model.NewCrawlError(model.KindExtractionError, "LLM returned no choices", nil)
	}

	usage := model.LLMUsage{
		PromptTokens:     chatResp.Usage.PromptTokens,
		CompletionTokens: chatResp.Usage.CompletionTokens,
		TotalTokens:      chatResp.Usage.TotalTokens,
	}
	return chatResp.Choices[0].Message.Content, usage, nil
}

// GenerateRegexPattern is the one-shot LLM utility from §4.3: given a sample
// page and a natural-language query, it asks the model for a single Go
// regular expression and caches nothing itself — callers persist the result
// (e.g. to disk) so extraction time never invokes the LLM again.
func GenerateRegexPattern(ctx context.Context, caller Caller, params Params, sampleText, query string) (string, error) {
	system := "You generate a single Go-compatible regular expression (RE2 syntax) that matches the user's described pattern in sample text. Reply with ONLY the regular expression, no commentary, no code fences."
	user := fmt.Sprintf("Sample text:\n%s\n\nPattern to match: %s", sampleText, query)
	out, _, err := caller.Complete(ctx, system, user, params)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
