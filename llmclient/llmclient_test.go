package llmclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/use-agent/crawl4go/model"
)

func TestClientCompleteSendsRequestAndParsesResponse(t *testing.T) {
	var gotAuth, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"hello there"}}],"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`))
	}))
	defer server.Close()

	c := NewClient(nil)
	out, usage, err := c.Complete(context.Background(), "system prompt", "user content", Params{
		APIKey: "secret-key", Model: "gpt-4o-mini", BaseURL: server.URL,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "hello there" {
		t.Errorf("out = %q, want %q", out, "hello there")
	}
	if usage.PromptTokens != 5 || usage.CompletionTokens != 2 || usage.TotalTokens != 7 {
		t.Errorf("usage = %+v", usage)
	}
	if gotAuth != "Bearer secret-key" {
		t.Errorf("Authorization header = %q", gotAuth)
	}
	var req chatRequest
	if err := json.Unmarshal([]byte(gotBody), &req); err != nil {
		t.Fatalf("unmarshal request body: %v", err)
	}
	if req.Model != "gpt-4o-mini" || len(req.Messages) != 2 {
		t.Errorf("request = %+v", req)
	}
}

func TestClientCompleteSetsJSONResponseFormatWhenRequested(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Write([]byte(`{"choices":[{"message":{"content":"{}"}}]}`))
	}))
	defer server.Close()

	c := NewClient(nil)
	if _, _, err := c.Complete(context.Background(), "s", "u", Params{BaseURL: server.URL, JSONMode: true}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !strings.Contains(gotBody, `"response_format":{"type":"json_object"}`) {
		t.Errorf("expected a json_object response_format in the request body, got %q", gotBody)
	}
}

func TestClientCompleteReturnsErrorOnNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer server.Close()

	c := NewClient(nil)
	_, _, err := c.Complete(context.Background(), "s", "u", Params{BaseURL: server.URL})
	if err == nil {
		t.Fatal("expected an error for a 401 response")
	}
	if !strings.Contains(err.Error(), "invalid api key") {
		t.Errorf("expected the upstream error message to be surfaced, got %v", err)
	}
}

func TestClientCompleteReturnsErrorOnNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	c := NewClient(nil)
	_, _, err := c.Complete(context.Background(), "s", "u", Params{BaseURL: server.URL})
	if err == nil {
		t.Fatal("expected an error when the response has no choices")
	}
}

var errBoom = errors.New("boom")

type trimCaller struct {
	response string
	err      error
}

func (c *trimCaller) Complete(ctx context.Context, systemPrompt, userContent string, params Params) (string, model.LLMUsage, error) {
	if c.err != nil {
		return "", model.LLMUsage{}, c.err
	}
	return c.response, model.LLMUsage{}, nil
}

func TestGenerateRegexPatternTrimsWhitespace(t *testing.T) {
	caller := &trimCaller{response: "  \\d{3}-\\d{4}  \n"}
	got, err := GenerateRegexPattern(context.Background(), caller, Params{}, "call 555-1234", "a phone extension")
	if err != nil {
		t.Fatalf("GenerateRegexPattern: %v", err)
	}
	if got != `\d{3}-\d{4}` {
		t.Errorf("got %q", got)
	}
}

func TestGenerateRegexPatternPropagatesCallerError(t *testing.T) {
	caller := &trimCaller{err: errBoom}
	if _, err := GenerateRegexPattern(context.Background(), caller, Params{}, "sample", "query"); err == nil {
		t.Fatal("expected the caller's error to propagate")
	}
}
