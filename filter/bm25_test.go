package filter

import (
	"strings"
	"testing"

	"github.com/use-agent/crawl4go/model"
)

const bm25TestHTML = `<html><body>
<div>Go is a statically typed, compiled programming language designed at Google.</div>
<div>Bananas are a good source of potassium and are popular at breakfast.</div>
<div>The Go programming language supports garbage collection and concurrency.</div>
</body></html>`

func TestBM25FilterKeepsRelevantBlocks(t *testing.T) {
	f := NewBM25Filter(model.BM25FilterParams{UserQuery: "go programming language", Threshold: 0.1})
	out, err := f.Apply(bm25TestHTML)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !strings.Contains(out, "Google") {
		t.Error("expected the first Go-related block to survive filtering")
	}
	if strings.Contains(out, "Bananas") {
		t.Error("expected the unrelated banana block to be filtered out")
	}
}

func TestBM25FilterEmptyQueryReturnsInputUnchanged(t *testing.T) {
	f := NewBM25Filter(model.BM25FilterParams{UserQuery: "", Threshold: 0})
	out, err := f.Apply(bm25TestHTML)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out != bm25TestHTML {
		t.Error("expected an empty query to return the input unchanged")
	}
}

func TestBM25FilterNoBodyReturnsInputUnchanged(t *testing.T) {
	f := NewBM25Filter(model.BM25FilterParams{UserQuery: "go", Threshold: 0})
	out, err := f.Apply("<div>no body tag here</div>")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !strings.Contains(out, "no body tag here") {
		t.Errorf("expected passthrough for html with no body, got %q", out)
	}
}

func TestScoreLinkRelevanceHigherForMatchingText(t *testing.T) {
	relevant := ScoreLinkRelevance("Learn the Go programming language", "go programming", false)
	irrelevant := ScoreLinkRelevance("Buy fresh bananas online", "go programming", false)
	if relevant <= irrelevant {
		t.Errorf("expected relevant link text to score higher: relevant=%f irrelevant=%f", relevant, irrelevant)
	}
}

func TestScoreLinkRelevanceEmptyInputsScoreZero(t *testing.T) {
	if got := ScoreLinkRelevance("", "query", false); got != 0 {
		t.Errorf("ScoreLinkRelevance with empty text = %f, want 0", got)
	}
	if got := ScoreLinkRelevance("some text", "", false); got != 0 {
		t.Errorf("ScoreLinkRelevance with empty query = %f, want 0", got)
	}
}

func TestTokenizeWithStemming(t *testing.T) {
	tokens := tokenize("running dogs and cats", true)
	want := []string{"runn", "dog", "and", "cat"}
	if len(tokens) != len(want) {
		t.Fatalf("got %v, want %v", tokens, want)
	}
	for i, w := range want {
		if tokens[i] != w {
			t.Errorf("tokens[%d] = %q, want %q", i, tokens[i], w)
		}
	}
}
