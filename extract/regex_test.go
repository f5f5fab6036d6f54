package extract

import (
	"encoding/json"
	"testing"

	"github.com/use-agent/crawl4go/model"
)

func TestRegexStrategyRunMatchesBuiltinPatterns(t *testing.T) {
	text := "Contact jane@example.com or call (555) 123-4567. Visit https://example.com/pricing."
	cfg := model.RegexExtraction{Patterns: model.PatternEmail | model.PatternURL}
	out, err := NewRegexStrategy(cfg).Run("https://example.com/page", text)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var matches []model.RegexMatch
	if err := json.Unmarshal([]byte(out), &matches); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	labels := map[string]bool{}
	for _, m := range matches {
		labels[m.Label] = true
		if m.URL != "https://example.com/page" {
			t.Errorf("URL = %q", m.URL)
		}
	}
	if !labels["email"] || !labels["url"] {
		t.Errorf("expected email and url labels, got %+v", matches)
	}
}

func TestRegexStrategyRunIgnoresDisabledPatterns(t *testing.T) {
	text := "email me at jane@example.com"
	cfg := model.RegexExtraction{Patterns: model.PatternURL}
	out, err := NewRegexStrategy(cfg).Run("https://example.com/", text)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	var matches []model.RegexMatch
	json.Unmarshal([]byte(out), &matches)
	if len(matches) != 0 {
		t.Errorf("expected no matches since only PatternURL was enabled, got %+v", matches)
	}
}

func TestRegexStrategyRunCustomPattern(t *testing.T) {
	cfg := model.RegexExtraction{
		CustomPatterns: []model.CustomPattern{
			{Label: "sku", Pattern: `SKU-\d{4}`},
		},
	}
	out, err := NewRegexStrategy(cfg).Run("https://example.com/", "Product SKU-1234 is in stock")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	var matches []model.RegexMatch
	json.Unmarshal([]byte(out), &matches)
	if len(matches) != 1 || matches[0].Value != "SKU-1234" || matches[0].Label != "sku" {
		t.Errorf("matches = %+v", matches)
	}
}

func TestRegexStrategyRunInvalidCustomPatternErrors(t *testing.T) {
	cfg := model.RegexExtraction{
		CustomPatterns: []model.CustomPattern{{Label: "bad", Pattern: `[`}},
	}
	if _, err := NewRegexStrategy(cfg).Run("https://example.com/", "text"); err == nil {
		t.Fatal("expected an error for an invalid custom regex pattern")
	}
}

func TestRegexStrategyRunNoMatchesReturnsEmptyArray(t *testing.T) {
	cfg := model.RegexExtraction{Patterns: model.PatternEmail}
	out, err := NewRegexStrategy(cfg).Run("https://example.com/", "nothing to see here")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "[]" {
		t.Errorf("out = %q, want []", out)
	}
}
