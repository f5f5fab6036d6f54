package filter

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/crawl4go/model"
)

func mustParse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

const pruningTestHTML = `<html><body>
<nav class="site-nav"><a href="/a">a</a><a href="/b">b</a><a href="/c">c</a></nav>
<article class="post-content"><p>This is a long article about the history of the Go programming language, its design goals, and how it handles concurrency through goroutines and channels.</p></article>
<footer class="site-footer"><a href="/x">x</a></footer>
</body></html>`

func TestPruningFilterKeepsHighScoringArticleBlock(t *testing.T) {
	f := NewPruningFilter(model.PruningFilterParams{Threshold: 0})
	out, err := f.Apply(pruningTestHTML)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !strings.Contains(out, "history of the Go programming language") {
		t.Error("expected the article block to be retained")
	}
	if strings.Contains(out, `class="site-nav"`) {
		t.Error("expected the link-dense nav block to be pruned")
	}
}

func TestPruningFilterFallsBackToFullBodyWhenNothingClears(t *testing.T) {
	f := NewPruningFilter(model.PruningFilterParams{Threshold: 1000})
	out, err := f.Apply(pruningTestHTML)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out == "" {
		t.Fatal("expected a non-empty fallback to the full body, never an empty fit_html")
	}
	if !strings.Contains(out, "site-nav") {
		t.Error("expected the fallback to include the full body, not just the retained blocks")
	}
}

func TestPruningFilterMinWordThresholdDropsShortBlocks(t *testing.T) {
	html := `<html><body><div class="content">one two</div><article class="main-content">` +
		strings.Repeat("word ", 50) + `</article></body></html>`
	f := NewPruningFilter(model.PruningFilterParams{Threshold: 0, MinWordThreshold: 10})
	out, err := f.Apply(html)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if strings.Contains(out, "one two") {
		t.Error("expected the short block to be dropped by MinWordThreshold")
	}
}

func TestPruningFilterDynamicThresholdIsMidpointOfMeanAndMax(t *testing.T) {
	blocks := []prunedBlock{{score: 0}, {score: 10}}
	got := dynamicThreshold(blocks)
	want := 7.5
	if got != want {
		t.Errorf("dynamicThreshold = %f, want %f", got, want)
	}
}

func TestTagWeightFavorsArticleOverNav(t *testing.T) {
	doc := mustParse(t, `<html><body><article>a</article><nav>n</nav></body></html>`)
	article := doc.Find("article")
	nav := doc.Find("nav")
	if tagWeight(article) <= 0 {
		t.Error("expected article to get a positive tag weight")
	}
	if tagWeight(nav) >= 0 {
		t.Error("expected nav to get a negative tag weight")
	}
}

func TestClassIDWeightFavorsContentClass(t *testing.T) {
	doc := mustParse(t, `<html><body><div class="article-content">x</div><div class="sidebar-widget">y</div></body></html>`)
	content := doc.Find("div.article-content")
	sidebar := doc.Find("div.sidebar-widget")
	if classIDWeight(content) <= 0 {
		t.Error("expected a content-pattern class to score positively")
	}
	if classIDWeight(sidebar) >= 0 {
		t.Error("expected a sidebar-pattern class to score negatively")
	}
}
