// Package filter implements the three content-filter strategies from §4.2
// step 4: Pruning, BM25, and LLM. Each takes cleaned HTML and returns a
// filtered HTML fragment (fit_html).
package filter

import (
	"math"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/crawl4go/model"
)

// Signal weights for the pruning scorer.
const (
	wTextDensity   = 3.0
	wLinkDensity   = -2.0
	wTagWeight     = 1.5
	wClassIDWeight = 1.0
	wTextLength    = 0.5
)

var positiveClassIDPatterns = []string{
	"content", "article", "post", "entry", "body", "main", "text",
}

var negativeClassIDPatterns = []string{
	"sidebar", "ad", "widget", "nav", "menu", "comment", "footer",
	"header", "banner", "popup", "modal", "cookie", "social", "share",
	"related", "recommend", "promo",
}

// PruningFilter is the unsupervised scoring filter: it keeps blocks whose
// weighted content-signal score clears a threshold, fixed or distribution-
// derived.
type PruningFilter struct {
	params model.PruningFilterParams
}

// NewPruningFilter builds a PruningFilter from the RunConfig params.
func NewPruningFilter(params model.PruningFilterParams) *PruningFilter {
	return &PruningFilter{params: params}
}

// Apply walks each top-level block element of <body>, scores it, and
// retains those clearing the threshold (recomputed from the score
// distribution when Dynamic is set). If nothing clears the threshold, the
// full body is returned so the pipeline never produces empty fit_html.
func (f *PruningFilter) Apply(cleanedHTML string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(cleanedHTML))
	if err != nil {
		return cleanedHTML, model.NewCrawlError(model.KindExtractionError, "pruning filter: parse failed", err)
	}

	body := doc.Find("body")
	if body.Length() == 0 {
		return cleanedHTML, nil
	}

	var blocks []prunedBlock
	body.Children().Each(func(_ int, el *goquery.Selection) {
		text := strings.TrimSpace(el.Text())
		if len(strings.Fields(text)) < f.params.MinWordThreshold {
			return
		}
		html, err := goquery.OuterHtml(el)
		if err != nil {
			return
		}
		blocks = append(blocks, prunedBlock{html: html, text: text, score: scoreElement(el)})
	})

	threshold := f.params.Threshold
	if f.params.Dynamic && len(blocks) > 0 {
		threshold = dynamicThreshold(blocks)
	}

	var retained []string
	for _, b := range blocks {
		if b.score > threshold {
			retained = append(retained, b.html)
		}
	}

	if len(retained) == 0 {
		html, err := body.Html()
		if err != nil {
			return cleanedHTML, nil
		}
		return html, nil
	}
	return strings.Join(retained, "\n"), nil
}

type prunedBlock struct {
	html  string
	text  string
	score float64
}

// dynamicThreshold recomputes the retention threshold from the observed
// score distribution: the midpoint between the mean and the top score,
// so a page with a single dominant content block keeps only that block
// while a page of many similar blocks keeps most of them.
func dynamicThreshold(blocks []prunedBlock) float64 {
	scores := make([]float64, len(blocks))
	sum := 0.0
	for i, b := range blocks {
		scores[i] = b.score
		sum += b.score
	}
	mean := sum / float64(len(scores))
	sort.Float64s(scores)
	max := scores[len(scores)-1]
	return (mean + max) / 2
}

func scoreElement(el *goquery.Selection) float64 {
	fullHTML, err := goquery.OuterHtml(el)
	if err != nil {
		return 0
	}
	text := strings.TrimSpace(el.Text())
	textLen := len(text)
	totalLen := len(fullHTML)

	textDensity := 0.0
	if totalLen > 0 {
		textDensity = float64(textLen) / float64(totalLen)
	}

	linkTextLen := 0
	el.Find("a").Each(func(_ int, a *goquery.Selection) {
		linkTextLen += len(strings.TrimSpace(a.Text()))
	})
	linkDensity := 0.0
	if textLen > 0 {
		linkDensity = float64(linkTextLen) / float64(textLen)
	}

	tagW := tagWeight(el)
	classIDW := classIDWeight(el)
	textLenScore := math.Log10(float64(textLen) + 1)

	return textDensity*wTextDensity +
		linkDensity*wLinkDensity +
		tagW*wTagWeight +
		classIDW*wClassIDWeight +
		textLenScore*wTextLength
}

func tagWeight(el *goquery.Selection) float64 {
	switch goquery.NodeName(el) {
	case "article", "main", "section":
		return 5.0
	case "nav", "footer", "aside", "header":
		return -5.0
	default:
		return 0.0
	}
}

func classIDWeight(el *goquery.Selection) float64 {
	class, _ := el.Attr("class")
	id, _ := el.Attr("id")
	combined := strings.ToLower(class + " " + id)

	score := 0.0
	for _, pat := range positiveClassIDPatterns {
		if strings.Contains(combined, pat) {
			score += 3.0
			break
		}
	}
	for _, pat := range negativeClassIDPatterns {
		if strings.Contains(combined, pat) {
			score -= 3.0
			break
		}
	}
	return score
}
