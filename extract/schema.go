// Package extract implements the three extraction strategies from §4.3:
// schema-based (CSS/XPath), regex-based, and LLM-based. Each returns a
// JSON-serializable payload for CrawlResult.ExtractedContent.
package extract

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/use-agent/crawl4go/model"
)

// Dialect selects which selector language a SchemaStrategy evaluates.
type Dialect int

const (
	DialectCSS Dialect = iota
	DialectXPath
)

// SchemaStrategy runs a model.SchemaExtraction against HTML, honoring the
// xpath: selector prefix documented in §4.3 regardless of the configured
// Dialect, so a CSS schema may still mix in an XPath field.
type SchemaStrategy struct {
	schema  model.SchemaExtraction
	dialect Dialect
}

// NewSchemaStrategy builds a SchemaStrategy for the given dialect.
func NewSchemaStrategy(schema model.SchemaExtraction, dialect Dialect) *SchemaStrategy {
	return &SchemaStrategy{schema: schema, dialect: dialect}
}

// Run evaluates the schema's baseSelector against htmlContent and returns a
// JSON array of objects, one per matched container, preserving DOM order.
func (s *SchemaStrategy) Run(htmlContent string) (string, error) {
	if s.dialect == DialectXPath || strings.HasPrefix(s.schema.BaseSelector, "xpath:") {
		return s.runXPath(htmlContent)
	}
	return s.runCSS(htmlContent)
}

func (s *SchemaStrategy) runCSS(htmlContent string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", model.NewCrawlError(model.KindExtractionError, "schema extraction: parse failed", err)
	}

	var records []map[string]any
	doc.Find(s.schema.BaseSelector).Each(func(_ int, container *goquery.Selection) {
		rec := map[string]any{}
		for _, f := range s.schema.BaseFields {
			rec[f.Name] = extractCSSField(container, f)
		}
		for _, f := range s.schema.Fields {
			rec[f.Name] = extractCSSField(container, f)
		}
		records = append(records, rec)
	})

	return marshalRecords(records)
}

func extractCSSField(container *goquery.Selection, f model.SchemaField) any {
	if strings.HasPrefix(f.Selector, "xpath:") && len(container.Nodes) > 0 {
		return extractXPathField(container.Nodes[0], f)
	}
	switch f.Type {
	case model.FieldNested:
		sub := container.Find(f.Selector).First()
		if sub.Length() == 0 {
			return f.Default
		}
		return extractCSSObject(sub, f.Fields)
	case model.FieldNestedList:
		var out []map[string]any
		container.Find(f.Selector).Each(func(_ int, sub *goquery.Selection) {
			out = append(out, extractCSSObject(sub, f.Fields))
		})
		return out
	case model.FieldList:
		var out []string
		container.Find(f.Selector).Each(func(_ int, sub *goquery.Selection) {
			out = append(out, applyTransform(strings.TrimSpace(sub.Text()), f))
		})
		return out
	default:
		sel := container
		if f.Selector != "" {
			sel = container.Find(f.Selector).First()
		}
		if sel.Length() == 0 {
			return f.Default
		}
		return extractScalarCSS(sel, f)
	}
}

func extractCSSObject(sel *goquery.Selection, fields []model.SchemaField) map[string]any {
	obj := map[string]any{}
	for _, f := range fields {
		obj[f.Name] = extractCSSField(sel, f)
	}
	return obj
}

func extractScalarCSS(sel *goquery.Selection, f model.SchemaField) any {
	switch f.Type {
	case model.FieldAttribute:
		v, ok := sel.Attr(f.Attribute)
		if !ok {
			return f.Default
		}
		return applyTransform(v, f)
	case model.FieldHTML:
		h, err := goquery.OuterHtml(sel)
		if err != nil {
			return f.Default
		}
		return applyTransform(h, f)
	case model.FieldRegex:
		re, err := regexp.Compile(f.Pattern)
		if err != nil {
			return f.Default
		}
		m := re.FindString(sel.Text())
		if m == "" {
			return f.Default
		}
		return applyTransform(m, f)
	default: // FieldText
		return applyTransform(strings.TrimSpace(sel.Text()), f)
	}
}

func applyTransform(v string, f model.SchemaField) string {
	switch f.Transform {
	case model.TransformLowercase:
		return strings.ToLower(v)
	case model.TransformUppercase:
		return strings.ToUpper(v)
	case model.TransformStrip:
		return strings.TrimSpace(v)
	case model.TransformCustom:
		if f.CustomTransform != nil {
			return f.CustomTransform(v)
		}
		return v
	default:
		return v
	}
}

func (s *SchemaStrategy) runXPath(htmlContent string) (string, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return "", model.NewCrawlError(model.KindExtractionError, "schema extraction: parse failed", err)
	}

	baseSel := strings.TrimPrefix(s.schema.BaseSelector, "xpath:")
	containers, err := htmlquery.QueryAll(doc, baseSel)
	if err != nil {
		return "", model.NewCrawlError(model.KindExtractionError, "invalid XPath baseSelector", err)
	}

	var records []map[string]any
	for _, container := range containers {
		rec := map[string]any{}
		for _, f := range s.schema.BaseFields {
			rec[f.Name] = extractXPathField(container, f)
		}
		for _, f := range s.schema.Fields {
			rec[f.Name] = extractXPathField(container, f)
		}
		records = append(records, rec)
	}
	return marshalRecords(records)
}

func extractXPathField(container *html.Node, f model.SchemaField) any {
	sel := strings.TrimPrefix(f.Selector, "xpath:")
	switch f.Type {
	case model.FieldNested:
		node := htmlquery.FindOne(container, sel)
		if node == nil {
			return f.Default
		}
		return extractXPathObject(node, f.Fields)
	case model.FieldNestedList:
		var out []map[string]any
		for _, node := range htmlquery.Find(container, sel) {
			out = append(out, extractXPathObject(node, f.Fields))
		}
		return out
	case model.FieldList:
		var out []string
		for _, node := range htmlquery.Find(container, sel) {
			out = append(out, applyTransform(strings.TrimSpace(htmlquery.InnerText(node)), f))
		}
		return out
	default:
		node := container
		if sel != "" {
			node = htmlquery.FindOne(container, sel)
		}
		if node == nil {
			return f.Default
		}
		return extractScalarXPath(node, f)
	}
}

func extractXPathObject(node *html.Node, fields []model.SchemaField) map[string]any {
	obj := map[string]any{}
	for _, f := range fields {
		obj[f.Name] = extractXPathField(node, f)
	}
	return obj
}

func extractScalarXPath(node *html.Node, f model.SchemaField) any {
	switch f.Type {
	case model.FieldAttribute:
		v := htmlquery.SelectAttr(node, f.Attribute)
		if v == "" {
			return f.Default
		}
		return applyTransform(v, f)
	case model.FieldHTML:
		return applyTransform(htmlquery.OutputHTML(node, true), f)
	case model.FieldRegex:
		re, err := regexp.Compile(f.Pattern)
		if err != nil {
			return f.Default
		}
		m := re.FindString(htmlquery.InnerText(node))
		if m == "" {
			return f.Default
		}
		return applyTransform(m, f)
	default:
		return applyTransform(strings.TrimSpace(htmlquery.InnerText(node)), f)
	}
}

func marshalRecords(records []map[string]any) (string, error) {
	if records == nil {
		records = []map[string]any{}
	}
	b, err := json.Marshal(records)
	if err != nil {
		return "", model.NewCrawlError(model.KindExtractionError, "failed to serialize extraction result", err)
	}
	return string(b), nil
}
