package model

// FieldType enumerates the schema field kinds from §4.3.
type FieldType string

const (
	FieldText       FieldType = "text"
	FieldAttribute  FieldType = "attribute"
	FieldHTML       FieldType = "html"
	FieldRegex      FieldType = "regex"
	FieldNested     FieldType = "nested"
	FieldList       FieldType = "list"
	FieldNestedList FieldType = "nested_list"
)

// Transform enumerates the field-level post-processing transforms.
type Transform string

const (
	TransformNone      Transform = ""
	TransformLowercase Transform = "lowercase"
	TransformUppercase Transform = "uppercase"
	TransformStrip     Transform = "strip"
	TransformCustom    Transform = "custom"
)

// SchemaField is one field of a SchemaExtraction schema.
type SchemaField struct {
	Name      string
	Selector  string
	Type      FieldType
	Attribute string
	Default   any
	Transform Transform
	// CustomTransform is invoked when Transform == TransformCustom. Excluded
	// from JSON (func values are not serializable); its presence does not
	// change the cache fingerprint, only its effect does, which callers
	// express through the Name/Selector/Type it's attached to.
	CustomTransform func(string) string `json:"-"`
	// Pattern is the regex used when Type == FieldRegex.
	Pattern string
	// Fields holds the nested schema's fields when Type is FieldNested or
	// FieldNestedList.
	Fields []SchemaField
}

// SchemaExtraction is a CSS or XPath repeated-container extraction schema.
// Which selector dialect it uses is decided by the strategy variant it's
// embedded in (ExtractionStrategy.SchemaCSS vs SchemaXPath), not by a field
// on this struct, so the same schema shape serves both.
type SchemaExtraction struct {
	Name         string
	BaseSelector string
	BaseFields   []SchemaField
	Fields       []SchemaField
}

// RegexPattern is a bitflag enum of the built-in pattern set from §4.3.
type RegexPattern uint32

const (
	PatternEmail RegexPattern = 1 << iota
	PatternPhoneUS
	PatternPhoneIntl
	PatternURL
	PatternIPv4
	PatternIPv6
	PatternUUID
	PatternCurrency
	PatternPercentage
	PatternNumber
	PatternDateISO
	PatternDateUS
	PatternTime24h
	PatternPostalUS
	PatternPostalUK
	PatternHexColor
	PatternTwitterHandle
	PatternHashtag
	PatternMacAddr
	PatternIBAN
	PatternCreditCard

	PatternAll = PatternEmail | PatternPhoneUS | PatternPhoneIntl | PatternURL |
		PatternIPv4 | PatternIPv6 | PatternUUID | PatternCurrency | PatternPercentage |
		PatternNumber | PatternDateISO | PatternDateUS | PatternTime24h | PatternPostalUS |
		PatternPostalUK | PatternHexColor | PatternTwitterHandle | PatternHashtag |
		PatternMacAddr | PatternIBAN | PatternCreditCard
)

// Has reports whether p includes the flag bits of other.
func (p RegexPattern) Has(other RegexPattern) bool { return p&other != 0 }

// CustomPattern is a user- or LLM-generated named regex pattern.
type CustomPattern struct {
	Label   string
	Pattern string
}

// RegexExtraction configures the bitflag + custom-pattern regex strategy.
type RegexExtraction struct {
	Patterns       RegexPattern
	CustomPatterns []CustomPattern
}

// RegexMatch is one extracted regex hit.
type RegexMatch struct {
	URL   string `json:"url"`
	Label string `json:"label"`
	Value string `json:"value"`
	Span  [2]int `json:"span"`
}

// LLMExtractionType selects the LLM extraction mode.
type LLMExtractionType string

const (
	LLMExtractSchema LLMExtractionType = "schema"
	LLMExtractBlock  LLMExtractionType = "block"
)

// LLMExtraction configures the LLM-backed extraction strategy.
type LLMExtraction struct {
	Type                LLMExtractionType
	Instruction         string
	JSONSchema          map[string]any // required when Type == LLMExtractSchema
	Model               string
	ChunkTokenThreshold int
	OverlapRate         float64
}

// LLMUsage reports per-call token accounting from an LLM caller.
type LLMUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
