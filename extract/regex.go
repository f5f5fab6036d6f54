package extract

import (
	"encoding/json"
	"regexp"

	"github.com/use-agent/crawl4go/model"
)

// builtinPatterns maps each bitflag to its compiled regular expression. A
// package-level var initialized once, never mutated after init, per the
// "global state" design note.
var builtinPatterns = map[model.RegexPattern]struct {
	label   string
	pattern *regexp.Regexp
}{
	model.PatternEmail:         {"email", regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)},
	model.PatternPhoneUS:       {"phone_us", regexp.MustCompile(`\(?\d{3}\)?[\s.\-]?\d{3}[\s.\-]?\d{4}`)},
	model.PatternPhoneIntl:     {"phone_intl", regexp.MustCompile(`\+\d{1,3}[\s.\-]?\(?\d{1,4}\)?(?:[\s.\-]?\d{2,4}){2,4}`)},
	model.PatternURL:           {"url", regexp.MustCompile(`https?://[^\s"'<>]+`)},
	model.PatternIPv4:          {"ipv4", regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)},
	model.PatternIPv6:          {"ipv6", regexp.MustCompile(`\b(?:[0-9A-Fa-f]{1,4}:){2,7}[0-9A-Fa-f]{1,4}\b`)},
	model.PatternUUID:          {"uuid", regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)},
	model.PatternCurrency:      {"currency", regexp.MustCompile(`[$£€¥]\s?\d[\d,]*(?:\.\d+)?`)},
	model.PatternPercentage:    {"percentage", regexp.MustCompile(`\b\d+(?:\.\d+)?%`)},
	model.PatternNumber:        {"number", regexp.MustCompile(`-?\b\d+(?:,\d{3})*(?:\.\d+)?\b`)},
	model.PatternDateISO:       {"date_iso", regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)},
	model.PatternDateUS:        {"date_us", regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`)},
	model.PatternTime24h:       {"time_24h", regexp.MustCompile(`\b(?:[01]\d|2[0-3]):[0-5]\d(?::[0-5]\d)?\b`)},
	model.PatternPostalUS:      {"postal_us", regexp.MustCompile(`\b\d{5}(?:-\d{4})?\b`)},
	model.PatternPostalUK:      {"postal_uk", regexp.MustCompile(`\b[A-Z]{1,2}\d[A-Z\d]?\s?\d[A-Z]{2}\b`)},
	model.PatternHexColor:      {"hex_color", regexp.MustCompile(`#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})\b`)},
	model.PatternTwitterHandle: {"twitter_handle", regexp.MustCompile(`@\w{1,15}\b`)},
	model.PatternHashtag:       {"hashtag", regexp.MustCompile(`#\w+\b`)},
	model.PatternMacAddr:       {"mac_addr", regexp.MustCompile(`\b(?:[0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}\b`)},
	model.PatternIBAN:          {"iban", regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{10,30}\b`)},
	model.PatternCreditCard:    {"credit_card", regexp.MustCompile(`\b(?:\d[ -]?){13,16}\b`)},
}

// orderedBuiltinFlags fixes iteration order so results are deterministic
// regardless of Go's randomized map iteration.
var orderedBuiltinFlags = []model.RegexPattern{
	model.PatternEmail, model.PatternPhoneUS, model.PatternPhoneIntl, model.PatternURL,
	model.PatternIPv4, model.PatternIPv6, model.PatternUUID, model.PatternCurrency,
	model.PatternPercentage, model.PatternNumber, model.PatternDateISO, model.PatternDateUS,
	model.PatternTime24h, model.PatternPostalUS, model.PatternPostalUK, model.PatternHexColor,
	model.PatternTwitterHandle, model.PatternHashtag, model.PatternMacAddr, model.PatternIBAN,
	model.PatternCreditCard,
}

// RegexStrategy runs the built-in + custom pattern set over text and
// returns the matches grouped by pattern (built-ins in orderedBuiltinFlags
// order, then custom patterns), each group in document order.
type RegexStrategy struct {
	cfg model.RegexExtraction
}

// NewRegexStrategy builds a RegexStrategy from its configuration.
func NewRegexStrategy(cfg model.RegexExtraction) *RegexStrategy {
	return &RegexStrategy{cfg: cfg}
}

// Run scans text for every enabled pattern and returns a JSON array of
// {url, label, value, span} records.
func (s *RegexStrategy) Run(sourceURL, text string) (string, error) {
	var matches []model.RegexMatch

	for _, flag := range orderedBuiltinFlags {
		if !s.cfg.Patterns.Has(flag) {
			continue
		}
		p := builtinPatterns[flag]
		for _, loc := range p.pattern.FindAllStringIndex(text, -1) {
			matches = append(matches, model.RegexMatch{
				URL:   sourceURL,
				Label: p.label,
				Value: text[loc[0]:loc[1]],
				Span:  [2]int{loc[0], loc[1]},
			})
		}
	}

	for _, cp := range s.cfg.CustomPatterns {
		re, err := regexp.Compile(cp.Pattern)
		if err != nil {
			return "", model.NewCrawlError(model.KindExtractionError, "invalid custom pattern "+cp.Label, err)
		}
		for _, loc := range re.FindAllStringIndex(text, -1) {
			matches = append(matches, model.RegexMatch{
				URL:   sourceURL,
				Label: cp.Label,
				Value: text[loc[0]:loc[1]],
				Span:  [2]int{loc[0], loc[1]},
			})
		}
	}

	if matches == nil {
		matches = []model.RegexMatch{}
	}
	b, err := json.Marshal(matches)
	if err != nil {
		return "", model.NewCrawlError(model.KindExtractionError, "failed to serialize regex matches", err)
	}
	return string(b), nil
}
