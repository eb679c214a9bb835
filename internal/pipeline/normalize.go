package pipeline

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/currency"
)

var (
	nonWordRe    = regexp.MustCompile(`[^\w\s]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// normalizeName produces the entity-resolution key for a party name:
// lowercased, punctuation stripped, whitespace collapsed. "ACME Corp." and
// "acme corp" resolve to the same party.
func normalizeName(name string) string {
	n := strings.ToLower(name)
	n = nonWordRe.ReplaceAllString(n, "")
	n = whitespaceRe.ReplaceAllString(n, " ")
	return strings.TrimSpace(n)
}

// dateFormats lists accepted transaction date layouts, most specific first.
var dateFormats = []string{
	time.RFC3339,
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"01-02-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"02/01/2006",
}

// parseDate tries each accepted layout in order and returns nil when none
// matches. Ambiguous numeric dates resolve month-first.
func parseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

// parseAmount coerces an extracted amount into a float64. LLM output and
// template captures arrive as float64, int, or a string with currency
// punctuation.
func parseAmount(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		s := strings.TrimSpace(n)
		s = strings.TrimPrefix(s, "$")
		s = strings.ReplaceAll(s, ",", "")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// normalizeCurrency validates an ISO 4217 code, defaulting to USD for
// anything unrecognized.
func normalizeCurrency(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "USD"
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "USD"
	}
	return unit.String()
}

// stringField pulls a trimmed string out of extracted data, tolerating
// missing keys and non-string values.
func stringField(data map[string]any, key string) string {
	v, ok := data[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}
