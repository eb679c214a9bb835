// Package fieldmatch locates labeled values in raw document text. Given a
// list of candidate labels ("Total", "Amount Due") and a target value shape,
// it searches for the first label followed by a value of that shape.
package fieldmatch

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/akhanna222/email2kg/internal/model"
)

// Per-match confidence by field type. Pattern-located numbers and dates are
// high confidence; free-form string tails are slightly lower.
const (
	floatConfidence  = 0.9
	dateConfidence   = 0.9
	stringConfidence = 0.8
)

// Match searches text for the first label (in order) that is followed by a
// value of the given type. First parseable match wins; later labels are not
// tried. A shape match that fails to parse (float only) falls through to the
// next label. Returns (nil, 0, false) when no label resolves.
func Match(text string, labels []string, fieldType model.FieldType) (any, float64, bool) {
	for _, label := range labels {
		if label == "" {
			continue
		}
		re, err := compileLabelPattern(label, fieldType)
		if err != nil {
			continue
		}
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		value := strings.TrimSpace(m[1])

		switch fieldType {
		case model.FieldTypeFloat:
			f, parseErr := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64)
			if parseErr != nil {
				continue
			}
			return f, floatConfidence, true
		case model.FieldTypeDate:
			return value, dateConfidence, true
		default:
			return value, stringConfidence, true
		}
	}
	return nil, 0.0, false
}

// compileLabelPattern builds the case-insensitive regex for a label and
// field type: the label, optional colons/whitespace, then the type-specific
// value shape as the single capture group.
func compileLabelPattern(label string, fieldType model.FieldType) (*regexp.Regexp, error) {
	escaped := regexp.QuoteMeta(label)
	var shape string
	switch fieldType {
	case model.FieldTypeFloat:
		shape = `\$?\s*([\d,]+\.?\d*)`
	case model.FieldTypeDate:
		shape = `(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`
	default:
		shape = `([^\n]+)`
	}
	return regexp.Compile(`(?i)` + escaped + `\s*[:]*\s*` + shape)
}
