package template

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akhanna222/email2kg/internal/layout"
	"github.com/akhanna222/email2kg/internal/model"
)

// seedKeywords are type-specific keywords worth remembering when they
// actually occur in the source document.
var seedKeywords = map[model.DocumentType][]string{
	model.DocTypeInvoice:       {"invoice", "bill", "due", "payment", "subtotal"},
	model.DocTypeReceipt:       {"receipt", "paid", "purchased", "transaction"},
	model.DocTypePurchaseOrder: {"purchase order", "PO", "quantity", "unit price"},
	model.DocTypeSalesOrder:    {"sales order", "SO", "order date", "ship to"},
	model.DocTypeQuote:         {"quote", "quotation", "estimate", "valid until"},
}

// dateFieldNames marks extracted field names whose values are dates.
var dateFieldNames = map[string]bool{
	"date":             true,
	"transaction_date": true,
	"invoice_date":     true,
}

// requiredFieldNames marks fields a learned template treats as required.
var requiredFieldNames = map[string]bool{
	"amount": true,
	"date":   true,
	"vendor": true,
}

const (
	maxKeywords        = 10
	maxLabelPatterns   = 3
	maxKeywordFragment = 50
	headerLineCount    = 10
	minLabelLen        = 3
	maxLabelLen        = 29
)

// Learn synthesizes a template from a successful LLM extraction so that
// future documents with the same shape can skip the LLM. The caller
// assigns the display name and persists the result.
func Learn(docID string, dt model.DocumentType, data map[string]any, text string) *model.Template {
	now := time.Now().UTC()
	t := &model.Template{
		ID:              uuid.NewString(),
		DocumentType:    dt,
		Fields:          learnFields(data, text),
		Keywords:        learnKeywords(text, dt),
		LayoutSignature: layout.Signature(text),
		UsageCount:      1,
		SuccessCount:    1,
		ConfidenceScore: 1.0,
		IsActive:        true,
		SampleDocuments: []string{docID},
		CreatedFromDoc:  docID,
		CreatedAt:       now,
		LastUpdated:     now,
	}

	zap.L().Info("template: learned from extraction",
		zap.String("document_id", docID),
		zap.String("document_type", string(dt)),
		zap.Int("fields", len(t.Fields)),
		zap.Int("keywords", len(t.Keywords)),
	)
	return t
}

// Name builds the display name for a newly learned template. existing is
// the current template count for the type; the random suffix keeps names
// distinct when concurrent learners read the same count.
func Name(dt model.DocumentType, existing int) string {
	return fmt.Sprintf("%s Template #%d-%s", dt.Title(), existing+1, uuid.NewString()[:8])
}

// learnKeywords derives the keyword set: type seeds that occur in the
// text, plus capitalized leading-line fragments as a vendor/header proxy.
func learnKeywords(text string, dt model.DocumentType) []string {
	textLower := strings.ToLower(text)
	seen := make(map[string]bool)
	var keywords []string

	add := func(kw string) {
		if kw == "" || seen[kw] {
			return
		}
		seen[kw] = true
		keywords = append(keywords, kw)
	}

	for _, kw := range seedKeywords[dt] {
		if strings.Contains(textLower, strings.ToLower(kw)) {
			add(kw)
		}
	}

	lines := strings.Split(text, "\n")
	if len(lines) > headerLineCount {
		lines = lines[:headerLineCount]
	}
	for _, line := range lines {
		if len(keywords) >= maxKeywords {
			break
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		first := []rune(fields[0])
		if first[0] < 'A' || first[0] > 'Z' {
			continue
		}
		fragment := strings.TrimSpace(line)
		if len(fragment) > maxKeywordFragment {
			fragment = fragment[:maxKeywordFragment]
		}
		add(fragment)
	}

	if len(keywords) > maxKeywords {
		keywords = keywords[:maxKeywords]
	}
	return keywords
}

// learnFields builds the field schema from extracted data, discovering
// label patterns by locating each value in the source text. A field with
// no discoverable label keeps an empty pattern list; it simply never
// resolves on future documents.
func learnFields(data map[string]any, text string) []model.TemplateField {
	names := make([]string, 0, len(data))
	for name, value := range data {
		if !scalar(value) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]model.TemplateField, 0, len(names))
	for _, name := range names {
		value := data[name]
		fieldType := inferFieldType(name, value)
		fields = append(fields, model.TemplateField{
			Name:          name,
			Type:          fieldType,
			Required:      requiredFieldNames[name],
			LabelPatterns: findLabelPatterns(text, formatValue(value), fieldType == model.FieldTypeFloat),
		})
	}
	return fields
}

func scalar(v any) bool {
	switch v.(type) {
	case string, float64, float32, int, int64, bool:
		return true
	default:
		return false
	}
}

func inferFieldType(name string, value any) model.FieldType {
	switch value.(type) {
	case float64, float32, int, int64:
		return model.FieldTypeFloat
	}
	if dateFieldNames[name] {
		return model.FieldTypeDate
	}
	return model.FieldTypeString
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// findLabelPatterns locates short label-like runs immediately preceding
// the value in the text. Numeric values may be prefixed by a currency
// symbol between label and digits.
func findLabelPatterns(text, value string, numeric bool) []string {
	if value == "" {
		return nil
	}

	pattern := `(?i)([A-Za-z\s#]+):*\s*`
	if numeric {
		pattern += `\$?\s*`
	}
	pattern += regexp.QuoteMeta(value)

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var labels []string
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		label := strings.TrimSpace(m[1])
		if len(label) < minLabelLen || len(label) > maxLabelLen {
			continue
		}
		if seen[label] {
			continue
		}
		seen[label] = true
		labels = append(labels, label)
		if len(labels) >= maxLabelPatterns {
			break
		}
	}
	return labels
}
