package template

import (
	"github.com/akhanna222/email2kg/internal/fieldmatch"
	"github.com/akhanna222/email2kg/internal/model"
)

// Extract applies a matched template's field schema to document text.
// Fields that fail to resolve are skipped silently; whether the result
// is usable (has an amount) is the caller's call, not this layer's.
func Extract(text string, t *model.Template) *model.TemplateResult {
	result := &model.TemplateResult{
		Data:             make(map[string]any),
		ConfidenceScores: make(map[string]float64),
		TemplateID:       t.ID,
	}

	for _, field := range t.Fields {
		value, confidence, ok := fieldmatch.Match(text, field.LabelPatterns, field.Type)
		if !ok {
			continue
		}
		result.Data[field.Name] = value
		result.ConfidenceScores[field.Name] = confidence
	}

	return result
}
