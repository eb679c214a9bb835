package model

import "time"

// FieldType is the value shape a template field extracts.
type FieldType string

const (
	FieldTypeString FieldType = "string"
	FieldTypeFloat  FieldType = "float"
	FieldTypeDate   FieldType = "date"
)

// TemplateField describes one extractable field in a template schema:
// which labels to look for in the text and what value shape follows them.
type TemplateField struct {
	Name          string    `json:"name" yaml:"name"`
	Type          FieldType `json:"type" yaml:"type"`
	Required      bool      `json:"required" yaml:"required"`
	LabelPatterns []string  `json:"label_patterns" yaml:"label_patterns"`
}

// Template is a reusable extraction recipe for one document type. Templates
// are shared across all documents of that type; the matcher picks the best
// candidate per document and the extractor applies its field schema.
type Template struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	DocumentType DocumentType    `json:"document_type"`
	Fields       []TemplateField `json:"fields"`

	// Matching aids. Each is optional; a missing aid is skipped when
	// scoring, not counted as zero.
	Keywords        []string `json:"keywords,omitempty"`
	VendorPattern   string   `json:"vendor_pattern,omitempty"`
	LayoutSignature string   `json:"layout_signature,omitempty"`

	// Usage statistics. ConfidenceScore is always success/usage, recomputed
	// by the store on every update; it is never written independently.
	UsageCount      int     `json:"usage_count"`
	SuccessCount    int     `json:"success_count"`
	ConfidenceScore float64 `json:"confidence_score"`

	IsActive        bool      `json:"is_active"`
	SampleDocuments []string  `json:"sample_documents,omitempty"`
	CreatedFromDoc  string    `json:"created_from_document_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	LastUpdated     time.Time `json:"last_updated"`
}

// Field returns the template field with the given name, or nil.
func (t *Template) Field(name string) *TemplateField {
	for i := range t.Fields {
		if t.Fields[i].Name == name {
			return &t.Fields[i]
		}
	}
	return nil
}
