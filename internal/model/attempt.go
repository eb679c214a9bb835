package model

import "time"

// ExtractionMethod identifies which path produced a document's fields.
type ExtractionMethod string

const (
	MethodTemplate ExtractionMethod = "template"
	MethodLLM      ExtractionMethod = "llm"
	MethodHybrid   ExtractionMethod = "hybrid"
)

// ExtractionAttempt is an append-only audit record of one extraction pass
// over a document. It is written once by the orchestrator and only touched
// again by a later feedback pass flipping ManuallyVerified/Corrections.
type ExtractionAttempt struct {
	ID               string             `json:"id"`
	DocumentID       string             `json:"document_id"`
	TemplateID       string             `json:"template_id,omitempty"` // empty on the LLM-only path
	Method           ExtractionMethod   `json:"method"`
	Fields           map[string]any     `json:"fields"`
	ConfidenceScores map[string]float64 `json:"confidence_scores"`
	Success          bool               `json:"success"`
	ExtractionTime   float64            `json:"extraction_time_seconds"`
	ErrorMessage     string             `json:"error_message,omitempty"`
	ManuallyVerified bool               `json:"manually_verified"`
	Corrections      map[string]any     `json:"corrections,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
}

// TemplateResult is what the extractor produces from a matched template:
// resolved field values, per-field confidence, and the template used.
type TemplateResult struct {
	Data             map[string]any     `json:"data"`
	ConfidenceScores map[string]float64 `json:"confidence_scores"`
	TemplateID       string             `json:"template_id"`
}

// Usable reports whether the result carries enough to accept as final.
// The orchestrator's bar is a resolved amount; everything else is optional.
func (r *TemplateResult) Usable() bool {
	if r == nil {
		return false
	}
	_, ok := r.Data["amount"]
	return ok
}

// ExtractionOutcome is the tagged result of the template-vs-LLM decision.
// Exactly one variant applies: a template hit, an LLM hit, or a miss
// (document processed but nothing financial found).
type ExtractionOutcome struct {
	Method           ExtractionMethod   `json:"method,omitempty"`
	Data             map[string]any     `json:"data,omitempty"`
	ConfidenceScores map[string]float64 `json:"confidence_scores,omitempty"`
	TemplateID       string             `json:"template_id,omitempty"`
	LearnedTemplate  *Template          `json:"-"`
}

// Hit reports whether either path produced a usable amount.
func (o *ExtractionOutcome) Hit() bool {
	if o == nil || o.Data == nil {
		return false
	}
	_, ok := o.Data["amount"]
	return ok
}
