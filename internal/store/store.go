package store

import (
	"context"

	"github.com/akhanna222/email2kg/internal/model"
)

// TemplateFilter specifies criteria for listing templates.
type TemplateFilter struct {
	DocumentType model.DocumentType `json:"document_type,omitempty"`
	ActiveOnly   bool               `json:"active_only,omitempty"`
	Limit        int                `json:"limit,omitempty"`
}

// AttemptFilter specifies criteria for listing extraction attempts.
type AttemptFilter struct {
	DocumentID string                 `json:"document_id,omitempty"`
	Method     model.ExtractionMethod `json:"method,omitempty"`
	Limit      int                    `json:"limit,omitempty"`
}

// UsageSummary aggregates extraction outcomes for reporting.
type UsageSummary struct {
	TemplateAttempts  int `json:"template_attempts"`
	TemplateSuccesses int `json:"template_successes"`
	LLMAttempts       int `json:"llm_attempts"`
	LLMSuccesses      int `json:"llm_successes"`
}

// Store is the persistence interface for the extraction engine. Template
// listings are always ordered by stored confidence score descending so the
// matcher's tie-break ("first encountered wins") prefers the template with
// the better track record.
type Store interface {
	// Templates
	CreateTemplate(ctx context.Context, t *model.Template) error
	GetTemplate(ctx context.Context, id string) (*model.Template, error)
	ListTemplates(ctx context.Context, filter TemplateFilter) ([]model.Template, error)
	CountTemplates(ctx context.Context, dt model.DocumentType) (int, error)
	FindTemplateBySignature(ctx context.Context, dt model.DocumentType, signature string) (*model.Template, error)
	// UpdateTemplateStats increments usage_count (and success_count when
	// success is true) and recomputes confidence_score, all inside one
	// statement so concurrent workers cannot lose updates. Returns the
	// template as stored after the update.
	UpdateTemplateStats(ctx context.Context, id string, success bool) (*model.Template, error)
	DeactivateTemplate(ctx context.Context, id string) error
	DeleteTemplate(ctx context.Context, id string) error

	// Documents
	CreateDocument(ctx context.Context, d *model.Document) error
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	UpdateDocumentStatus(ctx context.Context, id string, status model.ProcessingStatus) error
	UpdateDocumentResult(ctx context.Context, d *model.Document) error

	// Extraction audit log (append-only)
	LogExtraction(ctx context.Context, a *model.ExtractionAttempt) error
	ListAttempts(ctx context.Context, filter AttemptFilter) ([]model.ExtractionAttempt, error)
	SummarizeUsage(ctx context.Context) (*UsageSummary, error)

	// Knowledge graph
	FindPartyByNormalizedName(ctx context.Context, normalized string) (*model.Party, error)
	GetParty(ctx context.Context, id string) (*model.Party, error)
	CreateParty(ctx context.Context, p *model.Party) error
	CreateTransaction(ctx context.Context, tx *model.Transaction) error
	ListTransactions(ctx context.Context, limit int) ([]model.Transaction, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
