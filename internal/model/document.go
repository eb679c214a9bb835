package model

import "time"

// ProcessingStatus tracks a document through the pipeline.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// Document is one ingested file (email attachment or upload).
type Document struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	FilePath string `json:"file_path"`
	MimeType string `json:"mime_type,omitempty"`

	Status       ProcessingStatus `json:"status"`
	DocumentType DocumentType     `json:"document_type,omitempty"`

	ExtractedText string         `json:"extracted_text,omitempty"`
	ExtractedData map[string]any `json:"extracted_data,omitempty"`

	UploadedAt  time.Time  `json:"uploaded_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// EmailContext carries optional email subject/body for context-aware
// classification and extraction.
type EmailContext struct {
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body,omitempty"`
}

// Empty reports whether no email context is available.
func (e EmailContext) Empty() bool {
	return e.Subject == "" && e.Body == ""
}
