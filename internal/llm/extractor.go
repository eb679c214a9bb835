package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/akhanna222/email2kg/internal/config"
	"github.com/akhanna222/email2kg/internal/cost"
	"github.com/akhanna222/email2kg/internal/model"
	"github.com/akhanna222/email2kg/pkg/anthropic"
)

// Extractor pulls structured fields out of document text.
type Extractor interface {
	Extract(ctx context.Context, text string, dt model.DocumentType, email model.EmailContext) (map[string]any, error)
}

const extractSystemPrompt = `You are a helpful assistant that extracts structured data from financial documents. Always respond with valid JSON only.`

const extractUserPrompt = `Extract structured information from this %s.

Email context (use this to fill in missing fields if document text is unclear):
%s

Document text:
%s

Extract the following fields and return as JSON:
{
    "amount": <float or null>,
    "currency": <string or "USD">,
    "date": <ISO date string or null>,
    "vendor": <string or null>,
    "invoice_number": <string or null>,
    "items": [list of items if applicable, or empty list]
}

Rules:
- Extract amount as a number (e.g., 123.45)
- Date should be in ISO format (YYYY-MM-DD)
- vendor is the company or person providing goods/services
- Use email context to supplement or clarify information from document text
- Return valid JSON only, no other text`

// AnthropicExtractor implements Extractor using the Anthropic API.
type AnthropicExtractor struct {
	client anthropic.Client
	cfg    config.AnthropicConfig
	costs  *cost.Calculator
}

// NewExtractor creates an extractor backed by the given client.
func NewExtractor(client anthropic.Client, cfg config.AnthropicConfig, costs *cost.Calculator) *AnthropicExtractor {
	return &AnthropicExtractor{client: client, cfg: cfg, costs: costs}
}

// Extract asks the model for structured fields. A response that fails to
// parse is not an error: it degrades to an empty field map so the caller
// can record a miss instead of failing the document.
func (e *AnthropicExtractor) Extract(ctx context.Context, text string, dt model.DocumentType, email model.EmailContext) (map[string]any, error) {
	if len(text) > 3000 {
		text = text[:3000]
	}

	emailContext := "No email context available."
	if !email.Empty() {
		emailContext = fmt.Sprintf("Email subject: %s\nEmail body: %s", email.Subject, truncate(email.Body, 500))
	}

	maxTokens := int64(e.cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	temp := 0.0

	resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       e.cfg.ExtractorModel,
		MaxTokens:   maxTokens,
		System:      extractSystemPrompt,
		Temperature: &temp,
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf(extractUserPrompt, dt.Title(), emailContext, text)},
		},
	})
	if err != nil {
		return nil, err
	}
	e.costs.LogUsage(e.cfg.ExtractorModel, "extract", resp.Usage)

	data := parseExtraction(resp.Text(), dt)
	zap.L().Debug("llm: extracted fields",
		zap.String("document_type", string(dt)),
		zap.Int("field_count", len(data)),
	)
	return data, nil
}

func parseExtraction(text string, dt model.DocumentType) map[string]any {
	cleaned := cleanJSON(text)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		zap.L().Warn("llm: unparseable extraction response", zap.Error(err))
		return map[string]any{
			"currency": "USD",
			"type":     string(dt),
			"items":    []any{},
		}
	}

	// Null fields carry no information.
	for k, v := range data {
		if v == nil {
			delete(data, k)
		}
	}
	if _, ok := data["type"]; !ok {
		data["type"] = string(dt)
	}
	return data
}
