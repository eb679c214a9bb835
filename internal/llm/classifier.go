package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/akhanna222/email2kg/internal/config"
	"github.com/akhanna222/email2kg/internal/cost"
	"github.com/akhanna222/email2kg/internal/model"
	"github.com/akhanna222/email2kg/pkg/anthropic"
)

// Classifier assigns a document type to raw document text.
type Classifier interface {
	Classify(ctx context.Context, text string, email model.EmailContext) (model.DocumentType, float64, error)
}

const classifySystemPrompt = `Classify financial documents into exactly one of these categories: invoice, receipt, bank_statement, purchase_order, sales_order, delivery_note, quote, contract, tax_document, other. Respond with a valid JSON object: {"document_type": "<category>", "confidence": <0.0-1.0>}`

const classifyUserPrompt = `%sDocument text (first 2000 chars):
%s`

// AnthropicClassifier implements Classifier using the Anthropic API.
type AnthropicClassifier struct {
	client anthropic.Client
	cfg    config.AnthropicConfig
	costs  *cost.Calculator
}

// NewClassifier creates a classifier backed by the given client. Costs are
// attributed through the calculator so every log line prices calls from the
// configured rates.
func NewClassifier(client anthropic.Client, cfg config.AnthropicConfig, costs *cost.Calculator) *AnthropicClassifier {
	return &AnthropicClassifier{client: client, cfg: cfg, costs: costs}
}

func (c *AnthropicClassifier) Classify(ctx context.Context, text string, email model.EmailContext) (model.DocumentType, float64, error) {
	if len(text) > 2000 {
		text = text[:2000]
	}

	var emailBlock string
	if !email.Empty() {
		emailBlock = fmt.Sprintf("Email subject: %s\nEmail body: %s\n\n", email.Subject, truncate(email.Body, 500))
	}

	resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     c.cfg.ClassifierModel,
		MaxTokens: 128,
		System:    classifySystemPrompt,
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf(classifyUserPrompt, emailBlock, text)},
		},
	})
	if err != nil {
		return model.DocTypeOther, 0, err
	}
	c.costs.LogUsage(c.cfg.ClassifierModel, "classify", resp.Usage)

	dt, confidence := parseClassification(resp.Text())
	zap.L().Debug("llm: classified document",
		zap.String("document_type", string(dt)),
		zap.Float64("confidence", confidence),
	)
	return dt, confidence, nil
}

func parseClassification(text string) (model.DocumentType, float64) {
	text = cleanJSON(text)

	var result struct {
		DocumentType string  `json:"document_type"`
		Confidence   float64 `json:"confidence"`
	}

	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return model.DocTypeOther, 0
	}

	dt := model.ParseDocumentType(strings.ToLower(result.DocumentType))
	return dt, result.Confidence
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
