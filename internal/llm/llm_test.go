package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/akhanna222/email2kg/internal/config"
	"github.com/akhanna222/email2kg/internal/cost"
	"github.com/akhanna222/email2kg/internal/model"
	"github.com/akhanna222/email2kg/pkg/anthropic"
)

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}
}

func testAnthropicConfig() config.AnthropicConfig {
	return config.AnthropicConfig{
		ClassifierModel: "claude-haiku-4-5-20251001",
		ExtractorModel:  "claude-sonnet-4-5-20250929",
		MaxTokens:       2000,
	}
}

func testCalculator() *cost.Calculator {
	return cost.NewCalculator(map[string]config.ModelPricing{
		"claude-haiku-4-5-20251001":  {Input: 1.00, Output: 5.00},
		"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
	})
}

func TestClassify_ParsesResponse(t *testing.T) {
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`{"document_type": "invoice", "confidence": 0.95}`), nil)

	c := NewClassifier(client, testAnthropicConfig(), testCalculator())
	dt, conf, err := c.Classify(context.Background(), "Invoice #123\nTotal: $50.00", model.EmailContext{})
	require.NoError(t, err)
	assert.Equal(t, model.DocTypeInvoice, dt)
	assert.InDelta(t, 0.95, conf, 0.001)
	client.AssertExpectations(t)
}

func TestClassify_FencedJSON(t *testing.T) {
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse("```json\n{\"document_type\": \"receipt\", \"confidence\": 0.8}\n```"), nil)

	c := NewClassifier(client, testAnthropicConfig(), testCalculator())
	dt, conf, err := c.Classify(context.Background(), "Thanks for shopping", model.EmailContext{})
	require.NoError(t, err)
	assert.Equal(t, model.DocTypeReceipt, dt)
	assert.InDelta(t, 0.8, conf, 0.001)
}

func TestClassify_UnknownTypeFallsBackToOther(t *testing.T) {
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`{"document_type": "greeting_card", "confidence": 0.9}`), nil)

	c := NewClassifier(client, testAnthropicConfig(), testCalculator())
	dt, _, err := c.Classify(context.Background(), "Happy birthday!", model.EmailContext{})
	require.NoError(t, err)
	assert.Equal(t, model.DocTypeOther, dt)
}

func TestClassify_GarbageResponse(t *testing.T) {
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse("I could not classify this document."), nil)

	c := NewClassifier(client, testAnthropicConfig(), testCalculator())
	dt, conf, err := c.Classify(context.Background(), "some text", model.EmailContext{})
	require.NoError(t, err)
	assert.Equal(t, model.DocTypeOther, dt)
	assert.Zero(t, conf)
}

func TestClassify_APIError(t *testing.T) {
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, errors.New("rate limited"))

	c := NewClassifier(client, testAnthropicConfig(), testCalculator())
	_, _, err := c.Classify(context.Background(), "some text", model.EmailContext{})
	assert.Error(t, err)
}

func TestClassify_IncludesEmailContext(t *testing.T) {
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return len(req.Messages) == 1 &&
			assert.ObjectsAreEqual("user", req.Messages[0].Role)
	})).Return(textResponse(`{"document_type": "invoice", "confidence": 0.9}`), nil)

	c := NewClassifier(client, testAnthropicConfig(), testCalculator())
	_, _, err := c.Classify(context.Background(), "doc text",
		model.EmailContext{Subject: "Invoice March", Body: "see attached"})
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestExtract_ParsesResponse(t *testing.T) {
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`{"amount": 123.45, "currency": "USD", "date": "2024-03-15", "vendor": "Acme Corp", "invoice_number": "INV-1"}`), nil)

	e := NewExtractor(client, testAnthropicConfig(), testCalculator())
	data, err := e.Extract(context.Background(), "Invoice text", model.DocTypeInvoice, model.EmailContext{})
	require.NoError(t, err)
	assert.Equal(t, 123.45, data["amount"])
	assert.Equal(t, "Acme Corp", data["vendor"])
	assert.Equal(t, "2024-03-15", data["date"])
}

func TestExtract_DropsNullFields(t *testing.T) {
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`{"amount": 50.0, "vendor": null, "date": null}`), nil)

	e := NewExtractor(client, testAnthropicConfig(), testCalculator())
	data, err := e.Extract(context.Background(), "text", model.DocTypeReceipt, model.EmailContext{})
	require.NoError(t, err)
	assert.Equal(t, 50.0, data["amount"])
	assert.NotContains(t, data, "vendor")
	assert.NotContains(t, data, "date")
	assert.Equal(t, "receipt", data["type"])
}

func TestExtract_UnparseableResponseDegradesToEmpty(t *testing.T) {
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse("sorry, no structured data here"), nil)

	e := NewExtractor(client, testAnthropicConfig(), testCalculator())
	data, err := e.Extract(context.Background(), "text", model.DocTypeInvoice, model.EmailContext{})
	require.NoError(t, err)
	assert.NotContains(t, data, "amount")
	assert.Equal(t, "USD", data["currency"])
	assert.Equal(t, "invoice", data["type"])
}

func TestExtract_APIError(t *testing.T) {
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, errors.New("overloaded"))

	e := NewExtractor(client, testAnthropicConfig(), testCalculator())
	_, err := e.Extract(context.Background(), "text", model.DocTypeInvoice, model.EmailContext{})
	assert.Error(t, err)
}

func TestCleanJSON(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, cleanJSON("```json\n{\"a\": 1}\n```"))
	assert.Equal(t, `{"a": 1}`, cleanJSON("```\n{\"a\": 1}\n```"))
	assert.Equal(t, `{"a": 1}`, cleanJSON(`Here you go: {"a": 1} Done.`))
	assert.Equal(t, `{"a": 1}`, cleanJSON(`  {"a": 1}  `))
}
