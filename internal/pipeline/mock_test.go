package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/akhanna222/email2kg/internal/model"
)

// --- Classifier Mock ---

type mockClassifier struct {
	mock.Mock
}

func (m *mockClassifier) Classify(ctx context.Context, text string, email model.EmailContext) (model.DocumentType, float64, error) {
	args := m.Called(ctx, text, email)
	return args.Get(0).(model.DocumentType), args.Get(1).(float64), args.Error(2)
}

// --- Extractor Mock ---

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) Extract(ctx context.Context, text string, dt model.DocumentType, email model.EmailContext) (map[string]any, error) {
	args := m.Called(ctx, text, dt, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]any), args.Error(1)
}

// --- OCR Mock ---

type mockOCR struct {
	mock.Mock
}

func (m *mockOCR) ExtractText(ctx context.Context, path string) (string, error) {
	args := m.Called(ctx, path)
	return args.String(0), args.Error(1)
}
