package ocr

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/akhanna222/email2kg/internal/config"
)

// Extractor extracts text content from document files.
type Extractor interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// FileExtractor dispatches to a format-specific extractor by file extension.
type FileExtractor struct {
	pdf Extractor
}

// NewExtractor creates an Extractor based on config.
func NewExtractor(cfg config.OCRConfig) (Extractor, error) {
	switch cfg.Provider {
	case "local", "":
		return &FileExtractor{pdf: NewPdfToText(cfg.PdfToTextPath)}, nil
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.Provider)
	}
}

func (f *FileExtractor) ExtractText(ctx context.Context, path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return f.pdf.ExtractText(ctx, path)
	case ".xlsx":
		return extractXLSX(path)
	default:
		return extractPlainText(path)
	}
}
