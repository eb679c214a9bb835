package pipeline

import (
	"context"
	"mime"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/akhanna222/email2kg/internal/model"
	"github.com/akhanna222/email2kg/internal/resilience"
)

// BatchResult summarizes one batch run. Failed documents land in DLQ with
// their error classification so a later run can retry the transient ones.
type BatchResult struct {
	Processed []model.Document
	DLQ       []resilience.DLQEntry
}

// IngestFile creates the pending document row for a file on disk.
func (p *Processor) IngestFile(ctx context.Context, path string) (*model.Document, error) {
	doc := &model.Document{
		ID:         uuid.NewString(),
		Filename:   filepath.Base(path),
		FilePath:   path,
		MimeType:   mime.TypeByExtension(filepath.Ext(path)),
		Status:     model.StatusPending,
		UploadedAt: time.Now(),
	}
	if err := p.store.CreateDocument(ctx, doc); err != nil {
		return nil, eris.Wrap(err, "pipeline: ingest file")
	}
	return doc, nil
}

// ProcessBatch ingests and processes files concurrently, bounded by the
// configured worker count. One failing document never aborts the batch.
func (p *Processor) ProcessBatch(ctx context.Context, paths []string, email model.EmailContext) (*BatchResult, error) {
	workers := p.cfg.Workers.MaxConcurrentDocuments
	if workers <= 0 {
		workers = 1
	}

	var mu sync.Mutex
	result := &BatchResult{}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, path := range paths {
		g.Go(func() error {
			doc, err := p.IngestFile(gCtx, path)
			if err == nil {
				var processed *model.Document
				if processed, err = p.ProcessDocument(gCtx, doc, email); err == nil {
					doc = processed
				}
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				entry := newDLQEntry(doc, path, err)
				result.DLQ = append(result.DLQ, entry)
				zap.L().Error("pipeline: document failed",
					zap.String("path", path),
					zap.String("error_type", entry.ErrorType),
					zap.Error(err),
				)
				return nil
			}
			result.Processed = append(result.Processed, *doc)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result, eris.Wrap(err, "pipeline: batch")
	}

	zap.L().Info("pipeline: batch complete",
		zap.Int("processed", len(result.Processed)),
		zap.Int("failed", len(result.DLQ)),
	)
	if len(result.DLQ) > 0 {
		zap.L().Warn("pipeline: llm breaker states after batch",
			zap.Any("breakers", p.BreakerStates()),
		)
	}
	return result, nil
}

// BreakerStates reports the state of each LLM operation's circuit breaker.
func (p *Processor) BreakerStates() map[string]string {
	states := make(map[string]string)
	for op, st := range p.breakers.States() {
		states[op] = st.String()
	}
	return states
}

func newDLQEntry(doc *model.Document, path string, err error) resilience.DLQEntry {
	now := time.Now()
	entry := resilience.DLQEntry{
		ID:           uuid.NewString(),
		Filename:     filepath.Base(path),
		Error:        err.Error(),
		ErrorType:    resilience.ClassifyError(err),
		MaxRetries:   3,
		NextRetryAt:  now.Add(time.Minute),
		CreatedAt:    now,
		LastFailedAt: now,
	}
	if doc != nil {
		entry.DocumentID = doc.ID
	}
	return entry
}
