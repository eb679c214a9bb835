package template

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/akhanna222/email2kg/internal/config"
	"github.com/akhanna222/email2kg/internal/model"
	"github.com/akhanna222/email2kg/internal/store"
)

// Service ties the matcher, extractor, and learner to template storage.
type Service struct {
	store   store.Store
	matcher *Matcher
	cfg     config.ExtractionConfig
}

// NewService creates a template Service.
func NewService(st store.Store, cfg config.ExtractionConfig) *Service {
	return &Service{
		store:   st,
		matcher: NewMatcher(cfg),
		cfg:     cfg,
	}
}

// FindMatchingTemplate returns the best active template for the document,
// or nil when nothing scores above the match threshold.
func (s *Service) FindMatchingTemplate(ctx context.Context, text string, dt model.DocumentType) (*model.Template, error) {
	candidates, err := s.store.ListTemplates(ctx, store.TemplateFilter{
		DocumentType: dt,
		ActiveOnly:   true,
		Limit:        s.cfg.MaxCandidates,
	})
	if err != nil {
		return nil, eris.Wrap(err, "template: list candidates")
	}

	best, score := s.matcher.Best(text, candidates)
	if best == nil {
		zap.L().Debug("template: no match",
			zap.String("document_type", string(dt)),
			zap.Int("candidates", len(candidates)),
			zap.Float64("best_score", score),
		)
	}
	return best, nil
}

// ExtractWithTemplate applies the template's schema to the text.
func (s *Service) ExtractWithTemplate(text string, t *model.Template) *model.TemplateResult {
	return Extract(text, t)
}

// CreateTemplateFromExtraction mints and persists a template learned from
// a successful LLM extraction. Creation is deduplicated on
// (document_type, layout_signature): when an active template with the
// same signature already exists, that one is returned instead of minting
// a near-duplicate.
func (s *Service) CreateTemplateFromExtraction(ctx context.Context, docID string, dt model.DocumentType, data map[string]any, text string) (*model.Template, error) {
	t := Learn(docID, dt, data, text)

	existing, err := s.store.FindTemplateBySignature(ctx, dt, t.LayoutSignature)
	if err != nil {
		return nil, eris.Wrap(err, "template: dedup lookup")
	}
	if existing != nil {
		zap.L().Debug("template: duplicate signature, reusing existing",
			zap.String("template_id", existing.ID),
			zap.String("layout_signature", t.LayoutSignature),
		)
		return existing, nil
	}

	count, err := s.store.CountTemplates(ctx, dt)
	if err != nil {
		return nil, eris.Wrap(err, "template: count for naming")
	}
	t.Name = Name(dt, count)

	if err := s.store.CreateTemplate(ctx, t); err != nil {
		return nil, eris.Wrap(err, "template: persist learned template")
	}
	return t, nil
}

// UpdateStats records one use of a template. Failures count too: a
// template that matched but failed to extract has its confidence pulled
// down, not frozen.
func (s *Service) UpdateStats(ctx context.Context, templateID string, success bool) (*model.Template, error) {
	return s.store.UpdateTemplateStats(ctx, templateID, success)
}

// List returns templates, optionally filtered by type.
func (s *Service) List(ctx context.Context, dt model.DocumentType, activeOnly bool) ([]model.Template, error) {
	return s.store.ListTemplates(ctx, store.TemplateFilter{DocumentType: dt, ActiveOnly: activeOnly})
}

// Get returns a single template by id.
func (s *Service) Get(ctx context.Context, id string) (*model.Template, error) {
	return s.store.GetTemplate(ctx, id)
}

// Import persists an operator-authored template.
func (s *Service) Import(ctx context.Context, t *model.Template) error {
	return s.store.CreateTemplate(ctx, t)
}

// Deactivate soft-deletes a template.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	return s.store.DeactivateTemplate(ctx, id)
}

// Delete hard-deletes a template.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.DeleteTemplate(ctx, id)
}
