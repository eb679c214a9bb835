package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/akhanna222/email2kg/internal/config"
	"github.com/akhanna222/email2kg/internal/llm"
	"github.com/akhanna222/email2kg/internal/model"
	"github.com/akhanna222/email2kg/internal/ocr"
	"github.com/akhanna222/email2kg/internal/resilience"
	"github.com/akhanna222/email2kg/internal/store"
	"github.com/akhanna222/email2kg/internal/template"
)

// Processor orchestrates a document through OCR, classification, the
// template-first extraction decision, template learning, and knowledge
// graph persistence. All LLM calls share one rate limiter, with a circuit
// breaker per operation so a misbehaving API degrades the batch instead
// of hammering it.
type Processor struct {
	cfg       *config.Config
	store     store.Store
	templates *template.Service
	classify  llm.Classifier
	extract   llm.Extractor
	ocr       ocr.Extractor
	limiter   *rate.Limiter
	breakers  *resilience.ServiceBreakers
	retry     resilience.RetryConfig
}

// NewProcessor creates a Processor with all dependencies.
func NewProcessor(
	cfg *config.Config,
	st store.Store,
	templates *template.Service,
	classifier llm.Classifier,
	extractor llm.Extractor,
	ocrExtractor ocr.Extractor,
) *Processor {
	rps := cfg.Workers.LLMRequestsPerSecond
	if rps <= 0 {
		rps = 2.0
	}
	burst := cfg.Workers.LLMBurst
	if burst <= 0 {
		burst = 1
	}
	return &Processor{
		cfg:       cfg,
		store:     st,
		templates: templates,
		classify:  classifier,
		extract:   extractor,
		ocr:       ocrExtractor,
		limiter:   rate.NewLimiter(rate.Limit(rps), burst),
		breakers: resilience.NewServiceBreakers(resilience.FromCircuitConfig(
			cfg.Resilience.BreakerFailureThreshold,
			cfg.Resilience.BreakerResetTimeoutSecs,
		)),
		retry: resilience.FromRetryConfig(
			cfg.Resilience.RetryMaxAttempts,
			cfg.Resilience.RetryInitialBackoffMs,
			cfg.Resilience.RetryMaxBackoffMs,
			cfg.Resilience.RetryMultiplier,
			cfg.Resilience.RetryJitterFraction,
		),
	}
}

// ProcessDocument runs the full pipeline for one document. The document
// row must already exist; status transitions pending -> processing ->
// completed/failed. A document with no financial content still completes:
// "nothing found" is a valid outcome, not a failure.
func (p *Processor) ProcessDocument(ctx context.Context, doc *model.Document, email model.EmailContext) (*model.Document, error) {
	log := zap.L().With(zap.String("document_id", doc.ID), zap.String("filename", doc.Filename))
	log.Info("pipeline: processing document")

	if err := p.store.UpdateDocumentStatus(ctx, doc.ID, model.StatusProcessing); err != nil {
		return nil, eris.Wrap(err, "pipeline: mark processing")
	}

	fail := func(stage string, cause error) (*model.Document, error) {
		if statusErr := p.store.UpdateDocumentStatus(ctx, doc.ID, model.StatusFailed); statusErr != nil {
			log.Warn("pipeline: failed to mark document failed", zap.Error(statusErr))
		}
		return nil, eris.Wrapf(cause, "pipeline: %s", stage)
	}

	// Stage 1: text extraction. Re-runs reuse the stored text.
	text := doc.ExtractedText
	if text == "" {
		extracted, err := p.ocr.ExtractText(ctx, doc.FilePath)
		if err != nil {
			return fail("text_extraction", err)
		}
		text = extracted
	}
	if len(strings.TrimSpace(text)) < p.cfg.Extraction.MinTextLength {
		return fail("text_extraction", eris.Errorf("insufficient text: %d chars", len(strings.TrimSpace(text))))
	}
	doc.ExtractedText = text

	// Stage 2: classification.
	dt, classConfidence, err := p.classifyDocument(ctx, text, email)
	if err != nil {
		return fail("classification", err)
	}
	doc.DocumentType = dt
	log.Info("pipeline: classified",
		zap.String("document_type", string(dt)),
		zap.Float64("confidence", classConfidence),
	)

	// Non-financial documents complete without extraction.
	if dt == model.DocTypeOther {
		return p.complete(ctx, doc, nil)
	}

	// Stage 3: extraction, template-first.
	outcome, attempt, err := p.extractFields(ctx, doc, text, dt, email)
	if err != nil {
		return fail("extraction", err)
	}
	// Audit and template writes are persistence failures: they fail the
	// document so the task-queue level can retry it, rather than letting
	// it complete with no audit trail.
	if logErr := p.store.LogExtraction(ctx, attempt); logErr != nil {
		return fail("log_extraction", logErr)
	}

	// Stage 4: template learning from a successful LLM extraction.
	if outcome.Hit() && outcome.Method == model.MethodLLM {
		learned, learnErr := p.templates.CreateTemplateFromExtraction(ctx, doc.ID, dt, outcome.Data, text)
		if learnErr != nil {
			return fail("template_learning", learnErr)
		}
		outcome.LearnedTemplate = learned
		log.Info("pipeline: learned template",
			zap.String("template_id", learned.ID),
			zap.String("template_name", learned.Name),
		)
	}

	// Stage 5: knowledge graph.
	if outcome.Hit() {
		if graphErr := p.recordTransaction(ctx, doc, dt, outcome.Data); graphErr != nil {
			return fail("graph_update", graphErr)
		}
	}

	return p.complete(ctx, doc, outcome)
}

// complete finalizes the document row with whatever was extracted.
func (p *Processor) complete(ctx context.Context, doc *model.Document, outcome *model.ExtractionOutcome) (*model.Document, error) {
	doc.Status = model.StatusCompleted
	now := time.Now()
	doc.ProcessedAt = &now
	if outcome != nil {
		doc.ExtractedData = outcome.Data
	}
	if err := p.store.UpdateDocumentResult(ctx, doc); err != nil {
		return nil, eris.Wrap(err, "pipeline: save document result")
	}
	zap.L().Info("pipeline: document complete",
		zap.String("document_id", doc.ID),
		zap.String("document_type", string(doc.DocumentType)),
		zap.Bool("extracted", outcome.Hit()),
	)
	return doc, nil
}

// classifyDocument calls the classifier through the shared rate limiter,
// circuit breaker, and retry policy.
func (p *Processor) classifyDocument(ctx context.Context, text string, email model.EmailContext) (model.DocumentType, float64, error) {
	var (
		dt         model.DocumentType
		confidence float64
	)
	err := p.callLLM(ctx, "classify", func(ctx context.Context) error {
		var callErr error
		dt, confidence, callErr = p.classify.Classify(ctx, text, email)
		return callErr
	})
	return dt, confidence, err
}

// extractFields tries the matched template first and falls back to the LLM.
// A template that matched but produced an unusable result gets a failure
// recorded against its stats before the fallback runs.
func (p *Processor) extractFields(ctx context.Context, doc *model.Document, text string, dt model.DocumentType, email model.EmailContext) (*model.ExtractionOutcome, *model.ExtractionAttempt, error) {
	log := zap.L().With(zap.String("document_id", doc.ID))
	start := time.Now()

	matched, err := p.templates.FindMatchingTemplate(ctx, text, dt)
	if err != nil {
		return nil, nil, err
	}

	if matched != nil {
		result := p.templates.ExtractWithTemplate(text, matched)
		if result.Usable() {
			if _, statsErr := p.templates.UpdateStats(ctx, matched.ID, true); statsErr != nil {
				return nil, nil, eris.Wrap(statsErr, "pipeline: record template success")
			}
			log.Info("pipeline: template extraction",
				zap.String("template_id", matched.ID),
				zap.String("template_name", matched.Name),
			)
			outcome := &model.ExtractionOutcome{
				Method:           model.MethodTemplate,
				Data:             result.Data,
				ConfidenceScores: result.ConfidenceScores,
				TemplateID:       matched.ID,
			}
			return outcome, p.newAttempt(doc.ID, outcome, start, ""), nil
		}

		// Matched but could not extract: the template's record takes the hit.
		if _, statsErr := p.templates.UpdateStats(ctx, matched.ID, false); statsErr != nil {
			return nil, nil, eris.Wrap(statsErr, "pipeline: record template failure")
		}
		log.Info("pipeline: template matched but unusable, falling back to llm",
			zap.String("template_id", matched.ID),
		)
	}

	data, err := resilience.DoVal(ctx, p.retryFor("extract"), func(ctx context.Context) (map[string]any, error) {
		if waitErr := p.limiter.Wait(ctx); waitErr != nil {
			return nil, waitErr
		}
		return resilience.ExecuteVal(ctx, p.breakers.Get("extract"), func(ctx context.Context) (map[string]any, error) {
			return p.extract.Extract(ctx, text, dt, email)
		})
	})
	if err != nil {
		return nil, nil, err
	}

	outcome := &model.ExtractionOutcome{
		Method: model.MethodLLM,
		Data:   data,
	}
	return outcome, p.newAttempt(doc.ID, outcome, start, ""), nil
}

// newAttempt builds the audit record for one extraction pass.
func (p *Processor) newAttempt(docID string, outcome *model.ExtractionOutcome, start time.Time, errMsg string) *model.ExtractionAttempt {
	return &model.ExtractionAttempt{
		ID:               uuid.NewString(),
		DocumentID:       docID,
		TemplateID:       outcome.TemplateID,
		Method:           outcome.Method,
		Fields:           outcome.Data,
		ConfidenceScores: outcome.ConfidenceScores,
		Success:          outcome.Hit(),
		ExtractionTime:   time.Since(start).Seconds(),
		ErrorMessage:     errMsg,
		CreatedAt:        time.Now(),
	}
}

// recordTransaction resolves the vendor party and writes the transaction
// edge linking the document to it. An amount value that cannot be parsed
// as a number is skipped, not failed: the document still holds the raw
// extracted data.
func (p *Processor) recordTransaction(ctx context.Context, doc *model.Document, dt model.DocumentType, data map[string]any) error {
	amount, ok := parseAmount(data["amount"])
	if !ok {
		zap.L().Warn("pipeline: amount present but unparseable",
			zap.String("document_id", doc.ID),
		)
		return nil
	}

	var partyID string
	if vendor := stringField(data, "vendor"); vendor != "" {
		party, err := p.findOrCreateParty(ctx, vendor)
		if err != nil {
			return err
		}
		partyID = party.ID
	}

	tx := &model.Transaction{
		ID:              uuid.NewString(),
		DocumentID:      doc.ID,
		PartyID:         partyID,
		Amount:          amount,
		Currency:        normalizeCurrency(stringField(data, "currency")),
		TransactionDate: parseDate(stringField(data, "date")),
		TransactionType: string(dt),
		Description:     stringField(data, "invoice_number"),
		CreatedAt:       time.Now(),
	}
	if err := p.store.CreateTransaction(ctx, tx); err != nil {
		return eris.Wrap(err, "pipeline: create transaction")
	}
	return nil
}

// findOrCreateParty resolves a vendor name to its graph node, creating it
// on first sight. Resolution keys on the normalized name.
func (p *Processor) findOrCreateParty(ctx context.Context, name string) (*model.Party, error) {
	normalized := normalizeName(name)
	existing, err := p.store.FindPartyByNormalizedName(ctx, normalized)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: party lookup")
	}
	if existing != nil {
		return existing, nil
	}

	party := &model.Party{
		ID:             uuid.NewString(),
		Name:           name,
		NormalizedName: normalized,
		PartyType:      "vendor",
		CreatedAt:      time.Now(),
	}
	if err := p.store.CreateParty(ctx, party); err != nil {
		return nil, eris.Wrap(err, "pipeline: create party")
	}
	return party, nil
}

// callLLM applies the shared rate limit, the operation's circuit breaker,
// and the retry policy to one LLM call.
func (p *Processor) callLLM(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return resilience.Do(ctx, p.retryFor(op), func(ctx context.Context) error {
		if waitErr := p.limiter.Wait(ctx); waitErr != nil {
			return waitErr
		}
		return p.breakers.Get(op).Execute(ctx, fn)
	})
}

// retryFor copies the retry policy with logging attributed to the operation.
func (p *Processor) retryFor(op string) resilience.RetryConfig {
	cfg := p.retry
	cfg.OnRetry = resilience.RetryLogger("anthropic", op)
	return cfg
}
