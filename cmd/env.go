package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/akhanna222/email2kg/internal/cost"
	"github.com/akhanna222/email2kg/internal/llm"
	"github.com/akhanna222/email2kg/internal/ocr"
	"github.com/akhanna222/email2kg/internal/pipeline"
	"github.com/akhanna222/email2kg/internal/store"
	"github.com/akhanna222/email2kg/internal/template"
	"github.com/akhanna222/email2kg/pkg/anthropic"
)

// env holds the initialized store and services needed by the commands.
type env struct {
	Store     store.Store
	Templates *template.Service
	Processor *pipeline.Processor
}

// Close releases resources held by the environment.
func (e *env) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured database backend and runs migrations.
func initStore(ctx context.Context) (store.Store, error) {
	var st store.Store
	var err error

	switch cfg.Store.Driver {
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	case "sqlite", "":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initEnv sets up the store, Anthropic client, and processing services.
// Callers should defer env.Close().
func initEnv(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	ocrExtractor, err := ocr.NewExtractor(cfg.OCR)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	aiClient := anthropic.NewClient(cfg.Anthropic.Key)
	costs := cost.NewCalculator(cfg.Pricing.Anthropic)
	classifier := llm.NewClassifier(aiClient, cfg.Anthropic, costs)
	extractor := llm.NewExtractor(aiClient, cfg.Anthropic, costs)
	templates := template.NewService(st, cfg.Extraction)

	return &env{
		Store:     st,
		Templates: templates,
		Processor: pipeline.NewProcessor(cfg, st, templates, classifier, extractor, ocrExtractor),
	}, nil
}
