package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "email2kg.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.ClassifierModel)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.ExtractorModel)
	assert.Equal(t, 2000, cfg.Anthropic.MaxTokens)
	assert.Equal(t, "local", cfg.OCR.Provider)
	assert.Equal(t, "pdftotext", cfg.OCR.PdfToTextPath)
	assert.InDelta(t, 0.6, cfg.Extraction.MatchThreshold, 0.001)
	assert.InDelta(t, 0.4, cfg.Extraction.KeywordWeight, 0.001)
	assert.InDelta(t, 0.3, cfg.Extraction.VendorWeight, 0.001)
	assert.InDelta(t, 0.3, cfg.Extraction.LayoutWeight, 0.001)
	assert.InDelta(t, 0.5, cfg.Extraction.LayoutPartialScore, 0.001)
	assert.Equal(t, 20, cfg.Extraction.MinTextLength)
	assert.Equal(t, 4, cfg.Workers.MaxConcurrentDocuments)
	assert.InDelta(t, 2.0, cfg.Workers.LLMRequestsPerSecond, 0.001)
	assert.Equal(t, 3, cfg.Resilience.RetryMaxAttempts)
	assert.Equal(t, 500, cfg.Resilience.RetryInitialBackoffMs)
	assert.Equal(t, 5, cfg.Resilience.BreakerFailureThreshold)
	assert.Equal(t, 30, cfg.Resilience.BreakerResetTimeoutSecs)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/email2kg
log:
  level: debug
  format: console
extraction:
  match_threshold: 0.7
workers:
  max_concurrent_documents: 8
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/email2kg", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.InDelta(t, 0.7, cfg.Extraction.MatchThreshold, 0.001)
	assert.Equal(t, 8, cfg.Workers.MaxConcurrentDocuments)
	// Defaults still apply for unset values
	assert.InDelta(t, 0.4, cfg.Extraction.KeywordWeight, 0.001)
	assert.Equal(t, 20, cfg.Extraction.MinTextLength)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("EMAIL2KG_STORE_DRIVER", "sqlite")
	t.Setenv("EMAIL2KG_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("EMAIL2KG_WORKERS_MAX_CONCURRENT_DOCUMENTS", "16")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Workers.MaxConcurrentDocuments)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerBadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "nope", Format: "json"})
	assert.Error(t, err)
}
