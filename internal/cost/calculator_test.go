package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/akhanna222/email2kg/internal/config"
	"github.com/akhanna222/email2kg/internal/store"
	"github.com/akhanna222/email2kg/pkg/anthropic"
)

func testRates() map[string]config.ModelPricing {
	return map[string]config.ModelPricing{
		"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
		"claude-haiku-4-5-20251001":  {Input: 1.00, Output: 5.00},
	}
}

func TestCalculator_Claude(t *testing.T) {
	calc := NewCalculator(testRates())

	// 1M input at $3 + 1M output at $15.
	assert.InDelta(t, 18.0, calc.Claude("claude-sonnet-4-5-20250929", 1_000_000, 1_000_000), 1e-9)
	assert.InDelta(t, 0.0015, calc.Claude("claude-haiku-4-5-20251001", 1000, 100), 1e-9)
	assert.Zero(t, calc.Claude("unknown-model", 1_000_000, 1_000_000))
}

func TestCalculator_UsagePricesFromConfiguredRates(t *testing.T) {
	// Operators tuning pricing.anthropic must see it reflected everywhere,
	// including per-call cost attribution.
	calc := NewCalculator(map[string]config.ModelPricing{
		"claude-sonnet-4-5-20250929": {Input: 6.00, Output: 30.00},
	})

	usage := anthropic.TokenUsage{InputTokens: 1_000_000, OutputTokens: 500_000}
	assert.InDelta(t, 6.0+15.0, calc.Usage("claude-sonnet-4-5-20250929", usage), 1e-9)
	assert.Zero(t, calc.Usage("unknown-model", usage))
}

func TestCalculator_ExtractionCallCost(t *testing.T) {
	calc := NewCalculator(testRates())

	// 1500 in * $3/MTok + 250 out * $15/MTok.
	assert.InDelta(t, 0.0045+0.00375, calc.ExtractionCallCost("claude-sonnet-4-5-20250929"), 1e-9)
}

func TestCalculator_Savings(t *testing.T) {
	calc := NewCalculator(testRates())
	summary := &store.UsageSummary{
		TemplateAttempts:  10,
		TemplateSuccesses: 8,
		LLMAttempts:       5,
		LLMSuccesses:      4,
	}

	report := calc.Savings(summary, "claude-sonnet-4-5-20250929")
	assert.Equal(t, 8, report.TemplateHits)
	assert.Equal(t, 5, report.LLMCalls)
	assert.InDelta(t, 8*0.00825, report.EstimatedSavings, 1e-9)
	assert.InDelta(t, 8.0/15.0, report.HitRate, 1e-9)
}

func TestCalculator_SavingsEmpty(t *testing.T) {
	calc := NewCalculator(testRates())

	report := calc.Savings(&store.UsageSummary{}, "claude-sonnet-4-5-20250929")
	assert.Zero(t, report.EstimatedSavings)
	assert.Zero(t, report.HitRate)
}
