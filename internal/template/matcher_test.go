package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akhanna222/email2kg/internal/config"
	"github.com/akhanna222/email2kg/internal/layout"
	"github.com/akhanna222/email2kg/internal/model"
)

func defaultMatcher() *Matcher {
	return NewMatcher(config.ExtractionConfig{})
}

func TestMatcher_NoCandidates(t *testing.T) {
	best, score := defaultMatcher().Best("some text", nil)
	assert.Nil(t, best)
	assert.Zero(t, score)
}

func TestMatcher_KeywordsOnly_FullOverlap(t *testing.T) {
	tmpl := model.Template{
		ID:       "t1",
		Keywords: []string{"invoice", "payment", "due"},
	}

	best, score := defaultMatcher().Best("INVOICE\nPayment due on receipt", []model.Template{tmpl})
	require.NotNil(t, best)
	assert.Equal(t, "t1", best.ID)
	assert.InDelta(t, 1.0, score, 1e-9)
}

func TestMatcher_ThresholdBoundary_ExactScoreRejected(t *testing.T) {
	// 3 of 5 keywords present, keywords-only scoring: exactly 0.6.
	tmpl := model.Template{
		ID:       "t1",
		Keywords: []string{"invoice", "payment", "due", "zebra", "quux"},
	}

	best, score := defaultMatcher().Best("invoice payment due", []model.Template{tmpl})
	assert.Nil(t, best)
	assert.InDelta(t, 0.6, score, 1e-9)
}

func TestMatcher_AboveThresholdAccepted(t *testing.T) {
	// 2 of 3 keywords: 0.667 > 0.6.
	tmpl := model.Template{
		ID:       "t1",
		Keywords: []string{"invoice", "payment", "zebra"},
	}

	best, _ := defaultMatcher().Best("invoice payment", []model.Template{tmpl})
	require.NotNil(t, best)
}

func TestMatcher_VendorPattern(t *testing.T) {
	text := "Bill from Acme Corp\ninvoice payment due subtotal bill"
	tmpl := model.Template{
		ID:            "t1",
		Keywords:      []string{"invoice", "payment"},
		VendorPattern: "acme\\s+corp",
	}

	// Keywords 1.0 * 0.4 + vendor 1.0 * 0.3, normalized by 0.7.
	best, score := defaultMatcher().Best(text, []model.Template{tmpl})
	require.NotNil(t, best)
	assert.InDelta(t, 1.0, score, 1e-9)

	// Vendor absent: (0.4 + 0) / 0.7 ≈ 0.571, below threshold.
	best, score = defaultMatcher().Best("invoice payment from Globex", []model.Template{tmpl})
	assert.Nil(t, best)
	assert.InDelta(t, 0.4/0.7, score, 1e-9)
}

func TestMatcher_InvalidVendorPatternScoresZero(t *testing.T) {
	tmpl := model.Template{
		ID:            "t1",
		Keywords:      []string{"invoice"},
		VendorPattern: "([unclosed",
	}

	best, score := defaultMatcher().Best("invoice", []model.Template{tmpl})
	assert.Nil(t, best)
	assert.InDelta(t, 0.4/0.7, score, 1e-9)
}

func TestMatcher_LayoutExactMatch(t *testing.T) {
	text := "Invoice\nTotal: $50.00\n"
	tmpl := model.Template{
		ID:              "t1",
		LayoutSignature: layout.Signature(text),
	}

	best, score := defaultMatcher().Best(text, []model.Template{tmpl})
	require.NotNil(t, best)
	assert.InDelta(t, 1.0, score, 1e-9)
}

func TestMatcher_LayoutMismatchGetsPartialCredit(t *testing.T) {
	tmpl := model.Template{
		ID:              "t1",
		LayoutSignature: layout.Signature("a\ncompletely\ndifferent\nshape\nwith\nmany\nlines"),
	}

	// Partial credit 0.5, layout-only: 0.5 <= 0.6, rejected but nonzero.
	best, score := defaultMatcher().Best("Invoice\nTotal: $50.00\n", []model.Template{tmpl})
	assert.Nil(t, best)
	assert.InDelta(t, 0.5, score, 1e-9)
}

func TestMatcher_NoMatchingAidsScoresZero(t *testing.T) {
	tmpl := model.Template{ID: "bare"}

	best, score := defaultMatcher().Best("anything", []model.Template{tmpl})
	assert.Nil(t, best)
	assert.Zero(t, score)
}

func TestMatcher_TieKeepsFirstCandidate(t *testing.T) {
	// Candidates arrive pre-sorted by confidence; equal scores keep the first.
	first := model.Template{ID: "high-confidence", Keywords: []string{"invoice"}}
	second := model.Template{ID: "low-confidence", Keywords: []string{"invoice"}}

	best, _ := defaultMatcher().Best("invoice", []model.Template{first, second})
	require.NotNil(t, best)
	assert.Equal(t, "high-confidence", best.ID)
}

func TestMatcher_PicksHighestScorer(t *testing.T) {
	weak := model.Template{ID: "weak", Keywords: []string{"invoice", "zebra", "quux"}}
	strong := model.Template{ID: "strong", Keywords: []string{"invoice", "payment"}}

	best, _ := defaultMatcher().Best("invoice payment", []model.Template{weak, strong})
	require.NotNil(t, best)
	assert.Equal(t, "strong", best.ID)
}
