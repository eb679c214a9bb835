// Package template implements the self-improving extraction engine:
// scoring stored templates against document text, applying a matched
// template's field schema, and learning new templates from successful
// LLM extractions.
package template

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/akhanna222/email2kg/internal/config"
	"github.com/akhanna222/email2kg/internal/layout"
	"github.com/akhanna222/email2kg/internal/model"
)

// Matcher scores candidate templates against document text.
type Matcher struct {
	cfg config.ExtractionConfig
}

// NewMatcher creates a Matcher with the given tuning. Zero-valued weights
// fall back to the standard 0.4/0.3/0.3 split and the 0.6 threshold.
func NewMatcher(cfg config.ExtractionConfig) *Matcher {
	if cfg.KeywordWeight <= 0 {
		cfg.KeywordWeight = 0.4
	}
	if cfg.VendorWeight <= 0 {
		cfg.VendorWeight = 0.3
	}
	if cfg.LayoutWeight <= 0 {
		cfg.LayoutWeight = 0.3
	}
	if cfg.LayoutPartialScore <= 0 {
		cfg.LayoutPartialScore = 0.5
	}
	if cfg.MatchThreshold <= 0 {
		cfg.MatchThreshold = 0.6
	}
	return &Matcher{cfg: cfg}
}

// Best scores every candidate and returns the winner, or nil when no
// candidate scores strictly above the threshold. Candidates are expected
// pre-sorted by descending confidence score, so ties keep the template
// with the better track record.
func (m *Matcher) Best(text string, candidates []model.Template) (*model.Template, float64) {
	if len(candidates) == 0 {
		return nil, 0
	}

	signature := layout.Signature(text)

	var best *model.Template
	bestScore := 0.0
	for i := range candidates {
		score := m.score(text, signature, &candidates[i])
		if score > bestScore {
			bestScore = score
			best = &candidates[i]
		}
	}

	if bestScore <= m.cfg.MatchThreshold {
		return nil, bestScore
	}
	zap.L().Debug("template: matched",
		zap.String("template_id", best.ID),
		zap.String("template_name", best.Name),
		zap.Float64("match_score", bestScore),
	)
	return best, bestScore
}

// score combines up to three sub-scores. A template missing a matching
// aid skips that sub-score entirely; the total is normalized by the sum
// of the weights actually present, so a keywords-only template is scored
// purely on keyword overlap.
func (m *Matcher) score(text, signature string, t *model.Template) float64 {
	var total, weights float64

	if len(t.Keywords) > 0 {
		total += keywordScore(text, t.Keywords) * m.cfg.KeywordWeight
		weights += m.cfg.KeywordWeight
	}

	if t.VendorPattern != "" {
		total += vendorScore(text, t.VendorPattern) * m.cfg.VendorWeight
		weights += m.cfg.VendorWeight
	}

	if t.LayoutSignature != "" {
		layoutScore := m.cfg.LayoutPartialScore
		if signature == t.LayoutSignature {
			layoutScore = 1.0
		}
		total += layoutScore * m.cfg.LayoutWeight
		weights += m.cfg.LayoutWeight
	}

	if weights == 0 {
		return 0
	}
	return total / weights
}

func keywordScore(text string, keywords []string) float64 {
	textLower := strings.ToLower(text)
	matches := 0
	for _, kw := range keywords {
		if strings.Contains(textLower, strings.ToLower(kw)) {
			matches++
		}
	}
	return float64(matches) / float64(len(keywords))
}

func vendorScore(text, pattern string) float64 {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		zap.L().Warn("template: invalid vendor pattern", zap.String("pattern", pattern), zap.Error(err))
		return 0
	}
	if re.MatchString(text) {
		return 1.0
	}
	return 0
}
