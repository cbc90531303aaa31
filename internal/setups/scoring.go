package setups

import (
	"price-action-bot/internal/analysis"
)

// ScoreContext carries the structural evidence behind a setup that the
// numeric score is built from.
type ScoreContext struct {
	ZoneStrength  analysis.ZoneStrength
	TrendStrength analysis.TrendStrengthBand
	FibConfluence bool
}

const (
	scoreBase       = 5
	minScore        = 1
	maxScore        = 10
	actionThreshold = 7
	fibTolerancePct = 0.15
)

// ScoreSetup computes the quality score for a setup: base 5, plus modifiers
// for zone strength, fibonacci confluence, trend strength, and reward:risk,
// minus a penalty for a weak rejection. The result is clamped to [1,10].
// Setups scoring at or above the threshold are actionable for automatic
// entry; lower scores surface for information only.
func ScoreSetup(s *Setup, ctx ScoreContext, minQuality int) {
	if minQuality <= 0 {
		minQuality = actionThreshold
	}

	score := scoreBase
	switch ctx.ZoneStrength {
	case analysis.ZoneStrong:
		score += 2
	case analysis.ZoneModerate:
		score++
	}
	if ctx.FibConfluence {
		score += 2
	}
	if ctx.TrendStrength == analysis.TrendStrong {
		score++
	}
	if s.RewardRisk() > 2.0 {
		score += 2
	}
	if s.RejectionQuality == RejectionWeak {
		score -= 2
	}

	if score < minScore {
		score = minScore
	}
	if score > maxScore {
		score = maxScore
	}
	s.QualityScore = score
	s.Actionable = score >= minQuality
}

// HasFibConfluence reports whether the setup's trigger sits within tolerance
// of any of the given fibonacci levels.
func HasFibConfluence(trigger float64, levels []analysis.FibLevel) bool {
	if trigger <= 0 {
		return false
	}
	for _, lv := range levels {
		dev := (trigger - lv.Price) / trigger * 100
		if dev < 0 {
			dev = -dev
		}
		if dev < fibTolerancePct {
			return true
		}
	}
	return false
}
