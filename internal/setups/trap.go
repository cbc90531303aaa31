package setups

import (
	"fmt"
	"math"
	"sort"

	"price-action-bot/internal/analysis"
	"price-action-bot/internal/market"
)

// TrapConfig tunes the three-swing-trap geometry. The pattern definition
// varies across trading literature, so both thresholds stay configurable
// rather than hard-coded.
type TrapConfig struct {
	// MagnitudeRatio caps the third swing's travel relative to the second;
	// the third swing must be strictly smaller than ratio times the second.
	MagnitudeRatio float64
	// ReversalBodyRatio is the minimum body share of the reversal candle.
	ReversalBodyRatio float64
}

// DefaultTrapConfig is the conservative interpretation: the third swing must
// be outright smaller than the second and the reversal candle needs a body of
// at least half its range.
func DefaultTrapConfig() TrapConfig {
	return TrapConfig{MagnitudeRatio: 1.0, ReversalBodyRatio: 0.5}
}

// DetectThreeSwingTrap looks for an A-B-C swing sequence where swing C moves
// in the same direction as A but travels less than B did and fails to extend
// beyond A's extreme, followed immediately by a decisive candle against C's
// direction. Trapped participants on the failed third swing fuel the entry.
func DetectThreeSwingTrap(instrument string, candles []market.Candle, highs, lows []analysis.SwingPoint, cfg TrapConfig, strength analysis.StrengthReport) []Setup {
	if cfg.MagnitudeRatio <= 0 {
		cfg.MagnitudeRatio = 1.0
	}
	if cfg.ReversalBodyRatio <= 0 {
		cfg.ReversalBodyRatio = 0.5
	}

	merged := make([]analysis.SwingPoint, 0, len(highs)+len(lows))
	merged = append(merged, highs...)
	merged = append(merged, lows...)
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Index < merged[j].Index })
	if len(merged) < 3 || len(candles) == 0 {
		return nil
	}

	a := merged[len(merged)-3]
	b := merged[len(merged)-2]
	c := merged[len(merged)-1]

	// strict alternation: A and C the same kind, B the opposite
	if a.Kind != c.Kind || b.Kind == a.Kind {
		return nil
	}

	legB := math.Abs(b.Price - a.Price)
	legC := math.Abs(c.Price - b.Price)
	if legB == 0 || legC >= cfg.MagnitudeRatio*legB {
		return nil
	}

	reversal := candles[len(candles)-1]
	if reversal.BodyRatio() < cfg.ReversalBodyRatio {
		return nil
	}

	var s Setup
	switch c.Kind {
	case analysis.SwingLow:
		// sellers failed to push below A; need a bullish reversal candle
		if c.Price <= a.Price || !reversal.IsBullish() {
			return nil
		}
		s = newSetup(ThreeSwingTrap, instrument, Long)
		s.TriggerPrice = reversal.High
		s.StopLoss = c.Price
	case analysis.SwingHigh:
		if c.Price >= a.Price || !reversal.IsBearish() {
			return nil
		}
		s = newSetup(ThreeSwingTrap, instrument, Short)
		s.TriggerPrice = reversal.Low
		s.StopLoss = c.Price
	default:
		return nil
	}

	s.RejectionQuality = gradeRejection(reversal)
	s.Target1, s.Target2 = projectTargets(s.TriggerPrice, s.StopLoss, s.Direction, strength.LastImpulse)
	s.SupportingFactors = append(s.SupportingFactors,
		fmt.Sprintf("third swing stalled at %.2f without reaching %.2f", c.Price, a.Price))
	s.Risks = append(s.Risks, "counter-trend pattern, demands decisive follow-through")
	return []Setup{s}
}
