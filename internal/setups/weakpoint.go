package setups

import (
	"fmt"

	"price-action-bot/internal/analysis"
	"price-action-bot/internal/market"
)

// DetectWeakPoint finds failed-auction patterns on the trigger timeframe. A
// Lower Weak Point (uptrend only) is a failed test of the prior swing low:
// the low of the last five candles holds strictly above it, and the latest
// close sits above the close three candles back, showing a quick rejection
// upward. The Higher Weak Point is the exact mirror for downtrends. Needs at
// least ten candles.
func DetectWeakPoint(instrument string, candles []market.Candle, trend analysis.TrendState, strength analysis.StrengthReport) []Setup {
	if len(candles) < 10 {
		return nil
	}

	last5 := candles[len(candles)-5:]
	lastClose := candles[len(candles)-1].Close
	closeThreeAgo := candles[len(candles)-4].Close

	switch trend.Direction {
	case analysis.TrendUp:
		if len(trend.RecentLows) == 0 {
			return nil
		}
		priorLow := trend.RecentLows[len(trend.RecentLows)-1].Price
		recentLow := minLow(last5)
		if recentLow <= priorLow || lastClose <= closeThreeAgo {
			return nil
		}

		s := newSetup(LowerWeakPoint, instrument, Long)
		s.TriggerPrice = maxHigh(last5)
		s.StopLoss = recentLow
		s.RejectionQuality = RejectionModerate
		if (recentLow-priorLow)/priorLow*100 > 0.1 {
			s.RejectionQuality = RejectionHigh
			s.SupportingFactors = append(s.SupportingFactors, "low held clearly above the prior swing low")
		}
		s.Target1, s.Target2 = projectTargets(s.TriggerPrice, s.StopLoss, Long, strength.LastImpulse)
		s.SupportingFactors = append(s.SupportingFactors,
			fmt.Sprintf("failed test of swing low %.2f", priorLow))
		return []Setup{s}

	case analysis.TrendDown:
		if len(trend.RecentHighs) == 0 {
			return nil
		}
		priorHigh := trend.RecentHighs[len(trend.RecentHighs)-1].Price
		recentHigh := maxHigh(last5)
		if recentHigh >= priorHigh || lastClose >= closeThreeAgo {
			return nil
		}

		s := newSetup(HigherWeakPoint, instrument, Short)
		s.TriggerPrice = minLow(last5)
		s.StopLoss = recentHigh
		s.RejectionQuality = RejectionModerate
		if (priorHigh-recentHigh)/priorHigh*100 > 0.1 {
			s.RejectionQuality = RejectionHigh
			s.SupportingFactors = append(s.SupportingFactors, "high held clearly below the prior swing high")
		}
		s.Target1, s.Target2 = projectTargets(s.TriggerPrice, s.StopLoss, Short, strength.LastImpulse)
		s.SupportingFactors = append(s.SupportingFactors,
			fmt.Sprintf("failed test of swing high %.2f", priorHigh))
		return []Setup{s}
	}

	return nil
}
