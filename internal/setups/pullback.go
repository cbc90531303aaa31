package setups

import (
	"fmt"
	"math"

	"price-action-bot/internal/analysis"
	"price-action-bot/internal/market"
)

// DetectPullbackToStructure scans trend-relevant zones for a pullback entry:
// price within proximityPct of a support zone in an uptrend (resistance in a
// downtrend) plus a three-candle rejection. For longs the first two candles
// must be bearish and the third bullish with a body of at least 60% of its
// range; mirrored for shorts. The trigger sits at the rejection candle's
// extreme and the stop beyond the three-candle extreme.
func DetectPullbackToStructure(instrument string, candles []market.Candle, trend analysis.TrendState, zones []analysis.Zone, strength analysis.StrengthReport, proximityPct float64) []Setup {
	if len(candles) < 3 || trend.Direction == analysis.TrendNone {
		return nil
	}
	if proximityPct <= 0 {
		proximityPct = 0.2
	}

	last3 := candles[len(candles)-3:]
	price := last3[2].Close

	var out []Setup
	for _, z := range zones {
		if trend.Direction == analysis.TrendUp && z.Kind != analysis.ZoneSupport {
			continue
		}
		if trend.Direction == analysis.TrendDown && z.Kind != analysis.ZoneResistance {
			continue
		}
		if math.Abs(price-z.Price)/z.Price*100 >= proximityPct {
			continue
		}

		var s Setup
		switch trend.Direction {
		case analysis.TrendUp:
			if !bullishRejection(last3) {
				continue
			}
			s = newSetup(PullbackToStructure, instrument, Long)
			s.TriggerPrice = last3[2].High
			s.StopLoss = minLow(last3)
		case analysis.TrendDown:
			if !bearishRejection(last3) {
				continue
			}
			s = newSetup(PullbackToStructure, instrument, Short)
			s.TriggerPrice = last3[2].Low
			s.StopLoss = maxHigh(last3)
		}

		s.RejectionQuality = gradeRejection(last3[2])
		s.Target1, s.Target2 = projectTargets(s.TriggerPrice, s.StopLoss, s.Direction, strength.LastImpulse)
		s.SupportingFactors = append(s.SupportingFactors,
			fmt.Sprintf("%s zone at %.2f with %d touches", z.Kind, z.Price, z.Touches))
		if strength.PullbackGrade == analysis.PullbackHealthy {
			s.SupportingFactors = append(s.SupportingFactors, "pullback depth in the preferred band")
		}
		if strength.PullbackGrade == analysis.PullbackDeep || strength.PullbackGrade == analysis.PullbackInvalidated {
			s.Risks = append(s.Risks, fmt.Sprintf("pullback retraced %.1f%% of the impulse", strength.PullbackDepth))
		}
		out = append(out, s)
	}
	return out
}

// bullishRejection checks two bearish candles followed by a bullish candle
// whose body covers at least 60% of its range.
func bullishRejection(last3 []market.Candle) bool {
	return last3[0].IsBearish() && last3[1].IsBearish() &&
		last3[2].IsBullish() && last3[2].BodyRatio() >= 0.6
}

func bearishRejection(last3 []market.Candle) bool {
	return last3[0].IsBullish() && last3[1].IsBullish() &&
		last3[2].IsBearish() && last3[2].BodyRatio() >= 0.6
}

func gradeRejection(c market.Candle) RejectionQuality {
	switch {
	case c.BodyRatio() >= 0.75:
		return RejectionHigh
	case c.BodyRatio() >= 0.6:
		return RejectionModerate
	default:
		return RejectionWeak
	}
}

func minLow(candles []market.Candle) float64 {
	m := candles[0].Low
	for _, c := range candles[1:] {
		if c.Low < m {
			m = c.Low
		}
	}
	return m
}

func maxHigh(candles []market.Candle) float64 {
	m := candles[0].High
	for _, c := range candles[1:] {
		if c.High > m {
			m = c.High
		}
	}
	return m
}

// projectTargets derives T1/T2 from fibonacci extensions of the trend impulse
// when one is available, falling back to fixed multiples of the stop distance
// (1.5R and 3R) otherwise. Extension targets on the wrong side of the trigger
// also fall back.
func projectTargets(trigger, stop float64, dir Direction, impulse *analysis.ImpulseLeg) (t1, t2 float64) {
	risk := math.Abs(trigger - stop)
	if dir == Long {
		t1, t2 = trigger+1.5*risk, trigger+3*risk
	} else {
		t1, t2 = trigger-1.5*risk, trigger-3*risk
	}
	if impulse == nil {
		return t1, t2
	}
	ext := analysis.Extensions(impulse.StartPrice, impulse.EndPrice)
	if len(ext) != 2 {
		return t1, t2
	}
	if dir == Long && ext[0].Price > trigger && ext[1].Price > trigger {
		return ext[0].Price, ext[1].Price
	}
	if dir == Short && ext[0].Price < trigger && ext[1].Price < trigger {
		return ext[0].Price, ext[1].Price
	}
	return t1, t2
}
