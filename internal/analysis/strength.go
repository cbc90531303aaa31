package analysis

import (
	"price-action-bot/internal/market"
)

// ImpulseLeg is a run of three or more consecutive candles closing in the same
// direction. Legs are the raw material for retracement and extension analysis.
type ImpulseLeg struct {
	StartIndex int
	EndIndex   int
	StartPrice float64 // open of the first candle
	EndPrice   float64 // close of the last candle
	Bullish    bool
	Candles    int
}

// Size is the absolute price travel of the leg.
func (l ImpulseLeg) Size() float64 {
	d := l.EndPrice - l.StartPrice
	if d < 0 {
		d = -d
	}
	return d
}

// PullbackGrade classifies how deep a pullback has retraced the preceding
// impulse leg.
type PullbackGrade string

const (
	PullbackShallow     PullbackGrade = "shallow"     // < 30%, strong trend
	PullbackHealthy     PullbackGrade = "healthy"     // 30% to 61.8%, preferred entry
	PullbackDeep        PullbackGrade = "deep"        // 61.8% to 100%, weak trend
	PullbackInvalidated PullbackGrade = "invalidated" // beyond 100%, reversal risk
)

// MomentumBias buckets the share of recent candles closing with the trend.
type MomentumBias string

const (
	MomentumStrongBull MomentumBias = "strong_bullish"
	MomentumBull       MomentumBias = "bullish"
	MomentumNeutral    MomentumBias = "neutral"
	MomentumBear       MomentumBias = "bearish"
	MomentumStrongBear MomentumBias = "strong_bearish"
)

// StrengthReport summarizes impulse, pullback, and momentum conditions for a
// single analysis pass. LastImpulse and the fib levels are nil when no
// qualifying impulse exists in the window.
type StrengthReport struct {
	LastImpulse   *ImpulseLeg
	PullbackDepth float64 // percent of impulse range retraced
	PullbackGrade PullbackGrade
	FibLevels     []FibLevel
	Momentum      float64 // percent of recent candles closing bullish
	MomentumBias  MomentumBias
}

// DetectImpulses scans the series for runs of 3+ consecutive candles closing
// in one direction. Doji candles (close == open) terminate a run.
func DetectImpulses(candles []market.Candle) []ImpulseLeg {
	var legs []ImpulseLeg
	runStart := -1
	runBull := false

	flush := func(end int) {
		if runStart < 0 {
			return
		}
		n := end - runStart + 1
		if n >= 3 {
			legs = append(legs, ImpulseLeg{
				StartIndex: runStart,
				EndIndex:   end,
				StartPrice: candles[runStart].Open,
				EndPrice:   candles[end].Close,
				Bullish:    runBull,
				Candles:    n,
			})
		}
		runStart = -1
	}

	for i, c := range candles {
		switch {
		case c.IsBullish():
			if runStart >= 0 && !runBull {
				flush(i - 1)
			}
			if runStart < 0 {
				runStart = i
				runBull = true
			}
		case c.IsBearish():
			if runStart >= 0 && runBull {
				flush(i - 1)
			}
			if runStart < 0 {
				runStart = i
				runBull = false
			}
		default:
			flush(i - 1)
		}
	}
	flush(len(candles) - 1)
	return legs
}

// GradePullback classifies the retracement depth of price against an impulse
// leg. Depth is a percentage of the leg's range; negative depth (price beyond
// the impulse end) grades shallow.
func GradePullback(leg ImpulseLeg, price float64) (float64, PullbackGrade) {
	depth := RetracementDepth(leg.StartPrice, leg.EndPrice, price)
	switch {
	case depth > 100:
		return depth, PullbackInvalidated
	case depth >= 61.8:
		return depth, PullbackDeep
	case depth >= 30:
		return depth, PullbackHealthy
	default:
		return depth, PullbackShallow
	}
}

// Momentum returns the percentage of the last window candles that closed
// bullish. Dojis count as neither and dilute both sides. Returns neutral 50
// when the series is shorter than the window.
func Momentum(candles []market.Candle, window int) float64 {
	if window <= 0 {
		window = 14
	}
	if len(candles) < window {
		return 50
	}
	bullish := 0
	for _, c := range candles[len(candles)-window:] {
		if c.IsBullish() {
			bullish++
		}
	}
	return float64(bullish) / float64(window) * 100
}

// BiasFor buckets a bullish-percentage momentum reading.
func BiasFor(momentum float64) MomentumBias {
	switch {
	case momentum >= 70:
		return MomentumStrongBull
	case momentum >= 55:
		return MomentumBull
	case momentum < 30:
		return MomentumStrongBear
	case momentum <= 45:
		return MomentumBear
	default:
		return MomentumNeutral
	}
}

// AnalyzeStrength builds a strength report for the series: the latest impulse
// leg aligned with the trend, the current pullback grade against it, fib
// retracements over its range, and momentum bias. With no trend direction the
// latest leg of either direction is used.
func AnalyzeStrength(candles []market.Candle, direction TrendDirection, momentumWindow int) StrengthReport {
	report := StrengthReport{
		Momentum:      Momentum(candles, momentumWindow),
		PullbackGrade: PullbackShallow,
	}
	report.MomentumBias = BiasFor(report.Momentum)

	if len(candles) == 0 {
		return report
	}

	legs := DetectImpulses(candles)
	var last *ImpulseLeg
	for i := len(legs) - 1; i >= 0; i-- {
		switch direction {
		case TrendUp:
			if legs[i].Bullish {
				last = &legs[i]
			}
		case TrendDown:
			if !legs[i].Bullish {
				last = &legs[i]
			}
		default:
			last = &legs[i]
		}
		if last != nil {
			break
		}
	}
	if last == nil {
		return report
	}

	report.LastImpulse = last
	report.FibLevels = Retracements(last.StartPrice, last.EndPrice)
	report.PullbackDepth, report.PullbackGrade = GradePullback(*last, candles[len(candles)-1].Close)
	return report
}
