// Package analysis derives market structure from raw candle series: swing
// points, support/resistance zones, trend classification, and trend strength.
package analysis

import (
	"price-action-bot/internal/market"
)

// SwingKind distinguishes swing highs from swing lows.
type SwingKind string

const (
	SwingHigh SwingKind = "high"
	SwingLow  SwingKind = "low"
)

// SwingPoint is a local price extremum relative to a symmetric neighbor window.
// Swing points are recomputed from candles on every analysis pass and carry no
// identity across passes.
type SwingPoint struct {
	Price     float64
	Timestamp int64 // candle open time, Unix milliseconds
	Index     int
	Kind      SwingKind
}

// DetectSwings finds swing highs and lows in a candle series. Candle i is a
// swing high iff its high is strictly greater than the highs of all lookback
// candles on both sides; ties disqualify. The first and last lookback candles
// cannot be evaluated and are excluded. A series shorter than 2*lookback+1
// yields empty results: insufficient data, not an error.
func DetectSwings(candles []market.Candle, lookback int) (highs, lows []SwingPoint) {
	if lookback <= 0 {
		lookback = 3
	}
	if len(candles) < 2*lookback+1 {
		return nil, nil
	}

	for i := lookback; i < len(candles)-lookback; i++ {
		isHigh := true
		isLow := true
		h := candles[i].High
		l := candles[i].Low

		for j := 1; j <= lookback; j++ {
			if candles[i-j].High >= h || candles[i+j].High >= h {
				isHigh = false
			}
			if candles[i-j].Low <= l || candles[i+j].Low <= l {
				isLow = false
			}
			if !isHigh && !isLow {
				break
			}
		}

		if isHigh {
			highs = append(highs, SwingPoint{
				Price:     h,
				Timestamp: candles[i].OpenTime,
				Index:     i,
				Kind:      SwingHigh,
			})
		}
		if isLow {
			lows = append(lows, SwingPoint{
				Price:     l,
				Timestamp: candles[i].OpenTime,
				Index:     i,
				Kind:      SwingLow,
			})
		}
	}

	return highs, lows
}
