// Package risk converts account state into position sizes and gates every
// proposed trade against per-trade, session, and portfolio limits.
package risk

import (
	"errors"
	"math"
)

// ErrInvalidStopDistance rejects sizing with a zero or degenerate stop.
// Fatal for the call, not retryable with the same inputs.
var ErrInvalidStopDistance = errors.New("stop distance must be positive")

// SizingResult breaks the position-size computation into its audited parts.
type SizingResult struct {
	RiskAmount   float64
	StopDistance float64
	RawUnits     float64 // before safety margin and rounding
	Units        float64
	RiskPct      float64 // effective risk percent after rounding
}

// PositionSize computes tradeable units for a balance, risk percentage, and
// stop placement: riskAmount / stopDistance, scaled by the safety margin and
// rounded down to the instrument's size precision. The margin absorbs
// slippage and commission so a full stop-out stays within the risked amount.
func PositionSize(balance, riskPct, entry, stop, safetyMargin float64, precision int) (SizingResult, error) {
	if balance <= 0 || riskPct <= 0 {
		return SizingResult{}, errors.New("balance and risk percent must be positive")
	}
	if math.IsNaN(entry) || math.IsNaN(stop) {
		return SizingResult{}, errors.New("entry and stop must be real prices")
	}
	stopDistance := math.Abs(entry - stop)
	if stopDistance == 0 {
		return SizingResult{}, ErrInvalidStopDistance
	}
	if safetyMargin <= 0 || safetyMargin > 1 {
		safetyMargin = 0.95
	}

	riskAmount := balance * riskPct / 100
	raw := riskAmount / stopDistance
	units := roundDown(raw*safetyMargin, precision)

	return SizingResult{
		RiskAmount:   riskAmount,
		StopDistance: stopDistance,
		RawUnits:     raw,
		Units:        units,
		RiskPct:      units * stopDistance / balance * 100,
	}, nil
}

func roundDown(v float64, precision int) float64 {
	if precision < 0 {
		precision = 0
	}
	p := math.Pow(10, float64(precision))
	return math.Floor(v*p) / p
}
