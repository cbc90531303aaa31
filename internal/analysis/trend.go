package analysis

// TrendDirection is the structural trend classification.
type TrendDirection string

const (
	TrendUp   TrendDirection = "uptrend"
	TrendDown TrendDirection = "downtrend"
	TrendNone TrendDirection = "none"
)

// TrendStrengthBand coarsely grades the average swing-to-swing travel.
type TrendStrengthBand string

const (
	TrendStrong   TrendStrengthBand = "strong"
	TrendModerate TrendStrengthBand = "moderate"
	TrendWeak     TrendStrengthBand = "weak"
	TrendNA       TrendStrengthBand = "n/a"
)

// TrendPattern names the swing sequence that produced the classification.
type TrendPattern string

const (
	PatternHHHL TrendPattern = "HH/HL"
	PatternLHLL TrendPattern = "LH/LL"
	PatternNone TrendPattern = "none"
)

// TrendState is the output of trend classification for one instrument and
// timeframe. Recomputed every pass, no lifecycle of its own.
type TrendState struct {
	Direction    TrendDirection
	Strength     TrendStrengthBand
	Pattern      TrendPattern
	LeadingSwing *SwingPoint // swing whose violation would break the structure
	RecentHighs  []SwingPoint
	RecentLows   []SwingPoint
}

// ClassifyTrend determines trend direction from the most recent swing highs
// and lows (up to three of each, minimum two). An uptrend requires every
// consecutive pair of recent highs AND lows strictly ascending; a downtrend
// requires both strictly descending. Any single non-conforming pair yields
// TrendNone. Fewer than two of either kind is insufficient data, also
// TrendNone.
func ClassifyTrend(highs, lows []SwingPoint) TrendState {
	if len(highs) < 2 || len(lows) < 2 {
		return TrendState{Direction: TrendNone, Strength: TrendNA, Pattern: PatternNone}
	}

	h := lastN(highs, 3)
	l := lastN(lows, 3)

	state := TrendState{
		Direction:   TrendNone,
		Strength:    TrendNA,
		Pattern:     PatternNone,
		RecentHighs: h,
		RecentLows:  l,
	}

	switch {
	case strictlyAscending(h) && strictlyAscending(l):
		state.Direction = TrendUp
		state.Pattern = PatternHHHL
		state.Strength = strengthBand(h, l)
		// the most recent higher low guards the structure
		state.LeadingSwing = &l[len(l)-1]
	case strictlyDescending(h) && strictlyDescending(l):
		state.Direction = TrendDown
		state.Pattern = PatternLHLL
		state.Strength = strengthBand(h, l)
		state.LeadingSwing = &h[len(h)-1]
	}

	return state
}

func lastN(points []SwingPoint, n int) []SwingPoint {
	if len(points) <= n {
		return points
	}
	return points[len(points)-n:]
}

func strictlyAscending(points []SwingPoint) bool {
	for i := 1; i < len(points); i++ {
		if points[i].Price <= points[i-1].Price {
			return false
		}
	}
	return true
}

func strictlyDescending(points []SwingPoint) bool {
	for i := 1; i < len(points); i++ {
		if points[i].Price >= points[i-1].Price {
			return false
		}
	}
	return true
}

// strengthBand grades the average absolute swing-to-swing move across the
// recent highs and lows as a percentage of the latest swing price.
func strengthBand(highs, lows []SwingPoint) TrendStrengthBand {
	var total float64
	var moves int
	for i := 1; i < len(highs); i++ {
		d := highs[i].Price - highs[i-1].Price
		if d < 0 {
			d = -d
		}
		total += d
		moves++
	}
	for i := 1; i < len(lows); i++ {
		d := lows[i].Price - lows[i-1].Price
		if d < 0 {
			d = -d
		}
		total += d
		moves++
	}
	ref := highs[len(highs)-1].Price
	if moves == 0 || ref <= 0 {
		return TrendWeak
	}
	avgPct := total / float64(moves) / ref * 100
	switch {
	case avgPct >= 0.5:
		return TrendStrong
	case avgPct >= 0.2:
		return TrendModerate
	default:
		return TrendWeak
	}
}

// DetectStructureBreak reports whether the latest close has violated the
// trend's leading swing: in an uptrend a close below the most recent higher
// low, in a downtrend a close above the most recent lower high. A break does
// not by itself establish the opposite trend.
func DetectStructureBreak(state TrendState, lastClose float64) bool {
	if state.LeadingSwing == nil {
		return false
	}
	switch state.Direction {
	case TrendUp:
		return lastClose < state.LeadingSwing.Price
	case TrendDown:
		return lastClose > state.LeadingSwing.Price
	}
	return false
}
