package analysis

import "math"

// Standard retracement and extension ratios used across setup scoring and
// target projection.
var (
	RetracementRatios = []float64{0.236, 0.382, 0.5, 0.618, 0.786}
	ExtensionRatios   = []float64{1.272, 1.618}
)

// FibLevel is one computed ratio/price pair.
type FibLevel struct {
	Ratio float64
	Price float64
}

// Retracements computes retracement levels for an impulse from swingStart to
// swingEnd. For a bullish impulse (start below end) levels descend from the
// end; for a bearish impulse they ascend. A zero-range impulse returns nil.
func Retracements(swingStart, swingEnd float64) []FibLevel {
	diff := swingEnd - swingStart
	if diff == 0 {
		return nil
	}
	levels := make([]FibLevel, 0, len(RetracementRatios))
	for _, r := range RetracementRatios {
		levels = append(levels, FibLevel{Ratio: r, Price: swingEnd - diff*r})
	}
	return levels
}

// Extensions projects extension targets beyond swingEnd in the impulse
// direction. Used to derive T1 and T2 price targets from the impulse leg.
func Extensions(swingStart, swingEnd float64) []FibLevel {
	diff := swingEnd - swingStart
	if diff == 0 {
		return nil
	}
	levels := make([]FibLevel, 0, len(ExtensionRatios))
	for _, r := range ExtensionRatios {
		levels = append(levels, FibLevel{Ratio: r, Price: swingStart + diff*r})
	}
	return levels
}

// NearestLevel returns the level closest to price and the absolute distance.
// Returns false for an empty level set.
func NearestLevel(levels []FibLevel, price float64) (FibLevel, float64, bool) {
	if len(levels) == 0 {
		return FibLevel{}, 0, false
	}
	best := levels[0]
	bestDist := math.Abs(price - best.Price)
	for _, lv := range levels[1:] {
		d := math.Abs(price - lv.Price)
		if d < bestDist {
			best = lv
			bestDist = d
		}
	}
	return best, bestDist, true
}

// RetracementDepth expresses how far price has pulled back into the impulse
// from swingStart to swingEnd, as a percentage of the impulse range. 0 means
// price sits at the impulse end, 100 means a full retrace to the start.
func RetracementDepth(swingStart, swingEnd, price float64) float64 {
	diff := swingEnd - swingStart
	if diff == 0 {
		return 0
	}
	return (swingEnd - price) / diff * 100
}
