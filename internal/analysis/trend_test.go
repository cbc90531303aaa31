package analysis

import "testing"

func swings(kind SwingKind, prices ...float64) []SwingPoint {
	out := make([]SwingPoint, len(prices))
	for i, p := range prices {
		out[i] = SwingPoint{Price: p, Timestamp: int64(i) * 60_000, Index: i, Kind: kind}
	}
	return out
}

func TestClassifyTrendUptrend(t *testing.T) {
	state := ClassifyTrend(
		swings(SwingHigh, 10, 11, 12),
		swings(SwingLow, 5, 6, 7),
	)
	if state.Direction != TrendUp {
		t.Fatalf("direction = %s, want %s", state.Direction, TrendUp)
	}
	if state.LeadingSwing == nil || state.LeadingSwing.Price != 7 {
		t.Errorf("leading swing should be the latest higher low at 7")
	}
}

func TestClassifyTrendDowntrend(t *testing.T) {
	state := ClassifyTrend(
		swings(SwingHigh, 12, 11, 10),
		swings(SwingLow, 7, 6, 5),
	)
	if state.Direction != TrendDown {
		t.Fatalf("direction = %s, want %s", state.Direction, TrendDown)
	}
	if state.LeadingSwing == nil || state.LeadingSwing.Price != 10 {
		t.Errorf("leading swing should be the latest lower high at 10")
	}
}

func TestClassifyTrendStrictness(t *testing.T) {
	// one lower high breaks the ascending sequence
	state := ClassifyTrend(
		swings(SwingHigh, 10, 11, 9),
		swings(SwingLow, 5, 6, 7),
	)
	if state.Direction != TrendNone {
		t.Errorf("mixed structure should classify as none, got %s", state.Direction)
	}

	// equal highs are not higher highs
	state = ClassifyTrend(
		swings(SwingHigh, 10, 11, 11),
		swings(SwingLow, 5, 6, 7),
	)
	if state.Direction == TrendUp {
		t.Errorf("equal highs must not classify as uptrend")
	}
}

func TestClassifyTrendInsufficientSwings(t *testing.T) {
	state := ClassifyTrend(
		swings(SwingHigh, 10),
		swings(SwingLow, 5, 6, 7),
	)
	if state.Direction != TrendNone || state.Strength != TrendNA {
		t.Errorf("fewer than 2 highs should yield none/n-a, got %s/%s", state.Direction, state.Strength)
	}

	// two of each kind is enough to classify
	state = ClassifyTrend(
		swings(SwingHigh, 10, 11),
		swings(SwingLow, 5, 6),
	)
	if state.Direction != TrendUp {
		t.Errorf("two ascending pairs should classify as uptrend, got %s", state.Direction)
	}
}

func TestTrendStrengthBands(t *testing.T) {
	cases := []struct {
		name  string
		highs []float64
		lows  []float64
		want  TrendStrengthBand
	}{
		{"strong", []float64{100, 100.6, 101.2}, []float64{90, 90.6, 91.2}, TrendStrong},
		{"moderate", []float64{100, 100.3, 100.6}, []float64{90, 90.3, 90.6}, TrendModerate},
		{"weak", []float64{100, 100.1, 100.2}, []float64{90, 90.1, 90.2}, TrendWeak},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state := ClassifyTrend(
				swings(SwingHigh, tc.highs...),
				swings(SwingLow, tc.lows...),
			)
			if state.Direction != TrendUp {
				t.Fatalf("direction = %s, want uptrend", state.Direction)
			}
			if state.Strength != tc.want {
				t.Errorf("strength = %s, want %s", state.Strength, tc.want)
			}
			if state.Pattern != PatternHHHL {
				t.Errorf("pattern = %s, want %s", state.Pattern, PatternHHHL)
			}
		})
	}
}

func TestDetectStructureBreak(t *testing.T) {
	up := ClassifyTrend(swings(SwingHigh, 10, 11, 12), swings(SwingLow, 5, 6, 7))
	if DetectStructureBreak(up, 7.5) {
		t.Errorf("close above the higher low is not a break")
	}
	if !DetectStructureBreak(up, 6.5) {
		t.Errorf("close below the higher low must flag a break")
	}

	down := ClassifyTrend(swings(SwingHigh, 12, 11, 10), swings(SwingLow, 7, 6, 5))
	if !DetectStructureBreak(down, 10.5) {
		t.Errorf("close above the lower high must flag a break")
	}
}
