package analysis

import (
	"testing"

	"price-action-bot/internal/market"
)

func candlesFromCloses(closes ...float64) []market.Candle {
	candles := make([]market.Candle, len(closes))
	prev := closes[0]
	for i, c := range closes {
		if i > 0 {
			prev = closes[i-1]
		}
		hi, lo := prev, c
		if c > hi {
			hi, lo = c, prev
		}
		candles[i] = market.Candle{
			OpenTime:  int64(i) * 60_000,
			Open:      prev,
			High:      hi + 0.1,
			Low:       lo - 0.1,
			Close:     c,
			Volume:    100,
			CloseTime: int64(i)*60_000 + 59_999,
		}
	}
	return candles
}

func TestDetectImpulsesRequiresThreeCandles(t *testing.T) {
	// two up, one down, three up
	candles := candlesFromCloses(100, 101, 102, 101, 102, 103, 104)
	legs := DetectImpulses(candles)
	if len(legs) != 1 {
		t.Fatalf("expected 1 leg, got %d: %+v", len(legs), legs)
	}
	leg := legs[0]
	if !leg.Bullish || leg.Candles != 3 || leg.StartIndex != 4 {
		t.Errorf("leg = %+v, want bullish 3-candle run starting at 4", leg)
	}
}

func TestDetectImpulsesBearishRun(t *testing.T) {
	candles := candlesFromCloses(110, 108, 106, 104, 102)
	legs := DetectImpulses(candles)
	if len(legs) != 1 || legs[0].Bullish {
		t.Fatalf("expected one bearish leg, got %+v", legs)
	}
	if legs[0].EndPrice != 102 {
		t.Errorf("end price = %v, want 102", legs[0].EndPrice)
	}
}

func TestGradePullback(t *testing.T) {
	leg := ImpulseLeg{StartPrice: 100, EndPrice: 200, Bullish: true}
	cases := []struct {
		price float64
		want  PullbackGrade
	}{
		{185, PullbackShallow},
		{150, PullbackHealthy},
		{130, PullbackDeep},
		{95, PullbackInvalidated},
	}
	for _, tc := range cases {
		if _, g := GradePullback(leg, tc.price); g != tc.want {
			t.Errorf("price %v grade = %s, want %s", tc.price, g, tc.want)
		}
	}
}

func TestMomentumFraction(t *testing.T) {
	rising := make([]float64, 20)
	for i := range rising {
		rising[i] = 100 + float64(i)
	}
	if m := Momentum(candlesFromCloses(rising...), 14); m != 100 {
		t.Errorf("monotonic rise momentum = %v, want 100", m)
	}

	falling := make([]float64, 20)
	for i := range falling {
		falling[i] = 120 - float64(i)
	}
	if m := Momentum(candlesFromCloses(falling...), 14); m != 0 {
		t.Errorf("monotonic fall momentum = %v, want 0", m)
	}

	// 7 bullish candles out of a 14-candle window
	mixed := []float64{100}
	for i := 0; i < 7; i++ {
		mixed = append(mixed, mixed[len(mixed)-1]+1)
	}
	for i := 0; i < 7; i++ {
		mixed = append(mixed, mixed[len(mixed)-1]-1)
	}
	if m := Momentum(candlesFromCloses(mixed...), 14); m != 50 {
		t.Errorf("half-aligned window momentum = %v, want 50", m)
	}

	if m := Momentum(candlesFromCloses(100, 101), 14); m != 50 {
		t.Errorf("insufficient data momentum = %v, want neutral 50", m)
	}
}

func TestAnalyzeStrengthAlignsImpulseWithTrend(t *testing.T) {
	// bullish impulse then a two-candle pullback
	candles := candlesFromCloses(100, 102, 104, 106, 105, 104)
	report := AnalyzeStrength(candles, TrendUp, 14)
	if report.LastImpulse == nil || !report.LastImpulse.Bullish {
		t.Fatalf("expected a bullish impulse, got %+v", report.LastImpulse)
	}
	if len(report.FibLevels) != 5 {
		t.Errorf("expected fib levels over the impulse range")
	}
	if report.PullbackGrade != PullbackHealthy {
		t.Errorf("grade = %s, want healthy", report.PullbackGrade)
	}

	// no bearish impulse exists, so a downtrend request finds nothing
	report = AnalyzeStrength(candles, TrendDown, 14)
	if report.LastImpulse != nil {
		t.Errorf("no trend-aligned impulse should yield nil, got %+v", report.LastImpulse)
	}
	if report.FibLevels != nil {
		t.Errorf("fib levels must be unavailable without an impulse")
	}
}

func TestBiasFor(t *testing.T) {
	cases := []struct {
		value float64
		want  MomentumBias
	}{
		{75, MomentumStrongBull},
		{60, MomentumBull},
		{50, MomentumNeutral},
		{40, MomentumBear},
		{25, MomentumStrongBear},
	}
	for _, tc := range cases {
		if got := BiasFor(tc.value); got != tc.want {
			t.Errorf("bias(%v) = %s, want %s", tc.value, got, tc.want)
		}
	}
}
