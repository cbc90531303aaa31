package analysis

import (
	"testing"

	"price-action-bot/internal/market"
)

func candlesFromHighsLows(highs, lows []float64) []market.Candle {
	candles := make([]market.Candle, len(highs))
	for i := range highs {
		candles[i] = market.Candle{
			OpenTime:  int64(i) * 60_000,
			Open:      lows[i] + (highs[i]-lows[i])/2,
			High:      highs[i],
			Low:       lows[i],
			Close:     lows[i] + (highs[i]-lows[i])/2,
			Volume:    100,
			CloseTime: int64(i)*60_000 + 59_999,
		}
	}
	return candles
}

func TestDetectSwingsFindsSymmetricExtremes(t *testing.T) {
	highs := []float64{10, 11, 12, 15, 12, 11, 10}
	lows := []float64{9, 8, 7, 5, 7, 8, 9}
	candles := candlesFromHighsLows(highs, lows)

	sh, sl := DetectSwings(candles, 3)

	if len(sh) != 1 {
		t.Fatalf("expected 1 swing high, got %d", len(sh))
	}
	if sh[0].Index != 3 || sh[0].Price != 15 {
		t.Errorf("swing high = index %d price %v, want index 3 price 15", sh[0].Index, sh[0].Price)
	}
	if len(sl) != 1 {
		t.Fatalf("expected 1 swing low, got %d", len(sl))
	}
	if sl[0].Index != 3 || sl[0].Price != 5 {
		t.Errorf("swing low = index %d price %v, want index 3 price 5", sl[0].Index, sl[0].Price)
	}
}

func TestDetectSwingsRejectsTies(t *testing.T) {
	// equal high in the window disqualifies the candidate
	highs := []float64{10, 11, 12, 15, 15, 11, 10, 9, 8}
	lows := []float64{1, 1, 1, 1, 1, 1, 1, 1, 1}
	candles := candlesFromHighsLows(highs, lows)

	sh, _ := DetectSwings(candles, 3)
	for _, s := range sh {
		if s.Index == 3 || s.Index == 4 {
			t.Errorf("tied high at index %d must not qualify as swing", s.Index)
		}
	}
}

func TestDetectSwingsInsufficientData(t *testing.T) {
	candles := candlesFromHighsLows([]float64{10, 11, 12}, []float64{9, 8, 7})
	sh, sl := DetectSwings(candles, 3)
	if len(sh) != 0 || len(sl) != 0 {
		t.Errorf("short series should yield no swings, got %d highs %d lows", len(sh), len(sl))
	}
}

func TestDetectSwingsExcludesEdges(t *testing.T) {
	// extreme sits inside the leading window and cannot be confirmed
	highs := []float64{20, 11, 12, 13, 12, 11, 10}
	lows := []float64{1, 2, 3, 4, 3, 2, 1}
	candles := candlesFromHighsLows(highs, lows)

	sh, _ := DetectSwings(candles, 3)
	for _, s := range sh {
		if s.Index < 3 || s.Index >= len(candles)-3 {
			t.Errorf("swing at edge index %d should be excluded", s.Index)
		}
	}
}
