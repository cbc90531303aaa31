package market

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Timeframe identifies one of the candle series the bot works with.
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe3m  Timeframe = "3m"
	Timeframe30m Timeframe = "30m"
)

// Duration returns the candle interval the timeframe covers.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case Timeframe1m:
		return time.Minute
	case Timeframe3m:
		return 3 * time.Minute
	case Timeframe30m:
		return 30 * time.Minute
	}
	if d, err := time.ParseDuration(string(tf)); err == nil && d > 0 {
		return d
	}
	return time.Minute
}

// Candle represents a single OHLCV candlestick
type Candle struct {
	OpenTime  int64   `json:"openTime"` // Unix milliseconds
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	CloseTime int64   `json:"closeTime"`
}

// IsBullish reports whether the candle closed above its open.
func (c Candle) IsBullish() bool {
	return c.Close > c.Open
}

// IsBearish reports whether the candle closed below its open.
func (c Candle) IsBearish() bool {
	return c.Close < c.Open
}

// Body returns the absolute body size.
func (c Candle) Body() float64 {
	return math.Abs(c.Close - c.Open)
}

// Range returns the high-low range.
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// BodyRatio returns body size as a fraction of the full range (0 when the
// candle has no range).
func (c Candle) BodyRatio() float64 {
	r := c.Range()
	if r <= 0 {
		return 0
	}
	return c.Body() / r
}

// Quote is the current market quote for the instrument
type Quote struct {
	Bid  float64   `json:"bid"`
	Ask  float64   `json:"ask"`
	Last float64   `json:"last"`
	Time time.Time `json:"time"`
}

// Input validation errors. These are fatal for the call that receives them;
// the calling cycle skips the pass and retries next cycle.
var (
	ErrNonMonotonicSeries = errors.New("candle timestamps not strictly increasing")
	ErrInvalidPrice       = errors.New("candle contains NaN or non-positive price")
)

// ValidateSeries checks a candle series for strictly increasing timestamps and
// finite, positive prices. An empty series is valid (insufficient data is not
// an input error).
func ValidateSeries(candles []Candle) error {
	for i, c := range candles {
		for _, p := range [4]float64{c.Open, c.High, c.Low, c.Close} {
			if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
				return fmt.Errorf("candle %d: %w", i, ErrInvalidPrice)
			}
		}
		if c.High < c.Low {
			return fmt.Errorf("candle %d: high below low: %w", i, ErrInvalidPrice)
		}
		if i > 0 && candles[i].OpenTime <= candles[i-1].OpenTime {
			return fmt.Errorf("candle %d: %w", i, ErrNonMonotonicSeries)
		}
	}
	return nil
}
