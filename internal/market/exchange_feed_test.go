package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// newFeedAgainst builds a feed whose REST endpoint counts every hit and
// always fails, so tests can tell the buffer path from the REST path.
func newFeedAgainst(t *testing.T, hits *int32) *ExchangeFeed {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(hits, 1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	return NewExchangeFeed(srv.URL, "", zerolog.Nop())
}

func liveBuffer(n int, lastCloseTime int64) []Candle {
	buf := make([]Candle, n)
	for i := range buf {
		closeTime := lastCloseTime - int64(n-1-i)*60_000
		buf[i] = Candle{
			OpenTime:  closeTime - 59_999,
			Open:      2500,
			High:      2502,
			Low:       2498,
			Close:     2501,
			Volume:    10,
			CloseTime: closeTime,
		}
	}
	return buf
}

func TestCandlesServedFromFreshStreamBuffer(t *testing.T) {
	var hits int32
	f := newFeedAgainst(t, &hits)

	now := time.Now().UnixMilli()
	buf := liveBuffer(10, now-1_000)
	f.mu.Lock()
	f.live["ETHUSDT_1m"] = buf
	f.mu.Unlock()

	got, err := f.Candles(context.Background(), "ETHUSDT", Timeframe1m, 5)
	if err != nil {
		t.Fatalf("Candles: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("len = %d, want 5", len(got))
	}
	if got[4].CloseTime != buf[9].CloseTime {
		t.Errorf("newest candle close = %d, want %d", got[4].CloseTime, buf[9].CloseTime)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Errorf("fresh buffer must not trigger a REST fetch, got %d", hits)
	}
}

func TestCandlesFallBackToRestWhenBufferStale(t *testing.T) {
	var hits int32
	f := newFeedAgainst(t, &hits)

	// newest candle closed ten minutes ago, well past two 1m intervals
	stale := time.Now().UnixMilli() - 10*60_000
	f.mu.Lock()
	f.live["ETHUSDT_1m"] = liveBuffer(10, stale)
	f.mu.Unlock()

	if _, err := f.Candles(context.Background(), "ETHUSDT", Timeframe1m, 5); err == nil {
		t.Fatal("REST failure must surface when the buffer is stale")
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Errorf("stale buffer must fall through to REST, hits = %d", hits)
	}
}

func TestCandlesFallBackToRestWhenBufferShort(t *testing.T) {
	var hits int32
	f := newFeedAgainst(t, &hits)

	f.mu.Lock()
	f.live["ETHUSDT_1m"] = liveBuffer(3, time.Now().UnixMilli()-1_000)
	f.mu.Unlock()

	if _, err := f.Candles(context.Background(), "ETHUSDT", Timeframe1m, 5); err == nil {
		t.Fatal("REST failure must surface when the buffer is too shallow")
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Errorf("shallow buffer must fall through to REST, hits = %d", hits)
	}
}

func TestTimeframeDuration(t *testing.T) {
	cases := []struct {
		tf   Timeframe
		want time.Duration
	}{
		{Timeframe1m, time.Minute},
		{Timeframe3m, 3 * time.Minute},
		{Timeframe30m, 30 * time.Minute},
		{Timeframe("5m"), 5 * time.Minute},
		{Timeframe("bogus"), time.Minute},
	}
	for _, c := range cases {
		if got := c.tf.Duration(); got != c.want {
			t.Errorf("Duration(%q) = %v, want %v", c.tf, got, c.want)
		}
	}
}
