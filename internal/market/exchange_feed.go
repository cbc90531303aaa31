package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// ExchangeFeed implements CandleFeed and QuoteFeed against a Binance-style
// REST API, with an optional websocket kline stream that keeps the most
// recent candles warm between polls.
type ExchangeFeed struct {
	baseURL    string
	wsURL      string
	httpClient *http.Client
	logger     zerolog.Logger

	mu     sync.RWMutex
	live   map[string][]Candle // key: instrument_timeframe, most recent candles from the stream
	conn   *websocket.Conn
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewExchangeFeed creates a feed against the given REST and websocket base URLs.
func NewExchangeFeed(baseURL, wsURL string, logger zerolog.Logger) *ExchangeFeed {
	return &ExchangeFeed{
		baseURL:    baseURL,
		wsURL:      wsURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger.With().Str("component", "exchange_feed").Logger(),
		live:       make(map[string][]Candle),
		stopCh:     make(chan struct{}),
	}
}

// Candles returns the most recent candles for a timeframe, served from the
// live stream buffer when it is deep and fresh enough, otherwise fetched
// over REST.
func (f *ExchangeFeed) Candles(ctx context.Context, instrument string, tf Timeframe, limit int) ([]Candle, error) {
	if live := f.freshLiveCandles(instrument, tf, limit); live != nil {
		return live, nil
	}

	params := url.Values{}
	params.Set("symbol", instrument)
	params.Set("interval", string(tf))
	params.Set("limit", strconv.Itoa(limit))

	endpoint := fmt.Sprintf("%s/api/v3/klines?%s", f.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching candles: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error: %s", string(body))
	}

	var raw [][]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("error parsing candles: %w", err)
	}

	candles := make([]Candle, len(raw))
	for i, r := range raw {
		if len(r) < 7 {
			return nil, fmt.Errorf("malformed kline row %d", i)
		}
		candles[i] = Candle{
			OpenTime:  int64(r[0].(float64)),
			Open:      parseFloat(r[1]),
			High:      parseFloat(r[2]),
			Low:       parseFloat(r[3]),
			Close:     parseFloat(r[4]),
			Volume:    parseFloat(r[5]),
			CloseTime: int64(r[6].(float64)),
		}
	}

	if err := ValidateSeries(candles); err != nil {
		return nil, err
	}

	return candles, nil
}

// Quote fetches the current book ticker.
func (f *ExchangeFeed) Quote(ctx context.Context, instrument string) (Quote, error) {
	endpoint := fmt.Sprintf("%s/api/v3/ticker/bookTicker?symbol=%s", f.baseURL, instrument)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Quote{}, err
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("error fetching quote: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Quote{}, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Quote{}, fmt.Errorf("API error: %s", string(body))
	}

	var ticker struct {
		BidPrice string `json:"bidPrice"`
		AskPrice string `json:"askPrice"`
	}
	if err := json.Unmarshal(body, &ticker); err != nil {
		return Quote{}, fmt.Errorf("error parsing quote: %w", err)
	}

	bid, _ := strconv.ParseFloat(ticker.BidPrice, 64)
	ask, _ := strconv.ParseFloat(ticker.AskPrice, 64)

	return Quote{
		Bid:  bid,
		Ask:  ask,
		Last: (bid + ask) / 2,
		Time: time.Now().UTC(),
	}, nil
}

// klineEvent is the websocket kline payload.
type klineEvent struct {
	EventType string `json:"e"`
	Kline     struct {
		OpenTime  int64  `json:"t"`
		CloseTime int64  `json:"T"`
		Interval  string `json:"i"`
		Open      string `json:"o"`
		Close     string `json:"c"`
		High      string `json:"h"`
		Low       string `json:"l"`
		Volume    string `json:"v"`
		Closed    bool   `json:"x"`
	} `json:"k"`
}

// StreamKlines subscribes to live kline updates for the instrument on the
// given timeframes. Closed candles are appended to the in-memory live buffer.
func (f *ExchangeFeed) StreamKlines(instrument string, timeframes []Timeframe) error {
	streams := make([]string, 0, len(timeframes))
	for _, tf := range timeframes {
		streams = append(streams, fmt.Sprintf("%s@kline_%s", strings.ToLower(instrument), tf))
	}
	endpoint := fmt.Sprintf("%s/stream?streams=%s", f.wsURL, strings.Join(streams, "/"))

	conn, _, err := websocket.DefaultDialer.Dial(endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()

	f.wg.Add(1)
	go f.readLoop(instrument, conn)

	f.logger.Info().Str("instrument", instrument).Int("streams", len(streams)).Msg("kline stream started")
	return nil
}

func (f *ExchangeFeed) readLoop(instrument string, conn *websocket.Conn) {
	defer f.wg.Done()

	for {
		select {
		case <-f.stopCh:
			return
		default:
		}

		var wrapper struct {
			Data klineEvent `json:"data"`
		}
		if err := conn.ReadJSON(&wrapper); err != nil {
			f.logger.Warn().Err(err).Msg("kline stream read failed, stopping")
			return
		}

		ev := wrapper.Data
		if ev.EventType != "kline" || !ev.Kline.Closed {
			continue
		}

		candle := Candle{
			OpenTime:  ev.Kline.OpenTime,
			CloseTime: ev.Kline.CloseTime,
		}
		candle.Open, _ = strconv.ParseFloat(ev.Kline.Open, 64)
		candle.High, _ = strconv.ParseFloat(ev.Kline.High, 64)
		candle.Low, _ = strconv.ParseFloat(ev.Kline.Low, 64)
		candle.Close, _ = strconv.ParseFloat(ev.Kline.Close, 64)
		candle.Volume, _ = strconv.ParseFloat(ev.Kline.Volume, 64)

		key := instrument + "_" + ev.Kline.Interval
		f.mu.Lock()
		buf := append(f.live[key], candle)
		if len(buf) > 500 {
			buf = buf[len(buf)-500:]
		}
		f.live[key] = buf
		f.mu.Unlock()
	}
}

// freshLiveCandles serves a candle request from the stream buffer. Returns
// nil unless the buffer holds at least limit candles and the newest one
// closed within the last two intervals, so a stalled stream silently hands
// back to the REST path.
func (f *ExchangeFeed) freshLiveCandles(instrument string, tf Timeframe, limit int) []Candle {
	if limit <= 0 {
		return nil
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	buf := f.live[instrument+"_"+string(tf)]
	if len(buf) < limit {
		return nil
	}
	newest := buf[len(buf)-1]
	if time.Now().UnixMilli()-newest.CloseTime > 2*tf.Duration().Milliseconds() {
		return nil
	}
	out := make([]Candle, limit)
	copy(out, buf[len(buf)-limit:])
	return out
}

// LiveCandles returns the streamed candles buffered for a timeframe, or nil
// when the stream has not produced any yet.
func (f *ExchangeFeed) LiveCandles(instrument string, tf Timeframe) []Candle {
	f.mu.RLock()
	defer f.mu.RUnlock()

	buf := f.live[instrument+"_"+string(tf)]
	if len(buf) == 0 {
		return nil
	}
	out := make([]Candle, len(buf))
	copy(out, buf)
	return out
}

// Close shuts the stream down.
func (f *ExchangeFeed) Close() {
	close(f.stopCh)
	f.mu.Lock()
	if f.conn != nil {
		f.conn.Close()
	}
	f.mu.Unlock()
	f.wg.Wait()
}

func parseFloat(v interface{}) float64 {
	switch val := v.(type) {
	case string:
		fv, _ := strconv.ParseFloat(val, 64)
		return fv
	case float64:
		return val
	default:
		return 0
	}
}
