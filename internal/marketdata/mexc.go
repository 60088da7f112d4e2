package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"market-scannerv1/internal/model"
)

const mexcBaseURL = "https://api.mexc.com"

// mexcIntervals maps scanner timeframes to MEXC spot kline intervals.
var mexcIntervals = map[string]string{
	"1m":  "1m",
	"5m":  "5m",
	"15m": "15m",
	"30m": "30m",
	"1h":  "60m",
	"4h":  "4h",
	"1d":  "1d",
	"1w":  "1W",
}

// MEXC is the primary candle source: spot klines over the v3 REST API.
// The kline payload is Binance-shaped (array rows), which keeps the parser
// shared with any compatible mirror endpoint.
type MEXC struct {
	base string
	http *http.Client
}

// NewMEXC creates the adapter. An empty base falls back to the public API.
func NewMEXC(base string) *MEXC {
	if base == "" {
		base = mexcBaseURL
	}
	return &MEXC{base: base, http: newHTTPClient()}
}

// FetchCandles returns up to limit klines for the symbol, oldest first.
func (m *MEXC) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error) {
	native, ok := mexcIntervals[interval]
	if !ok {
		return nil, fmt.Errorf("mexc: unsupported interval %q", interval)
	}
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", native)
	q.Set("limit", fmt.Sprintf("%d", limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.base+"/api/v3/klines?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("mexc: build request: %w", err)
	}
	resp, err := m.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mexc: klines %s %s: %w", symbol, interval, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("mexc: klines %s: %w: %d %s", symbol, ErrBadStatus, resp.StatusCode, body)
	}

	var rows [][]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("mexc: decode klines %s: %w", symbol, err)
	}
	return parseArrayKlines(rows)
}

// parseArrayKlines converts Binance-shaped kline rows
// [openTime, open, high, low, close, volume, closeTime, quoteVolume,
// trades?, takerBuyBase?, takerBuyQuote?, ...] into candles. Rows missing
// the taker-buy columns get a 50% buy split so downstream delta math
// degrades to zero instead of lying in one direction.
func parseArrayKlines(rows [][]json.RawMessage) ([]model.Candle, error) {
	out := make([]model.Candle, 0, len(rows))
	for i, row := range rows {
		if len(row) < 8 {
			return nil, fmt.Errorf("mexc: kline row %d has %d columns", i, len(row))
		}
		var openTime int64
		if err := json.Unmarshal(row[0], &openTime); err != nil {
			return nil, fmt.Errorf("mexc: kline row %d open time: %w", i, err)
		}
		c := model.Candle{
			Time:        openTime,
			Open:        rawF(row[1]),
			High:        rawF(row[2]),
			Low:         rawF(row[3]),
			Close:       rawF(row[4]),
			Volume:      rawF(row[5]),
			QuoteVolume: rawF(row[7]),
		}
		if len(row) >= 11 {
			c.TakerBuyVolume = rawF(row[9])
			c.TakerBuyQuoteVolume = rawF(row[10])
		} else {
			c.TakerBuyVolume = c.Volume / 2
			c.TakerBuyQuoteVolume = c.QuoteVolume / 2
		}
		out = append(out, c)
	}
	return out, nil
}

// rawF reads a numeric column that may arrive as a JSON string or number.
func rawF(raw json.RawMessage) float64 {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return parseF(s)
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err == nil {
		return v
	}
	return 0
}
