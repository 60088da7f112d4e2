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

const bybitBaseURL = "https://api.bybit.com"

// bybitIntervals maps scanner timeframes to Bybit v5 kline intervals.
var bybitIntervals = map[string]string{
	"1m":  "1",
	"5m":  "5",
	"15m": "15",
	"30m": "30",
	"1h":  "60",
	"4h":  "240",
	"1d":  "D",
	"1w":  "W",
}

// Bybit is the secondary candle source and the open-interest source,
// speaking the v5 unified market API (category=linear).
type Bybit struct {
	base string
	http *http.Client
}

// NewBybit creates the adapter. An empty base falls back to the public API.
func NewBybit(base string) *Bybit {
	if base == "" {
		base = bybitBaseURL
	}
	return &Bybit{base: base, http: newHTTPClient()}
}

type bybitEnvelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

func (b *Bybit) get(ctx context.Context, path string, q url.Values, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.base+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("bybit: build request: %w", err)
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return fmt.Errorf("bybit: %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("bybit: %s: %w: %d %s", path, ErrBadStatus, resp.StatusCode, body)
	}
	var env bybitEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("bybit: decode %s: %w", path, err)
	}
	if env.RetCode != 0 {
		return fmt.Errorf("bybit: %s: retCode=%d msg=%q", path, env.RetCode, env.RetMsg)
	}
	if err := json.Unmarshal(env.Result, result); err != nil {
		return fmt.Errorf("bybit: decode %s result: %w", path, err)
	}
	return nil
}

// FetchCandles returns up to limit klines, oldest first. Bybit delivers
// newest-first, so the list is reversed before parsing.
func (b *Bybit) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error) {
	native, ok := bybitIntervals[interval]
	if !ok {
		return nil, fmt.Errorf("bybit: unsupported interval %q", interval)
	}
	q := url.Values{}
	q.Set("category", "linear")
	q.Set("symbol", symbol)
	q.Set("interval", native)
	q.Set("limit", fmt.Sprintf("%d", limit))

	var result struct {
		List [][]string `json:"list"`
	}
	if err := b.get(ctx, "/v5/market/kline", q, &result); err != nil {
		return nil, err
	}

	out := make([]model.Candle, 0, len(result.List))
	for i := len(result.List) - 1; i >= 0; i-- {
		row := result.List[i]
		// [startTime, open, high, low, close, volume, turnover]
		if len(row) < 7 {
			return nil, fmt.Errorf("bybit: kline row has %d columns", len(row))
		}
		c := model.Candle{
			Time:        int64(parseF(row[0])),
			Open:        parseF(row[1]),
			High:        parseF(row[2]),
			Low:         parseF(row[3]),
			Close:       parseF(row[4]),
			Volume:      parseF(row[5]),
			QuoteVolume: parseF(row[6]),
		}
		// v5 klines carry no taker split; assume balanced flow.
		c.TakerBuyVolume = c.Volume / 2
		c.TakerBuyQuoteVolume = c.QuoteVolume / 2
		out = append(out, c)
	}
	return out, nil
}

// FetchOpenInterestHistory returns open-interest points, oldest first.
// period is a Bybit intervalTime ("5min", "1h", "4h", "1d"). A response
// with fewer than two points wraps ErrShortHistory.
func (b *Bybit) FetchOpenInterestHistory(ctx context.Context, symbol, period string, limit int) ([]model.OIPoint, error) {
	q := url.Values{}
	q.Set("category", "linear")
	q.Set("symbol", symbol)
	q.Set("intervalTime", period)
	q.Set("limit", fmt.Sprintf("%d", limit))

	var result struct {
		List []struct {
			OpenInterest string `json:"openInterest"`
			Timestamp    string `json:"timestamp"`
		} `json:"list"`
	}
	if err := b.get(ctx, "/v5/market/open-interest", q, &result); err != nil {
		return nil, err
	}
	if len(result.List) < 2 {
		return nil, fmt.Errorf("bybit: open interest %s: %w (%d points)", symbol, ErrShortHistory, len(result.List))
	}

	out := make([]model.OIPoint, 0, len(result.List))
	for i := len(result.List) - 1; i >= 0; i-- {
		p := result.List[i]
		out = append(out, model.OIPoint{
			Timestamp:       int64(parseF(p.Timestamp)),
			SumOpenInterest: parseF(p.OpenInterest),
		})
	}
	return out, nil
}
