// Package marketdata implements the provider adapters the scanner pulls
// candles and open-interest history from. Every adapter satisfies the same
// narrow contracts so the core never knows which exchange it is talking to.
package marketdata

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"market-scannerv1/internal/model"
)

// CandleSource fetches up to limit candles, oldest first, last one possibly
// still forming.
type CandleSource interface {
	FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error)
}

// OpenInterestSource fetches open-interest history, oldest first.
type OpenInterestSource interface {
	FetchOpenInterestHistory(ctx context.Context, symbol, period string, limit int) ([]model.OIPoint, error)
}

// ErrShortHistory marks a response with fewer points than the computation
// needs. Callers treat the series as unavailable, not as a failure.
var ErrShortHistory = errors.New("marketdata: insufficient history")

// ErrBadStatus wraps non-2xx responses.
var ErrBadStatus = errors.New("marketdata: unexpected http status")

const defaultTimeout = 10 * time.Second

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultTimeout}
}

func parseF(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
