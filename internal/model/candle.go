package model

import (
	"encoding/json"
	"time"
)

// Candle represents one OHLCV bar for a single symbol and interval.
// Time is the bucket open time in epoch milliseconds (UTC). Candles in a
// window are ordered ascending by Time with no duplicate timestamps; gaps
// are possible and never assumed away. A fetched candle is immutable.
type Candle struct {
	Time                int64   `json:"time"` // epoch ms
	Open                float64 `json:"open"`
	High                float64 `json:"high"`
	Low                 float64 `json:"low"`
	Close               float64 `json:"close"`
	Volume              float64 `json:"volume"`
	QuoteVolume         float64 `json:"quoteVolume"`
	TakerBuyVolume      float64 `json:"takerBuyVolume"`
	TakerBuyQuoteVolume float64 `json:"takerBuyQuoteVolume"`
}

// TypicalPrice returns (H+L+C)/3.
func (c *Candle) TypicalPrice() float64 {
	return (c.High + c.Low + c.Close) / 3.0
}

// HL2 returns (H+L)/2.
func (c *Candle) HL2() float64 {
	return (c.High + c.Low) / 2.0
}

// OpenTime returns the candle open time as a time.Time (UTC).
func (c *Candle) OpenTime() time.Time {
	return time.Unix(0, c.Time*int64(time.Millisecond)).UTC()
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// IndicatorPoint is one time-aligned output of a simple indicator
// (RSI, SMA, VWAP, CVD).
type IndicatorPoint struct {
	Time  int64   `json:"time"` // epoch ms, matches the source candle
	Value float64 `json:"value"`
}

// OIPoint is one open-interest history sample.
type OIPoint struct {
	Timestamp       int64   `json:"timestamp"` // epoch ms
	SumOpenInterest float64 `json:"sumOpenInterest"`
}
