package indicator

import (
	"math"

	"market-scannerv1/internal/model"
)

// HeikinAshi returns the Heikin-Ashi transform of the input candles:
// HA-close = avg(O,H,L,C); HA-open = avg(prev HA-open, prev HA-close),
// seeded with avg(open, close) on the first bar; HA-high/low extend to the
// raw high/low. Volume fields carry through unchanged. The input slice is
// not modified.
func HeikinAshi(candles []model.Candle) []model.Candle {
	if len(candles) == 0 {
		return nil
	}
	out := make([]model.Candle, len(candles))
	for i := range candles {
		c := candles[i]
		ha := c
		ha.Close = (c.Open + c.High + c.Low + c.Close) / 4.0
		if i == 0 {
			ha.Open = (c.Open + c.Close) / 2.0
		} else {
			ha.Open = (out[i-1].Open + out[i-1].Close) / 2.0
		}
		ha.High = math.Max(c.High, math.Max(ha.Open, ha.Close))
		ha.Low = math.Min(c.Low, math.Min(ha.Open, ha.Close))
		out[i] = ha
	}
	return out
}
