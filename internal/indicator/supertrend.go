package indicator

import (
	"math"

	"market-scannerv1/internal/model"
)

// Supertrend computes the Supertrend indicator: ATR is an SMA of true
// range over `period`; bands up = hl2 − mult·ATR and dn = hl2 + mult·ATR
// are ratcheted against the prior bar's bands (up only rises while price
// holds above it, dn only falls while price holds below). The trend flips
// -1→+1 when close > prev dn and +1→-1 when close < prev up. Only the
// band matching the active trend is marked valid on each point. Windows
// shorter than period+1 return an empty series; warm-up bars carry
// Trend=0.
func Supertrend(candles []model.Candle, period int, multiplier float64) []model.SupertrendPoint {
	n := len(candles)
	if period <= 0 || n < period+1 {
		return nil
	}

	tr := make([]float64, n)
	tr[0] = candles[0].High - candles[0].Low
	for i := 1; i < n; i++ {
		c := &candles[i]
		pc := candles[i-1].Close
		tr[i] = math.Max(c.High-c.Low, math.Max(math.Abs(c.High-pc), math.Abs(c.Low-pc)))
	}

	out := make([]model.SupertrendPoint, n)
	var prevUp, prevDn float64
	prevTrend := 0
	trSum := 0.0

	for i := 0; i < n; i++ {
		c := &candles[i]
		out[i] = model.SupertrendPoint{Time: c.Time, Close: c.Close}

		trSum += tr[i]
		if i >= period {
			trSum -= tr[i-period]
		}
		if i < period-1 {
			continue
		}
		atr := trSum / float64(period)

		hl2 := c.HL2()
		up := hl2 - multiplier*atr
		dn := hl2 + multiplier*atr

		trend := prevTrend
		if prevTrend == 0 {
			trend = 1
		} else {
			// Ratchet bands against the prior bar while price respects them.
			if candles[i-1].Close > prevUp && up < prevUp {
				up = prevUp
			}
			if candles[i-1].Close < prevDn && dn > prevDn {
				dn = prevDn
			}
			if prevTrend == -1 && c.Close > prevDn {
				trend = 1
			} else if prevTrend == 1 && c.Close < prevUp {
				trend = -1
			}
		}

		out[i].Trend = trend
		if trend == 1 {
			out[i].Up = up
			out[i].UpValid = true
		} else {
			out[i].Dn = dn
			out[i].DnValid = true
		}

		prevUp, prevDn, prevTrend = up, dn, trend
	}
	return out
}
