package indicator

import (
	"time"

	"market-scannerv1/internal/model"
)

// VWAP computes the cumulative volume-weighted average price over the
// supplied window: Σ(typicalPrice·volume) / Σvolume, one point per candle,
// accumulating from the first candle. The caller controls the anchor by
// choosing the window (see SessionVWAP and AnchoredVWAP).
func VWAP(candles []model.Candle) []model.IndicatorPoint {
	if len(candles) == 0 {
		return nil
	}
	out := make([]model.IndicatorPoint, 0, len(candles))
	sumPV := 0.0
	sumV := 0.0
	for i := range candles {
		c := &candles[i]
		sumPV += c.TypicalPrice() * c.Volume
		sumV += c.Volume
		v := c.TypicalPrice()
		if sumV > 0 {
			v = sumPV / sumV
		}
		out = append(out, model.IndicatorPoint{Time: c.Time, Value: v})
	}
	return out
}

// SessionVWAP anchors VWAP at the most recent UTC-midnight candle:
// the first candle whose open time falls on or after the UTC midnight
// preceding the newest candle.
func SessionVWAP(candles []model.Candle) []model.IndicatorPoint {
	if len(candles) == 0 {
		return nil
	}
	last := candles[len(candles)-1].OpenTime()
	midnight := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, time.UTC)
	anchor := len(candles) - 1
	for i := range candles {
		if !candles[i].OpenTime().Before(midnight) {
			anchor = i
			break
		}
	}
	return VWAP(candles[anchor:])
}

// RecentPivotIndex scans candles from newest to oldest and returns the most
// recent index i (with `lookback` bars of margin on both sides) whose high
// is >= every high within ±lookback when findHigh is true, or whose low is
// <= every low within ±lookback otherwise. Returns -1 if no bar qualifies.
func RecentPivotIndex(candles []model.Candle, lookback int, findHigh bool) int {
	n := len(candles)
	if lookback <= 0 || n < 2*lookback+1 {
		return -1
	}
	for i := n - 1 - lookback; i >= lookback; i-- {
		if isPivot(candles, i, lookback, findHigh) {
			return i
		}
	}
	return -1
}

func isPivot(candles []model.Candle, i, lookback int, findHigh bool) bool {
	for j := i - lookback; j <= i+lookback; j++ {
		if j == i {
			continue
		}
		if findHigh && candles[j].High > candles[i].High {
			return false
		}
		if !findHigh && candles[j].Low < candles[i].Low {
			return false
		}
	}
	return true
}

// AnchoredVWAP computes VWAP from the most recent pivot (high or low,
// whichever is newer). Returns nil when no pivot is found.
func AnchoredVWAP(candles []model.Candle, lookback int) []model.IndicatorPoint {
	hi := RecentPivotIndex(candles, lookback, true)
	lo := RecentPivotIndex(candles, lookback, false)
	anchor := hi
	if lo > anchor {
		anchor = lo
	}
	if anchor < 0 {
		return nil
	}
	return VWAP(candles[anchor:])
}
