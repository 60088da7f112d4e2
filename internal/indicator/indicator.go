// Package indicator derives time-aligned series from OHLCV candle windows.
// All functions are pure: they take a candle slice and return fresh output,
// so every scan cycle recomputes from the full window (self-healing against
// missed updates). Windows shorter than an indicator's minimum requirement
// yield an empty result, never an error and never NaN.
package indicator

import (
	"math"

	"market-scannerv1/internal/model"
)

// smaPoints computes a simple moving average over an IndicatorPoint series.
// Output starts at the first fully covered window (period-1 input points in).
func smaPoints(points []model.IndicatorPoint, period int) []model.IndicatorPoint {
	if period <= 0 || len(points) < period {
		return nil
	}
	out := make([]model.IndicatorPoint, 0, len(points)-period+1)
	sum := 0.0
	for i, p := range points {
		sum += p.Value
		if i >= period {
			sum -= points[i-period].Value
		}
		if i >= period-1 {
			out = append(out, model.IndicatorPoint{Time: p.Time, Value: sum / float64(period)})
		}
	}
	return out
}

// meanStdev returns the mean and population standard deviation of vals.
func meanStdev(vals []float64) (float64, float64) {
	n := float64(len(vals))
	if n == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	mean := sum / n
	sq := 0.0
	for _, v := range vals {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / n)
}
