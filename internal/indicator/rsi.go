package indicator

import "market-scannerv1/internal/model"

// RSI computes the Relative Strength Index over candle closes using Wilder's
// smoothing: the first average gain/loss is seeded over the first `length`
// deltas, then rolled forward as avg = (avg*(length-1)+new)/length.
// avgLoss == 0 maps to RSI = 100. Requires more than `length` candles;
// shorter windows return an empty series. The first output point aligns
// with candles[length].
func RSI(candles []model.Candle, length int) []model.IndicatorPoint {
	n := len(candles)
	if length <= 0 || n <= length {
		return nil
	}

	avgGain := 0.0
	avgLoss := 0.0
	for i := 1; i <= length; i++ {
		delta := candles[i].Close - candles[i-1].Close
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(length)
	avgLoss /= float64(length)

	out := make([]model.IndicatorPoint, 0, n-length)
	out = append(out, model.IndicatorPoint{
		Time:  candles[length].Time,
		Value: rsiValue(avgGain, avgLoss),
	})

	p := float64(length)
	for i := length + 1; i < n; i++ {
		delta := candles[i].Close - candles[i-1].Close
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
		out = append(out, model.IndicatorPoint{
			Time:  candles[i].Time,
			Value: rsiValue(avgGain, avgLoss),
		})
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}
