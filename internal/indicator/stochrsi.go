package indicator

import "market-scannerv1/internal/model"

// StochRSI normalizes an RSI series to [0,100] over rolling min/max windows
// of stochLength points, then smooths twice: K = SMA(stoch, kSmooth),
// D = SMA(K, dSmooth). Requires at least rsiLength+stochLength RSI points;
// shorter input returns empty K and D.
func StochRSI(rsi []model.IndicatorPoint, rsiLength, stochLength, kSmooth, dSmooth int) (k, d []model.IndicatorPoint) {
	if stochLength <= 0 || len(rsi) < rsiLength+stochLength {
		return nil, nil
	}

	raw := make([]model.IndicatorPoint, 0, len(rsi)-stochLength+1)
	for i := stochLength - 1; i < len(rsi); i++ {
		lo := rsi[i].Value
		hi := rsi[i].Value
		for j := i - stochLength + 1; j < i; j++ {
			if rsi[j].Value < lo {
				lo = rsi[j].Value
			}
			if rsi[j].Value > hi {
				hi = rsi[j].Value
			}
		}
		v := 0.0
		if hi > lo {
			v = (rsi[i].Value - lo) / (hi - lo) * 100.0
		}
		raw = append(raw, model.IndicatorPoint{Time: rsi[i].Time, Value: v})
	}

	k = smaPoints(raw, kSmooth)
	d = smaPoints(k, dSmooth)
	return k, d
}
