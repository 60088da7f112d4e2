package indicator

import "market-scannerv1/internal/model"

// CVD computes the cumulative volume delta: a running sum of each candle's
// net taker delta, 2·takerBuyQuoteVolume − quoteVolume. Strictly
// accumulating from the first candle of the window, never reset within it.
func CVD(candles []model.Candle) []model.IndicatorPoint {
	if len(candles) == 0 {
		return nil
	}
	out := make([]model.IndicatorPoint, 0, len(candles))
	cum := 0.0
	for i := range candles {
		c := &candles[i]
		cum += 2*c.TakerBuyQuoteVolume - c.QuoteVolume
		out = append(out, model.IndicatorPoint{Time: c.Time, Value: cum})
	}
	return out
}
