package indicator

import "market-scannerv1/internal/model"

// valueAreaPct is the share of total volume the value area must cover.
const valueAreaPct = 0.70

// VolumeProfile partitions the window's price range [minLow, maxHigh] into
// `resolution` equal buckets and assigns each candle's full volume to the
// bucket containing its typical price. Buy volume per candle is
// volume·(takerBuyQuoteVolume/quoteVolume), split 50/50 when quote volume
// is zero; sell volume is the remainder. VAH/VAL come from the standard
// value-area expansion: starting at POC, absorb whichever adjacent bucket
// has more volume until the covered share reaches 70% of the total.
func VolumeProfile(candles []model.Candle, resolution int) *model.VolumeProfileData {
	if resolution <= 0 || len(candles) == 0 {
		return nil
	}

	minLow := candles[0].Low
	maxHigh := candles[0].High
	for i := range candles {
		if candles[i].Low < minLow {
			minLow = candles[i].Low
		}
		if candles[i].High > maxHigh {
			maxHigh = candles[i].High
		}
	}
	if maxHigh <= minLow {
		resolution = 1
	}
	step := (maxHigh - minLow) / float64(resolution)

	buckets := make([]model.ProfileBucket, resolution)
	for i := range buckets {
		buckets[i].Price = minLow + (float64(i)+0.5)*step
	}

	total := 0.0
	for i := range candles {
		c := &candles[i]
		idx := 0
		if step > 0 {
			idx = int((c.TypicalPrice() - minLow) / step)
			if idx < 0 {
				idx = 0
			}
			if idx >= resolution {
				idx = resolution - 1
			}
		}
		buy := c.Volume * 0.5
		if c.QuoteVolume > 0 {
			buy = c.Volume * (c.TakerBuyQuoteVolume / c.QuoteVolume)
		}
		buckets[idx].Volume += c.Volume
		buckets[idx].BuyVolume += buy
		buckets[idx].SellVolume += c.Volume - buy
		total += c.Volume
	}

	pocIdx := 0
	for i := range buckets {
		if buckets[i].Volume > buckets[pocIdx].Volume {
			pocIdx = i
		}
	}

	lo, hi := valueArea(buckets, pocIdx, total)

	return &model.VolumeProfileData{
		Profile:   buckets,
		POC:       buckets[pocIdx].Price,
		VAH:       buckets[hi].Price,
		VAL:       buckets[lo].Price,
		MaxVolume: buckets[pocIdx].Volume,
		MinPrice:  minLow,
		MaxPrice:  maxHigh,
	}
}

// valueArea expands outward from the POC bucket, absorbing the heavier
// adjacent bucket at each step, until cumulative volume reaches 70% of
// total. Returns the low and high bucket indices of the area.
func valueArea(buckets []model.ProfileBucket, pocIdx int, total float64) (lo, hi int) {
	lo, hi = pocIdx, pocIdx
	covered := buckets[pocIdx].Volume
	target := total * valueAreaPct

	for covered < target && (lo > 0 || hi < len(buckets)-1) {
		below := -1.0
		if lo > 0 {
			below = buckets[lo-1].Volume
		}
		above := -1.0
		if hi < len(buckets)-1 {
			above = buckets[hi+1].Volume
		}
		if above >= below {
			hi++
			covered += buckets[hi].Volume
		} else {
			lo--
			covered += buckets[lo].Volume
		}
	}
	return lo, hi
}
