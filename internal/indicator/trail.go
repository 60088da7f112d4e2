package indicator

import (
	"fmt"
	"math"

	"market-scannerv1/internal/model"
)

// TrailConfig parameterizes the statistical trailing stop.
type TrailConfig struct {
	// DataLength is the true-range lookback in bars (1 or 5).
	DataLength int
	// DistributionLength is the log-true-range distribution window (10 or 100).
	DistributionLength int
	// UseHeikinAshi denoises the trail by running it over the Heikin-Ashi
	// transform. Original candle closes are still reported on every point.
	UseHeikinAshi bool
}

// Validate checks the config against its allowed ranges.
func (c TrailConfig) Validate() error {
	if c.DataLength < 1 || c.DataLength > 5 {
		return fmt.Errorf("trail: data length %d out of range [1,5]", c.DataLength)
	}
	if c.DistributionLength < 2 || c.DistributionLength > 100 {
		return fmt.Errorf("trail: distribution length %d out of range [2,100]", c.DistributionLength)
	}
	return nil
}

// TrailState is the evolving state of the trailing stop within one pass:
// recomputed from scratch whenever the full candle window is refetched,
// never persisted across cycles.
type TrailState struct {
	Bias    model.Bias
	Delta   float64
	Level   float64
	Extreme float64 // most favorable close since the last flip
	Anchor  float64 // hlc3 of the flip candle
}

// MinTrailCandles returns the minimum window length Trail needs for the
// given config before it produces any non-neutral output.
func MinTrailCandles(cfg TrailConfig) int {
	return cfg.DistributionLength + cfg.DataLength + 2
}

// Trail computes the statistical trailing stop over the candle window.
//
// Per candle it takes the true range of the trailing DataLength-bar
// high/low extremes against the close DataLength+1 bars back, fits a
// log-normal distribution over the last DistributionLength positive true
// ranges, and sets delta = exp(mean + stdev). The level seeds at
// hlc3+delta with BEARISH bias and thereafter only tightens: BEARISH
// levels never rise, BULLISH levels never fall, until a close crosses the
// level and flips the bias. One point is emitted per input candle, with
// neutral bias and zero level through the warm-up region. Windows shorter
// than MinTrailCandles return an empty series.
func Trail(candles []model.Candle, cfg TrailConfig) []model.TrailPoint {
	n := len(candles)
	if n < MinTrailCandles(cfg) {
		return nil
	}

	src := candles
	if cfg.UseHeikinAshi {
		src = HeikinAshi(candles)
	}

	// Log true range per bar over the trailing DataLength-bar extremes.
	logTR := make([]float64, n)
	hasTR := make([]bool, n)
	for i := cfg.DataLength + 1; i < n; i++ {
		hi := src[i].High
		lo := src[i].Low
		for j := i - cfg.DataLength + 1; j < i; j++ {
			if src[j].High > hi {
				hi = src[j].High
			}
			if src[j].Low < lo {
				lo = src[j].Low
			}
		}
		ref := src[i-cfg.DataLength-1].Close
		tr := math.Max(hi-lo, math.Max(math.Abs(hi-ref), math.Abs(lo-ref)))
		if tr > 0 {
			logTR[i] = math.Log(tr)
			hasTR[i] = true
		}
	}

	out := make([]model.TrailPoint, n)
	var st TrailState
	hasDelta := false
	seeded := false
	sample := make([]float64, 0, cfg.DistributionLength)

	for i := 0; i < n; i++ {
		out[i] = model.TrailPoint{Time: candles[i].Time, Close: candles[i].Close}
		if i < cfg.DistributionLength-1 {
			continue
		}

		// Last DistributionLength positive log-TR samples at or before i.
		sample = sample[:0]
		for j := i; j >= 0 && len(sample) < cfg.DistributionLength; j-- {
			if hasTR[j] {
				sample = append(sample, logTR[j])
			}
		}
		if len(sample) >= 2 {
			mean, sd := meanStdev(sample)
			st.Delta = math.Exp(mean + sd)
			hasDelta = true
		} else if !hasDelta {
			continue // no delta yet, emit neutral
		}

		hlc3 := src[i].TypicalPrice()
		close := src[i].Close

		if !seeded {
			st.Bias = model.BiasBearish
			st.Level = hlc3 + st.Delta
			st.Extreme = close
			st.Anchor = hlc3
			seeded = true
		} else {
			triggered := (st.Bias == model.BiasBearish && close >= st.Level) ||
				(st.Bias == model.BiasBullish && close <= st.Level)
			if triggered {
				if st.Bias == model.BiasBearish {
					st.Bias = model.BiasBullish
					st.Level = math.Max(hlc3-st.Delta, 0)
				} else {
					st.Bias = model.BiasBearish
					st.Level = hlc3 + st.Delta
				}
				st.Extreme = close
				st.Anchor = hlc3
			} else if st.Bias == model.BiasBearish {
				st.Level = math.Min(st.Level, hlc3+st.Delta)
				if close < st.Extreme {
					st.Extreme = close
				}
			} else {
				st.Level = math.Max(st.Level, math.Max(hlc3-st.Delta, 0))
				if close > st.Extreme {
					st.Extreme = close
				}
			}
		}

		out[i].Bias = st.Bias
		out[i].Level = st.Level
	}
	return out
}
