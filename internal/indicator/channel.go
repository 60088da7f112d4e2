package indicator

import (
	"fmt"

	"market-scannerv1/internal/model"
)

// Channel entry modes: which candle pattern must hold on the signal bar.
const (
	EntryPlain       = "plain"  // proximity alone
	EntryHammer      = "hammer" // lower wick dominates the bar
	EntryGreen       = "green"  // close above open
	EntryHammerGreen = "hammer_green"
)

// ChannelConfig parameterizes the high/low channel signal algo.
type ChannelConfig struct {
	Dist         int     // channel lookback in bars
	ThresholdPct float64 // proximity to the channel edge, in percent
	EntryMode    string  // EntryPlain, EntryHammer, EntryGreen, EntryHammerGreen
	SLBufferPct  float64 // stop level buffer below the signal candle low, percent
	SLOnClose    bool    // require a close beyond the stop (false: intrabar low)
}

// Validate checks the config against its allowed ranges.
func (c ChannelConfig) Validate() error {
	if c.Dist < 2 {
		return fmt.Errorf("channel: dist %d too small", c.Dist)
	}
	if c.ThresholdPct < 0 || c.SLBufferPct < 0 {
		return fmt.Errorf("channel: negative threshold or stop buffer")
	}
	switch c.EntryMode {
	case EntryPlain, EntryHammer, EntryGreen, EntryHammerGreen:
	default:
		return fmt.Errorf("channel: unknown entry mode %q", c.EntryMode)
	}
	return nil
}

// ChannelSignals runs the rolling high/low channel state machine over the
// window. A BUY fires when the bar's low approaches the channel low within
// ThresholdPct and the entry pattern holds; a SELL fires symmetrically on
// the channel high while long. After a BUY a stop level is armed at
// signalLow·(1−SLBufferPct/100) and SL_HIT fires when price breaches it,
// returning the machine to its awaiting-BUY state. Windows shorter than
// Dist+1 bars return an empty series.
func ChannelSignals(candles []model.Candle, cfg ChannelConfig) []model.ChannelSignal {
	n := len(candles)
	if n < cfg.Dist+1 {
		return nil
	}

	var signals []model.ChannelSignal
	long := false
	slLevel := 0.0

	for i := cfg.Dist; i < n; i++ {
		chanLow := candles[i-cfg.Dist].Low
		chanHigh := candles[i-cfg.Dist].High
		for j := i - cfg.Dist + 1; j < i; j++ {
			if candles[j].Low < chanLow {
				chanLow = candles[j].Low
			}
			if candles[j].High > chanHigh {
				chanHigh = candles[j].High
			}
		}
		c := &candles[i]

		if long {
			// Stop-loss checks first: a breached stop exits before any sell.
			breach := c.Low < slLevel
			if cfg.SLOnClose {
				breach = c.Close < slLevel
			}
			if breach {
				signals = append(signals, model.ChannelSignal{
					Time: c.Time, Type: model.ChannelSLHit, Price: c.Close, SLLevel: slLevel,
				})
				long = false
				continue
			}
			if c.High >= chanHigh*(1-cfg.ThresholdPct/100) {
				signals = append(signals, model.ChannelSignal{
					Time: c.Time, Type: model.ChannelSell, Price: c.Close,
				})
				long = false
			}
			continue
		}

		if c.Low <= chanLow*(1+cfg.ThresholdPct/100) && entryPatternHolds(c, cfg.EntryMode) {
			slLevel = c.Low * (1 - cfg.SLBufferPct/100)
			signals = append(signals, model.ChannelSignal{
				Time: c.Time, Type: model.ChannelBuy, Price: c.Close, SLLevel: slLevel,
			})
			long = true
		}
	}
	return signals
}

func entryPatternHolds(c *model.Candle, mode string) bool {
	switch mode {
	case EntryHammer:
		return isHammer(c)
	case EntryGreen:
		return c.Close > c.Open
	case EntryHammerGreen:
		return isHammer(c) && c.Close > c.Open
	default:
		return true
	}
}

// isHammer: the body sits in the upper half of the bar, so the lower wick
// covers at least half the range.
func isHammer(c *model.Candle) bool {
	rng := c.High - c.Low
	if rng <= 0 {
		return false
	}
	body := c.Open
	if c.Close < body {
		body = c.Close
	}
	return (body - c.Low) >= 0.5*rng
}
