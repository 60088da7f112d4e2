package scanner

import (
	"fmt"
	"time"

	"market-scannerv1/config"
	"market-scannerv1/internal/indicator"
	"market-scannerv1/internal/model"
)

// Params bundles the indicator settings one scan cycle runs with.
type Params struct {
	RSILength      int
	StochRSILength int
	StochLength    int
	StochKSmooth   int
	StochDSmooth   int

	Trail         indicator.TrailConfig
	Channel       indicator.ChannelConfig
	STPeriod      int
	STMult        float64
	Resolution    int
	PivotLookback int
}

// ParamsFromConfig maps the env config onto indicator parameters.
func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		RSILength:      cfg.RSILength,
		StochRSILength: cfg.StochRSILength,
		StochLength:    cfg.StochLength,
		StochKSmooth:   cfg.StochKSmooth,
		StochDSmooth:   cfg.StochDSmooth,
		Trail: indicator.TrailConfig{
			DataLength:         cfg.TrailDataLength,
			DistributionLength: cfg.TrailDistLength,
			UseHeikinAshi:      cfg.TrailHeikinAshi,
		},
		Channel: indicator.ChannelConfig{
			Dist:         cfg.ChannelDist,
			ThresholdPct: cfg.ChannelThresholdPct,
			EntryMode:    cfg.ChannelEntryMode,
			SLBufferPct:  cfg.ChannelSLBufferPct,
			SLOnClose:    false,
		},
		STPeriod:      cfg.SupertrendPeriod,
		STMult:        cfg.SupertrendMult,
		Resolution:    cfg.ProfileResolution,
		PivotLookback: cfg.PivotLookback,
	}
}

// Validate rejects parameter combinations the indicator library cannot run.
func (p Params) Validate() error {
	if err := p.Trail.Validate(); err != nil {
		return fmt.Errorf("trail: %w", err)
	}
	if err := p.Channel.Validate(); err != nil {
		return fmt.Errorf("channel: %w", err)
	}
	if p.RSILength < 2 {
		return fmt.Errorf("rsi length %d out of range", p.RSILength)
	}
	if p.STPeriod < 1 || p.STMult <= 0 {
		return fmt.Errorf("supertrend period=%d mult=%g out of range", p.STPeriod, p.STMult)
	}
	return nil
}

// ComputeSnapshot runs the full indicator suite over one symbol/timeframe
// candle window. Indicators whose minimum window is not met come back
// empty; the snapshot is still produced so partial data reaches the UI.
func ComputeSnapshot(symbol, timeframe string, candles []model.Candle, p Params) *model.SymbolSnapshot {
	snap := &model.SymbolSnapshot{
		Symbol:    symbol,
		Timeframe: timeframe,
		FetchedAt: time.Now().UnixMilli(),
	}
	if len(candles) == 0 {
		return snap
	}
	last := candles[len(candles)-1]
	snap.LastPrice = last.Close
	snap.LastTime = last.Time

	snap.RSI = indicator.RSI(candles, p.RSILength)
	snap.StochK, snap.StochD = indicator.StochRSI(snap.RSI, p.StochRSILength, p.StochLength, p.StochKSmooth, p.StochDSmooth)
	snap.VWAP = indicator.SessionVWAP(candles)
	snap.AnchoredVWAP = indicator.AnchoredVWAP(candles, p.PivotLookback)
	snap.CVD = indicator.CVD(candles)
	snap.Profile = indicator.VolumeProfile(candles, p.Resolution)
	snap.Trail = indicator.Trail(candles, p.Trail)
	snap.Supertrend = indicator.Supertrend(candles, p.STPeriod, p.STMult)
	snap.Signals = indicator.ChannelSignals(candles, p.Channel)
	return snap
}

// oiWindows are the lookbacks OI percentage change is reported over.
var oiWindows = map[string]time.Duration{
	"1h": time.Hour,
	"4h": 4 * time.Hour,
	"8h": 8 * time.Hour,
}

// OIChangePct computes percentage open-interest change over each fixed
// window. Windows the history is too short for are omitted.
func OIChangePct(points []model.OIPoint, now time.Time) map[string]float64 {
	if len(points) < 2 {
		return nil
	}
	latest := points[len(points)-1]
	out := make(map[string]float64, len(oiWindows))
	for name, window := range oiWindows {
		cutoff := now.Add(-window).UnixMilli()
		ref, ok := oldestAtOrAfter(points, cutoff)
		if !ok || ref.Timestamp >= latest.Timestamp || ref.SumOpenInterest == 0 {
			continue
		}
		// The reference point must actually reach back the full window,
		// within one sampling step of slack.
		if len(points) >= 2 {
			step := points[1].Timestamp - points[0].Timestamp
			if ref.Timestamp > cutoff+step {
				continue
			}
		}
		out[name] = (latest.SumOpenInterest - ref.SumOpenInterest) / ref.SumOpenInterest * 100
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func oldestAtOrAfter(points []model.OIPoint, cutoff int64) (model.OIPoint, bool) {
	for _, p := range points {
		if p.Timestamp >= cutoff {
			return p, true
		}
	}
	return model.OIPoint{}, false
}
