package alert

import (
	"fmt"
	"strconv"
	"time"

	"market-scannerv1/internal/model"
)

// Timeframe gates: trail flips alert on mid-to-high timeframes only,
// supertrend flips only on the slow ones.
var (
	trailAlertTimeframes      = map[string]bool{"15m": true, "1h": true, "4h": true, "1d": true}
	supertrendAlertTimeframes = map[string]bool{"4h": true, "1d": true}
)

// Conditions holds the enabled alert checks and their thresholds.
type Conditions struct {
	TrailFlips      bool
	SupertrendFlips bool
	RSIExtremes     bool
	ChannelSignals  bool
	OISurge         bool

	RSIOverbought float64 // fire when last RSI >= this (default 70)
	RSIOversold   float64 // fire when last RSI <= this (default 30)
	OISurgePct    float64 // absolute OI change percent threshold (default 5)
}

// DefaultConditions enables everything with standard thresholds.
func DefaultConditions() Conditions {
	return Conditions{
		TrailFlips:      true,
		SupertrendFlips: true,
		RSIExtremes:     true,
		ChannelSignals:  true,
		OISurge:         true,
		RSIOverbought:   70,
		RSIOversold:     30,
		OISurgePct:      5,
	}
}

// Evaluator turns one symbol/timeframe snapshot into the notifications that
// are new since the last run. It mutates the shared dedup state and nothing
// else; persistence of that state is the caller's responsibility.
type Evaluator struct {
	cond  Conditions
	state *DedupState

	// Now is the wall clock, overridable in tests.
	Now func() time.Time
}

// NewEvaluator creates an evaluator over the given dedup state.
func NewEvaluator(cond Conditions, state *DedupState) *Evaluator {
	return &Evaluator{cond: cond, state: state, Now: time.Now}
}

// Evaluate checks every enabled condition against the snapshot, in a fixed
// order (trail, supertrend, RSI, channel, OI), and returns the alerts that
// pass deduplication. Each returned alert is atomically marked fired.
func (e *Evaluator) Evaluate(snap *model.SymbolSnapshot) []model.Notification {
	if snap == nil {
		return nil
	}
	var out []model.Notification

	if e.cond.TrailFlips && trailAlertTimeframes[snap.Timeframe] {
		out = append(out, e.trailFlips(snap)...)
	}
	if e.cond.SupertrendFlips && supertrendAlertTimeframes[snap.Timeframe] {
		out = append(out, e.supertrendFlip(snap)...)
	}
	if e.cond.RSIExtremes {
		out = append(out, e.rsiExtremes(snap)...)
	}
	if e.cond.ChannelSignals {
		out = append(out, e.channelSignals(snap)...)
	}
	if e.cond.OISurge {
		out = append(out, e.oiSurge(snap)...)
	}
	return out
}

// trailFlips examines the last two bias transitions — current-vs-previous
// and previous-vs-second-previous — so a flip is not missed when the
// evaluator runs slightly late. Keys embed the flip candle's own time, so
// re-observing the same flip on a later run never re-fires it.
func (e *Evaluator) trailFlips(snap *model.SymbolSnapshot) []model.Notification {
	pts := nonNeutralTrail(snap.Trail)
	var out []model.Notification
	for back := 2; back >= 1; back-- {
		if len(pts) <= back {
			continue
		}
		prev := pts[len(pts)-back-1]
		cur := pts[len(pts)-back]
		if prev.Bias == cur.Bias {
			continue
		}
		dir := "bear"
		typ := model.AlertTrailBearFlip
		if cur.Bias == model.BiasBullish {
			dir = "bull"
			typ = model.AlertTrailBullFlip
		}
		key := snap.Symbol + "-" + snap.Timeframe + "-" + dir + "-flip-" + strconv.FormatInt(cur.Time, 10)
		if _, seen := e.state.FiredAt(key); seen {
			continue
		}
		now := e.Now().UnixMilli()
		e.state.MarkFired(key, now)
		out = append(out, model.Notification{
			ID:        model.NewNotificationID(snap.Symbol, snap.Timeframe, typ, cur.Time),
			Symbol:    snap.Symbol,
			Timeframe: snap.Timeframe,
			Type:      typ,
			Price:     cur.Close,
			Body:      fmt.Sprintf("%s %s trail flipped %s at %s", snap.Symbol, snap.Timeframe, cur.Bias, trimPrice(cur.Close)),
			Timestamp: now,
		})
	}
	return out
}

// supertrendFlip checks only the single most recent transition — older
// supertrend flips are not retroactively alerted.
func (e *Evaluator) supertrendFlip(snap *model.SymbolSnapshot) []model.Notification {
	pts := activeSupertrend(snap.Supertrend)
	if len(pts) < 2 {
		return nil
	}
	prev := pts[len(pts)-2]
	cur := pts[len(pts)-1]
	if prev.Trend == cur.Trend {
		return nil
	}
	dir := "bear"
	typ := model.AlertSTBearFlip
	word := "BEARISH"
	if cur.Trend == 1 {
		dir = "bull"
		typ = model.AlertSTBullFlip
		word = "BULLISH"
	}
	key := snap.Symbol + "-" + snap.Timeframe + "-st-" + dir + "-flip-" + strconv.FormatInt(cur.Time, 10)
	if _, seen := e.state.FiredAt(key); seen {
		return nil
	}
	now := e.Now().UnixMilli()
	e.state.MarkFired(key, now)
	return []model.Notification{{
		ID:        model.NewNotificationID(snap.Symbol, snap.Timeframe, typ, cur.Time),
		Symbol:    snap.Symbol,
		Timeframe: snap.Timeframe,
		Type:      typ,
		Price:     cur.Close,
		Body:      fmt.Sprintf("%s %s supertrend flipped %s at %s", snap.Symbol, snap.Timeframe, word, trimPrice(cur.Close)),
		Timestamp: now,
	}}
}

// rsiExtremes is state-keyed: no event timestamp in the key, so the same
// condition holding across cycles is throttled by the cooldown window.
func (e *Evaluator) rsiExtremes(snap *model.SymbolSnapshot) []model.Notification {
	if len(snap.RSI) == 0 {
		return nil
	}
	last := snap.RSI[len(snap.RSI)-1]
	var typ model.AlertType
	var body string
	switch {
	case last.Value >= e.cond.RSIOverbought:
		typ = model.AlertRSIOverbought
		body = fmt.Sprintf("%s %s RSI overbought: %.1f", snap.Symbol, snap.Timeframe, last.Value)
	case last.Value <= e.cond.RSIOversold:
		typ = model.AlertRSIOversold
		body = fmt.Sprintf("%s %s RSI oversold: %.1f", snap.Symbol, snap.Timeframe, last.Value)
	default:
		return nil
	}
	key := snap.Symbol + "-" + snap.Timeframe + "-" + string(typ)
	if n := e.fireStateKeyed(key); n != 0 {
		return []model.Notification{{
			ID:        model.NewNotificationID(snap.Symbol, snap.Timeframe, typ, n),
			Symbol:    snap.Symbol,
			Timeframe: snap.Timeframe,
			Type:      typ,
			Price:     snap.LastPrice,
			Body:      body,
			Timestamp: n,
		}}
	}
	return nil
}

// channelSignals are event-keyed on the signal candle's time.
func (e *Evaluator) channelSignals(snap *model.SymbolSnapshot) []model.Notification {
	var out []model.Notification
	for i := range snap.Signals {
		sig := &snap.Signals[i]
		var typ model.AlertType
		switch sig.Type {
		case model.ChannelBuy:
			typ = model.AlertChannelBuy
		case model.ChannelSell:
			typ = model.AlertChannelSell
		case model.ChannelSLHit:
			typ = model.AlertChannelSLHit
		default:
			continue
		}
		key := snap.Symbol + "-" + snap.Timeframe + "-" + string(typ) + "-" + strconv.FormatInt(sig.Time, 10)
		if _, seen := e.state.FiredAt(key); seen {
			continue
		}
		now := e.Now().UnixMilli()
		e.state.MarkFired(key, now)
		out = append(out, model.Notification{
			ID:        model.NewNotificationID(snap.Symbol, snap.Timeframe, typ, sig.Time),
			Symbol:    snap.Symbol,
			Timeframe: snap.Timeframe,
			Type:      typ,
			Price:     sig.Price,
			Body:      fmt.Sprintf("%s %s channel %s at %s", snap.Symbol, snap.Timeframe, sig.Type, trimPrice(sig.Price)),
			Timestamp: now,
		})
	}
	return out
}

// oiSurge fires one state-keyed alert per lookback window whose open
// interest moved more than the threshold, throttled by the cooldown.
func (e *Evaluator) oiSurge(snap *model.SymbolSnapshot) []model.Notification {
	var out []model.Notification
	for _, window := range []string{"1h", "4h", "8h"} {
		pct, ok := snap.OIChangePct[window]
		if !ok || pct < e.cond.OISurgePct && pct > -e.cond.OISurgePct {
			continue
		}
		key := snap.Symbol + "-" + snap.Timeframe + "-" + string(model.AlertOISurge) + "-" + window
		n := e.fireStateKeyed(key)
		if n == 0 {
			continue
		}
		out = append(out, model.Notification{
			ID:        model.NewNotificationID(snap.Symbol, snap.Timeframe, model.AlertOISurge, n),
			Symbol:    snap.Symbol,
			Timeframe: snap.Timeframe,
			Type:      model.AlertOISurge,
			Price:     snap.LastPrice,
			Body:      fmt.Sprintf("%s open interest %+.1f%% over %s", snap.Symbol, pct, window),
			Timestamp: n,
		})
	}
	return out
}

// fireStateKeyed applies the cooldown window to a state-keyed alert.
// Returns the firing timestamp (ms) when the alert may fire, 0 otherwise.
func (e *Evaluator) fireStateKeyed(key string) int64 {
	now := e.Now().UnixMilli()
	if last, ok := e.state.FiredAt(key); ok && now-last < Cooldown.Milliseconds() {
		return 0
	}
	e.state.MarkFired(key, now)
	return now
}

func nonNeutralTrail(pts []model.TrailPoint) []model.TrailPoint {
	out := make([]model.TrailPoint, 0, len(pts))
	for _, p := range pts {
		if p.Bias != model.BiasNeutral {
			out = append(out, p)
		}
	}
	return out
}

func activeSupertrend(pts []model.SupertrendPoint) []model.SupertrendPoint {
	out := make([]model.SupertrendPoint, 0, len(pts))
	for _, p := range pts {
		if p.Trend != 0 {
			out = append(out, p)
		}
	}
	return out
}

// trimPrice formats a price with enough precision for small-cap symbols
// without drowning majors in decimals.
func trimPrice(p float64) string {
	switch {
	case p >= 100:
		return strconv.FormatFloat(p, 'f', 2, 64)
	case p >= 1:
		return strconv.FormatFloat(p, 'f', 4, 64)
	default:
		return strconv.FormatFloat(p, 'f', 6, 64)
	}
}
