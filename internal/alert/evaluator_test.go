package alert

import (
	"testing"
	"time"

	"market-scannerv1/internal/model"
)

// fixedClock returns an Evaluator clock pinned to a mutable instant.
type fixedClock struct{ now time.Time }

func (f *fixedClock) fn() func() time.Time {
	return func() time.Time { return f.now }
}

func trailSnap(symbol, tf string, biases ...model.Bias) *model.SymbolSnapshot {
	pts := make([]model.TrailPoint, len(biases))
	for i, b := range biases {
		pts[i] = model.TrailPoint{Time: int64(i+1) * 900_000, Bias: b, Level: 100, Close: 101}
	}
	return &model.SymbolSnapshot{Symbol: symbol, Timeframe: tf, LastPrice: 101, Trail: pts}
}

func newTestEvaluator(state *DedupState, clk *fixedClock) *Evaluator {
	e := NewEvaluator(DefaultConditions(), state)
	e.Now = clk.fn()
	return e
}

func TestEvaluate_TrailFlipFiresOnce(t *testing.T) {
	state := NewDedupState()
	clk := &fixedClock{now: time.UnixMilli(1_700_000_000_000)}
	e := newTestEvaluator(state, clk)

	snap := trailSnap("BTCUSDT", "1h", model.BiasBearish, model.BiasBearish, model.BiasBullish)
	first := e.Evaluate(snap)
	if len(first) != 1 {
		t.Fatalf("expected 1 alert on first run, got %d", len(first))
	}
	if first[0].Type != model.AlertTrailBullFlip {
		t.Errorf("expected bull flip, got %s", first[0].Type)
	}
	if first[0].Price != 101 {
		t.Errorf("alert should carry the flip candle close, got %.2f", first[0].Price)
	}

	// The identical flip observed again — even much later — never re-fires.
	clk.now = clk.now.Add(48 * time.Hour)
	if again := e.Evaluate(snap); len(again) != 0 {
		t.Fatalf("same flip event re-fired: %d alerts", len(again))
	}
}

func TestEvaluate_DistinctFlipEventsBothFire(t *testing.T) {
	state := NewDedupState()
	clk := &fixedClock{now: time.UnixMilli(1_700_000_000_000)}
	e := newTestEvaluator(state, clk)

	a := trailSnap("ETHUSDT", "4h", model.BiasBearish, model.BiasBearish, model.BiasBullish)
	b := trailSnap("ETHUSDT", "4h", model.BiasBearish, model.BiasBearish, model.BiasBullish)
	// Shift b's flip candle to a different bar time.
	b.Trail[2].Time += 14_400_000

	if got := e.Evaluate(a); len(got) != 1 {
		t.Fatalf("first event: expected 1 alert, got %d", len(got))
	}
	if got := e.Evaluate(b); len(got) != 1 {
		t.Fatalf("second event (different candle time): expected 1 alert, got %d", len(got))
	}
}

func TestEvaluate_CatchesLateFlipOneBarBack(t *testing.T) {
	state := NewDedupState()
	clk := &fixedClock{now: time.UnixMilli(1_700_000_000_000)}
	e := newTestEvaluator(state, clk)

	// Flip happened on the second-to-last bar; a bar has closed since.
	snap := trailSnap("SOLUSDT", "15m", model.BiasBearish, model.BiasBullish, model.BiasBullish)
	got := e.Evaluate(snap)
	if len(got) != 1 {
		t.Fatalf("late flip one bar back must still alert, got %d", len(got))
	}
}

func TestEvaluate_TrailTimeframeGate(t *testing.T) {
	state := NewDedupState()
	clk := &fixedClock{now: time.UnixMilli(1_700_000_000_000)}
	e := newTestEvaluator(state, clk)

	snap := trailSnap("BTCUSDT", "5m", model.BiasBearish, model.BiasBullish)
	if got := e.Evaluate(snap); len(got) != 0 {
		t.Fatalf("5m trail flips must not alert, got %d", len(got))
	}
}

func TestEvaluate_SupertrendOnlyLastTransition(t *testing.T) {
	state := NewDedupState()
	clk := &fixedClock{now: time.UnixMilli(1_700_000_000_000)}
	e := newTestEvaluator(state, clk)

	// Two transitions in the window: -1→+1 (older) then +1→-1 (latest).
	snap := &model.SymbolSnapshot{
		Symbol: "BTCUSDT", Timeframe: "4h", LastPrice: 50000,
		Supertrend: []model.SupertrendPoint{
			{Time: 1, Trend: -1, Close: 49000},
			{Time: 2, Trend: 1, Close: 50000},
			{Time: 3, Trend: -1, Close: 49500},
		},
	}
	got := e.Evaluate(snap)
	if len(got) != 1 {
		t.Fatalf("expected only the latest supertrend transition, got %d", len(got))
	}
	if got[0].Type != model.AlertSTBearFlip {
		t.Errorf("expected bear flip, got %s", got[0].Type)
	}
}

func TestEvaluate_SupertrendTimeframeGate(t *testing.T) {
	state := NewDedupState()
	clk := &fixedClock{now: time.UnixMilli(1_700_000_000_000)}
	e := newTestEvaluator(state, clk)

	snap := &model.SymbolSnapshot{
		Symbol: "BTCUSDT", Timeframe: "1h", LastPrice: 50000,
		Supertrend: []model.SupertrendPoint{
			{Time: 1, Trend: -1, Close: 49000},
			{Time: 2, Trend: 1, Close: 50000},
		},
	}
	if got := e.Evaluate(snap); len(got) != 0 {
		t.Fatalf("1h supertrend flips must not alert, got %d", len(got))
	}
}

func TestEvaluate_StateKeyedCooldown(t *testing.T) {
	state := NewDedupState()
	start := time.UnixMilli(1_700_000_000_000)
	clk := &fixedClock{now: start}
	e := newTestEvaluator(state, clk)

	snap := &model.SymbolSnapshot{
		Symbol: "BTCUSDT", Timeframe: "1h", LastPrice: 50000,
		RSI: []model.IndicatorPoint{{Time: 1, Value: 85}},
	}

	if got := e.Evaluate(snap); len(got) != 1 || got[0].Type != model.AlertRSIOverbought {
		t.Fatalf("expected initial overbought alert, got %v", got)
	}

	// Still inside the cooldown window: suppressed.
	clk.now = start.Add(Cooldown - time.Millisecond)
	if got := e.Evaluate(snap); len(got) != 0 {
		t.Fatalf("alert fired inside cooldown window: %v", got)
	}

	// Past the window: fires again.
	clk.now = start.Add(Cooldown)
	if got := e.Evaluate(snap); len(got) != 1 {
		t.Fatalf("expected re-fire after cooldown, got %d", len(got))
	}
}

func TestEvaluate_ChannelSignalsEventKeyed(t *testing.T) {
	state := NewDedupState()
	clk := &fixedClock{now: time.UnixMilli(1_700_000_000_000)}
	e := newTestEvaluator(state, clk)

	snap := &model.SymbolSnapshot{
		Symbol: "INJUSDT", Timeframe: "1h", LastPrice: 20,
		Signals: []model.ChannelSignal{
			{Time: 100, Type: model.ChannelBuy, Price: 19.5, SLLevel: 19.0},
			{Time: 200, Type: model.ChannelSell, Price: 21.0},
		},
	}
	if got := e.Evaluate(snap); len(got) != 2 {
		t.Fatalf("expected both channel signals, got %d", len(got))
	}
	if got := e.Evaluate(snap); len(got) != 0 {
		t.Fatalf("channel signals re-fired: %d", len(got))
	}
}

func TestEvaluate_OISurge(t *testing.T) {
	state := NewDedupState()
	clk := &fixedClock{now: time.UnixMilli(1_700_000_000_000)}
	e := newTestEvaluator(state, clk)

	snap := &model.SymbolSnapshot{
		Symbol: "BTCUSDT", Timeframe: "1h", LastPrice: 50000,
		OIChangePct: map[string]float64{"1h": 7.5, "4h": 1.0},
	}
	got := e.Evaluate(snap)
	if len(got) != 1 {
		t.Fatalf("expected one OI surge alert (only 1h over threshold), got %d", len(got))
	}
	if got[0].Type != model.AlertOISurge {
		t.Errorf("expected OI surge type, got %s", got[0].Type)
	}
}

func TestEvaluate_DisabledConditionsSilent(t *testing.T) {
	state := NewDedupState()
	clk := &fixedClock{now: time.UnixMilli(1_700_000_000_000)}
	e := NewEvaluator(Conditions{}, state)
	e.Now = clk.fn()

	snap := trailSnap("BTCUSDT", "1h", model.BiasBearish, model.BiasBullish)
	snap.RSI = []model.IndicatorPoint{{Time: 1, Value: 99}}
	if got := e.Evaluate(snap); len(got) != 0 {
		t.Fatalf("disabled conditions produced %d alerts", len(got))
	}
}

func TestEvaluate_OrderIsStable(t *testing.T) {
	state := NewDedupState()
	clk := &fixedClock{now: time.UnixMilli(1_700_000_000_000)}
	e := newTestEvaluator(state, clk)

	snap := trailSnap("BTCUSDT", "4h", model.BiasBearish, model.BiasBearish, model.BiasBullish)
	snap.RSI = []model.IndicatorPoint{{Time: 1, Value: 85}}
	snap.Supertrend = []model.SupertrendPoint{
		{Time: 1, Trend: -1, Close: 49000},
		{Time: 2, Trend: 1, Close: 50000},
	}
	got := e.Evaluate(snap)
	if len(got) != 3 {
		t.Fatalf("expected 3 alerts, got %d", len(got))
	}
	// Condition-check order: trail, supertrend, RSI.
	if got[0].Type != model.AlertTrailBullFlip || got[1].Type != model.AlertSTBullFlip || got[2].Type != model.AlertRSIOverbought {
		t.Fatalf("unexpected order: %s, %s, %s", got[0].Type, got[1].Type, got[2].Type)
	}
}
