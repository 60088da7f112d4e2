package scanner

import (
	"math"
	"testing"
	"time"

	"market-scannerv1/internal/indicator"
	"market-scannerv1/internal/model"
)

func testParams() Params {
	return Params{
		RSILength:      14,
		StochRSILength: 14,
		StochLength:    14,
		StochKSmooth:   3,
		StochDSmooth:   3,
		Trail:          indicator.TrailConfig{DataLength: 2, DistributionLength: 20},
		Channel:        indicator.ChannelConfig{Dist: 30, ThresholdPct: 1, EntryMode: indicator.EntryPlain, SLBufferPct: 2},
		STPeriod:       10,
		STMult:         1.0,
		Resolution:     50,
		PivotLookback:  10,
	}
}

func scanCandles(n int) []model.Candle {
	out := make([]model.Candle, n)
	for i := range out {
		c := 100 + 10*math.Sin(float64(i)/7)
		vol := 40 + float64(i%9)
		out[i] = model.Candle{
			Time:                int64(i) * 3_600_000,
			Open:                c - 0.2,
			High:                c + 0.5,
			Low:                 c - 0.5,
			Close:               c,
			Volume:              vol,
			QuoteVolume:         vol * c,
			TakerBuyQuoteVolume: vol * c * 0.55,
		}
	}
	return out
}

func TestComputeSnapshot_FullWindow(t *testing.T) {
	candles := scanCandles(300)
	snap := ComputeSnapshot("BTCUSDT", "1h", candles, testParams())

	if snap.Symbol != "BTCUSDT" || snap.Timeframe != "1h" {
		t.Fatalf("identity fields wrong: %+v", snap)
	}
	if snap.LastPrice != candles[299].Close || snap.LastTime != candles[299].Time {
		t.Fatalf("last price/time wrong: %+v", snap)
	}
	if len(snap.RSI) == 0 || len(snap.Trail) == 0 || len(snap.Supertrend) == 0 {
		t.Fatal("core series missing on a full window")
	}
	if snap.Profile == nil {
		t.Fatal("expected a volume profile")
	}
	if len(snap.CVD) != len(candles) {
		t.Fatalf("CVD length %d != candle count %d", len(snap.CVD), len(candles))
	}
}

func TestComputeSnapshot_ShortWindowStillProduced(t *testing.T) {
	snap := ComputeSnapshot("BTCUSDT", "1h", scanCandles(5), testParams())
	if snap.LastPrice == 0 {
		t.Fatal("short window must still carry the last price")
	}
	if len(snap.RSI) != 0 || len(snap.Trail) != 0 {
		t.Fatal("indicators below their minimum window must be empty")
	}
}

func TestComputeSnapshot_EmptyWindow(t *testing.T) {
	snap := ComputeSnapshot("BTCUSDT", "1h", nil, testParams())
	if snap == nil {
		t.Fatal("empty window must still produce a snapshot shell")
	}
	if snap.LastPrice != 0 || snap.LastTime != 0 {
		t.Fatal("empty window has no last candle")
	}
}

func TestParams_Validate(t *testing.T) {
	if err := testParams().Validate(); err != nil {
		t.Fatalf("valid params rejected: %v", err)
	}
	bad := testParams()
	bad.Trail.DataLength = 9
	if err := bad.Validate(); err == nil {
		t.Fatal("expected trail validation error")
	}
	bad = testParams()
	bad.STMult = 0
	if err := bad.Validate(); err == nil {
		t.Fatal("expected supertrend validation error")
	}
}

func oiSeries(now time.Time, hours int, step time.Duration, base, perStep float64) []model.OIPoint {
	n := int(time.Duration(hours)*time.Hour/step) + 1
	out := make([]model.OIPoint, n)
	for i := 0; i < n; i++ {
		out[i] = model.OIPoint{
			Timestamp:       now.Add(-time.Duration(n-1-i) * step).UnixMilli(),
			SumOpenInterest: base + perStep*float64(i),
		}
	}
	return out
}

func TestOIChangePct_AllWindows(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	// 9h of hourly points rising 100 per hour from 10000.
	points := oiSeries(now, 9, time.Hour, 10000, 100)

	got := OIChangePct(points, now)
	if got == nil {
		t.Fatal("expected change map")
	}
	// 1h window: from 10800 to 10900 = +0.926%.
	if v, ok := got["1h"]; !ok || math.Abs(v-100.0/10800*100) > 0.01 {
		t.Fatalf("1h change = %v (%v)", v, ok)
	}
	if v, ok := got["8h"]; !ok || math.Abs(v-800.0/10100*100) > 0.01 {
		t.Fatalf("8h change = %v (%v)", v, ok)
	}
}

func TestOIChangePct_ShortHistoryOmitsWindows(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	// Only 2h of history: 4h and 8h must be absent.
	points := oiSeries(now, 2, time.Hour, 10000, 100)

	got := OIChangePct(points, now)
	if _, ok := got["1h"]; !ok {
		t.Fatal("1h window should be computable")
	}
	if _, ok := got["4h"]; ok {
		t.Fatal("4h window must be omitted with 2h of history")
	}
	if _, ok := got["8h"]; ok {
		t.Fatal("8h window must be omitted with 2h of history")
	}
}

func TestOIChangePct_TooFewPoints(t *testing.T) {
	if got := OIChangePct([]model.OIPoint{{Timestamp: 1, SumOpenInterest: 100}}, time.Now()); got != nil {
		t.Fatal("a single point is unavailable data, not a zero change")
	}
}
