package indicator

import (
	"testing"

	"market-scannerv1/internal/model"
)

func TestSupertrend_ShortWindowEmpty(t *testing.T) {
	candles := seriesFromCloses(1, 2, 3)
	if got := Supertrend(candles, 10, 1.0); len(got) != 0 {
		t.Fatalf("expected empty output below period+1 candles, got %d", len(got))
	}
}

func TestSupertrend_FlatSeriesNeverFlips(t *testing.T) {
	// Constant OHLC: ATR=0, bands equal price, close never crosses them.
	candles := make([]model.Candle, 40)
	for i := range candles {
		candles[i] = model.Candle{Time: int64(i) * 60_000, Open: 100, High: 100, Low: 100, Close: 100}
	}
	st := Supertrend(candles, 10, 1.0)
	if len(st) != len(candles) {
		t.Fatalf("expected %d points, got %d", len(candles), len(st))
	}
	for i, p := range st {
		if p.Trend == 0 {
			continue // warm-up
		}
		if p.Trend != 1 {
			t.Fatalf("bar %d: flat series flipped trend to %d", i, p.Trend)
		}
	}
}

func TestSupertrend_ExposesOnlyActiveBand(t *testing.T) {
	st := Supertrend(oscillatingCandles(120), 10, 1.0)
	for i, p := range st {
		if p.Trend == 0 {
			continue
		}
		if p.Trend == 1 && (!p.UpValid || p.DnValid) {
			t.Fatalf("bar %d: uptrend must expose only the up band", i)
		}
		if p.Trend == -1 && (!p.DnValid || p.UpValid) {
			t.Fatalf("bar %d: downtrend must expose only the dn band", i)
		}
	}
}

func TestSupertrend_FlipsOnOscillation(t *testing.T) {
	st := Supertrend(oscillatingCandles(200), 10, 1.0)
	flips := 0
	for i := 1; i < len(st); i++ {
		if st[i-1].Trend != 0 && st[i].Trend != 0 && st[i-1].Trend != st[i].Trend {
			flips++
		}
	}
	if flips == 0 {
		t.Fatal("oscillating series should flip the trend at least once")
	}
}

func TestSupertrend_BandRatchet(t *testing.T) {
	st := Supertrend(oscillatingCandles(200), 10, 1.0)
	for i := 1; i < len(st); i++ {
		prev, cur := st[i-1], st[i]
		if prev.Trend != 1 || cur.Trend != 1 {
			continue
		}
		// While the uptrend persists, the support band never falls.
		if cur.Up < prev.Up-1e-9 {
			t.Fatalf("bar %d: up band loosened %.6f → %.6f", i, prev.Up, cur.Up)
		}
	}
}
