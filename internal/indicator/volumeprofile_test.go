package indicator

import (
	"math"
	"testing"

	"market-scannerv1/internal/model"
)

func profileCandles(n int) []model.Candle {
	out := make([]model.Candle, n)
	for i := range out {
		c := 100 + 10*math.Sin(float64(i)/5)
		vol := 50 + float64(i%13)
		out[i] = model.Candle{
			Time:                int64(i) * 60_000,
			Open:                c,
			High:                c + 1,
			Low:                 c - 1,
			Close:               c,
			Volume:              vol,
			QuoteVolume:         vol * c,
			TakerBuyQuoteVolume: vol * c * 0.6,
		}
	}
	return out
}

func TestVolumeProfile_EmptyWindow(t *testing.T) {
	if got := VolumeProfile(nil, 100); got != nil {
		t.Fatal("expected nil for empty window")
	}
	if got := VolumeProfile(profileCandles(10), 0); got != nil {
		t.Fatal("expected nil for zero resolution")
	}
}

func TestVolumeProfile_VolumeConservation(t *testing.T) {
	candles := profileCandles(200)
	vp := VolumeProfile(candles, 100)
	if vp == nil {
		t.Fatal("expected profile")
	}

	wantTotal := 0.0
	for i := range candles {
		wantTotal += candles[i].Volume
	}
	gotTotal := 0.0
	for _, b := range vp.Profile {
		gotTotal += b.Volume
		// Per-bucket buy+sell must reassemble the bucket volume.
		if math.Abs(b.BuyVolume+b.SellVolume-b.Volume) > 1e-6 {
			t.Fatalf("bucket %.2f: buy+sell != volume", b.Price)
		}
	}
	if math.Abs(gotTotal-wantTotal) > 1e-6 {
		t.Fatalf("profile volume %.6f != window volume %.6f", gotTotal, wantTotal)
	}
}

func TestVolumeProfile_POCWithinValueArea(t *testing.T) {
	vp := VolumeProfile(profileCandles(200), 100)
	if vp.VAL > vp.POC || vp.POC > vp.VAH {
		t.Fatalf("expected VAL <= POC <= VAH, got %.4f / %.4f / %.4f", vp.VAL, vp.POC, vp.VAH)
	}
}

func TestVolumeProfile_ValueAreaCovers70Pct(t *testing.T) {
	vp := VolumeProfile(profileCandles(200), 100)
	total, area := 0.0, 0.0
	for _, b := range vp.Profile {
		total += b.Volume
		if b.Price >= vp.VAL && b.Price <= vp.VAH {
			area += b.Volume
		}
	}
	if area < total*valueAreaPct-1e-6 {
		t.Fatalf("value area covers %.2f%%, want >= 70%%", area/total*100)
	}
}

func TestVolumeProfile_FlatWindowSingleBucket(t *testing.T) {
	// All candles at the same price: range collapses to one bucket.
	candles := make([]model.Candle, 5)
	for i := range candles {
		candles[i] = model.Candle{Time: int64(i), Open: 50, High: 50, Low: 50, Close: 50, Volume: 10, QuoteVolume: 500, TakerBuyQuoteVolume: 250}
	}
	vp := VolumeProfile(candles, 100)
	if vp == nil {
		t.Fatal("expected profile for flat window")
	}
	if len(vp.Profile) != 1 {
		t.Fatalf("expected 1 bucket for zero price range, got %d", len(vp.Profile))
	}
	if math.Abs(vp.Profile[0].Volume-50) > 1e-9 {
		t.Fatalf("expected all volume in the single bucket, got %.4f", vp.Profile[0].Volume)
	}
}
