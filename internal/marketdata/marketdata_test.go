package marketdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMEXC_FetchCandles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/klines" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("interval"); got != "60m" {
			t.Errorf("1h should map to 60m, got %s", got)
		}
		// Full Binance-shaped row with taker-buy columns.
		w.Write([]byte(`[
			[1700000000000,"100","110","90","105","1000",1700003599999,"100000",500,"600","60000","0"],
			[1700003600000,"105","112","101","110","800",1700007199999,"85000",400,"300","32000","0"]
		]`))
	}))
	defer srv.Close()

	m := NewMEXC(srv.URL)
	candles, err := m.FetchCandles(context.Background(), "BTCUSDT", "1h", 2)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}
	c := candles[0]
	if c.Time != 1700000000000 || c.Open != 100 || c.High != 110 || c.Low != 90 || c.Close != 105 {
		t.Fatalf("first candle OHLC wrong: %+v", c)
	}
	if c.QuoteVolume != 100000 || c.TakerBuyQuoteVolume != 60000 {
		t.Fatalf("quote/taker columns wrong: %+v", c)
	}
	if candles[1].Time <= candles[0].Time {
		t.Fatal("candles must be oldest first")
	}
}

func TestMEXC_ShortRowsGetBalancedTakerSplit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 8-column row: no taker-buy data.
		w.Write([]byte(`[[1700000000000,"100","110","90","105","1000",1700003599999,"100000"]]`))
	}))
	defer srv.Close()

	candles, err := NewMEXC(srv.URL).FetchCandles(context.Background(), "BTCUSDT", "1h", 1)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if candles[0].TakerBuyQuoteVolume != 50000 {
		t.Fatalf("expected 50%% buy split for rows without taker columns, got %.0f", candles[0].TakerBuyQuoteVolume)
	}
}

func TestMEXC_UnsupportedInterval(t *testing.T) {
	if _, err := NewMEXC("http://unused").FetchCandles(context.Background(), "BTCUSDT", "7h", 10); err == nil {
		t.Fatal("expected error for unknown interval")
	}
}

func TestMEXC_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewMEXC(srv.URL).FetchCandles(context.Background(), "BTCUSDT", "1h", 10)
	if !errors.Is(err, ErrBadStatus) {
		t.Fatalf("expected ErrBadStatus, got %v", err)
	}
}

func TestBybit_FetchCandlesReversesList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("interval"); got != "240" {
			t.Errorf("4h should map to 240, got %s", got)
		}
		// Bybit returns newest first.
		w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"list":[
			["1700003600000","105","112","101","110","800","85000"],
			["1700000000000","100","110","90","105","1000","100000"]
		]}}`))
	}))
	defer srv.Close()

	candles, err := NewBybit(srv.URL).FetchCandles(context.Background(), "BTCUSDT", "4h", 2)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(candles) != 2 || candles[0].Time != 1700000000000 || candles[1].Time != 1700003600000 {
		t.Fatalf("expected oldest-first after reversal, got %+v", candles)
	}
	if candles[0].TakerBuyQuoteVolume != 50000 {
		t.Fatalf("expected balanced taker split, got %.0f", candles[0].TakerBuyQuoteVolume)
	}
}

func TestBybit_RetCodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"retCode":10001,"retMsg":"params error","result":{}}`))
	}))
	defer srv.Close()

	if _, err := NewBybit(srv.URL).FetchCandles(context.Background(), "BTCUSDT", "1h", 10); err == nil {
		t.Fatal("expected error for non-zero retCode")
	}
}

func TestBybit_OpenInterestHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v5/market/open-interest" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"list":[
			{"openInterest":"5200.5","timestamp":"1700003600000"},
			{"openInterest":"5000.0","timestamp":"1700000000000"}
		]}}`))
	}))
	defer srv.Close()

	points, err := NewBybit(srv.URL).FetchOpenInterestHistory(context.Background(), "BTCUSDT", "1h", 2)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if points[0].Timestamp != 1700000000000 || points[0].SumOpenInterest != 5000 {
		t.Fatalf("expected oldest first, got %+v", points[0])
	}
}

func TestBybit_OpenInterestShortHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"list":[{"openInterest":"5000","timestamp":"1700000000000"}]}}`))
	}))
	defer srv.Close()

	_, err := NewBybit(srv.URL).FetchOpenInterestHistory(context.Background(), "BTCUSDT", "1h", 10)
	if !errors.Is(err, ErrShortHistory) {
		t.Fatalf("expected ErrShortHistory, got %v", err)
	}
}

func TestParseTickerMessage(t *testing.T) {
	tick, ok := parseTickerMessage([]byte(`{"topic":"tickers.BTCUSDT","ts":1700000000123,"data":{"symbol":"BTCUSDT","lastPrice":"50123.5"}}`))
	if !ok {
		t.Fatal("expected a ticker")
	}
	if tick.Symbol != "BTCUSDT" || tick.Price != 50123.5 || tick.Time != 1700000000123 {
		t.Fatalf("unexpected ticker %+v", tick)
	}

	// Subscription ack has no data payload.
	if _, ok := parseTickerMessage([]byte(`{"success":true,"op":"subscribe"}`)); ok {
		t.Fatal("ack must not parse as a ticker")
	}
	// Delta push without a price change omits lastPrice.
	if _, ok := parseTickerMessage([]byte(`{"topic":"tickers.BTCUSDT","ts":1,"data":{"symbol":"BTCUSDT"}}`)); ok {
		t.Fatal("priceless delta must be skipped")
	}
}
