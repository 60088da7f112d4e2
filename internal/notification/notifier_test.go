package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"market-scannerv1/internal/model"
)

func sampleNotification() model.Notification {
	return model.Notification{
		ID:        "BTCUSDT-1h-trail_bull_flip-1700000000000",
		Symbol:    "BTCUSDT",
		Timeframe: "1h",
		Type:      model.AlertTrailBullFlip,
		Price:     50000,
		Body:      "BTCUSDT 1h trail flipped BULLISH at 50000.00",
		Timestamp: 1_700_000_000_000,
	}
}

func TestDiscordNotifier_SendsEmbed(t *testing.T) {
	var got struct {
		Embeds []struct {
			Title string `json:"title"`
			Color int    `json:"color"`
		} `json:"embeds"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("missing json content type")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := NewDiscordNotifier(srv.URL).Send(context.Background(), sampleNotification()); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(got.Embeds) != 1 {
		t.Fatalf("expected 1 embed, got %d", len(got.Embeds))
	}
	if got.Embeds[0].Title != "BTCUSDT · 1h" {
		t.Errorf("unexpected title %q", got.Embeds[0].Title)
	}
	if got.Embeds[0].Color != colorBull {
		t.Errorf("bull flip should use the bull color, got %#x", got.Embeds[0].Color)
	}
}

func TestDiscordNotifier_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	if err := NewDiscordNotifier(srv.URL).Send(context.Background(), sampleNotification()); err == nil {
		t.Fatal("expected error for 4xx response")
	}
}

type stubNotifier struct {
	calls int
	err   error
}

func (s *stubNotifier) Send(ctx context.Context, n model.Notification) error {
	s.calls++
	return s.err
}

func TestMulti_AllSinksCalledDespiteFailure(t *testing.T) {
	bad := &stubNotifier{err: errors.New("down")}
	good := &stubNotifier{}
	m := Multi{bad, good}

	err := m.Send(context.Background(), sampleNotification())
	if err == nil {
		t.Fatal("expected first sink's error to surface")
	}
	if bad.calls != 1 || good.calls != 1 {
		t.Fatalf("expected both sinks called, got %d/%d", bad.calls, good.calls)
	}
}

func TestEscapeMarkdown(t *testing.T) {
	got := escapeMarkdown("RSI: 70.5 (1h)")
	want := `RSI: 70\.5 \(1h\)`
	if got != want {
		t.Fatalf("escapeMarkdown = %q, want %q", got, want)
	}
}
