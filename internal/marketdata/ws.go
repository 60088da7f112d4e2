package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	bybitWSURL     = "wss://stream.bybit.com/v5/public/linear"
	wsPingInterval = 20 * time.Second
	wsReadTimeout  = 60 * time.Second
	wsMaxBackoff   = 30 * time.Second
)

// Ticker is one live last-price update from the stream.
type Ticker struct {
	Symbol string
	Price  float64
	Time   int64 // epoch ms
}

// TickerStream maintains a public-stream subscription for live last
// prices. It feeds the display path only; candle fetches never depend on
// it, so a dropped or stale stream degrades freshness, not correctness.
type TickerStream struct {
	url     string
	symbols []string

	// OnReconnect is an optional metrics hook.
	OnReconnect func()
}

// NewTickerStream creates a stream for the given symbols. An empty url
// falls back to the public endpoint.
func NewTickerStream(url string, symbols []string) *TickerStream {
	if url == "" {
		url = bybitWSURL
	}
	return &TickerStream{url: url, symbols: symbols}
}

// Start connects and pushes updates into out until ctx is cancelled,
// reconnecting with capped exponential backoff on any failure. A full out
// channel drops the update; tickers are superseded by the next one anyway.
func (s *TickerStream) Start(ctx context.Context, out chan<- Ticker) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		err := s.runConn(ctx, out)
		if ctx.Err() != nil {
			return
		}
		log.Printf("[ws] connection lost: %v — reconnecting in %v", err, backoff)
		if s.OnReconnect != nil {
			s.OnReconnect()
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > wsMaxBackoff {
			backoff = wsMaxBackoff
		}
	}
}

func (s *TickerStream) runConn(ctx context.Context, out chan<- Ticker) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.url, err)
	}
	defer conn.Close()

	args := make([]string, 0, len(s.symbols))
	for _, sym := range s.symbols {
		args = append(args, "tickers."+sym)
	}
	sub := map[string]any{"op": "subscribe", "args": args}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	log.Printf("[ws] connected, subscribed %d symbols", len(s.symbols))

	// Close the conn when ctx dies so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	go s.pingLoop(ctx, conn)

	for {
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		tick, ok := parseTickerMessage(msg)
		if !ok {
			continue
		}
		select {
		case out <- tick:
		default:
		}
	}
}

func (s *TickerStream) pingLoop(ctx context.Context, conn *websocket.Conn) {
	t := time.NewTicker(wsPingInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := conn.WriteJSON(map[string]string{"op": "ping"}); err != nil {
				return
			}
		}
	}
}

// parseTickerMessage extracts a last-price update from a v5 ticker push.
// Ops acks, pongs, and partial snapshots without a price are skipped.
func parseTickerMessage(msg []byte) (Ticker, bool) {
	var push struct {
		Topic string `json:"topic"`
		TS    int64  `json:"ts"`
		Data  struct {
			Symbol    string `json:"symbol"`
			LastPrice string `json:"lastPrice"`
		} `json:"data"`
	}
	if err := json.Unmarshal(msg, &push); err != nil {
		return Ticker{}, false
	}
	if push.Data.Symbol == "" || push.Data.LastPrice == "" {
		return Ticker{}, false
	}
	return Ticker{
		Symbol: push.Data.Symbol,
		Price:  parseF(push.Data.LastPrice),
		Time:   push.TS,
	}, true
}
