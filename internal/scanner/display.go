package scanner

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"market-scannerv1/internal/marketdata"
)

const displayFlushInterval = 750 * time.Millisecond

// displayBatch is the payload published to the display channel.
type displayBatch struct {
	Kind   string             `json:"kind"` // "prices" or "progress"
	Prices map[string]float64 `json:"prices,omitempty"`
	Done   int                `json:"done,omitempty"`
	Total  int                `json:"total,omitempty"`
	TS     int64              `json:"ts"`
}

// displayPublisher is the sink the batcher flushes to.
type displayPublisher interface {
	PublishDisplay(ctx context.Context, payload []byte) error
}

// DisplayBatcher coalesces live ticker updates for ~750ms and publishes
// them as one batch. Batching is best-effort: a lost window delays
// visibility, it never corrupts anything, so failures are only logged.
type DisplayBatcher struct {
	pub displayPublisher

	mu      sync.Mutex
	pending map[string]float64
}

// NewDisplayBatcher creates a batcher over the publisher.
func NewDisplayBatcher(pub displayPublisher) *DisplayBatcher {
	return &DisplayBatcher{
		pub:     pub,
		pending: make(map[string]float64),
	}
}

// Run drains tickers from in and flushes on the batching interval.
// Blocks until ctx is cancelled.
func (b *DisplayBatcher) Run(ctx context.Context, in <-chan marketdata.Ticker) {
	ticker := time.NewTicker(displayFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-in:
			if !ok {
				return
			}
			b.mu.Lock()
			b.pending[t.Symbol] = t.Price
			b.mu.Unlock()
		case <-ticker.C:
			b.flush(ctx)
		}
	}
}

// PublishProgress pushes a scan-progress update immediately, outside the
// price batching window.
func (b *DisplayBatcher) PublishProgress(ctx context.Context, done, total int) {
	payload, _ := json.Marshal(displayBatch{
		Kind:  "progress",
		Done:  done,
		Total: total,
		TS:    time.Now().UnixMilli(),
	})
	if err := b.pub.PublishDisplay(ctx, payload); err != nil {
		log.Printf("[display] progress publish: %v", err)
	}
}

func (b *DisplayBatcher) flush(ctx context.Context) {
	b.mu.Lock()
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return
	}
	prices := b.pending
	b.pending = make(map[string]float64)
	b.mu.Unlock()

	payload, _ := json.Marshal(displayBatch{
		Kind:   "prices",
		Prices: prices,
		TS:     time.Now().UnixMilli(),
	})
	if err := b.pub.PublishDisplay(ctx, payload); err != nil {
		log.Printf("[display] price batch publish: %v", err)
	}
}
