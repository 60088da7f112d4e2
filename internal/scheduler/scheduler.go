// Package scheduler walks a symbol universe in rate-limited chunks,
// running a per-symbol fetch-and-compute closure concurrently within each
// chunk and sleeping between chunks so upstream REST limits are respected.
package scheduler

import (
	"context"
	"log"
	"time"

	"market-scannerv1/internal/model"
)

// FetchFunc fetches and computes one symbol's snapshot. Returning an error
// skips the symbol without aborting its chunk siblings.
type FetchFunc func(ctx context.Context, symbol string) (*model.SymbolSnapshot, error)

// ProgressFunc is invoked after each completed chunk with the running
// result set, so a caller can push partial updates to the UI.
type ProgressFunc func(done, total int, partial []*model.SymbolSnapshot)

// Config bounds the scheduler's concurrency and pacing.
type Config struct {
	ChunkSize  int           // max symbols in flight at once
	ChunkDelay time.Duration // sleep between chunks (not after the last)
}

// Scheduler partitions symbol lists into chunks and drives FetchFunc over
// them. It is stateless between runs and safe to reuse.
type Scheduler struct {
	cfg Config
}

// New creates a scheduler. A ChunkSize below 1 is treated as 1.
func New(cfg Config) *Scheduler {
	if cfg.ChunkSize < 1 {
		cfg.ChunkSize = 1
	}
	return &Scheduler{cfg: cfg}
}

// Run processes symbols in order and returns the successful snapshots.
// Failed symbols are logged and dropped. Cancellation stops new chunks
// immediately; the in-flight chunk is awaited but its results are
// discarded, and the snapshots accumulated before it are returned.
func (s *Scheduler) Run(ctx context.Context, symbols []string, fetch FetchFunc, progress ProgressFunc) []*model.SymbolSnapshot {
	total := len(symbols)
	out := make([]*model.SymbolSnapshot, 0, total)

	for start := 0; start < total; start += s.cfg.ChunkSize {
		if ctx.Err() != nil {
			log.Printf("[scheduler] cancelled after %d/%d symbols", len(out), total)
			return out
		}

		end := start + s.cfg.ChunkSize
		if end > total {
			end = total
		}
		chunk := symbols[start:end]
		results := s.runChunk(ctx, chunk, fetch)

		// A cancellation that raced the chunk wins: the chunk's results
		// are dropped so the caller sees a consistent pre-cancel set.
		if ctx.Err() != nil {
			log.Printf("[scheduler] cancelled mid-chunk, discarding %d results", len(results))
			return out
		}
		out = append(out, results...)
		if progress != nil {
			progress(end, total, out)
		}

		if end < total && s.cfg.ChunkDelay > 0 {
			select {
			case <-ctx.Done():
				log.Printf("[scheduler] cancelled during inter-chunk delay (%d/%d done)", end, total)
				return out
			case <-time.After(s.cfg.ChunkDelay):
			}
		}
	}
	return out
}

// runChunk fans fetch out over the chunk and collects in input order.
func (s *Scheduler) runChunk(ctx context.Context, chunk []string, fetch FetchFunc) []*model.SymbolSnapshot {
	type slot struct {
		snap *model.SymbolSnapshot
		err  error
	}
	slots := make([]slot, len(chunk))
	done := make(chan int, len(chunk))

	for i, sym := range chunk {
		go func(i int, sym string) {
			snap, err := fetch(ctx, sym)
			slots[i] = slot{snap: snap, err: err}
			done <- i
		}(i, sym)
	}
	for range chunk {
		<-done
	}

	out := make([]*model.SymbolSnapshot, 0, len(chunk))
	for i, sl := range slots {
		if sl.err != nil {
			log.Printf("[scheduler] %s: skipped: %v", chunk[i], sl.err)
			continue
		}
		if sl.snap != nil {
			out = append(out, sl.snap)
		}
	}
	return out
}
