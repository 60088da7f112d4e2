package redis

import (
	"context"
	"log"
	"sync"

	"market-scannerv1/internal/model"
)

// BufferedStore wraps a Store with a circuit breaker. While Redis is down
// the breaker is open and writes are parked in memory, then replayed when
// the breaker closes. Notifications are never dropped below the buffer
// cap; a full buffer evicts oldest first.
type BufferedStore struct {
	store *Store
	cb    *CircuitBreaker
	ctx   context.Context

	mu            sync.Mutex
	notifications []model.Notification
	snapshots     map[string]*model.SymbolSnapshot // keyed by snap.Key(), latest wins
	maxBuf        int

	// Metrics hooks.
	OnBuffer func()
	OnFlush  func(count int)
}

// NewBufferedStore wraps the store. maxBuffer <= 0 defaults to 1000.
func NewBufferedStore(ctx context.Context, store *Store, cb *CircuitBreaker, maxBuffer int) *BufferedStore {
	if maxBuffer <= 0 {
		maxBuffer = 1000
	}
	bs := &BufferedStore{
		store:     store,
		cb:        cb,
		ctx:       ctx,
		snapshots: make(map[string]*model.SymbolSnapshot),
		maxBuf:    maxBuffer,
	}

	prev := cb.OnStateChange
	cb.OnStateChange = func(from, to State) {
		if prev != nil {
			prev(from, to)
		}
		if to == StateClosed {
			go bs.flush()
		}
	}
	return bs
}

// AppendNotification writes through the breaker, buffering on open.
func (bs *BufferedStore) AppendNotification(n model.Notification) error {
	err := bs.cb.Execute(func() error {
		return bs.store.AppendNotification(bs.ctx, n)
	})
	if err == ErrCircuitOpen {
		bs.bufferNotification(n)
		return nil
	}
	return err
}

// SaveSnapshot writes through the breaker. Buffered snapshots collapse to
// the latest per symbol/timeframe since older ones are worthless.
func (bs *BufferedStore) SaveSnapshot(snap *model.SymbolSnapshot) error {
	err := bs.cb.Execute(func() error {
		return bs.store.SaveSnapshot(bs.ctx, snap)
	})
	if err == ErrCircuitOpen {
		bs.mu.Lock()
		bs.snapshots[snap.Key()] = snap
		bs.mu.Unlock()
		if bs.OnBuffer != nil {
			bs.OnBuffer()
		}
		return nil
	}
	return err
}

// SaveDedupState writes through the breaker. Dedup state is not buffered:
// the in-memory map is authoritative and the next periodic save retries.
func (bs *BufferedStore) SaveDedupState(blob []byte) error {
	return bs.cb.Execute(func() error {
		return bs.store.SaveDedupState(bs.ctx, blob)
	})
}

func (bs *BufferedStore) bufferNotification(n model.Notification) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	if len(bs.notifications) >= bs.maxBuf {
		bs.notifications = bs.notifications[1:]
	}
	bs.notifications = append(bs.notifications, n)
	if bs.OnBuffer != nil {
		bs.OnBuffer()
	}
}

// flush replays buffered writes after the breaker closes.
func (bs *BufferedStore) flush() {
	bs.mu.Lock()
	notifications := bs.notifications
	snapshots := bs.snapshots
	bs.notifications = nil
	bs.snapshots = make(map[string]*model.SymbolSnapshot)
	bs.mu.Unlock()

	if len(notifications) == 0 && len(snapshots) == 0 {
		return
	}
	flushed := 0
	for i := range notifications {
		if err := bs.store.AppendNotification(bs.ctx, notifications[i]); err != nil {
			log.Printf("[buffered-store] replay notification: %v", err)
			continue
		}
		flushed++
	}
	for _, snap := range snapshots {
		if err := bs.store.SaveSnapshot(bs.ctx, snap); err != nil {
			log.Printf("[buffered-store] replay snapshot %s: %v", snap.Key(), err)
			continue
		}
		flushed++
	}
	log.Printf("[buffered-store] flushed %d buffered writes", flushed)
	if bs.OnFlush != nil {
		bs.OnFlush(flushed)
	}
}

// PendingCount returns how many writes await replay.
func (bs *BufferedStore) PendingCount() int {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	return len(bs.notifications) + len(bs.snapshots)
}

// Underlying returns the wrapped store for read paths.
func (bs *BufferedStore) Underlying() *Store {
	return bs.store
}
