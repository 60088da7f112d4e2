// Package alert decides which indicator flip events are new and turns them
// into notifications, deduplicating repeated firings through a persisted
// key→timestamp map.
package alert

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Cooldown is the minimum spacing between firings of a state-keyed alert.
// Event-keyed alerts (key embeds the candle timestamp) have no cooldown:
// they fire at most once per distinct event, ever.
const Cooldown = time.Hour

// DedupState maps composite alert keys to the epoch-ms time they last
// fired. Entries are monotonic — timestamps only move forward — and are
// never removed except by Clear. Safe for concurrent use; during a run
// the in-memory map is the single source of truth.
type DedupState struct {
	mu    sync.RWMutex
	fired map[string]int64
}

// NewDedupState creates an empty dedup state.
func NewDedupState() *DedupState {
	return &DedupState{fired: make(map[string]int64, 256)}
}

// Load replaces the state with the JSON blob contents. A corrupt blob
// returns an error and leaves the state empty: the caller logs a warning
// and continues, degrading to "no dedup across restarts" rather than failing.
func (s *DedupState) Load(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fired = make(map[string]int64, 256)
	if len(data) == 0 {
		return nil
	}
	var m map[string]int64
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("dedup state: unmarshal: %w", err)
	}
	s.fired = m
	return nil
}

// JSON serializes the state as an opaque key→timestamp object.
func (s *DedupState) JSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.Marshal(s.fired)
}

// FiredAt returns when the key last fired.
func (s *DedupState) FiredAt(key string) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ts, ok := s.fired[key]
	return ts, ok
}

// MarkFired records a firing at ts. Returns false without modifying the
// entry when the key already holds an equal or later timestamp.
func (s *DedupState) MarkFired(key string, ts int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.fired[key]; ok && prev >= ts {
		return false
	}
	s.fired[key] = ts
	return true
}

// Clear drops every entry (the explicit "clear log" operation).
func (s *DedupState) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fired = make(map[string]int64, 256)
}

// Len returns the number of tracked keys.
func (s *DedupState) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.fired)
}
