package alert

import (
	"sync"
	"testing"
)

func TestDedupState_MarkFiredMonotonic(t *testing.T) {
	s := NewDedupState()
	if !s.MarkFired("k", 100) {
		t.Fatal("first mark must succeed")
	}
	if s.MarkFired("k", 100) {
		t.Fatal("equal timestamp must be rejected")
	}
	if s.MarkFired("k", 50) {
		t.Fatal("older timestamp must be rejected")
	}
	if !s.MarkFired("k", 200) {
		t.Fatal("newer timestamp must succeed")
	}
	if ts, ok := s.FiredAt("k"); !ok || ts != 200 {
		t.Fatalf("expected 200, got %d (%v)", ts, ok)
	}
}

func TestDedupState_RoundTrip(t *testing.T) {
	s := NewDedupState()
	s.MarkFired("BTCUSDT-1h-bull-flip-1700000000000", 1_700_000_100_000)
	s.MarkFired("ETHUSDT-4h-rsi_overbought", 1_700_000_200_000)

	blob, err := s.JSON()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	restored := NewDedupState()
	if err := restored.Load(blob); err != nil {
		t.Fatalf("load: %v", err)
	}
	if restored.Len() != 2 {
		t.Fatalf("expected 2 keys after restore, got %d", restored.Len())
	}
	if ts, ok := restored.FiredAt("BTCUSDT-1h-bull-flip-1700000000000"); !ok || ts != 1_700_000_100_000 {
		t.Fatalf("restored timestamp wrong: %d (%v)", ts, ok)
	}
}

func TestDedupState_LoadCorruptLeavesEmpty(t *testing.T) {
	s := NewDedupState()
	s.MarkFired("k", 1)
	if err := s.Load([]byte("{not json")); err == nil {
		t.Fatal("expected error for corrupt blob")
	}
	if s.Len() != 0 {
		t.Fatalf("corrupt load must leave state empty, got %d keys", s.Len())
	}
}

func TestDedupState_LoadEmptyBlob(t *testing.T) {
	s := NewDedupState()
	if err := s.Load(nil); err != nil {
		t.Fatalf("empty blob should load cleanly: %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("expected empty state, got %d keys", s.Len())
	}
}

func TestDedupState_Clear(t *testing.T) {
	s := NewDedupState()
	s.MarkFired("a", 1)
	s.MarkFired("b", 2)
	s.Clear()
	if s.Len() != 0 {
		t.Fatalf("expected 0 keys after clear, got %d", s.Len())
	}
	if !s.MarkFired("a", 1) {
		t.Fatal("cleared key must be markable again")
	}
}

func TestDedupState_ConcurrentAccess(t *testing.T) {
	s := NewDedupState()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				s.MarkFired("shared", int64(g*1000+i))
				s.FiredAt("shared")
			}
		}(g)
	}
	wg.Wait()
	if ts, ok := s.FiredAt("shared"); !ok || ts != 7099 {
		t.Fatalf("expected highest timestamp 7099 to win, got %d (%v)", ts, ok)
	}
}
