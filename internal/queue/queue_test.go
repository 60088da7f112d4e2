package queue

import (
	"testing"

	"market-scannerv1/internal/model"
)

func note(id, tf string) model.Notification {
	return model.Notification{ID: id, Symbol: "BTCUSDT", Timeframe: tf, Type: model.AlertTrailBullFlip}
}

func TestQueue_FIFOWithinTimeframe(t *testing.T) {
	q := New([]string{"1h"})
	q.Enqueue(note("a", "1h"))
	q.Enqueue(note("b", "1h"))

	n, ok := q.DequeueNext()
	if !ok || n.ID != "a" {
		t.Fatalf("expected a first, got %v ok=%v", n.ID, ok)
	}
	q.Release()
	n, ok = q.DequeueNext()
	if !ok || n.ID != "b" {
		t.Fatalf("expected b second, got %v ok=%v", n.ID, ok)
	}
}

func TestQueue_SingleActiveSlot(t *testing.T) {
	q := New([]string{"1h"})
	q.Enqueue(note("a", "1h"))
	q.Enqueue(note("b", "1h"))

	if _, ok := q.DequeueNext(); !ok {
		t.Fatal("first dequeue should fill the active slot")
	}
	if _, ok := q.DequeueNext(); ok {
		t.Fatal("dequeue with an occupied active slot must refuse")
	}
	if active, ok := q.Active(); !ok || active.ID != "a" {
		t.Fatalf("expected active a, got %v ok=%v", active.ID, ok)
	}
	q.Release()
	if n, ok := q.DequeueNext(); !ok || n.ID != "b" {
		t.Fatalf("expected b after release, got %v ok=%v", n.ID, ok)
	}
}

func TestQueue_FirstNonEmptyOrder(t *testing.T) {
	// First-available policy: 5m drains completely before 1d is touched,
	// even when 1d enqueued earlier.
	q := New([]string{"5m", "1h", "1d"})
	q.Enqueue(note("slow", "1d"))
	q.Enqueue(note("fast1", "5m"))
	q.Enqueue(note("fast2", "5m"))

	var got []string
	for {
		n, ok := q.DequeueNext()
		if !ok {
			break
		}
		got = append(got, n.ID)
		q.Release()
	}
	want := []string{"fast1", "fast2", "slow"}
	if len(got) != len(want) {
		t.Fatalf("drained %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("drained %v, want %v", got, want)
		}
	}
}

func TestQueue_UnknownTimeframeAppended(t *testing.T) {
	q := New([]string{"1h"})
	q.Enqueue(note("x", "6h"))
	if n, ok := q.DequeueNext(); !ok || n.ID != "x" {
		t.Fatalf("unknown timeframe should still drain, got %v ok=%v", n.ID, ok)
	}
}

func TestQueue_Pending(t *testing.T) {
	q := New([]string{"5m", "1h"})
	q.Enqueue(note("a", "5m"))
	q.Enqueue(note("b", "5m"))
	q.Enqueue(note("c", "1h"))
	if q.Pending() != 3 {
		t.Fatalf("expected 3 pending, got %d", q.Pending())
	}
	if q.PendingFor("5m") != 2 {
		t.Fatalf("expected 2 pending on 5m, got %d", q.PendingFor("5m"))
	}
	q.DequeueNext()
	// The active item no longer counts as pending.
	if q.Pending() != 2 {
		t.Fatalf("expected 2 pending after dequeue, got %d", q.Pending())
	}
}

func TestQueue_EmptyDequeue(t *testing.T) {
	q := New([]string{"1h"})
	if _, ok := q.DequeueNext(); ok {
		t.Fatal("empty queue must not dequeue")
	}
}
