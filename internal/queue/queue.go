// Package queue serializes notification delivery. Alerts land in
// per-timeframe FIFO queues and drain through a single active slot, so the
// consumer (webhook sender, UI toast) sees one notification at a time.
package queue

import (
	"sync"

	"market-scannerv1/internal/model"
)

// Queue holds per-timeframe FIFOs and the single active slot. The refill
// policy is first-non-empty in the configured timeframe order — not
// round-robin. A busy fast timeframe can starve a slow one; this is a
// deliberate simplicity trade-off, acceptable because alert volume is low.
type Queue struct {
	mu     sync.Mutex
	order  []string
	queues map[string][]model.Notification
	active *model.Notification
}

// New creates a queue draining timeframes in the given order. Timeframes
// seen later in Enqueue but absent here are appended to the end of the
// drain order as they appear.
func New(timeframes []string) *Queue {
	q := &Queue{
		order:  make([]string, 0, len(timeframes)),
		queues: make(map[string][]model.Notification, len(timeframes)),
	}
	for _, tf := range timeframes {
		q.order = append(q.order, tf)
		q.queues[tf] = nil
	}
	return q
}

// Enqueue appends the notification to its timeframe's FIFO.
func (q *Queue) Enqueue(n model.Notification) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.queues[n.Timeframe]; !ok {
		q.order = append(q.order, n.Timeframe)
	}
	q.queues[n.Timeframe] = append(q.queues[n.Timeframe], n)
}

// DequeueNext fills the active slot from the first non-empty timeframe
// queue and returns the notification. It returns false when the active
// slot is still occupied or every queue is empty.
func (q *Queue) DequeueNext() (model.Notification, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.active != nil {
		return model.Notification{}, false
	}
	for _, tf := range q.order {
		pending := q.queues[tf]
		if len(pending) == 0 {
			continue
		}
		n := pending[0]
		q.queues[tf] = pending[1:]
		q.active = &n
		return n, true
	}
	return model.Notification{}, false
}

// Active returns the currently-active notification, if any.
func (q *Queue) Active() (model.Notification, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.active == nil {
		return model.Notification{}, false
	}
	return *q.active, true
}

// Release clears the active slot so the next DequeueNext can refill it.
func (q *Queue) Release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.active = nil
}

// Pending returns the total number of queued (not active) notifications.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, pending := range q.queues {
		n += len(pending)
	}
	return n
}

// PendingFor returns the backlog length of one timeframe's queue.
func (q *Queue) PendingFor(tf string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queues[tf])
}
