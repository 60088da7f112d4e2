package queue

import (
	"sync"

	"market-scannerv1/internal/model"
)

// Log is a capped ring of delivered notifications, read most-recent-first.
// When full, the oldest entry is overwritten. Capacity is rounded up to a
// power of two so the cursor wraps with a bitwise mask.
type Log struct {
	mu   sync.RWMutex
	buf  []model.Notification
	mask uint64
	head uint64 // total appends; buf[(head-1)&mask] is the newest entry
}

// NewLog creates a notification log. Minimum capacity is 2.
func NewLog(capacity int) *Log {
	n := nextPow2(capacity)
	if n < 2 {
		n = 2
	}
	return &Log{
		buf:  make([]model.Notification, n),
		mask: uint64(n - 1),
	}
}

// Append records a notification, evicting the oldest when full.
func (l *Log) Append(n model.Notification) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf[l.head&l.mask] = n
	l.head++
}

// Recent returns up to limit notifications, newest first. limit <= 0
// returns everything retained.
func (l *Log) Recent(limit int) []model.Notification {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := l.size()
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]model.Notification, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, l.buf[(l.head-1-uint64(i))&l.mask])
	}
	return out
}

// MarkRead flags the entry with the given ID as read.
func (l *Log) MarkRead(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := l.size()
	for i := 0; i < n; i++ {
		idx := (l.head - 1 - uint64(i)) & l.mask
		if l.buf[idx].ID == id {
			l.buf[idx].Read = true
			return true
		}
	}
	return false
}

// Len returns the number of retained entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size()
}

// size assumes the caller holds the mutex.
func (l *Log) size() int {
	if l.head < uint64(len(l.buf)) {
		return int(l.head)
	}
	return len(l.buf)
}

// Clear drops every retained entry.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.head = 0
}

// nextPow2 returns the smallest power of 2 >= n.
func nextPow2(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
