// Package notification delivers scanner alerts to external sinks
// (Discord webhook, Telegram). Delivery is fire-and-forget: a failed send
// is logged and counted, never retried here — the notification is already
// persisted, retries belong to the sink if anywhere.
package notification

import (
	"context"
	"log"

	"market-scannerv1/internal/model"
)

// Notifier is the alert sink contract.
type Notifier interface {
	Send(ctx context.Context, n model.Notification) error
}

// LogNotifier writes alerts to the process log (development default).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (l *LogNotifier) Send(ctx context.Context, n model.Notification) error {
	log.Printf("[notify] [%s] %s", n.Type, n.Body)
	return nil
}

// Multi fans one notification out to several sinks. Each sink's failure
// is independent; the first error is returned after all sends complete.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, n model.Notification) error {
	var first error
	for _, sink := range m {
		if err := sink.Send(ctx, n); err != nil {
			log.Printf("[notify] sink error: %v", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}
