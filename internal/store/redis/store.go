// Package redis persists the scanner's shared state: the alert dedup blob,
// the capped notification log, latest snapshots, and the pubsub channel the
// dashboard subscribes to for live display updates.
package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"market-scannerv1/internal/model"
)

const (
	dedupStateKey   = "scanner:alert:dedup"
	notificationKey = "scanner:notifications"
	snapshotPrefix  = "scanner:snapshot:"
	DisplayChannel  = "scanner:display"

	snapshotTTL = 30 * time.Minute
)

// Config configures the Redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int

	// NotificationCap bounds the persisted log length (default 500).
	NotificationCap int64
}

// Store is the Redis-backed persistence layer.
type Store struct {
	client *goredis.Client
	cap    int64
}

// New connects and pings the server.
func New(cfg Config) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	log.Printf("[redis] connected to %s", cfg.Addr)

	if cfg.NotificationCap <= 0 {
		cfg.NotificationCap = 500
	}
	return &Store{client: client, cap: cfg.NotificationCap}, nil
}

// Client exposes the underlying client for health checks.
func (s *Store) Client() *goredis.Client { return s.client }

// LoadDedupState reads the opaque dedup blob. A missing key returns nil
// without error so a fresh deployment starts clean.
func (s *Store) LoadDedupState(ctx context.Context) ([]byte, error) {
	data, err := s.client.Get(ctx, dedupStateKey).Bytes()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET %s: %w", dedupStateKey, err)
	}
	return data, nil
}

// SaveDedupState overwrites the dedup blob. No TTL: dedup must survive
// arbitrary downtime or restarts would re-fire old alerts.
func (s *Store) SaveDedupState(ctx context.Context, blob []byte) error {
	if err := s.client.Set(ctx, dedupStateKey, blob, 0).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", dedupStateKey, err)
	}
	return nil
}

// AppendNotification pushes onto the capped log (newest first) and
// publishes to the display channel, all in one pipeline.
func (s *Store) AppendNotification(ctx context.Context, n model.Notification) error {
	payload := n.JSON()
	pipe := s.client.Pipeline()
	pipe.LPush(ctx, notificationKey, payload)
	pipe.LTrim(ctx, notificationKey, 0, s.cap-1)
	pipe.Publish(ctx, DisplayChannel, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis notification pipeline: %w", err)
	}
	return nil
}

// RecentNotifications returns up to limit entries, newest first.
func (s *Store) RecentNotifications(ctx context.Context, limit int64) ([]model.Notification, error) {
	if limit <= 0 || limit > s.cap {
		limit = s.cap
	}
	rows, err := s.client.LRange(ctx, notificationKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis LRANGE %s: %w", notificationKey, err)
	}
	out := make([]model.Notification, 0, len(rows))
	for _, row := range rows {
		n, err := model.NotificationFromJSON([]byte(row))
		if err != nil {
			log.Printf("[redis] skipping corrupt notification entry: %v", err)
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// ClearNotifications drops the persisted log.
func (s *Store) ClearNotifications(ctx context.Context) error {
	if err := s.client.Del(ctx, notificationKey).Err(); err != nil {
		return fmt.Errorf("redis DEL %s: %w", notificationKey, err)
	}
	return nil
}

// SaveSnapshot stores the latest snapshot for a symbol/timeframe with a
// TTL, so stale pairs age out when removed from the universe.
func (s *Store) SaveSnapshot(ctx context.Context, snap *model.SymbolSnapshot) error {
	payload := snap.JSON()
	key := snapshotPrefix + snap.Key()
	if err := s.client.Set(ctx, key, payload, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", key, err)
	}
	return nil
}

// PublishDisplay pushes one display payload (price batch, scan progress)
// to subscribers. Fire and forget: a miss only delays visibility.
func (s *Store) PublishDisplay(ctx context.Context, payload []byte) error {
	if err := s.client.Publish(ctx, DisplayChannel, payload).Err(); err != nil {
		return fmt.Errorf("redis PUBLISH %s: %w", DisplayChannel, err)
	}
	return nil
}

// SubscribeDisplay returns a subscription on the display channel. The
// caller owns closing it.
func (s *Store) SubscribeDisplay(ctx context.Context) *goredis.PubSub {
	return s.client.Subscribe(ctx, DisplayChannel)
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}
