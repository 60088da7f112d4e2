// Package sqlite keeps the durable copy of scanner output: the full
// notification history (Redis holds only a capped window) and periodic
// dedup-state snapshots used for restore when Redis comes up empty.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"market-scannerv1/internal/model"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
	keepSnapshots     = 10
)

// Config configures the SQLite store.
type Config struct {
	DBPath string // e.g. "data/scanner.db"
}

// Store is a single-writer SQLite store with transaction batching.
type Store struct {
	db *sql.DB
}

// DB returns the underlying handle for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// New opens the database in WAL mode and ensures the schema.
func New(cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS notifications (
			id        TEXT    PRIMARY KEY,
			symbol    TEXT    NOT NULL,
			timeframe TEXT    NOT NULL,
			type      TEXT    NOT NULL,
			price     REAL    NOT NULL,
			body      TEXT    NOT NULL,
			ts        INTEGER NOT NULL,
			read      INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_notifications_ts ON notifications (ts DESC);
		CREATE INDEX IF NOT EXISTS idx_notifications_symbol ON notifications (symbol, timeframe);

		CREATE TABLE IF NOT EXISTS dedup_snapshots (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			data       TEXT    NOT NULL,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);
	`)
	return err
}

// Run drains notifications from ch into batched transactions. Flushes on
// batch size or flush delay, whichever comes first, and once more on
// shutdown. Blocks until ctx is cancelled or ch is closed.
func (s *Store) Run(ctx context.Context, ch <-chan model.Notification) {
	batch := make([]model.Notification, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := s.insertBatch(batch); err != nil {
			log.Printf("[sqlite] batch insert error: %v", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case n, ok := <-ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, n)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}
		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

func (s *Store) insertBatch(batch []model.Notification) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO notifications (id, symbol, timeframe, type, price, body, ts, read)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range batch {
		n := &batch[i]
		if _, err := stmt.Exec(n.ID, n.Symbol, n.Timeframe, string(n.Type), n.Price, n.Body, n.Timestamp, boolToInt(n.Read)); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// History returns notifications newest first, optionally filtered by
// symbol ("" matches all).
func (s *Store) History(ctx context.Context, symbol string, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, symbol, timeframe, type, price, body, ts, read FROM notifications`
	args := []any{}
	if symbol != "" {
		query += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY ts DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite history query: %w", err)
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var n model.Notification
		var typ string
		var read int
		if err := rows.Scan(&n.ID, &n.Symbol, &n.Timeframe, &typ, &n.Price, &n.Body, &n.Timestamp, &read); err != nil {
			return nil, fmt.Errorf("sqlite history scan: %w", err)
		}
		n.Type = model.AlertType(typ)
		n.Read = read != 0
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead flags one notification as read.
func (s *Store) MarkRead(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE notifications SET read = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite mark read: %w", err)
	}
	return nil
}

// SaveDedupSnapshot stores one dedup blob and prunes to the newest few.
func (s *Store) SaveDedupSnapshot(blob []byte) error {
	if _, err := s.db.Exec(`INSERT INTO dedup_snapshots (data) VALUES (?)`, string(blob)); err != nil {
		return fmt.Errorf("sqlite insert snapshot: %w", err)
	}
	_, err := s.db.Exec(
		`DELETE FROM dedup_snapshots WHERE id NOT IN (SELECT id FROM dedup_snapshots ORDER BY created_at DESC, id DESC LIMIT ?)`,
		keepSnapshots,
	)
	if err != nil {
		log.Printf("[sqlite] prune snapshots warning: %v", err)
	}
	return nil
}

// LatestDedupSnapshot returns the newest stored blob, or nil when none
// exists.
func (s *Store) LatestDedupSnapshot() ([]byte, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM dedup_snapshots ORDER BY created_at DESC, id DESC LIMIT 1`).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite latest snapshot: %w", err)
	}
	return []byte(data), nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
