// Package api exposes the scanner's read surface over HTTP: notification
// history, unread state, and the explicit clear-log operation.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"market-scannerv1/internal/model"
)

// HistorySource reads persisted notifications.
type HistorySource interface {
	History(ctx context.Context, symbol string, limit int) ([]model.Notification, error)
	MarkRead(ctx context.Context, id string) error
}

// LogClearer wipes the alert dedup state and the notification log.
type LogClearer interface {
	ClearAll(ctx context.Context) error
}

// Deps holds the router's collaborators. Nil fields disable their routes.
type Deps struct {
	History HistorySource
	Clearer LogClearer
}

// NewRouter sets up the HTTP routes.
func NewRouter(deps Deps) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	if deps.History != nil {
		mux.HandleFunc("/api/v1/notifications", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			limit := 100
			if raw := r.URL.Query().Get("limit"); raw != "" {
				n, err := strconv.Atoi(raw)
				if err != nil || n <= 0 {
					http.Error(w, "invalid limit", http.StatusBadRequest)
					return
				}
				limit = n
			}
			items, err := deps.History.History(r.Context(), r.URL.Query().Get("symbol"), limit)
			if err != nil {
				log.Printf("[api] history query: %v", err)
				http.Error(w, "history unavailable", http.StatusInternalServerError)
				return
			}
			writeJSON(w, items)
		})

		mux.HandleFunc("/api/v1/notifications/read", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			id := r.URL.Query().Get("id")
			if id == "" {
				http.Error(w, "missing id", http.StatusBadRequest)
				return
			}
			if err := deps.History.MarkRead(r.Context(), id); err != nil {
				log.Printf("[api] mark read %s: %v", id, err)
				http.Error(w, "mark read failed", http.StatusInternalServerError)
				return
			}
			writeJSON(w, map[string]string{"status": "ok"})
		})
	}

	if deps.Clearer != nil {
		mux.HandleFunc("/api/v1/notifications/clear", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			if err := deps.Clearer.ClearAll(r.Context()); err != nil {
				log.Printf("[api] clear log: %v", err)
				http.Error(w, "clear failed", http.StatusInternalServerError)
				return
			}
			log.Println("[api] notification log and dedup state cleared")
			writeJSON(w, map[string]string{"status": "cleared"})
		})
	}

	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode response: %v", err)
	}
}
