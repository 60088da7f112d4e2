// Package gateway fans the scanner's display stream out to websocket
// clients. The scanner publishes coalesced price batches and scan
// progress on a single Redis pubsub channel; the hub relays each payload
// to every connected dashboard and replays the latest state on connect.
package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// Hub manages websocket clients and the Redis pubsub relay.
type Hub struct {
	rdb     *goredis.Client
	channel string

	mu      sync.RWMutex
	clients map[*Client]bool
	latest  map[string]latestEntry
	seq     int64
}

// latest is keyed by payload kind ("prices", "progress") so a fresh
// client gets one of each, not a replay of the whole stream.
type latestEntry struct {
	Data json.RawMessage
	TS   time.Time
}

// NewHub creates a hub relaying the given pubsub channel.
func NewHub(rdb *goredis.Client, channel string) *Hub {
	return &Hub{
		rdb:     rdb,
		channel: channel,
		clients: make(map[*Client]bool),
		latest:  make(map[string]latestEntry),
	}
}

// Run subscribes to the display channel and relays every payload.
// Blocks until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, h.channel)
	defer pubsub.Close()

	log.Printf("[displaygw] subscribed to %s", h.channel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.Broadcast([]byte(msg.Payload))
		}
	}
}

// Broadcast wraps one display payload in an envelope and sends it to
// every client. Slow clients are skipped, not waited on.
func (h *Hub) Broadcast(data []byte) {
	now := time.Now().UTC()

	var kinded struct {
		Kind string `json:"kind"`
	}
	json.Unmarshal(data, &kinded)

	h.mu.Lock()
	if kinded.Kind != "" {
		h.latest[kinded.Kind] = latestEntry{Data: data, TS: now}
	}
	h.seq++
	seq := h.seq
	h.mu.Unlock()

	envelope, err := json.Marshal(map[string]interface{}{
		"data": json.RawMessage(data),
		"ts":   now.Format(time.RFC3339Nano),
		"seq":  seq,
	})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- envelope:
		default:
		}
	}
}

// HandleWS upgrades the request and registers the client.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[displaygw] ws upgrade: %v", err)
		return
	}

	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
	}
	conn.EnableWriteCompression(true)

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	log.Printf("[displaygw] ws client connected (%d total)", count)

	go client.sendInitialState()
	go client.writePump()
	go client.readPump()
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// LatestAll returns the most recent payload per kind.
func (h *Hub) LatestAll() map[string]json.RawMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cp := make(map[string]json.RawMessage, len(h.latest))
	for k, v := range h.latest {
		cp[k] = v.Data
	}
	return cp
}
