package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/blockcache/blockcache/cache/internal/api"
	"github.com/blockcache/blockcache/cache/internal/store"
)

const (
	// writeTimeout bounds one snapshot or ping write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long a client may stay silent before its connection
	// is treated as gone.
	pongWait = 60 * time.Second

	// pingPeriod is how often clients are pinged. Must be below pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is how many snapshots may queue per client before it is
	// dropped as slow.
	sendBufSize = 16

	// maxReadBytes caps inbound frames; clients only send control frames.
	maxReadBytes = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The stream is read-only cache state; any origin may subscribe.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is the JSON envelope sent on every push.
type Message struct {
	Event string               `json:"event"`
	Data  api.SnapshotResponse `json:"data"`
}

// Hub tracks connected clients and pushes cache snapshots to them.
type Hub struct {
	store    *store.Store
	phases   api.PhaseSource
	interval time.Duration

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// client is one subscriber to the volume stream. send is closed by the hub
// exactly once, under h.mu, when the client is unregistered.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// New creates a Hub reading from st. phases may be nil.
func New(st *store.Store, phases api.PhaseSource, interval time.Duration) *Hub {
	return &Hub{
		store:    st,
		phases:   phases,
		interval: interval,
		clients:  make(map[*client]struct{}),
	}
}

// Run broadcasts every interval until ctx is cancelled, then closes every
// client connection.
func (h *Hub) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			n := h.closeAll()
			slog.Info("ws: hub stopped", "closed_clients", n)
			return
		case <-t.C:
			h.broadcast()
		}
	}
}

// ServeHTTP upgrades the connection and serves the client until it goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return // upgrader already replied
	}

	c := &client{conn: conn, send: make(chan []byte, sendBufSize)}
	if data, err := h.message(); err == nil {
		c.send <- data
	}
	h.register(c)
	defer h.unregister(c)

	go c.writePump()
	c.readPump()
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// broadcast sends under the read lock so no send can race with close(c.send);
// clients whose buffer is full are dropped afterwards.
func (h *Hub) broadcast() {
	data, err := h.message()
	if err != nil {
		slog.Error("ws: encode snapshot", "err", err)
		return
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		slog.Warn("ws: dropping slow client", "remote", c.conn.RemoteAddr().String())
		h.unregister(c)
	}
}

// message encodes the current cache view as a snapshot envelope.
func (h *Hub) message() ([]byte, error) {
	return json.Marshal(Message{
		Event: "snapshot",
		Data:  api.BuildSnapshot(h.store, h.phases),
	})
}

// closeAll unregisters every client and returns how many there were.
func (h *Hub) closeAll() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.clients)
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	return n
}

// writePump drains c.send onto the socket and pings every pingPeriod. It
// sends a close frame and returns once the hub closes c.send.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only exists to process control frames and notice disconnects.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(maxReadBytes)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
