package control

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-viewer/engine/scene"
	"github.com/gorilla/websocket"
)

const (
	pingInterval   = 30 * time.Second
	writeDeadline  = 40 * time.Second
	clientSendSize = 32
)

// Hub fans status updates out to websocket clients. New clients receive the last published status first.
// Publish has the scene.WithStatusObserver signature so the hub can be wired straight into a scene.
type Hub struct {
	mu      *sync.Mutex
	clients map[*client]struct{}
	last    []byte
	closed  bool

	upgrader websocket.Upgrader
	logger   *slog.Logger
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

// NewHub creates an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		mu:      &sync.Mutex{},
		clients: make(map[*client]struct{}),
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Publish stores st as the last status and queues it for every client.
// A client whose queue is full misses the update rather than stalling the publisher.
func (h *Hub) Publish(st scene.Status) {
	data, err := json.Marshal(st)
	if err != nil {
		h.logger.Error("[control] failed to marshal status", "error", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = data
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("[control] ws client queue full, dropping status", "remote", c.conn.RemoteAddr().String())
		}
	}
}

// Clients returns the number of connected websocket clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeWS upgrades the request and registers the connection as a status client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("[control] ws upgrade failed", "error", err)
		return
	}
	c := &client{hub: h, conn: conn, send: make(chan []byte, clientSendSize)}
	if !h.register(c) {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
		conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// Close disconnects every client. Later ServeWS calls are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		c.stop()
		delete(h.clients, c)
	}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	if h.last != nil {
		c.send <- h.last
	}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.stop()
	}
}

// stop closes the send queue; the write pump then sends a close frame and exits. Callers hold hub.mu.
func (c *client) stop() {
	c.once.Do(func() { close(c.send) })
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.hub.unregister(c)
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.hub.logger.Debug("[control] ws write msg error", "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.logger.Debug("[control] ws write ping error", "error", err)
				return
			}
		}
	}
}

// readPump discards client messages. Reading keeps control frames flowing and notices disconnects.
func (c *client) readPump() {
	defer c.hub.unregister(c)
	c.conn.SetReadLimit(4096)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
