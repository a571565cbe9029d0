// Package monitor streams live operational events to dashboard clients over
// websockets. Events carry counts and identifiers only; payload text never
// enters this package.
package monitor

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/securedocflow/securedoc-proxy/internal/config"
	"github.com/securedocflow/securedoc-proxy/internal/logger"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type client struct {
	conn *websocket.Conn
	send chan Event
}

// Hub maintains the set of connected monitoring clients and fans events out
// to them. Slow clients are dropped rather than allowed to block the hub.
type Hub struct {
	cfg        config.MonitorConfig
	logger     *logger.Logger
	broadcast  chan Event
	register   chan *client
	unregister chan *client

	mu      sync.RWMutex
	clients map[*client]bool
}

// NewHub creates a monitoring hub.
func NewHub(cfg config.MonitorConfig, log *logger.Logger) *Hub {
	return &Hub{
		cfg:        cfg,
		logger:     log,
		broadcast:  make(chan Event, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		clients:    make(map[*client]bool),
	}
}

// Run handles registration and broadcasting until the process exits.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.logger.Info("monitor client connected",
				zap.Int("active", h.clientCount()),
			)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- event:
				default:
					// Send buffer full; drop the client.
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues an event for delivery if its type is enabled. Never
// blocks: when the hub is saturated the event is dropped.
func (h *Hub) Broadcast(event Event) {
	if h == nil || !h.cfg.Enabled || !h.wants(event.Type) {
		return
	}
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("monitor broadcast channel full, dropping event",
			zap.String("event_type", string(event.Type)),
		)
	}
}

func (h *Hub) wants(t EventType) bool {
	switch t {
	case EventTypePHIDetection:
		return h.cfg.BroadcastDetections
	case EventTypeWebhook:
		return h.cfg.BroadcastWebhooks
	case EventTypeRequestLog:
		return h.cfg.BroadcastRequests
	default:
		return false
	}
}

// HandleWebSocket upgrades the connection and attaches it to the hub.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("failed to upgrade monitor connection", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan Event, 256)}
	h.register <- c

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Clients only listen; any read error or close tears the client down.
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
