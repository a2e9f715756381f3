package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tptpredict/artifact"
	"tptpredict/logger"
)

type EventType string

const EventArtifactsReloaded EventType = "artifacts_reloaded"

// Event is pushed to every connected page.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
	ID        string          `json:"id"`
}

type reloadData struct {
	Features        int      `json:"features"`
	Classes         []string `json:"classes"`
	ClassesFallback bool     `json:"classes_fallback"`
}

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
	sendBuffer   = 16
)

type client struct {
	conn *websocket.Conn
	send chan []byte
	id   string
}

// EventHub fans artifact events out to websocket clients so open form pages
// can refresh after a reload.
type EventHub struct {
	mu       sync.RWMutex
	clients  map[*client]bool
	upgrader websocket.Upgrader
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewEventHub() *EventHub {
	ctx, cancel := context.WithCancel(context.Background())
	return &EventHub{
		clients: make(map[*client]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// ArtifactsReloaded broadcasts a reload of a.
func (h *EventHub) ArtifactsReloaded(a *artifact.Artifacts) {
	data, err := json.Marshal(reloadData{
		Features:        len(a.FeatureNames),
		Classes:         a.Classes,
		ClassesFallback: a.ClassesFallback,
	})
	if err != nil {
		logger.Warnw("encode reload event failed", "error", err)
		return
	}
	h.Broadcast(Event{Type: EventArtifactsReloaded, Timestamp: time.Now(), Data: data})
}

// Broadcast sends ev to every client. Clients whose buffer is full are
// dropped.
func (h *EventHub) Broadcast(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		logger.Warnw("encode event failed", "error", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.removeLocked(c)
		}
	}
}

// Clients returns the number of connected clients.
func (h *EventHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop disconnects every client.
func (h *EventHub) Stop() {
	h.cancel()
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *EventHub) removeLocked(c *client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *EventHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.ctx.Err() != nil {
		http.Error(w, "event hub stopped", http.StatusServiceUnavailable)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnw("websocket upgrade failed", "error", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer), id: uuid.NewString()}

	h.mu.Lock()
	h.clients[c] = true
	total := len(h.clients)
	h.mu.Unlock()
	logger.Debugw("event client connected", "client", c.id, "total", total)

	go c.writePump()
	go c.readPump(h)
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Debugw("websocket write failed", "client", c.id, "error", err)
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

// readPump discards client messages and unregisters on disconnect.
func (c *client) readPump(h *EventHub) {
	defer func() {
		h.mu.Lock()
		h.removeLocked(c)
		h.mu.Unlock()
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debugw("websocket read failed", "client", c.id, "error", err)
			}
			return
		}
	}
}
