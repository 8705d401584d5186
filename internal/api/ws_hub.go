package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tradesim/portfolio-engine/internal/metrics"
	"github.com/tradesim/portfolio-engine/internal/portfolio"
)

const (
	wsWriteWait  = 5 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsQueueSize  = 32
)

// wsClient is one subscriber. Its writer goroutine owns every write to
// conn; the hub only ever hands it messages through send.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// WSHub fans ledger events out to every connected WebSocket client.
type WSHub struct {
	subscribe   chan *wsClient
	unsubscribe chan *wsClient
	events      chan []byte
	done        chan struct{}

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	return &WSHub{
		subscribe:   make(chan *wsClient),
		unsubscribe: make(chan *wsClient),
		events:      make(chan []byte, 256),
		done:        make(chan struct{}),
		clients:     make(map[*wsClient]struct{}),
	}
}

// Run owns the client set until ctx is done. Must be called in a goroutine.
func (h *WSHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				h.drop(c)
			}
			h.mu.Unlock()
			metrics.WebSocketClients.Set(0)
			return

		case c := <-h.subscribe:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			slog.Debug("ws client subscribed", "total", h.Clients())

		case c := <-h.unsubscribe:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				h.drop(c)
			}
			h.mu.Unlock()

		case msg := <-h.events:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// A client that cannot keep up is cut off rather than
					// allowed to stall the others.
					slog.Warn("ws client too slow, disconnecting")
					h.drop(c)
				}
			}
			h.mu.Unlock()
		}
		metrics.WebSocketClients.Set(float64(h.Clients()))
	}
}

// drop removes c; the caller holds h.mu.
func (h *WSHub) drop(c *wsClient) {
	delete(h.clients, c)
	close(c.send)
}

// Clients returns the number of connected clients.
func (h *WSHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish queues e for every connected client without blocking. It
// satisfies portfolio.Listener.
func (h *WSHub) Publish(e portfolio.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		slog.Error("ws event encode failed", "type", e.Type, "err", err)
		return
	}
	select {
	case h.events <- data:
	default:
		slog.Warn("ws event queue full, dropping event", "type", e.Type)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// HandleWS handles WebSocket upgrade requests at GET /api/v1/ws. Clients
// only listen; anything they send is discarded.
func (h *WSHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, wsQueueSize)}
	select {
	case h.subscribe <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go h.writeLoop(c)
	go h.readLoop(c)
}

func (h *WSHub) readLoop(c *wsClient) {
	defer func() {
		select {
		case h.unsubscribe <- c:
		case <-h.done:
		}
	}()

	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *WSHub) writeLoop(c *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
