package relay

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/five82/kdebridge/internal/protocol"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 64
	readLimit  = protocol.MaxFrameSize
)

// HubOptions configures a Hub.
type HubOptions struct {
	// Serialize runs fn on the goroutine that calls Broadcast, so a new
	// client is registered and greeted without missing or reordering a
	// broadcast. Nil runs fn inline.
	Serialize func(fn func()) error
	// Greeting returns the messages queued for a client before anything else.
	Greeting func() []protocol.Message
	// Inbound receives every well-formed message a client sends.
	Inbound func(origin Origin, msg protocol.Message)
	// OriginAllowed validates a browser Origin header. Requests without an
	// Origin header are always accepted.
	OriginAllowed func(origin string) bool
	Logger        *log.Logger
}

// Hub is the one-to-many channel between the bridge and its UI surfaces.
type Hub struct {
	opts     HubOptions
	logger   *log.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// Client is one attached surface.
type Client struct {
	id     string
	origin Origin
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
}

var _ Broadcaster = (*Hub)(nil)

// NewHub returns a hub with no clients.
func NewHub(opts HubOptions) *Hub {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	if opts.Serialize == nil {
		opts.Serialize = func(fn func()) error {
			fn()
			return nil
		}
	}
	h := &Hub{
		opts:    opts,
		logger:  logger,
		clients: make(map[*Client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			return opts.OriginAllowed != nil && opts.OriginAllowed(origin)
		},
	}
	return h
}

// ServeHTTP upgrades a surface connection. The surface kind comes from the
// "surface" query parameter.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	origin, err := ParseOrigin(r.URL.Query().Get("surface"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("[hub] upgrade: %v", err)
		return
	}

	c := &Client{
		id:     uuid.NewString(),
		origin: origin,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		hub:    h,
	}

	err = h.opts.Serialize(func() {
		if h.opts.Greeting != nil {
			for _, msg := range h.opts.Greeting() {
				c.enqueue(encode(msg))
			}
		}
		h.mu.Lock()
		h.clients[c] = struct{}{}
		h.mu.Unlock()
	})
	if err != nil {
		h.logger.Printf("[hub] register %s: %v", c.id, err)
		_ = conn.Close()
		return
	}

	h.logger.Printf("[hub] %s attached as %s", c.id, origin)
	go c.writePump()
	go c.readPump()
}

// Broadcast queues msg for every client. Clients whose buffer is full miss
// the message rather than stall the sender.
func (h *Hub) Broadcast(msg protocol.Message) {
	payload := encode(msg)
	if payload == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.enqueue(payload)
	}
}

// Count returns the number of attached clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.logger.Printf("[hub] %s detached", c.id)
	}
}

// enqueue must be called with the hub lock held, or before the client is
// registered, so it never races with close(c.send).
func (c *Client) enqueue(payload []byte) {
	if payload == nil {
		return
	}
	select {
	case c.send <- payload:
	default:
		c.hub.logger.Printf("[hub] %s: send buffer full, dropping message", c.id)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Printf("[hub] %s: %v", c.id, err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.hub.logger.Printf("[hub] %s: parse message: %v", c.id, err)
			continue
		}
		if c.hub.opts.Inbound != nil {
			c.hub.opts.Inbound(c.origin, msg)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func encode(msg protocol.Message) []byte {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil
	}
	return payload
}
