// Package stream pushes snapshot events to websocket subscribers.
package stream

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"twab-ledger/internal/domain"
	"twab-ledger/internal/events"
	"twab-ledger/internal/observability"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// EventMessage is the wire form of a snapshot event.
type EventMessage struct {
	Account   string `json:"account"`
	Amount    string `json:"amount"` // decimal accumulator, exceeds JSON number range
	Timestamp uint32 `json:"timestamp"`
	SlotIndex int    `json:"slotIndex"`
}

// Hub fans snapshot events out to connected websocket clients. Slow
// clients have events dropped rather than stalling the rest.
type Hub struct {
	bus    *events.Bus
	logger *log.Logger

	mu      sync.Mutex
	clients map[*client]struct{}

	writeTimeout time.Duration
	pingInterval time.Duration
}

type client struct {
	conn *websocket.Conn
	send chan EventMessage
}

// NewHub creates a Hub over the given bus.
func NewHub(bus *events.Bus, logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		bus:          bus,
		logger:       logger,
		clients:      make(map[*client]struct{}),
		writeTimeout: 10 * time.Second,
		pingInterval: 30 * time.Second,
	}
}

// Run consumes bus events and broadcasts them until the context is
// cancelled.
func (h *Hub) Run(ctx context.Context) {
	ch, cancel := h.bus.Subscribe(256)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case ev, ok := <-ch:
			if !ok {
				h.closeAll()
				return
			}
			h.broadcast(ev)
		}
	}
}

// ServeHTTP upgrades the request and streams events to the client until
// it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("websocket upgrade failed: %v", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan EventMessage, 64),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	observability.DefaultMetrics.StreamClients.Inc()

	go h.writeLoop(c)
	h.readLoop(c)
}

// readLoop discards inbound frames; it exists to notice disconnects and
// answer control frames.
func (h *Hub) readLoop(c *client) {
	defer h.drop(c)
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	defer h.drop(c)

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) broadcast(ev domain.SnapshotRecorded) {
	msg := EventMessage{
		Account:   string(ev.Account),
		Amount:    ev.Snapshot.AmountOrZero().String(),
		Timestamp: ev.Snapshot.Timestamp,
		SlotIndex: ev.SlotIndex,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			observability.DefaultMetrics.StreamEventsDropped.Inc()
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		observability.DefaultMetrics.StreamClients.Dec()
	}
	h.mu.Unlock()
	c.conn.Close()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.drop(c)
	}
}
