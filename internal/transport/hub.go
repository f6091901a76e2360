// Package transport implements the websocket consumer boundary (§6
// "RegisterConsumer" / "PollSignals") that overlays and UIs attach to.
// The core pipeline never blocks on a slow consumer (§5 "Consumer
// isolation"): each connection gets a bounded channel, and a full channel
// drops the oldest buffered snapshot rather than stalling the sender
// (newest-wins backpressure).
//
// Grounded on the teacher's Hub/Client websocket relay
// (cmd/web-demo/main.go): same register/unregister/broadcast channel
// triad and per-client buffered send channel, generalized from a
// best-effort drop-newest broadcast to the spec's drop-oldest
// (newest-wins) policy and from a raw []byte broadcast to typed signal
// batches marshaled as JSON per message.
package transport

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/baras-app/baras/internal/signal"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Consumer is one registered websocket connection.
type Consumer struct {
	id   string
	conn *websocket.Conn
	send chan []signal.Signal
}

// Hub relays signal batches to every registered Consumer.
type Hub struct {
	logger *zap.Logger

	mu        sync.RWMutex
	consumers map[*Consumer]bool

	register   chan *Consumer
	unregister chan *Consumer
	broadcast  chan []signal.Signal

	bufferSize int
}

// NewHub creates a Hub whose per-consumer channel holds bufferSize
// pending batches before newest-wins backpressure kicks in
// (config.TransportConfig.ConsumerBuffer).
func NewHub(bufferSize int, logger *zap.Logger) *Hub {
	return &Hub{
		logger:     logger,
		consumers:  make(map[*Consumer]bool),
		register:   make(chan *Consumer),
		unregister: make(chan *Consumer),
		broadcast:  make(chan []signal.Signal, 256),
		bufferSize: bufferSize,
	}
}

// Run drives the hub's event loop; call it in its own goroutine for the
// lifetime of the process.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.consumers[c] = true
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Info("consumer registered", zap.String("consumer", c.id))
			}

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.consumers[c]; ok {
				delete(h.consumers, c)
				close(c.send)
			}
			h.mu.Unlock()

		case batch := <-h.broadcast:
			h.mu.RLock()
			for c := range h.consumers {
				deliver(c.send, batch)
			}
			h.mu.RUnlock()
		}
	}
}

// deliver pushes batch onto ch, dropping the oldest queued batch first if
// ch is full (newest-wins, §5 "channel backpressure drops the oldest
// snapshot for a given overlay ... rather than stalling the pipeline").
func deliver(ch chan []signal.Signal, batch []signal.Signal) {
	for {
		select {
		case ch <- batch:
			return
		default:
		}
		select {
		case <-ch:
		default:
			return
		}
	}
}

// PollSignals enqueues one signal batch for every registered consumer.
// The core pipeline calls this after each event's signal set is produced
// and never waits for it to drain.
func (h *Hub) PollSignals(batch []signal.Signal) {
	if len(batch) == 0 {
		return
	}
	select {
	case h.broadcast <- batch:
	default:
		if h.logger != nil {
			h.logger.Warn("transport broadcast queue full, dropping batch")
		}
	}
}

// ServeWS upgrades an HTTP request to a websocket connection and
// registers it as a Consumer (§6 "RegisterConsumer").
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.logger != nil {
			h.logger.Warn("websocket upgrade failed", zap.Error(err))
		}
		return
	}

	c := &Consumer{id: r.RemoteAddr, conn: conn, send: make(chan []signal.Signal, h.bufferSize)}
	h.register <- c

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) writePump(c *Consumer) {
	defer c.conn.Close()
	for batch := range c.send {
		data, err := json.Marshal(batch)
		if err != nil {
			continue
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

// readPump drains and discards inbound frames solely to detect
// disconnects; consumers never send commands over this boundary.
func (h *Hub) readPump(c *Consumer) {
	defer func() { h.unregister <- c }()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
