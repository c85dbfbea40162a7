package web

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"carbonex.market/cmx/internal/ledger"
)

const (
	// writeWait bounds a single websocket write.
	writeWait = 10 * time.Second

	// clientBuffer is the number of blocks queued per subscriber before it
	// starts missing notifications.
	clientBuffer = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// EventMessage is a marketplace event as sent to subscribers.
type EventMessage struct {
	Name    string          `json:"name"`
	TxID    string          `json:"tx_id"`
	Payload json.RawMessage `json:"payload"`
}

// BlockMessage carries the events of one committed block.
type BlockMessage struct {
	Height int64          `json:"height"`
	Events []EventMessage `json:"events"`
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	filter string // event name, empty for all
}

// Hub fans committed marketplace events out to websocket subscribers. It
// implements abci.Notifier.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Notify sends the events committed at height to every subscriber. Slow
// subscribers miss the block rather than stall the committer.
func (h *Hub) Notify(height int64, events []ledger.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cache := make(map[string][]byte)
	for c := range h.clients {
		data, ok := cache[c.filter]
		if !ok {
			data = encodeBlock(height, events, c.filter)
			cache[c.filter] = data
		}
		if data == nil {
			continue
		}
		select {
		case c.send <- data:
		default:
			log.Warnf("Subscriber %s is not keeping up, dropped block %d", c.conn.RemoteAddr(), height)
		}
	}
}

// encodeBlock encodes the events matching filter, or returns nil when none
// match.
func encodeBlock(height int64, events []ledger.Event, filter string) []byte {
	msg := BlockMessage{Height: height}
	for _, e := range events {
		if filter != "" && e.Name != filter {
			continue
		}
		msg.Events = append(msg.Events, EventMessage{Name: e.Name, TxID: e.TxID, Payload: e.Payload})
	}
	if len(msg.Events) == 0 {
		return nil
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Failed to encode block %d: %v", height, err)
		return nil
	}
	return data
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// ServeWS upgrades the request and streams committed blocks until either
// side disconnects. The optional event query parameter restricts the stream
// to one event name.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debugf("WebSocket upgrade failed: %v", err)
		return
	}

	c := &client{
		conn:   conn,
		send:   make(chan []byte, clientBuffer),
		filter: r.URL.Query().Get("event"),
	}
	if !h.register(c) {
		conn.Close()
		return
	}
	log.Debugf("Subscriber %s connected", conn.RemoteAddr())

	go h.readLoop(c)
	h.writeLoop(c)
}

// readLoop discards client messages and unregisters the client once the
// connection fails.
func (h *Hub) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.unregister(c)
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.unregister(c)
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
}
