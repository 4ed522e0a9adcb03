package server

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/feltnet/felt/internal/table"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

// Presence is notified when a token gains or loses its last socket.
type Presence interface {
	Disconnected(token string)
	Reconnected(token string)
}

// Hub fans push events out to WebSocket clients. It implements
// table.Broadcaster: Broadcast routes on the event's table ID, and
// SendToPlayer on the session token. A token may hold several sockets;
// delivery is best-effort and a slow client is dropped rather than
// allowed to stall the table.
type Hub struct {
	logger   *log.Logger
	presence Presence

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	byToken map[string]map[*wsClient]struct{}
}

// NewHub creates an empty hub. SetPresence must be called before clients
// attach if disconnect policy is wanted.
func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		logger:  logger.WithPrefix("hub"),
		clients: make(map[*wsClient]struct{}),
		byToken: make(map[string]map[*wsClient]struct{}),
	}
}

// SetPresence wires the disconnect policy sink. The hub and registry are
// created in sequence, so this closes the construction cycle.
func (h *Hub) SetPresence(p Presence) { h.presence = p }

// Broadcast sends the event to every socket attached to its table.
func (h *Hub) Broadcast(ev table.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.tableID == ev.TableID {
			c.trySend(ev)
		}
	}
}

// SendToPlayer sends the event to every socket held by one token.
func (h *Hub) SendToPlayer(token string, ev table.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.byToken[token] {
		c.trySend(ev)
	}
}

// Attach registers a socket for a token and starts its pumps. The first
// socket for a token clears any disconnect state.
func (h *Hub) Attach(conn *websocket.Conn, token, tableID string) {
	c := &wsClient{
		hub:     h,
		conn:    conn,
		token:   token,
		tableID: tableID,
		send:    make(chan table.Event, sendBuffer),
		done:    make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	set, ok := h.byToken[token]
	if !ok {
		set = make(map[*wsClient]struct{})
		h.byToken[token] = set
	}
	first := len(set) == 0
	set[c] = struct{}{}
	h.mu.Unlock()

	h.logger.Info("socket attached", "table", tableID, "first", first)
	if first && h.presence != nil {
		h.presence.Reconnected(token)
	}

	go c.writePump()
	go c.readPump()
}

// detach removes a socket; losing the token's last socket triggers the
// disconnect policy.
func (h *Hub) detach(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	set := h.byToken[c.token]
	delete(set, c)
	last := len(set) == 0
	if last {
		delete(h.byToken, c.token)
	}
	h.mu.Unlock()

	h.logger.Info("socket detached", "table", c.tableID, "last", last)
	if last && h.presence != nil {
		h.presence.Disconnected(c.token)
	}
}

// Forget drops all sockets for a token, used when the player leaves.
func (h *Hub) Forget(token string) {
	h.mu.Lock()
	var victims []*wsClient
	for c := range h.byToken[token] {
		victims = append(victims, c)
	}
	delete(h.byToken, token)
	for _, c := range victims {
		delete(h.clients, c)
	}
	h.mu.Unlock()

	for _, c := range victims {
		c.close()
	}
}

// Close drops every socket.
func (h *Hub) Close() {
	h.mu.Lock()
	var victims []*wsClient
	for c := range h.clients {
		victims = append(victims, c)
	}
	h.clients = make(map[*wsClient]struct{})
	h.byToken = make(map[string]map[*wsClient]struct{})
	h.mu.Unlock()

	for _, c := range victims {
		c.close()
	}
}

// wsClient is one push socket. The channel is write-only from the hub's
// point of view; the read pump exists to detect closure and answer pings.
type wsClient struct {
	hub     *Hub
	conn    *websocket.Conn
	token   string
	tableID string

	send      chan table.Event
	done      chan struct{}
	closeOnce sync.Once
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// trySend queues the event without blocking. A full buffer means the
// client cannot keep up; it is cut loose and can recover via the state
// query after reconnecting.
func (c *wsClient) trySend(ev table.Event) {
	select {
	case c.send <- ev:
	case <-c.done:
	default:
		c.hub.logger.Warn("send buffer full, dropping client", "table", c.tableID)
		c.close()
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case ev := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *wsClient) readPump() {
	defer func() {
		c.close()
		c.hub.detach(c)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// The push channel is one-way; inbound frames are drained only to
	// keep control handling alive.
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
