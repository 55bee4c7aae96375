// Package livereload pushes reload notifications to connected browsers
// over websockets. Each Hub is one reload channel.
package livereload

import (
	"context"
	"encoding/json"
	"net/http"
	"path"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/olivejs/ginger/internal/logging"
	"github.com/olivejs/ginger/internal/metrics"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 54 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// Message is what a browser receives.
type Message struct {
	Command string `json:"command"`
	Path    string `json:"path"`
	Channel string `json:"channel"`
}

// Commands sent to clients.
const (
	CommandReload = "reload"
	CommandCSS    = "css"
)

// Hub tracks the clients of one reload channel.
type Hub struct {
	channel string
	origins []string
	metrics metrics.Recorder
	logger  logging.Logger

	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{}

	mu      sync.RWMutex
	clients map[uuid.UUID]*client
}

type client struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(h *Hub) { h.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Recorder) Option {
	return func(h *Hub) { h.metrics = m }
}

// WithOrigins sets the host patterns allowed to connect from a browser.
func WithOrigins(patterns ...string) Option {
	return func(h *Hub) { h.origins = patterns }
}

// NewHub creates a hub for the named channel. Run must be running for
// clients to register.
func NewHub(channel string, opts ...Option) *Hub {
	h := &Hub{
		channel:    channel,
		origins:    []string{"localhost:*", "127.0.0.1:*"},
		metrics:    metrics.Nop{},
		logger:     logging.NewNopLogger(),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 16),
		done:       make(chan struct{}),
		clients:    make(map[uuid.UUID]*client),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.WithComponent("livereload").With("channel", channel)
	return h
}

// Channel returns the channel name.
func (h *Hub) Channel() string {
	return h.channel
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Reload notifies every client that path changed. Stylesheet changes
// are sent as CSS refreshes; everything else reloads the page. It has
// the signature of a debouncer callback.
func (h *Hub) Reload(p string) {
	msg := Message{Command: CommandReload, Path: p, Channel: h.channel}
	switch path.Ext(p) {
	case ".css", ".scss":
		msg.Command = CommandCSS
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.metrics.IncReload(h.channel)
	h.logger.Debug(context.Background(), "Reloading", "path", p, "command", msg.Command)
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn(context.Background(), nil, "Reload dropped, hub is busy", "path", p)
	}
}

// ServeHTTP upgrades the request and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		h.logger.Warn(r.Context(), err, "WebSocket upgrade error")
		return
	}
	conn.SetReadLimit(maxMessageSize)

	c := &client{
		id:   uuid.New(),
		conn: conn,
		send: make(chan []byte, 16),
	}

	select {
	case h.register <- c:
	case <-r.Context().Done():
		conn.Close(websocket.StatusGoingAway, "")
		return
	case <-h.done:
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	go h.writePump(c)
	h.readPump(r.Context(), c)
}

// Run processes registrations and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		h.closeAll()
	}()
	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.id] = c
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug(ctx, "Client connected", "client", c.id.String(), "total", n)

		case c := <-h.unregister:
			h.remove(c)

		case message := <-h.broadcast:
			h.mu.RLock()
			var slow []*client
			for _, c := range h.clients {
				select {
				case c.send <- message:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.RUnlock()

			for _, c := range slow {
				h.remove(c)
			}
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)
	close(c.send)
	h.logger.Debug(context.Background(), "Client disconnected", "client", c.id.String(), "total", len(h.clients))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)
	}
}

// readPump drains the connection until the peer goes away. Clients
// never send anything meaningful.
func (h *Hub) readPump(ctx context.Context, c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				h.logger.Debug(ctx, "WebSocket read ended", "client", c.id.String(), "error", err.Error())
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	ctx := context.Background()
	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
