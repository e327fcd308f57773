// Package networking fans replay notifications out to WebSocket subscribers and
// reports whether a network session is live.
package networking

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"parkrep/core/internal/logging"
	"parkrep/core/internal/replay"
)

const (
	defaultPingInterval = 30 * time.Second
	defaultSendBuffer   = 256
	writeWait           = 10 * time.Second
	maxInboundBytes     = 4096
)

// Envelope is the frame every subscriber receives.
type Envelope struct {
	Type     string `json:"type"`
	Protocol string `json:"protocol"`
	Data     any    `json:"data,omitempty"`
	Error    string `json:"error,omitempty"`
}

type request struct {
	Type string `json:"type"`
}

type client struct {
	conn    *websocket.Conn
	send    chan []byte
	id      string
	limiter *SlidingWindowLimiter
}

// Option customises a Hub.
type Option func(*Hub)

// WithAuthenticator gates upgrades behind authenticator.
func WithAuthenticator(authenticator Authenticator) Option {
	return func(h *Hub) {
		if authenticator != nil {
			h.auth = authenticator
		}
	}
}

// WithAllowedOrigins restricts browser origins. An empty list allows every origin.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Hub) { h.origins = append([]string(nil), origins...) }
}

// WithPingInterval sets the keepalive cadence. Subscribers that stay silent for two
// intervals are dropped.
func WithPingInterval(interval time.Duration) Option {
	return func(h *Hub) {
		if interval > 0 {
			h.ping = interval
		}
	}
}

// WithInboundLimit caps subscriber requests to limit per window.
func WithInboundLimit(window time.Duration, limit int) Option {
	return func(h *Hub) {
		h.limitWindow = window
		h.limit = limit
	}
}

// WithStatus answers "status" requests with the value source returns.
func WithStatus(source func() any) Option {
	return func(h *Hub) { h.status = source }
}

// WithLogger sets the hub logger.
func WithLogger(logger *logging.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// Hub tracks WebSocket subscribers and broadcasts to them.
type Hub struct {
	lock    sync.Mutex
	clients map[*client]struct{}
	closed  bool

	upgrader    websocket.Upgrader
	auth        Authenticator
	origins     []string
	ping        time.Duration
	limitWindow time.Duration
	limit       int
	status      func() any
	logger      *logging.Logger
}

// NewHub builds a hub with the given options.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients:     make(map[*client]struct{}),
		auth:        AllowAll(),
		ping:        defaultPingInterval,
		limitWindow: time.Second,
		limit:       20,
		logger:      logging.L(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.origins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.origins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// Clients reports how many subscribers are connected.
func (h *Hub) Clients() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return len(h.clients)
}

// Notify broadcasts a replay notification to every subscriber.
func (h *Hub) Notify(n replay.Notification) {
	if err := h.Broadcast(Envelope{Type: "notification", Data: n}); err != nil {
		h.logger.Warn("notification dropped", logging.String("kind", string(n.Kind)), logging.Error(err))
	}
}

// Broadcast sends env to every subscriber. Subscribers whose buffers are full are
// disconnected.
func (h *Hub) Broadcast(env Envelope) error {
	env.Protocol = ProtocolVersion
	msg, err := json.Marshal(env)
	if err != nil {
		return err
	}
	h.lock.Lock()
	defer h.lock.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("subscriber too slow, disconnecting", logging.String("client", c.id))
			h.removeLocked(c)
		}
	}
	return nil
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) remove(c *client) {
	h.lock.Lock()
	h.removeLocked(c)
	h.lock.Unlock()
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}

// ServeHTTP upgrades the request and serves the subscriber until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	//1.- Authenticate before upgrading so rejected peers get a plain HTTP status.
	id, err := h.auth.Authenticate(r)
	if err != nil {
		h.logger.Warn("websocket authentication failed", logging.String("remote", r.RemoteAddr), logging.Error(err))
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	h.lock.Lock()
	closed := h.closed
	h.lock.Unlock()
	if closed {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", logging.String("remote", r.RemoteAddr), logging.Error(err))
		return
	}
	c := &client{
		conn:    conn,
		send:    make(chan []byte, defaultSendBuffer),
		id:      id,
		limiter: NewSlidingWindowLimiter(h.limitWindow, h.limit, nil),
	}

	//2.- Register unless Close raced with the upgrade.
	h.lock.Lock()
	if h.closed {
		h.lock.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.lock.Unlock()
	h.logger.Debug("subscriber connected", logging.String("client", id))

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
		h.logger.Debug("subscriber disconnected", logging.String("client", c.id))
	}()
	c.conn.SetReadLimit(maxInboundBytes)
	deadline := 2 * h.ping
	_ = c.conn.SetReadDeadline(time.Now().Add(deadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(deadline))
	})
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("subscriber read failed", logging.String("client", c.id), logging.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(deadline))
		h.reply(c, h.answer(c, msg))
	}
}

// answer builds the response to one subscriber request.
func (h *Hub) answer(c *client, msg []byte) Envelope {
	if ok, _ := c.limiter.Allow(); !ok {
		return Envelope{Type: "error", Error: "rate limited"}
	}
	var req request
	if err := json.Unmarshal(msg, &req); err != nil {
		return Envelope{Type: "error", Error: "malformed request"}
	}
	switch req.Type {
	case "ping":
		return Envelope{Type: "pong"}
	case "status":
		if h.status == nil {
			return Envelope{Type: "error", Error: "status unavailable"}
		}
		return Envelope{Type: "status", Data: h.status()}
	default:
		return Envelope{Type: "error", Error: "unknown request " + req.Type}
	}
}

func (h *Hub) reply(c *client, env Envelope) {
	env.Protocol = ProtocolVersion
	msg, err := json.Marshal(env)
	if err != nil {
		return
	}
	h.lock.Lock()
	defer h.lock.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
		h.removeLocked(c)
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(h.ping)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
