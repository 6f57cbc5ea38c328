package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-gpio/internal/gpio"
	"github.com/nerrad567/gray-logic-gpio/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-gpio/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-gpio/internal/observer"
	"github.com/nerrad567/gray-logic-gpio/internal/wire"
)

// Message types exchanged over the websocket.
const (
	WSTypePinSend   = "pin:send"
	WSTypePinToggle = "pin:toggle"
	WSTypeResponse  = "response"
	WSTypeError     = "error"
	WSTypePing      = "ping"
	WSTypePong      = "pong"
)

// Outbound frames queued per client. A client that falls this far behind
// misses announcements.
const wsQueueDepth = 256

// WSMessage is the envelope for every frame the server writes.
type WSMessage struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// wsInbound defers payload decoding until the type is known.
type wsInbound struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type reportFunc func(ctx context.Context, r gpio.Report) (gpio.Edge, error)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Hub fans announcements out to websocket clients and forwards their
// pin:toggle frames to the runtime as reports.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger
	report reportFunc

	// ctx parents every client context; cancelled by Run on shutdown.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	clients map[*wsClient]struct{}

	// lanes applies toggles for one pin in arrival order across clients.
	lanes observer.Lanes
}

// NewHub returns a hub that hands client reports to report. Zero limits
// in cfg take the defaults used by config.Load.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger, report reportFunc) *Hub {
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 8192
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = 10
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		report:  report,
		ctx:     ctx,
		cancel:  cancel,
		clients: make(map[*wsClient]struct{}),
	}
}

// Run waits for ctx and then drops every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.cancel()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*wsClient]struct{})
	h.mu.Unlock()

	// Each write pump flushes its queue and closes its connection.
	for c := range clients {
		c.cancel()
	}
}

// Announce sends a pin:send frame to every connected client.
func (h *Hub) Announce(a gpio.Announcement) error {
	frame, err := json.Marshal(WSMessage{Type: WSTypePinSend, Payload: wire.FromAnnouncement(a)})
	if err != nil {
		return fmt.Errorf("encoding announcement for pin %d: %w", a.Pin, err)
	}

	h.mu.RLock()
	targets := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(frame)
	}
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	c.cancel()
	h.logger.Debug("websocket client disconnected", "clients", n)
}

func (h *Hub) pongWait() time.Duration {
	return time.Duration(h.cfg.PongTimeout) * time.Second
}

func (h *Hub) pingEvery() time.Duration {
	return time.Duration(h.cfg.PingInterval) * time.Second
}

// wsClient is one websocket connection. Its context ends when either
// pump exits or the hub shuts down; in-flight reports are abandoned then.
type wsClient struct {
	hub   *Hub
	conn  *websocket.Conn
	queue chan []byte

	ctx    context.Context
	cancel context.CancelFunc
}

// handleWebSocket upgrades the request, queues the current state of
// every pin, then starts the client's pumps.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(s.hub.ctx)
	c := &wsClient{
		hub:    s.hub,
		conn:   conn,
		queue:  make(chan []byte, wsQueueDepth),
		ctx:    ctx,
		cancel: cancel,
	}

	s.hub.add(c)
	for _, info := range s.runtime.Snapshot() {
		c.reply(WSMessage{Type: WSTypePinSend, Payload: wire.PinState{
			Pin:      info.Number,
			State:    info.State,
			Mode:     info.Mode.String(),
			Resistor: info.Resistor.String(),
		}})
	}

	go c.writeLoop()
	go c.readLoop()
}

func (c *wsClient) readLoop() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	deadline := c.hub.pingEvery() + c.hub.pongWait()
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(deadline)) }

	c.conn.SetReadLimit(int64(c.hub.cfg.MaxMessageSize))
	extend() //nolint:errcheck // read fails later if this did
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		extend() //nolint:errcheck // read fails later if this did
		c.handle(data)
	}
}

func (c *wsClient) writeLoop() {
	ping := time.NewTicker(c.hub.pingEvery())
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		c.conn.SetWriteDeadline(time.Now().Add(c.hub.pongWait())) //nolint:errcheck // surfaced by the write
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case <-c.ctx.Done():
			c.flush(write)
			write(websocket.CloseMessage, nil) //nolint:errcheck // connection is going away
			return
		case frame := <-c.queue:
			if err := write(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ping.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// flush writes whatever is already queued.
func (c *wsClient) flush(write func(int, []byte) error) {
	for {
		select {
		case frame := <-c.queue:
			if write(websocket.TextMessage, frame) != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *wsClient) handle(data []byte) {
	var msg wsInbound
	if err := json.Unmarshal(data, &msg); err != nil {
		c.fail("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypePinToggle:
		c.toggle(msg)
	case WSTypePing:
		c.reply(WSMessage{Type: WSTypePong, ID: msg.ID})
	default:
		c.fail(msg.ID, "unknown message type: "+msg.Type)
	}
}

// toggle reports a level change on behalf of the client. The runtime can
// take up to its stale timeout to answer, so it runs off the read loop on
// the pin's lane.
func (c *wsClient) toggle(msg wsInbound) {
	var cmd wire.Command
	if err := json.Unmarshal(msg.Payload, &cmd); err != nil {
		c.fail(msg.ID, "invalid pin:toggle payload")
		return
	}
	if cmd.Pin < 1 {
		c.fail(msg.ID, "pin:toggle requires a positive pin")
		return
	}
	report, err := cmd.Report(cmd.Pin)
	if err != nil {
		c.fail(msg.ID, err.Error())
		return
	}

	id := msg.ID
	if id == "" {
		id = cmd.ID
	}

	c.hub.lanes.Submit(report.Pin, func() {
		edge, err := c.hub.report(c.ctx, report)
		if err != nil {
			c.hub.logger.Warn("websocket report not applied", "pin", report.Pin, "error", err)
		}
		c.reply(WSMessage{Type: WSTypeResponse, ID: id, Payload: wire.NewAck(id, report.Pin, edge, err)})
	})
}

// enqueue drops frame when the client is gone or its queue is full.
func (c *wsClient) enqueue(frame []byte) {
	select {
	case <-c.ctx.Done():
	case c.queue <- frame:
	default:
	}
}

func (c *wsClient) reply(msg WSMessage) {
	frame, err := json.Marshal(msg)
	if err != nil {
		c.hub.logger.Error("encoding websocket frame", "type", msg.Type, "error", err)
		return
	}
	c.enqueue(frame)
}

func (c *wsClient) fail(id, message string) {
	c.reply(WSMessage{Type: WSTypeError, ID: id, Payload: map[string]string{"message": message}})
}
