package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/geom"
	"github.com/ayusman/mudra/internal/session"
)

const (
	writeWait  = 5 * time.Second
	clientSend = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// Message is one frame sent to WebSocket clients.
type Message struct {
	Type   string         `json:"type"`
	Event  *session.Event `json:"event,omitempty"`
	CardID *int           `json:"card_id,omitempty"`
	Pose   *geom.Pose     `json:"pose,omitempty"`
}

// Message types.
const (
	TypeEvent      = "event"
	TypePose       = "pose"
	TypeBurst      = "burst"
	TypeBurstClear = "burst_clear"
)

// PointerSink accepts pointer events arriving over the socket.
type PointerSink interface {
	HandlePointer(ctx context.Context, ev app.PointerEvent) error
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans session events and scene updates out to WebSocket clients. It is
// both a session.Observer and a session.Scene; every call is non-blocking and
// a client that cannot keep up loses messages instead of stalling the loop.
type Hub struct {
	logger  *slog.Logger
	mu      sync.RWMutex
	clients map[*client]struct{}
	input   PointerSink
}

var (
	_ session.Observer = (*Hub)(nil)
	_ session.Scene    = (*Hub)(nil)
)

// NewHub creates a Hub with no clients.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Hub{logger: logger, clients: make(map[*client]struct{})}
}

// SetInput routes pointer events sent by clients to sink.
func (h *Hub) SetInput(sink PointerSink) {
	h.mu.Lock()
	h.input = sink
	h.mu.Unlock()
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// OnEvent implements session.Observer.
func (h *Hub) OnEvent(e session.Event) {
	h.publish(Message{Type: TypeEvent, Event: &e})
}

// SetPose implements session.Scene.
func (h *Hub) SetPose(cardID int, pose geom.Pose) {
	h.publish(Message{Type: TypePose, CardID: &cardID, Pose: &pose})
}

// SpawnBurst implements session.Scene.
func (h *Hub) SpawnBurst(pose geom.Pose) {
	h.publish(Message{Type: TypeBurst, Pose: &pose})
}

// ClearBurst implements session.Scene.
func (h *Hub) ClearBurst() {
	h.publish(Message{Type: TypeBurstClear})
}

func (h *Hub) publish(m Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.clients) == 0 {
		return
	}

	msg, err := json.Marshal(m)
	if err != nil {
		h.logger.Error("encode websocket message", "type", m.Type, "err", err)
		return
	}
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade", "err", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientSend)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "remote", r.RemoteAddr)

	done := make(chan struct{})
	go h.writeLoop(c, done)

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		close(done)
		conn.Close()
		h.logger.Debug("websocket client disconnected", "remote", r.RemoteAddr)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		h.handleInput(r.Context(), data)
	}
}

func (h *Hub) handleInput(ctx context.Context, data []byte) {
	h.mu.RLock()
	sink := h.input
	h.mu.RUnlock()
	if sink == nil {
		return
	}

	var ev app.PointerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		h.logger.Debug("ignoring websocket message", "err", err)
		return
	}
	if err := sink.HandlePointer(ctx, ev); err != nil {
		h.logger.Debug("pointer event rejected", "err", err)
	}
}

func (h *Hub) writeLoop(c *client, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.conn.Close()
				return
			}
		}
	}
}
