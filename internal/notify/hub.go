package notify

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/danielpatrickdp/focusguard/go-engine/internal/alert"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

// #region message

// Message is the envelope for everything pushed to websocket clients.
type Message struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	ClientID  string      `json:"client_id,omitempty"`
	SessionID string      `json:"session_id,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// EventName maps an alert kind to its client-facing event type.
func EventName(kind alert.Kind) string {
	return string(kind) + "_event"
}

// #endregion message

// #region hub

type client struct {
	id      string
	session string // empty receives every session
	conn    *websocket.Conn
	send    chan []byte
}

// Hub fans alert events out to connected websocket clients.
type Hub struct {
	upgrader websocket.Upgrader
	log      logrus.FieldLogger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

func NewHub(log logrus.FieldLogger) *Hub {
	if log == nil {
		quiet := logrus.New()
		quiet.SetOutput(io.Discard)
		log = quiet
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log:     log,
		clients: make(map[*client]struct{}),
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request. The optional "session" query parameter
// restricts delivery to alerts of that session.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &client{
		id:      uuid.New().String(),
		session: r.URL.Query().Get("session"),
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.WithFields(logrus.Fields{"client": c.id, "session": c.session}).Info("websocket client connected")

	go h.writePump(c)
	go h.readPump(c)

	h.deliver(c, Message{Type: "welcome", ClientID: c.id, SessionID: c.session, Timestamp: time.Now().Unix()})
}

// unregister removes c and closes its send channel exactly once.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.log.WithField("client", c.id).Info("websocket client disconnected")
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

// #endregion hub

// #region pumps

func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.WithError(err).WithField("client", c.id).Warn("websocket read failed")
			}
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			h.log.WithError(err).WithField("client", c.id).Debug("ignoring malformed client message")
			continue
		}
		if msg.Type == "ping" {
			h.deliver(c, Message{Type: "pong", ClientID: c.id, Timestamp: time.Now().Unix()})
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// #endregion pumps

// #region broadcast

// deliver queues msg for one client without blocking.
func (h *Hub) deliver(c *client, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.WithError(err).Error("encode websocket message")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		h.log.WithField("client", c.id).Debug("client send buffer full, dropping message")
	}
}

// Broadcast queues msg for every client subscribed to msg.SessionID.
// Slow clients lose messages; Broadcast never blocks. It returns the number
// of clients the message was queued for.
func (h *Hub) Broadcast(msg Message) int {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.WithError(err).Error("encode websocket message")
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	queued := 0
	for c := range h.clients {
		if c.session != "" && c.session != msg.SessionID {
			continue
		}
		select {
		case c.send <- data:
			queued++
		default:
			h.log.WithField("client", c.id).Debug("client send buffer full, dropping message")
		}
	}
	return queued
}

// HandleAlert is an alert.Hook pushing the alert to subscribed clients.
func (h *Hub) HandleAlert(_ context.Context, a alert.Alert) error {
	h.Broadcast(Message{
		Type:      EventName(a.Kind),
		Payload:   a,
		SessionID: a.SessionID,
		Timestamp: a.FiredAt.Unix(),
	})
	return nil
}

// #endregion broadcast
