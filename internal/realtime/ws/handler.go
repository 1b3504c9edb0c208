// Package ws serves the realtime router over websockets.
package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dmehra2102/walkup-orders/internal/realtime"
	"github.com/dmehra2102/walkup-orders/pkg/apperr"
)

// Control message types sent by clients.
const (
	JoinOrderRoom  = "join-order-room"
	LeaveOrderRoom = "leave-order-room"
	JoinStaffRoom  = "join-staff-room"
	LeaveStaffRoom = "leave-staff-room"
)

type control struct {
	Type    string `json:"type"`
	OrderID string `json:"orderId,omitempty"`
}

type Options struct {
	SendBuffer int
	// AllowedOrigins empty means any origin.
	AllowedOrigins []string
}

type Handler struct {
	log      *slog.Logger
	router   *realtime.Router
	gate     *realtime.Gate
	buffer   int
	upgrader websocket.Upgrader
}

func NewHandler(log *slog.Logger, router *realtime.Router, gate *realtime.Gate, opts Options) *Handler {
	h := &Handler{
		log:    log,
		router: router,
		gate:   gate,
		buffer: opts.SendBuffer,
	}
	if h.buffer <= 0 {
		h.buffer = 64
	}
	origins := opts.AllowedOrigins
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(origins) == 0 {
				return true
			}
			return slices.Contains(origins, r.Header.Get("Origin"))
		},
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ident := h.gate.Authenticate(r)

	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "err", err)
		return
	}
	c := newConn(uuid.NewString(), ident, sock, h.buffer)
	if err := h.router.Register(c); err != nil {
		h.log.Warn("register connection", "conn_id", c.id, "err", err)
		_ = c.Close()
		return
	}
	log := h.log.With("conn_id", c.id)
	if ident != nil {
		log = log.With("user_id", ident.ID, "role", ident.Role)
	}
	log.Debug("client connected")

	go c.writePump()
	h.readPump(log, c)

	h.router.Unregister(c)
	_ = c.Close()
	log.Debug("client disconnected")
}

func (h *Handler) readPump(log *slog.Logger, c *conn) {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Info("websocket read failed", "err", err)
			}
			return
		}
		var msg control
		if err := json.Unmarshal(data, &msg); err != nil {
			c.Send(errorReply(realtime.ErrInvalidTopic))
			continue
		}
		h.handle(log, c, msg)
	}
}

func (h *Handler) handle(log *slog.Logger, c *conn, msg control) {
	var (
		topic realtime.Topic
		err   error
		event string
	)
	switch msg.Type {
	case JoinOrderRoom:
		topic, event = realtime.OrderTopic(msg.OrderID), "subscribed"
		err = h.gate.Subscribe(c, topic)
	case LeaveOrderRoom:
		topic, event = realtime.OrderTopic(msg.OrderID), "unsubscribed"
		err = h.gate.Unsubscribe(c, topic)
	case JoinStaffRoom:
		topic, event = realtime.StaffTopic, "subscribed"
		err = h.gate.Subscribe(c, topic)
	case LeaveStaffRoom:
		topic, event = realtime.StaffTopic, "unsubscribed"
		err = h.gate.Unsubscribe(c, topic)
	default:
		c.Send(realtime.Reply("error", map[string]string{"code": "unknown_message", "message": "unknown message type " + msg.Type}))
		return
	}
	if err != nil {
		if errors.Is(err, realtime.ErrUnauthorized) {
			log.Info("staff room join refused")
		}
		c.Send(errorReply(err))
		return
	}
	c.Send(realtime.Reply(event, map[string]string{"topic": topic.String()}))
}

func errorReply(err error) []byte {
	msg := err.Error()
	var ae *apperr.Error
	if errors.As(err, &ae) {
		msg = ae.Message
	}
	return realtime.Reply("error", map[string]string{"code": apperr.CodeOf(err), "message": msg})
}
