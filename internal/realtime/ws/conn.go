package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmehra2102/walkup-orders/internal/identity"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// conn adapts a websocket to realtime.Conn. All writes happen on the
// writePump goroutine; Send only queues.
type conn struct {
	id    string
	ident *identity.Identity
	ws    *websocket.Conn
	send  chan []byte
	done  chan struct{}
	once  sync.Once
}

func newConn(id string, ident *identity.Identity, ws *websocket.Conn, buffer int) *conn {
	return &conn{
		id:    id,
		ident: ident,
		ws:    ws,
		send:  make(chan []byte, buffer),
		done:  make(chan struct{}),
	}
}

func (c *conn) ID() string                   { return c.id }
func (c *conn) Identity() *identity.Identity { return c.ident }

func (c *conn) Send(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *conn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
		err = c.ws.Close()
	})
	return err
}

func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				_ = c.Close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}
		}
	}
}
