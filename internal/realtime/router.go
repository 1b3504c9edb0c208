// Package realtime routes order and menu events to subscribed client
// connections.
package realtime

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	catalog "github.com/dmehra2102/walkup-orders/internal/catalog/domain"
)

// Delivery is one encoded frame plus its audience. Relays ship it between
// instances unchanged.
type Delivery struct {
	Topics    []string        `json:"topics,omitempty"`
	Broadcast bool            `json:"broadcast,omitempty"`
	Frame     json.RawMessage `json:"frame"`
}

// Relay forwards local publishes to peer instances. Forward must not block.
type Relay interface {
	Forward(d Delivery)
}

type members struct {
	mu    sync.RWMutex
	conns map[string]Conn
	// dead is set once the set is emptied and unlinked from the router.
	dead bool
}

type client struct {
	conn   Conn
	topics sync.Map // topic name -> struct{}
}

// Router is the process-wide topic registry. Build one in main, hand it to
// whoever publishes or subscribes, and Close it on shutdown.
type Router struct {
	log    *slog.Logger
	relay  Relay
	now    func() time.Time
	topics sync.Map // topic name -> *members
	conns  sync.Map // conn id -> *client
	closed atomic.Bool
}

type Option func(*Router)

func WithRelay(relay Relay) Option {
	return func(r *Router) { r.relay = relay }
}

func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

func NewRouter(log *slog.Logger, opts ...Option) *Router {
	r := &Router{
		log: log,
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Router) Register(c Conn) error {
	if r.closed.Load() {
		return ErrClosed
	}
	if _, loaded := r.conns.LoadOrStore(c.ID(), &client{conn: c}); loaded {
		return fmt.Errorf("connection %s already registered", c.ID())
	}
	if r.closed.Load() {
		r.conns.Delete(c.ID())
		return ErrClosed
	}
	return nil
}

// Unregister drops c from every topic it joined.
func (r *Router) Unregister(c Conn) {
	v, ok := r.conns.LoadAndDelete(c.ID())
	if !ok {
		return
	}
	v.(*client).topics.Range(func(key, _ any) bool {
		r.removeMember(key.(string), c.ID())
		return true
	})
}

// Join adds c to t without any access check; see Gate for that.
func (r *Router) Join(c Conn, t Topic) error {
	v, ok := r.conns.Load(c.ID())
	if !ok {
		return ErrNotRegistered
	}
	cl := v.(*client)
	key := t.String()
	for {
		v, ok := r.topics.Load(key)
		if !ok {
			v, _ = r.topics.LoadOrStore(key, &members{conns: make(map[string]Conn)})
		}
		m := v.(*members)
		m.mu.Lock()
		if m.dead {
			m.mu.Unlock()
			continue
		}
		m.conns[c.ID()] = c
		m.mu.Unlock()
		break
	}
	cl.topics.Store(key, struct{}{})

	// lost a race with Unregister
	if _, still := r.conns.Load(c.ID()); !still {
		r.removeMember(key, c.ID())
		return ErrNotRegistered
	}
	return nil
}

func (r *Router) Leave(c Conn, t Topic) {
	key := t.String()
	if v, ok := r.conns.Load(c.ID()); ok {
		v.(*client).topics.Delete(key)
	}
	r.removeMember(key, c.ID())
}

func (r *Router) removeMember(key, connID string) {
	v, ok := r.topics.Load(key)
	if !ok {
		return
	}
	m := v.(*members)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conns, connID)
	if len(m.conns) == 0 && !m.dead {
		m.dead = true
		r.topics.CompareAndDelete(key, m)
	}
}

// Members reports how many connections are in t.
func (r *Router) Members(t Topic) int {
	v, ok := r.topics.Load(t.String())
	if !ok {
		return 0
	}
	m := v.(*members)
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// PublishOrderUpdate goes to the order's topic and always to staff.
func (r *Router) PublishOrderUpdate(orderID string, p OrderStatusUpdated) {
	r.publish(p, orderTopics(orderID)...)
}

func (r *Router) PublishNewOrder(p NewOrder) {
	r.publish(p, StaffTopic)
}

func (r *Router) PublishPaymentConfirmed(orderID string, p PaymentConfirmed) {
	r.publish(p, orderTopics(orderID)...)
}

// PublishMenuChange reaches every connection, subscribed or not.
func (r *Router) PublishMenuChange(kind catalog.MenuChangeKind, item catalog.Item) {
	if r.closed.Load() {
		return
	}
	frame, err := encode(MenuUpdated{Type: kind, Item: item, Timestamp: r.now()})
	if err != nil {
		r.log.Error("encode menu event", "err", err)
		return
	}
	r.dispatch(Delivery{Broadcast: true, Frame: frame})
}

func orderTopics(orderID string) []Topic {
	if orderID == "" {
		return []Topic{StaffTopic}
	}
	return []Topic{OrderTopic(orderID), StaffTopic}
}

func (r *Router) publish(p Payload, topics ...Topic) {
	if r.closed.Load() {
		return
	}
	frame, err := encode(p)
	if err != nil {
		r.log.Error("encode event", "event", p.Kind(), "err", err)
		return
	}
	names := make([]string, 0, len(topics))
	for _, t := range topics {
		names = append(names, t.String())
	}
	r.dispatch(Delivery{Topics: names, Frame: frame})
}

func (r *Router) dispatch(d Delivery) {
	r.Deliver(d)
	if r.relay != nil {
		r.relay.Forward(d)
	}
}

// Deliver fans d out to local connections only and returns how many frames
// were queued. A connection in several of d's topics gets the frame once.
func (r *Router) Deliver(d Delivery) int {
	if r.closed.Load() {
		return 0
	}
	queued := 0
	if d.Broadcast {
		r.conns.Range(func(_, v any) bool {
			if r.send(v.(*client).conn, d.Frame) {
				queued++
			}
			return true
		})
		return queued
	}

	seen := make(map[string]struct{})
	for _, key := range d.Topics {
		v, ok := r.topics.Load(key)
		if !ok {
			continue
		}
		m := v.(*members)
		m.mu.RLock()
		for id, c := range m.conns {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if r.send(c, d.Frame) {
				queued++
			}
		}
		m.mu.RUnlock()
	}
	return queued
}

func (r *Router) send(c Conn, frame []byte) bool {
	if c.Send(frame) {
		return true
	}
	r.log.Debug("frame dropped", "conn_id", c.ID())
	return false
}

// Close disconnects every client. Publishes after Close are no-ops.
func (r *Router) Close() {
	if !r.closed.CompareAndSwap(false, true) {
		return
	}
	r.conns.Range(func(key, v any) bool {
		c := v.(*client).conn
		if err := c.Close(); err != nil {
			r.log.Debug("close connection", "conn_id", c.ID(), "err", err)
		}
		r.conns.Delete(key)
		return true
	})
	r.topics.Range(func(key, _ any) bool {
		r.topics.Delete(key)
		return true
	})
	r.log.Info("realtime router closed")
}
