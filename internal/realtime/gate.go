package realtime

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dmehra2102/walkup-orders/internal/identity"
)

// Capability decides whether id may join the topic with the given key.
type Capability func(id *identity.Identity, key string) error

// OrderCapability admits anyone who knows the order id.
func OrderCapability(_ *identity.Identity, orderID string) error {
	if strings.TrimSpace(orderID) == "" {
		return ErrInvalidTopic
	}
	return nil
}

func StaffCapability(id *identity.Identity, _ string) error {
	if !id.IsStaff() {
		return ErrUnauthorized
	}
	return nil
}

// Gate authenticates handshakes and checks each subscription against the
// capability registered for its topic kind.
type Gate struct {
	log      *slog.Logger
	router   *Router
	verifier identity.Verifier
	caps     map[TopicKind]Capability
}

// NewGate accepts a nil verifier, in which case every connection is anonymous.
func NewGate(log *slog.Logger, router *Router, verifier identity.Verifier) *Gate {
	return &Gate{
		log:      log,
		router:   router,
		verifier: verifier,
		caps: map[TopicKind]Capability{
			TopicOrder: OrderCapability,
			TopicStaff: StaffCapability,
		},
	}
}

// Authenticate never rejects: a bad token demotes the caller to anonymous.
func (g *Gate) Authenticate(r *http.Request) *identity.Identity {
	if g.verifier == nil {
		return nil
	}
	id, err := identity.Resolve(r, g.verifier)
	if err != nil {
		g.log.Info("handshake token rejected, continuing anonymous", "err", err)
		return nil
	}
	return id
}

func (g *Gate) Subscribe(c Conn, t Topic) error {
	allow, ok := g.caps[t.Kind]
	if !ok {
		return ErrInvalidTopic
	}
	if err := allow(c.Identity(), t.Key); err != nil {
		return err
	}
	return g.router.Join(c, t)
}

func (g *Gate) Unsubscribe(c Conn, t Topic) error {
	if _, ok := g.caps[t.Kind]; !ok {
		return ErrInvalidTopic
	}
	if t.Kind == TopicOrder && strings.TrimSpace(t.Key) == "" {
		return ErrInvalidTopic
	}
	g.router.Leave(c, t)
	return nil
}

func (g *Gate) SubscribeOrder(c Conn, orderID string) error {
	return g.Subscribe(c, OrderTopic(orderID))
}

func (g *Gate) SubscribeStaff(c Conn) error {
	return g.Subscribe(c, StaffTopic)
}
