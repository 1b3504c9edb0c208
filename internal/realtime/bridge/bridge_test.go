package bridge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/walkup-orders/internal/identity"
	"github.com/dmehra2102/walkup-orders/internal/realtime"
	"github.com/dmehra2102/walkup-orders/pkg/logging"
)

type sinkConn struct {
	mu     sync.Mutex
	frames [][]byte
}

func (c *sinkConn) ID() string                   { return "staff-desk" }
func (c *sinkConn) Identity() *identity.Identity { return &identity.Identity{ID: "s", Role: identity.RoleStaff} }
func (c *sinkConn) Close() error                 { return nil }
func (c *sinkConn) Send(f []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, f)
	return true
}

func (c *sinkConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func TestPeerQueue_SkipsOwnFrames(t *testing.T) {
	a := newPeerQueue(logging.Discard(), "instance-a", 4)
	b := newPeerQueue(logging.Discard(), "instance-b", 4)
	d := realtime.Delivery{Topics: []string{"staff"}, Frame: []byte(`{"event":"new-order","data":{}}`)}

	a.Forward(d)
	frame := <-a.queue

	_, ok := a.accept(frame)
	assert.False(t, ok)
	got, ok := b.accept(frame)
	require.True(t, ok)
	assert.Equal(t, d.Topics, got.Topics)
	assert.JSONEq(t, string(d.Frame), string(got.Frame))

	_, ok = b.accept([]byte("garbage"))
	assert.False(t, ok)
}

func TestPeerQueue_FullQueueDrops(t *testing.T) {
	o := newPeerQueue(logging.Discard(), "a", 1)
	o.Forward(realtime.Delivery{Broadcast: true, Frame: []byte(`{}`)})
	o.Forward(realtime.Delivery{Broadcast: true, Frame: []byte(`{}`)})
	assert.Len(t, o.queue, 1)
}

func TestRedis_RelaysBetweenInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	log := logging.Discard()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	newInstance := func(origin string) (*realtime.Router, *sinkConn) {
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
		b := NewRedis(log, rdb, "realtime", origin)
		router := realtime.NewRouter(log, realtime.WithRelay(b))
		t.Cleanup(router.Close)
		go func() { _ = b.Run(ctx, router) }()

		c := &sinkConn{}
		require.NoError(t, router.Register(c))
		require.NoError(t, router.Join(c, realtime.StaffTopic))
		return router, c
	}
	routerA, connA := newInstance("a")
	_, connB := newInstance("b")

	published := 0
	require.Eventually(t, func() bool {
		routerA.PublishNewOrder(realtime.NewOrder{OrderID: "o-1"})
		published++
		return connB.count() > 0
	}, 3*time.Second, 50*time.Millisecond)

	// a's own frames come back over redis and must not be delivered twice
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, published, connA.count())
}
