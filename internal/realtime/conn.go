package realtime

import "github.com/dmehra2102/walkup-orders/internal/identity"

// Conn is one client connection as the router sees it. Send must not block:
// it reports false when the frame could not be queued.
type Conn interface {
	ID() string
	Identity() *identity.Identity
	Send(frame []byte) bool
	Close() error
}
