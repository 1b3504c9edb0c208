// Package bridge relays realtime deliveries between service instances so a
// publish on one instance reaches sockets held by the others.
package bridge

import (
	"encoding/json"
	"log/slog"

	"github.com/dmehra2102/walkup-orders/internal/realtime"
)

// Sink receives deliveries from peers. *realtime.Router satisfies it.
type Sink interface {
	Deliver(d realtime.Delivery) int
}

type envelope struct {
	Origin   string            `json:"origin"`
	Delivery realtime.Delivery `json:"delivery"`
}

// peerQueue is the non-blocking queue between Forward and the network loop.
type peerQueue struct {
	log    *slog.Logger
	origin string
	queue  chan []byte
}

func newPeerQueue(log *slog.Logger, origin string, size int) peerQueue {
	if size <= 0 {
		size = 256
	}
	return peerQueue{log: log, origin: origin, queue: make(chan []byte, size)}
}

func (o peerQueue) Forward(d realtime.Delivery) {
	b, err := json.Marshal(envelope{Origin: o.origin, Delivery: d})
	if err != nil {
		o.log.Error("encode bridge frame", "err", err)
		return
	}
	select {
	case o.queue <- b:
	default:
		o.log.Warn("bridge queue full, frame dropped")
	}
}

// accept decodes a peer frame, skipping our own echoes.
func (o peerQueue) accept(body []byte) (realtime.Delivery, bool) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		o.log.Warn("bad bridge frame", "err", err)
		return realtime.Delivery{}, false
	}
	if env.Origin == o.origin {
		return realtime.Delivery{}, false
	}
	return env.Delivery, true
}
