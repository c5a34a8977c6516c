package main

import (
	"github.com/meshdice/consensus/engine"
	"github.com/meshdice/consensus/log"
	"github.com/meshdice/consensus/types"
)

// frame is one in-flight delivery: target peer, sender, raw wire bytes.
type frame struct {
	target types.PeerId
	from   types.PeerId
	bytes  []byte
}

// bus is an in-process network: every Engine's Transport.Send/Broadcast
// enqueues onto a single shared channel, and one dispatcher goroutine
// delivers frames to their target engine's OnFrame in arrival order.
// This plays the same role the teacher's networking/zmq4.Transport
// plays for a real multi-host deployment, scaled down to one process
// for the demo.
type bus struct {
	deliveries chan frame
	engines    map[types.PeerId]*engine.Engine
	logger     log.Logger
	done       chan struct{}
}

func newBus(logger log.Logger) *bus {
	return &bus{
		deliveries: make(chan frame, 1024),
		engines:    make(map[types.PeerId]*engine.Engine),
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// register binds an engine to its peer id so the dispatcher can route
// frames addressed to it. Must happen before run.
func (b *bus) register(id types.PeerId, e *engine.Engine) {
	b.engines[id] = e
}

// run drains deliveries until stop is called, handing each frame to its
// target engine. Intended to run in its own goroutine.
func (b *bus) run() {
	for {
		select {
		case f := <-b.deliveries:
			e, ok := b.engines[f.target]
			if !ok {
				continue
			}
			if err := e.OnFrame(f.from, f.bytes); err != nil {
				b.logger.Warn("frame delivery failed", "target", f.target, "from", f.from, "err", err)
			}
		case <-b.done:
			return
		}
	}
}

func (b *bus) stop() { close(b.done) }

// peerTransport is the engine.Transport bound to one peer on the bus.
type peerTransport struct {
	self  types.PeerId
	peers []types.PeerId
	b     *bus
}

func (t *peerTransport) Broadcast(payload []byte) error {
	for _, p := range t.peers {
		if p == t.self {
			continue
		}
		t.b.deliveries <- frame{target: p, from: t.self, bytes: payload}
	}
	return nil
}

func (t *peerTransport) Send(peer types.PeerId, payload []byte) error {
	t.b.deliveries <- frame{target: peer, from: t.self, bytes: payload}
	return nil
}
