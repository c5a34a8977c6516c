// Package engine implements the core facade (spec component C9): the
// single-owner task that binds replication, round commit/reveal, crypto
// caches, and the external collaborators (Transport, Signer, Clock)
// into one request/response surface a host process drives.
package engine

import "github.com/meshdice/consensus/types"

// Transport is the external send/receive capability (spec §6.5).
// Delivery is best-effort, unordered, and may duplicate — every
// Engine.OnFrame call must therefore tolerate replays (RecordVote's
// ErrDuplicateVote, RecordCommit's ErrDuplicateCommit, and so on, all
// already do). Inbound frames are pushed into the engine via OnFrame by
// whatever goroutine owns the transport's receive loop, rather than
// pulled through an inbox stream: a push callback keeps Engine free of
// its own goroutine and channel lifecycle, matching the teacher's
// RegisterHandler-style callback wiring over a channel-based inbox.
type Transport interface {
	Send(peer types.PeerId, frame []byte) error
	Broadcast(frame []byte) error
}

// Clock is the monotonic seconds-resolution time source used for
// timestamps and every timeout computation.
type Clock interface {
	Now() uint64
}
