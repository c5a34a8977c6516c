package engine

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/meshdice/consensus/config"
	"github.com/meshdice/consensus/crypto"
	"github.com/meshdice/consensus/log"
	"github.com/meshdice/consensus/replication"
	"github.com/meshdice/consensus/round"
	"github.com/meshdice/consensus/types"
	"github.com/meshdice/consensus/wire"
)

// maxHealthyPendingProposals gates Health(): a replica carrying more
// in-flight proposals than this is backed up, not merely busy.
const maxHealthyPendingProposals = 10

// Engine is the core facade (spec component C9): the single task that
// owns a game's Ledger and its in-flight commit/reveal Machines, and
// translates between the wire and the replication/round packages'
// native types. Not safe for concurrent use from more than one
// goroutine — per spec §5, ownership of game state lives on one task;
// a host process serializes Propose/OnFrame/Tick calls onto it (e.g.
// via a single-consumer channel, as cmd/meshdice does).
type Engine struct {
	Ledger *replication.Ledger
	rounds map[[16]byte]*round.Machine

	verifyCache *crypto.VerifyCache
	pool        *crypto.EntropyPool

	transport Transport
	signer    crypto.Signer
	clock     Clock
	cfg       config.ConsensusConfig
	logger    log.Logger

	// lastSigHits/lastSigMisses/lastEntropySamples are the VerifyCache/
	// EntropyPool cumulative totals as of the last syncMetrics call, so
	// that call can Add() the delta into a monotonic prometheus.Counter
	// instead of re-observing (and double-counting) the running total.
	lastSigHits        uint64
	lastSigMisses      uint64
	lastEntropySamples uint64
	lastByzantine      map[[16]byte]int
}

// New constructs an Engine over a freshly-seeded genesis state,
// registering its metrics against reg (typically a fresh
// prometheus.NewRegistry() per simulated peer; see replication.Metrics).
func New(participants []types.PeerId, genesis *types.ConsensusState, cfg config.ConsensusConfig, transport Transport, signer crypto.Signer, clock Clock, logger log.Logger, reg prometheus.Registerer) (*Engine, error) {
	if logger == nil {
		logger = log.NewNoOp()
	}
	pool, err := crypto.NewEntropyPool(clock.Now())
	if err != nil {
		return nil, err
	}
	ledger, err := replication.New(participants, genesis, cfg.ReplicationConfig(), logger, reg)
	if err != nil {
		return nil, err
	}
	return &Engine{
		Ledger:        ledger,
		rounds:        make(map[[16]byte]*round.Machine),
		verifyCache:   crypto.NewVerifyCache(cfg.MerkleCacheSize),
		pool:          pool,
		transport:     transport,
		signer:        signer,
		clock:         clock,
		cfg:           cfg,
		logger:        logger,
		lastByzantine: make(map[[16]byte]int),
	}, nil
}

// syncMetrics drains the cumulative counters crypto.VerifyCache and
// crypto.EntropyPool keep internally, plus every open round's
// ByzantineLog, into the ledger's prometheus counters. Called after
// every OnFrame/Tick so metrics stay current without the crypto package
// ever depending on replication or prometheus directly.
func (e *Engine) syncMetrics() {
	hits, misses := e.verifyCache.Stats()
	if d := hits - e.lastSigHits; d > 0 {
		e.Ledger.Metrics.SignatureCacheHits.Add(float64(d))
	}
	e.lastSigHits = hits
	if d := misses - e.lastSigMisses; d > 0 {
		e.Ledger.Metrics.SignatureCacheMisses.Add(float64(d))
	}
	e.lastSigMisses = misses

	samples := e.pool.Samples()
	if d := samples - e.lastEntropySamples; d > 0 {
		e.Ledger.Metrics.EntropySamples.Add(float64(d))
	}
	e.lastEntropySamples = samples

	for id, m := range e.rounds {
		n := len(m.Round.ByzantineLog)
		if d := n - e.lastByzantine[id]; d > 0 {
			e.Ledger.Metrics.ByzantineFaults.Add(float64(d))
		}
		e.lastByzantine[id] = n
	}
}

func (e *Engine) broadcast(msgType wire.MsgType, payload []byte) error {
	env := wire.Envelope{Version: wire.LocalVersion, MsgType: msgType, Payload: payload}
	return e.transport.Broadcast(env.Encode())
}

// Propose builds, locally records, and broadcasts a new proposal for
// op. Ledger.Propose records the proposer's own "for" vote only in the
// proposer's local tally; that vote is broadcast explicitly here too,
// since every other replica's own tally must also see it to ever reach
// a unanimous-sized quorum (e.g. N=3's floor(2N/3)+1 == N).
func (e *Engine) Propose(op types.GameOperation) (*types.Proposal, error) {
	p, err := e.Ledger.Propose(op, e.clock.Now(), e.signer)
	if err != nil {
		return nil, err
	}
	if err := e.broadcast(wire.MsgProposal, wire.EncodeProposal(p)); err != nil {
		e.logger.Warn("failed to broadcast proposal", "proposal_id", p.Id, "err", err)
	}
	if err := e.broadcast(wire.MsgVote, wire.EncodeVote(p.Id, e.signer.LocalId(), types.VoteFor)); err != nil {
		e.logger.Warn("failed to broadcast proposer's own vote", "proposal_id", p.Id, "err", err)
	}
	return p, nil
}

// StartRound opens a new round_id's commit/reveal machine and
// broadcasts the local peer's commitment.
func (e *Engine) StartRound(roundId [16]byte, participants []types.PeerId) error {
	m := round.New(roundId, participants, e.clock.Now(), e.verifyCache, e.logger).WithTimeout(e.cfg.CommitRevealTimeout)
	e.rounds[roundId] = m
	commit, err := m.StartCommitting(e.signer, e.pool, e.clock.Now())
	if err != nil {
		return err
	}
	return e.broadcast(wire.MsgCommit, wire.EncodeCommit(commit))
}

// OnFrame decodes an inbound frame from peer and dispatches it. Per
// spec §6.5, delivery may duplicate or arrive out of order; every path
// below tolerates a replay via the underlying package's own duplicate
// checks.
func (e *Engine) OnFrame(peer types.PeerId, frame []byte) error {
	defer e.syncMetrics()
	env, err := wire.DecodeEnvelope(frame)
	if err != nil {
		return err
	}
	switch env.MsgType {
	case wire.MsgProposal:
		return e.onProposal(peer, env.Payload)
	case wire.MsgVote:
		return e.onVote(env.Payload)
	case wire.MsgCommit:
		return e.onCommit(env.Payload)
	case wire.MsgReveal:
		return e.onReveal(env.Payload)
	case wire.MsgDispute:
		return e.onDispute(env.Payload)
	case wire.MsgDisputeVote:
		return e.onDisputeVote(env.Payload)
	default:
		// StateSync/Delta/FullState (spec §6.2) are reserved for future
		// state-catch-up support; not part of this engine's steady-state
		// operation, so an otherwise-known msg_type here is a no-op
		// rather than a protocol error.
		return nil
	}
}

func (e *Engine) onProposal(peer types.PeerId, payload []byte) error {
	d, err := wire.DecodeProposal(payload)
	if err != nil {
		return err
	}
	p := &types.Proposal{
		Id:                d.Id,
		Proposer:          d.Proposer,
		PreviousStateHash: d.PreviousStateHash,
		ProposedState:     &types.ConsensusState{StateHash: d.ProposedStateHash, SequenceNumber: d.ProposedSequenceNo},
		Operation:         d.Operation,
		Timestamp:         d.Timestamp,
		Signature:         d.Signature,
	}

	if p.PreviousStateHash != e.Ledger.State.StateHash {
		// Not against our current tip: either stale (already superseded
		// and not even an ancestor) or the other branch of a fork (spec
		// §4.8's fork handling, S3). HandleForkingProposal distinguishes
		// the two. Full ConsensusState reconstruction for a winning
		// remote branch is a known gap (see DESIGN.md) — adoptBranch
		// operates on whatever ConsensusState object the fork recorded,
		// which for a wire-arrived proposal is hash-only.
		_, err := e.Ledger.HandleForkingProposal(p, e.clock.Now())
		return err
	}

	if err := e.Ledger.ReceiveProposal(p, e.clock.Now(), e.verifyCache); err != nil {
		return err
	}
	if _, err := e.Ledger.RecordVote(p.Id, e.signer.LocalId(), types.VoteFor, e.clock.Now()); err != nil {
		return err
	}
	return e.broadcast(wire.MsgVote, wire.EncodeVote(p.Id, e.signer.LocalId(), types.VoteFor))
}

func (e *Engine) onVote(payload []byte) error {
	proposalId, peer, decision, err := wire.DecodeVote(payload)
	if err != nil {
		return err
	}
	_, err = e.Ledger.RecordVote(proposalId, peer, decision, e.clock.Now())
	return err
}

func (e *Engine) onCommit(payload []byte) error {
	c, err := wire.DecodeCommit(payload)
	if err != nil {
		return err
	}
	m, ok := e.rounds[c.RoundId]
	if !ok {
		return types.ErrUnknownRound
	}
	readyToReveal, err := m.RecordCommit(c)
	if err != nil {
		return err
	}
	if readyToReveal {
		reveal, err := m.Reveal(e.signer)
		if err != nil {
			return err
		}
		return e.broadcast(wire.MsgReveal, wire.EncodeReveal(reveal))
	}
	return nil
}

func (e *Engine) onReveal(payload []byte) error {
	r, err := wire.DecodeReveal(payload)
	if err != nil {
		return err
	}
	m, ok := e.rounds[r.RoundId]
	if !ok {
		return types.ErrUnknownRound
	}
	if err := m.RecordReveal(r); err != nil {
		return err
	}
	if !m.Round.Complete() {
		return nil
	}
	op, err := m.Finalize()
	if err != nil {
		return err
	}
	_, err = e.Propose(*op)
	return err
}

func (e *Engine) onDispute(payload []byte) error {
	id, disputer, disputedState, claim, evidence, err := wire.DecodeDispute(payload)
	if err != nil {
		return err
	}
	e.Ledger.RaiseDispute(id, disputer, disputedState, claim, evidence, e.clock.Now())
	return nil
}

func (e *Engine) onDisputeVote(payload []byte) error {
	id, peer, decision, err := wire.DecodeDisputeVote(payload)
	if err != nil {
		return err
	}
	resolved, upheld, err := e.Ledger.RecordDisputeVote(id, peer, decision)
	if err != nil {
		return err
	}
	if resolved && upheld {
		e.applyDisputeCorrection()
	}
	return nil
}

// applyDisputeCorrection is the corrective action spec §4.8 reserves
// for an upheld dispute: it mutates the ledger's current state directly
// (via types.OpResolvePhase's semantics, bypassing proposal/vote
// quorum entirely — see replication/ledger.go's rejection of
// OpResolvePhase from the normal Propose path), resetting the game to
// a fresh come-out phase rather than leaving a disputed round's result
// standing.
func (e *Engine) applyDisputeCorrection() {
	e.Ledger.ResetToComeOut(e.clock.Now())
}

// Tick sweeps every time-driven transition: round timeouts, stale
// proposals, fork deadlines, and dispute deadlines (spec §4.9's
// tick/on_frame dispatch).
func (e *Engine) Tick(now uint64) {
	defer e.syncMetrics()
	for id, m := range e.rounds {
		if m.CheckTimeout(now) {
			e.logger.Warn("round aborted on timeout", "round_id", id)
		}
	}
	e.Ledger.SweepProposalTimeouts(now)
	e.Ledger.ResolveForks(now)
	e.Ledger.SweepDisputeTimeouts(now)
}

// CurrentState returns the ledger's current finalized ConsensusState.
func (e *Engine) CurrentState() *types.ConsensusState {
	return e.Ledger.State
}

// RoundStatus reports a known round's commit/reveal status. The second
// return is false if this replica has no Machine for roundId (it was
// never StartRound'd here and no remote frame for it has arrived).
func (e *Engine) RoundStatus(roundId [16]byte) (types.RoundStatus, bool) {
	m, ok := e.rounds[roundId]
	if !ok {
		return 0, false
	}
	return m.Round.Status, true
}

// Health reports whether this replica looks caught up: no open
// disputes, no open forks, and a bounded backlog of pending proposals.
func (e *Engine) Health() bool {
	return e.Ledger.OpenDisputeCount() == 0 &&
		e.Ledger.OpenForkCount() == 0 &&
		e.Ledger.PendingProposalCount() < maxHealthyPendingProposals
}
