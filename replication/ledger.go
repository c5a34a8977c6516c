package replication

import (
	"encoding/binary"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/meshdice/consensus/betting"
	"github.com/meshdice/consensus/crypto"
	"github.com/meshdice/consensus/log"
	"github.com/meshdice/consensus/merkle"
	"github.com/meshdice/consensus/safemath"
	"github.com/meshdice/consensus/types"
	"github.com/meshdice/consensus/wire"
)

// Config carries the C8 tunables from spec §6.4.
type Config struct {
	MinConfirmations      int
	MaxByzantineRatio     float64
	ConsensusTimeout      uint64
	ForkResolutionTimeout uint64
	MaxBet                types.CrapTokens
}

// DefaultConfig matches spec.md §6.4's listed defaults. MaxBet has no
// named default in spec.md; 1,000,000 is a deployment-chosen ceiling.
func DefaultConfig() Config {
	return Config{
		MinConfirmations:      2,
		MaxByzantineRatio:     0.33,
		ConsensusTimeout:      30,
		ForkResolutionTimeout: 60,
		MaxBet:                1_000_000,
	}
}

// pendingProposal pairs a proposal with its in-flight vote tally.
type pendingProposal struct {
	proposal *types.Proposal
	votes    *types.VoteTracker
}

// Ledger owns one game's ConsensusState plus every in-flight proposal,
// fork, and dispute (spec component C8). It is not safe for concurrent
// use — per spec §5, game state and its replication bookkeeping are
// not shared across tasks; ownership lives on the single core task
// (engine.Engine).
type Ledger struct {
	Participants []types.PeerId
	State        *types.ConsensusState
	Config       Config

	proposals map[[32]byte]*pendingProposal
	forks     map[types.Hash32]*types.Fork
	disputes  map[[32]byte]*types.Dispute

	chain []types.Hash32 // every finalized state_hash in order, for fork ancestor checks

	logger  log.Logger
	Metrics *Metrics
}

// New constructs a ledger seeded with the genesis state, registering
// its metrics against reg (typically a fresh prometheus.NewRegistry()
// per game instance; see Metrics).
func New(participants []types.PeerId, genesis *types.ConsensusState, cfg Config, logger log.Logger, reg prometheus.Registerer) (*Ledger, error) {
	if logger == nil {
		logger = log.NewNoOp()
	}
	metrics, err := NewMetrics(reg)
	if err != nil {
		return nil, err
	}
	return &Ledger{
		Participants: append([]types.PeerId(nil), participants...),
		State:        genesis,
		Config:       cfg,
		proposals:    make(map[[32]byte]*pendingProposal),
		forks:        make(map[types.Hash32]*types.Fork),
		disputes:     make(map[[32]byte]*types.Dispute),
		chain:        []types.Hash32{genesis.StateHash},
		logger:       logger,
		Metrics:      metrics,
	}, nil
}

// proposalSignBytes returns the exact bytes spec §3 defines Proposal.id
// and Signature over: serialize(operation) ‖ proposer ‖ timestamp. This
// binds Operation and Timestamp into the signature — a relay cannot
// alter either post-signature without invalidating it — while
// PreviousStateHash and ProposedState.StateHash stay unsigned, since
// Validate independently re-derives and checks them by recomputing the
// transition itself (a forged hash here fails that recomputation, not
// signature verification).
func proposalSignBytes(p *types.Proposal) []byte {
	buf := wire.EncodeGameOperation(p.Operation)
	buf = append(buf, p.Proposer[:]...)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], p.Timestamp)
	buf = append(buf, ts[:]...)
	return buf
}

// applyOperation clones state and applies op, returning the resulting
// state_hash-stamped ConsensusState. CommitRandomness/RevealRandomness
// never reach here — their validity is purely cryptographic and
// enforced by round.Machine, bypassing vote-quorum entirely per spec
// §4.8's "commit/reveal integration" rule.
func (l *Ledger) applyOperation(state *types.ConsensusState, op types.GameOperation) (*types.ConsensusState, error) {
	next := state.Clone()
	switch op.Kind {
	case types.OpPlaceBet:
		gs, bal, err := betting.PlaceBet(state.GameState, state.Balances, op.Bettor, op.Bet, op.Amount, l.Config.MaxBet)
		if err != nil {
			return nil, err
		}
		next.GameState, next.Balances = gs, bal

	case types.OpProcessRoll:
		if err := l.validateEntropyProof(op); err != nil {
			return nil, err
		}
		gs, bal, _, err := betting.ResolveRoll(state.GameState, state.Balances, op.Dice)
		if err != nil {
			return nil, err
		}
		next.GameState, next.Balances = gs, bal

	case types.OpUpdateBalances:
		for _, p := range l.Participants {
			delta, ok := op.Deltas[p]
			if !ok {
				continue
			}
			updated, err := safemath.ApplyBalanceDelta(next.Balances[p], delta)
			if err != nil {
				return nil, err
			}
			next.Balances[p] = updated
		}

	case types.OpCommitRandomness, types.OpRevealRandomness:
		return nil, types.NewError(types.KindProtocol, "commit/reveal operations bypass vote-quorum", nil)

	case types.OpResolvePhase:
		return nil, types.NewError(types.KindProtocol, "resolve_phase is only emitted as a dispute corrective action", nil)

	default:
		return nil, types.ErrUnknownMsgType
	}

	next.SequenceNumber = state.SequenceNumber + 1
	next.StateHash = crypto.Hash(next.CanonicalBytes())
	return next, nil
}

// validateEntropyProof enforces spec §4.8's ProcessRoll validation
// rule: one proof entry per participant, all resolving to one common
// merkle root.
func (l *Ledger) validateEntropyProof(op types.GameOperation) error {
	if len(op.EntropyProof) != len(l.Participants) {
		return types.NewError(types.KindValidationError, "entropy_proof length does not match participant count", nil)
	}
	seen := make(map[types.PeerId]bool, len(op.EntropyProof))
	var root types.Hash32
	for i, entry := range op.EntropyProof {
		proof := merkle.Proof{Siblings: entry.Siblings, Directions: entry.Directions, PathLen: entry.PathLen}
		computed, ok := merkle.RootFromProof(entry.Commitment, proof)
		if !ok {
			return types.NewError(types.KindValidationError, "entropy proof entry has a malformed path", nil)
		}
		if i == 0 {
			root = computed
		} else if computed != root {
			return types.NewError(types.KindValidationError, "entropy proof entries disagree on merkle root", nil)
		}
		if seen[entry.Peer] {
			return types.NewError(types.KindValidationError, "entropy proof repeats a peer", nil)
		}
		seen[entry.Peer] = true
	}
	return nil
}

// Propose clones the current state, applies op, and returns a signed
// Proposal ready to broadcast. The proposer's own "for" vote is
// recorded immediately.
func (l *Ledger) Propose(op types.GameOperation, now uint64, signer crypto.Signer) (*types.Proposal, error) {
	proposed, err := l.applyOperation(l.State, op)
	if err != nil {
		l.Metrics.Failures.Inc()
		return nil, err
	}

	p := &types.Proposal{
		Proposer:          signer.LocalId(),
		PreviousStateHash: l.State.StateHash,
		ProposedState:     proposed,
		Operation:         op,
		Timestamp:         now,
	}
	p.Id = crypto.Hash(proposalSignBytes(p))
	p.Signature = signer.Sign(proposalSignBytes(p))

	votes := types.NewVoteTracker(now)
	votes.Record(p.Proposer, types.VoteFor)
	l.proposals[p.Id] = &pendingProposal{proposal: p, votes: votes}
	l.Metrics.Proposals.Inc()
	return p, nil
}

// Validate re-derives a peer-received proposal's state transition and
// confirms it matches what the proposer claims, per spec §4.8's
// validation rules. Returns nil if the proposal is acceptable to vote
// "for".
func (l *Ledger) Validate(p *types.Proposal, verifyCache *crypto.VerifyCache) error {
	isParticipant := false
	for _, peer := range l.Participants {
		if peer == p.Proposer {
			isParticipant = true
			break
		}
	}
	if !isParticipant {
		return types.ErrNotParticipant
	}
	if verifyCache != nil && !verifyCache.Verify(p.Proposer, proposalSignBytes(p), p.Signature) {
		return types.ErrBadSignature
	}
	if p.PreviousStateHash != l.State.StateHash {
		return types.ErrStaleState
	}
	recomputed, err := l.applyOperation(l.State, p.Operation)
	if err != nil {
		return err
	}
	if recomputed.StateHash != p.ProposedState.StateHash {
		return types.NewError(types.KindValidationError, "proposed state_hash does not match recomputed transition", nil)
	}
	return nil
}

// ReceiveProposal validates a peer-originated Proposal (spec §6.5's
// Transport delivers these as raw frames, decoded by the caller) and
// registers it as pending with a locally-recomputed ProposedState — not
// whatever the wire claimed — so finalize() always operates on this
// replica's own applyOperation result, never a remote-supplied one. A
// duplicate frame for an already-pending id is a no-op, not an error,
// since Transport may redeliver. A redelivered, already-finalized
// proposal no longer builds on the current state and is rejected by
// Validate with ErrStaleState.
func (l *Ledger) ReceiveProposal(p *types.Proposal, now uint64, verifyCache *crypto.VerifyCache) error {
	if _, pending := l.proposals[p.Id]; pending {
		return nil
	}
	if err := l.Validate(p, verifyCache); err != nil {
		return err
	}
	recomputed, err := l.applyOperation(l.State, p.Operation)
	if err != nil {
		return err
	}
	full := *p
	full.ProposedState = recomputed
	l.proposals[p.Id] = &pendingProposal{proposal: &full, votes: types.NewVoteTracker(now)}
	l.Metrics.Proposals.Inc()
	return nil
}

// RecordVote tallies peer's decision on proposalId. When the "for"
// tally reaches RequiredFor, the proposal finalizes immediately:
// sequence_number advances, the proposal is cleared, and finalized is
// true. A proposal whose "against" tally reaches RequiredFor is dropped
// and counted as a failure.
func (l *Ledger) RecordVote(proposalId [32]byte, peer types.PeerId, decision types.VoteDecision, now uint64) (finalized bool, err error) {
	pp, ok := l.proposals[proposalId]
	if !ok {
		return false, types.NewError(types.KindValidationError, "no such proposal", nil)
	}
	if pp.votes.HasVoted(peer) {
		return false, types.ErrDuplicateVote
	}
	pp.votes.Record(peer, decision)

	n := len(l.Participants)
	required := RequiredFor(n, l.Config.MinConfirmations)
	if len(pp.votes.For) >= required {
		l.finalize(pp)
		return true, nil
	}
	if len(pp.votes.Against) >= required {
		delete(l.proposals, proposalId)
		l.Metrics.Failures.Inc()
		return false, nil
	}
	return false, nil
}

func (l *Ledger) finalize(pp *pendingProposal) {
	pp.proposal.ProposedState.IsFinalized = true
	pp.proposal.ProposedState.LastProposer = pp.proposal.Proposer
	l.State = pp.proposal.ProposedState
	l.chain = append(l.chain, l.State.StateHash)
	delete(l.proposals, pp.proposal.Id)
	l.Metrics.Successes.Inc()
}

// PendingProposalCount reports how many proposals are still awaiting
// quorum.
func (l *Ledger) PendingProposalCount() int { return len(l.proposals) }

// ResetToComeOut directly resets the current state's phase to ComeOut
// and re-stamps sequence_number/state_hash, bypassing proposal/vote
// quorum entirely. This is the one corrective action an upheld dispute
// may trigger (spec §4.8): it does not re-propose, since the whole
// point of a dispute is to correct a state the normal quorum path
// already finalized incorrectly.
func (l *Ledger) ResetToComeOut(now uint64) {
	next := l.State.Clone()
	next.GameState.Phase = types.Phase{Kind: types.ComeOut}
	next.SequenceNumber = l.State.SequenceNumber + 1
	next.Timestamp = now
	next.StateHash = crypto.Hash(next.CanonicalBytes())
	l.State = next
	l.chain = append(l.chain, next.StateHash)
}

// SweepProposalTimeouts drops any proposal older than consensus_timeout
// that has not reached quorum, per spec §4.8.
func (l *Ledger) SweepProposalTimeouts(now uint64) (dropped int) {
	for id, pp := range l.proposals {
		if now >= pp.votes.CreatedAt && now-pp.votes.CreatedAt > l.Config.ConsensusTimeout {
			delete(l.proposals, id)
			l.Metrics.Failures.Inc()
			dropped++
		}
	}
	return dropped
}
