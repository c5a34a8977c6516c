// Package round implements the per-round dice commit/reveal state
// machine (spec component C7): commitment collection, reveal
// verification, Byzantine-fault detection, and timeout handling,
// culminating in a ProcessRoll operation handed to the replication
// layer.
package round

import (
	"sort"
	"time"

	"github.com/meshdice/consensus/crypto"
	"github.com/meshdice/consensus/dice"
	"github.com/meshdice/consensus/log"
	"github.com/meshdice/consensus/merkle"
	"github.com/meshdice/consensus/types"
)

// DefaultCommitRevealTimeout is the spec §6.4 default.
const DefaultCommitRevealTimeout = 15

// Machine drives one round_id's commit/reveal lifecycle. It wraps a
// *types.Round (the shared replicated data) with the local secret
// nonce and collaborator handles that never themselves get serialized
// onto the wire.
type Machine struct {
	Round       *types.Round
	localPeer   types.PeerId
	localNonce  [32]byte
	hasLocal    bool
	verifyCache *crypto.VerifyCache
	logger      log.Logger
	timeout     uint64

	// commitWallClock records local receive instants (not part of the
	// replicated protocol state) purely to feed the SuspiciousTiming
	// advisory heuristic, which the spec scopes to sub-clock-tick
	// granularity the seconds-resolution protocol Clock cannot express.
	commitWallClock map[types.PeerId]time.Time
}

// New starts tracking a fresh round in RoundNew status.
func New(roundId [16]byte, participants []types.PeerId, now uint64, verifyCache *crypto.VerifyCache, logger log.Logger) *Machine {
	if logger == nil {
		logger = log.NewNoOp()
	}
	ps := append([]types.PeerId(nil), participants...)
	sort.Slice(ps, func(i, j int) bool { return ps[i].Less(ps[j]) })
	return &Machine{
		Round: &types.Round{
			RoundId:      roundId,
			Participants: ps,
			Status:       types.RoundNew,
			Commitments:  make(map[types.PeerId]types.RandomnessCommit),
			Reveals:      make(map[types.PeerId]types.RandomnessReveal),
			CreatedAt:    now,
		},
		verifyCache:     verifyCache,
		logger:          logger,
		timeout:         DefaultCommitRevealTimeout,
		commitWallClock: make(map[types.PeerId]time.Time),
	}
}

// WithTimeout overrides the default commit_reveal_timeout.
func (m *Machine) WithTimeout(seconds uint64) *Machine {
	m.timeout = seconds
	return m
}

func isParticipant(peers []types.PeerId, p types.PeerId) bool {
	for _, q := range peers {
		if q == p {
			return true
		}
	}
	return false
}

func commitSignBytes(roundId [16]byte, commitment types.Hash32) []byte {
	buf := append([]byte(nil), roundId[:]...)
	return append(buf, commitment[:]...)
}

func revealSignBytes(roundId [16]byte, nonce [32]byte) []byte {
	buf := append([]byte(nil), roundId[:]...)
	return append(buf, nonce[:]...)
}

// StartCommitting draws a fresh nonce from pool, commits to it, signs
// the commitment with local, records it as the local peer's own
// commitment, and returns the RandomnessCommit to broadcast.
func (m *Machine) StartCommitting(local crypto.Signer, pool *crypto.EntropyPool, now uint64) (types.RandomnessCommit, error) {
	if m.Round.Status != types.RoundNew {
		return types.RandomnessCommit{}, types.ErrPhaseIllegal
	}
	nonceBytes, err := pool.Generate(now, 32)
	if err != nil {
		return types.RandomnessCommit{}, err
	}
	copy(m.localNonce[:], nonceBytes)
	m.hasLocal = true
	m.localPeer = local.LocalId()

	commitment := crypto.Hash(m.localNonce[:], m.Round.RoundId[:])
	sig := local.Sign(commitSignBytes(m.Round.RoundId, commitment))
	c := types.RandomnessCommit{Peer: m.localPeer, RoundId: m.Round.RoundId, Commitment: commitment, Signature: sig}

	m.Round.Status = types.RoundCommitting
	m.Round.Commitments[m.localPeer] = c
	return c, nil
}

// RecordCommit validates and stores a (possibly remote) commit. When
// every participant has committed, the round transitions to Revealing
// and readyToReveal is true, signalling the caller to broadcast its own
// reveal via Reveal.
func (m *Machine) RecordCommit(c types.RandomnessCommit) (readyToReveal bool, err error) {
	if m.Round.Status != types.RoundCommitting && m.Round.Status != types.RoundNew {
		return false, types.ErrPhaseIllegal
	}
	if c.RoundId != m.Round.RoundId {
		return false, types.ErrUnknownRound
	}
	if !isParticipant(m.Round.Participants, c.Peer) {
		return false, types.ErrNotParticipant
	}
	if _, dup := m.Round.Commitments[c.Peer]; dup {
		return false, types.ErrDuplicateCommit
	}
	if m.verifyCache != nil && !m.verifyCache.Verify(c.Peer, commitSignBytes(c.RoundId, c.Commitment), c.Signature) {
		return false, types.ErrBadSignature
	}

	m.checkSuspiciousTiming(c.Peer)
	m.Round.Commitments[c.Peer] = c
	m.Round.Status = types.RoundCommitting

	if len(m.Round.Commitments) == len(m.Round.Participants) {
		m.Round.Status = types.RoundRevealing
		return true, nil
	}
	return false, nil
}

// checkSuspiciousTiming flags two commits arriving under 1ms apart as
// an advisory ByzantineFault (spec §4.7) without rejecting either.
func (m *Machine) checkSuspiciousTiming(peer types.PeerId) {
	now := time.Now()
	for other, t := range m.commitWallClock {
		if other == peer {
			continue
		}
		delta := now.Sub(t)
		if delta < 0 {
			delta = -delta
		}
		if delta < time.Millisecond {
			m.Round.ByzantineLog = append(m.Round.ByzantineLog, types.ByzantineFault{
				Peer: peer, Kind: "SuspiciousTiming",
				Detail: "commit arrived within 1ms of another peer's commit",
			})
		}
	}
	m.commitWallClock[peer] = now
}

// Reveal releases the local peer's nonce, valid only once the round has
// moved to Revealing.
func (m *Machine) Reveal(local crypto.Signer) (types.RandomnessReveal, error) {
	if m.Round.Status != types.RoundRevealing {
		return types.RandomnessReveal{}, types.ErrPhaseIllegal
	}
	if !m.hasLocal {
		return types.RandomnessReveal{}, types.NewError(types.KindValidationError, "no local commitment to reveal", nil)
	}
	sig := local.Sign(revealSignBytes(m.Round.RoundId, m.localNonce))
	r := types.RandomnessReveal{Peer: m.localPeer, RoundId: m.Round.RoundId, Nonce: m.localNonce, Signature: sig}
	m.Round.Reveals[m.localPeer] = r
	return r, nil
}

// RecordReveal validates a (possibly remote) reveal against its stored
// commitment, detects duplicate-nonce replay, and stores it.
func (m *Machine) RecordReveal(r types.RandomnessReveal) error {
	if m.Round.Status != types.RoundRevealing {
		return types.ErrPhaseIllegal
	}
	if r.RoundId != m.Round.RoundId {
		return types.ErrUnknownRound
	}
	commit, ok := m.Round.Commitments[r.Peer]
	if !ok {
		return types.ErrNotParticipant
	}
	if _, dup := m.Round.Reveals[r.Peer]; dup {
		return types.ErrDuplicateReveal
	}
	if m.verifyCache != nil && !m.verifyCache.Verify(r.Peer, revealSignBytes(r.RoundId, r.Nonce), r.Signature) {
		return types.ErrBadSignature
	}

	for other, existing := range m.Round.Reveals {
		if other != r.Peer && existing.Nonce == r.Nonce {
			m.Round.ByzantineLog = append(m.Round.ByzantineLog, types.ByzantineFault{
				Peer: r.Peer, Kind: "DuplicateNonce",
				Detail: "reveal replays another participant's nonce",
			})
			return types.NewError(types.KindCrypto, "duplicate nonce across reveals", types.ErrCommitMismatch)
		}
	}

	recomputed := crypto.Hash(r.Nonce[:], r.RoundId[:])
	if recomputed != commit.Commitment {
		m.Round.ByzantineLog = append(m.Round.ByzantineLog, types.ByzantineFault{
			Peer: r.Peer, Kind: "InvalidReveal",
			Detail: "reveal does not hash to the stored commitment",
		})
		return types.ErrCommitMismatch
	}

	m.Round.Reveals[r.Peer] = r
	if m.Round.Complete() {
		m.Round.Status = types.RoundRevealing // caller calls Finalize to advance to Completed
	}
	return nil
}

// CheckTimeout aborts the round if its age exceeds the commit/reveal
// timeout and it has not completed, marking every committed-but-
// unrevealed participant as a Timeout Byzantine fault (spec §4.7:
// "non-revealers are marked as Byzantine faults"). Per the partial-
// reveals Open Question decision (DESIGN.md), a timed-out round is
// always aborted and re-seated — it never finalizes on a reduced
// committee.
func (m *Machine) CheckTimeout(now uint64) bool {
	if m.Round.Status == types.RoundCompleted || m.Round.Status == types.RoundAborted {
		return false
	}
	if now < m.Round.CreatedAt || now-m.Round.CreatedAt <= m.timeout {
		return false
	}
	for _, p := range m.Round.Participants {
		if _, committed := m.Round.Commitments[p]; committed {
			if _, revealed := m.Round.Reveals[p]; !revealed {
				m.Round.ByzantineLog = append(m.Round.ByzantineLog, types.ByzantineFault{
					Peer: p, Kind: "Timeout", Detail: "committed but never revealed before commit_reveal_timeout",
				})
			}
		}
	}
	m.Round.Status = types.RoundAborted
	return true
}

// Finalize derives the dice roll and a merkle inclusion proof per
// participant, advances the round to Completed, and returns the
// ProcessRoll operation to hand to the replication layer. Valid only
// once every commit has a matching reveal.
func (m *Machine) Finalize() (*types.GameOperation, error) {
	if !m.Round.Complete() {
		return nil, types.NewError(types.KindValidationError, "round is not complete", nil)
	}
	if m.Round.Status == types.RoundCompleted {
		return nil, types.NewError(types.KindValidationError, "round already finalized", nil)
	}

	orderedPeers := append([]types.PeerId(nil), m.Round.Participants...)
	reveals := make([]types.RandomnessReveal, 0, len(orderedPeers))
	leaves := make([]types.Hash32, 0, len(orderedPeers))
	for _, p := range orderedPeers {
		reveals = append(reveals, m.Round.Reveals[p])
		leaves = append(leaves, m.Round.Commitments[p].Commitment)
	}

	entropy := dice.Aggregate(reveals)
	result := dice.ExtractDice(entropy, m.logger)
	if err := result.Validate(); err != nil {
		return nil, err
	}

	tree := merkle.New(leaves)
	proof := make([]types.EntropyProofEntry, len(orderedPeers))
	for i, p := range orderedPeers {
		pf, err := tree.Prove(i)
		if err != nil {
			return nil, err
		}
		proof[i] = types.EntropyProofEntry{
			Peer:       p,
			Commitment: m.Round.Commitments[p].Commitment,
			Siblings:   pf.Siblings,
			Directions: pf.Directions,
			PathLen:    pf.PathLen,
		}
	}

	m.Round.Status = types.RoundCompleted
	m.Round.CachedResult = &result

	return &types.GameOperation{
		Kind:         types.OpProcessRoll,
		RoundId:      m.Round.RoundId,
		Dice:         result,
		EntropyProof: proof,
	}, nil
}
