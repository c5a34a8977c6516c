package types

import "sort"

// ConsensusState is the full replicated state of a game: the
// deterministic GameState, per-peer balances, and the bookkeeping the
// replication protocol (C8) needs to order and finalize transitions.
type ConsensusState struct {
	GameId         GameId
	SequenceNumber uint64
	Timestamp      uint64
	StateHash      Hash32
	GameState      *GameState
	Balances       Balances
	LastProposer   PeerId
	Confirmations  int
	IsFinalized    bool
}

// Clone deep-copies everything a proposer needs to mutate freely.
func (s *ConsensusState) Clone() *ConsensusState {
	return &ConsensusState{
		GameId:         s.GameId,
		SequenceNumber: s.SequenceNumber,
		Timestamp:      s.Timestamp,
		StateHash:      s.StateHash,
		GameState:      s.GameState.Clone(),
		Balances:       s.Balances.Clone(),
		LastProposer:   s.LastProposer,
		Confirmations:  s.Confirmations,
		IsFinalized:    s.IsFinalized,
	}
}

// CanonicalBytes concatenates the two sub-serializations whose hash is
// state_hash, per spec invariant 1: state_hash = SHA-256(canonical
// serialize(game_state ‖ balances)).
func (s *ConsensusState) CanonicalBytes() []byte {
	buf := s.GameState.CanonicalBytes()
	buf = append(buf, s.Balances.CanonicalBytes()...)
	return buf
}

// OperationKind tags the GameOperation union.
type OperationKind uint8

const (
	OpPlaceBet OperationKind = iota
	OpCommitRandomness
	OpRevealRandomness
	OpProcessRoll
	OpResolvePhase
	OpUpdateBalances
)

// GameOperation is the closed tagged union of state transitions a
// Proposal may carry. Only one field group is populated, selected by
// Kind; this keeps (de)serialization exhaustive and the validator total,
// per the "closed tagged union, not polymorphic classes" design note.
type GameOperation struct {
	Kind OperationKind

	// OpPlaceBet
	Bettor PeerId
	Bet    BetType
	Amount CrapTokens

	// OpCommitRandomness / OpRevealRandomness
	RoundId   [16]byte
	Nonce     [32]byte // OpRevealRandomness only
	Commit    Hash32   // OpCommitRandomness only
	Committer PeerId

	// OpProcessRoll
	Dice         DiceRoll
	EntropyProof []EntropyProofEntry

	// OpUpdateBalances
	Deltas map[PeerId]int64
}

// EntropyProofEntry is one participant's merkle-proven commitment,
// embedded in a ProcessRoll operation so late joiners can verify a
// roll's provenance without replaying the whole commit/reveal round.
type EntropyProofEntry struct {
	Peer       PeerId
	Commitment Hash32
	Siblings   []Hash32
	Directions uint64 // bit k = 1 => sibling at level k is on the left
	PathLen    uint8
}

// Proposal is a signed, proposed state transition.
type Proposal struct {
	Id                [32]byte
	Proposer          PeerId
	PreviousStateHash Hash32
	ProposedState     *ConsensusState
	Operation         GameOperation
	Timestamp         uint64
	Signature         Sig64
}

// VoteDecision is for/against/abstain on a Proposal or Dispute.
type VoteDecision uint8

const (
	VoteFor VoteDecision = iota
	VoteAgainst
	VoteAbstain
)

// VoteTracker accumulates a proposal's votes.
type VoteTracker struct {
	For       map[PeerId]bool
	Against   map[PeerId]bool
	Abstain   map[PeerId]bool
	CreatedAt uint64
}

// NewVoteTracker returns an empty tracker stamped with the proposal's
// creation time.
func NewVoteTracker(now uint64) *VoteTracker {
	return &VoteTracker{
		For:       make(map[PeerId]bool),
		Against:   make(map[PeerId]bool),
		Abstain:   make(map[PeerId]bool),
		CreatedAt: now,
	}
}

// Record records peer's decision, overwriting any prior vote from the
// same peer (later recordings happen only via explicit re-vote paths;
// callers should reject true duplicates before calling Record).
func (v *VoteTracker) Record(peer PeerId, d VoteDecision) {
	delete(v.For, peer)
	delete(v.Against, peer)
	delete(v.Abstain, peer)
	switch d {
	case VoteFor:
		v.For[peer] = true
	case VoteAgainst:
		v.Against[peer] = true
	default:
		v.Abstain[peer] = true
	}
}

// HasVoted reports whether peer already cast any vote.
func (v *VoteTracker) HasVoted(peer PeerId) bool {
	return v.For[peer] || v.Against[peer] || v.Abstain[peer]
}

// Fork tracks competing child state_hashes sharing a parent.
type Fork struct {
	ParentStateHash  Hash32
	Children         map[Hash32]*ConsensusState
	Supporters       map[Hash32]map[PeerId]bool
	ResolutionDeadln uint64
}

// NewFork returns an empty fork rooted at parent.
func NewFork(parent Hash32, deadline uint64) *Fork {
	return &Fork{
		ParentStateHash:  parent,
		Children:         make(map[Hash32]*ConsensusState),
		Supporters:       make(map[Hash32]map[PeerId]bool),
		ResolutionDeadln: deadline,
	}
}

// Support records peer's support for branch.
func (f *Fork) Support(branch Hash32, peer PeerId) {
	if f.Supporters[branch] == nil {
		f.Supporters[branch] = make(map[PeerId]bool)
	}
	f.Supporters[branch][peer] = true
}

// WinningBranch reports the first branch (in Children's indeterminate
// map order — safe because at most one branch can satisfy a BFT quorum
// at a time) whose supporter count reaches required.
func (f *Fork) WinningBranch(required int) (Hash32, bool) {
	for branch := range f.Children {
		if len(f.Supporters[branch]) >= required {
			return branch, true
		}
	}
	return Hash32{}, false
}

// MostSupported returns the branch with the most supporters, used as
// the tie-break when ResolutionDeadln expires without any branch
// reaching quorum. Reports false for a fork with no branches at all.
func (f *Fork) MostSupported() (Hash32, bool) {
	var best Hash32
	bestCount := -1
	found := false
	// Deterministic across replicas: iterate branches in a fixed order
	// (lexicographic on the hash) rather than map order.
	branches := make([]Hash32, 0, len(f.Children))
	for branch := range f.Children {
		branches = append(branches, branch)
	}
	sort.Slice(branches, func(i, j int) bool { return lessHash(branches[i], branches[j]) })
	for _, branch := range branches {
		count := len(f.Supporters[branch])
		if count > bestCount {
			bestCount = count
			best = branch
			found = true
		}
	}
	return best, found
}

func lessHash(a, b Hash32) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// RandomnessCommit is one peer's hash commitment for a dice round.
type RandomnessCommit struct {
	Peer       PeerId
	RoundId    [16]byte
	Commitment Hash32
	Signature  Sig64
}

// RandomnessReveal is one peer's nonce preimage for a dice round.
type RandomnessReveal struct {
	Peer      PeerId
	RoundId   [16]byte
	Nonce     [32]byte
	Signature Sig64
}

// RoundStatus is the commit/reveal state machine's current state.
type RoundStatus uint8

const (
	RoundNew RoundStatus = iota
	RoundCommitting
	RoundRevealing
	RoundCompleted
	RoundAborted
)

// Round tracks one dice-roll commit/reveal lifecycle.
type Round struct {
	RoundId      [16]byte
	Participants []PeerId
	Status       RoundStatus
	Commitments  map[PeerId]RandomnessCommit
	Reveals      map[PeerId]RandomnessReveal
	CachedResult *DiceRoll
	CreatedAt    uint64
	ByzantineLog []ByzantineFault
}

// Complete reports |reveals| == |commitments| == |participants|.
func (r *Round) Complete() bool {
	return len(r.Reveals) == len(r.Commitments) && len(r.Commitments) == len(r.Participants)
}

// ByzantineFault records a detected protocol violation within a round.
type ByzantineFault struct {
	Peer   PeerId
	Kind   string // "DuplicateNonce" | "InvalidReveal" | "SuspiciousTiming" | "Timeout"
	Detail string
}

// DisputeClaim enumerates the claims a Dispute may raise.
type DisputeClaim uint8

const (
	ClaimInvalidBet DisputeClaim = iota
	ClaimInvalidRoll
	ClaimInvalidPayout
	ClaimDoubleSpending
	ClaimConsensusViolation
)

// Evidence is one signed item supporting a dispute (a transaction, a
// state snapshot, or a witness attestation — left opaque to the core,
// which only hashes and signs it).
type Evidence struct {
	Kind string
	Data []byte
}

// DisputeVoteDecision is a peer's vote on a Dispute's resolution.
type DisputeVoteDecision uint8

const (
	Uphold DisputeVoteDecision = iota
	Dismiss
	DisputeAbstain
)

// Dispute is a claim raised against a disputed state, with per-peer
// votes tracked independently of proposal voting and its own deadline.
type Dispute struct {
	Id             [32]byte
	Disputer       PeerId
	DisputedState  Hash32
	Claim          DisputeClaim
	Evidence       []Evidence
	Deadline       uint64
	Votes          map[PeerId]DisputeVoteDecision
	Resolved       bool
	Upheld         bool
}

// NewDispute returns an unresolved dispute with an empty vote map.
func NewDispute(id [32]byte, disputer PeerId, state Hash32, claim DisputeClaim, evidence []Evidence, deadline uint64) *Dispute {
	return &Dispute{
		Id:            id,
		Disputer:      disputer,
		DisputedState: state,
		Claim:         claim,
		Evidence:      evidence,
		Deadline:      deadline,
		Votes:         make(map[PeerId]DisputeVoteDecision),
	}
}
