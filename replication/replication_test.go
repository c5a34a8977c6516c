package replication

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/meshdice/consensus/crypto"
	"github.com/meshdice/consensus/types"
)

func newPeer(t *testing.T) (*crypto.KeyPair, types.PeerId) {
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	return kp, kp.LocalId()
}

func genesisLedger(t *testing.T, participants []types.PeerId, cfg Config) *Ledger {
	gameState := types.NewGameState(participants)
	balances := types.Balances{}
	for _, p := range participants {
		balances[p] = 1000
	}
	genesis := &types.ConsensusState{GameState: gameState, Balances: balances}
	genesis.StateHash = crypto.Hash(genesis.CanonicalBytes())
	l, err := New(participants, genesis, cfg, nil, prometheus.NewRegistry())
	require.NoError(t, err)
	return l
}

func TestProposeVoteQuorumFinalizes(t *testing.T) {
	kp1, p1 := newPeer(t)
	_, p2 := newPeer(t)
	_, p3 := newPeer(t)
	_, p4 := newPeer(t)
	participants := []types.PeerId{p1, p2, p3, p4}
	cfg := DefaultConfig()
	l := genesisLedger(t, participants, cfg)

	op := types.GameOperation{Kind: types.OpPlaceBet, Bettor: p1, Bet: types.PassLine, Amount: 100}
	proposal, err := l.Propose(op, 0, kp1)
	require.NoError(t, err)
	require.Equal(t, 1, len(l.proposals))

	// required = floor(2*4/3)+1 = 3; proposer's own "for" vote already counted.
	finalized, err := l.RecordVote(proposal.Id, p2, types.VoteFor, 1)
	require.NoError(t, err)
	require.False(t, finalized)

	finalized, err = l.RecordVote(proposal.Id, p3, types.VoteFor, 2)
	require.NoError(t, err)
	require.True(t, finalized)

	require.Equal(t, uint64(1), l.State.SequenceNumber)
	require.True(t, l.State.IsFinalized)
	require.Equal(t, types.CrapTokens(100), l.State.GameState.ActiveBets[types.BetKey{Peer: p1, Bet: types.PassLine}])
	require.Equal(t, types.CrapTokens(900), l.State.Balances[p1])
	require.Equal(t, float64(1), testutil.ToFloat64(l.Metrics.Successes))
	require.Len(t, l.proposals, 0)
}

func TestRecordVoteRejectsDuplicateAndUnknown(t *testing.T) {
	kp1, p1 := newPeer(t)
	_, p2 := newPeer(t)
	participants := []types.PeerId{p1, p2}
	l := genesisLedger(t, participants, DefaultConfig())

	op := types.GameOperation{Kind: types.OpPlaceBet, Bettor: p1, Bet: types.Field, Amount: 50}
	proposal, err := l.Propose(op, 0, kp1)
	require.NoError(t, err)

	_, err = l.RecordVote(proposal.Id, p1, types.VoteFor, 0)
	require.ErrorIs(t, err, types.ErrDuplicateVote)

	var unknownId [32]byte
	unknownId[0] = 0xFF
	_, err = l.RecordVote(unknownId, p2, types.VoteFor, 0)
	require.Error(t, err)
}

// S3 — fork on conflicting proposals: two branches share one parent;
// the branch with >= the BFT quorum of supporters wins and the other
// is discarded.
func TestForkResolutionPicksQuorateBranch(t *testing.T) {
	kp1, p1 := newPeer(t)
	kp2, p2 := newPeer(t)
	_, p3 := newPeer(t)
	_, p4 := newPeer(t)
	participants := []types.PeerId{p1, p2, p3, p4}
	cfg := DefaultConfig()
	l := genesisLedger(t, participants, cfg)

	op1 := types.GameOperation{Kind: types.OpPlaceBet, Bettor: p1, Bet: types.PassLine, Amount: 100}
	op2 := types.GameOperation{Kind: types.OpPlaceBet, Bettor: p2, Bet: types.DontPass, Amount: 50}

	proposal1, err := l.Propose(op1, 0, kp1)
	require.NoError(t, err)
	proposal2, err := l.Propose(op2, 0, kp2)
	require.NoError(t, err)
	require.Equal(t, proposal1.PreviousStateHash, proposal2.PreviousStateHash)
	require.NotEqual(t, proposal1.ProposedState.StateHash, proposal2.ProposedState.StateHash)

	fork1, err := l.HandleForkingProposal(proposal1, 0)
	require.NoError(t, err)
	fork2, err := l.HandleForkingProposal(proposal2, 0)
	require.NoError(t, err)
	require.Same(t, fork1, fork2) // same parent -> same Fork entry

	branch1 := proposal1.ProposedState.StateHash
	branch2 := proposal2.ProposedState.StateHash

	// required = floor(2*4/3)+1 = 3. Partition: branch1 gets p1,p3,p4;
	// branch2 only gets p2 (its own proposer).
	fork1.Support(branch1, p3)
	fork1.Support(branch1, p4)

	resolved := l.ResolveForks(0)
	require.Equal(t, 1, resolved)
	require.Equal(t, branch1, l.State.StateHash)
	require.True(t, l.State.IsFinalized)
	require.Len(t, l.forks, 0)

	// The losing branch's bet never lands in the canonical state.
	_, placed := l.State.GameState.ActiveBets[types.BetKey{Peer: p2, Bet: types.DontPass}]
	require.False(t, placed)
	_ = branch2
}
