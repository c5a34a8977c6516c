package round

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meshdice/consensus/crypto"
	"github.com/meshdice/consensus/merkle"
	"github.com/meshdice/consensus/types"
)

func newTestPeer(t *testing.T) (*crypto.KeyPair, types.PeerId) {
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	return kp, kp.LocalId()
}

func TestRoundNormalCompletion(t *testing.T) {
	verifyCache := crypto.NewVerifyCache(0)
	kpA, a := newTestPeer(t)
	kpB, b := newTestPeer(t)
	kpC, c := newTestPeer(t)
	participants := []types.PeerId{a, b, c}

	var roundId [16]byte
	roundId[0] = 1

	mA := New(roundId, participants, 0, verifyCache, nil)
	mB := New(roundId, participants, 0, verifyCache, nil)
	mC := New(roundId, participants, 0, verifyCache, nil)

	poolA := crypto.NewTestEntropyPool([32]byte{1})
	poolB := crypto.NewTestEntropyPool([32]byte{2})
	poolC := crypto.NewTestEntropyPool([32]byte{3})

	commitA, err := mA.StartCommitting(kpA, poolA, 0)
	require.NoError(t, err)
	commitB, err := mB.StartCommitting(kpB, poolB, 0)
	require.NoError(t, err)
	commitC, err := mC.StartCommitting(kpC, poolC, 0)
	require.NoError(t, err)

	allCommits := []types.RandomnessCommit{commitA, commitB, commitC}
	for _, m := range []*Machine{mA, mB, mC} {
		for _, c := range allCommits {
			if c.Peer == m.localPeer {
				continue
			}
			_, err := m.RecordCommit(c)
			require.NoError(t, err)
		}
	}

	require.Equal(t, types.RoundRevealing, mA.Round.Status)
	require.Equal(t, types.RoundRevealing, mB.Round.Status)
	require.Equal(t, types.RoundRevealing, mC.Round.Status)

	revealA, err := mA.Reveal(kpA)
	require.NoError(t, err)
	revealB, err := mB.Reveal(kpB)
	require.NoError(t, err)
	revealC, err := mC.Reveal(kpC)
	require.NoError(t, err)

	allReveals := []types.RandomnessReveal{revealA, revealB, revealC}
	for _, m := range []*Machine{mA, mB, mC} {
		for _, r := range allReveals {
			if r.Peer == m.localPeer {
				continue
			}
			require.NoError(t, m.RecordReveal(r))
		}
	}

	require.True(t, mA.Round.Complete())
	op, err := mA.Finalize()
	require.NoError(t, err)
	require.Equal(t, types.OpProcessRoll, op.Kind)
	require.NoError(t, op.Dice.Validate())
	require.Len(t, op.EntropyProof, 3)

	leaves := make([]types.Hash32, len(mA.Round.Participants))
	for i, p := range mA.Round.Participants {
		leaves[i] = mA.Round.Commitments[p].Commitment
	}
	root := merkle.New(leaves).Root()
	for _, entry := range op.EntropyProof {
		proof := merkle.Proof{Siblings: entry.Siblings, Directions: entry.Directions, PathLen: entry.PathLen}
		require.True(t, merkle.Verify(root, entry.Commitment, proof))
	}

	// Every replica must independently derive the identical dice roll.
	opB, err := mB.Finalize()
	require.NoError(t, err)
	require.Equal(t, op.Dice, opB.Dice)
}

// S4 — Byzantine duplicate reveal: B replays A's nonce instead of
// revealing its own.
func TestRoundDuplicateNonceReveal(t *testing.T) {
	verifyCache := crypto.NewVerifyCache(0)
	kpA, a := newTestPeer(t)
	kpB, b := newTestPeer(t)
	participants := []types.PeerId{a, b}

	var roundId [16]byte
	roundId[0] = 2

	mA := New(roundId, participants, 0, verifyCache, nil)
	mB := New(roundId, participants, 0, verifyCache, nil)

	poolA := crypto.NewTestEntropyPool([32]byte{5})
	poolB := crypto.NewTestEntropyPool([32]byte{6})

	commitA, err := mA.StartCommitting(kpA, poolA, 0)
	require.NoError(t, err)
	commitB, err := mB.StartCommitting(kpB, poolB, 0)
	require.NoError(t, err)

	_, err = mA.RecordCommit(commitB)
	require.NoError(t, err)
	_, err = mB.RecordCommit(commitA)
	require.NoError(t, err)
	require.Equal(t, types.RoundRevealing, mA.Round.Status)

	revealA, err := mA.Reveal(kpA)
	require.NoError(t, err)

	forged := types.RandomnessReveal{Peer: b, RoundId: roundId, Nonce: revealA.Nonce}
	forged.Signature = kpB.Sign(revealSignBytes(roundId, forged.Nonce))

	err = mA.RecordReveal(forged)
	require.Error(t, err)
	require.ErrorIs(t, err, types.ErrCommitMismatch)
	require.Len(t, mA.Round.ByzantineLog, 1)
	require.Equal(t, "DuplicateNonce", mA.Round.ByzantineLog[0].Kind)
	require.Equal(t, b, mA.Round.ByzantineLog[0].Peer)

	_, stillRevealed := mA.Round.Reveals[b]
	require.False(t, stillRevealed)
}

func TestRoundInvalidRevealRejected(t *testing.T) {
	kpA, a := newTestPeer(t)
	_, b := newTestPeer(t)
	participants := []types.PeerId{a, b}

	var roundId [16]byte
	roundId[0] = 4

	// nil verify cache: this test exercises commitment-hash mismatch
	// detection, not signature verification.
	mA := New(roundId, participants, 0, nil, nil)
	poolA := crypto.NewTestEntropyPool([32]byte{9})

	_, err := mA.StartCommitting(kpA, poolA, 0)
	require.NoError(t, err)

	fakeCommit := types.RandomnessCommit{Peer: b, RoundId: roundId, Commitment: types.Hash32{0xAA}}
	_, err = mA.RecordCommit(fakeCommit)
	require.NoError(t, err)
	require.Equal(t, types.RoundRevealing, mA.Round.Status)

	var wrongNonce [32]byte
	wrongNonce[0] = 0xFF
	bogus := types.RandomnessReveal{Peer: b, RoundId: roundId, Nonce: wrongNonce}
	err = mA.RecordReveal(bogus)
	require.ErrorIs(t, err, types.ErrCommitMismatch)
	require.Len(t, mA.Round.ByzantineLog, 1)
	require.Equal(t, "InvalidReveal", mA.Round.ByzantineLog[0].Kind)
}

func TestRoundTimeoutAbortsNonRevealer(t *testing.T) {
	verifyCache := crypto.NewVerifyCache(0)
	kpA, a := newTestPeer(t)
	kpB, b := newTestPeer(t)
	participants := []types.PeerId{a, b}
	var roundId [16]byte
	roundId[0] = 3

	m := New(roundId, participants, 100, verifyCache, nil).WithTimeout(15)
	poolA := crypto.NewTestEntropyPool([32]byte{7})
	_, err := m.StartCommitting(kpA, poolA, 100)
	require.NoError(t, err)

	mB := New(roundId, participants, 100, verifyCache, nil)
	poolB := crypto.NewTestEntropyPool([32]byte{8})
	commitB, err := mB.StartCommitting(kpB, poolB, 100)
	require.NoError(t, err)

	_, err = m.RecordCommit(commitB)
	require.NoError(t, err)
	require.Equal(t, types.RoundRevealing, m.Round.Status)

	_, err = m.Reveal(kpA)
	require.NoError(t, err)

	require.False(t, m.CheckTimeout(110))
	require.True(t, m.CheckTimeout(120))
	require.Equal(t, types.RoundAborted, m.Round.Status)
	require.Len(t, m.Round.ByzantineLog, 1)
	require.Equal(t, "Timeout", m.Round.ByzantineLog[0].Kind)
	require.Equal(t, b, m.Round.ByzantineLog[0].Peer)
}

func TestRecordCommitRejectsDuplicateAndUnknownPeer(t *testing.T) {
	verifyCache := crypto.NewVerifyCache(0)
	kpA, a := newTestPeer(t)
	_, b := newTestPeer(t)
	_, stranger := newTestPeer(t)
	participants := []types.PeerId{a, b}
	var roundId [16]byte
	roundId[0] = 6

	m := New(roundId, participants, 0, verifyCache, nil)
	pool := crypto.NewTestEntropyPool([32]byte{10})
	commitA, err := m.StartCommitting(kpA, pool, 0)
	require.NoError(t, err)

	_, err = m.RecordCommit(commitA)
	require.ErrorIs(t, err, types.ErrDuplicateCommit)

	strangerCommit := types.RandomnessCommit{Peer: stranger, RoundId: roundId}
	_, err = m.RecordCommit(strangerCommit)
	require.ErrorIs(t, err, types.ErrNotParticipant)
}
