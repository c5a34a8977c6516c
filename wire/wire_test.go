package wire

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meshdice/consensus/types"
)

// S5 — varint round-trip for a representative set of values including
// the u64 maximum.
func TestVarintRoundTrip(t *testing.T) {
	values := []uint64{0, 127, 128, 16383, 16384, math.MaxUint64}
	for _, v := range values {
		buf := PutUvarint(nil, v)
		require.Equal(t, EncodedSize(v), len(buf))
		got, n, err := ReadUvarint(buf)
		require.NoError(t, err)
		require.Equal(t, v, got)
		require.Equal(t, len(buf), n)
	}
}

func TestZigZagRoundTrip(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 1000, -1000, math.MaxInt64, math.MinInt64} {
		require.Equal(t, v, ZigZagDecode(ZigZagEncode(v)))
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	e := Envelope{Version: LocalVersion, MsgType: MsgProposal, Flags: 0x1, Payload: []byte("hello")}
	buf := e.Encode()
	got, err := DecodeEnvelope(buf)
	require.NoError(t, err)
	require.Equal(t, e.MsgType, got.MsgType)
	require.Equal(t, e.Payload, got.Payload)
}

func TestEnvelopeRejectsMajorMismatch(t *testing.T) {
	e := Envelope{Version: Version{Major: LocalVersion.Major + 1}, MsgType: MsgVote}
	buf := e.Encode()
	_, err := DecodeEnvelope(buf)
	require.ErrorIs(t, err, types.ErrVersionIncompat)
}

func TestEnvelopeRejectsBadPayloadLen(t *testing.T) {
	e := Envelope{Version: LocalVersion, MsgType: MsgVote, Payload: []byte("x")}
	buf := e.Encode()
	buf = buf[:len(buf)-1] // truncate payload without fixing payload_len
	_, err := DecodeEnvelope(buf)
	require.Error(t, err)
}

func TestNegotiateVersion(t *testing.T) {
	local := Version{1, 4, 0}
	v, mode := Negotiate(local, Version{1, 4, 0})
	require.Equal(t, local, v)
	require.Equal(t, ModeFull, mode)

	v, mode = Negotiate(local, Version{1, 2, 0})
	require.Equal(t, Version{1, 2, 0}, v)
	require.Equal(t, ModeLimited, mode)

	v, mode = Negotiate(local, Version{1, 0, 0})
	require.Equal(t, MinSupportedVersion, v)
	require.Equal(t, ModeLegacy, mode)

	_, mode = Negotiate(local, Version{2, 0, 0})
	require.Equal(t, ModeIncompatible, mode)
}

func TestSupportsFeature(t *testing.T) {
	require.True(t, SupportsFeature(Version{1, 4, 0}, ProofOfRelay))
	require.False(t, SupportsFeature(Version{1, 2, 0}, ProofOfRelay))
	require.False(t, SupportsFeature(Version{1, 9, 9}, CrossChainBridge))
}

func TestTLVRoundTripAndDuplicateSingleton(t *testing.T) {
	var peerID [32]byte
	peerID[0] = 0xAB
	fields := []TLV{
		{Type: TLVPeerID, Value: peerID[:]},
		{Type: TLVPayload, Value: []byte("place bet")},
	}
	buf := EncodeTLVs(fields)
	parsed, err := ParseTLVs(buf, DefaultParseLimits)
	require.NoError(t, err)
	require.Equal(t, peerID[:], Find(parsed, TLVPeerID))

	dup := EncodeTLVs([]TLV{{Type: TLVPeerID, Value: peerID[:]}, {Type: TLVPeerID, Value: peerID[:]}})
	_, err = ParseTLVs(dup, DefaultParseLimits)
	require.Error(t, err)
}

func TestTLVRejectsWrongFixedSize(t *testing.T) {
	bad := EncodeTLVs([]TLV{{Type: TLVHash, Value: []byte("short")}})
	_, err := ParseTLVs(bad, DefaultParseLimits)
	require.Error(t, err)
}

func TestTLVRejectsOversizedPayload(t *testing.T) {
	big := make([]byte, 100)
	buf := EncodeTLVs([]TLV{{Type: TLVPayload, Value: big}})
	_, err := ParseTLVs(buf, ParseLimits{MaxTotalBytes: 10, MaxFields: 10})
	require.Error(t, err)
}

func TestCompactGameStateRoundTrip(t *testing.T) {
	var gameID types.GameId
	gameID[0] = 0x42
	peer := types.PeerId{1, 2, 3}
	s := CompactGameState{
		GameID:      gameID,
		Flags:       flagHasPoint,
		Point:       6,
		Phase:       CompactPoint,
		RollCount:   3,
		HotStreak:   1,
		PlayerCount: 2,
		Bets: []CompactBet{
			{PeerHash: HashPeer(peer), BetType: uint8(types.PassLine), Amount: 100, TimestampDelta: 5},
		},
		Balances: []CompactBalance{
			{PeerHash: HashPeer(peer), Amount: 900},
		},
	}
	buf := s.Encode()
	got, err := DecodeCompactGameState(buf)
	require.NoError(t, err)
	require.Equal(t, s.GameID, got.GameID)
	require.Equal(t, s.Point, got.Point)
	require.Equal(t, s.Phase, got.Phase)
	require.Len(t, got.Bets, 1)
	require.Equal(t, s.Bets[0].Amount, got.Bets[0].Amount)
	require.Len(t, got.Balances, 1)
	require.Equal(t, s.Balances[0].Amount, got.Balances[0].Amount)
}

func TestCompactGameStateChecksumRejectsCorruption(t *testing.T) {
	s := CompactGameState{Phase: CompactComeOut}
	buf := s.Encode()
	buf[len(buf)-1] ^= 0xFF // corrupt the tail's last byte (var_len is 2: the two zero counts) and a header byte
	buf[0] ^= 0xFF
	_, err := DecodeCompactGameState(buf)
	require.Error(t, err)
}

func TestDeltaRoundTrip(t *testing.T) {
	roll := types.DiceRoll{Die1: 3, Die2: 4}
	d := EncodeDiceRoll(7, roll)
	buf := d.Encode()
	got, consumed, err := DecodeDelta(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), consumed)
	gotRoll, err := DecodeDiceRoll(got)
	require.NoError(t, err)
	require.Equal(t, roll, gotRoll)
}

func TestApplyDeltasMatchesDirectMutation(t *testing.T) {
	peer := types.PeerId{9}
	base := types.NewGameState([]types.PeerId{peer})
	balances := types.Balances{peer: 1000}
	idx := NewPeerHashIndex([]types.PeerId{peer})

	bet := CompactBet{PeerHash: HashPeer(peer), BetType: uint8(types.PassLine), Amount: 100}
	deltas := []Delta{
		EncodeNewBet(1, bet),
		EncodeDiceRoll(2, types.DiceRoll{Die1: 3, Die2: 4}),
		EncodeBalanceUpdate(3, HashPeer(peer), -100),
	}

	gotState, gotBalances, err := ApplyDeltas(base, balances, idx, deltas)
	require.NoError(t, err)

	direct := base.Clone()
	direct.ActiveBets[types.BetKey{Peer: peer, Bet: types.PassLine}] = 100
	direct.History = append(direct.History, types.DiceRoll{Die1: 3, Die2: 4})
	direct.RollCount++
	directBalances := balances.Clone()
	directBalances[peer] = 900

	require.Equal(t, direct.CanonicalBytes(), gotState.CanonicalBytes())
	require.Equal(t, directBalances.CanonicalBytes(), gotBalances.CanonicalBytes())
}
