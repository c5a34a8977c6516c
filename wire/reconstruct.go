package wire

import (
	"github.com/meshdice/consensus/safemath"
	"github.com/meshdice/consensus/types"
)

// PeerHashIndex resolves a PeerHash back to a full PeerId, needed
// because deltas only carry the compact hash. Callers build this from
// the known participant set.
type PeerHashIndex map[PeerHash]types.PeerId

// NewPeerHashIndex builds a lookup table for the given participants.
func NewPeerHashIndex(peers []types.PeerId) PeerHashIndex {
	idx := make(PeerHashIndex, len(peers))
	for _, p := range peers {
		idx[HashPeer(p)] = p
	}
	return idx
}

// ApplyDeltas reconstructs a GameState/Balances pair by applying deltas
// in order atop a base. The result is deterministic and, for any given
// base+deltas, must hash identically to applying the equivalent
// GameOperations directly (spec invariant: base+deltas round-trip).
func ApplyDeltas(baseState *types.GameState, baseBalances types.Balances, idx PeerHashIndex, deltas []Delta) (*types.GameState, types.Balances, error) {
	state := baseState.Clone()
	balances := baseBalances.Clone()

	for _, d := range deltas {
		switch d.Type {
		case DeltaNewBet:
			bet, err := DecodeNewBet(d)
			if err != nil {
				return nil, nil, err
			}
			peer, ok := idx[bet.PeerHash]
			if !ok {
				return nil, nil, types.NewError(types.KindValidationError, "delta references unknown peer hash", nil)
			}
			key := types.BetKey{Peer: peer, Bet: types.BetType(bet.BetType)}
			sum, err := safemath.AddTokens(state.ActiveBets[key], types.CrapTokens(bet.Amount))
			if err != nil {
				return nil, nil, err
			}
			state.ActiveBets[key] = sum

		case DeltaDiceRoll:
			roll, err := DecodeDiceRoll(d)
			if err != nil {
				return nil, nil, err
			}
			state.History = append(state.History, roll)
			state.RollCount++

		case DeltaPhaseChange:
			if len(d.Payload) != 1 {
				return nil, nil, types.NewError(types.KindInvalidData, "malformed PhaseChange delta", nil)
			}
			switch CompactPhase(d.Payload[0]) {
			case CompactComeOut:
				state.Phase = types.Phase{Kind: types.ComeOut}
			case CompactPoint:
				state.Phase = types.Phase{Kind: types.PointPhase, Point: state.Phase.Point}
			case CompactEnded, CompactGameEnded:
				state.Phase = types.Phase{Kind: types.Ended}
			}

		case DeltaBalanceUpdate:
			peerHash, delta, err := DecodeBalanceUpdate(d)
			if err != nil {
				return nil, nil, err
			}
			peer, ok := idx[peerHash]
			if !ok {
				return nil, nil, types.NewError(types.KindValidationError, "delta references unknown peer hash", nil)
			}
			updated, err := safemath.ApplyBalanceDelta(balances[peer], delta)
			if err != nil {
				return nil, nil, err
			}
			balances[peer] = updated

		case DeltaPointChange:
			if len(d.Payload) != 1 {
				return nil, nil, types.NewError(types.KindInvalidData, "malformed PointChange delta", nil)
			}
			state.Phase = types.Phase{Kind: types.PointPhase, Point: d.Payload[0]}

		default:
			return nil, nil, types.NewError(types.KindProtocol, "unknown delta type", nil)
		}
	}
	return state, balances, nil
}
