package betting

import (
	"github.com/meshdice/consensus/safemath"
	"github.com/meshdice/consensus/types"
)

// phaseAdmissible enforces the phase-admissibility rules from spec
// §4.6: line bets only on come-out, come/don't-come and place/buy/lay
// bets only once a point is established, field/proposition/hardway
// bets any time.
func phaseAdmissible(phase types.Phase, betType types.BetType) bool {
	switch betType {
	case types.PassLine, types.DontPass:
		return phase.Kind == types.ComeOut
	case types.Come, types.DontCome:
		return phase.Kind == types.PointPhase
	case types.Field, types.Any7, types.AnyCraps, types.Craps2, types.Craps3, types.Craps12, types.Yo11,
		types.Hard4, types.Hard6, types.Hard8, types.Hard10, types.Big6, types.Big8:
		return true
	default:
		if _, ok := pointOf(betType); ok {
			return phase.Kind == types.PointPhase
		}
		return false
	}
}

// PlaceBet validates phase admissibility and balance, deducts the
// stake (plus, for buy/lay, the 5% commission) from the bettor's
// balance, and records the bet. Returns the new GameState/Balances;
// the caller's originals are untouched.
func PlaceBet(state *types.GameState, balances types.Balances, peer types.PeerId, betType types.BetType, amount types.CrapTokens, maxBet types.CrapTokens) (*types.GameState, types.Balances, error) {
	if !betType.Valid() {
		return nil, nil, types.NewError(types.KindInvalidInput, "unknown bet type", nil)
	}
	if !phaseAdmissible(state.Phase, betType) {
		return nil, nil, types.ErrPhaseIllegal
	}
	balance := balances[peer]
	commission := Commission(betType, amount)
	total, err := safemath.AddTokens(amount, commission)
	if err != nil {
		return nil, nil, err
	}
	if err := safemath.ValidateBet(total, maxBet, balance); err != nil {
		return nil, nil, err
	}

	newState := state.Clone()
	newBalances := balances.Clone()
	key := types.BetKey{Peer: peer, Bet: betType}
	sum, err := safemath.AddTokens(newState.ActiveBets[key], amount)
	if err != nil {
		return nil, nil, err
	}
	newState.ActiveBets[key] = sum
	newBalances[peer], err = safemath.SubTokens(balance, total)
	if err != nil {
		return nil, nil, err
	}
	return newState, newBalances, nil
}

// Resolution is the outcome of one bet's settlement against a roll.
type Resolution struct {
	Peer    types.PeerId
	Bet     types.BetType
	Staked  types.CrapTokens
	Outcome Result
	Payout  types.CrapTokens // winnings only, excluding returned stake
}

// ResolveRoll applies every active bet against roll in canonical
// (PeerId, BetType) order, crediting wins (stake + payout) and
// removing losing/settled stakes, then advances the phase per spec
// §4.6's transition table. Pushed bets (e.g. a come-out 12 on Don't
// Pass) remain active untouched.
func ResolveRoll(state *types.GameState, balances types.Balances, roll types.DiceRoll) (*types.GameState, types.Balances, []Resolution, error) {
	if err := roll.Validate(); err != nil {
		return nil, nil, nil, err
	}
	newState := state.Clone()
	newBalances := balances.Clone()
	var resolutions []Resolution

	for _, key := range state.SortedBetKeys() {
		amount := state.ActiveBets[key]
		outcome, payout := Evaluate(key.Bet, state.Phase, roll)
		switch outcome {
		case Win:
			winnings, err := safemath.Payout(amount, payout.Num, payout.Den)
			if err != nil {
				return nil, nil, nil, err
			}
			credit, err := safemath.AddTokens(amount, winnings)
			if err != nil {
				return nil, nil, nil, err
			}
			newBalances[key.Peer], err = safemath.AddTokens(newBalances[key.Peer], credit)
			if err != nil {
				return nil, nil, nil, err
			}
			delete(newState.ActiveBets, key)
			resolutions = append(resolutions, Resolution{Peer: key.Peer, Bet: key.Bet, Staked: amount, Outcome: Win, Payout: winnings})

		case Lose:
			delete(newState.ActiveBets, key)
			resolutions = append(resolutions, Resolution{Peer: key.Peer, Bet: key.Bet, Staked: amount, Outcome: Lose})

		case Push:
			// bet stays active, nothing to settle
		}
	}

	newState.History = append(newState.History, roll)
	newState.RollCount++
	newState.Phase = nextPhase(state.Phase, roll)
	return newState, newBalances, resolutions, nil
}

// nextPhase implements spec §4.6's transition table.
func nextPhase(phase types.Phase, roll types.DiceRoll) types.Phase {
	total := roll.Total()
	if phase.Kind == types.ComeOut {
		switch total {
		case 4, 5, 6, 8, 9, 10:
			return types.Phase{Kind: types.PointPhase, Point: uint8(total)}
		default:
			return types.Phase{Kind: types.ComeOut}
		}
	}
	if total == 7 || total == int(phase.Point) {
		return types.Phase{Kind: types.ComeOut}
	}
	return phase
}
