package betting

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meshdice/consensus/types"
)

func peer(b byte) types.PeerId {
	var p types.PeerId
	p[0] = b
	return p
}

// S1 — pass line win on come-out seven.
func TestResolveRollPassLineWinOnComeOutSeven(t *testing.T) {
	players := []types.PeerId{peer(1), peer(2), peer(3)}
	state := types.NewGameState(players)
	balances := types.Balances{}
	for _, p := range players {
		balances[p] = 1000
		var err error
		state, balances, err = PlaceBet(state, balances, p, types.PassLine, 100, 10000)
		require.NoError(t, err)
	}

	newState, newBalances, resolutions, err := ResolveRoll(state, balances, types.DiceRoll{Die1: 3, Die2: 4})
	require.NoError(t, err)
	require.Equal(t, types.ComeOut, newState.Phase.Kind)
	require.Len(t, resolutions, 3)
	for _, p := range players {
		require.Equal(t, types.CrapTokens(1100), newBalances[p])
	}
}

// S2 — point established, then seven-out.
func TestResolveRollPointThenSevenOut(t *testing.T) {
	p := peer(1)
	state := types.NewGameState([]types.PeerId{p})
	balances := types.Balances{p: 1000}
	var err error
	state, balances, err = PlaceBet(state, balances, p, types.PassLine, 100, 10000)
	require.NoError(t, err)

	state, balances, _, err = ResolveRoll(state, balances, types.DiceRoll{Die1: 2, Die2: 4})
	require.NoError(t, err)
	require.Equal(t, types.PointPhase, state.Phase.Kind)
	require.Equal(t, uint8(6), state.Phase.Point)
	require.Equal(t, types.CrapTokens(900), balances[p]) // stake still outstanding

	state, balances, resolutions, err := ResolveRoll(state, balances, types.DiceRoll{Die1: 3, Die2: 4})
	require.NoError(t, err)
	require.Equal(t, types.ComeOut, state.Phase.Kind)
	require.Len(t, resolutions, 1)
	require.Equal(t, Lose, resolutions[0].Outcome)
	require.Equal(t, types.CrapTokens(900), balances[p]) // stake lost, stays debited
}

func TestPlaceBetRejectsWrongPhase(t *testing.T) {
	p := peer(1)
	state := types.NewGameState([]types.PeerId{p})
	state.Phase = types.Phase{Kind: types.PointPhase, Point: 6}
	balances := types.Balances{p: 1000}
	_, _, err := PlaceBet(state, balances, p, types.PassLine, 100, 10000)
	require.ErrorIs(t, err, types.ErrPhaseIllegal)
}

func TestPlaceBetDeductsCommissionForBuyBets(t *testing.T) {
	p := peer(1)
	state := types.NewGameState([]types.PeerId{p})
	state.Phase = types.Phase{Kind: types.PointPhase, Point: 6}
	balances := types.Balances{p: 1000}
	_, newBalances, err := PlaceBet(state, balances, p, types.Buy6, 100, 10000)
	require.NoError(t, err)
	require.Equal(t, types.CrapTokens(895), newBalances[p]) // 100 stake + 5 commission
}

func TestFieldBetDoublePayoutOnTwo(t *testing.T) {
	result, payout := Evaluate(types.Field, types.Phase{Kind: types.ComeOut}, types.DiceRoll{Die1: 1, Die2: 1})
	require.Equal(t, Win, result)
	require.Equal(t, uint64(2), payout.Num)
}

func TestHardwayRequiresMatchingDice(t *testing.T) {
	result, _ := Evaluate(types.Hard6, types.Phase{}, types.DiceRoll{Die1: 3, Die2: 3})
	require.Equal(t, Win, result)

	result, _ = Evaluate(types.Hard6, types.Phase{}, types.DiceRoll{Die1: 2, Die2: 4})
	require.Equal(t, Lose, result)
}
