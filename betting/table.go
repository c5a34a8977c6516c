// Package betting implements the deterministic bet-resolution engine
// (spec component C6): the payout table, phase admissibility, and
// resolve_roll's atomic settlement of every active bet against a dice
// roll.
//
// Grounded on original_source/src/gaming/craps_rules.rs's CrapsRules
// table and process_roll loop, adapted to the canonical-order,
// checked-arithmetic discipline the replicated state machine requires.
package betting

import "github.com/meshdice/consensus/types"

// Payout is a num/den payout fraction (spec §6.1). House edge is
// informational only and not evaluated at runtime.
type Payout struct {
	Num, Den uint64
}

var even = Payout{1, 1}

// payoutTable is the normative bet-type -> payout map, proposition bets
// included. Field has no entry: its payout depends on the roll, so
// evaluateField computes it separately.
var payoutTable = map[types.BetType]Payout{
	types.PassLine: even,
	types.DontPass: even,
	types.Come:     even,
	types.DontCome: even,

	types.Place4:  {9, 5},
	types.Place10: {9, 5},
	types.Place5:  {7, 5},
	types.Place9:  {7, 5},
	types.Place6:  {7, 6},
	types.Place8:  {7, 6},

	types.Buy4:  {2, 1},
	types.Buy10: {2, 1},
	types.Buy5:  {3, 2},
	types.Buy9:  {3, 2},
	types.Buy6:  {6, 5},
	types.Buy8:  {6, 5},

	types.Lay4:  {1, 2},
	types.Lay10: {1, 2},
	types.Lay5:  {2, 3},
	types.Lay9:  {2, 3},
	types.Lay6:  {5, 6},
	types.Lay8:  {5, 6},

	types.Hard4:  {7, 1},
	types.Hard10: {7, 1},
	types.Hard6:  {9, 1},
	types.Hard8:  {9, 1},

	types.Any7:     {4, 1},
	types.AnyCraps: {7, 1},
	types.Craps2:   {30, 1},
	types.Craps12:  {30, 1},
	types.Craps3:   {15, 1},
	types.Yo11:     {15, 1},

	types.Big6: even,
	types.Big8: even,
}

// CommissionBps is the buy/lay commission rate, 5% of stake, deducted
// at placement time (spec §6.1).
const CommissionBps = 500

func isBuyOrLay(b types.BetType) bool {
	switch b {
	case types.Buy4, types.Buy5, types.Buy6, types.Buy8, types.Buy9, types.Buy10,
		types.Lay4, types.Lay5, types.Lay6, types.Lay8, types.Lay9, types.Lay10:
		return true
	default:
		return false
	}
}

// Commission returns the 5% stake commission for buy/lay bets, 0 for
// every other bet type.
func Commission(betType types.BetType, amount types.CrapTokens) types.CrapTokens {
	if !isBuyOrLay(betType) {
		return 0
	}
	// Split into quotient and remainder so the multiplication cannot wrap.
	a := uint64(amount)
	return types.CrapTokens(a/10000*CommissionBps + a%10000*CommissionBps/10000)
}

func pointOf(b types.BetType) (uint8, bool) {
	switch b {
	case types.Place4, types.Buy4, types.Lay4, types.Hard4:
		return 4, true
	case types.Place5, types.Buy5, types.Lay5:
		return 5, true
	case types.Place6, types.Buy6, types.Lay6, types.Hard6:
		return 6, true
	case types.Place8, types.Buy8, types.Lay8, types.Hard8:
		return 8, true
	case types.Place9, types.Buy9, types.Lay9:
		return 9, true
	case types.Place10, types.Buy10, types.Lay10, types.Hard10:
		return 10, true
	default:
		return 0, false
	}
}
