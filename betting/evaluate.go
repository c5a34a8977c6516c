package betting

import "github.com/meshdice/consensus/types"

// Result is a single bet's outcome against one roll.
type Result int

const (
	Push Result = iota
	Win
	Lose
)

// Evaluate resolves bet against phase/roll, mirroring
// craps_rules.rs's per-bet-family match arms. Field and the
// single-total proposition bets key entirely off the roll and ignore
// phase; line/come bets key off phase; place/buy/lay/hardway bets key
// off a fixed point number.
func Evaluate(betType types.BetType, phase types.Phase, roll types.DiceRoll) (Result, Payout) {
	total := roll.Total()

	switch betType {
	case types.PassLine, types.Come:
		return evaluateLine(phase, total), even

	case types.DontPass, types.DontCome:
		return evaluateDontLine(phase, total), even

	case types.Field:
		return evaluateField(total)

	case types.Any7:
		if total == 7 {
			return Win, payoutTable[betType]
		}
		return Lose, payoutTable[betType]

	case types.AnyCraps:
		if total == 2 || total == 3 || total == 12 {
			return Win, payoutTable[betType]
		}
		return Lose, payoutTable[betType]

	case types.Craps2:
		return propResult(total == 2), payoutTable[betType]
	case types.Craps3:
		return propResult(total == 3), payoutTable[betType]
	case types.Craps12:
		return propResult(total == 12), payoutTable[betType]
	case types.Yo11:
		return propResult(total == 11), payoutTable[betType]

	case types.Big6:
		return evaluatePlace(6, total), even
	case types.Big8:
		return evaluatePlace(8, total), even

	case types.Hard4, types.Hard6, types.Hard8, types.Hard10:
		point, _ := pointOf(betType)
		return evaluateHardway(point, roll), payoutTable[betType]

	default:
		if point, ok := pointOf(betType); ok {
			return evaluatePlace(point, total), payoutTable[betType]
		}
		return Push, even
	}
}

func propResult(hit bool) Result {
	if hit {
		return Win
	}
	return Lose
}

func evaluateLine(phase types.Phase, total int) Result {
	if phase.Kind == types.ComeOut {
		switch total {
		case 7, 11:
			return Win
		case 2, 3, 12:
			return Lose
		default:
			return Push
		}
	}
	switch {
	case total == int(phase.Point):
		return Win
	case total == 7:
		return Lose
	default:
		return Push
	}
}

func evaluateDontLine(phase types.Phase, total int) Result {
	if phase.Kind == types.ComeOut {
		switch total {
		case 2, 3:
			return Win
		case 7, 11:
			return Lose
		default:
			// 12 pushes ("bar the 12"); every other come-out number
			// rolls forward into Point phase and doesn't resolve here.
			return Push
		}
	}
	switch {
	case total == 7:
		return Win
	case total == int(phase.Point):
		return Lose
	default:
		return Push
	}
}

func evaluateField(total int) (Result, Payout) {
	switch total {
	case 2:
		return Win, Payout{2, 1}
	case 12:
		return Win, Payout{3, 1}
	case 3, 4, 9, 10, 11:
		return Win, even
	default:
		return Lose, even
	}
}

func evaluatePlace(point uint8, total int) Result {
	switch {
	case total == int(point):
		return Win
	case total == 7:
		return Lose
	default:
		return Push
	}
}

func evaluateHardway(point uint8, roll types.DiceRoll) Result {
	total := roll.Total()
	switch {
	case total == int(point) && roll.IsHard():
		return Win
	case total == 7 || (total == int(point) && !roll.IsHard()):
		return Lose
	default:
		return Push
	}
}
