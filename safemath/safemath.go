// Package safemath implements the overflow-checked token and balance
// arithmetic (spec component C2). Every operation that could wrap is
// fallible; callers never see a silently-wrapped uint64.
package safemath

import (
	"math"

	"github.com/meshdice/consensus/types"
)

// AddTokens returns a+b, or ErrArithmeticWrap if it would overflow
// uint64.
func AddTokens(a, b types.CrapTokens) (types.CrapTokens, error) {
	if a > math.MaxUint64-b {
		return 0, types.ErrArithmeticWrap
	}
	return a + b, nil
}

// SubTokens returns a-b, or ErrArithmeticWrap if it would underflow.
func SubTokens(a, b types.CrapTokens) (types.CrapTokens, error) {
	if b > a {
		return 0, types.ErrArithmeticWrap
	}
	return a - b, nil
}

// MulTokens returns a*b, or ErrArithmeticWrap on overflow.
func MulTokens(a, b types.CrapTokens) (types.CrapTokens, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	r := a * b
	if r/a != b {
		return 0, types.ErrArithmeticWrap
	}
	return r, nil
}

// ApplyBalanceDelta routes to checked add/sub by the sign of delta,
// matching spec §4.2's apply_balance_delta(u64, i64) dispatch.
func ApplyBalanceDelta(balance types.CrapTokens, delta int64) (types.CrapTokens, error) {
	if delta >= 0 {
		return AddTokens(balance, types.CrapTokens(delta))
	}
	magnitude := types.CrapTokens(-delta)
	if magnitude > balance {
		return 0, types.ErrInsufficientFund
	}
	return SubTokens(balance, magnitude)
}

// Payout computes floor(bet * num / den) with checked multiplication.
// den == 0 is a programmer error in the betting table, not caller input,
// but we still refuse it rather than divide by zero.
func Payout(bet types.CrapTokens, num, den uint64) (types.CrapTokens, error) {
	if den == 0 {
		return 0, types.ErrDivideByZero
	}
	product, err := MulTokens(bet, types.CrapTokens(num))
	if err != nil {
		return 0, err
	}
	return types.CrapTokens(uint64(product) / den), nil
}

// ValidateBet enforces 0 < amount <= maxBet && amount <= balance.
func ValidateBet(amount, maxBet, balance types.CrapTokens) error {
	if amount == 0 {
		return types.NewError(types.KindInvalidInput, "bet amount must be > 0", nil)
	}
	if amount > maxBet {
		return types.NewError(types.KindInvalidInput, "bet amount exceeds max_bet", nil)
	}
	if amount > balance {
		return types.NewError(types.KindInsufficientFunds, "bet amount exceeds balance", types.ErrInsufficientFund)
	}
	return nil
}

// CeilLog2 computes the ceiling of log2(n), refusing to overflow a
// guarded multiplication the merkle tree would otherwise need to
// perform when sizing internal levels (spec §4.2: "refuses leaves >
// usize::MAX/4").
func CeilLog2(n uint64) (uint, error) {
	const maxLeaves = math.MaxUint64 / 4
	if n > maxLeaves {
		return 0, types.NewError(types.KindResourceExhausted, "leaf count exceeds guarded ceiling-log2 bound", nil)
	}
	if n <= 1 {
		return 0, nil
	}
	var depth uint
	v := uint64(1)
	for v < n {
		v <<= 1
		depth++
	}
	return depth, nil
}
