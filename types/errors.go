// Package types defines the data model shared by every consensus
// component: identifiers, game state, consensus state, the operation
// union, proposals, votes, forks, randomness commit/reveal, rounds and
// disputes.
package types

// Kind classifies an error for metrics and propagation-policy decisions
// (see the error handling design: codec/crypto/validation errors are
// local and rejection-only, state-machine errors abort the proposal
// without corrupting the last finalized state).
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidData
	KindInvalidInput
	KindInvalidTimestamp
	KindArithmeticOverflow
	KindDivisionByZero
	KindInsufficientFunds
	KindCrypto
	KindValidationError
	KindResourceExhausted
	KindProtocol
)

func (k Kind) String() string {
	switch k {
	case KindInvalidData:
		return "InvalidData"
	case KindInvalidInput:
		return "InvalidInput"
	case KindInvalidTimestamp:
		return "InvalidTimestamp"
	case KindArithmeticOverflow:
		return "ArithmeticOverflow"
	case KindDivisionByZero:
		return "DivisionByZero"
	case KindInsufficientFunds:
		return "InsufficientFunds"
	case KindCrypto:
		return "Crypto"
	case KindValidationError:
		return "ValidationError"
	case KindResourceExhausted:
		return "ResourceExhausted"
	case KindProtocol:
		return "Protocol"
	default:
		return "Unknown"
	}
}

// Error is the typed error every core component returns instead of
// panicking. Wrap with fmt.Errorf("...: %w", err) to add context while
// keeping errors.Is/As working against the sentinels below.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Msg + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, so callers
// can do errors.Is(err, &types.Error{Kind: types.KindCrypto}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewError constructs a Kind-tagged error, optionally wrapping a cause.
func NewError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// Sentinel errors for common rejection reasons, matching the teacher's
// flat sentinel-error-variable style (types/errors.go in luxfi-consensus).
var (
	ErrGameIDZero       = NewError(KindInvalidInput, "game id is all-zero", nil)
	ErrGameIDAllOnes    = NewError(KindInvalidInput, "game id is all-ones", nil)
	ErrDiceOutOfRange   = NewError(KindInvalidInput, "die value out of 1..6 range", nil)
	ErrPhaseIllegal     = NewError(KindInvalidInput, "operation illegal for current phase", nil)
	ErrStaleState       = NewError(KindValidationError, "previous_state_hash does not match current state", nil)
	ErrDuplicateVote    = NewError(KindValidationError, "peer already voted on this proposal", nil)
	ErrUnknownRound     = NewError(KindValidationError, "no round with this round_id", nil)
	ErrDuplicateCommit  = NewError(KindValidationError, "peer already committed for this round", nil)
	ErrDuplicateReveal  = NewError(KindValidationError, "peer already revealed for this round", nil)
	ErrCommitMismatch   = NewError(KindCrypto, "reveal does not hash to the stored commitment", nil)
	ErrBadSignature     = NewError(KindCrypto, "signature verification failed", nil)
	ErrNotParticipant   = NewError(KindValidationError, "peer is not a participant", nil)
	ErrTooManyRounds    = NewError(KindResourceExhausted, "max_active_rounds exceeded", nil)
	ErrTooManyPlayers   = NewError(KindResourceExhausted, "max_players_per_game exceeded", nil)
	ErrUnknownMsgType   = NewError(KindProtocol, "unknown message type", nil)
	ErrVersionIncompat  = NewError(KindProtocol, "incompatible protocol major version", nil)
	ErrArithmeticWrap   = NewError(KindArithmeticOverflow, "arithmetic would overflow or underflow", nil)
	ErrDivideByZero     = NewError(KindDivisionByZero, "division by zero", nil)
	ErrInsufficientFund = NewError(KindInsufficientFunds, "insufficient balance", nil)
)
