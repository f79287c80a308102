package settlement

import (
	"errors"
	"fmt"

	"github.com/xraph/settlement/id"
	"github.com/xraph/settlement/lock"
	"github.com/xraph/settlement/types"
)

// Sentinel errors for common failure scenarios.
var (
	// Protocol violations
	ErrAlreadyUnlocked = lock.ErrAlreadyUnlocked
	ErrNotUnlocked     = lock.ErrNotUnlocked
	ErrSessionClosed   = errors.New("settlement: session closed")
	ErrSessionAborted  = errors.New("settlement: session aborted")

	// Settlement violations
	ErrUnsettledBalance = errors.New("settlement: unsettled balance")

	// Argument violations
	ErrNonPositiveAmount   = errors.New("settlement: amount must be positive")
	ErrNonNegativeAmount   = errors.New("settlement: amount must be negative")
	ErrInsufficientBalance = errors.New("settlement: insufficient claim balance")
	ErrTooManyKeys         = errors.New("settlement: too many touched keys")
	ErrTransferFailed      = errors.New("settlement: transfer failed")
	ErrHookRejected        = errors.New("settlement: rejected by hook")

	// Arithmetic violations
	ErrArithmeticOverflow = errors.New("settlement: arithmetic overflow")

	// Store errors
	ErrNotFound     = errors.New("settlement: not found")
	ErrCommitFailed = errors.New("settlement: commit failed")

	// Custody errors
	ErrRefundFailed = errors.New("settlement: refund failed")
)

// UnsettledBalanceError reports the first touched key with a nonzero delta
// when a session tries to close.
type UnsettledBalanceError struct {
	SessionID   id.SessionID
	Participant types.Participant
	Currency    types.Currency
	Residual    types.Amount
	// Outstanding is the number of keys still nonzero.
	Outstanding int
}

func (e *UnsettledBalanceError) Error() string {
	return fmt.Sprintf("settlement: unsettled balance: participant %s currency %s residual %s (%d outstanding)",
		e.Participant, e.Currency, e.Residual, e.Outstanding)
}

// Unwrap returns ErrUnsettledBalance.
func (e *UnsettledBalanceError) Unwrap() error { return ErrUnsettledBalance }

// OperationError reports a rejected take, settle, mint or burn.
type OperationError struct {
	Op          string
	Participant types.Participant
	Currency    types.Currency
	Amount      types.Amount
	Err         error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("settlement: %s %s of %s for %s: %v",
		e.Op, e.Amount, e.Currency, e.Participant, e.Err)
}

// Unwrap returns the underlying cause.
func (e *OperationError) Unwrap() error { return e.Err }

// IsProtocolViolation reports whether err stems from misuse of the session
// protocol. Such errors abort the session.
func IsProtocolViolation(err error) bool {
	return errors.Is(err, ErrAlreadyUnlocked) ||
		errors.Is(err, ErrNotUnlocked) ||
		errors.Is(err, ErrSessionClosed) ||
		errors.Is(err, ErrSessionAborted)
}

// IsSettlementViolation reports whether err is a nonzero residual at close.
func IsSettlementViolation(err error) bool {
	return errors.Is(err, ErrUnsettledBalance)
}

// IsArgumentViolation reports whether err is a locally recoverable rejection
// of a single operation.
func IsArgumentViolation(err error) bool {
	return errors.Is(err, ErrNonPositiveAmount) ||
		errors.Is(err, ErrNonNegativeAmount) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrTooManyKeys) ||
		errors.Is(err, ErrTransferFailed) ||
		errors.Is(err, ErrHookRejected)
}

// IsArithmeticViolation reports whether err is an overflow. Overflows are
// fatal to the session.
func IsArithmeticViolation(err error) bool {
	return errors.Is(err, ErrArithmeticOverflow)
}
