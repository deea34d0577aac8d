package ledger

import (
	"errors"
	"fmt"
)

// Error is a rule violation reported by a ledger operation.
//
// An operation that returns an *Error has produced no durable effect once the
// caller rolls back its Tx. Infrastructure failures (storage, context) are
// returned as plain wrapped errors instead.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any (TransferFailed).
	Err error
}

// ErrorCode categorizes ledger errors.
type ErrorCode string

const (
	// ErrCodeInvalidAmount indicates a deposit value that is not positive or overflows.
	ErrCodeInvalidAmount ErrorCode = "INVALID_AMOUNT"

	// ErrCodeUnauthorized indicates the caller failed the owner gate, or an
	// anonymous deposit.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// ErrCodePaused indicates a deposit while the pause switch is on.
	ErrCodePaused ErrorCode = "PAUSED"

	// ErrCodeIndexOutOfRange indicates a donation lookup past the end of the log.
	ErrCodeIndexOutOfRange ErrorCode = "INDEX_OUT_OF_RANGE"

	// ErrCodeNoFunds indicates a withdrawal with zero balance.
	ErrCodeNoFunds ErrorCode = "NO_FUNDS"

	// ErrCodeTransferFailed indicates the value transfer did not succeed.
	ErrCodeTransferFailed ErrorCode = "TRANSFER_FAILED"

	// ErrCodeAlreadyInitialized indicates a second call to Initialize.
	ErrCodeAlreadyInitialized ErrorCode = "ALREADY_INITIALIZED"

	// ErrCodeGenerationMismatch indicates an initializer or upgrade out of order.
	ErrCodeGenerationMismatch ErrorCode = "GENERATION_MISMATCH"

	// ErrCodeNotInitialized indicates a business call before Initialize.
	ErrCodeNotInitialized ErrorCode = "NOT_INITIALIZED"

	// ErrCodeUnsupported indicates a call the installed logic does not expose.
	ErrCodeUnsupported ErrorCode = "UNSUPPORTED"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the ErrorCode carried by err, or "" if err is not a ledger
// error. Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}

// IsCode reports whether err is a ledger error with the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

func newInvalidAmountError(amount Amount) *Error {
	return &Error{
		Code:    ErrCodeInvalidAmount,
		Message: fmt.Sprintf("deposit amount must be positive, got %d", amount),
	}
}

func newUnauthorizedError(caller Identity) *Error {
	return &Error{
		Code:    ErrCodeUnauthorized,
		Message: "caller is not the owner",
		Details: map[string]string{"caller": string(caller)},
	}
}

func newAnonymousSenderError() *Error {
	return &Error{
		Code:    ErrCodeUnauthorized,
		Message: "deposit sender must not be empty",
	}
}

func newPausedError() *Error {
	return &Error{
		Code:    ErrCodePaused,
		Message: "deposits are paused",
	}
}

func newIndexOutOfRangeError(index, length int64) *Error {
	return &Error{
		Code:    ErrCodeIndexOutOfRange,
		Message: fmt.Sprintf("donation index %d out of range (length %d)", index, length),
		Details: map[string]string{
			"index":  fmt.Sprintf("%d", index),
			"length": fmt.Sprintf("%d", length),
		},
	}
}

func newNoFundsError() *Error {
	return &Error{
		Code:    ErrCodeNoFunds,
		Message: "no funds to withdraw",
	}
}

func newTransferFailedError(to Identity, amount Amount, cause error) *Error {
	return &Error{
		Code:    ErrCodeTransferFailed,
		Message: fmt.Sprintf("transfer of %d to %s failed", amount, to),
		Err:     cause,
	}
}

func newAlreadyInitializedError(gen Generation) *Error {
	return &Error{
		Code:    ErrCodeAlreadyInitialized,
		Message: fmt.Sprintf("ledger already initialized (generation %d)", gen),
	}
}

// newSetupPendingError reports logic for want that is installed but whose
// initializer has not run.
func newSetupPendingError(current, want Generation) *Error {
	return &Error{
		Code:    ErrCodeGenerationMismatch,
		Message: fmt.Sprintf("generation %d is installed but not initialized; reinitialize first", want),
		Details: map[string]string{
			"current": fmt.Sprintf("%d", current),
			"target":  fmt.Sprintf("%d", want),
		},
	}
}

func newGenerationMismatchError(current, target Generation) *Error {
	return &Error{
		Code:    ErrCodeGenerationMismatch,
		Message: fmt.Sprintf("cannot move from generation %d to %d", current, target),
		Details: map[string]string{
			"current": fmt.Sprintf("%d", current),
			"target":  fmt.Sprintf("%d", target),
		},
	}
}

func newNotInitializedError() *Error {
	return &Error{
		Code:    ErrCodeNotInitialized,
		Message: "ledger is not initialized",
	}
}

func newUnsupportedError(version, op string) *Error {
	return &Error{
		Code:    ErrCodeUnsupported,
		Message: fmt.Sprintf("%s is not available in %s", op, version),
	}
}
