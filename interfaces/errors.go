package interfaces

import (
	"errors"
	"fmt"
)

// ErrorCode is the stable numeric code surfaced to callers of a failed ledger operation.
type ErrorCode uint32

const (
	CodeUnauthorized        ErrorCode = 1001
	CodeInvalidSubmission   ErrorCode = 1002
	CodeReserved            ErrorCode = 1003
	CodeInsufficientFunds   ErrorCode = 1004
	CodeAlreadyRegistered   ErrorCode = 1005
	CodeDuplicateSubmission ErrorCode = 1006
)

// String returns the error name for a code.
func (c ErrorCode) String() string {
	switch c {
	case CodeUnauthorized:
		return "UNAUTHORIZED"
	case CodeInvalidSubmission:
		return "INVALID-SUBMISSION"
	case CodeReserved:
		return "RESERVED"
	case CodeInsufficientFunds:
		return "INSUFFICIENT-FUNDS"
	case CodeAlreadyRegistered:
		return "ALREADY-REGISTERED"
	case CodeDuplicateSubmission:
		return "DUPLICATE-SUBMISSION"
	default:
		return fmt.Sprintf("ERR-%d", uint32(c))
	}
}

// LedgerError is a rejected operation. A rejection never changes state.
type LedgerError struct {
	Code ErrorCode
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("%s (%d)", e.Code, uint32(e.Code))
}

// Is matches any ledger error with the same code, so errors rebuilt from a
// wire code compare equal to the sentinels.
func (e *LedgerError) Is(target error) bool {
	t, ok := target.(*LedgerError)
	return ok && t.Code == e.Code
}

// ErrorForCode returns the ledger error carrying code.
func ErrorForCode(code ErrorCode) error {
	return &LedgerError{Code: code}
}

var (
	ErrUnauthorized        = &LedgerError{Code: CodeUnauthorized}
	ErrInvalidSubmission   = &LedgerError{Code: CodeInvalidSubmission}
	ErrInsufficientFunds   = &LedgerError{Code: CodeInsufficientFunds}
	ErrAlreadyRegistered   = &LedgerError{Code: CodeAlreadyRegistered}
	ErrDuplicateSubmission = &LedgerError{Code: CodeDuplicateSubmission}
)

// CodeOf extracts the ledger error code from a possibly wrapped error.
// The second result is false for errors that did not come from a rejected operation,
// such as oracle or storage failures.
func CodeOf(err error) (ErrorCode, bool) {
	var lerr *LedgerError
	if errors.As(err, &lerr) {
		return lerr.Code, true
	}
	return 0, false
}

var (
	// ErrRecordNotFound is returned by state stores and queries for absent keys.
	ErrRecordNotFound = errors.New("record not found")

	// ErrOwnerMismatch is returned when a state store was initialized for a different owner.
	ErrOwnerMismatch = errors.New("state store belongs to a different owner")

	// ErrStoreNotEmpty is returned when restoring a snapshot into a store that already holds state.
	ErrStoreNotEmpty = errors.New("state store is not empty")
)
