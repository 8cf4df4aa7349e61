package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRateLimited   = errors.New("rate limited")
	ErrLockHeld      = errors.New("lock already held")

	// Validation errors. Never retried; returned to the caller immediately.
	ErrInvalidIdentity = errors.New("invalid identity")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidAddress  = errors.New("invalid destination address")
	ErrBelowMinimum    = errors.New("amount below policy minimum")

	// State conflicts. Terminal for the request; the ledger is unchanged.
	ErrInsufficientBalance  = errors.New("insufficient cash balance")
	ErrInsufficientPosition = errors.New("insufficient position")
	ErrContractResolved     = errors.New("contract already resolved")

	// External failures. Safe to retry with backoff; no partial commit.
	ErrChainUnavailable  = errors.New("chain data source unavailable")
	ErrOracleUnavailable = errors.New("price oracle unavailable")
	ErrChainSubmission   = errors.New("chain transfer submission failed")

	// Custodial wallet underfunded: an operational alarm, not a user error.
	ErrInsufficientCustodialFunds = errors.New("custodial wallet underfunded")

	// Fatal custody errors. The process must halt rather than continue with
	// wrong custody data.
	ErrSeedCorrupt = errors.New("master seed corrupt or unreadable")
)

// ErrorClass groups sentinel errors into the coarse categories callers use to
// decide whether to retry, surface, or page.
type ErrorClass string

const (
	ClassValidation    ErrorClass = "validation"
	ClassStateConflict ErrorClass = "state_conflict"
	ClassExternal      ErrorClass = "external_unavailable"
	ClassFatal         ErrorClass = "fatal"
	ClassInternal      ErrorClass = "internal"
)

// Classify maps an error chain onto its ErrorClass. Unknown errors are
// reported as ClassInternal.
func Classify(err error) ErrorClass {
	switch {
	case errors.Is(err, ErrInvalidIdentity),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidAddress),
		errors.Is(err, ErrBelowMinimum):
		return ClassValidation
	case errors.Is(err, ErrInsufficientBalance),
		errors.Is(err, ErrInsufficientPosition),
		errors.Is(err, ErrContractResolved),
		errors.Is(err, ErrInsufficientCustodialFunds),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrAlreadyExists):
		return ClassStateConflict
	case errors.Is(err, ErrChainUnavailable),
		errors.Is(err, ErrOracleUnavailable),
		errors.Is(err, ErrChainSubmission),
		errors.Is(err, ErrRateLimited):
		return ClassExternal
	case errors.Is(err, ErrSeedCorrupt):
		return ClassFatal
	default:
		return ClassInternal
	}
}

// Retryable reports whether the error class permits a retry with backoff.
func Retryable(err error) bool {
	return Classify(err) == ClassExternal
}
