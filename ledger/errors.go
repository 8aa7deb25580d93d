/*
errors.go - Centralized error taxonomy for the points engine

PURPOSE:
  All expected, recoverable outcomes in one place. Callers distinguish them
  with errors.Is; HTTP and other transports map them to user-visible
  messages. Storage failures are the only fatal-and-retriable category and
  are surfaced wrapped, never as one of these sentinels.

USAGE:
  if errors.Is(err, ledger.ErrDuplicateOperation) {
      // already applied — fetch the prior transaction, treat as success
  }

SEE ALSO:
  - ledger.go: Where these are returned
  - reward/dispatcher.go: Converts ErrDuplicateOperation into a Noop result
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientBalance is returned when a debit exceeds the source
	// account's balance. Nothing is persisted.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrDuplicateOperation is returned when an idempotency key was already
	// recorded. This is expected behavior for retries: the caller should
	// fetch the prior transaction via TransactionByKey and treat the
	// operation as a success-no-op.
	ErrDuplicateOperation = errors.New("duplicate operation")

	// ErrUnknownAccount is returned when a debit references a user with no
	// account. Credits never return this: a credit to a new user implicitly
	// creates the account.
	ErrUnknownAccount = errors.New("unknown account")

	// ErrInvalidTransfer is returned for a transfer from an account to
	// itself, or when neither account is populated.
	ErrInvalidTransfer = errors.New("invalid transfer")

	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = errors.New("invalid amount")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientBalanceError reports how short the source account is.
type InsufficientBalanceError struct {
	UserID    UserID
	Available int64
	Requested int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for %s: available %d, requested %d",
		e.UserID, e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is an expected business outcome
// rather than a storage failure. Transports map these to 4xx responses.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrDuplicateOperation) ||
		errors.Is(err, ErrUnknownAccount) ||
		errors.Is(err, ErrInvalidTransfer) ||
		errors.Is(err, ErrInvalidAmount)
}
