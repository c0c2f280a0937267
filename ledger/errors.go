/*
errors.go - Centralized error taxonomy for the ledger engine

PURPOSE:
  All engine errors in one place. Every failure an operation can report is
  a terminal, non-retryable condition except Contention, which the caller
  may retry because every operation is idempotent per its key.

ERROR CATEGORIES:
  1. Not-found errors  - missing account/item/redemption
  2. Rule violations   - already claimed, cooldown, balance, stock, state
  3. Authorization     - role gate failures
  4. Store conflicts   - transaction contention (retryable)

USAGE:
  Callers branch with errors.Is:

    if errors.Is(err, ledger.ErrAlreadyClaimed) { ... }

  Structured errors carry context and unwrap to their sentinel:

    var cd *ledger.CooldownError
    if errors.As(err, &cd) { wait := cd.Remaining }

SEE ALSO:
  - engine.go: produces these errors
  - api/handlers.go: maps them to HTTP status codes
*/
package ledger

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrAccountNotFound is returned when a referenced account doesn't exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrItemNotFound is returned when a referenced catalog item doesn't exist.
	ErrItemNotFound = errors.New("reward item not found")

	// ErrRedemptionNotFound is returned when a referenced redemption doesn't exist.
	ErrRedemptionNotFound = errors.New("redemption not found")

	// ErrAlreadyClaimed is returned when a ledger entry for the same
	// (account, action key) pair already exists. Expected on retries.
	ErrAlreadyClaimed = errors.New("action already claimed")

	// ErrCooldownActive is returned when a time-gated claim is attempted
	// before the cooldown window has elapsed.
	ErrCooldownActive = errors.New("cooldown active")

	// ErrInsufficientBalance is returned when a redemption costs more than
	// the account's current balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrSoldOut is returned when an item's tracked stock is exhausted.
	ErrSoldOut = errors.New("item sold out")

	// ErrForbidden is returned when the acting account lacks the admin role.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidState is returned on an illegal status transition
	// (e.g. marking a non-pending redemption as redeemed).
	ErrInvalidState = errors.New("invalid state transition")

	// ErrInvalidAmount is returned when an award amount is not positive.
	ErrInvalidAmount = errors.New("amount must be a positive integer")

	// ErrContention is returned when the store detects a transaction
	// conflict. Safe to retry: operations are idempotent per their key.
	ErrContention = errors.New("store contention")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// CooldownError reports how long the caller must wait before the next claim.
type CooldownError struct {
	Key       CooldownKey
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooldown active for %s: %s remaining", e.Key, e.Remaining)
}

func (e *CooldownError) Unwrap() error { return ErrCooldownActive }

// InsufficientBalanceError reports the shortfall on a rejected redemption.
type InsufficientBalanceError struct {
	AccountID AccountID
	Available int64
	Required  int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %d, required %d", e.Available, e.Required)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrContention)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrItemNotFound) ||
		errors.Is(err, ErrRedemptionNotFound)
}

// IsClientError returns true if the error is a business-rule rejection
// rather than an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrAlreadyClaimed) ||
		errors.Is(err, ErrCooldownActive) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrSoldOut) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrInvalidAmount)
}
