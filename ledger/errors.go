/*
errors.go - Centralized error types for the ledger engine

ERROR CATEGORIES:
  1. Validation errors - a precondition failed; nothing was applied
  2. Not-found errors - a referenced entity does not exist
  3. Persistence errors - the durable write or reload failed

Validation and not-found errors are returned to the caller as typed
failures and never partially apply state. Persistence errors are
surfaced as warnings by the Book and answered with a full reload, not
an in-place retry.
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientFunds is returned when a loan principal exceeds the
	// source account's balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrOutstandingLoan is returned when a member already has a loan
	// that is not fully paid.
	ErrOutstandingLoan = errors.New("member has an outstanding loan")

	// ErrInsufficientInterest is returned when an expense exceeds the
	// shared interest pool.
	ErrInsufficientInterest = errors.New("insufficient interest funds")

	// ErrAccountNotEmpty is returned when removing an account whose
	// entries do not sum to zero.
	ErrAccountNotEmpty = errors.New("account entries do not sum to zero")

	// ErrInvalidAmount is returned for non-positive or malformed amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidKind is returned for an unknown account kind or fund pool.
	ErrInvalidKind = errors.New("invalid kind")

	ErrMemberNotFound  = errors.New("member not found")
	ErrAccountNotFound = errors.New("account not found")
	ErrLoanNotFound    = errors.New("loan not found")
	ErrEntryNotFound   = errors.New("entry not found")

	// ErrBadSnapshot is returned when stored or imported data is
	// malformed. A reload that hits this aborts and leaves the previous
	// in-memory state intact.
	ErrBadSnapshot = errors.New("malformed snapshot data")
)

// =============================================================================
// STRUCTURED ERRORS - carry additional context
// =============================================================================

// InsufficientFundsError reports how short the source account is.
type InsufficientFundsError struct {
	AccountID AccountID
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds on account %s: available %s, requested %s",
		e.AccountID, e.Available, e.Requested)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// OutstandingLoanError identifies the loan blocking a new issuance.
type OutstandingLoanError struct {
	MemberID MemberID
	LoanID   LoanID
	Balance  decimal.Decimal
}

func (e *OutstandingLoanError) Error() string {
	return fmt.Sprintf("member %s has outstanding loan %s with balance %s",
		e.MemberID, e.LoanID, e.Balance)
}

func (e *OutstandingLoanError) Unwrap() error { return ErrOutstandingLoan }

// InsufficientInterestError reports the shared interest pool shortfall.
type InsufficientInterestError struct {
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientInterestError) Error() string {
	return fmt.Sprintf("insufficient interest funds: available %s, requested %s",
		e.Available, e.Requested)
}

func (e *InsufficientInterestError) Unwrap() error { return ErrInsufficientInterest }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation reports whether err is a business-rule violation the
// caller can correct, as opposed to an infrastructure failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrOutstandingLoan) ||
		errors.Is(err, ErrInsufficientInterest) ||
		errors.Is(err, ErrAccountNotEmpty) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidKind) ||
		errors.Is(err, ErrBadSnapshot)
}

// IsNotFound reports whether err indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrMemberNotFound) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrLoanNotFound) ||
		errors.Is(err, ErrEntryNotFound)
}
