/*
Package ledger is the bookkeeping engine for a chama — a rotating
savings and micro-credit group. Members contribute to a shared pool,
draw loans against it, and repay with flat interest.

PURPOSE:
  This package contains the data model and the computation rules that
  turn an append-only log of dated entries into account balances, loan
  states, and member statistics. Everything derived is recomputed by
  replaying entries — there is no stored balance that can drift.

KEY CONCEPTS IN THIS FILE (types.go):
  - Member: a person in the group, carrying leftover "carried credit"
  - Account: where money physically sits (cash box, mobile wallet, bank)
  - Loan: immutable loan record; repayment happens through entries
  - Entry: an immutable dated ledger line tagged with a fund pool

DESIGN PRINCIPLES:
  1. Append-only entries: corrections happen by new entries, the only
     exception being direct entry deletion (caller owns the fallout)
  2. Precision: decimal.Decimal everywhere, no float currency math
  3. Fund pools: PRINCIPAL and INTEREST money never mix except in the
     final display total
  4. Point-in-time reads: every derived value takes an as-of date

SEE ALSO:
  - date.go: calendar dates and the as-of filter
  - balance.go: per-account, per-fund balances
  - loan.go: derived loan state
  - allocate.go: the contribution waterfall
  - book.go: the mutation facade
*/
package ledger

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type MemberID string
type AccountID string
type LoanID string
type EntryID string

// =============================================================================
// MEMBER
// =============================================================================

// Member is a person in the group. CarriedCredit is money owed to the
// member that has not been placed into any account-backed pool yet; it
// is replaced wholesale by the contribution allocator, never incremented.
type Member struct {
	ID            MemberID        `json:"id"`
	Name          string          `json:"name"`
	Active        bool            `json:"active"`
	CarriedCredit decimal.Decimal `json:"carried_credit"`
}

// =============================================================================
// ACCOUNT
// =============================================================================

// AccountKind is where the money physically lives.
type AccountKind string

const (
	AccountCash   AccountKind = "cash"
	AccountMobile AccountKind = "mobile"
	AccountBank   AccountKind = "bank"
	AccountMember AccountKind = "member"
)

// ValidAccountKind reports whether k is one of the closed set of kinds.
func ValidAccountKind(k AccountKind) bool {
	switch k {
	case AccountCash, AccountMobile, AccountBank, AccountMember:
		return true
	}
	return false
}

// Account holds money. MemberID is only meaningful for kind "member".
// A removed account stays behind with Active=false: the tombstone keeps
// its historical entries resolvable when the log is replayed.
type Account struct {
	ID       AccountID   `json:"id"`
	Name     string      `json:"name"`
	Kind     AccountKind `json:"kind"`
	Active   bool        `json:"active"`
	MemberID MemberID    `json:"member_id,omitempty"`
}

// =============================================================================
// LOAN
// =============================================================================

// Loan is immutable once created. Its state (paid, overdue, balance) is
// derived from repayment entries, never written back onto the record.
// Rate is a flat percentage: interest = principal * rate / 100.
type Loan struct {
	ID        LoanID          `json:"id"`
	MemberID  MemberID        `json:"member_id"`
	Principal decimal.Decimal `json:"principal"`
	Rate      decimal.Decimal `json:"rate"`
	IssuedOn  Date            `json:"issued_on"`
	DueOn     Date            `json:"due_on"`
}

// LoanTermDays is the default repayment window when no due date is given.
const LoanTermDays = 30

// =============================================================================
// ENTRY - one line in the append-only log
// =============================================================================

// FundType partitions money inside an account. Principal and interest
// balances are aggregated separately and only summed for display.
type FundType string

const (
	FundPrincipal FundType = "principal"
	FundInterest  FundType = "interest"
)

// ValidFundType reports whether f is a known fund pool.
func ValidFundType(f FundType) bool {
	return f == FundPrincipal || f == FundInterest
}

// EntryType is the business reason for a ledger entry.
type EntryType string

const (
	EntryContribution   EntryType = "contribution"
	EntryLoanGiven      EntryType = "loan_given"
	EntryLoanRepayment  EntryType = "loan_repayment"
	EntryExpense        EntryType = "expense"
	EntryTransfer       EntryType = "transfer"
	EntryOpeningBalance EntryType = "opening_balance"
)

// Entry is a single dated, signed movement of money on one account.
// LoanID is set exactly when Type is EntryLoanRepayment.
type Entry struct {
	ID        EntryID         `json:"id"`
	Date      Date            `json:"date"`
	MemberID  MemberID        `json:"member_id,omitempty"`
	AccountID AccountID       `json:"account_id"`
	Fund      FundType        `json:"fund_type"`
	Type      EntryType       `json:"transaction_type"`
	Amount    decimal.Decimal `json:"amount"`
	LoanID    LoanID          `json:"related_loan_id,omitempty"`
	Note      string          `json:"note,omitempty"`
}

// =============================================================================
// DERIVED VALUES - computed, never stored
// =============================================================================

// AccountBalance is the per-fund balance of one account as of a date.
// Total is always exactly Principal + Interest.
type AccountBalance struct {
	Principal decimal.Decimal `json:"principal"`
	Interest  decimal.Decimal `json:"interest"`
	Total     decimal.Decimal `json:"total"`
}

type LoanStatus string

const (
	LoanUnpaid  LoanStatus = "unpaid"
	LoanOverdue LoanStatus = "overdue"
	LoanPaid    LoanStatus = "paid"
)

// LoanState is the derived financial state of a loan as of a date.
type LoanState struct {
	Interest decimal.Decimal `json:"interest"`
	TotalDue decimal.Decimal `json:"total_due"`
	Paid     decimal.Decimal `json:"paid"`
	Balance  decimal.Decimal `json:"balance"`
	Status   LoanStatus      `json:"status"`
}

// MemberStats summarizes one member across loans and member accounts.
type MemberStats struct {
	TotalContributed   decimal.Decimal `json:"total_contributed"`
	ActiveLoanCount    int             `json:"active_loan_count"`
	TotalLoanBalance   decimal.Decimal `json:"total_loan_balance"`
	LastContributionOn Date            `json:"last_contribution_on"`
	FundsHeld          decimal.Decimal `json:"funds_held"`
}
