/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for the HTTP surface. They decouple the domain model
  from the wire contract. Monetary amounts cross the wire as decimal
  strings ("1234.50") - never floats.

NAMING CONVENTION:
  - *DTO: response types returned to clients
  - *Request: request body types from clients

VALIDATION:
  Handlers validate; DTOs are pure data carriers.
*/
package api

import (
	"github.com/harambee/chama-ledger/ledger"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// MemberDTO represents a member in API responses.
type MemberDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Active        bool   `json:"active"`
	CarriedCredit string `json:"carried_credit"`
}

// CreateMemberRequest is the request to register a member.
type CreateMemberRequest struct {
	Name string `json:"name"`
}

// AccountDTO represents an account in API responses.
type AccountDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Active   bool   `json:"active"`
	MemberID string `json:"member_id,omitempty"`
}

// CreateAccountRequest is the request to register an account.
type CreateAccountRequest struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	MemberID string `json:"member_id,omitempty"`
}

// BalanceDTO is a per-fund account balance as of a working date.
type BalanceDTO struct {
	AccountID string `json:"account_id"`
	Principal string `json:"principal"`
	Interest  string `json:"interest"`
	Total     string `json:"total"`
	AsOf      string `json:"as_of"`
}

// LoanDTO represents a loan plus its derived state.
type LoanDTO struct {
	ID        string `json:"id"`
	MemberID  string `json:"member_id"`
	Principal string `json:"principal"`
	Rate      string `json:"rate"`
	IssuedOn  string `json:"issued_on"`
	DueOn     string `json:"due_on"`

	Interest string `json:"interest"`
	TotalDue string `json:"total_due"`
	Paid     string `json:"paid"`
	Balance  string `json:"balance"`
	Status   string `json:"status"`
}

// CreateLoanRequest is the request to issue a loan.
type CreateLoanRequest struct {
	MemberID  string `json:"member_id"`
	AccountID string `json:"account_id"`
	Principal string `json:"principal"`
	Rate      string `json:"rate"`
	Date      string `json:"date"`
	DueOn     string `json:"due_on,omitempty"`
	Note      string `json:"note,omitempty"`
}

// EntryDTO represents one ledger entry.
type EntryDTO struct {
	ID            string `json:"id"`
	Date          string `json:"date"`
	MemberID      string `json:"member_id,omitempty"`
	AccountID     string `json:"account_id"`
	FundType      string `json:"fund_type"`
	Type          string `json:"transaction_type"`
	Amount        string `json:"amount"`
	RelatedLoanID string `json:"related_loan_id,omitempty"`
	Note          string `json:"note,omitempty"`
}

// ContributeRequest is the request to record a member contribution.
type ContributeRequest struct {
	MemberID  string `json:"member_id"`
	AccountID string `json:"account_id"`
	Amount    string `json:"amount"`
	Date      string `json:"date"`
	Note      string `json:"note,omitempty"`
}

// AllocationDTO is the waterfall outcome returned after a contribution.
type AllocationDTO struct {
	Entries       []EntryDTO `json:"entries"`
	Share         string     `json:"share"`
	Repaid        string     `json:"repaid"`
	CarriedCredit string     `json:"carried_credit"`
}

// ExpenseRequest is the request to spend from the interest pool.
type ExpenseRequest struct {
	AccountID string `json:"account_id"`
	Amount    string `json:"amount"`
	Date      string `json:"date"`
	Note      string `json:"note,omitempty"`
}

// TransferRequest is the request to move money between accounts.
type TransferRequest struct {
	FromAccountID string `json:"from_account_id"`
	ToAccountID   string `json:"to_account_id"`
	Amount        string `json:"amount"`
	FundType      string `json:"fund_type"`
	Date          string `json:"date"`
	Note          string `json:"note,omitempty"`
}

// OpeningBalanceRequest seeds a historical balance.
type OpeningBalanceRequest struct {
	AccountID string `json:"account_id"`
	Amount    string `json:"amount"`
	FundType  string `json:"fund_type"`
	Date      string `json:"date"`
	Note      string `json:"note,omitempty"`
}

// MemberStatsDTO summarizes a member as of a working date.
type MemberStatsDTO struct {
	MemberID           string `json:"member_id"`
	TotalContributed   string `json:"total_contributed"`
	ActiveLoanCount    int    `json:"active_loan_count"`
	TotalLoanBalance   string `json:"total_loan_balance"`
	LastContributionOn string `json:"last_contribution_on,omitempty"`
	FundsHeld          string `json:"funds_held"`
	AsOf               string `json:"as_of"`
}

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toMemberDTO(m ledger.Member) MemberDTO {
	return MemberDTO{
		ID:            string(m.ID),
		Name:          m.Name,
		Active:        m.Active,
		CarriedCredit: m.CarriedCredit.String(),
	}
}

func toAccountDTO(a ledger.Account) AccountDTO {
	return AccountDTO{
		ID:       string(a.ID),
		Name:     a.Name,
		Kind:     string(a.Kind),
		Active:   a.Active,
		MemberID: string(a.MemberID),
	}
}

func toLoanDTO(l ledger.Loan, state ledger.LoanState) LoanDTO {
	return LoanDTO{
		ID:        string(l.ID),
		MemberID:  string(l.MemberID),
		Principal: l.Principal.String(),
		Rate:      l.Rate.String(),
		IssuedOn:  l.IssuedOn.String(),
		DueOn:     l.DueOn.String(),
		Interest:  state.Interest.String(),
		TotalDue:  state.TotalDue.String(),
		Paid:      state.Paid.String(),
		Balance:   state.Balance.String(),
		Status:    string(state.Status),
	}
}

func toEntryDTO(e ledger.Entry) EntryDTO {
	return EntryDTO{
		ID:            string(e.ID),
		Date:          e.Date.String(),
		MemberID:      string(e.MemberID),
		AccountID:     string(e.AccountID),
		FundType:      string(e.Fund),
		Type:          string(e.Type),
		Amount:        e.Amount.String(),
		RelatedLoanID: string(e.LoanID),
		Note:          e.Note,
	}
}

func toEntryDTOs(entries []ledger.Entry) []EntryDTO {
	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	return dtos
}
