/*
loan.go - Derived loan state

PURPOSE:
  Reduces a loan plus its repayment entries into a financial state:
  interest owed, total due, amount paid, remaining balance, and status.
  Interest is flat and simple (principal * rate / 100), accrued
  notionally - it never appears as a separate entry at issuance.

STATUS RULES:
  paid     balance <= 0 (overpayment still counts as paid)
  overdue  asOf is past the due date and a balance remains
  unpaid   otherwise
*/
package ledger

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// EvaluateLoan computes the state of a loan as of a working date.
// Repayments dated after asOf are invisible, so the same log replayed
// at an earlier date reproduces the historical state exactly.
func EvaluateLoan(loan Loan, entries []Entry, asOf Date) LoanState {
	interest := loan.Principal.Mul(loan.Rate).Div(hundred)
	totalDue := loan.Principal.Add(interest)

	paid := loanRepaid(entries, loan.ID, asOf)
	balance := totalDue.Sub(paid)

	status := LoanUnpaid
	switch {
	case !balance.IsPositive():
		status = LoanPaid
	case asOf.After(loan.DueOn):
		status = LoanOverdue
	}

	return LoanState{
		Interest: interest,
		TotalDue: totalDue,
		Paid:     paid,
		Balance:  balance,
		Status:   status,
	}
}

// loanRepaid sums the repayment entries tagged with the loan, as-of
// filtered. Repayment entries are stored positive on the receiving
// account.
func loanRepaid(entries []Entry, id LoanID, asOf Date) decimal.Decimal {
	paid := decimal.Zero
	for _, e := range entries {
		if e.Type == EntryLoanRepayment && e.LoanID == id && e.Date.OnOrBefore(asOf) {
			paid = paid.Add(e.Amount)
		}
	}
	return paid
}
