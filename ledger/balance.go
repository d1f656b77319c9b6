/*
balance.go - Balance aggregation

PURPOSE:
  Folds the entry log into per-account, per-fund balances. This answers
  "how much money sits in the cash box as of date X?". The fold is a
  pure function of the entry slice and the as-of date, which is what
  makes optimistic local mutation plus full-reload recovery safe: the
  same log always yields the same balances.

FUND POOLS:
  Principal and interest are summed separately. Total = Principal +
  Interest exactly, and is only ever a presentation value.
*/
package ledger

import "github.com/shopspring/decimal"

// accountBalance folds all entries of one account visible as of asOf.
// An unknown account yields zero balances, not an error.
func accountBalance(entries []Entry, id AccountID, asOf Date) AccountBalance {
	principal := decimal.Zero
	interest := decimal.Zero

	for _, e := range entries {
		if e.AccountID != id || !e.Date.OnOrBefore(asOf) {
			continue
		}
		switch e.Fund {
		case FundPrincipal:
			principal = principal.Add(e.Amount)
		case FundInterest:
			interest = interest.Add(e.Amount)
		}
	}

	return AccountBalance{
		Principal: principal,
		Interest:  interest,
		Total:     principal.Add(interest),
	}
}

// accountLifetimeSum is the signed sum of every entry on the account,
// ignoring the as-of filter. Used by the account-removal check.
func accountLifetimeSum(entries []Entry, id AccountID) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range entries {
		if e.AccountID == id {
			sum = sum.Add(e.Amount)
		}
	}
	return sum
}

// interestAvailable computes the spendable shared interest pool:
// positive interest inflows minus what expenses already took out of it,
// both as-of filtered. The pool is group-wide, not per account.
func interestAvailable(entries []Entry, asOf Date) decimal.Decimal {
	earned := decimal.Zero
	spent := decimal.Zero

	for _, e := range entries {
		if e.Fund != FundInterest || !e.Date.OnOrBefore(asOf) {
			continue
		}
		if e.Type == EntryExpense {
			// Expense entries are stored negative; track the magnitude.
			spent = spent.Add(e.Amount.Neg())
			continue
		}
		if e.Amount.IsPositive() {
			earned = earned.Add(e.Amount)
		}
	}

	return earned.Sub(spent)
}
