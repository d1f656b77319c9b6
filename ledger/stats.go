/*
stats.go - Member statistics

Composes the balance aggregator and loan evaluator into the summary the
member screen shows: lifetime contributions, open debt, and the money
held in the member's own accounts.
*/
package ledger

import "github.com/shopspring/decimal"

// memberStats folds the log for one member as of a working date.
// accounts must be the full registry; loans the member's own loans.
func memberStats(member MemberID, accounts []Account, loans []Loan, entries []Entry, asOf Date) MemberStats {
	stats := MemberStats{
		TotalContributed: decimal.Zero,
		TotalLoanBalance: decimal.Zero,
		FundsHeld:        decimal.Zero,
	}

	for _, e := range entries {
		if e.Type != EntryContribution || e.MemberID != member || !e.Date.OnOrBefore(asOf) {
			continue
		}
		stats.TotalContributed = stats.TotalContributed.Add(e.Amount)
		stats.LastContributionOn = Latest(stats.LastContributionOn, e.Date)
	}

	for _, l := range loans {
		if !l.IssuedOn.OnOrBefore(asOf) {
			continue
		}
		state := EvaluateLoan(l, entries, asOf)
		if state.Status == LoanPaid {
			continue
		}
		stats.ActiveLoanCount++
		stats.TotalLoanBalance = stats.TotalLoanBalance.Add(state.Balance)
	}

	for _, a := range accounts {
		if a.Kind == AccountMember && a.MemberID == member {
			stats.FundsHeld = stats.FundsHeld.Add(accountBalance(entries, a.ID, asOf).Total)
		}
	}

	return stats
}
