/*
allocate.go - The contribution waterfall

PURPOSE:
  Decides how incoming member cash is split between new savings,
  outstanding debt repayment, and carried credit. This is the core
  algorithm of the engine; the step order below is load-bearing and
  must not be reshuffled.

THE WATERFALL:
  1. How much has this member already contributed today? (literal
     entry-date equality, NOT the as-of filter)
  2. shareCapacity = max(0, DailyShareCap - alreadyToday)
  3. pool = cash amount + the member's carried credit
  4. share = min(shareCapacity, pool) -> one CONTRIBUTION entry
  5. extra = pool - share -> repay unpaid loans oldest-first, each
     repayment capped at that loan's remaining balance
  6. whatever is left REPLACES the member's carried credit

  Hitting the daily cap is a routine branch, not an error. A zero cash
  amount with nonzero carried credit is legal and reruns the waterfall
  over the credit alone.

SEE ALSO:
  - loan.go: loan balance used to cap repayments
  - book.go: applies the planned entries atomically
*/
package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
)

// DailyShareCap is the most a member may place into savings per
// calendar day. Anything above it waterfalls into loan repayment and
// then carried credit.
var DailyShareCap = decimal.NewFromInt(1000)

// Contribution is the input to the waterfall.
type Contribution struct {
	Member  MemberID
	Account AccountID
	Amount  decimal.Decimal
	Date    Date
	Note    string
}

// Allocation is the planned outcome: the entries to append and the
// member's new carried credit (a wholesale replacement of the old one).
type Allocation struct {
	Entries       []Entry
	Share         decimal.Decimal
	Repaid        decimal.Decimal
	CarriedCredit decimal.Decimal
}

// allocateContribution plans the waterfall for one contribution. It is
// a pure function: nothing is applied or persisted here. loans must be
// the member's own loans; entries is the full entry log. newID mints
// entry identities.
func allocateContribution(member Member, c Contribution, loans []Loan, entries []Entry, asOf Date, newID func() EntryID) (Allocation, error) {
	if c.Amount.IsNegative() {
		return Allocation{}, ErrInvalidAmount
	}

	pool := c.Amount.Add(member.CarriedCredit)
	if !pool.IsPositive() {
		// Nothing to allocate: zero cash and zero carried credit.
		return Allocation{}, ErrInvalidAmount
	}

	// Step 1-2: today's remaining share capacity.
	alreadyToday := contributedOn(entries, c.Member, c.Date)
	capacity := DailyShareCap.Sub(alreadyToday)
	if capacity.IsNegative() {
		capacity = decimal.Zero
	}

	// Step 4: savings share.
	share := decimal.Min(capacity, pool)
	alloc := Allocation{Share: share, Repaid: decimal.Zero}
	if share.IsPositive() {
		alloc.Entries = append(alloc.Entries, Entry{
			ID:        newID(),
			Date:      c.Date,
			MemberID:  c.Member,
			AccountID: c.Account,
			Fund:      FundPrincipal,
			Type:      EntryContribution,
			Amount:    share,
			Note:      c.Note,
		})
	}

	// Step 5: repay unpaid loans, oldest debt first.
	extra := pool.Sub(share)
	if extra.IsPositive() {
		unpaid := make([]Loan, 0, len(loans))
		for _, l := range loans {
			if EvaluateLoan(l, entries, asOf).Status != LoanPaid {
				unpaid = append(unpaid, l)
			}
		}
		sort.SliceStable(unpaid, func(i, j int) bool {
			return unpaid[i].IssuedOn.Before(unpaid[j].IssuedOn)
		})

		for _, l := range unpaid {
			if !extra.IsPositive() {
				break
			}
			balance := EvaluateLoan(l, entries, asOf).Balance
			repay := decimal.Min(extra, balance)
			if !repay.IsPositive() {
				continue
			}
			alloc.Entries = append(alloc.Entries, Entry{
				ID:        newID(),
				Date:      c.Date,
				MemberID:  c.Member,
				AccountID: c.Account,
				Fund:      FundPrincipal,
				Type:      EntryLoanRepayment,
				Amount:    repay,
				LoanID:    l.ID,
				Note:      c.Note,
			})
			alloc.Repaid = alloc.Repaid.Add(repay)
			extra = extra.Sub(repay)
		}
	}

	// Step 6: the remainder replaces the carried credit.
	alloc.CarriedCredit = extra
	return alloc, nil
}

// contributedOn sums the member's contribution entries dated exactly on
// date. The daily cap is about the literal calendar day, so this
// deliberately bypasses the as-of filter.
func contributedOn(entries []Entry, member MemberID, date Date) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		if e.Type == EntryContribution && e.MemberID == member && e.Date.Equal(date) {
			total = total.Add(e.Amount)
		}
	}
	return total
}
