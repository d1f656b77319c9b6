package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harambee/chama-ledger/ledger"
)

func TestAccountBalance_SeparatesFundPools(t *testing.T) {
	// Principal and interest never mix; Total is exactly their sum.

	book, _ := newTestBook(t)
	_, account := seedGroup(t, book, "")
	day := ledger.MustDate("2025-01-05")

	_, err := book.RecordOpeningBalance(account.ID, money("700"), ledger.FundPrincipal, day, "")
	require.NoError(t, err)
	_, err = book.RecordOpeningBalance(account.ID, money("120"), ledger.FundInterest, day, "")
	require.NoError(t, err)

	bal := book.AccountBalance(account.ID, day)
	assertMoney(t, "700", bal.Principal)
	assertMoney(t, "120", bal.Interest)
	assertMoney(t, "820", bal.Total)
}

func TestAccountBalance_AsOfFilter(t *testing.T) {
	// An entry dated after the working date is invisible; an entry dated
	// exactly on it counts.

	book, _ := newTestBook(t)
	_, account := seedGroup(t, book, "")

	_, err := book.RecordOpeningBalance(account.ID, money("100"), ledger.FundPrincipal,
		ledger.MustDate("2025-01-10"), "")
	require.NoError(t, err)
	_, err = book.RecordOpeningBalance(account.ID, money("50"), ledger.FundPrincipal,
		ledger.MustDate("2025-01-20"), "")
	require.NoError(t, err)

	assertMoney(t, "0", book.AccountBalance(account.ID, ledger.MustDate("2025-01-09")).Total)
	assertMoney(t, "100", book.AccountBalance(account.ID, ledger.MustDate("2025-01-10")).Total)
	assertMoney(t, "100", book.AccountBalance(account.ID, ledger.MustDate("2025-01-19")).Total)
	assertMoney(t, "150", book.AccountBalance(account.ID, ledger.MustDate("2025-01-20")).Total)
}

func TestAccountBalance_UnknownAccountIsZero(t *testing.T) {
	book, _ := newTestBook(t)
	bal := book.AccountBalance("ghost", ledger.MustDate("2025-01-10"))
	assert.True(t, bal.Principal.IsZero())
	assert.True(t, bal.Interest.IsZero())
	assert.True(t, bal.Total.IsZero())
}

func TestAccountBalance_NegativeEntriesSubtract(t *testing.T) {
	// Loan disbursement is a negative principal entry on the account.

	book, _ := newTestBook(t)
	member, account := seedGroup(t, book, "2000")
	day := ledger.MustDate("2025-02-01")

	_, err := book.CreateLoan(ledger.LoanRequest{
		Member: member.ID, Account: account.ID,
		Principal: money("600"), Rate: money("10"), Date: day,
	}, day)
	require.NoError(t, err)

	bal := book.AccountBalance(account.ID, day)
	assertMoney(t, "1400", bal.Principal)
}

func TestInterestAvailable_EarnedMinusSpent(t *testing.T) {
	// The spendable pool is earned interest inflows minus expenses; the
	// expense entries themselves are negative interest movements.

	book, _ := newTestBook(t)
	_, account := seedGroup(t, book, "")
	day := ledger.MustDate("2025-01-05")

	_, err := book.RecordOpeningBalance(account.ID, money("200"), ledger.FundInterest, day, "interest earned")
	require.NoError(t, err)
	assertMoney(t, "200", book.InterestAvailable(day))

	_, err = book.RecordExpense(money("60"), account.ID, day, "notebook", day)
	require.NoError(t, err)
	assertMoney(t, "140", book.InterestAvailable(day))

	// The account's interest balance dropped with the expense.
	assertMoney(t, "140", book.AccountBalance(account.ID, day).Interest)
}

func TestInterestAvailable_PrincipalDoesNotFeedThePool(t *testing.T) {
	book, _ := newTestBook(t)
	_, account := seedGroup(t, book, "")
	day := ledger.MustDate("2025-01-05")

	_, err := book.RecordOpeningBalance(account.ID, money("5000"), ledger.FundPrincipal, day, "")
	require.NoError(t, err)

	assert.True(t, book.InterestAvailable(day).IsZero())
}
