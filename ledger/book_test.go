package ledger_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harambee/chama-ledger/ledger"
	"github.com/harambee/chama-ledger/ledger/store"
)

// =============================================================================
// MEMBERSHIP AND ACCOUNTS
// =============================================================================

func TestAddAccount_MemberKindNeedsOwner(t *testing.T) {
	book, _ := newTestBook(t)
	member, err := book.AddMember("Achieng")
	require.NoError(t, err)

	_, err = book.AddAccount("Wallet", ledger.AccountMember, "ghost")
	assert.ErrorIs(t, err, ledger.ErrMemberNotFound)

	owned, err := book.AddAccount("Wallet", ledger.AccountMember, member.ID)
	require.NoError(t, err)
	assert.Equal(t, member.ID, owned.MemberID)

	// The owner is dropped for non-member kinds.
	bank, err := book.AddAccount("Equity", ledger.AccountBank, member.ID)
	require.NoError(t, err)
	assert.Empty(t, bank.MemberID)

	_, err = book.AddAccount("X", ledger.AccountKind("vault"), "")
	assert.ErrorIs(t, err, ledger.ErrInvalidKind)
}

func TestRemoveAccount_OnlyWhenSettled(t *testing.T) {
	// GIVEN: an account holding money
	// THEN: removal is refused until its entries net out to zero

	book, _ := newTestBook(t)
	_, account := seedGroup(t, book, "500")

	err := book.RemoveAccount(account.ID)
	assert.ErrorIs(t, err, ledger.ErrAccountNotEmpty)

	_, err = book.RecordOpeningBalance(account.ID, money("-500"), ledger.FundPrincipal,
		ledger.MustDate("2025-01-02"), "correction")
	require.NoError(t, err)

	require.NoError(t, book.RemoveAccount(account.ID))

	// The record survives as an inactive tombstone with its history.
	got, err := book.Account(account.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.NotEmpty(t, book.Entries(ledger.EntryFilter{Account: account.ID}))

	// But it takes no new entries.
	_, err = book.RecordOpeningBalance(account.ID, money("10"), ledger.FundPrincipal,
		ledger.MustDate("2025-01-03"), "")
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)

	// And removing it twice reads as gone.
	assert.ErrorIs(t, book.RemoveAccount(account.ID), ledger.ErrAccountNotFound)
	assert.ErrorIs(t, book.RemoveAccount("ghost"), ledger.ErrAccountNotFound)
}

func TestRemoveAccount_ReloadAndSnapshotSurvive(t *testing.T) {
	// GIVEN: a settled account removed while its entries remain in the log
	// WHEN: reloading from the store and round-tripping a snapshot
	// THEN: both succeed - the tombstone keeps the entries resolvable

	book, _ := newTestBook(t)
	_, account := seedGroup(t, book, "500")
	_, err := book.RecordOpeningBalance(account.ID, money("-500"), ledger.FundPrincipal,
		ledger.MustDate("2025-01-02"), "correction")
	require.NoError(t, err)
	require.NoError(t, book.RemoveAccount(account.ID))
	book.Flush()

	require.NoError(t, book.Reload(context.Background()))

	got, err := book.Account(account.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.Len(t, book.Entries(ledger.EntryFilter{Account: account.ID}), 2)

	// Export -> Import into a fresh book holds too.
	target := ledger.NewBook(store.NewMemory(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(target.Close)
	require.NoError(t, target.Import(context.Background(), book.Export()))
	assert.Len(t, target.Entries(ledger.EntryFilter{Account: account.ID}), 2)
}

// =============================================================================
// LOAN PRECONDITIONS
// =============================================================================

func TestCreateLoan_InsufficientFunds(t *testing.T) {
	book, _ := newTestBook(t)
	member, account := seedGroup(t, book, "100")
	day := ledger.MustDate("2025-02-01")

	_, err := book.CreateLoan(ledger.LoanRequest{
		Member: member.ID, Account: account.ID,
		Principal: money("500"), Rate: money("10"), Date: day,
	}, day)

	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	var ife *ledger.InsufficientFundsError
	require.ErrorAs(t, err, &ife)
	assertMoney(t, "100", ife.Available)
	assertMoney(t, "500", ife.Requested)
}

func TestCreateLoan_OneOutstandingLoanPerMember(t *testing.T) {
	book, _ := newTestBook(t)
	member, account := seedGroup(t, book, "5000")
	day := ledger.MustDate("2025-02-01")

	first, err := book.CreateLoan(ledger.LoanRequest{
		Member: member.ID, Account: account.ID,
		Principal: money("300"), Rate: decimal.Zero, Date: day,
	}, day)
	require.NoError(t, err)

	_, err = book.CreateLoan(ledger.LoanRequest{
		Member: member.ID, Account: account.ID,
		Principal: money("200"), Rate: decimal.Zero, Date: day,
	}, day)
	require.ErrorIs(t, err, ledger.ErrOutstandingLoan)
	var ole *ledger.OutstandingLoanError
	require.ErrorAs(t, err, &ole)
	assert.Equal(t, first.ID, ole.LoanID)

	// Clear the first loan; a second becomes possible.
	repayDay := ledger.MustDate("2025-02-05")
	_, err = book.Contribute(ledger.Contribution{
		Member: member.ID, Account: account.ID,
		Amount: money("1300"), Date: repayDay,
	}, repayDay)
	require.NoError(t, err)

	_, err = book.CreateLoan(ledger.LoanRequest{
		Member: member.ID, Account: account.ID,
		Principal: money("200"), Rate: decimal.Zero, Date: repayDay,
	}, repayDay)
	assert.NoError(t, err)
}

func TestCreateLoan_RejectsBadInputs(t *testing.T) {
	book, _ := newTestBook(t)
	member, account := seedGroup(t, book, "5000")
	day := ledger.MustDate("2025-02-01")

	_, err := book.CreateLoan(ledger.LoanRequest{
		Member: member.ID, Account: account.ID,
		Principal: decimal.Zero, Rate: money("5"), Date: day,
	}, day)
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	_, err = book.CreateLoan(ledger.LoanRequest{
		Member: member.ID, Account: account.ID,
		Principal: money("100"), Rate: money("-1"), Date: day,
	}, day)
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
}

// =============================================================================
// EXPENSES
// =============================================================================

func TestRecordExpense_RefusedBeyondThePool(t *testing.T) {
	book, _ := newTestBook(t)
	_, account := seedGroup(t, book, "")
	day := ledger.MustDate("2025-01-05")

	_, err := book.RecordOpeningBalance(account.ID, money("100"), ledger.FundInterest, day, "")
	require.NoError(t, err)

	_, err = book.RecordExpense(money("60"), account.ID, day, "", day)
	require.NoError(t, err)

	_, err = book.RecordExpense(money("50"), account.ID, day, "", day)
	require.ErrorIs(t, err, ledger.ErrInsufficientInterest)
	var iie *ledger.InsufficientInterestError
	require.ErrorAs(t, err, &iie)
	assertMoney(t, "40", iie.Available)

	_, err = book.RecordExpense(money("40"), account.ID, day, "", day)
	assert.NoError(t, err)
}

// =============================================================================
// TRANSFERS
// =============================================================================

func TestTransfer_TwoEntriesNettingToZero(t *testing.T) {
	book, _ := newTestBook(t)
	_, cash := seedGroup(t, book, "1000")
	bank, err := book.AddAccount("Equity", ledger.AccountBank, "")
	require.NoError(t, err)
	day := ledger.MustDate("2025-01-10")

	pair, err := book.Transfer(cash.ID, bank.ID, money("200"), ledger.FundPrincipal, day, "banking run")
	require.NoError(t, err)

	require.Len(t, pair, 2)
	assert.True(t, pair[0].Amount.Add(pair[1].Amount).IsZero())
	assertMoney(t, "-200", pair[0].Amount)
	assertMoney(t, "200", pair[1].Amount)

	assertMoney(t, "800", book.AccountBalance(cash.ID, day).Principal)
	assertMoney(t, "200", book.AccountBalance(bank.ID, day).Principal)
}

func TestTransfer_Validation(t *testing.T) {
	book, _ := newTestBook(t)
	_, cash := seedGroup(t, book, "1000")
	day := ledger.MustDate("2025-01-10")

	_, err := book.Transfer(cash.ID, cash.ID, money("10"), ledger.FundPrincipal, day, "")
	assert.ErrorIs(t, err, ledger.ErrInvalidKind)

	_, err = book.Transfer(cash.ID, "ghost", money("10"), ledger.FundPrincipal, day, "")
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)

	_, err = book.Transfer(cash.ID, "ghost", money("-10"), ledger.FundPrincipal, day, "")
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
}

// =============================================================================
// ENTRY DELETION
// =============================================================================

func TestDeleteEntry_NoRebalancing(t *testing.T) {
	book, _ := newTestBook(t)
	_, account := seedGroup(t, book, "")
	day := ledger.MustDate("2025-01-05")

	entry, err := book.RecordOpeningBalance(account.ID, money("300"), ledger.FundPrincipal, day, "")
	require.NoError(t, err)
	assertMoney(t, "300", book.AccountBalance(account.ID, day).Principal)

	require.NoError(t, book.DeleteEntry(entry.ID))
	assertMoney(t, "0", book.AccountBalance(account.ID, day).Principal)

	assert.ErrorIs(t, book.DeleteEntry(entry.ID), ledger.ErrEntryNotFound)
}

// =============================================================================
// PERSISTENCE FAILURE AND RELOAD
// =============================================================================

// flakyStore wraps the memory backend and fails entry inserts on demand.
type flakyStore struct {
	*store.Memory
	failInserts atomic.Bool
}

func (f *flakyStore) InsertEntries(ctx context.Context, entries []ledger.Entry) error {
	if f.failInserts.Load() {
		return errors.New("backend down")
	}
	return f.Memory.InsertEntries(ctx, entries)
}

func TestBook_FailedWriteTriggersFullReload(t *testing.T) {
	// GIVEN: a book whose backend starts rejecting writes
	// WHEN: a mutation is applied and the queue drains
	// THEN: the optimistic in-memory entry is gone - the reloaded store
	//       state won

	flaky := &flakyStore{Memory: store.NewMemory()}
	book := ledger.NewBook(flaky, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(book.Close)

	_, account := func() (ledger.Member, ledger.Account) {
		m, err := book.AddMember("Wanjiku")
		require.NoError(t, err)
		a, err := book.AddAccount("Cash Box", ledger.AccountCash, "")
		require.NoError(t, err)
		return m, a
	}()
	day := ledger.MustDate("2025-01-05")

	_, err := book.RecordOpeningBalance(account.ID, money("100"), ledger.FundPrincipal, day, "kept")
	require.NoError(t, err)
	book.Flush()

	flaky.failInserts.Store(true)
	_, err = book.RecordOpeningBalance(account.ID, money("900"), ledger.FundPrincipal, day, "lost")
	require.NoError(t, err)

	// Visible optimistically until the durable write fails.
	book.Flush()

	entries := book.Entries(ledger.EntryFilter{Account: account.ID})
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0].Note)
	assertMoney(t, "100", book.AccountBalance(account.ID, day).Principal)
}

func TestReload_MalformedDataKeepsPreviousState(t *testing.T) {
	// GIVEN: a hydrated book whose store then acquires a dangling entry
	// WHEN: reloading
	// THEN: the reload reports a bad snapshot and the old state survives

	book, mem := newTestBook(t)
	_, account := seedGroup(t, book, "250")
	book.Flush()

	err := mem.InsertEntries(context.Background(), []ledger.Entry{{
		ID:        "dangling",
		Date:      ledger.MustDate("2025-01-09"),
		AccountID: "no-such-account",
		Fund:      ledger.FundPrincipal,
		Type:      ledger.EntryOpeningBalance,
		Amount:    money("1"),
	}})
	require.NoError(t, err)

	err = book.Reload(context.Background())
	require.ErrorIs(t, err, ledger.ErrBadSnapshot)

	assertMoney(t, "250", book.AccountBalance(account.ID, ledger.MustDate("2025-01-05")).Principal)
}

func TestReload_HydratesFromStore(t *testing.T) {
	// A second book over the same backend sees everything the first wrote.

	mem := store.NewMemory()
	first := ledger.NewBook(mem, slog.New(slog.NewTextHandler(io.Discard, nil)))
	member, err := first.AddMember("Achieng")
	require.NoError(t, err)
	account, err := first.AddAccount("Cash Box", ledger.AccountCash, "")
	require.NoError(t, err)
	day := ledger.MustDate("2025-03-10")
	_, err = first.RecordOpeningBalance(account.ID, money("40"), ledger.FundPrincipal, day, "")
	require.NoError(t, err)
	first.Close()

	second := ledger.NewBook(mem, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(second.Close)
	require.NoError(t, second.Reload(context.Background()))

	got, err := second.Member(member.ID)
	require.NoError(t, err)
	assert.Equal(t, "Achieng", got.Name)
	assertMoney(t, "40", second.AccountBalance(account.ID, day).Principal)
}

func TestBook_FlushAfterCloseDoesNotHang(t *testing.T) {
	// A mutation issued after Close has no worker left; Flush must still
	// return instead of waiting on a write nobody will run.

	mem := store.NewMemory()
	book := ledger.NewBook(mem, slog.New(slog.NewTextHandler(io.Discard, nil)))
	book.Close()

	member, err := book.AddMember("late")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		book.Flush()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Flush did not return after Close")
	}

	// Applied in memory, never persisted.
	_, err = book.Member(member.ID)
	require.NoError(t, err)
	stored, err := mem.FetchMembers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stored)
}

// =============================================================================
// MEMBER STATS
// =============================================================================

func TestMemberStats_Composite(t *testing.T) {
	book, _ := newTestBook(t)
	member, account := seedGroup(t, book, "5000")
	wallet, err := book.AddAccount("Wallet", ledger.AccountMember, member.ID)
	require.NoError(t, err)

	d1 := ledger.MustDate("2025-03-01")
	d2 := ledger.MustDate("2025-03-08")

	_, err = book.Contribute(ledger.Contribution{
		Member: member.ID, Account: account.ID, Amount: money("800"), Date: d1,
	}, d1)
	require.NoError(t, err)
	_, err = book.Contribute(ledger.Contribution{
		Member: member.ID, Account: account.ID, Amount: money("600"), Date: d2,
	}, d2)
	require.NoError(t, err)

	_, err = book.CreateLoan(ledger.LoanRequest{
		Member: member.ID, Account: account.ID,
		Principal: money("1000"), Rate: money("10"), Date: d2,
	}, d2)
	require.NoError(t, err)

	_, err = book.RecordOpeningBalance(wallet.ID, money("75"), ledger.FundPrincipal, d2, "")
	require.NoError(t, err)

	stats, err := book.MemberStats(member.ID, d2)
	require.NoError(t, err)
	assertMoney(t, "1400", stats.TotalContributed)
	assert.Equal(t, d2, stats.LastContributionOn)
	assert.Equal(t, 1, stats.ActiveLoanCount)
	assertMoney(t, "1100", stats.TotalLoanBalance)
	assertMoney(t, "75", stats.FundsHeld)

	// As of the earlier date the loan does not exist yet.
	early, err := book.MemberStats(member.ID, d1)
	require.NoError(t, err)
	assertMoney(t, "800", early.TotalContributed)
	assert.Equal(t, 0, early.ActiveLoanCount)

	_, err = book.MemberStats("ghost", d2)
	assert.ErrorIs(t, err, ledger.ErrMemberNotFound)
}
