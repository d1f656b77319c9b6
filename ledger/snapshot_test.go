package ledger_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harambee/chama-ledger/ledger"
	"github.com/harambee/chama-ledger/ledger/store"
)

func TestSnapshot_ExportImportRoundTrip(t *testing.T) {
	// GIVEN: a book with members, accounts, a loan, and mixed entries
	// WHEN: exporting and importing into a fresh book over a fresh store
	// THEN: every derived view matches the original

	source, _ := newTestBook(t)
	member, account := seedGroup(t, source, "5000")
	day := ledger.MustDate("2025-03-10")

	_, err := source.Contribute(ledger.Contribution{
		Member: member.ID, Account: account.ID, Amount: money("1500"), Date: day,
	}, day)
	require.NoError(t, err)
	loan, err := source.CreateLoan(ledger.LoanRequest{
		Member: member.ID, Account: account.ID,
		Principal: money("1000"), Rate: money("10"), Date: day,
	}, day)
	require.NoError(t, err)
	source.Flush()

	snap := source.Export()
	assert.Equal(t, ledger.SnapshotVersion, snap.Version)

	targetStore := store.NewMemory()
	target := ledger.NewBook(targetStore, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(target.Close)

	require.NoError(t, target.Import(context.Background(), snap))

	assert.Equal(t, source.Export(), target.Export())

	gotMember, err := target.Member(member.ID)
	require.NoError(t, err)
	assertMoney(t, "500", gotMember.CarriedCredit)

	srcBal := source.AccountBalance(account.ID, day)
	dstBal := target.AccountBalance(account.ID, day)
	assert.True(t, srcBal.Total.Equal(dstBal.Total))

	state, err := target.LoanState(loan.ID, day)
	require.NoError(t, err)
	assertMoney(t, "1100", state.Balance)

	// The import was durable: a reload from the target store holds.
	require.NoError(t, target.Reload(context.Background()))
	assert.True(t, dstBal.Total.Equal(target.AccountBalance(account.ID, day).Total))
}

func TestImport_ReplacesExistingData(t *testing.T) {
	book, _ := newTestBook(t)
	_, account := seedGroup(t, book, "9999")
	book.Flush()

	snap := ledger.Snapshot{
		Version: ledger.SnapshotVersion,
		Members: []ledger.Member{
			{ID: "m1", Name: "Achieng", Active: true, CarriedCredit: decimal.Zero},
		},
	}
	require.NoError(t, book.Import(context.Background(), snap))

	_, err := book.Account(account.ID)
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
	require.Len(t, book.Members(), 1)
	assert.Equal(t, "Achieng", book.Members()[0].Name)
	assert.Empty(t, book.Entries(ledger.EntryFilter{}))
}

func TestImport_RejectsWrongVersion(t *testing.T) {
	book, _ := newTestBook(t)
	err := book.Import(context.Background(), ledger.Snapshot{Version: 99})
	assert.ErrorIs(t, err, ledger.ErrBadSnapshot)
}

func TestImport_ValidationGate(t *testing.T) {
	book, _ := newTestBook(t)

	cases := []struct {
		name string
		snap ledger.Snapshot
	}{
		{
			name: "duplicate member",
			snap: ledger.Snapshot{
				Version: ledger.SnapshotVersion,
				Members: []ledger.Member{
					{ID: "m1", Name: "A", CarriedCredit: decimal.Zero},
					{ID: "m1", Name: "B", CarriedCredit: decimal.Zero},
				},
			},
		},
		{
			name: "negative carried credit",
			snap: ledger.Snapshot{
				Version: ledger.SnapshotVersion,
				Members: []ledger.Member{
					{ID: "m1", Name: "A", CarriedCredit: money("-1")},
				},
			},
		},
		{
			name: "account with unknown kind",
			snap: ledger.Snapshot{
				Version: ledger.SnapshotVersion,
				Accounts: []ledger.Account{
					{ID: "a1", Name: "X", Kind: "vault"},
				},
			},
		},
		{
			name: "account owned by unknown member",
			snap: ledger.Snapshot{
				Version: ledger.SnapshotVersion,
				Accounts: []ledger.Account{
					{ID: "a1", Name: "X", Kind: ledger.AccountMember, MemberID: "ghost"},
				},
			},
		},
		{
			name: "loan for unknown member",
			snap: ledger.Snapshot{
				Version: ledger.SnapshotVersion,
				Loans: []ledger.Loan{
					{ID: "l1", MemberID: "ghost", Principal: money("10"), Rate: decimal.Zero,
						IssuedOn: ledger.MustDate("2025-01-01"), DueOn: ledger.MustDate("2025-01-31")},
				},
			},
		},
		{
			name: "entry on unknown account",
			snap: ledger.Snapshot{
				Version: ledger.SnapshotVersion,
				Entries: []ledger.Entry{
					{ID: "e1", Date: ledger.MustDate("2025-01-01"), AccountID: "ghost",
						Fund: ledger.FundPrincipal, Type: ledger.EntryOpeningBalance, Amount: money("10")},
				},
			},
		},
		{
			name: "repayment without loan reference",
			snap: ledger.Snapshot{
				Version: ledger.SnapshotVersion,
				Members: []ledger.Member{{ID: "m1", Name: "A", CarriedCredit: decimal.Zero}},
				Accounts: []ledger.Account{
					{ID: "a1", Name: "X", Kind: ledger.AccountCash},
				},
				Entries: []ledger.Entry{
					{ID: "e1", Date: ledger.MustDate("2025-01-01"), MemberID: "m1", AccountID: "a1",
						Fund: ledger.FundPrincipal, Type: ledger.EntryLoanRepayment, Amount: money("10")},
				},
			},
		},
		{
			name: "loan reference on a non-repayment",
			snap: ledger.Snapshot{
				Version: ledger.SnapshotVersion,
				Members: []ledger.Member{{ID: "m1", Name: "A", CarriedCredit: decimal.Zero}},
				Accounts: []ledger.Account{
					{ID: "a1", Name: "X", Kind: ledger.AccountCash},
				},
				Loans: []ledger.Loan{
					{ID: "l1", MemberID: "m1", Principal: money("10"), Rate: decimal.Zero,
						IssuedOn: ledger.MustDate("2025-01-01"), DueOn: ledger.MustDate("2025-01-31")},
				},
				Entries: []ledger.Entry{
					{ID: "e1", Date: ledger.MustDate("2025-01-01"), AccountID: "a1",
						Fund: ledger.FundPrincipal, Type: ledger.EntryContribution,
						MemberID: "m1", Amount: money("10"), LoanID: "l1"},
				},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := book.Import(context.Background(), tc.snap)
			assert.ErrorIs(t, err, ledger.ErrBadSnapshot)
		})
	}
}
