/*
snapshot.go - Bulk export/import and dataset validation

PURPOSE:
  A Snapshot is the structured document carrying the four entity
  collections plus a format version tag. Export produces one from the
  in-memory state; Import wipes the backend and replaces all data,
  inserting in dependency order (members -> accounts -> loans ->
  entries) in chunks that respect backend payload limits.

  The same validation gate guards both Import and Reload: malformed
  data never reaches the in-memory state.
*/
package ledger

import (
	"context"
	"fmt"
)

// SnapshotVersion tags the export format.
const SnapshotVersion = 1

// importChunkSize bounds a single insert call during import.
const importChunkSize = 200

// Snapshot is the bulk export/import document. Field names crossing
// this boundary use the store's snake_case mapping (account_id,
// member_id, related_loan_id, fund_type, transaction_type).
type Snapshot struct {
	Version  int       `json:"version"`
	Members  []Member  `json:"members"`
	Accounts []Account `json:"accounts"`
	Loans    []Loan    `json:"loans"`
	Entries  []Entry   `json:"entries"`
}

// Export captures the current in-memory dataset.
func (b *Book) Export() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snap := Snapshot{Version: SnapshotVersion}
	for _, id := range b.memberOrder {
		snap.Members = append(snap.Members, b.members[id])
	}
	for _, id := range b.accountOrder {
		snap.Accounts = append(snap.Accounts, b.accounts[id])
	}
	snap.Loans = append(snap.Loans, b.loans...)
	snap.Entries = append(snap.Entries, b.entries...)
	return snap
}

// Import wipes the backend, writes the snapshot in dependency order,
// then swaps the in-memory state. The writes are synchronous: import is
// an administrative bulk operation, not an optimistic mutation. If a
// write fails mid-way the in-memory state is left untouched and the
// caller should re-import.
func (b *Book) Import(ctx context.Context, snap Snapshot) error {
	if snap.Version != SnapshotVersion {
		return fmt.Errorf("%w: unsupported snapshot version %d", ErrBadSnapshot, snap.Version)
	}
	if err := snap.validate(); err != nil {
		return err
	}

	// Settle in-flight writes before wiping underneath them.
	b.Flush()

	if err := b.store.Wipe(ctx); err != nil {
		return fmt.Errorf("wipe store: %w", err)
	}
	for _, members := range chunk(snap.Members, importChunkSize) {
		if err := b.store.InsertMembers(ctx, members); err != nil {
			return fmt.Errorf("import members: %w", err)
		}
	}
	for _, accounts := range chunk(snap.Accounts, importChunkSize) {
		if err := b.store.InsertAccounts(ctx, accounts); err != nil {
			return fmt.Errorf("import accounts: %w", err)
		}
	}
	for _, loans := range chunk(snap.Loans, importChunkSize) {
		if err := b.store.InsertLoans(ctx, loans); err != nil {
			return fmt.Errorf("import loans: %w", err)
		}
	}
	for _, entries := range chunk(snap.Entries, importChunkSize) {
		if err := b.store.InsertEntries(ctx, entries); err != nil {
			return fmt.Errorf("import entries: %w", err)
		}
	}

	b.setState(snap)
	b.log.Info("snapshot imported",
		"members", len(snap.Members), "accounts", len(snap.Accounts),
		"loans", len(snap.Loans), "entries", len(snap.Entries))
	return nil
}

// validate checks referential integrity and value sanity. Every error
// wraps ErrBadSnapshot so a reload can abort cleanly.
func (s Snapshot) validate() error {
	members := make(map[MemberID]bool, len(s.Members))
	for _, m := range s.Members {
		if m.ID == "" {
			return fmt.Errorf("%w: member with empty id", ErrBadSnapshot)
		}
		if members[m.ID] {
			return fmt.Errorf("%w: duplicate member %s", ErrBadSnapshot, m.ID)
		}
		if m.CarriedCredit.IsNegative() {
			return fmt.Errorf("%w: member %s has negative carried credit", ErrBadSnapshot, m.ID)
		}
		members[m.ID] = true
	}

	accounts := make(map[AccountID]bool, len(s.Accounts))
	for _, a := range s.Accounts {
		if a.ID == "" {
			return fmt.Errorf("%w: account with empty id", ErrBadSnapshot)
		}
		if accounts[a.ID] {
			return fmt.Errorf("%w: duplicate account %s", ErrBadSnapshot, a.ID)
		}
		if !ValidAccountKind(a.Kind) {
			return fmt.Errorf("%w: account %s has unknown kind %q", ErrBadSnapshot, a.ID, a.Kind)
		}
		if a.MemberID != "" && !members[a.MemberID] {
			return fmt.Errorf("%w: account %s references unknown member %s", ErrBadSnapshot, a.ID, a.MemberID)
		}
		accounts[a.ID] = true
	}

	loans := make(map[LoanID]bool, len(s.Loans))
	for _, l := range s.Loans {
		if l.ID == "" {
			return fmt.Errorf("%w: loan with empty id", ErrBadSnapshot)
		}
		if loans[l.ID] {
			return fmt.Errorf("%w: duplicate loan %s", ErrBadSnapshot, l.ID)
		}
		if !members[l.MemberID] {
			return fmt.Errorf("%w: loan %s references unknown member %s", ErrBadSnapshot, l.ID, l.MemberID)
		}
		if !l.Principal.IsPositive() || l.Rate.IsNegative() {
			return fmt.Errorf("%w: loan %s has invalid principal or rate", ErrBadSnapshot, l.ID)
		}
		if l.IssuedOn.IsZero() || l.DueOn.IsZero() {
			return fmt.Errorf("%w: loan %s is missing dates", ErrBadSnapshot, l.ID)
		}
		loans[l.ID] = true
	}

	entryIDs := make(map[EntryID]bool, len(s.Entries))
	for _, e := range s.Entries {
		if e.ID == "" {
			return fmt.Errorf("%w: entry with empty id", ErrBadSnapshot)
		}
		if entryIDs[e.ID] {
			return fmt.Errorf("%w: duplicate entry %s", ErrBadSnapshot, e.ID)
		}
		if e.Date.IsZero() {
			return fmt.Errorf("%w: entry %s has no date", ErrBadSnapshot, e.ID)
		}
		if !accounts[e.AccountID] {
			return fmt.Errorf("%w: entry %s references unknown account %s", ErrBadSnapshot, e.ID, e.AccountID)
		}
		if e.MemberID != "" && !members[e.MemberID] {
			return fmt.Errorf("%w: entry %s references unknown member %s", ErrBadSnapshot, e.ID, e.MemberID)
		}
		if !ValidFundType(e.Fund) {
			return fmt.Errorf("%w: entry %s has unknown fund pool %q", ErrBadSnapshot, e.ID, e.Fund)
		}
		switch e.Type {
		case EntryLoanRepayment:
			if e.LoanID == "" || !loans[e.LoanID] {
				return fmt.Errorf("%w: repayment entry %s has no valid loan reference", ErrBadSnapshot, e.ID)
			}
		case EntryContribution, EntryLoanGiven, EntryExpense, EntryTransfer, EntryOpeningBalance:
			if e.LoanID != "" {
				return fmt.Errorf("%w: entry %s carries a loan reference but is not a repayment", ErrBadSnapshot, e.ID)
			}
		default:
			return fmt.Errorf("%w: entry %s has unknown type %q", ErrBadSnapshot, e.ID, e.Type)
		}
		entryIDs[e.ID] = true
	}

	return nil
}

func chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	var out [][]T
	for size < len(items) {
		out = append(out, items[:size:size])
		items = items[size:]
	}
	return append(out, items)
}
