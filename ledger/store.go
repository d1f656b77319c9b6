/*
store.go - Persistence backend contract

PURPOSE:
  The durable home of the four entity collections. The Book treats the
  store as an external collaborator: mutations apply in memory first and
  are forwarded afterwards; a failed forward triggers a full reload from
  the store rather than an in-place retry.

CAPABILITIES (the four verbs the engine needs):
  Fetch*        full collection reads; entries come back date-ascending
  Insert*       batch writes, atomic per call from the engine's view
  UpdateMemberCredit / DeactivateAccount  the only partial updates
  DeleteEntry / Wipe  the only delete predicates used

IMPLEMENTATIONS:
  - ledger/store: in-memory, for tests and dev
  - store/sqlite: the local durable substitute for a remote backend
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// Store persists the entity collections. The engine tolerates partial
// inserts on failure: its answer to any persistence error is a full
// reload, never a fine-grained rollback.
type Store interface {
	FetchMembers(ctx context.Context) ([]Member, error)
	FetchAccounts(ctx context.Context) ([]Account, error)
	FetchLoans(ctx context.Context) ([]Loan, error)

	// FetchEntries returns all entries ordered by date ascending.
	FetchEntries(ctx context.Context) ([]Entry, error)

	InsertMembers(ctx context.Context, members []Member) error
	InsertAccounts(ctx context.Context, accounts []Account) error
	InsertLoans(ctx context.Context, loans []Loan) error
	InsertEntries(ctx context.Context, entries []Entry) error

	// UpdateMemberCredit rewrites a member's carried credit wholesale.
	UpdateMemberCredit(ctx context.Context, id MemberID, credit decimal.Decimal) error

	// DeactivateAccount retires an account. The row must survive as a
	// tombstone: historical entries keep referencing it across reloads.
	DeactivateAccount(ctx context.Context, id AccountID) error

	DeleteEntry(ctx context.Context, id EntryID) error

	// Wipe removes all data. Only issued by snapshot import.
	Wipe(ctx context.Context) error
}
