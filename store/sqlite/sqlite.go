/*
Package sqlite provides the SQLite-backed ledger.Store.

PURPOSE:
  The durable backend for the ledger engine when running locally. The
  same shape applies to a remote relational store - only SQL dialect
  differences. Column names follow the fixed boundary mapping:
  account_id, member_id, related_loan_id, fund_type, transaction_type.

WAL MODE:
  The database opens with WAL for better read concurrency and crash
  recovery; the engine itself is a single writer.

USAGE:
  st, err := sqlite.New("./data/chama.db")
  ...
  book := ledger.NewBook(st, logger)
  book.Reload(ctx)

SEE ALSO:
  - ledger/store.go: the contract this package implements
  - ledger/store/memory.go: the in-memory counterpart
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/harambee/chama-ledger/ledger"
)

// Store implements ledger.Store on SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at path and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		carried_credit TEXT NOT NULL DEFAULT '0'
	);

	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		member_id TEXT
	);

	CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL,
		principal TEXT NOT NULL,
		rate TEXT NOT NULL,
		issued_on TEXT NOT NULL,
		due_on TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_loans_member ON loans(member_id);

	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		member_id TEXT,
		account_id TEXT NOT NULL,
		fund_type TEXT NOT NULL,
		transaction_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		related_loan_id TEXT,
		note TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_entries_account_date ON entries(account_id, date);
	CREATE INDEX IF NOT EXISTS idx_entries_member_date ON entries(member_id, date);
	CREATE INDEX IF NOT EXISTS idx_entries_loan ON entries(related_loan_id)
		WHERE related_loan_id IS NOT NULL;
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// FETCH
// =============================================================================

func (s *Store) FetchMembers(ctx context.Context) ([]ledger.Member, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, active, carried_credit FROM members ORDER BY rowid ASC")
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []ledger.Member
	for rows.Next() {
		var m ledger.Member
		var credit string
		if err := rows.Scan(&m.ID, &m.Name, &m.Active, &credit); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		if m.CarriedCredit, err = decimal.NewFromString(credit); err != nil {
			return nil, fmt.Errorf("member %s carried_credit: %w", m.ID, err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *Store) FetchAccounts(ctx context.Context) ([]ledger.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, kind, active, member_id FROM accounts ORDER BY rowid ASC")
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []ledger.Account
	for rows.Next() {
		var a ledger.Account
		var owner sql.NullString
		if err := rows.Scan(&a.ID, &a.Name, &a.Kind, &a.Active, &owner); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.MemberID = ledger.MemberID(owner.String)
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (s *Store) FetchLoans(ctx context.Context) ([]ledger.Loan, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, member_id, principal, rate, issued_on, due_on FROM loans ORDER BY issued_on ASC")
	if err != nil {
		return nil, fmt.Errorf("query loans: %w", err)
	}
	defer rows.Close()

	var loans []ledger.Loan
	for rows.Next() {
		var l ledger.Loan
		var principal, rate, issued, due string
		if err := rows.Scan(&l.ID, &l.MemberID, &principal, &rate, &issued, &due); err != nil {
			return nil, fmt.Errorf("scan loan: %w", err)
		}
		if l.Principal, err = decimal.NewFromString(principal); err != nil {
			return nil, fmt.Errorf("loan %s principal: %w", l.ID, err)
		}
		if l.Rate, err = decimal.NewFromString(rate); err != nil {
			return nil, fmt.Errorf("loan %s rate: %w", l.ID, err)
		}
		if l.IssuedOn, err = ledger.ParseDate(issued); err != nil {
			return nil, fmt.Errorf("loan %s issued_on: %w", l.ID, err)
		}
		if l.DueOn, err = ledger.ParseDate(due); err != nil {
			return nil, fmt.Errorf("loan %s due_on: %w", l.ID, err)
		}
		loans = append(loans, l)
	}
	return loans, rows.Err()
}

func (s *Store) FetchEntries(ctx context.Context) ([]ledger.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, member_id, account_id, fund_type, transaction_type,
		       amount, related_loan_id, note
		FROM entries
		ORDER BY date ASC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		var e ledger.Entry
		var date, amount string
		var member, loan, note sql.NullString
		if err := rows.Scan(&e.ID, &date, &member, &e.AccountID, &e.Fund,
			&e.Type, &amount, &loan, &note); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if e.Date, err = ledger.ParseDate(date); err != nil {
			return nil, fmt.Errorf("entry %s date: %w", e.ID, err)
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("entry %s amount: %w", e.ID, err)
		}
		e.MemberID = ledger.MemberID(member.String)
		e.LoanID = ledger.LoanID(loan.String)
		e.Note = note.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// INSERT - batch writes, one SQL transaction per call
// =============================================================================

func (s *Store) InsertMembers(ctx context.Context, members []ledger.Member) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, m := range members {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO members (id, name, active, carried_credit) VALUES (?, ?, ?, ?)",
				m.ID, m.Name, m.Active, m.CarriedCredit.String())
			if err != nil {
				return fmt.Errorf("insert member %s: %w", m.ID, err)
			}
		}
		return nil
	})
}

func (s *Store) InsertAccounts(ctx context.Context, accounts []ledger.Account) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, a := range accounts {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO accounts (id, name, kind, active, member_id) VALUES (?, ?, ?, ?, ?)",
				a.ID, a.Name, a.Kind, a.Active, nullString(string(a.MemberID)))
			if err != nil {
				return fmt.Errorf("insert account %s: %w", a.ID, err)
			}
		}
		return nil
	})
}

func (s *Store) InsertLoans(ctx context.Context, loans []ledger.Loan) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, l := range loans {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO loans (id, member_id, principal, rate, issued_on, due_on) VALUES (?, ?, ?, ?, ?, ?)",
				l.ID, l.MemberID, l.Principal.String(), l.Rate.String(),
				l.IssuedOn.String(), l.DueOn.String())
			if err != nil {
				return fmt.Errorf("insert loan %s: %w", l.ID, err)
			}
		}
		return nil
	})
}

func (s *Store) InsertEntries(ctx context.Context, entries []ledger.Entry) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, e := range entries {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO entries
				(id, date, member_id, account_id, fund_type, transaction_type, amount, related_loan_id, note)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				e.ID, e.Date.String(), nullString(string(e.MemberID)), e.AccountID,
				e.Fund, e.Type, e.Amount.String(), nullString(string(e.LoanID)), e.Note)
			if err != nil {
				return fmt.Errorf("insert entry %s: %w", e.ID, err)
			}
		}
		return nil
	})
}

// =============================================================================
// UPDATE / DELETE
// =============================================================================

func (s *Store) UpdateMemberCredit(ctx context.Context, id ledger.MemberID, credit decimal.Decimal) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE members SET carried_credit = ? WHERE id = ?", credit.String(), id)
	if err != nil {
		return fmt.Errorf("update member %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrMemberNotFound
	}
	return nil
}

func (s *Store) DeleteEntry(ctx context.Context, id ledger.EntryID) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM entries WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete entry %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrEntryNotFound
	}
	return nil
}

func (s *Store) DeactivateAccount(ctx context.Context, id ledger.AccountID) error {
	res, err := s.db.ExecContext(ctx, "UPDATE accounts SET active = 0 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deactivate account %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

// Wipe removes all rows, entries first so a crash mid-wipe never leaves
// entries pointing at missing registries.
func (s *Store) Wipe(ctx context.Context) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"entries", "loans", "accounts", "members"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("wipe %s: %w", table, err)
			}
		}
		return nil
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
