// Package store provides an in-memory ledger.Store for tests and dev.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/harambee/chama-ledger/ledger"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

// Memory keeps the four collections in process. Entries are held in
// date order, matching the FetchEntries contract.
type Memory struct {
	mu       sync.RWMutex
	members  []ledger.Member
	accounts []ledger.Account
	loans    []ledger.Loan
	entries  []ledger.Entry
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) FetchMembers(_ context.Context) ([]ledger.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ledger.Member(nil), m.members...), nil
}

func (m *Memory) FetchAccounts(_ context.Context) ([]ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ledger.Account(nil), m.accounts...), nil
}

func (m *Memory) FetchLoans(_ context.Context) ([]ledger.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ledger.Loan(nil), m.loans...), nil
}

func (m *Memory) FetchEntries(_ context.Context) ([]ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ledger.Entry(nil), m.entries...), nil
}

func (m *Memory) InsertMembers(_ context.Context, members []ledger.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members = append(m.members, members...)
	return nil
}

func (m *Memory) InsertAccounts(_ context.Context, accounts []ledger.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts = append(m.accounts, accounts...)
	return nil
}

func (m *Memory) InsertLoans(_ context.Context, loans []ledger.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loans = append(m.loans, loans...)
	return nil
}

func (m *Memory) InsertEntries(_ context.Context, entries []ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		// Binary search keeps the log date-ordered on insert.
		i := sort.Search(len(m.entries), func(i int) bool {
			return m.entries[i].Date.After(e.Date)
		})
		m.entries = append(m.entries, ledger.Entry{})
		copy(m.entries[i+1:], m.entries[i:])
		m.entries[i] = e
	}
	return nil
}

func (m *Memory) UpdateMemberCredit(_ context.Context, id ledger.MemberID, credit decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.members {
		if m.members[i].ID == id {
			m.members[i].CarriedCredit = credit
			return nil
		}
	}
	return ledger.ErrMemberNotFound
}

func (m *Memory) DeleteEntry(_ context.Context, id ledger.EntryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.entries {
		if e.ID == id {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return nil
		}
	}
	return ledger.ErrEntryNotFound
}

func (m *Memory) DeactivateAccount(_ context.Context, id ledger.AccountID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.accounts {
		if m.accounts[i].ID == id {
			m.accounts[i].Active = false
			return nil
		}
	}
	return ledger.ErrAccountNotFound
}

func (m *Memory) Wipe(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members = nil
	m.accounts = nil
	m.loans = nil
	m.entries = nil
	return nil
}
