/*
book.go - The mutation facade

PURPOSE:
  Book owns the in-memory entry log and the member/account/loan
  registries, and is the only way to change them. Every mutation:

    1. validates its preconditions against the derived views
    2. applies the new entries to the in-memory log synchronously
       (immediately observable to readers)
    3. forwards the same records to the persistence backend from a
       background worker

  A failed forward is never rolled back entry-by-entry. The Book logs a
  warning and reloads the whole dataset from the backend - last full
  reload wins. A reload that finds malformed data aborts and leaves the
  previous in-memory state intact.

CONCURRENCY:
  Single logical writer: mutations serialize on one mutex and run to
  completion before the next is accepted. The background worker applies
  durable writes in mutation order. Readers take the read lock and see
  every applied mutation immediately.

SEE ALSO:
  - allocate.go: the contribution waterfall invoked by Contribute
  - store.go: the backend contract
  - snapshot.go: bulk export/import and dataset validation
*/
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// removalEpsilon absorbs residual rounding when checking that a
// removable account's entries sum to zero.
var removalEpsilon = decimal.RequireFromString("0.01")

// Book is the ledger facade. Create with NewBook, stop with Close.
type Book struct {
	mu sync.RWMutex

	members      map[MemberID]Member
	memberOrder  []MemberID
	accounts     map[AccountID]Account
	accountOrder []AccountID
	loans        []Loan
	entries      []Entry

	store Store
	log   *slog.Logger

	queue   *syncQueue
	pending sync.WaitGroup
	done    chan struct{}
	closed  sync.Once
}

// NewBook creates a Book over an empty in-memory dataset and starts the
// background sync worker. Call Reload to hydrate from the store.
func NewBook(store Store, log *slog.Logger) *Book {
	if log == nil {
		log = slog.Default()
	}
	b := &Book{
		members:  make(map[MemberID]Member),
		accounts: make(map[AccountID]Account),
		store:    store,
		log:      log,
		queue:    newSyncQueue(),
		done:     make(chan struct{}),
	}
	go b.syncLoop()
	return b
}

// Close drains the sync queue and stops the worker.
func (b *Book) Close() {
	b.closed.Do(func() {
		b.pending.Wait()
		b.queue.close()
		<-b.done
	})
}

// Flush blocks until every enqueued durable write has been attempted.
// Used by tests and by snapshot export to get a settled backend.
func (b *Book) Flush() {
	b.pending.Wait()
}

// =============================================================================
// QUERIES
// =============================================================================

// Member returns one member by id.
func (b *Book) Member(id MemberID) (Member, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	m, ok := b.members[id]
	if !ok {
		return Member{}, ErrMemberNotFound
	}
	return m, nil
}

// Members returns all members in creation order.
func (b *Book) Members() []Member {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Member, 0, len(b.memberOrder))
	for _, id := range b.memberOrder {
		out = append(out, b.members[id])
	}
	return out
}

// Account returns one account by id.
func (b *Book) Account(id AccountID) (Account, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	a, ok := b.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return a, nil
}

// Accounts returns all accounts in creation order.
func (b *Book) Accounts() []Account {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Account, 0, len(b.accountOrder))
	for _, id := range b.accountOrder {
		out = append(out, b.accounts[id])
	}
	return out
}

// Loan returns one loan by id.
func (b *Book) Loan(id LoanID) (Loan, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, l := range b.loans {
		if l.ID == id {
			return l, nil
		}
	}
	return Loan{}, ErrLoanNotFound
}

// Loans returns all loans in issue order.
func (b *Book) Loans() []Loan {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Loan, len(b.loans))
	copy(out, b.loans)
	return out
}

// LoansOf returns the member's loans in issue order.
func (b *Book) LoansOf(member MemberID) []Loan {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.loansOfLocked(member)
}

func (b *Book) loansOfLocked(member MemberID) []Loan {
	var out []Loan
	for _, l := range b.loans {
		if l.MemberID == member {
			out = append(out, l)
		}
	}
	return out
}

// EntryFilter narrows an entry listing. Zero fields match everything.
type EntryFilter struct {
	Account AccountID
	Member  MemberID
	AsOf    Date
}

// Entries returns matching entries in date order.
func (b *Book) Entries(f EntryFilter) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []Entry
	for _, e := range b.entries {
		if f.Account != "" && e.AccountID != f.Account {
			continue
		}
		if f.Member != "" && e.MemberID != f.Member {
			continue
		}
		if !f.AsOf.IsZero() && !e.Date.OnOrBefore(f.AsOf) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// AccountBalance folds the account's entries visible as of asOf.
// An unknown account yields zero balances.
func (b *Book) AccountBalance(id AccountID, asOf Date) AccountBalance {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return accountBalance(b.entries, id, asOf)
}

// LoanState evaluates one loan as of asOf.
func (b *Book) LoanState(id LoanID, asOf Date) (LoanState, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, l := range b.loans {
		if l.ID == id {
			return EvaluateLoan(l, b.entries, asOf), nil
		}
	}
	return LoanState{}, ErrLoanNotFound
}

// MemberStats summarizes the member as of asOf.
func (b *Book) MemberStats(id MemberID, asOf Date) (MemberStats, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if _, ok := b.members[id]; !ok {
		return MemberStats{}, ErrMemberNotFound
	}
	accounts := make([]Account, 0, len(b.accountOrder))
	for _, aid := range b.accountOrder {
		accounts = append(accounts, b.accounts[aid])
	}
	return memberStats(id, accounts, b.loansOfLocked(id), b.entries, asOf), nil
}

// InterestAvailable is the spendable shared interest pool as of asOf.
func (b *Book) InterestAvailable(asOf Date) decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return interestAvailable(b.entries, asOf)
}

// =============================================================================
// MUTATIONS
// =============================================================================

// AddMember registers a new active member with zero carried credit.
func (b *Book) AddMember(name string) (Member, error) {
	m := Member{
		ID:            MemberID(uuid.NewString()),
		Name:          name,
		Active:        true,
		CarriedCredit: decimal.Zero,
	}

	b.mu.Lock()
	b.members[m.ID] = m
	b.memberOrder = append(b.memberOrder, m.ID)
	b.mu.Unlock()

	b.forward("insert member", func(ctx context.Context) error {
		return b.store.InsertMembers(ctx, []Member{m})
	})
	return m, nil
}

// AddAccount registers a new account. Member-kind accounts must name
// their owning member; the owner is ignored for other kinds.
func (b *Book) AddAccount(name string, kind AccountKind, owner MemberID) (Account, error) {
	if !ValidAccountKind(kind) {
		return Account{}, fmt.Errorf("%w: account kind %q", ErrInvalidKind, kind)
	}
	if kind != AccountMember {
		owner = ""
	}

	b.mu.Lock()
	if kind == AccountMember {
		if _, ok := b.members[owner]; !ok {
			b.mu.Unlock()
			return Account{}, ErrMemberNotFound
		}
	}
	a := Account{
		ID:       AccountID(uuid.NewString()),
		Name:     name,
		Kind:     kind,
		Active:   true,
		MemberID: owner,
	}
	b.accounts[a.ID] = a
	b.accountOrder = append(b.accountOrder, a.ID)
	b.mu.Unlock()

	b.forward("insert account", func(ctx context.Context) error {
		return b.store.InsertAccounts(ctx, []Account{a})
	})
	return a, nil
}

// RemoveAccount retires an account whose entries sum to zero within a
// small epsilon. The record stays behind as an inactive tombstone so its
// historical entries remain resolvable across reloads; only active
// accounts take new entries.
func (b *Book) RemoveAccount(id AccountID) error {
	b.mu.Lock()
	a, ok := b.accounts[id]
	if !ok || !a.Active {
		b.mu.Unlock()
		return ErrAccountNotFound
	}
	if accountLifetimeSum(b.entries, id).Abs().GreaterThan(removalEpsilon) {
		b.mu.Unlock()
		return ErrAccountNotEmpty
	}
	a.Active = false
	b.accounts[id] = a
	b.mu.Unlock()

	b.forward("deactivate account", func(ctx context.Context) error {
		return b.store.DeactivateAccount(ctx, id)
	})
	return nil
}

// Contribute runs the waterfall for an incoming member contribution and
// applies its outcome: the planned entries are appended as one batch and
// the member's carried credit is replaced. Loan status inside the
// waterfall is evaluated as of asOf; the daily share cap is about the
// contribution's literal date.
func (b *Book) Contribute(c Contribution, asOf Date) (Allocation, error) {
	b.mu.Lock()
	member, ok := b.members[c.Member]
	if !ok {
		b.mu.Unlock()
		return Allocation{}, ErrMemberNotFound
	}
	if !b.activeAccountLocked(c.Account) {
		b.mu.Unlock()
		return Allocation{}, ErrAccountNotFound
	}

	alloc, err := allocateContribution(member, c, b.loansOfLocked(c.Member), b.entries, asOf, newEntryID)
	if err != nil {
		b.mu.Unlock()
		return Allocation{}, err
	}

	b.appendLocked(alloc.Entries)
	member.CarriedCredit = alloc.CarriedCredit
	b.members[c.Member] = member
	b.mu.Unlock()

	entries := alloc.Entries
	b.forward("contribution", func(ctx context.Context) error {
		if len(entries) > 0 {
			if err := b.store.InsertEntries(ctx, entries); err != nil {
				return err
			}
		}
		return b.store.UpdateMemberCredit(ctx, c.Member, alloc.CarriedCredit)
	})
	return alloc, nil
}

// LoanRequest is the input to CreateLoan. A zero DueOn defaults to the
// issue date plus LoanTermDays.
type LoanRequest struct {
	Member    MemberID
	Account   AccountID
	Principal decimal.Decimal
	Rate      decimal.Decimal
	Date      Date
	DueOn     Date
	Note      string
}

// CreateLoan issues a loan: the principal leaves the source account
// immediately, interest accrues only notionally through EvaluateLoan.
// Fails if the account cannot cover the principal or the member already
// has an unpaid loan as of asOf.
func (b *Book) CreateLoan(req LoanRequest, asOf Date) (Loan, error) {
	if !req.Principal.IsPositive() || req.Rate.IsNegative() {
		return Loan{}, ErrInvalidAmount
	}

	b.mu.Lock()
	if _, ok := b.members[req.Member]; !ok {
		b.mu.Unlock()
		return Loan{}, ErrMemberNotFound
	}
	if !b.activeAccountLocked(req.Account) {
		b.mu.Unlock()
		return Loan{}, ErrAccountNotFound
	}

	available := accountBalance(b.entries, req.Account, asOf).Total
	if available.LessThan(req.Principal) {
		b.mu.Unlock()
		return Loan{}, &InsufficientFundsError{
			AccountID: req.Account,
			Available: available,
			Requested: req.Principal,
		}
	}

	// One outstanding loan per member, checked at creation time.
	for _, l := range b.loansOfLocked(req.Member) {
		state := EvaluateLoan(l, b.entries, asOf)
		if state.Status != LoanPaid {
			b.mu.Unlock()
			return Loan{}, &OutstandingLoanError{
				MemberID: req.Member,
				LoanID:   l.ID,
				Balance:  state.Balance,
			}
		}
	}

	dueOn := req.DueOn
	if dueOn.IsZero() {
		dueOn = req.Date.AddDays(LoanTermDays)
	}
	loan := Loan{
		ID:        LoanID(uuid.NewString()),
		MemberID:  req.Member,
		Principal: req.Principal,
		Rate:      req.Rate,
		IssuedOn:  req.Date,
		DueOn:     dueOn,
	}
	entry := Entry{
		ID:        newEntryID(),
		Date:      req.Date,
		MemberID:  req.Member,
		AccountID: req.Account,
		Fund:      FundPrincipal,
		Type:      EntryLoanGiven,
		Amount:    req.Principal.Neg(),
		LoanID:    "",
		Note:      req.Note,
	}
	b.loans = append(b.loans, loan)
	b.appendLocked([]Entry{entry})
	b.mu.Unlock()

	b.forward("create loan", func(ctx context.Context) error {
		if err := b.store.InsertLoans(ctx, []Loan{loan}); err != nil {
			return err
		}
		return b.store.InsertEntries(ctx, []Entry{entry})
	})
	return loan, nil
}

// RecordExpense spends from the shared interest pool. The pool is
// finite: the expense must fit within interest earned minus interest
// already spent, both as of asOf.
func (b *Book) RecordExpense(amount decimal.Decimal, account AccountID, date Date, note string, asOf Date) (Entry, error) {
	if !amount.IsPositive() {
		return Entry{}, ErrInvalidAmount
	}

	b.mu.Lock()
	if !b.activeAccountLocked(account) {
		b.mu.Unlock()
		return Entry{}, ErrAccountNotFound
	}
	available := interestAvailable(b.entries, asOf)
	if available.LessThan(amount) {
		b.mu.Unlock()
		return Entry{}, &InsufficientInterestError{Available: available, Requested: amount}
	}

	entry := Entry{
		ID:        newEntryID(),
		Date:      date,
		AccountID: account,
		Fund:      FundInterest,
		Type:      EntryExpense,
		Amount:    amount.Neg(),
		Note:      note,
	}
	b.appendLocked([]Entry{entry})
	b.mu.Unlock()

	b.forward("expense", func(ctx context.Context) error {
		return b.store.InsertEntries(ctx, []Entry{entry})
	})
	return entry, nil
}

// Transfer moves money between two accounts within one fund pool. It
// always writes exactly two entries of equal magnitude and opposite
// sign; no partial transfer is ever observable.
func (b *Book) Transfer(from, to AccountID, amount decimal.Decimal, fund FundType, date Date, note string) ([]Entry, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if !ValidFundType(fund) {
		return nil, fmt.Errorf("%w: fund pool %q", ErrInvalidKind, fund)
	}
	if from == to {
		return nil, fmt.Errorf("%w: transfer needs two distinct accounts", ErrInvalidKind)
	}

	b.mu.Lock()
	if !b.activeAccountLocked(from) {
		b.mu.Unlock()
		return nil, ErrAccountNotFound
	}
	if !b.activeAccountLocked(to) {
		b.mu.Unlock()
		return nil, ErrAccountNotFound
	}

	pair := []Entry{
		{
			ID:        newEntryID(),
			Date:      date,
			AccountID: from,
			Fund:      fund,
			Type:      EntryTransfer,
			Amount:    amount.Neg(),
			Note:      note,
		},
		{
			ID:        newEntryID(),
			Date:      date,
			AccountID: to,
			Fund:      fund,
			Type:      EntryTransfer,
			Amount:    amount,
			Note:      note,
		},
	}
	b.appendLocked(pair)
	b.mu.Unlock()

	b.forward("transfer", func(ctx context.Context) error {
		return b.store.InsertEntries(ctx, pair)
	})
	return pair, nil
}

// RecordOpeningBalance seeds a historical balance. No precondition
// checks beyond the account existing; the amount may be negative.
func (b *Book) RecordOpeningBalance(account AccountID, amount decimal.Decimal, fund FundType, date Date, note string) (Entry, error) {
	if amount.IsZero() {
		return Entry{}, ErrInvalidAmount
	}
	if !ValidFundType(fund) {
		return Entry{}, fmt.Errorf("%w: fund pool %q", ErrInvalidKind, fund)
	}

	b.mu.Lock()
	if !b.activeAccountLocked(account) {
		b.mu.Unlock()
		return Entry{}, ErrAccountNotFound
	}
	entry := Entry{
		ID:        newEntryID(),
		Date:      date,
		AccountID: account,
		Fund:      fund,
		Type:      EntryOpeningBalance,
		Amount:    amount,
		Note:      note,
	}
	b.appendLocked([]Entry{entry})
	b.mu.Unlock()

	b.forward("opening balance", func(ctx context.Context) error {
		return b.store.InsertEntries(ctx, []Entry{entry})
	})
	return entry, nil
}

// DeleteEntry removes an arbitrary entry by id. There is no
// compensating rebalancing; the caller owns the consequence.
func (b *Book) DeleteEntry(id EntryID) error {
	b.mu.Lock()
	found := false
	for i, e := range b.entries {
		if e.ID == id {
			b.entries = append(b.entries[:i], b.entries[i+1:]...)
			found = true
			break
		}
	}
	b.mu.Unlock()
	if !found {
		return ErrEntryNotFound
	}

	b.forward("delete entry", func(ctx context.Context) error {
		return b.store.DeleteEntry(ctx, id)
	})
	return nil
}

// =============================================================================
// RELOAD - the sole recovery mechanism
// =============================================================================

// Reload replaces the in-memory dataset with whatever the store holds.
// Malformed stored data aborts the reload and keeps the previous state.
func (b *Book) Reload(ctx context.Context) error {
	members, err := b.store.FetchMembers(ctx)
	if err != nil {
		return fmt.Errorf("fetch members: %w", err)
	}
	accounts, err := b.store.FetchAccounts(ctx)
	if err != nil {
		return fmt.Errorf("fetch accounts: %w", err)
	}
	loans, err := b.store.FetchLoans(ctx)
	if err != nil {
		return fmt.Errorf("fetch loans: %w", err)
	}
	entries, err := b.store.FetchEntries(ctx)
	if err != nil {
		return fmt.Errorf("fetch entries: %w", err)
	}

	snap := Snapshot{
		Version:  SnapshotVersion,
		Members:  members,
		Accounts: accounts,
		Loans:    loans,
		Entries:  entries,
	}
	if err := snap.validate(); err != nil {
		return err
	}

	b.setState(snap)
	metricReloads.Inc()
	b.log.Info("ledger reloaded from store",
		"members", len(members), "accounts", len(accounts),
		"loans", len(loans), "entries", len(entries))
	return nil
}

// setState swaps the in-memory dataset for a validated snapshot.
func (b *Book) setState(snap Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.members = make(map[MemberID]Member, len(snap.Members))
	b.memberOrder = b.memberOrder[:0]
	for _, m := range snap.Members {
		b.members[m.ID] = m
		b.memberOrder = append(b.memberOrder, m.ID)
	}

	b.accounts = make(map[AccountID]Account, len(snap.Accounts))
	b.accountOrder = b.accountOrder[:0]
	for _, a := range snap.Accounts {
		b.accounts[a.ID] = a
		b.accountOrder = append(b.accountOrder, a.ID)
	}

	b.loans = append(b.loans[:0:0], snap.Loans...)

	b.entries = b.entries[:0]
	for _, e := range snap.Entries {
		b.insertEntryLocked(e)
	}
}

// =============================================================================
// INTERNALS
// =============================================================================

func newEntryID() EntryID { return EntryID(uuid.NewString()) }

// activeAccountLocked reports whether id names an account that still
// takes entries. Retired tombstones fail this check.
func (b *Book) activeAccountLocked(id AccountID) bool {
	a, ok := b.accounts[id]
	return ok && a.Active
}

// appendLocked inserts a batch into the date-ordered log and counts it.
func (b *Book) appendLocked(batch []Entry) {
	for _, e := range batch {
		b.insertEntryLocked(e)
	}
	metricEntriesAppended.Add(float64(len(batch)))
}

// insertEntryLocked keeps entries date-sorted, equal dates in arrival
// order.
func (b *Book) insertEntryLocked(e Entry) {
	i := sort.Search(len(b.entries), func(i int) bool {
		return b.entries[i].Date.After(e.Date)
	})
	b.entries = append(b.entries, Entry{})
	copy(b.entries[i+1:], b.entries[i:])
	b.entries[i] = e
}

// forward hands a durable write to the background worker, preserving
// mutation order. A mutation issued after Close has no worker left to
// run it; the pending count must not leak or Flush would hang.
func (b *Book) forward(op string, run func(context.Context) error) {
	b.pending.Add(1)
	if !b.queue.push(syncJob{op: op, run: run}) {
		b.pending.Done()
	}
}

func (b *Book) syncLoop() {
	defer close(b.done)
	for {
		job, ok := b.queue.pop()
		if !ok {
			return
		}
		if err := job.run(context.Background()); err != nil {
			metricPersistFailures.Inc()
			b.log.Warn("durable write failed; reloading ledger from store",
				"op", job.op, "error", err)
			if rerr := b.Reload(context.Background()); rerr != nil {
				b.log.Error("reload after failed write also failed", "error", rerr)
			}
		}
		b.pending.Done()
	}
}

// =============================================================================
// SYNC QUEUE - unbounded FIFO so mutations never block on the backend
// =============================================================================

type syncJob struct {
	op  string
	run func(context.Context) error
}

type syncQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	jobs   []syncJob
	closed bool
}

func newSyncQueue() *syncQueue {
	q := &syncQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push reports whether the job was accepted; a closed queue refuses.
func (q *syncQueue) push(j syncJob) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.jobs = append(q.jobs, j)
	q.cond.Signal()
	return true
}

// pop blocks until a job is available or the queue is closed.
func (q *syncQueue) pop() (syncJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.jobs) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.jobs) == 0 {
		return syncJob{}, false
	}
	j := q.jobs[0]
	q.jobs = q.jobs[1:]
	return j, true
}

func (q *syncQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
