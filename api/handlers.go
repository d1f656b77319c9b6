/*
handlers.go - HTTP handlers

PURPOSE:
  Thin translation layer between the wire and the ledger Book. Handlers
  parse and validate input, call exactly one Book operation, and map
  errors onto status codes:

    validation failure  -> 422
    entity not found    -> 404
    malformed request   -> 400

  The working date arrives as the optional ?as_of=YYYY-MM-DD query
  parameter, defaulting to today. It only changes what the derived
  views see - no handler mutates data because of it.
*/
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/harambee/chama-ledger/ledger"
)

// Handler carries the dependencies for all routes.
type Handler struct {
	Book *ledger.Book
	Log  *slog.Logger
}

// NewHandler creates a Handler over a Book.
func NewHandler(book *ledger.Book, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{Book: book, Log: log}
}

// =============================================================================
// MEMBERS
// =============================================================================

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members := h.Book.Members()
	dtos := make([]MemberDTO, len(members))
	for i, m := range members {
		dtos[i] = toMemberDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateMember(w http.ResponseWriter, r *http.Request) {
	var req CreateMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	member, err := h.Book.AddMember(req.Name)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMemberDTO(member))
}

func (h *Handler) GetMember(w http.ResponseWriter, r *http.Request) {
	member, err := h.Book.Member(ledger.MemberID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMemberDTO(member))
}

func (h *Handler) GetMemberStats(w http.ResponseWriter, r *http.Request) {
	asOf, ok := h.asOf(w, r)
	if !ok {
		return
	}
	id := ledger.MemberID(chi.URLParam(r, "id"))
	stats, err := h.Book.MemberStats(id, asOf)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MemberStatsDTO{
		MemberID:           string(id),
		TotalContributed:   stats.TotalContributed.String(),
		ActiveLoanCount:    stats.ActiveLoanCount,
		TotalLoanBalance:   stats.TotalLoanBalance.String(),
		LastContributionOn: stats.LastContributionOn.String(),
		FundsHeld:          stats.FundsHeld.String(),
		AsOf:               asOf.String(),
	})
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts := h.Book.Accounts()
	dtos := make([]AccountDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = toAccountDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	account, err := h.Book.AddAccount(req.Name, ledger.AccountKind(req.Kind), ledger.MemberID(req.MemberID))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(account))
}

func (h *Handler) RemoveAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.Book.RemoveAccount(ledger.AccountID(chi.URLParam(r, "id"))); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	asOf, ok := h.asOf(w, r)
	if !ok {
		return
	}
	id := ledger.AccountID(chi.URLParam(r, "id"))
	balance := h.Book.AccountBalance(id, asOf)
	writeJSON(w, http.StatusOK, BalanceDTO{
		AccountID: string(id),
		Principal: balance.Principal.String(),
		Interest:  balance.Interest.String(),
		Total:     balance.Total.String(),
		AsOf:      asOf.String(),
	})
}

// =============================================================================
// LOANS
// =============================================================================

func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	asOf, ok := h.asOf(w, r)
	if !ok {
		return
	}
	loans := h.Book.Loans()
	dtos := make([]LoanDTO, 0, len(loans))
	for _, l := range loans {
		state, err := h.Book.LoanState(l.ID, asOf)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		dtos = append(dtos, toLoanDTO(l, state))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	asOf, ok := h.asOf(w, r)
	if !ok {
		return
	}
	var req CreateLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	principal, err := decimal.NewFromString(req.Principal)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid principal")
		return
	}
	rate, err := decimal.NewFromString(req.Rate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid rate")
		return
	}
	date, err := ledger.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date")
		return
	}
	var dueOn ledger.Date
	if req.DueOn != "" {
		if dueOn, err = ledger.ParseDate(req.DueOn); err != nil {
			writeError(w, http.StatusBadRequest, "invalid due date")
			return
		}
	}

	loan, err := h.Book.CreateLoan(ledger.LoanRequest{
		Member:    ledger.MemberID(req.MemberID),
		Account:   ledger.AccountID(req.AccountID),
		Principal: principal,
		Rate:      rate,
		Date:      date,
		DueOn:     dueOn,
		Note:      req.Note,
	}, asOf)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	state, err := h.Book.LoanState(loan.ID, asOf)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLoanDTO(loan, state))
}

func (h *Handler) GetLoan(w http.ResponseWriter, r *http.Request) {
	asOf, ok := h.asOf(w, r)
	if !ok {
		return
	}
	loan, err := h.Book.Loan(ledger.LoanID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	state, err := h.Book.LoanState(loan.ID, asOf)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanDTO(loan, state))
}

// =============================================================================
// OPERATIONS
// =============================================================================

func (h *Handler) Contribute(w http.ResponseWriter, r *http.Request) {
	asOf, ok := h.asOf(w, r)
	if !ok {
		return
	}
	var req ContributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	date, err := ledger.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date")
		return
	}

	alloc, err := h.Book.Contribute(ledger.Contribution{
		Member:  ledger.MemberID(req.MemberID),
		Account: ledger.AccountID(req.AccountID),
		Amount:  amount,
		Date:    date,
		Note:    req.Note,
	}, asOf)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, AllocationDTO{
		Entries:       toEntryDTOs(alloc.Entries),
		Share:         alloc.Share.String(),
		Repaid:        alloc.Repaid.String(),
		CarriedCredit: alloc.CarriedCredit.String(),
	})
}

func (h *Handler) RecordExpense(w http.ResponseWriter, r *http.Request) {
	asOf, ok := h.asOf(w, r)
	if !ok {
		return
	}
	var req ExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	date, err := ledger.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date")
		return
	}

	entry, err := h.Book.RecordExpense(amount, ledger.AccountID(req.AccountID), date, req.Note, asOf)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(entry))
}

func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	date, err := ledger.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date")
		return
	}

	pair, err := h.Book.Transfer(
		ledger.AccountID(req.FromAccountID),
		ledger.AccountID(req.ToAccountID),
		amount, ledger.FundType(req.FundType), date, req.Note)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTOs(pair))
}

func (h *Handler) RecordOpeningBalance(w http.ResponseWriter, r *http.Request) {
	var req OpeningBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	date, err := ledger.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date")
		return
	}

	entry, err := h.Book.RecordOpeningBalance(
		ledger.AccountID(req.AccountID), amount, ledger.FundType(req.FundType), date, req.Note)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(entry))
}

// =============================================================================
// ENTRIES
// =============================================================================

func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	filter := ledger.EntryFilter{
		Account: ledger.AccountID(r.URL.Query().Get("account_id")),
		Member:  ledger.MemberID(r.URL.Query().Get("member_id")),
	}
	if s := r.URL.Query().Get("as_of"); s != "" {
		asOf, err := ledger.ParseDate(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid as_of date")
			return
		}
		filter.AsOf = asOf
	}
	writeJSON(w, http.StatusOK, toEntryDTOs(h.Book.Entries(filter)))
}

func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.Book.DeleteEntry(ledger.EntryID(chi.URLParam(r, "id"))); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// SNAPSHOT
// =============================================================================

func (h *Handler) ExportSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Book.Export())
}

func (h *Handler) ImportSnapshot(w http.ResponseWriter, r *http.Request) {
	var snap ledger.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		writeError(w, http.StatusBadRequest, "invalid snapshot body")
		return
	}
	if err := h.Book.Import(r.Context(), snap); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HELPERS
// =============================================================================

// asOf parses the optional working-date query parameter. Defaults to
// today. Returns ok=false after writing an error response.
func (h *Handler) asOf(w http.ResponseWriter, r *http.Request) (ledger.Date, bool) {
	s := r.URL.Query().Get("as_of")
	if s == "" {
		return ledger.Today(), true
	}
	asOf, err := ledger.ParseDate(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid as_of date")
		return ledger.Date{}, false
	}
	return asOf, true
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case ledger.IsValidation(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.Log.Error("internal error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
