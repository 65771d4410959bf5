// internal/api/loans.go
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"libraryledger/internal/catalog"
	"libraryledger/internal/circulation"
	"libraryledger/internal/library"
	"libraryledger/internal/membership"
)

// DefaultProlongDays is used when a prolong request names no duration.
const DefaultProlongDays = 7

type loanRequest struct {
	LastName  string    `json:"last_name"`
	FirstName string    `json:"first_name"`
	ItemID    uuid.UUID `json:"item_id"`
}

type prolongRequest struct {
	Days int `json:"days"`
}

type loanResponse struct {
	ID          uuid.UUID          `json:"id"`
	Member      *membership.Member `json:"member"`
	Book        *catalog.Item      `json:"book"`
	BorrowedOn  string             `json:"borrowed_on"`
	DueDate     string             `json:"due_date"`
	ReturnedOn  string             `json:"returned_on,omitempty"`
	Active      bool               `json:"active"`
	OverdueDays int                `json:"overdue_days"`
	Summary     string             `json:"summary"`
}

type returnResponse struct {
	Loan     loanResponse `json:"loan"`
	Late     bool         `json:"late"`
	DaysLate int          `json:"days_late"`
	Message  string       `json:"message"`
}

func (h *Handler) loanResponse(l *circulation.Loan) loanResponse {
	today := h.lib.Today()
	resp := loanResponse{
		ID:          l.ID,
		Member:      l.Member,
		Book:        l.Book,
		BorrowedOn:  l.BorrowedOn.Format(time.DateOnly),
		DueDate:     l.DueDate().Format(time.DateOnly),
		Active:      l.Active(),
		OverdueDays: l.OverdueDays(today),
		Summary:     l.Summary(today),
	}
	if !l.Active() {
		resp.ReturnedOn = l.ReturnedOn.Format(time.DateOnly)
	}
	return resp
}

func (h *Handler) loanResponses(loans []*circulation.Loan) []loanResponse {
	out := make([]loanResponse, 0, len(loans))
	for _, l := range loans {
		out = append(out, h.loanResponse(l))
	}
	return out
}

func (h *Handler) handleListLoans(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var loans []*circulation.Loan
	switch status := r.URL.Query().Get("status"); status {
	case "":
		loans = h.lib.Loans()
	case "active":
		loans = h.lib.ActiveLoans()
	case "overdue":
		loans = h.lib.OverdueLoans()
	default:
		http.Error(w, "unknown status "+status, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.loanResponses(loans))
}

// resolveLoan finds the member and book named by req. Unknown references are
// reported with the workflow errors the library itself uses.
func (h *Handler) resolveLoan(req loanRequest) (*membership.Member, *catalog.Item, error) {
	m := h.lib.FindMember(req.LastName, req.FirstName)
	if m == nil {
		return nil, nil, library.ErrNotAMember
	}
	book := h.lib.FindItem(req.ItemID)
	if book == nil {
		return nil, nil, library.ErrNotInCatalog
	}
	return m, book, nil
}

func (h *Handler) handleCreateLoan(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	m, book, err := h.resolveLoan(req)
	if err != nil {
		writeError(w, err)
		return
	}
	loan, err := h.lib.CreateLoan(r.Context(), m, book)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.persist(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	h.logger.Info("loan created", "member", m.Key(), "title", book.Title, "due", loan.DueDate().Format(time.DateOnly))
	writeJSON(w, http.StatusCreated, h.loanResponse(loan))
}

func (h *Handler) handleReturnLoan(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	m, book, err := h.resolveLoan(req)
	if err != nil {
		writeError(w, err)
		return
	}
	ret, err := h.lib.ReturnLoan(r.Context(), m, book)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.persist(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	h.logger.Info("loan returned", "member", m.Key(), "title", book.Title, "days_late", ret.DaysLate)
	writeJSON(w, http.StatusOK, returnResponse{
		Loan:     h.loanResponse(ret.Loan),
		Late:     ret.Late,
		DaysLate: ret.DaysLate,
		Message:  ret.String(),
	})
}

func (h *Handler) handleProlongLoan(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid loan ID", http.StatusBadRequest)
		return
	}
	req := prolongRequest{Days: DefaultProlongDays}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Days <= 0 {
		http.Error(w, "days must be positive", http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	loan, err := h.lib.ProlongLoan(id, req.Days)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.persist(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.loanResponse(loan))
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, catalog.ErrEmptyTitle),
		errors.Is(err, catalog.ErrUnknownKind):
		return http.StatusBadRequest
	case errors.Is(err, library.ErrMemberNotFound),
		errors.Is(err, library.ErrItemNotFound),
		errors.Is(err, library.ErrLoanNotFound),
		errors.Is(err, library.ErrNotAMember),
		errors.Is(err, library.ErrNotInCatalog):
		return http.StatusNotFound
	case errors.Is(err, library.ErrDuplicateMember),
		errors.Is(err, library.ErrMemberHasActiveLoans),
		errors.Is(err, library.ErrDuplicateTitle),
		errors.Is(err, library.ErrItemOnLoan),
		errors.Is(err, library.ErrNotLendable),
		errors.Is(err, library.ErrAlreadyLent),
		errors.Is(err, library.ErrNoActiveLoan),
		errors.Is(err, circulation.ErrAlreadyReturned):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusFor(err))
}
