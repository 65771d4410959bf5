// Package library holds the registry that owns the catalog, the members and
// the loan history, and enforces the rules that tie them together.
package library

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"libraryledger/internal/catalog"
	"libraryledger/internal/circulation"
	"libraryledger/internal/membership"
)

// Library is the in-memory registry. It is not safe for concurrent use;
// hosts serving several callers must serialize access themselves.
type Library struct {
	items   []*catalog.Item
	members []*membership.Member
	loans   []*circulation.Loan

	now     func() time.Time
	metrics *loanMetrics
}

// Option configures a Library.
type Option func(*libraryOptions)

type libraryOptions struct {
	now   func() time.Time
	meter metric.Meter
}

// WithClock sets the source of "today". Defaults to time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *libraryOptions) { o.now = now }
}

// WithMeter sets the meter loan counters are recorded on.
func WithMeter(meter metric.Meter) Option {
	return func(o *libraryOptions) { o.meter = meter }
}

// New creates an empty library.
func New(opts ...Option) *Library {
	o := libraryOptions{
		now:   time.Now,
		meter: otel.Meter("libraryledger/library"),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Library{
		now:     o.now,
		metrics: newLoanMetrics(o.meter),
	}
}

// Today returns the current calendar day according to the library clock.
func (l *Library) Today() time.Time {
	return circulation.Day(l.now())
}

// Empty reports whether the library holds no members, items or loans.
func (l *Library) Empty() bool {
	return len(l.members) == 0 && len(l.items) == 0 && len(l.loans) == 0
}

// ========== Members ==========

// AddMember registers m unless a member with the same identity key exists.
func (l *Library) AddMember(m *membership.Member) error {
	if l.hasMember(m) {
		return ErrDuplicateMember
	}
	l.members = append(l.members, m)
	return nil
}

// RemoveMember unregisters the member matching m's identity key. Members with
// an active loan cannot be removed.
func (l *Library) RemoveMember(m *membership.Member) error {
	for _, loan := range l.loans {
		if loan.Active() && loan.Member.Equal(m) {
			return ErrMemberHasActiveLoans
		}
	}
	i := slices.IndexFunc(l.members, m.Equal)
	if i < 0 {
		return ErrMemberNotFound
	}
	l.members = slices.Delete(l.members, i, i+1)
	return nil
}

// FindMember returns the first member with the given names, or nil.
func (l *Library) FindMember(lastName, firstName string) *membership.Member {
	for _, m := range l.members {
		if m.LastName == lastName && m.FirstName == firstName {
			return m
		}
	}
	return nil
}

// Members returns the registered members in insertion order.
func (l *Library) Members() []*membership.Member {
	return slices.Clone(l.members)
}

func (l *Library) hasMember(m *membership.Member) bool {
	return slices.ContainsFunc(l.members, m.Equal)
}

// ========== Catalog ==========

// AddItem appends it to the catalog. Items with equal fields may coexist.
func (l *Library) AddItem(it *catalog.Item) {
	l.items = append(l.items, it)
}

// RemoveItem removes exactly it (by identity) from the catalog.
func (l *Library) RemoveItem(it *catalog.Item) error {
	i := slices.Index(l.items, it)
	if i < 0 {
		return ErrItemNotFound
	}
	l.items = slices.Delete(l.items, i, i+1)
	return nil
}

// FindItemByTitle returns the first item whose title matches case-insensitively, or nil.
func (l *Library) FindItemByTitle(title string) *catalog.Item {
	for _, it := range l.items {
		if strings.EqualFold(it.Title, title) {
			return it
		}
	}
	return nil
}

// FindItem returns the item with the given runtime ID, or nil.
func (l *Library) FindItem(id uuid.UUID) *catalog.Item {
	for _, it := range l.items {
		if it.ID == id {
			return it
		}
	}
	return nil
}

// Items returns the whole catalog in insertion order.
func (l *Library) Items() []*catalog.Item {
	return slices.Clone(l.items)
}

// LendableBooks returns every book in the catalog, lent or not.
func (l *Library) LendableBooks() []*catalog.Item {
	return l.filterItems((*catalog.Item).IsBook)
}

// AvailableBooks returns the books that can be lent right now.
func (l *Library) AvailableBooks() []*catalog.Item {
	return l.filterItems((*catalog.Item).IsLendable)
}

func (l *Library) filterItems(keep func(*catalog.Item) bool) []*catalog.Item {
	var out []*catalog.Item
	for _, it := range l.items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}

// ========== Loans ==========

// Return describes the outcome of a successful return.
type Return struct {
	Loan     *circulation.Loan
	Late     bool
	DaysLate int
}

func (r Return) String() string {
	if r.Late {
		return fmt.Sprintf("book returned %d day(s) late", r.DaysLate)
	}
	return "book returned on time"
}

// CreateLoan lends book to member as of today. The returned loan carries the due date.
func (l *Library) CreateLoan(ctx context.Context, member *membership.Member, book *catalog.Item) (*circulation.Loan, error) {
	if err := l.checkLoan(member, book); err != nil {
		l.metrics.loanRejected(ctx, "create", err)
		return nil, err
	}

	loan := circulation.NewLoan(member, book, l.Today())
	book.Lend()
	l.loans = append(l.loans, loan)

	l.metrics.loanCreated(ctx)
	return loan, nil
}

func (l *Library) checkLoan(member *membership.Member, book *catalog.Item) error {
	if !l.hasMember(member) {
		return ErrNotAMember
	}
	if !slices.Contains(l.items, book) {
		return ErrNotInCatalog
	}
	if !book.IsBook() {
		return ErrNotLendable
	}
	if !book.IsLendable() {
		return ErrAlreadyLent
	}
	return nil
}

// ReturnLoan closes the active loan of book by member as of today and makes
// the book available again.
func (l *Library) ReturnLoan(ctx context.Context, member *membership.Member, book *catalog.Item) (Return, error) {
	for _, loan := range l.loans {
		if !loan.Active() || loan.Book != book || !loan.Member.Equal(member) {
			continue
		}
		if err := loan.MarkReturned(l.Today()); err != nil {
			return Return{}, err
		}
		book.Return()

		r := Return{Loan: loan, DaysLate: loan.DaysLate()}
		r.Late = r.DaysLate > 0
		l.metrics.loanReturned(ctx, r.Late)
		return r, nil
	}

	l.metrics.loanRejected(ctx, "return", ErrNoActiveLoan)
	return Return{}, ErrNoActiveLoan
}

// ProlongLoan applies circulation.Loan.Prolong to the loan with the given ID.
func (l *Library) ProlongLoan(id uuid.UUID, extraDays int) (*circulation.Loan, error) {
	loan := l.FindLoan(id)
	if loan == nil {
		return nil, ErrLoanNotFound
	}
	loan.Prolong(extraDays)
	return loan, nil
}

// RestoreLoan appends a previously persisted loan without running the lending
// workflow. The loan's member and book must already belong to the library.
func (l *Library) RestoreLoan(loan *circulation.Loan) error {
	if !slices.Contains(l.members, loan.Member) {
		return ErrNotAMember
	}
	if !slices.Contains(l.items, loan.Book) {
		return ErrNotInCatalog
	}
	l.loans = append(l.loans, loan)
	return nil
}

// FindLoan returns the loan with the given runtime ID, or nil.
func (l *Library) FindLoan(id uuid.UUID) *circulation.Loan {
	for _, loan := range l.loans {
		if loan.ID == id {
			return loan
		}
	}
	return nil
}

// Loans returns the full loan history in insertion order.
func (l *Library) Loans() []*circulation.Loan {
	return slices.Clone(l.loans)
}

// LoansForMember returns every loan, active or not, of the member matching m.
func (l *Library) LoansForMember(m *membership.Member) []*circulation.Loan {
	return l.filterLoans(func(loan *circulation.Loan) bool { return loan.Member.Equal(m) })
}

// ActiveLoans returns the loans whose book has not come back yet.
func (l *Library) ActiveLoans() []*circulation.Loan {
	return l.filterLoans((*circulation.Loan).Active)
}

// OverdueLoans returns the active loans past their due date today.
func (l *Library) OverdueLoans() []*circulation.Loan {
	today := l.Today()
	return l.filterLoans(func(loan *circulation.Loan) bool { return loan.IsOverdue(today) })
}

func (l *Library) filterLoans(keep func(*circulation.Loan) bool) []*circulation.Loan {
	var out []*circulation.Loan
	for _, loan := range l.loans {
		if keep(loan) {
			out = append(out, loan)
		}
	}
	return out
}

// ========== Statistics ==========

// Stats is a point-in-time summary of the library.
type Stats struct {
	TotalItems     int `json:"total_items"`
	LendableBooks  int `json:"lendable_books"`
	AvailableBooks int `json:"available_books"`
	LentBooks      int `json:"lent_books"`
	TotalMembers   int `json:"total_members"`
	ActiveLoans    int `json:"active_loans"`
	OverdueLoans   int `json:"overdue_loans"`
	TotalLoans     int `json:"total_loans"`
}

// Statistics computes the summary from the current collections.
func (l *Library) Statistics() Stats {
	lendable := len(l.LendableBooks())
	available := len(l.AvailableBooks())
	return Stats{
		TotalItems:     len(l.items),
		LendableBooks:  lendable,
		AvailableBooks: available,
		LentBooks:      lendable - available,
		TotalMembers:   len(l.members),
		ActiveLoans:    len(l.ActiveLoans()),
		OverdueLoans:   len(l.OverdueLoans()),
		TotalLoans:     len(l.loans),
	}
}

func (l *Library) String() string {
	s := l.Statistics()
	return fmt.Sprintf("Library - %d items, %d members, %d active loans", s.TotalItems, s.TotalMembers, s.ActiveLoans)
}
