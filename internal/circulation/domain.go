// internal/circulation/domain.go
package circulation

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"libraryledger/internal/catalog"
	"libraryledger/internal/membership"
)

// LoanPeriodDays is the lending period granted on every loan.
const LoanPeriodDays = 14

var ErrAlreadyReturned = errors.New("loan already returned")

// Loan links a member to a borrowed book. A zero ReturnedOn means the book
// is still out. Loans are never deleted; returning one closes it in place.
type Loan struct {
	ID         uuid.UUID
	Member     *membership.Member
	Book       *catalog.Item
	BorrowedOn time.Time
	ReturnedOn time.Time
}

// NewLoan opens a loan borrowed on the given day.
func NewLoan(member *membership.Member, book *catalog.Item, borrowedOn time.Time) *Loan {
	return &Loan{
		ID:         uuid.New(),
		Member:     member,
		Book:       book,
		BorrowedOn: Day(borrowedOn),
	}
}

// Day truncates t to its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween returns b - a in whole calendar days.
func daysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

// Active reports whether the book has not been returned yet.
func (l *Loan) Active() bool {
	return l.ReturnedOn.IsZero()
}

// DueDate is the last day the book may be kept without being late.
func (l *Loan) DueDate() time.Time {
	return l.BorrowedOn.AddDate(0, 0, LoanPeriodDays)
}

// IsOverdue reports whether an active loan is past its due date on today.
func (l *Loan) IsOverdue(today time.Time) bool {
	return l.Active() && Day(today).After(l.DueDate())
}

// OverdueDays is the number of days an active loan is past due, or 0.
func (l *Loan) OverdueDays(today time.Time) int {
	if !l.IsOverdue(today) {
		return 0
	}
	return daysBetween(l.DueDate(), today)
}

// DaysLate is the number of days a returned loan came back after its due date.
func (l *Loan) DaysLate() int {
	if l.Active() {
		return 0
	}
	if n := daysBetween(l.DueDate(), l.ReturnedOn); n > 0 {
		return n
	}
	return 0
}

// MarkReturned closes the loan on the given day.
func (l *Loan) MarkReturned(on time.Time) error {
	if !l.Active() {
		return ErrAlreadyReturned
	}
	l.ReturnedOn = Day(on)
	return nil
}

// Prolong moves the return date of a closed loan forward by extraDays.
//
// On an active loan it sets the return date to the due date plus extraDays,
// which also closes the loan even though the book is still out. Callers that
// only want to extend a deadline must not rely on this.
func (l *Loan) Prolong(extraDays int) {
	if !l.Active() {
		l.ReturnedOn = l.ReturnedOn.AddDate(0, 0, extraDays)
		return
	}
	l.ReturnedOn = l.DueDate().AddDate(0, 0, extraDays)
}

// Summary is String with the number of overdue days appended when the loan
// is late on today.
func (l *Loan) Summary(today time.Time) string {
	if n := l.OverdueDays(today); n > 0 {
		return fmt.Sprintf("%s (LATE: %d days)", l, n)
	}
	return l.String()
}

func (l *Loan) String() string {
	status := "ongoing"
	if !l.Active() {
		status = "returned on " + l.ReturnedOn.Format("02/01/2006")
	}
	return fmt.Sprintf("Loan: %s by %s %s, borrowed on %s, %s",
		l.Book.Title, l.Member.FirstName, l.Member.LastName, l.BorrowedOn.Format("02/01/2006"), status)
}
