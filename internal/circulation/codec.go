// internal/circulation/codec.go
package circulation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"libraryledger/internal/catalog"
	"libraryledger/internal/membership"
)

const noReturn = "None"

var ErrUnresolved = errors.New("loan references an unknown member or book")

// Resolver maps the references stored in a loan line back to live entities.
type Resolver interface {
	MemberByKey(key string) (*membership.Member, bool)
	BookByTitle(title string) (*catalog.Item, bool)
}

// Index is a map-backed Resolver built while loading members and items.
type Index struct {
	members map[string]*membership.Member
	books   map[string]*catalog.Item
}

func NewIndex() *Index {
	return &Index{
		members: make(map[string]*membership.Member),
		books:   make(map[string]*catalog.Item),
	}
}

// AddMember indexes m under its identity key.
func (ix *Index) AddMember(m *membership.Member) {
	ix.members[m.Key()] = m
}

// AddItem indexes books by title. Other kinds are ignored; a later book with
// the same title replaces the earlier one.
func (ix *Index) AddItem(it *catalog.Item) {
	if it.IsBook() {
		ix.books[it.Title] = it
	}
}

func (ix *Index) MemberByKey(key string) (*membership.Member, bool) {
	m, ok := ix.members[key]
	return m, ok
}

func (ix *Index) BookByTitle(title string) (*catalog.Item, bool) {
	b, ok := ix.books[title]
	return b, ok
}

// EncodeLine renders a loan as memberKey,bookTitle,borrowDate,returnDate.
func EncodeLine(l *Loan) string {
	returned := noReturn
	if !l.Active() {
		returned = l.ReturnedOn.Format(time.DateOnly)
	}
	return strings.Join([]string{
		l.Member.Key(),
		l.Book.Title,
		l.BorrowedOn.Format(time.DateOnly),
		returned,
	}, ",")
}

// DecodeLine parses a loan line and resolves its member and book through r.
func DecodeLine(line string, r Resolver) (*Loan, error) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) < 4 {
		return nil, fmt.Errorf("loan line %q: not enough fields", line)
	}

	member, ok := r.MemberByKey(parts[0])
	if !ok {
		return nil, fmt.Errorf("member %q: %w", parts[0], ErrUnresolved)
	}
	book, ok := r.BookByTitle(parts[1])
	if !ok {
		return nil, fmt.Errorf("book %q: %w", parts[1], ErrUnresolved)
	}

	borrowed, err := time.Parse(time.DateOnly, parts[2])
	if err != nil {
		return nil, fmt.Errorf("borrow date: %w", err)
	}
	loan := NewLoan(member, book, borrowed)

	if parts[3] != noReturn {
		returned, err := time.Parse(time.DateOnly, parts[3])
		if err != nil {
			return nil, fmt.Errorf("return date: %w", err)
		}
		loan.ReturnedOn = returned
	}
	return loan, nil
}
