package library

import "errors"

// Registry errors. All of them are recoverable and leave the library unchanged.
var (
	ErrDuplicateMember      = errors.New("member already registered")
	ErrMemberHasActiveLoans = errors.New("member still has active loans")
	ErrMemberNotFound       = errors.New("member not found")
	ErrItemNotFound         = errors.New("item not found")
	ErrLoanNotFound         = errors.New("loan not found")
	ErrDuplicateTitle       = errors.New("an item with this title already exists")
	ErrItemOnLoan           = errors.New("item is currently lent")
)

// Loan workflow errors.
var (
	ErrNotAMember   = errors.New("member is not registered with the library")
	ErrNotInCatalog = errors.New("book is not in the catalog")
	ErrNotLendable  = errors.New("item cannot be lent")
	ErrAlreadyLent  = errors.New("book is already lent")
	ErrNoActiveLoan = errors.New("no active loan for this book and member")
)
