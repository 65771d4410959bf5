// internal/catalog/domain.go
package catalog

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind discriminates the catalog item variants.
type Kind string

const (
	KindBook       Kind = "book"
	KindComic      Kind = "comic"
	KindReference  Kind = "reference"
	KindPeriodical Kind = "periodical"
)

var ErrEmptyTitle = errors.New("item title must not be empty")

// Item represents any titled work held by the library.
// Only items of KindBook take part in loans.
type Item struct {
	ID          uuid.UUID `json:"id"`
	Kind        Kind      `json:"kind"`
	Title       string    `json:"title"`
	Author      string    `json:"author,omitempty"`
	Illustrator string    `json:"illustrator,omitempty"`
	PublishedOn time.Time `json:"published_on,omitzero"`
	Available   bool      `json:"available"`
}

// NewBook creates a lendable book.
func NewBook(title, author string, available bool) (*Item, error) {
	return newItem(KindBook, title, func(it *Item) {
		it.Author = author
		it.Available = available
	})
}

// NewComic creates an illustrated work.
func NewComic(title, author, illustrator string) (*Item, error) {
	return newItem(KindComic, title, func(it *Item) {
		it.Author = author
		it.Illustrator = illustrator
	})
}

// NewReference creates a reference work such as a dictionary. The author
// field holds the publisher when the work has no single author.
func NewReference(title, author string) (*Item, error) {
	return newItem(KindReference, title, func(it *Item) {
		it.Author = author
	})
}

// NewPeriodical creates a periodical published on the given day.
func NewPeriodical(title string, publishedOn time.Time) (*Item, error) {
	return newItem(KindPeriodical, title, func(it *Item) {
		it.PublishedOn = publishedOn
	})
}

func newItem(kind Kind, title string, fill func(*Item)) (*Item, error) {
	if title == "" {
		return nil, ErrEmptyTitle
	}
	it := &Item{
		ID:    uuid.New(),
		Kind:  kind,
		Title: title,
	}
	fill(it)
	return it, nil
}

// IsBook reports whether the item is the lendable variant.
func (it *Item) IsBook() bool {
	return it.Kind == KindBook
}

// IsLendable reports whether the item can be lent right now.
func (it *Item) IsLendable() bool {
	return it.IsBook() && it.Available
}

// Lend marks an available book as lent. It reports false and leaves the item
// untouched when the book is already lent or the item is not a book.
func (it *Item) Lend() bool {
	if !it.IsLendable() {
		return false
	}
	it.Available = false
	return true
}

// Return marks a book as available again. Calling it on an available book is a no-op.
func (it *Item) Return() {
	if it.IsBook() {
		it.Available = true
	}
}

func (it *Item) String() string {
	switch it.Kind {
	case KindBook:
		status := "available"
		if !it.Available {
			status = "lent"
		}
		return fmt.Sprintf("Book: %s by %s (%s)", it.Title, it.Author, status)
	case KindComic:
		return fmt.Sprintf("Comic: %s by %s (art: %s)", it.Title, it.Author, it.Illustrator)
	case KindReference:
		return fmt.Sprintf("Reference: %s published by %s", it.Title, it.Author)
	case KindPeriodical:
		return fmt.Sprintf("Periodical: %s of %s", it.Title, it.PublishedOn.Format("02/01/2006"))
	}
	return "Item: " + it.Title
}
