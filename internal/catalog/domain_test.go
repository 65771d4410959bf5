package catalog_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libraryledger/internal/catalog"
)

func TestNewBook_RejectsEmptyTitle(t *testing.T) {
	_, err := catalog.NewBook("", "Orwell", true)
	assert.ErrorIs(t, err, catalog.ErrEmptyTitle)

	_, err = catalog.NewPeriodical("", time.Now())
	assert.ErrorIs(t, err, catalog.ErrEmptyTitle)
}

func TestLend_FlipsAvailabilityOnce(t *testing.T) {
	book, err := catalog.NewBook("1984", "Orwell", true)
	require.NoError(t, err)

	assert.True(t, book.IsLendable())
	assert.True(t, book.Lend())
	assert.False(t, book.Available)
	assert.False(t, book.IsLendable())

	assert.False(t, book.Lend(), "lending a lent book must fail")
	assert.False(t, book.Available)
}

func TestReturn_IsIdempotent(t *testing.T) {
	book, err := catalog.NewBook("1984", "Orwell", false)
	require.NoError(t, err)

	book.Return()
	assert.True(t, book.Available)
	book.Return()
	assert.True(t, book.Available)
}

func TestNonBooks_AreNeverLendable(t *testing.T) {
	comic, err := catalog.NewComic("Tintin au Tibet", "Hergé", "Hergé")
	require.NoError(t, err)
	ref, err := catalog.NewReference("Larousse 2024", "Éditions Larousse")
	require.NoError(t, err)
	paper, err := catalog.NewPeriodical("Le Monde", time.Date(2024, 12, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	for _, it := range []*catalog.Item{comic, ref, paper} {
		assert.False(t, it.IsBook(), it.Title)
		assert.False(t, it.IsLendable(), it.Title)
		assert.False(t, it.Lend(), it.Title)
		it.Return()
		assert.False(t, it.IsLendable(), it.Title)
	}
}

func TestString(t *testing.T) {
	book, _ := catalog.NewBook("1984", "George Orwell", false)
	assert.Equal(t, "Book: 1984 by George Orwell (lent)", book.String())

	paper, _ := catalog.NewPeriodical("Le Figaro", time.Date(2024, 12, 11, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "Periodical: Le Figaro of 11/12/2024", paper.String())
}

func TestItems_HaveDistinctIDs(t *testing.T) {
	a, _ := catalog.NewBook("Same", "A", true)
	b, _ := catalog.NewBook("Same", "A", true)
	assert.NotEqual(t, a.ID, b.ID)
}
