package pgstore

import (
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libraryledger/internal/catalog"
)

func TestRestoreItem(t *testing.T) {
	published := time.Date(2024, 12, 10, 15, 0, 0, 0, time.UTC)
	row := catalog.Item{Title: "Le Monde", Author: "a", Illustrator: "i", Available: true}

	it, err := restoreItem(catalog.KindPeriodical, row, published)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 12, 10, 0, 0, 0, 0, time.UTC), it.PublishedOn)
	assert.False(t, it.IsLendable())

	it, err = restoreItem(catalog.KindBook, row, time.Time{})
	require.NoError(t, err)
	assert.True(t, it.IsLendable())
	assert.Empty(t, it.Illustrator)

	_, err = restoreItem("scroll", row, time.Time{})
	assert.ErrorIs(t, err, catalog.ErrUnknownKind)

	_, err = restoreItem(catalog.KindComic, catalog.Item{}, time.Time{})
	assert.ErrorIs(t, err, catalog.ErrEmptyTitle)
}

func TestInsertError_MapsUniqueViolation(t *testing.T) {
	err := insertError("member", 3, &pq.Error{Code: "23505"})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "insert member 3")

	other := errors.New("boom")
	assert.ErrorIs(t, insertError("loan", 0, other), other)
}

func TestNullDate(t *testing.T) {
	assert.False(t, nullDate(time.Time{}).Valid)
	assert.True(t, nullDate(time.Now()).Valid)
}
