// internal/catalog/codec.go
package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Type tokens used in the catalog file.
const (
	tokenBook       = "Livre"
	tokenComic      = "BD"
	tokenReference  = "Dictionnaire"
	tokenPeriodical = "Journal"
)

var (
	ErrUnknownKind = errors.New("unknown item type")
	ErrShortLine   = errors.New("not enough fields")
)

// EncodeLine renders an item as a single comma-separated catalog line.
func EncodeLine(it *Item) string {
	switch it.Kind {
	case KindBook:
		return strings.Join([]string{tokenBook, it.Title, it.Author, formatBool(it.Available)}, ",")
	case KindComic:
		return strings.Join([]string{tokenComic, it.Title, it.Author, it.Illustrator}, ",")
	case KindReference:
		return strings.Join([]string{tokenReference, it.Title, it.Author}, ",")
	case KindPeriodical:
		return strings.Join([]string{tokenPeriodical, it.Title, it.PublishedOn.Format(time.DateOnly)}, ",")
	}
	return ""
}

// DecodeLine parses a catalog line. The first field selects the variant.
func DecodeLine(line string) (*Item, error) {
	parts := strings.Split(strings.TrimSpace(line), ",")

	switch parts[0] {
	case tokenBook:
		if len(parts) < 4 {
			return nil, fmt.Errorf("book line: %w", ErrShortLine)
		}
		return NewBook(parts[1], parts[2], strings.EqualFold(parts[3], "true"))
	case tokenComic:
		if len(parts) < 4 {
			return nil, fmt.Errorf("comic line: %w", ErrShortLine)
		}
		return NewComic(parts[1], parts[2], parts[3])
	case tokenReference:
		if len(parts) < 3 {
			return nil, fmt.Errorf("reference line: %w", ErrShortLine)
		}
		return NewReference(parts[1], parts[2])
	case tokenPeriodical:
		if len(parts) < 3 {
			return nil, fmt.Errorf("periodical line: %w", ErrShortLine)
		}
		published, err := time.Parse(time.DateOnly, parts[2])
		if err != nil {
			return nil, fmt.Errorf("periodical date: %w", err)
		}
		return NewPeriodical(parts[1], published)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, parts[0])
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
