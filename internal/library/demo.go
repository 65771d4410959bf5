package library

import (
	"context"
	"errors"
	"fmt"
	"time"

	"libraryledger/internal/catalog"
	"libraryledger/internal/membership"
)

// SeedDemo fills lib with a small sample dataset: three members, eight items
// of every kind and one active loan. It is meant for an empty library.
func SeedDemo(ctx context.Context, lib *Library) error {
	marie := &membership.Member{LastName: "Dupont", FirstName: "Marie", Email: "marie.dupont@email.com"}
	pierre := &membership.Member{LastName: "Martin", FirstName: "Pierre", Email: "pierre.martin@email.com"}
	sophie := &membership.Member{LastName: "Lefebvre", FirstName: "Sophie"}
	for _, m := range []*membership.Member{marie, pierre, sophie} {
		if err := lib.AddMember(m); err != nil {
			return fmt.Errorf("seed member %s: %w", m.Key(), err)
		}
	}

	var errs []error
	add := func(it *catalog.Item, err error) *catalog.Item {
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		lib.AddItem(it)
		return it
	}

	add(catalog.NewBook("Le Petit Prince", "Antoine de Saint-Exupéry", true))
	add(catalog.NewBook("1984", "George Orwell", true))
	harryPotter := add(catalog.NewBook("Harry Potter à l'école des sorciers", "J.K. Rowling", true))
	add(catalog.NewComic("Astérix et Obélix", "René Goscinny", "Albert Uderzo"))
	add(catalog.NewComic("Tintin au Tibet", "Hergé", "Hergé"))
	add(catalog.NewReference("Larousse 2024", "Éditions Larousse"))
	add(catalog.NewPeriodical("Le Monde", time.Date(2024, 12, 10, 0, 0, 0, 0, time.UTC)))
	add(catalog.NewPeriodical("Le Figaro", time.Date(2024, 12, 11, 0, 0, 0, 0, time.UTC)))
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("seed items: %w", err)
	}

	if _, err := lib.CreateLoan(ctx, marie, harryPotter); err != nil {
		return fmt.Errorf("seed loan: %w", err)
	}
	return nil
}
