// Package pgstore persists a library in PostgreSQL. It stores the same three
// collections as the text files, in their insertion order.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"libraryledger/internal/catalog"
	"libraryledger/internal/circulation"
	"libraryledger/internal/library"
	"libraryledger/internal/membership"
)

var ErrConflict = errors.New("conflicting write: duplicate key")

const schema = `
CREATE TABLE IF NOT EXISTS members (
	position   INT PRIMARY KEY,
	last_name  TEXT NOT NULL,
	first_name TEXT NOT NULL,
	email      TEXT NOT NULL DEFAULT '',
	UNIQUE (last_name, first_name)
);
CREATE TABLE IF NOT EXISTS items (
	position     INT PRIMARY KEY,
	id           UUID NOT NULL UNIQUE,
	kind         TEXT NOT NULL,
	title        TEXT NOT NULL,
	author       TEXT NOT NULL DEFAULT '',
	illustrator  TEXT NOT NULL DEFAULT '',
	published_on DATE,
	available    BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE TABLE IF NOT EXISTS loans (
	position     INT PRIMARY KEY,
	id           UUID NOT NULL UNIQUE,
	member_last  TEXT NOT NULL,
	member_first TEXT NOT NULL,
	item_id      UUID NOT NULL,
	borrowed_on  DATE NOT NULL,
	returned_on  DATE
);
`

// Store reads and writes a library through db.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
	tracer trace.Tracer
}

// New creates a store on an open database handle. A nil logger discards output.
func New(db *sqlx.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		db:     db,
		logger: logger.With("component", "pgstore"),
		tracer: otel.Tracer("libraryledger/pgstore"),
	}
}

// EnsureSchema creates the tables if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Empty reports whether no member is stored.
func (s *Store) Empty(ctx context.Context) (bool, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM members`); err != nil {
		return false, fmt.Errorf("count members: %w", err)
	}
	return n == 0, nil
}

// Save replaces the stored collections with the library's current ones in a
// single serializable transaction.
func (s *Store) Save(ctx context.Context, lib *library.Library) error {
	ctx, span := s.tracer.Start(ctx, "pgstore.save")
	defer span.End()

	err := s.save(ctx, lib)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save")
		s.logger.Error("save failed", "error", err)
	}
	return err
}

func (s *Store) save(ctx context.Context, lib *library.Library) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM loans; DELETE FROM items; DELETE FROM members;`); err != nil {
		return fmt.Errorf("clear tables: %w", err)
	}

	for i, m := range lib.Members() {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO members (position, last_name, first_name, email)
			VALUES ($1, $2, $3, $4)
		`, i, m.LastName, m.FirstName, m.Email)
		if err != nil {
			return insertError("member", i, err)
		}
	}

	for i, it := range lib.Items() {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO items (position, id, kind, title, author, illustrator, published_on, available)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, i, it.ID, string(it.Kind), it.Title, it.Author, it.Illustrator, nullDate(it.PublishedOn), it.Available)
		if err != nil {
			return insertError("item", i, err)
		}
	}

	for i, l := range lib.Loans() {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO loans (position, id, member_last, member_first, item_id, borrowed_on, returned_on)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, i, l.ID, l.Member.LastName, l.Member.FirstName, l.Book.ID, l.BorrowedOn, nullDate(l.ReturnedOn))
		if err != nil {
			return insertError("loan", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func insertError(what string, position int, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("insert %s %d: %w", what, position, ErrConflict)
	}
	return fmt.Errorf("insert %s %d: %w", what, position, err)
}

func nullDate(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// Load fills lib, which should be empty, from the database. Members and items
// are read and indexed first, then loans are resolved against them. Rows that
// do not resolve are skipped.
func (s *Store) Load(ctx context.Context, lib *library.Library) error {
	ctx, span := s.tracer.Start(ctx, "pgstore.load")
	defer span.End()

	members, err := s.loadMembers(ctx, lib)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load members")
		return err
	}
	items, err := s.loadItems(ctx, lib)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load items")
		return err
	}
	if err := s.loadLoans(ctx, lib, members, items); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load loans")
		return err
	}

	stats := lib.Statistics()
	span.SetAttributes(
		attribute.Int("loaded.members", stats.TotalMembers),
		attribute.Int("loaded.items", stats.TotalItems),
		attribute.Int("loaded.loans", stats.TotalLoans),
	)
	return nil
}

type memberRow struct {
	LastName  string `db:"last_name"`
	FirstName string `db:"first_name"`
	Email     string `db:"email"`
}

type itemRow struct {
	ID          uuid.UUID    `db:"id"`
	Kind        string       `db:"kind"`
	Title       string       `db:"title"`
	Author      string       `db:"author"`
	Illustrator string       `db:"illustrator"`
	PublishedOn sql.NullTime `db:"published_on"`
	Available   bool         `db:"available"`
}

type loanRow struct {
	ID          uuid.UUID    `db:"id"`
	MemberLast  string       `db:"member_last"`
	MemberFirst string       `db:"member_first"`
	ItemID      uuid.UUID    `db:"item_id"`
	BorrowedOn  time.Time    `db:"borrowed_on"`
	ReturnedOn  sql.NullTime `db:"returned_on"`
}

func (s *Store) loadMembers(ctx context.Context, lib *library.Library) (map[string]*membership.Member, error) {
	var rows []memberRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT last_name, first_name, email
		FROM members
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}

	index := make(map[string]*membership.Member, len(rows))
	for _, row := range rows {
		m := &membership.Member{LastName: row.LastName, FirstName: row.FirstName, Email: row.Email}
		if err := lib.AddMember(m); err != nil {
			s.logger.Debug("skipping member", "key", m.Key(), "error", err)
			continue
		}
		index[m.Key()] = m
	}
	return index, nil
}

func (s *Store) loadItems(ctx context.Context, lib *library.Library) (map[uuid.UUID]*catalog.Item, error) {
	var rows []itemRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, kind, title, author, illustrator, published_on, available
		FROM items
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}

	index := make(map[uuid.UUID]*catalog.Item, len(rows))
	for _, row := range rows {
		fields := catalog.Item{Title: row.Title, Author: row.Author, Illustrator: row.Illustrator, Available: row.Available}
		restored, err := restoreItem(catalog.Kind(row.Kind), fields, row.PublishedOn.Time)
		if err != nil {
			s.logger.Debug("skipping item", "id", row.ID, "error", err)
			continue
		}
		restored.ID = row.ID
		lib.AddItem(restored)
		index[row.ID] = restored
	}
	return index, nil
}

// restoreItem rebuilds an item through its constructor so variant invariants hold.
func restoreItem(kind catalog.Kind, row catalog.Item, published time.Time) (*catalog.Item, error) {
	switch kind {
	case catalog.KindBook:
		return catalog.NewBook(row.Title, row.Author, row.Available)
	case catalog.KindComic:
		return catalog.NewComic(row.Title, row.Author, row.Illustrator)
	case catalog.KindReference:
		return catalog.NewReference(row.Title, row.Author)
	case catalog.KindPeriodical:
		return catalog.NewPeriodical(row.Title, circulation.Day(published))
	}
	return nil, fmt.Errorf("%w: %q", catalog.ErrUnknownKind, kind)
}

func (s *Store) loadLoans(ctx context.Context, lib *library.Library, members map[string]*membership.Member, items map[uuid.UUID]*catalog.Item) error {
	var rows []loanRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, member_last, member_first, item_id, borrowed_on, returned_on
		FROM loans
		ORDER BY position ASC
	`)
	if err != nil {
		return fmt.Errorf("query loans: %w", err)
	}

	for _, row := range rows {
		member, ok := members[membership.Key(row.MemberLast, row.MemberFirst)]
		book, found := items[row.ItemID]
		if !ok || !found || !book.IsBook() {
			s.logger.Debug("skipping loan", "id", row.ID, "error", circulation.ErrUnresolved)
			continue
		}

		loan := circulation.NewLoan(member, book, row.BorrowedOn)
		loan.ID = row.ID
		if row.ReturnedOn.Valid {
			loan.ReturnedOn = circulation.Day(row.ReturnedOn.Time)
		}
		if err := lib.RestoreLoan(loan); err != nil {
			s.logger.Debug("skipping loan", "id", row.ID, "error", err)
		}
	}
	return nil
}
