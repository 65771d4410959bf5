// Package filestore persists a library as three line-oriented text files:
// one for members, one for catalog items and one for loans.
package filestore

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"libraryledger/internal/catalog"
	"libraryledger/internal/circulation"
	"libraryledger/internal/library"
	"libraryledger/internal/membership"
)

// Config locates the three data files.
type Config struct {
	Dir         string
	MembersFile string
	ItemsFile   string
	LoansFile   string
}

// DefaultConfig is the layout used when nothing else is configured.
func DefaultConfig() Config {
	return Config{
		Dir:         "data",
		MembersFile: "Adherents.txt",
		ItemsFile:   "Biblio.txt",
		LoansFile:   "Emprunts.txt",
	}
}

func (c Config) membersPath() string { return filepath.Join(c.Dir, c.MembersFile) }
func (c Config) itemsPath() string   { return filepath.Join(c.Dir, c.ItemsFile) }
func (c Config) loansPath() string   { return filepath.Join(c.Dir, c.LoansFile) }

// Store reads and writes a library in the configured directory.
type Store struct {
	cfg    Config
	logger *slog.Logger
	tracer trace.Tracer
}

// New creates a store. A nil logger discards log output.
func New(cfg Config, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		cfg:    cfg,
		logger: logger.With("component", "filestore"),
		tracer: otel.Tracer("libraryledger/filestore"),
	}
}

// Init creates the data directory and any missing data file.
func (s *Store) Init() error {
	if err := os.MkdirAll(s.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	for _, path := range []string{s.cfg.membersPath(), s.cfg.itemsPath(), s.cfg.loansPath()} {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		f.Close()
	}
	return nil
}

// Empty reports whether the members file holds no record.
func (s *Store) Empty() (bool, error) {
	lines, err := readLines(s.cfg.membersPath())
	if err != nil {
		return false, err
	}
	return len(lines) == 0, nil
}

// Save rewrites the three files from the library's current collections. Each
// file is replaced atomically; a failure on one file does not stop the others.
func (s *Store) Save(ctx context.Context, lib *library.Library) error {
	_, span := s.tracer.Start(ctx, "filestore.save",
		trace.WithAttributes(attribute.String("store.dir", s.cfg.Dir)),
	)
	defer span.End()

	if err := os.MkdirAll(s.cfg.Dir, 0o755); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create data dir")
		return fmt.Errorf("create data dir: %w", err)
	}

	members := lib.Members()
	memberLines := make([]string, 0, len(members))
	for _, m := range members {
		memberLines = append(memberLines, membership.EncodeLine(m))
	}

	items := lib.Items()
	itemLines := make([]string, 0, len(items))
	for _, it := range items {
		itemLines = append(itemLines, catalog.EncodeLine(it))
	}

	loans := lib.Loans()
	loanLines := make([]string, 0, len(loans))
	for _, l := range loans {
		loanLines = append(loanLines, circulation.EncodeLine(l))
	}

	var errs []error
	for _, f := range []struct {
		category string
		path     string
		lines    []string
	}{
		{"members", s.cfg.membersPath(), memberLines},
		{"items", s.cfg.itemsPath(), itemLines},
		{"loans", s.cfg.loansPath(), loanLines},
	} {
		if err := writeLines(f.path, f.lines); err != nil {
			s.logger.Error("save failed", "category", f.category, "path", f.path, "error", err)
			errs = append(errs, fmt.Errorf("save %s: %w", f.category, err))
			continue
		}
		span.SetAttributes(attribute.Int("saved."+f.category, len(f.lines)))
	}

	if err := errors.Join(errs...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save")
		return err
	}
	return nil
}

// Load fills lib, which should be empty, from the data files.
//
// Members and items are loaded and indexed first; loans are resolved against
// that index afterwards. Lines that cannot be parsed or resolved are skipped.
// Missing files count as empty.
func (s *Store) Load(ctx context.Context, lib *library.Library) error {
	_, span := s.tracer.Start(ctx, "filestore.load",
		trace.WithAttributes(attribute.String("store.dir", s.cfg.Dir)),
	)
	defer span.End()

	var errs []error
	index := circulation.NewIndex()

	// Phase 1: members and items.
	lines, err := readLines(s.cfg.membersPath())
	if err != nil {
		errs = append(errs, s.loadFailed("members", err))
	}
	for _, line := range lines {
		m, err := membership.DecodeLine(line)
		if err != nil {
			s.skip("members", line, err)
			continue
		}
		if err := lib.AddMember(m); err != nil {
			s.skip("members", line, err)
			continue
		}
		index.AddMember(m)
	}

	lines, err = readLines(s.cfg.itemsPath())
	if err != nil {
		errs = append(errs, s.loadFailed("items", err))
	}
	for _, line := range lines {
		it, err := catalog.DecodeLine(line)
		if err != nil {
			s.skip("items", line, err)
			continue
		}
		lib.AddItem(it)
		index.AddItem(it)
	}

	// Phase 2: loans, resolved against the index.
	lines, err = readLines(s.cfg.loansPath())
	if err != nil {
		errs = append(errs, s.loadFailed("loans", err))
	}
	for _, line := range lines {
		loan, err := circulation.DecodeLine(line, index)
		if err != nil {
			s.skip("loans", line, err)
			continue
		}
		if err := lib.RestoreLoan(loan); err != nil {
			s.skip("loans", line, err)
		}
	}

	stats := lib.Statistics()
	span.SetAttributes(
		attribute.Int("loaded.members", stats.TotalMembers),
		attribute.Int("loaded.items", stats.TotalItems),
		attribute.Int("loaded.loans", stats.TotalLoans),
	)

	if err := errors.Join(errs...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load")
		return err
	}
	return nil
}

func (s *Store) loadFailed(category string, err error) error {
	s.logger.Error("load failed", "category", category, "error", err)
	return fmt.Errorf("load %s: %w", category, err)
}

func (s *Store) skip(category, line string, err error) {
	s.logger.Debug("skipping record", "category", category, "line", line, "error", err)
}

// readLines returns the non-blank lines of path. A missing file has no lines.
func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// writeLines replaces path with lines, LF-terminated, via a temp file rename.
func writeLines(path string, lines []string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	w := bufio.NewWriter(tmp)
	for _, line := range lines {
		w.WriteString(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
