// cmd/library/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"libraryledger/internal/api"
	"libraryledger/internal/config"
	"libraryledger/internal/filestore"
	"libraryledger/internal/library"
	"libraryledger/internal/pgstore"
	"libraryledger/internal/telemetry"
)

// store is the persistence contract shared by the file and PostgreSQL backends.
type store interface {
	Save(ctx context.Context, lib *library.Library) error
	Load(ctx context.Context, lib *library.Library) error
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "library: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level, _ := cfg.Level()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "libraryledger", cfg.OTELEndpoint)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer shutdownTracing(context.Background())

	st, empty, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	lib := library.New()
	if empty && cfg.SeedDemo {
		logger.Info("seeding demo data")
		if err := library.SeedDemo(ctx, lib); err != nil {
			return fmt.Errorf("seed demo: %w", err)
		}
		if err := st.Save(ctx, lib); err != nil {
			return fmt.Errorf("save demo: %w", err)
		}
	} else if err := st.Load(ctx, lib); err != nil {
		// Partial loads are usable; the failing categories were logged.
		logger.Warn("library loaded with errors", "error", err)
	}
	logger.Info("library ready", "summary", lib.String())

	handler := api.NewHandler(lib, st, logger, api.NewLimiter(cfg.WriteRatePerMinute, cfg.WriteBurst))
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting library service", "port", cfg.Port, "storage", cfg.Storage)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	// No request is in flight after Shutdown, so the library is quiescent.
	if err := st.Save(shutdownCtx, lib); err != nil {
		return fmt.Errorf("final save: %w", err)
	}
	logger.Info("library saved", "summary", lib.String())
	return nil
}

// openStore prepares the configured backend and reports whether it holds no
// members yet.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store, bool, func(), error) {
	switch cfg.Storage {
	case config.StoragePostgres:
		db, err := sqlx.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, false, nil, fmt.Errorf("open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, false, nil, fmt.Errorf("connect to database: %w", err)
		}
		st := pgstore.New(db, logger)
		if err := st.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, false, nil, err
		}
		empty, err := st.Empty(ctx)
		if err != nil {
			db.Close()
			return nil, false, nil, err
		}
		return st, empty, func() { db.Close() }, nil
	default:
		st := filestore.New(cfg.FileStore(), logger)
		if err := st.Init(); err != nil {
			return nil, false, nil, err
		}
		empty, err := st.Empty()
		if err != nil {
			return nil, false, nil, err
		}
		return st, empty, func() {}, nil
	}
}
