package database

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/shopbot/core/logger"
)

// RunMigrations applies the up migrations at the root of fsys, usually the
// embedded migrations package, once the database accepts connections.
func RunMigrations(cfg Config, fsys fs.FS) error {
	if fsys == nil {
		return errors.New("migrations: nil source filesystem")
	}
	if err := awaitDatabase(cfg); err != nil {
		return err
	}
	src, err := iofs.New(fsys, ".")
	if err != nil {
		return fmt.Errorf("migrations: open source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, cfg.URL())
	if err != nil {
		return fmt.Errorf("migrations: init: %w", err)
	}
	defer m.Close()

	from, _, _ := m.Version()
	start := time.Now()
	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.MIG.Error("migration failed",
			slog.String("event", "db.migrate"),
			slog.Uint64("from_ver", uint64(from)),
			slog.Duration("duration", time.Since(start)),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("migrations: up: %w", err)
	}
	to, _, _ := m.Version()

	applied := appliedBetween(upFiles(fsys), uint64(from), uint64(to))
	logger.MIG.Info("migrations applied",
		slog.String("event", "db.migrate"),
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Int("count", len(applied)),
		slog.String("files", strings.Join(applied, ",")),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// awaitDatabase blocks until the database of cfg answers a ping, so
// migrations do not race a starting postgres container.
func awaitDatabase(cfg Config) error {
	db, err := sqlx.Open(driverName, cfg.DSN())
	if err != nil {
		return fmt.Errorf("migrations: open: %w", err)
	}
	defer db.Close()
	ctx, cancel := context.WithTimeout(context.Background(), readyTimeout)
	defer cancel()
	if err := waitReady(ctx, db); err != nil {
		logger.MIG.Error("db not ready", append(cfg.logAttrs(),
			slog.String("event", "db.migrate"),
			slog.String("err", err.Error()),
		)...)
		return err
	}
	return nil
}

// upFiles lists the *.up.sql names at the root of fsys in version order.
func upFiles(fsys fs.FS) []string {
	names, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return nil
	}
	slices.SortFunc(names, func(a, b string) int {
		return cmp.Or(cmp.Compare(fileVersion(a), fileVersion(b)), strings.Compare(a, b))
	})
	return names
}

// fileVersion parses the numeric prefix of a migration file name.
func fileVersion(name string) uint64 {
	prefix, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(prefix, 10, 64)
	return v
}

// appliedBetween returns the files whose version is in (from, to].
func appliedBetween(files []string, from, to uint64) []string {
	var out []string
	for _, f := range files {
		if v := fileVersion(f); v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}
