package migrations

import (
	"embed"
	"errors"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	pkgerrors "github.com/pkg/errors"
)

//go:embed sql/*.sql
var files embed.FS

func newMigrator(dsn string) (*migrate.Migrate, error) {
	src, err := iofs.New(files, "sql")
	if err != nil {
		return nil, pkgerrors.Wrap(err, "open embedded migrations")
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "init migrator")
	}
	return m, nil
}

// Up applies every pending migration. An up-to-date schema is not an error.
func Up(dsn string, log *slog.Logger) error {
	return run(dsn, log, "up", func(m *migrate.Migrate) error { return m.Up() })
}

// Down rolls back the most recent migration.
func Down(dsn string, log *slog.Logger) error {
	return run(dsn, log, "down", func(m *migrate.Migrate) error { return m.Steps(-1) })
}

func run(dsn string, log *slog.Logger, op string, fn func(*migrate.Migrate) error) error {
	m, err := newMigrator(dsn)
	if err != nil {
		return err
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil || dbErr != nil {
			log.Warn("migrator_close_error", "source_error", srcErr, "db_error", dbErr)
		}
	}()

	if err := fn(m); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("migrations_no_change", "op", op)
			return nil
		}
		return pkgerrors.Wrapf(err, "migrate %s", op)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return pkgerrors.Wrap(err, "read schema version")
	}
	log.Info("migrations_applied", "op", op, "version", version, "dirty", dirty)
	return nil
}
