// Package migrations applies the embedded schema with golang-migrate.
package migrations

import (
	"embed"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

//go:embed sql/*.sql
var files embed.FS

// Files exposes the embedded migration sources.
func Files() embed.FS {
	return files
}

type logger struct {
	log logrus.FieldLogger
}

func (l logger) Printf(format string, v ...any) {
	l.log.Infof(format, v...)
}

func (l logger) Verbose() bool {
	return false
}

func newMigrate(db *sqlx.DB, log logrus.FieldLogger) (*migrate.Migrate, error) {
	src, err := iofs.New(files, "sql")
	if err != nil {
		return nil, errors.Wrap(err, "open embedded migrations")
	}
	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "init migrate driver")
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, errors.Wrap(err, "init migrate")
	}
	m.Log = logger{log: log}
	return m, nil
}

// Up applies every pending migration. An up-to-date schema is not an error.
func Up(db *sqlx.DB, log logrus.FieldLogger) error {
	m, err := newMigrate(db, log)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "migrate up")
	}
	version, dirty, _ := m.Version()
	log.WithFields(logrus.Fields{"version": version, "dirty": dirty}).Info("schema migrated")
	return nil
}

// Down rolls back steps migrations.
func Down(db *sqlx.DB, steps int, log logrus.FieldLogger) error {
	if steps <= 0 {
		return errors.Errorf("invalid step count %d", steps)
	}
	m, err := newMigrate(db, log)
	if err != nil {
		return err
	}
	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "migrate down")
	}
	return nil
}
