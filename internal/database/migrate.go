package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/HammerMeetNail/roots/internal/logging"
)

// Migrator applies the SQL files under migrations/ to the roots schema.
type Migrator struct {
	m *migrate.Migrate
}

func NewMigrator(dsn, migrationsPath string) (*Migrator, error) {
	m, err := migrate.New("file://"+migrationsPath, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating migrator: %w", err)
	}
	m.Log = migrationLogger{logger: logging.Default.WithField("component", "migrate")}

	return &Migrator{m: m}, nil
}

func (m *Migrator) Up() error {
	if err := ignoreNoChange(m.m.Up()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

func (m *Migrator) Down() error {
	if err := ignoreNoChange(m.m.Down()); err != nil {
		return fmt.Errorf("rolling back migrations: %w", err)
	}
	return nil
}

// Steps moves n migrations forward, or backward when n is negative.
func (m *Migrator) Steps(n int) error {
	if n == 0 {
		return nil
	}
	if err := ignoreNoChange(m.m.Steps(n)); err != nil {
		return fmt.Errorf("stepping %d migrations: %w", n, err)
	}
	return nil
}

// Force sets the recorded version without running anything, clearing the dirty flag.
func (m *Migrator) Force(version int) error {
	if err := m.m.Force(version); err != nil {
		return fmt.Errorf("forcing version %d: %w", version, err)
	}
	return nil
}

// Version reports the applied version. A fresh database returns migrate.ErrNilVersion.
func (m *Migrator) Version() (uint, bool, error) {
	return m.m.Version()
}

func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	if srcErr != nil {
		return srcErr
	}
	return dbErr
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

type migrationLogger struct {
	logger *logging.Logger
}

func (l migrationLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l migrationLogger) Verbose() bool {
	return false
}
