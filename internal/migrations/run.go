// Package migrations приводит схему базы к последней версии из каталога migrations.
package migrations

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	pgxv5 "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// ErrDirty возвращается, если прошлая миграция прервалась на середине.
// Такую схему чинят вручную, повторный запуск её не исправит.
var ErrDirty = errors.New("database schema is dirty")

// Run применяет новые миграции из каталога path и пишет в лог,
// с какой версии на какую перешла схема.
func Run(db *sql.DB, path string, log *slog.Logger) error {
	const op = "migrations.Run"

	m, err := newMigrator(db, path)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	from, dirty, err := version(m)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if dirty {
		return fmt.Errorf("%s: version %d: %w", op, from, ErrDirty)
	}

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		log.Debug("database schema is up to date", slog.Uint64("version", uint64(from)))
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: up from version %d: %w", op, from, err)
	}

	to, _, err := version(m)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Info("database schema migrated", slog.Uint64("from", uint64(from)), slog.Uint64("to", uint64(to)))
	return nil
}

func newMigrator(db *sql.DB, path string) (*migrate.Migrate, error) {
	driver, err := pgxv5.WithInstance(db, &pgxv5.Config{})
	if err != nil {
		return nil, err
	}
	return migrate.NewWithDatabaseInstance("file://"+path, "pgx_v5", driver)
}

// version возвращает 0 для пустой базы.
func version(m *migrate.Migrate) (uint, bool, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}
