// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package migration applies the access-control schema (users, groups,
// permissions, sessions) with golang-migrate.
//
// # Usage
//
// Both the API server and the adduser command call [RunUp] before touching
// the database, so either can bootstrap an empty instance.
package migration

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	// Registers the "pgx5" database scheme.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	// Registers the "file" source scheme.
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// pgx5Scheme is the database scheme registered by the pgx/v5 driver.
const pgx5Scheme = "pgx5://"

// postgresSchemes are the libpq URL schemes rewritten to [pgx5Scheme].
var postgresSchemes = []string{"postgres://", "postgresql://"}

/*
RunUp brings the schema to the newest version found under migrationsPath.

Parameters:
  - dsn: postgres:// URL (the pgx5:// form is accepted as is)
  - migrationsPath: directory holding the numbered .sql files
  - logger: receives progress and driver chatter

Returns:
  - error: wrapped initialization or apply failure; nil when already current
*/
func RunUp(dsn string, migrationsPath string, logger *slog.Logger) error {
	migrator, err := migrate.New("file://"+migrationsPath, MigrateURL(dsn))
	if err != nil {
		return fmt.Errorf("migration_init_failed: %w", err)
	}
	defer closeMigrator(migrator, logger)

	migrator.Log = &migrateLogger{logger: logger}

	from, dirty, err := migrator.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		from = 0
	case err != nil:
		return fmt.Errorf("migration_version_failed: %w", err)
	case dirty:
		return fmt.Errorf("migration_dirty: version %d needs manual repair", from)
	}

	err = migrator.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("schema_up_to_date", slog.Uint64("version", uint64(from)))
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration_up_failed: %w", err)
	}

	to, _, _ := migrator.Version()
	logger.Info("schema_migrated",
		slog.Uint64("from_version", uint64(from)),
		slog.Uint64("to_version", uint64(to)),
	)
	return nil
}

// MigrateURL rewrites a libpq URL into the pgx5:// form the driver registers.
func MigrateURL(dsn string) string {
	for _, scheme := range postgresSchemes {
		if rest, ok := strings.CutPrefix(dsn, scheme); ok {
			return pgx5Scheme + rest
		}
	}
	return dsn
}

func closeMigrator(migrator *migrate.Migrate, logger *slog.Logger) {
	sourceErr, databaseErr := migrator.Close()
	if sourceErr != nil {
		logger.Warn("migration_source_close_failed", slog.Any("error", sourceErr))
	}
	if databaseErr != nil {
		logger.Warn("migration_database_close_failed", slog.Any("error", databaseErr))
	}
}

// migrateLogger forwards golang-migrate output to slog at debug level.
type migrateLogger struct {
	logger *slog.Logger
}

func (adapter *migrateLogger) Printf(format string, args ...any) {
	adapter.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), slog.String("component", "migrate"))
}

func (adapter *migrateLogger) Verbose() bool {
	return false
}
