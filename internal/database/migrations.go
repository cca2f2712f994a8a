package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const (
	// SessionSchemaVersion is the session schema version this build reads and writes.
	SessionSchemaVersion uint = 1
	// SessionMigrationsTable records the applied session schema versions. It is kept apart
	// from other schemas living in the same database.
	SessionMigrationsTable = "session_schema_migrations"
	// DefaultMigrationsPath is used when no migrations directory is configured.
	DefaultMigrationsPath = "migrations"
)

var (
	// ErrSchemaDirty means a previous migration failed half way and needs manual repair.
	ErrSchemaDirty = errors.New("session schema is dirty")
	// ErrSchemaOutdated means the database is behind SessionSchemaVersion after migrating.
	ErrSchemaOutdated = errors.New("session schema is outdated")
)

// SchemaStatus describes the session schema found in the database.
type SchemaStatus struct {
	Version  uint `json:"version"`
	Dirty    bool `json:"dirty"`
	Expected uint `json:"expected"`
}

// Current reports whether the schema can be used by this build.
func (s SchemaStatus) Current() bool {
	return !s.Dirty && s.Version >= s.Expected
}

// MigrationRunner applies the SQL migrations of the session schema over its own short-lived
// connection.
type MigrationRunner struct {
	migrate *migrate.Migrate
	db      *sql.DB
	log     *logrus.Logger
}

// NewMigrationRunner opens databaseURL and reads the migrations in migrationsPath, or in
// DefaultMigrationsPath when it is empty.
func NewMigrationRunner(databaseURL, migrationsPath string, logger *logrus.Logger) (*MigrationRunner, error) {
	source, err := migrationsSource(migrationsPath)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening migration connection: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: SessionMigrationsTable})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating migration driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(source, "postgres", driver)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating migration instance: %w", err)
	}

	return &MigrationRunner{
		migrate: m,
		db:      db,
		log:     logger,
	}, nil
}

// migrationsSource turns a migrations directory into a file source URL
func migrationsSource(path string) (string, error) {
	if path == "" {
		path = DefaultMigrationsPath
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving migrations path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("session migrations: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("session migrations: %s is not a directory", abs)
	}
	return "file://" + filepath.ToSlash(abs), nil
}

// Status reports the applied session schema version. A database that was never migrated
// has version 0.
func (mr *MigrationRunner) Status() (SchemaStatus, error) {
	status := SchemaStatus{Expected: SessionSchemaVersion}
	version, dirty, err := mr.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return status, nil
	}
	if err != nil {
		return status, fmt.Errorf("reading session schema version: %w", err)
	}
	status.Version, status.Dirty = version, dirty
	return status, nil
}

// Up applies all pending migrations and checks that the schema is usable afterwards
func (mr *MigrationRunner) Up(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	before, err := mr.Status()
	if err != nil {
		return err
	}
	if before.Dirty {
		return fmt.Errorf("version %d: %w", before.Version, ErrSchemaDirty)
	}

	err = mr.migrate.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations up: %w", err)
	}

	after, err := mr.Status()
	if err != nil {
		return err
	}
	log := mr.log.WithFields(logrus.Fields{
		"table":        SessionMigrationsTable,
		"from_version": before.Version,
		"version":      after.Version,
		"expected":     after.Expected,
	})
	switch {
	case after.Dirty:
		return fmt.Errorf("version %d: %w", after.Version, ErrSchemaDirty)
	case !after.Current():
		return fmt.Errorf("version %d, need %d: %w", after.Version, after.Expected, ErrSchemaOutdated)
	case before.Version == after.Version:
		log.Info("Session schema is up to date")
	default:
		log.Info("Session schema migrated")
	}
	return nil
}

// Down rolls back one migration
func (mr *MigrationRunner) Down(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := mr.migrate.Steps(-1); err != nil {
		if errors.Is(err, migrate.ErrNoChange) || errors.Is(err, os.ErrNotExist) {
			mr.log.Info("No session schema migrations to roll back")
			return nil
		}
		return fmt.Errorf("rolling back migration: %w", err)
	}

	status, err := mr.Status()
	if err != nil {
		return err
	}
	mr.log.WithFields(logrus.Fields{
		"table":   SessionMigrationsTable,
		"version": status.Version,
	}).Warn("Session schema rolled back")
	return nil
}

// Close releases the migration source and connection
func (mr *MigrationRunner) Close() error {
	sourceErr, dbErr := mr.migrate.Close()
	if err := mr.db.Close(); err != nil && dbErr == nil {
		dbErr = err
	}
	if sourceErr != nil {
		return fmt.Errorf("closing migration source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("closing migration database: %w", dbErr)
	}
	return nil
}
