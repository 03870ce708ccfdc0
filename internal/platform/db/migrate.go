package db

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	migrate "github.com/rubenv/sql-migrate"
)

// MigrationTable records applied migration ids.
const MigrationTable = "schema_migrations"

const dialect = "postgres"

// MigrationStatus represents the status of a migration (applied or pending).
type MigrationStatus struct {
	Version   int
	Name      string
	Applied   bool
	AppliedAt *time.Time
}

// Migrator applies annotated SQL files ("-- +migrate Up" / "-- +migrate Down")
// from a filesystem, usually the embedded migrations package.
type Migrator struct {
	pool   *pgxpool.Pool
	source migrate.MigrationSource
	set    migrate.MigrationSet
}

func NewMigrator(pool *pgxpool.Pool, fsys fs.FS) *Migrator {
	return &Migrator{
		pool:   pool,
		source: migrate.HttpFileSystemMigrationSource{FileSystem: http.FS(fsys)},
		set:    migrate.MigrationSet{TableName: MigrationTable},
	}
}

// LoadMigrations parses every .sql file, ordered by numeric prefix.
func (m *Migrator) LoadMigrations() ([]*migrate.Migration, error) {
	migs, err := m.source.FindMigrations()
	if err != nil {
		return nil, fmt.Errorf("load migrations: %w", err)
	}
	return migs, nil
}

// withDB hands fn a database/sql view of the pool for the migration library.
func (m *Migrator) withDB(fn func(*sql.DB) error) error {
	sqlDB := stdlib.OpenDBFromPool(m.pool)
	defer sqlDB.Close()
	return fn(sqlDB)
}

// Up applies all pending migrations in order, each in its own transaction,
// and returns how many were applied.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	var n int
	err := m.withDB(func(sqlDB *sql.DB) error {
		var err error
		n, err = m.set.ExecContext(ctx, sqlDB, dialect, m.source, migrate.Up)
		return err
	})
	if err != nil {
		return n, fmt.Errorf("apply migrations: %w", err)
	}
	return n, nil
}

// Down rolls back the most recent steps migrations.
func (m *Migrator) Down(ctx context.Context, steps int) (int, error) {
	if steps < 1 {
		return 0, fmt.Errorf("steps must be at least 1, got %d", steps)
	}
	var n int
	err := m.withDB(func(sqlDB *sql.DB) error {
		var err error
		n, err = m.set.ExecMaxContext(ctx, sqlDB, dialect, m.source, migrate.Down, steps)
		return err
	})
	if err != nil {
		return n, fmt.Errorf("roll back migrations: %w", err)
	}
	return n, nil
}

// Status lists every known migration with its applied state.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	migs, err := m.LoadMigrations()
	if err != nil {
		return nil, err
	}

	var records []*migrate.MigrationRecord
	err = m.withDB(func(sqlDB *sql.DB) error {
		if err := sqlDB.PingContext(ctx); err != nil {
			return err
		}
		var err error
		records, err = m.set.GetMigrationRecords(sqlDB, dialect)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("read migration records: %w", err)
	}
	return buildStatus(migs, records), nil
}

func buildStatus(migs []*migrate.Migration, records []*migrate.MigrationRecord) []MigrationStatus {
	applied := make(map[string]time.Time, len(records))
	for _, r := range records {
		applied[r.Id] = r.AppliedAt
	}

	statuses := make([]MigrationStatus, 0, len(migs))
	for _, mig := range migs {
		status := MigrationStatus{Version: versionOf(mig), Name: mig.Id}
		if at, ok := applied[mig.Id]; ok {
			status.Applied = true
			status.AppliedAt = &at
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// versionOf returns the numeric file prefix, or 0 when there is none.
func versionOf(mig *migrate.Migration) int {
	match := mig.NumberPrefixMatches()
	if len(match) < 2 {
		return 0
	}
	v, err := strconv.Atoi(match[1])
	if err != nil {
		return 0
	}
	return v
}
