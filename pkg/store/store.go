// Package store provides the Postgres-backed Data Store: targets, test
// cases, mutants, evaluation runs, coverage snapshots, the budget counter
// and the planner's resumable checkpoint, all behind a single writer
// goroutine's repositories (spec.md §4, §6).
//
// Grounded on the teacher's pkg/database/client.go connection-pool and
// golang-migrate-with-embedded-FS pattern, minus the Ent dialect driver:
// this repo hand-writes SQL against database/sql + pgx/v5/stdlib instead
// of generating a client, since Ent's codegen step cannot run here.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
)

//go:embed migrations
var migrationsFS embed.FS

// Config configures the Postgres connection pool, mirroring the fields the
// teacher's database.Config exposes (spec.md §6 StoreConfig).
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store wraps the pooled connection and exposes one repository per
// SPEC_FULL.md §3 data model entity. All mutating methods are safe to call
// only from the Planner Agent's single writer goroutine (spec.md §5); reads
// may run concurrently.
type Store struct {
	db *sql.DB

	Targets    *TargetRepo
	Tests      *TestCaseRepo
	Mutants    *MutantRepo
	Runs       *RunRepo
	Budget     *BudgetRepo
	Checkpoint *CheckpointRepo
}

// DB exposes the underlying pool for health checks and ad-hoc queries.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Open opens a pooled connection, applies pending migrations and returns a
// ready-to-use Store.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return wrap(db), nil
}

// wrap builds a Store around an already-open, already-migrated *sql.DB —
// the seam integration tests use to point the repositories at a
// testcontainers-managed Postgres instance.
func wrap(db *sql.DB) *Store {
	return &Store{
		db:         db,
		Targets:    &TargetRepo{db: db},
		Tests:      &TestCaseRepo{db: db},
		Mutants:    &MutantRepo{db: db},
		Runs:       &RunRepo{db: db},
		Budget:     &BudgetRepo{db: db},
		Checkpoint: &CheckpointRepo{db: db},
	}
}

// NewFromDB wraps an already-open *sql.DB without running migrations,
// mirroring the teacher's NewClientFromEnt test seam.
func NewFromDB(db *sql.DB) *Store { return wrap(db) }

func runMigrations(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Must not call m.Close() — it would close db through the driver, same
	// as the teacher's runMigrations guards against for its shared *sql.DB.
	return sourceDriver.Close()
}
