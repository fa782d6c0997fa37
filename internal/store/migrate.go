package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migration is one embedded schema file.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Migrator applies embedded migrations in version order, grounded on the
// teacher's database.Migrator (options-constructor shape, schema_migrations
// tracking table), ported from lib/pq to the pgx stdlib driver.
type Migrator struct {
	db      *sql.DB
	dryRun  bool
	verbose bool
}

type MigratorOption func(*Migrator)

func WithDryRun(dryRun bool) MigratorOption {
	return func(m *Migrator) { m.dryRun = dryRun }
}

func WithVerbose(verbose bool) MigratorOption {
	return func(m *Migrator) { m.verbose = verbose }
}

// NewMigrator opens its own *sql.DB via the pgx stdlib adapter so it can
// use database/sql transactions independently of the pool the rest of the
// store uses for steady-state traffic.
func NewMigrator(dsn string, opts ...MigratorOption) (*Migrator, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("migrator: open: %w", err)
	}
	m := &Migrator{db: db}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Migrator) Close() error { return m.db.Close() }

func (m *Migrator) log(format string, args ...any) {
	if m.verbose {
		log.Printf(format, args...)
	}
}

// Initialize creates the migrations tracking table.
func (m *Migrator) Initialize(ctx context.Context) error {
	const createTableSQL = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		name       VARCHAR(255) NOT NULL,
		applied_at TIMESTAMPTZ DEFAULT now()
	);`

	if m.dryRun {
		m.log("dry run: would create schema_migrations table")
		return nil
	}
	_, err := m.db.ExecContext(ctx, createTableSQL)
	return err
}

// LoadMigrations reads every embedded *.sql file, ordered by its numeric
// prefix (e.g. 0001_init.sql -> version 1).
func (m *Migrator) LoadMigrations() ([]*Migration, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var migrations []*Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		prefix, _, ok := strings.Cut(entry.Name(), "_")
		if !ok {
			continue
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			continue
		}
		data, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		migrations = append(migrations, &Migration{Version: version, Name: entry.Name(), SQL: string(data)})
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}

// Up applies every migration not yet recorded in schema_migrations.
func (m *Migrator) Up(ctx context.Context) error {
	if err := m.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	migrations, err := m.LoadMigrations()
	if err != nil {
		return err
	}

	applied := make(map[int]bool)
	rows, err := m.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("list applied migrations: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return err
		}
		applied[v] = true
	}
	rows.Close()

	for _, mig := range migrations {
		if applied[mig.Version] {
			continue
		}
		if m.dryRun {
			m.log("dry run: would apply %s", mig.Name)
			continue
		}

		tx, err := m.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin %s: %w", mig.Name, err)
		}
		if _, err := tx.ExecContext(ctx, mig.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply %s: %w", mig.Name, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version, name) VALUES ($1, $2)", mig.Version, mig.Name); err != nil {
			tx.Rollback()
			return fmt.Errorf("record %s: %w", mig.Name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", mig.Name, err)
		}
		m.log("applied %s", mig.Name)
	}

	return nil
}
