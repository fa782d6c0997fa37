// Package store is the Postgres persistence layer for the trading core. It
// is the first real consumer of the teacher's declared-but-unused
// github.com/jackc/pgx/v5 dependency (see DESIGN.md). The package has no
// dependency on any engine package, only on internal/domain, so nothing
// importing store can create a cycle.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/epic1st/contestcore/internal/coreerrors"
)

// Store wraps a pgx connection pool and exposes one repository method set
// per logical table (spec §6's eleven logical tables).
type Store struct {
	pool *pgxpool.Pool
}

// Config is the subset of config.DatabaseConfig the store needs, kept
// decoupled from the config package to avoid a dependency edge store
// doesn't need beyond a DSN.
type Config struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
}

func (c Config) dsn() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

// Open connects a pgxpool.Pool to Postgres and verifies connectivity.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	pool, err := pgxpool.New(ctx, cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("store: open pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases the pool's connections.
func (s *Store) Close() {
	s.pool.Close()
}

// Queryer is satisfied by both *pgxpool.Pool and pgx.Tx, letting repository
// functions run either standalone (Store.Pool()) or inside WithTx without
// duplicating code.
type Queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// WithTx runs fn inside a single database transaction. Every multi-row
// mutation named in spec §4 (placeOrder, closePosition, enterCompetition,
// cancelCompetitionAndRefund, finalizeCompetition, ...) goes through this
// so the core's ordering guarantees (spec §5) hold: the transaction either
// commits in full or not at all. A write-conflict from Postgres surfaces
// as coreerrors.ErrTransactionConflict, which the scheduler may retry next
// tick but a request path must not retry in a loop (spec §7).
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return coreerrors.Wrap(coreerrors.KindTimeout, "begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return coreerrors.Wrap(coreerrors.KindConflict, "commit transaction", err)
	}
	return nil
}

// Pool exposes the underlying pool for callers (e.g. repositories outside
// this package during the build-out) that need direct access.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }
