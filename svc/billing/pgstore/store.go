// Package pgstore implements the billing storage contract on PostgreSQL
// using pgx. Transactions rely on row-level locks: every write path
// reads its subscription with FOR UPDATE, so concurrent transactions on
// the same subscription serialize at the database.
package pgstore

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/billingkit/pkg/pg"
	"github.com/dmitrymomot/billingkit/svc/billing"
)

// querier is the subset of pgxpool.Pool and pgx.Tx the queries need,
// letting the same query code run inside and outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements billing.UnitOfWork over a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
	q    querier
	inTx bool
}

// New creates a Store over the given pool. Panics on a nil pool to fail
// fast during initialization.
func New(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("pgstore: pool is required")
	}
	return &Store{pool: pool, q: pool}
}

// WithinTx runs fn inside a database transaction. The Store handed to
// fn routes every query through the transaction; a non-nil error from
// fn rolls everything back. Nested calls are not supported.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx billing.Store) error) error {
	if s.inTx {
		return errors.New("pgstore: nested transactions are not supported")
	}

	dbTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer dbTx.Rollback(ctx) // no-op after commit

	txStore := &Store{pool: s.pool, q: dbTx, inTx: true}
	if err := fn(ctx, txStore); err != nil {
		return err
	}
	return dbTx.Commit(ctx)
}

// notFound converts pgx.ErrNoRows into the given domain sentinel and
// passes everything else through.
func notFound(err, sentinel error) error {
	if pg.IsNotFoundError(err) {
		return sentinel
	}
	return err
}
