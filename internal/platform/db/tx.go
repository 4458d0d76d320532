package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

// TxKey carries the active transaction through a request context so that
// repositories participate in it transparently.
const TxKey contextKey = "db_tx"

// TxFromContext returns the transaction stored in ctx, or nil when the
// caller is running outside a transaction.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(TxKey).(pgx.Tx)
	return tx
}

// TxRunner executes fn inside a single database transaction. The claim
// engine uses it so that a state transition, its recomputed values and the
// audit entry commit or roll back as one unit.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// NewTxRunner returns a TxRunner backed by the given pool. The transaction
// is injected into the context passed to fn; nested calls reuse the
// transaction already present instead of opening a second one.
func NewTxRunner(pool *pgxpool.Pool) TxRunner {
	return func(ctx context.Context, fn func(ctx context.Context) error) error {
		if TxFromContext(ctx) != nil {
			return fn(ctx)
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := fn(context.WithValue(ctx, TxKey, tx)); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		return nil
	}
}

// PassthroughTxRunner runs fn without any transaction. Used by tests that
// exercise service logic against in-memory repositories.
func PassthroughTxRunner() TxRunner {
	return func(ctx context.Context, fn func(ctx context.Context) error) error {
		return fn(ctx)
	}
}
