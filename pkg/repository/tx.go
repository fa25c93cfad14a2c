package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Commit-deferred side effects. Index writes and cache invalidations are
// never issued inline with the relational work that produced them: they are
// buffered on the enclosing transaction and flushed only after a durable
// commit. A rolled-back transaction discards its buffer, so the index and
// cache never see writes the database threw away.

type txContextKey struct{}

// Tx is one open transaction plus its outbox of deferred actions
type Tx struct {
	sqlTx *sql.Tx

	mu    sync.Mutex
	hooks []func(ctx context.Context) error
}

// OnCommit registers a hook to run after the outermost transaction commits.
// Hooks run in registration order; a nested transaction's hooks attach to
// the outermost commit. Called outside any transaction, the hook runs
// immediately.
func OnCommit(ctx context.Context, hook func(ctx context.Context) error) {
	tx, ok := TxFromContext(ctx)
	if !ok {
		runHook(ctx, hook)
		return
	}

	tx.mu.Lock()
	tx.hooks = append(tx.hooks, hook)
	tx.mu.Unlock()
}

// TxFromContext returns the transaction the context is scoped to, if any
func TxFromContext(ctx context.Context) (*Tx, bool) {
	tx, ok := ctx.Value(txContextKey{}).(*Tx)
	return tx, ok
}

// Querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
// Repositories run their statements through it so the same code works
// inside and outside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// QuerierFromContext resolves the transaction-scoped querier, falling back
// to the bare connection pool outside a transaction.
func QuerierFromContext(ctx context.Context, db *sql.DB) Querier {
	if tx, ok := TxFromContext(ctx); ok {
		return tx.sqlTx
	}
	return db
}

// RunInTx runs fn inside a transaction. A nested call joins the enclosing
// transaction instead of opening a new one, so deferred hooks accumulate on
// the outermost commit. After commit the hooks run in registration order;
// their failures are logged, not propagated - the relational write already
// committed and the index/cache are only eventually consistent with it.
func RunInTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context) error) error {
	if _, ok := TxFromContext(ctx); ok {
		return fn(ctx)
	}

	sqlTx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	tx := &Tx{sqlTx: sqlTx}
	txCtx := context.WithValue(ctx, txContextKey{}, tx)

	if err := fn(txCtx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			log.Error().Err(rbErr).Msg("failed to roll back transaction")
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	for _, hook := range tx.hooks {
		runHook(ctx, hook)
	}
	return nil
}

func runHook(ctx context.Context, hook func(ctx context.Context) error) {
	if err := hook(ctx); err != nil {
		log.Error().Err(err).Msg("deferred post-commit action failed")
	}
}
