package postgres

import (
	"context"
	"database/sql"
	"errors"
	"sync"
)

type contextKey string

const contextKeyTx contextKey = "storage.tx"

// Querier is the subset of database/sql used by repositories. Both *sql.DB
// and *sql.Tx satisfy it, so a repository transparently joins the enclosing
// operation's transaction when one is present in the context.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// From resolves the querier for ctx: the operation transaction when inside a
// unit of work, otherwise the bare handle (read-only queries).
func From(ctx context.Context, db *sql.DB) Querier {
	if tx, ok := ctx.Value(contextKeyTx).(*sql.Tx); ok && tx != nil {
		return tx
	}
	return db
}

// UnitOfWork runs each settlement operation in one serialized database
// transaction. The mutex provides the single-writer model for the in-process
// core; the transaction makes every repository write of the operation,
// including the bank transfer, commit or roll back together.
type UnitOfWork struct {
	db *sql.DB
	mu sync.Mutex
}

// NewUnitOfWork constructs a postgres unit of work.
func NewUnitOfWork(db *sql.DB) (*UnitOfWork, error) {
	if db == nil {
		return nil, errors.New("storage: nil db")
	}
	return &UnitOfWork{db: db}, nil
}

// Within begins a transaction, runs fn with the transaction in context, and
// commits only when fn succeeds.
func (u *UnitOfWork) Within(ctx context.Context, fn func(ctx context.Context) error) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(context.WithValue(ctx, contextKeyTx, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
