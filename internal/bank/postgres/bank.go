package postgres

import (
	"context"
	"database/sql"
	"errors"

	"energy-subsidy/internal/bank"
	"energy-subsidy/internal/identity"
	storagepg "energy-subsidy/internal/storage/postgres"
)

// Bank keeps account balances in the accounts table. Transfers join the
// enclosing operation transaction, so a failed settlement rolls the debit
// and credit back together with every other write of the operation.
type Bank struct {
	db *sql.DB
}

// NewBank constructs a postgres-backed bank.
func NewBank(db *sql.DB) *Bank {
	if db == nil {
		return nil
	}
	return &Bank{db: db}
}

// Transfer moves amount between accounts.
func (b *Bank) Transfer(ctx context.Context, from, to identity.Address, amount uint64) error {
	if b == nil || b.db == nil {
		return errors.New("bank: nil db")
	}
	if amount == 0 || from.IsZero() || to.IsZero() || from == to {
		return bank.ErrInvalidTransfer
	}

	q := storagepg.From(ctx, b.db)
	result, err := q.ExecContext(ctx, `
UPDATE accounts SET balance = balance - $1
WHERE address = $2 AND balance >= $1`, amount, from.String())
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return bank.ErrInsufficientFunds
	}

	_, err = q.ExecContext(ctx, `
INSERT INTO accounts (address, balance) VALUES ($1, $2)
ON CONFLICT (address) DO UPDATE SET balance = accounts.balance + EXCLUDED.balance`,
		to.String(), amount)
	return err
}

// Balance returns an account balance.
func (b *Bank) Balance(ctx context.Context, addr identity.Address) (uint64, error) {
	if b == nil || b.db == nil {
		return 0, errors.New("bank: nil db")
	}
	var balance uint64
	row := storagepg.From(ctx, b.db).QueryRowContext(ctx,
		`SELECT balance FROM accounts WHERE address = $1`, addr.String())
	if err := row.Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return balance, nil
}
