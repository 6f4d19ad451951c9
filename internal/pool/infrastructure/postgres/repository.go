package postgres

import (
	"context"
	"database/sql"
	"errors"

	"energy-subsidy/internal/identity"
	pool "energy-subsidy/internal/pool/domain"
	storagepg "energy-subsidy/internal/storage/postgres"
)

// Repository persists the pool aggregate and per-depositor records. The
// pool_state table holds exactly one row with id 1.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a postgres-backed pool repository.
func NewRepository(db *sql.DB) *Repository {
	if db == nil {
		return nil
	}
	return &Repository{db: db}
}

// LoadPool loads the singleton pool aggregate, creating the genesis row on
// first use.
func (r *Repository) LoadPool(ctx context.Context) (*pool.Pool, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("pool repo: nil db")
	}
	row := storagepg.From(ctx, r.db).QueryRowContext(ctx, `
SELECT balance, total_deposited, total_withdrawn, total_paid_out,
	frozen_manual, emergency_set, emergency_freeze_height
FROM pool_state WHERE id = 1`)

	var (
		balance, deposited, withdrawn, paidOut, emergencyHeight uint64
		frozenManual, emergencySet                              bool
	)
	err := row.Scan(&balance, &deposited, &withdrawn, &paidOut,
		&frozenManual, &emergencySet, &emergencyHeight)
	if errors.Is(err, sql.ErrNoRows) {
		return pool.NewPool(), nil
	}
	if err != nil {
		return nil, err
	}
	return pool.Restore(balance, deposited, withdrawn, paidOut,
		frozenManual, emergencySet, emergencyHeight)
}

// SavePool upserts the singleton pool aggregate.
func (r *Repository) SavePool(ctx context.Context, p *pool.Pool) error {
	if r == nil || r.db == nil {
		return errors.New("pool repo: nil db")
	}
	if p == nil {
		return pool.ErrNilAggregate
	}
	emergencySet, emergencyHeight := p.EmergencyFreeze()
	_, err := storagepg.From(ctx, r.db).ExecContext(ctx, `
INSERT INTO pool_state (
	id, balance, total_deposited, total_withdrawn, total_paid_out,
	frozen_manual, emergency_set, emergency_freeze_height
) VALUES (1, $1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
	balance = EXCLUDED.balance,
	total_deposited = EXCLUDED.total_deposited,
	total_withdrawn = EXCLUDED.total_withdrawn,
	total_paid_out = EXCLUDED.total_paid_out,
	frozen_manual = EXCLUDED.frozen_manual,
	emergency_set = EXCLUDED.emergency_set,
	emergency_freeze_height = EXCLUDED.emergency_freeze_height`,
		p.Balance(), p.TotalDeposited(), p.TotalWithdrawn(), p.TotalPaidOut(),
		p.FrozenManual(), emergencySet, emergencyHeight)
	return err
}

// FindDeposit loads a depositor's record, or nil.
func (r *Repository) FindDeposit(ctx context.Context, depositor identity.Address) (*pool.DepositRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("pool repo: nil db")
	}
	row := storagepg.From(ctx, r.db).QueryRowContext(ctx, `
SELECT depositor, amount, deposited_at_height, last_withdrawal_height
FROM pool_deposits WHERE depositor = $1`, depositor.String())

	var record pool.DepositRecord
	var addr string
	err := row.Scan(&addr, &record.Amount, &record.DepositedAtHeight, &record.LastWithdrawalHeight)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	record.Depositor, err = identity.Parse(addr)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// SaveDeposit upserts a depositor's record.
func (r *Repository) SaveDeposit(ctx context.Context, record *pool.DepositRecord) error {
	if r == nil || r.db == nil {
		return errors.New("pool repo: nil db")
	}
	if record == nil {
		return pool.ErrNilAggregate
	}
	_, err := storagepg.From(ctx, r.db).ExecContext(ctx, `
INSERT INTO pool_deposits (depositor, amount, deposited_at_height, last_withdrawal_height)
VALUES ($1, $2, $3, $4)
ON CONFLICT (depositor) DO UPDATE SET
	amount = EXCLUDED.amount,
	last_withdrawal_height = EXCLUDED.last_withdrawal_height`,
		record.Depositor.String(), record.Amount, record.DepositedAtHeight, record.LastWithdrawalHeight)
	return err
}

// FindWithdrawal loads a depositor's withdrawal record, or nil.
func (r *Repository) FindWithdrawal(ctx context.Context, depositor identity.Address) (*pool.WithdrawalRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("pool repo: nil db")
	}
	row := storagepg.From(ctx, r.db).QueryRowContext(ctx, `
SELECT depositor, total_withdrawn, last_withdrawal_height
FROM pool_withdrawals WHERE depositor = $1`, depositor.String())

	var record pool.WithdrawalRecord
	var addr string
	err := row.Scan(&addr, &record.TotalWithdrawn, &record.LastWithdrawalHeight)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	record.Depositor, err = identity.Parse(addr)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// SaveWithdrawal upserts a depositor's withdrawal record.
func (r *Repository) SaveWithdrawal(ctx context.Context, record *pool.WithdrawalRecord) error {
	if r == nil || r.db == nil {
		return errors.New("pool repo: nil db")
	}
	if record == nil {
		return pool.ErrNilAggregate
	}
	_, err := storagepg.From(ctx, r.db).ExecContext(ctx, `
INSERT INTO pool_withdrawals (depositor, total_withdrawn, last_withdrawal_height)
VALUES ($1, $2, $3)
ON CONFLICT (depositor) DO UPDATE SET
	total_withdrawn = EXCLUDED.total_withdrawn,
	last_withdrawal_height = EXCLUDED.last_withdrawal_height`,
		record.Depositor.String(), record.TotalWithdrawn, record.LastWithdrawalHeight)
	return err
}
