package pool

import (
	"context"

	"energy-subsidy/internal/identity"
)

// Repository persists the pool aggregate and the per-depositor records.
type Repository interface {
	LoadPool(ctx context.Context) (*Pool, error)
	SavePool(ctx context.Context, p *Pool) error

	FindDeposit(ctx context.Context, depositor identity.Address) (*DepositRecord, error)
	SaveDeposit(ctx context.Context, record *DepositRecord) error

	FindWithdrawal(ctx context.Context, depositor identity.Address) (*WithdrawalRecord, error)
	SaveWithdrawal(ctx context.Context, record *WithdrawalRecord) error
}
