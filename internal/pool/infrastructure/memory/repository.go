package memory

import (
	"context"
	"sync"

	"energy-subsidy/internal/identity"
	pool "energy-subsidy/internal/pool/domain"
)

// Repository is an in-memory pool store for tests and single-node runs.
type Repository struct {
	mu          sync.RWMutex
	pool        *pool.Pool
	deposits    map[identity.Address]*pool.DepositRecord
	withdrawals map[identity.Address]*pool.WithdrawalRecord
}

// NewRepository constructs a repository holding an empty pool.
func NewRepository() *Repository {
	return &Repository{
		pool:        pool.NewPool(),
		deposits:    make(map[identity.Address]*pool.DepositRecord),
		withdrawals: make(map[identity.Address]*pool.WithdrawalRecord),
	}
}

// LoadPool returns a detached copy of the pool aggregate.
func (r *Repository) LoadPool(ctx context.Context) (*pool.Pool, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pool.Clone(), nil
}

// SavePool replaces the pool aggregate.
func (r *Repository) SavePool(ctx context.Context, p *pool.Pool) error {
	_ = ctx
	if p == nil {
		return pool.ErrNilAggregate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pool = p.Clone()
	return nil
}

// FindDeposit returns the deposit record of one depositor, or nil.
func (r *Repository) FindDeposit(ctx context.Context, depositor identity.Address) (*pool.DepositRecord, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	record := r.deposits[depositor]
	if record == nil {
		return nil, nil
	}
	copy := *record
	return &copy, nil
}

// SaveDeposit upserts a deposit record.
func (r *Repository) SaveDeposit(ctx context.Context, record *pool.DepositRecord) error {
	_ = ctx
	if record == nil {
		return pool.ErrNilAggregate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	copy := *record
	r.deposits[record.Depositor] = &copy
	return nil
}

// FindWithdrawal returns the withdrawal record of one depositor, or nil.
func (r *Repository) FindWithdrawal(ctx context.Context, depositor identity.Address) (*pool.WithdrawalRecord, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	record := r.withdrawals[depositor]
	if record == nil {
		return nil, nil
	}
	copy := *record
	return &copy, nil
}

// SaveWithdrawal upserts a withdrawal record.
func (r *Repository) SaveWithdrawal(ctx context.Context, record *pool.WithdrawalRecord) error {
	_ = ctx
	if record == nil {
		return pool.ErrNilAggregate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	copy := *record
	r.withdrawals[record.Depositor] = &copy
	return nil
}
