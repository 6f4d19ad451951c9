package bank

import (
	"context"
	"errors"
	"sync"

	"energy-subsidy/internal/identity"
)

var (
	// ErrInsufficientFunds is returned when the source account cannot cover
	// the transfer.
	ErrInsufficientFunds = errors.New("bank: insufficient funds")
	// ErrInvalidTransfer is returned for zero amounts or empty addresses.
	ErrInvalidTransfer = errors.New("bank: invalid transfer")
)

// Transferer is the currency-transfer primitive. Transfers are atomic with
// the caller's unit-of-work scope: a transfer performed inside an operation
// that later fails must not survive it.
type Transferer interface {
	Transfer(ctx context.Context, from, to identity.Address, amount uint64) error
}

// MemoryBank holds balances in process. Used by tests and single-node
// deployments without a database.
type MemoryBank struct {
	mu       sync.Mutex
	balances map[identity.Address]uint64
}

// NewMemoryBank constructs an empty bank.
func NewMemoryBank() *MemoryBank {
	return &MemoryBank{balances: make(map[identity.Address]uint64)}
}

// Mint credits an account out of thin air. Test and genesis seeding only.
func (b *MemoryBank) Mint(addr identity.Address, amount uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[addr] += amount
}

// Balance returns an account balance.
func (b *MemoryBank) Balance(addr identity.Address) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[addr]
}

// Transfer moves amount between accounts.
func (b *MemoryBank) Transfer(ctx context.Context, from, to identity.Address, amount uint64) error {
	_ = ctx
	if amount == 0 || from.IsZero() || to.IsZero() || from == to {
		return ErrInvalidTransfer
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.balances[from] < amount {
		return ErrInsufficientFunds
	}
	b.balances[from] -= amount
	b.balances[to] += amount
	return nil
}
