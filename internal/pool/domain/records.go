package pool

import "energy-subsidy/internal/identity"

// DepositRecord tracks a depositor's current principal in the pool. Records
// are never deleted; the amount may reach zero.
type DepositRecord struct {
	Depositor            identity.Address
	Amount               uint64
	DepositedAtHeight    uint64
	LastWithdrawalHeight uint64
}

// WithdrawalRecord accumulates a depositor's lifetime withdrawals.
type WithdrawalRecord struct {
	Depositor            identity.Address
	TotalWithdrawn       uint64
	LastWithdrawalHeight uint64
}
