package pool

import "errors"

var (
	// ErrInvalidAmount is returned for zero or out-of-range amounts.
	ErrInvalidAmount = errors.New("pool: invalid amount")
	// ErrFrozen is returned when a value-moving operation hits a frozen pool.
	ErrFrozen = errors.New("pool: frozen")
	// ErrAlreadyFrozen is returned when freezing an already frozen pool.
	ErrAlreadyFrozen = errors.New("pool: already frozen")
	// ErrNotFrozen is returned when unfreezing a pool that is not frozen.
	ErrNotFrozen = errors.New("pool: not frozen")
	// ErrDepositorNotFound is returned when a depositor has no record.
	ErrDepositorNotFound = errors.New("pool: depositor not found")
	// ErrCapacityExceeded is returned when an amount exceeds the withdrawal
	// cap or the available balance.
	ErrCapacityExceeded = errors.New("pool: capacity exceeded")
	// ErrSelfTransfer is returned when a governance withdrawal targets the
	// pool's own custody address.
	ErrSelfTransfer = errors.New("pool: transfer to self")
	// ErrNilAggregate is returned when saving a nil aggregate.
	ErrNilAggregate = errors.New("pool: nil aggregate")
	// ErrConservation is returned when a mutation would break the balance
	// conservation invariant.
	ErrConservation = errors.New("pool: conservation violated")
)
