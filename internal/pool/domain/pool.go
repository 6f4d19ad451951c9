package pool

import "math"

const (
	// EmergencyPauseBlocks is the height window an emergency freeze covers.
	EmergencyPauseBlocks = 1440
	// MaxWithdrawPercent caps single-transaction drainage against the
	// current balance.
	MaxWithdrawPercent = 50
)

// Pool is the singleton fund pool aggregate. All amounts are in
// currency micro-units. Invariant after every mutation:
// balance == totalDeposited - totalWithdrawn - totalPaidOut.
type Pool struct {
	balance        uint64
	totalDeposited uint64
	totalWithdrawn uint64
	totalPaidOut   uint64

	frozenManual          bool
	emergencySet          bool
	emergencyFreezeHeight uint64
}

// NewPool creates the genesis pool with zero balances.
func NewPool() *Pool {
	return &Pool{}
}

// Restore rebuilds a pool aggregate from persisted state.
func Restore(balance, deposited, withdrawn, paidOut uint64, frozenManual, emergencySet bool, emergencyHeight uint64) (*Pool, error) {
	p := &Pool{
		balance:               balance,
		totalDeposited:        deposited,
		totalWithdrawn:        withdrawn,
		totalPaidOut:          paidOut,
		frozenManual:          frozenManual,
		emergencySet:          emergencySet,
		emergencyFreezeHeight: emergencyHeight,
	}
	if !p.conserved() {
		return nil, ErrConservation
	}
	return p, nil
}

// Balance returns the current pool balance.
func (p *Pool) Balance() uint64 { return p.balance }

// TotalDeposited returns the lifetime deposit total.
func (p *Pool) TotalDeposited() uint64 { return p.totalDeposited }

// TotalWithdrawn returns the lifetime withdrawal total.
func (p *Pool) TotalWithdrawn() uint64 { return p.totalWithdrawn }

// TotalPaidOut returns the lifetime subsidy payout total.
func (p *Pool) TotalPaidOut() uint64 { return p.totalPaidOut }

// FrozenManual reports the manual freeze flag.
func (p *Pool) FrozenManual() bool { return p.frozenManual }

// EmergencyFreeze returns the emergency freeze marker.
func (p *Pool) EmergencyFreeze() (set bool, height uint64) {
	return p.emergencySet, p.emergencyFreezeHeight
}

// Frozen evaluates the freeze predicate at the given height. An emergency
// freeze holds only inside its pause window and only while the pool still
// has a positive balance; at exactly zero balance it lifts immediately.
func (p *Pool) Frozen(height uint64) bool {
	if p.frozenManual {
		return true
	}
	return p.emergencySet &&
		height <= p.emergencyFreezeHeight+EmergencyPauseBlocks &&
		p.balance > 0
}

// CanWithdraw is the withdrawal-capacity predicate, evaluated against the
// current balance: within the per-transaction cap, covered by the balance,
// and not frozen.
func (p *Pool) CanWithdraw(amount, height uint64) bool {
	if p.Frozen(height) {
		return false
	}
	return amount <= p.balance && amount <= p.balance/100*MaxWithdrawPercent+(p.balance%100)*MaxWithdrawPercent/100
}

// ApplyDeposit credits the pool.
func (p *Pool) ApplyDeposit(amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	if amount > math.MaxUint64-p.totalDeposited || amount > math.MaxUint64-p.balance {
		return ErrInvalidAmount
	}
	p.balance += amount
	p.totalDeposited += amount
	return nil
}

// ApplyWithdrawal debits a deposit withdrawal.
func (p *Pool) ApplyWithdrawal(amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	if amount > p.balance {
		return ErrCapacityExceeded
	}
	p.balance -= amount
	p.totalWithdrawn += amount
	return nil
}

// ApplyPayout debits a subsidy settlement.
func (p *Pool) ApplyPayout(amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	if amount > p.balance {
		return ErrCapacityExceeded
	}
	p.balance -= amount
	p.totalPaidOut += amount
	return nil
}

// SetManualFreeze raises the manual freeze flag.
func (p *Pool) SetManualFreeze(height uint64) error {
	if p.Frozen(height) {
		return ErrAlreadyFrozen
	}
	p.frozenManual = true
	return nil
}

// SetEmergencyFreeze marks an emergency freeze at the given height. Freezes
// do not stack.
func (p *Pool) SetEmergencyFreeze(height uint64) error {
	if p.Frozen(height) {
		return ErrAlreadyFrozen
	}
	p.emergencySet = true
	p.emergencyFreezeHeight = height
	return nil
}

// Unfreeze clears both freeze markers.
func (p *Pool) Unfreeze(height uint64) error {
	if !p.Frozen(height) && !p.frozenManual && !p.emergencySet {
		return ErrNotFrozen
	}
	p.frozenManual = false
	p.emergencySet = false
	p.emergencyFreezeHeight = 0
	return nil
}

// Clone returns a detached copy.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	copy := *p
	return &copy
}

func (p *Pool) conserved() bool {
	return p.balance == p.totalDeposited-p.totalWithdrawn-p.totalPaidOut
}
