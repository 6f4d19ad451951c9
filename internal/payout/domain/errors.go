package payout

import "errors"

var (
	// ErrInstallationNotFound is returned for an unknown installation id.
	ErrInstallationNotFound = errors.New("payout: installation not found")
	// ErrNotOwner is returned when the claimant does not own the installation.
	ErrNotOwner = errors.New("payout: caller is not the installation owner")
	// ErrInsufficientOutput is returned when no unclaimed output exists.
	ErrInsufficientOutput = errors.New("payout: insufficient unclaimed output")
	// ErrAlreadyClaimed is returned when a claim record already exists for
	// the sample period.
	ErrAlreadyClaimed = errors.New("payout: period already claimed")
	// ErrRateNotSet is returned when claiming before the subsidy rate is
	// configured.
	ErrRateNotSet = errors.New("payout: subsidy rate not set")
	// ErrInvalidRate is returned when setting a zero rate. A zero rate would
	// turn every claim into a zero-but-successful payout and mask the real
	// misconfiguration.
	ErrInvalidRate = errors.New("payout: invalid rate")
	// ErrPoolExhausted is returned when the computed payout exceeds the
	// pool's available balance.
	ErrPoolExhausted = errors.New("payout: payout exceeds pool balance")
	// ErrOverflow is returned when a payout computation overflows.
	ErrOverflow = errors.New("payout: amount overflow")
	// ErrNilInstallation is returned when saving a nil installation.
	ErrNilInstallation = errors.New("payout: nil installation")
	// ErrInvalidCapacity is returned when registering a zero-capacity
	// installation.
	ErrInvalidCapacity = errors.New("payout: invalid capacity")
	// ErrAmountMismatch is returned when a pool-initiated settlement names an
	// amount that differs from the computed payout.
	ErrAmountMismatch = errors.New("payout: amount mismatch")
)
