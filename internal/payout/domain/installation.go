package payout

import (
	"math"

	"energy-subsidy/internal/identity"
)

// Installation is a registered producer whose measured output is paid for
// at most once.
type Installation struct {
	ID                  uint64
	Owner               identity.Address
	CapacityKw          uint64
	LastClaimedOutput   uint64 // cumulative kWh already paid for
	TotalMeasuredOutput uint64 // head of the cumulative output series
	Verified            bool
	RegisteredAtHeight  uint64
}

// OutputSample is one point of the cumulative measured-output series.
type OutputSample struct {
	InstallationID uint64
	Height         uint64
	CumulativeKwh  uint64
}

// ClaimRecord marks a settled claim for (installation, sample period).
// Set exactly once, never cleared.
type ClaimRecord struct {
	InstallationID  uint64
	PeriodHeight    uint64
	AmountPaid      uint64
	OutputDelta     uint64
	Recipient       identity.Address
	ClaimedAtHeight uint64
}

// Ledger carries the payout engine's scalar state.
type Ledger struct {
	// RatePerKwh is the subsidy in currency micro-units per kWh.
	RatePerKwh uint64
	// TotalSubsidizedOutput is the cumulative kWh ever paid for.
	TotalSubsidizedOutput uint64
	// PoolBalance is the pool's last notified balance, kept for capacity
	// bookkeeping and queries.
	PoolBalance uint64
}

// ClaimableDelta returns the unclaimed portion of a cumulative sample.
func (i *Installation) ClaimableDelta(sample *OutputSample) uint64 {
	if sample == nil || sample.CumulativeKwh <= i.LastClaimedOutput {
		return 0
	}
	return sample.CumulativeKwh - i.LastClaimedOutput
}

// AccumulateOutput extends the cumulative series by a measured amount.
func (i *Installation) AccumulateOutput(kwh uint64) error {
	if kwh > math.MaxUint64-i.TotalMeasuredOutput {
		return ErrOverflow
	}
	i.TotalMeasuredOutput += kwh
	return nil
}

// PayoutAmount converts an output delta to currency micro-units.
func PayoutAmount(delta, ratePerKwh uint64) (uint64, error) {
	if ratePerKwh != 0 && delta > math.MaxUint64/ratePerKwh {
		return 0, ErrOverflow
	}
	return delta * ratePerKwh, nil
}

// Clone returns a detached copy.
func (i *Installation) Clone() *Installation {
	if i == nil {
		return nil
	}
	copy := *i
	return &copy
}
