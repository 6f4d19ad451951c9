package oracle

import (
	"math"

	"energy-subsidy/internal/identity"
)

const (
	// ReportWindowBlocks is the trailing admission window in height units.
	ReportWindowBlocks = 144
	// MaxKwhPerKwPerHour bounds plausible output per kW of capacity per
	// elapsed height unit. It guards against gross sensor or oracle error,
	// not legitimate variance.
	MaxKwhPerKwPerHour = 6
	// MicroUnitsPerKwh is the micro-unit scale of reported measurements.
	MicroUnitsPerKwh = 1_000_000
)

// EnergyReport is an admitted measurement for one (installation, period)
// key. Reports are immutable once admitted.
type EnergyReport struct {
	InstallationID   uint64
	PeriodHeight     uint64
	MicroUnits       uint64
	KwhProduced      uint64
	ReportedAtHeight uint64
	Reporter         identity.Address
	Signature        []byte
	Verified         bool
}

// Status carries the oracle's scalar state.
type Status struct {
	Paused          bool
	TotalReports    uint64
	LastReportBlock uint64
}

// WithinWindow reports whether a target period is inside the trailing
// admission window at the current height. The current height itself is
// rejected as not yet final; anything older than the window is stale.
func WithinWindow(currentHeight, targetPeriodHeight uint64) bool {
	if targetPeriodHeight >= currentHeight {
		return false
	}
	return currentHeight-targetPeriodHeight <= ReportWindowBlocks
}

// PlausibilityCeiling computes the maximum admissible micro-units for a
// period, derived from declared capacity and elapsed height units.
func PlausibilityCeiling(capacityKw, currentHeight, targetPeriodHeight uint64) uint64 {
	if targetPeriodHeight >= currentHeight {
		return 0
	}
	hours := currentHeight - targetPeriodHeight
	perHour := uint64(MaxKwhPerKwPerHour) * MicroUnitsPerKwh
	if capacityKw != 0 && perHour > math.MaxUint64/capacityKw {
		return math.MaxUint64
	}
	perHour *= capacityKw
	if perHour != 0 && hours > math.MaxUint64/perHour {
		return math.MaxUint64
	}
	return perHour * hours
}

// KwhFromMicroUnits converts micro-units to whole kWh, truncating toward
// zero. Sub-unit remainders are dropped permanently; this precision loss is
// intentional and downstream idempotence depends on the truncated value.
func KwhFromMicroUnits(microUnits uint64) uint64 {
	return microUnits / MicroUnitsPerKwh
}
