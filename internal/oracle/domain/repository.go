package oracle

import (
	"context"

	"energy-subsidy/internal/identity"
)

// Repository persists admitted reports, the signer set, registered
// capacities, and the oracle status scalars. This component owns all of
// them exclusively.
type Repository interface {
	FindReport(ctx context.Context, installationID, periodHeight uint64) (*EnergyReport, error)
	SaveReport(ctx context.Context, report *EnergyReport) error

	Capacity(ctx context.Context, installationID uint64) (capacityKw uint64, registered bool, err error)
	SaveCapacity(ctx context.Context, installationID, capacityKw uint64) error

	IsSigner(ctx context.Context, addr identity.Address) (bool, error)
	AddSigner(ctx context.Context, addr identity.Address) error
	RemoveSigner(ctx context.Context, addr identity.Address) error

	LoadStatus(ctx context.Context) (*Status, error)
	SaveStatus(ctx context.Context, status *Status) error
}
