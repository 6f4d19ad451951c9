package memory

import (
	"context"
	"sync"

	"energy-subsidy/internal/identity"
	oracle "energy-subsidy/internal/oracle/domain"
)

type reportKey struct {
	installationID uint64
	periodHeight   uint64
}

// Repository is an in-memory oracle store for tests and single-node runs.
type Repository struct {
	mu         sync.RWMutex
	reports    map[reportKey]*oracle.EnergyReport
	capacities map[uint64]uint64
	signers    map[identity.Address]struct{}
	status     oracle.Status
}

// NewRepository constructs an empty repository.
func NewRepository() *Repository {
	return &Repository{
		reports:    make(map[reportKey]*oracle.EnergyReport),
		capacities: make(map[uint64]uint64),
		signers:    make(map[identity.Address]struct{}),
	}
}

// FindReport returns an admitted report, or nil.
func (r *Repository) FindReport(ctx context.Context, installationID, periodHeight uint64) (*oracle.EnergyReport, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	report := r.reports[reportKey{installationID, periodHeight}]
	if report == nil {
		return nil, nil
	}
	return cloneReport(report), nil
}

// SaveReport stores an admitted report.
func (r *Repository) SaveReport(ctx context.Context, report *oracle.EnergyReport) error {
	_ = ctx
	if report == nil {
		return oracle.ErrNilReport
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports[reportKey{report.InstallationID, report.PeriodHeight}] = cloneReport(report)
	return nil
}

// Capacity returns the registered capacity of an installation.
func (r *Repository) Capacity(ctx context.Context, installationID uint64) (uint64, bool, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	capacityKw, ok := r.capacities[installationID]
	return capacityKw, ok, nil
}

// SaveCapacity registers or updates an installation's capacity.
func (r *Repository) SaveCapacity(ctx context.Context, installationID, capacityKw uint64) error {
	_ = ctx
	if capacityKw == 0 {
		return oracle.ErrInvalidCapacity
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capacities[installationID] = capacityKw
	return nil
}

// IsSigner reports signer-set membership.
func (r *Repository) IsSigner(ctx context.Context, addr identity.Address) (bool, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.signers[addr]
	return ok, nil
}

// AddSigner admits an address to the signer set.
func (r *Repository) AddSigner(ctx context.Context, addr identity.Address) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signers[addr] = struct{}{}
	return nil
}

// RemoveSigner removes an address from the signer set.
func (r *Repository) RemoveSigner(ctx context.Context, addr identity.Address) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.signers, addr)
	return nil
}

// LoadStatus returns a copy of the oracle scalars.
func (r *Repository) LoadStatus(ctx context.Context) (*oracle.Status, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	status := r.status
	return &status, nil
}

// SaveStatus replaces the oracle scalars.
func (r *Repository) SaveStatus(ctx context.Context, status *oracle.Status) error {
	_ = ctx
	if status == nil {
		return oracle.ErrNilReport
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = *status
	return nil
}

func cloneReport(report *oracle.EnergyReport) *oracle.EnergyReport {
	copy := *report
	copy.Signature = append([]byte(nil), report.Signature...)
	return &copy
}
