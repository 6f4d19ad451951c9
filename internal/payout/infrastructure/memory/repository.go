package memory

import (
	"context"
	"sync"

	payout "energy-subsidy/internal/payout/domain"
)

type claimKey struct {
	installationID uint64
	periodHeight   uint64
}

// Repository is an in-memory payout store for tests and single-node runs.
type Repository struct {
	mu            sync.RWMutex
	installations map[uint64]*payout.Installation
	samples       map[uint64][]payout.OutputSample
	claims        map[claimKey]*payout.ClaimRecord
	ledger        payout.Ledger
}

// NewRepository constructs an empty repository.
func NewRepository() *Repository {
	return &Repository{
		installations: make(map[uint64]*payout.Installation),
		samples:       make(map[uint64][]payout.OutputSample),
		claims:        make(map[claimKey]*payout.ClaimRecord),
	}
}

// FindInstallation returns an installation, or nil.
func (r *Repository) FindInstallation(ctx context.Context, id uint64) (*payout.Installation, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.installations[id].Clone(), nil
}

// SaveInstallation upserts an installation.
func (r *Repository) SaveInstallation(ctx context.Context, installation *payout.Installation) error {
	_ = ctx
	if installation == nil {
		return payout.ErrNilInstallation
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.installations[installation.ID] = installation.Clone()
	return nil
}

// LatestSampleAtOrBefore returns the newest sample of an installation at or
// before the given height, or nil. Samples are appended in height order, so
// the scan walks backwards from the tail.
func (r *Repository) LatestSampleAtOrBefore(ctx context.Context, installationID, height uint64) (*payout.OutputSample, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	series := r.samples[installationID]
	for i := len(series) - 1; i >= 0; i-- {
		if series[i].Height <= height {
			sample := series[i]
			return &sample, nil
		}
	}
	return nil, nil
}

// SaveSample appends one point to an installation's output series.
func (r *Repository) SaveSample(ctx context.Context, sample *payout.OutputSample) error {
	_ = ctx
	if sample == nil {
		return payout.ErrNilInstallation
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	series := r.samples[sample.InstallationID]
	// Two admitted reports at the same height collapse into the newer
	// cumulative value.
	if n := len(series); n > 0 && series[n-1].Height == sample.Height {
		series[n-1] = *sample
	} else {
		series = append(series, *sample)
	}
	r.samples[sample.InstallationID] = series
	return nil
}

// FindClaim returns the claim record for one period, or nil.
func (r *Repository) FindClaim(ctx context.Context, installationID, periodHeight uint64) (*payout.ClaimRecord, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	record := r.claims[claimKey{installationID, periodHeight}]
	if record == nil {
		return nil, nil
	}
	copy := *record
	return &copy, nil
}

// SaveClaim stores a claim record. Existing records are immutable.
func (r *Repository) SaveClaim(ctx context.Context, record *payout.ClaimRecord) error {
	_ = ctx
	if record == nil {
		return payout.ErrNilInstallation
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := claimKey{record.InstallationID, record.PeriodHeight}
	if _, exists := r.claims[key]; exists {
		return payout.ErrAlreadyClaimed
	}
	copy := *record
	r.claims[key] = &copy
	return nil
}

// LoadLedger returns a copy of the payout scalars.
func (r *Repository) LoadLedger(ctx context.Context) (*payout.Ledger, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	ledger := r.ledger
	return &ledger, nil
}

// SaveLedger replaces the payout scalars.
func (r *Repository) SaveLedger(ctx context.Context, ledger *payout.Ledger) error {
	_ = ctx
	if ledger == nil {
		return payout.ErrNilInstallation
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ledger = *ledger
	return nil
}
