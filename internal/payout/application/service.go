package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"energy-subsidy/internal/governance"
	"energy-subsidy/internal/identity"
	"energy-subsidy/internal/observability/metrics"
	payout "energy-subsidy/internal/payout/domain"
	"energy-subsidy/internal/storage"
)

// HeightSource supplies the current ledger height.
type HeightSource interface {
	Current() uint64
}

// PoolFunds is the payout ledger's view of the pool account. Settle debits
// the pool and delivers funds; it is called inside the claim's unit-of-work
// scope, so its failure voids the whole claim.
type PoolFunds interface {
	AvailableBalance(ctx context.Context) (uint64, error)
	Settle(ctx context.Context, amount uint64, recipient identity.Address) error
}

// InstallationRegistry allocates installation identifiers. Owned by the
// external registration collaborator.
type InstallationRegistry interface {
	NextInstallationID(ctx context.Context) (uint64, error)
}

// CapacityRegistrar propagates a registered capacity to the oracle's
// plausibility ceiling.
type CapacityRegistrar interface {
	RegisterCapacity(ctx context.Context, installationID, capacityKw uint64) error
}

// ClaimResult describes a settled claim.
type ClaimResult struct {
	InstallationID uint64           `json:"installation_id"`
	PeriodHeight   uint64           `json:"period_height"`
	OutputDelta    uint64           `json:"output_delta_kwh"`
	AmountPaid     uint64           `json:"amount_paid"`
	Recipient      identity.Address `json:"recipient"`
}

// Service is the payout ledger: it tracks per-installation cumulative
// output, converts unclaimed deltas to currency on claim, and guarantees no
// unit of measured output is ever paid for twice.
type Service struct {
	repo       payout.Repository
	pool       PoolFunds
	registry   InstallationRegistry
	capacities CapacityRegistrar
	gate       governance.Gate
	heights    HeightSource
	uow        storage.UnitOfWork
}

// NewService constructs the payout service. The capacity registrar is wired
// afterwards because the oracle service is built against this service's
// bridge.
func NewService(repo payout.Repository, pool PoolFunds, registry InstallationRegistry, gate governance.Gate, heights HeightSource, uow storage.UnitOfWork) (*Service, error) {
	if repo == nil {
		return nil, errors.New("payout service: nil repository")
	}
	if pool == nil {
		return nil, errors.New("payout service: nil pool funds")
	}
	if registry == nil {
		return nil, errors.New("payout service: nil installation registry")
	}
	if gate == nil {
		return nil, errors.New("payout service: nil governance gate")
	}
	if heights == nil {
		return nil, errors.New("payout service: nil height source")
	}
	if uow == nil {
		return nil, errors.New("payout service: nil unit of work")
	}
	return &Service{
		repo:     repo,
		pool:     pool,
		registry: registry,
		gate:     gate,
		heights:  heights,
		uow:      uow,
	}, nil
}

// SetCapacityRegistrar wires the oracle-side capacity registrar.
func (s *Service) SetCapacityRegistrar(registrar CapacityRegistrar) { s.capacities = registrar }

// SetRate sets the subsidy rate in micro-units per kWh. Admin only; zero is
// rejected rather than silently producing zero payouts.
func (s *Service) SetRate(ctx context.Context, ratePerKwh uint64) error {
	return s.uow.Within(ctx, func(ctx context.Context) error {
		if err := s.gate.RequireAdmin(ctx); err != nil {
			return err
		}
		if ratePerKwh == 0 {
			return payout.ErrInvalidRate
		}
		ledger, err := s.repo.LoadLedger(ctx)
		if err != nil {
			return err
		}
		ledger.RatePerKwh = ratePerKwh
		return s.repo.SaveLedger(ctx, ledger)
	})
}

// RegisterInstallation allocates the next installation id, records the
// installation for its owner, and propagates the capacity ceiling to the
// oracle.
func (s *Service) RegisterInstallation(ctx context.Context, owner identity.Address, capacityKw uint64) (*payout.Installation, error) {
	var installation *payout.Installation
	err := s.uow.Within(ctx, func(ctx context.Context) error {
		if owner.IsZero() {
			return identity.ErrInvalidAddress
		}
		if capacityKw == 0 {
			return payout.ErrInvalidCapacity
		}
		if s.capacities == nil {
			return errors.New("payout service: no capacity registrar wired")
		}

		id, err := s.registry.NextInstallationID(ctx)
		if err != nil {
			return fmt.Errorf("payout: allocate installation id: %w", err)
		}
		installation = &payout.Installation{
			ID:                 id,
			Owner:              owner,
			CapacityKw:         capacityKw,
			RegisteredAtHeight: s.heights.Current(),
		}
		if err := s.capacities.RegisterCapacity(ctx, id, capacityKw); err != nil {
			return fmt.Errorf("payout: register capacity: %w", err)
		}
		return s.repo.SaveInstallation(ctx, installation)
	})
	if err != nil {
		return nil, err
	}
	return installation, nil
}

// ClaimSubsidy settles the unclaimed output of an installation for its
// owner. The claim is atomic: either the transfer and all bookkeeping
// commit, or nothing does.
func (s *Service) ClaimSubsidy(ctx context.Context, caller identity.Address, installationID uint64) (*ClaimResult, error) {
	start := time.Now()
	var result *ClaimResult
	err := s.uow.Within(ctx, func(ctx context.Context) error {
		installation, err := s.repo.FindInstallation(ctx, installationID)
		if err != nil {
			return err
		}
		if installation == nil {
			return payout.ErrInstallationNotFound
		}
		if installation.Owner != caller {
			return payout.ErrNotOwner
		}
		result, err = s.settleClaim(ctx, installation, 0)
		return err
	})
	metrics.ObserveClaim(err, time.Since(start))
	if err != nil {
		return nil, err
	}
	return result, nil
}

// settleClaim runs claim validation and settlement for an installation. The
// caller has already been authorized. When expectedAmount is non-zero the
// computed payout must match it (transfer-to-payout path).
func (s *Service) settleClaim(ctx context.Context, installation *payout.Installation, expectedAmount uint64) (*ClaimResult, error) {
	height := s.heights.Current()
	if height == 0 {
		return nil, payout.ErrInsufficientOutput
	}

	// The current height's data is not yet final; claim against the newest
	// sample strictly before it.
	sample, err := s.repo.LatestSampleAtOrBefore(ctx, installation.ID, height-1)
	if err != nil {
		return nil, err
	}
	delta := installation.ClaimableDelta(sample)
	if delta == 0 {
		return nil, payout.ErrInsufficientOutput
	}

	existing, err := s.repo.FindClaim(ctx, installation.ID, sample.Height)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, payout.ErrAlreadyClaimed
	}

	ledger, err := s.repo.LoadLedger(ctx)
	if err != nil {
		return nil, err
	}
	if ledger.RatePerKwh == 0 {
		return nil, payout.ErrRateNotSet
	}

	amount, err := payout.PayoutAmount(delta, ledger.RatePerKwh)
	if err != nil {
		return nil, err
	}
	if expectedAmount != 0 && amount != expectedAmount {
		return nil, payout.ErrAmountMismatch
	}

	available, err := s.pool.AvailableBalance(ctx)
	if err != nil {
		return nil, err
	}
	if amount > available {
		return nil, payout.ErrPoolExhausted
	}

	if err := s.pool.Settle(ctx, amount, installation.Owner); err != nil {
		return nil, err
	}

	// Bookkeeping strictly after the successful transfer. Settle notified
	// the balance observer, so reload the ledger before mutating it.
	ledger, err = s.repo.LoadLedger(ctx)
	if err != nil {
		return nil, err
	}
	ledger.TotalSubsidizedOutput += delta
	if err := s.repo.SaveLedger(ctx, ledger); err != nil {
		return nil, err
	}

	record := &payout.ClaimRecord{
		InstallationID:  installation.ID,
		PeriodHeight:    sample.Height,
		AmountPaid:      amount,
		OutputDelta:     delta,
		Recipient:       installation.Owner,
		ClaimedAtHeight: height,
	}
	if err := s.repo.SaveClaim(ctx, record); err != nil {
		return nil, err
	}

	installation.LastClaimedOutput = sample.CumulativeKwh
	installation.Verified = true
	if err := s.repo.SaveInstallation(ctx, installation); err != nil {
		return nil, err
	}

	return &ClaimResult{
		InstallationID: installation.ID,
		PeriodHeight:   sample.Height,
		OutputDelta:    delta,
		AmountPaid:     amount,
		Recipient:      installation.Owner,
	}, nil
}

// Installation returns the read model of one installation.
func (s *Service) Installation(ctx context.Context, id uint64) (*payout.Installation, error) {
	installation, err := s.repo.FindInstallation(ctx, id)
	if err != nil {
		return nil, err
	}
	if installation == nil {
		return nil, payout.ErrInstallationNotFound
	}
	return installation, nil
}

// ClaimStatus reports whether a period has been settled for an installation.
func (s *Service) ClaimStatus(ctx context.Context, installationID, periodHeight uint64) (*payout.ClaimRecord, bool, error) {
	record, err := s.repo.FindClaim(ctx, installationID, periodHeight)
	if err != nil {
		return nil, false, err
	}
	return record, record != nil, nil
}

// LedgerStatus returns the payout scalars: rate, total subsidized output,
// and the last notified pool balance.
func (s *Service) LedgerStatus(ctx context.Context) (*payout.Ledger, error) {
	return s.repo.LoadLedger(ctx)
}

// Bridge returns the view of the payout ledger consumed by the oracle and
// pool services. Bridge methods run inside the caller's unit-of-work scope.
func (s *Service) Bridge() *Bridge {
	return &Bridge{service: s}
}

// Bridge exposes the payout ledger to its peer components.
type Bridge struct {
	service *Service
}

// SubmitOracleOutput extends the cumulative output series with an admitted
// measurement. Only the oracle component holds this capability; no other
// caller can reach it. Purely data admission, no payout side effect.
func (b *Bridge) SubmitOracleOutput(ctx context.Context, installationID, kwh uint64) error {
	s := b.service
	installation, err := s.repo.FindInstallation(ctx, installationID)
	if err != nil {
		return err
	}
	if installation == nil {
		return payout.ErrInstallationNotFound
	}
	if err := installation.AccumulateOutput(kwh); err != nil {
		return err
	}
	sample := &payout.OutputSample{
		InstallationID: installationID,
		Height:         s.heights.Current(),
		CumulativeKwh:  installation.TotalMeasuredOutput,
	}
	if err := s.repo.SaveSample(ctx, sample); err != nil {
		return err
	}
	return s.repo.SaveInstallation(ctx, installation)
}

// NotifyPoolBalance records the pool balance for capacity bookkeeping.
func (b *Bridge) NotifyPoolBalance(ctx context.Context, balance uint64) error {
	ledger, err := b.service.repo.LoadLedger(ctx)
	if err != nil {
		return err
	}
	ledger.PoolBalance = balance
	return b.service.repo.SaveLedger(ctx, ledger)
}

// SettleOpenClaim settles the currently payable claim of an installation on
// behalf of the pool's transfer-to-payout entry point. The supplied amount
// must match the computed payout exactly.
func (b *Bridge) SettleOpenClaim(ctx context.Context, installationID, amount uint64) error {
	s := b.service
	if amount == 0 {
		return payout.ErrAmountMismatch
	}
	installation, err := s.repo.FindInstallation(ctx, installationID)
	if err != nil {
		return err
	}
	if installation == nil {
		return payout.ErrInstallationNotFound
	}
	_, err = s.settleClaim(ctx, installation, amount)
	return err
}
