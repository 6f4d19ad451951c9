package application

import (
	"context"
	"errors"
	"time"

	"energy-subsidy/internal/governance"
	"energy-subsidy/internal/identity"
	"energy-subsidy/internal/observability/metrics"
	oracle "energy-subsidy/internal/oracle/domain"
	"energy-subsidy/internal/signature"
	"energy-subsidy/internal/storage"
)

// HeightSource supplies the current ledger height.
type HeightSource interface {
	Current() uint64
}

// OutputSink receives the kWh of every admitted report. The payout ledger
// implements it; a sink failure rejects the report entirely.
type OutputSink interface {
	SubmitOracleOutput(ctx context.Context, installationID, kwh uint64) error
}

// Report is a submitted measurement before admission.
type Report struct {
	InstallationID     uint64
	TargetPeriodHeight uint64
	MicroUnitsProduced uint64
	Signer             identity.Address
	Signature          []byte
}

// Service admits signed energy reports. Admission is all-or-nothing: a
// report that fails any check leaves no trace, and an admitted report is
// immutable.
type Service struct {
	repo    oracle.Repository
	sink    OutputSink
	gate    governance.Gate
	heights HeightSource
	uow     storage.UnitOfWork
}

// NewService constructs the oracle service.
func NewService(repo oracle.Repository, sink OutputSink, gate governance.Gate, heights HeightSource, uow storage.UnitOfWork) (*Service, error) {
	if repo == nil {
		return nil, errors.New("oracle service: nil repository")
	}
	if sink == nil {
		return nil, errors.New("oracle service: nil output sink")
	}
	if gate == nil {
		return nil, errors.New("oracle service: nil governance gate")
	}
	if heights == nil {
		return nil, errors.New("oracle service: nil height source")
	}
	if uow == nil {
		return nil, errors.New("oracle service: nil unit of work")
	}
	return &Service{repo: repo, sink: sink, gate: gate, heights: heights, uow: uow}, nil
}

// SubmitReport validates and admits one measurement. Checks run cheapest
// first; signature verification is last so malformed or out-of-window
// submissions never pay for a curve recovery.
func (s *Service) SubmitReport(ctx context.Context, report Report) error {
	start := time.Now()
	err := s.uow.Within(ctx, func(ctx context.Context) error {
		return s.submitReport(ctx, report)
	})
	metrics.ObserveReport(err, time.Since(start))
	return err
}

func (s *Service) submitReport(ctx context.Context, report Report) error {
	status, err := s.repo.LoadStatus(ctx)
	if err != nil {
		return err
	}
	if status.Paused {
		return oracle.ErrPaused
	}

	height := s.heights.Current()
	if !oracle.WithinWindow(height, report.TargetPeriodHeight) {
		return oracle.ErrWindowViolation
	}

	existing, err := s.repo.FindReport(ctx, report.InstallationID, report.TargetPeriodHeight)
	if err != nil {
		return err
	}
	if existing != nil {
		return oracle.ErrAlreadyReported
	}

	capacityKw, registered, err := s.repo.Capacity(ctx, report.InstallationID)
	if err != nil {
		return err
	}
	if !registered {
		return oracle.ErrCapacityNotRegistered
	}
	if report.MicroUnitsProduced > oracle.PlausibilityCeiling(capacityKw, height, report.TargetPeriodHeight) {
		return oracle.ErrPlausibilityViolation
	}

	authorized, err := s.repo.IsSigner(ctx, report.Signer)
	if err != nil {
		return err
	}
	if !authorized {
		return oracle.ErrUnauthorizedSigner
	}

	digest := signature.ReportDigest(report.InstallationID, report.TargetPeriodHeight, report.MicroUnitsProduced)
	if !signature.Verify(digest, report.Signature, report.Signer) {
		return oracle.ErrSignatureInvalid
	}

	admitted := &oracle.EnergyReport{
		InstallationID:   report.InstallationID,
		PeriodHeight:     report.TargetPeriodHeight,
		MicroUnits:       report.MicroUnitsProduced,
		KwhProduced:      oracle.KwhFromMicroUnits(report.MicroUnitsProduced),
		ReportedAtHeight: height,
		Reporter:         report.Signer,
		Signature:        report.Signature,
		Verified:         true,
	}

	// The sink can still reject (unknown installation, series overflow), so
	// it runs before any oracle write. A failure leaves no admitted report.
	if err := s.sink.SubmitOracleOutput(ctx, admitted.InstallationID, admitted.KwhProduced); err != nil {
		return err
	}

	if err := s.repo.SaveReport(ctx, admitted); err != nil {
		return err
	}
	status.TotalReports++
	if report.TargetPeriodHeight > status.LastReportBlock {
		status.LastReportBlock = report.TargetPeriodHeight
	}
	return s.repo.SaveStatus(ctx, status)
}

// AddSigner admits an address to the signer set. Admin only; adding an
// existing signer is a no-op.
func (s *Service) AddSigner(ctx context.Context, addr identity.Address) error {
	return s.uow.Within(ctx, func(ctx context.Context) error {
		if err := s.gate.RequireAdmin(ctx); err != nil {
			return err
		}
		if addr.IsZero() {
			return identity.ErrInvalidAddress
		}
		return s.repo.AddSigner(ctx, addr)
	})
}

// RemoveSigner removes an address from the signer set. Admin only. Reports
// the removed signer already got admitted stay admitted.
func (s *Service) RemoveSigner(ctx context.Context, addr identity.Address) error {
	return s.uow.Within(ctx, func(ctx context.Context) error {
		if err := s.gate.RequireAdmin(ctx); err != nil {
			return err
		}
		if addr.IsZero() {
			return identity.ErrInvalidAddress
		}
		return s.repo.RemoveSigner(ctx, addr)
	})
}

// Pause suspends report admission. Admin only.
func (s *Service) Pause(ctx context.Context) error {
	return s.uow.Within(ctx, func(ctx context.Context) error {
		if err := s.gate.RequireAdmin(ctx); err != nil {
			return err
		}
		status, err := s.repo.LoadStatus(ctx)
		if err != nil {
			return err
		}
		if status.Paused {
			return oracle.ErrAlreadyPaused
		}
		status.Paused = true
		return s.repo.SaveStatus(ctx, status)
	})
}

// Unpause resumes report admission. Admin only.
func (s *Service) Unpause(ctx context.Context) error {
	return s.uow.Within(ctx, func(ctx context.Context) error {
		if err := s.gate.RequireAdmin(ctx); err != nil {
			return err
		}
		status, err := s.repo.LoadStatus(ctx)
		if err != nil {
			return err
		}
		if !status.Paused {
			return oracle.ErrNotPaused
		}
		status.Paused = false
		return s.repo.SaveStatus(ctx, status)
	})
}

// Report returns one admitted report.
func (s *Service) Report(ctx context.Context, installationID, periodHeight uint64) (*oracle.EnergyReport, error) {
	report, err := s.repo.FindReport(ctx, installationID, periodHeight)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, oracle.ErrReportNotFound
	}
	return report, nil
}

// Status returns the oracle scalars.
func (s *Service) Status(ctx context.Context) (*oracle.Status, error) {
	return s.repo.LoadStatus(ctx)
}

// IsSigner reports signer-set membership.
func (s *Service) IsSigner(ctx context.Context, addr identity.Address) (bool, error) {
	return s.repo.IsSigner(ctx, addr)
}

// Bridge returns the capacity-registration view consumed by the payout
// service. Bridge methods run inside the caller's unit-of-work scope.
func (s *Service) Bridge() *Bridge {
	return &Bridge{service: s}
}

// Bridge exposes capacity registration to the payout service.
type Bridge struct {
	service *Service
}

// RegisterCapacity records the declared capacity of a newly registered
// installation for the plausibility ceiling.
func (b *Bridge) RegisterCapacity(ctx context.Context, installationID, capacityKw uint64) error {
	if capacityKw == 0 {
		return oracle.ErrInvalidCapacity
	}
	return b.service.repo.SaveCapacity(ctx, installationID, capacityKw)
}
