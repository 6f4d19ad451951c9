package postgres

import (
	"context"
	"database/sql"
	"errors"

	"energy-subsidy/internal/identity"
	oracle "energy-subsidy/internal/oracle/domain"
	storagepg "energy-subsidy/internal/storage/postgres"
)

// Repository persists admitted reports, the signer set, registered
// capacities, and the oracle scalars. The oracle_state table holds exactly
// one row with id 1.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a postgres-backed oracle repository.
func NewRepository(db *sql.DB) *Repository {
	if db == nil {
		return nil
	}
	return &Repository{db: db}
}

// FindReport loads an admitted report, or nil.
func (r *Repository) FindReport(ctx context.Context, installationID, periodHeight uint64) (*oracle.EnergyReport, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("oracle repo: nil db")
	}
	row := storagepg.From(ctx, r.db).QueryRowContext(ctx, `
SELECT installation_id, period_height, micro_units, kwh_produced,
	reported_at_height, reporter, signature, verified
FROM energy_reports
WHERE installation_id = $1 AND period_height = $2`, installationID, periodHeight)

	var report oracle.EnergyReport
	var reporter string
	err := row.Scan(&report.InstallationID, &report.PeriodHeight, &report.MicroUnits,
		&report.KwhProduced, &report.ReportedAtHeight, &reporter, &report.Signature, &report.Verified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	report.Reporter, err = identity.Parse(reporter)
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// SaveReport inserts an admitted report. Reports are immutable, so a
// conflicting insert is a hard error.
func (r *Repository) SaveReport(ctx context.Context, report *oracle.EnergyReport) error {
	if r == nil || r.db == nil {
		return errors.New("oracle repo: nil db")
	}
	if report == nil {
		return oracle.ErrNilReport
	}
	_, err := storagepg.From(ctx, r.db).ExecContext(ctx, `
INSERT INTO energy_reports (
	installation_id, period_height, micro_units, kwh_produced,
	reported_at_height, reporter, signature, verified
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		report.InstallationID, report.PeriodHeight, report.MicroUnits, report.KwhProduced,
		report.ReportedAtHeight, report.Reporter.String(), report.Signature, report.Verified)
	return err
}

// Capacity loads an installation's registered capacity.
func (r *Repository) Capacity(ctx context.Context, installationID uint64) (uint64, bool, error) {
	if r == nil || r.db == nil {
		return 0, false, errors.New("oracle repo: nil db")
	}
	var capacityKw uint64
	row := storagepg.From(ctx, r.db).QueryRowContext(ctx,
		`SELECT capacity_kw FROM oracle_capacities WHERE installation_id = $1`, installationID)
	if err := row.Scan(&capacityKw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return capacityKw, true, nil
}

// SaveCapacity upserts an installation's capacity.
func (r *Repository) SaveCapacity(ctx context.Context, installationID, capacityKw uint64) error {
	if r == nil || r.db == nil {
		return errors.New("oracle repo: nil db")
	}
	if capacityKw == 0 {
		return oracle.ErrInvalidCapacity
	}
	_, err := storagepg.From(ctx, r.db).ExecContext(ctx, `
INSERT INTO oracle_capacities (installation_id, capacity_kw)
VALUES ($1, $2)
ON CONFLICT (installation_id) DO UPDATE SET capacity_kw = EXCLUDED.capacity_kw`,
		installationID, capacityKw)
	return err
}

// IsSigner reports signer-set membership.
func (r *Repository) IsSigner(ctx context.Context, addr identity.Address) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("oracle repo: nil db")
	}
	var one int
	row := storagepg.From(ctx, r.db).QueryRowContext(ctx,
		`SELECT 1 FROM oracle_signers WHERE address = $1`, addr.String())
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// AddSigner admits an address; adding an existing signer is a no-op.
func (r *Repository) AddSigner(ctx context.Context, addr identity.Address) error {
	if r == nil || r.db == nil {
		return errors.New("oracle repo: nil db")
	}
	_, err := storagepg.From(ctx, r.db).ExecContext(ctx, `
INSERT INTO oracle_signers (address) VALUES ($1)
ON CONFLICT (address) DO NOTHING`, addr.String())
	return err
}

// RemoveSigner removes an address; removing an unknown signer is a no-op.
func (r *Repository) RemoveSigner(ctx context.Context, addr identity.Address) error {
	if r == nil || r.db == nil {
		return errors.New("oracle repo: nil db")
	}
	_, err := storagepg.From(ctx, r.db).ExecContext(ctx,
		`DELETE FROM oracle_signers WHERE address = $1`, addr.String())
	return err
}

// LoadStatus loads the oracle scalars, creating the genesis row on first
// use.
func (r *Repository) LoadStatus(ctx context.Context) (*oracle.Status, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("oracle repo: nil db")
	}
	var status oracle.Status
	row := storagepg.From(ctx, r.db).QueryRowContext(ctx,
		`SELECT paused, total_reports, last_report_block FROM oracle_state WHERE id = 1`)
	err := row.Scan(&status.Paused, &status.TotalReports, &status.LastReportBlock)
	if errors.Is(err, sql.ErrNoRows) {
		return &oracle.Status{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// SaveStatus upserts the oracle scalars.
func (r *Repository) SaveStatus(ctx context.Context, status *oracle.Status) error {
	if r == nil || r.db == nil {
		return errors.New("oracle repo: nil db")
	}
	if status == nil {
		return oracle.ErrNilReport
	}
	_, err := storagepg.From(ctx, r.db).ExecContext(ctx, `
INSERT INTO oracle_state (id, paused, total_reports, last_report_block)
VALUES (1, $1, $2, $3)
ON CONFLICT (id) DO UPDATE SET
	paused = EXCLUDED.paused,
	total_reports = EXCLUDED.total_reports,
	last_report_block = EXCLUDED.last_report_block`,
		status.Paused, status.TotalReports, status.LastReportBlock)
	return err
}
