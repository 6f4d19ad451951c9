package postgres

import (
	"context"
	"database/sql"
	"errors"

	"energy-subsidy/internal/identity"
	payout "energy-subsidy/internal/payout/domain"
	storagepg "energy-subsidy/internal/storage/postgres"
)

// Repository persists installations, output samples, claim records, and the
// payout scalars. The payout_state table holds exactly one row with id 1.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a postgres-backed payout repository.
func NewRepository(db *sql.DB) *Repository {
	if db == nil {
		return nil
	}
	return &Repository{db: db}
}

// FindInstallation loads an installation, or nil.
func (r *Repository) FindInstallation(ctx context.Context, id uint64) (*payout.Installation, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("payout repo: nil db")
	}
	row := storagepg.From(ctx, r.db).QueryRowContext(ctx, `
SELECT id, owner, capacity_kw, last_claimed_output, total_measured_output,
	verified, registered_at_height
FROM installations WHERE id = $1`, id)

	var installation payout.Installation
	var owner string
	err := row.Scan(&installation.ID, &owner, &installation.CapacityKw,
		&installation.LastClaimedOutput, &installation.TotalMeasuredOutput,
		&installation.Verified, &installation.RegisteredAtHeight)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	installation.Owner, err = identity.Parse(owner)
	if err != nil {
		return nil, err
	}
	return &installation, nil
}

// SaveInstallation upserts an installation.
func (r *Repository) SaveInstallation(ctx context.Context, installation *payout.Installation) error {
	if r == nil || r.db == nil {
		return errors.New("payout repo: nil db")
	}
	if installation == nil {
		return payout.ErrNilInstallation
	}
	_, err := storagepg.From(ctx, r.db).ExecContext(ctx, `
INSERT INTO installations (
	id, owner, capacity_kw, last_claimed_output, total_measured_output,
	verified, registered_at_height
) VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
	last_claimed_output = EXCLUDED.last_claimed_output,
	total_measured_output = EXCLUDED.total_measured_output,
	verified = EXCLUDED.verified`,
		installation.ID, installation.Owner.String(), installation.CapacityKw,
		installation.LastClaimedOutput, installation.TotalMeasuredOutput,
		installation.Verified, installation.RegisteredAtHeight)
	return err
}

// LatestSampleAtOrBefore loads the newest sample of an installation at or
// before the given height, or nil.
func (r *Repository) LatestSampleAtOrBefore(ctx context.Context, installationID, height uint64) (*payout.OutputSample, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("payout repo: nil db")
	}
	row := storagepg.From(ctx, r.db).QueryRowContext(ctx, `
SELECT installation_id, height, cumulative_kwh
FROM output_samples
WHERE installation_id = $1 AND height <= $2
ORDER BY height DESC
LIMIT 1`, installationID, height)

	var sample payout.OutputSample
	err := row.Scan(&sample.InstallationID, &sample.Height, &sample.CumulativeKwh)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sample, nil
}

// SaveSample upserts one point of an installation's output series. Two
// admitted reports at the same height collapse into the newer cumulative
// value.
func (r *Repository) SaveSample(ctx context.Context, sample *payout.OutputSample) error {
	if r == nil || r.db == nil {
		return errors.New("payout repo: nil db")
	}
	if sample == nil {
		return payout.ErrNilInstallation
	}
	_, err := storagepg.From(ctx, r.db).ExecContext(ctx, `
INSERT INTO output_samples (installation_id, height, cumulative_kwh)
VALUES ($1, $2, $3)
ON CONFLICT (installation_id, height) DO UPDATE SET
	cumulative_kwh = EXCLUDED.cumulative_kwh`,
		sample.InstallationID, sample.Height, sample.CumulativeKwh)
	return err
}

// FindClaim loads the claim record for one period, or nil.
func (r *Repository) FindClaim(ctx context.Context, installationID, periodHeight uint64) (*payout.ClaimRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("payout repo: nil db")
	}
	row := storagepg.From(ctx, r.db).QueryRowContext(ctx, `
SELECT installation_id, period_height, amount_paid, output_delta,
	recipient, claimed_at_height
FROM claims
WHERE installation_id = $1 AND period_height = $2`, installationID, periodHeight)

	var record payout.ClaimRecord
	var recipient string
	err := row.Scan(&record.InstallationID, &record.PeriodHeight, &record.AmountPaid,
		&record.OutputDelta, &recipient, &record.ClaimedAtHeight)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	record.Recipient, err = identity.Parse(recipient)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// SaveClaim inserts a claim record. Claim records are immutable, so a
// conflicting insert is a hard error.
func (r *Repository) SaveClaim(ctx context.Context, record *payout.ClaimRecord) error {
	if r == nil || r.db == nil {
		return errors.New("payout repo: nil db")
	}
	if record == nil {
		return payout.ErrNilInstallation
	}
	_, err := storagepg.From(ctx, r.db).ExecContext(ctx, `
INSERT INTO claims (
	installation_id, period_height, amount_paid, output_delta,
	recipient, claimed_at_height
) VALUES ($1, $2, $3, $4, $5, $6)`,
		record.InstallationID, record.PeriodHeight, record.AmountPaid,
		record.OutputDelta, record.Recipient.String(), record.ClaimedAtHeight)
	return err
}

// LoadLedger loads the payout scalars, creating the genesis row on first
// use.
func (r *Repository) LoadLedger(ctx context.Context) (*payout.Ledger, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("payout repo: nil db")
	}
	var ledger payout.Ledger
	row := storagepg.From(ctx, r.db).QueryRowContext(ctx,
		`SELECT rate_per_kwh, total_subsidized_output, pool_balance FROM payout_state WHERE id = 1`)
	err := row.Scan(&ledger.RatePerKwh, &ledger.TotalSubsidizedOutput, &ledger.PoolBalance)
	if errors.Is(err, sql.ErrNoRows) {
		return &payout.Ledger{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &ledger, nil
}

// SaveLedger upserts the payout scalars.
func (r *Repository) SaveLedger(ctx context.Context, ledger *payout.Ledger) error {
	if r == nil || r.db == nil {
		return errors.New("payout repo: nil db")
	}
	if ledger == nil {
		return payout.ErrNilInstallation
	}
	_, err := storagepg.From(ctx, r.db).ExecContext(ctx, `
INSERT INTO payout_state (id, rate_per_kwh, total_subsidized_output, pool_balance)
VALUES (1, $1, $2, $3)
ON CONFLICT (id) DO UPDATE SET
	rate_per_kwh = EXCLUDED.rate_per_kwh,
	total_subsidized_output = EXCLUDED.total_subsidized_output,
	pool_balance = EXCLUDED.pool_balance`,
		ledger.RatePerKwh, ledger.TotalSubsidizedOutput, ledger.PoolBalance)
	return err
}
