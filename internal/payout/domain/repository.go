package payout

import "context"

// Repository persists installations, the cumulative output series, claim
// records, and the payout ledger scalars.
type Repository interface {
	FindInstallation(ctx context.Context, id uint64) (*Installation, error)
	SaveInstallation(ctx context.Context, installation *Installation) error

	// LatestSampleAtOrBefore returns the newest sample with
	// Height <= height, or nil when none exists.
	LatestSampleAtOrBefore(ctx context.Context, installationID, height uint64) (*OutputSample, error)
	SaveSample(ctx context.Context, sample *OutputSample) error

	FindClaim(ctx context.Context, installationID, periodHeight uint64) (*ClaimRecord, error)
	SaveClaim(ctx context.Context, record *ClaimRecord) error

	LoadLedger(ctx context.Context) (*Ledger, error)
	SaveLedger(ctx context.Context, ledger *Ledger) error
}
