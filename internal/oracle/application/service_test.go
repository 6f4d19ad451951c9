package application

import (
	"context"
	"errors"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"energy-subsidy/internal/auth"
	"energy-subsidy/internal/governance"
	"energy-subsidy/internal/heights"
	"energy-subsidy/internal/identity"
	oracle "energy-subsidy/internal/oracle/domain"
	oraclemem "energy-subsidy/internal/oracle/infrastructure/memory"
	"energy-subsidy/internal/signature"
	"energy-subsidy/internal/storage"
)

type captureSink struct {
	installations []uint64
	kwh           []uint64
	fail          bool
}

func (s *captureSink) SubmitOracleOutput(ctx context.Context, installationID, kwh uint64) error {
	if s.fail {
		return errors.New("sink down")
	}
	s.installations = append(s.installations, installationID)
	s.kwh = append(s.kwh, kwh)
	return nil
}

type fixture struct {
	service *Service
	repo    *oraclemem.Repository
	sink    *captureSink
	heights *heights.Manual
	priv    *secp256k1.PrivateKey
	signer  identity.Address
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	repo := oraclemem.NewRepository()
	sink := &captureSink{}
	manual := heights.NewManual(200)
	service, err := NewService(repo, sink, governance.RoleGate{}, manual, storage.NewSerial())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	f := &fixture{
		service: service,
		repo:    repo,
		sink:    sink,
		heights: manual,
		priv:    priv,
		signer:  identity.FromPublicKey(priv.PubKey()),
	}

	ctx := adminCtx()
	if err := service.Bridge().RegisterCapacity(ctx, 1, 5); err != nil {
		t.Fatalf("register capacity: %v", err)
	}
	if err := service.AddSigner(ctx, f.signer); err != nil {
		t.Fatalf("add signer: %v", err)
	}
	return f
}

func adminCtx() context.Context {
	return auth.WithIdentity(context.Background(), auth.RoleAdmin,
		identity.Address("dddddddddddddddddddddddddddddddddddddddd"))
}

func (f *fixture) signedReport(t *testing.T, installationID, period, microUnits uint64) Report {
	t.Helper()
	digest := signature.ReportDigest(installationID, period, microUnits)
	return Report{
		InstallationID:     installationID,
		TargetPeriodHeight: period,
		MicroUnitsProduced: microUnits,
		Signer:             f.signer,
		Signature:          ecdsa.SignCompact(f.priv, digest[:], true),
	}
}

func TestSubmitReport_AdmitsAndForwardsTruncatedKwh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 12.5 kWh: the sub-unit remainder is dropped on conversion.
	report := f.signedReport(t, 1, 199, 12_500_000)
	if err := f.service.SubmitReport(ctx, report); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if len(f.sink.kwh) != 1 || f.sink.kwh[0] != 12 || f.sink.installations[0] != 1 {
		t.Fatalf("sink received %v/%v, want installation 1 with 12 kWh", f.sink.installations, f.sink.kwh)
	}

	admitted, err := f.service.Report(ctx, 1, 199)
	if err != nil {
		t.Fatalf("report query: %v", err)
	}
	if !admitted.Verified || admitted.KwhProduced != 12 || admitted.ReportedAtHeight != 200 {
		t.Fatalf("unexpected admitted report: %+v", admitted)
	}

	status, _ := f.service.Status(ctx)
	if status.TotalReports != 1 || status.LastReportBlock != 199 {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestSubmitReport_WindowBounds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		period uint64
		err    error
	}{
		{"current height not final", 200, oracle.ErrWindowViolation},
		{"future", 201, oracle.ErrWindowViolation},
		{"oldest admissible", 200 - oracle.ReportWindowBlocks, nil},
		{"one past the window", 200 - oracle.ReportWindowBlocks - 1, oracle.ErrWindowViolation},
	}
	for _, tc := range cases {
		err := f.service.SubmitReport(ctx, f.signedReport(t, 1, tc.period, 1_000_000))
		if !errors.Is(err, tc.err) {
			t.Fatalf("%s: err = %v, want %v", tc.name, err, tc.err)
		}
	}
}

func TestSubmitReport_DuplicatePeriodRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.service.SubmitReport(ctx, f.signedReport(t, 1, 199, 1_000_000)); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	err := f.service.SubmitReport(ctx, f.signedReport(t, 1, 199, 2_000_000))
	if !errors.Is(err, oracle.ErrAlreadyReported) {
		t.Fatalf("err = %v, want ErrAlreadyReported", err)
	}
	if len(f.sink.kwh) != 1 {
		t.Fatalf("rejected report must not reach the sink, got %v", f.sink.kwh)
	}
}

func TestSubmitReport_UnknownInstallation(t *testing.T) {
	f := newFixture(t)
	err := f.service.SubmitReport(context.Background(), f.signedReport(t, 99, 199, 1_000_000))
	if !errors.Is(err, oracle.ErrCapacityNotRegistered) {
		t.Fatalf("err = %v, want ErrCapacityNotRegistered", err)
	}
}

func TestSubmitReport_PlausibilityCeiling(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 5 kW for one elapsed hour: at most 30 kWh.
	ceiling := uint64(5) * oracle.MaxKwhPerKwPerHour * oracle.MicroUnitsPerKwh
	if err := f.service.SubmitReport(ctx, f.signedReport(t, 1, 199, ceiling)); err != nil {
		t.Fatalf("at ceiling: %v", err)
	}
	err := f.service.SubmitReport(ctx, f.signedReport(t, 1, 198, 2*ceiling+1))
	if !errors.Is(err, oracle.ErrPlausibilityViolation) {
		t.Fatalf("err = %v, want ErrPlausibilityViolation", err)
	}
}

func TestSubmitReport_SignerSetEnforced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	outsider, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	digest := signature.ReportDigest(1, 199, 1_000_000)
	report := Report{
		InstallationID:     1,
		TargetPeriodHeight: 199,
		MicroUnitsProduced: 1_000_000,
		Signer:             identity.FromPublicKey(outsider.PubKey()),
		Signature:          ecdsa.SignCompact(outsider, digest[:], true),
	}
	if err := f.service.SubmitReport(ctx, report); !errors.Is(err, oracle.ErrUnauthorizedSigner) {
		t.Fatalf("err = %v, want ErrUnauthorizedSigner", err)
	}

	if err := f.service.RemoveSigner(adminCtx(), f.signer); err != nil {
		t.Fatalf("remove signer: %v", err)
	}
	err = f.service.SubmitReport(ctx, f.signedReport(t, 1, 199, 1_000_000))
	if !errors.Is(err, oracle.ErrUnauthorizedSigner) {
		t.Fatalf("after removal err = %v, want ErrUnauthorizedSigner", err)
	}
}

func TestSubmitReport_TamperedPayloadRejected(t *testing.T) {
	f := newFixture(t)
	report := f.signedReport(t, 1, 199, 1_000_000)
	report.MicroUnitsProduced = 2_000_000

	err := f.service.SubmitReport(context.Background(), report)
	if !errors.Is(err, oracle.ErrSignatureInvalid) {
		t.Fatalf("err = %v, want ErrSignatureInvalid", err)
	}
}

func TestSubmitReport_SinkFailureVoidsAdmission(t *testing.T) {
	f := newFixture(t)
	f.sink.fail = true

	err := f.service.SubmitReport(context.Background(), f.signedReport(t, 1, 199, 1_000_000))
	if err == nil {
		t.Fatal("expected submit to fail when the sink fails")
	}

	status, _ := f.service.Status(context.Background())
	if status.TotalReports != 0 {
		t.Fatalf("total reports = %d, want 0", status.TotalReports)
	}
	if _, err := f.service.Report(context.Background(), 1, 199); !errors.Is(err, oracle.ErrReportNotFound) {
		t.Fatalf("report err = %v, want ErrReportNotFound", err)
	}
}

func TestPause_BlocksAdmissionUntilUnpause(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.service.Pause(adminCtx()); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := f.service.Pause(adminCtx()); !errors.Is(err, oracle.ErrAlreadyPaused) {
		t.Fatalf("double pause err = %v, want ErrAlreadyPaused", err)
	}
	if err := f.service.SubmitReport(ctx, f.signedReport(t, 1, 199, 1_000_000)); !errors.Is(err, oracle.ErrPaused) {
		t.Fatalf("paused submit err = %v, want ErrPaused", err)
	}

	if err := f.service.Unpause(adminCtx()); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if err := f.service.Unpause(adminCtx()); !errors.Is(err, oracle.ErrNotPaused) {
		t.Fatalf("double unpause err = %v, want ErrNotPaused", err)
	}
	if err := f.service.SubmitReport(ctx, f.signedReport(t, 1, 199, 1_000_000)); err != nil {
		t.Fatalf("submit after unpause: %v", err)
	}
}

func TestGovernanceOps_RequireAdmin(t *testing.T) {
	f := newFixture(t)
	viewer := auth.WithIdentity(context.Background(), auth.RoleViewer, f.signer)

	if err := f.service.Pause(viewer); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("pause err = %v, want ErrForbidden", err)
	}
	if err := f.service.AddSigner(viewer, f.signer); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("add signer err = %v, want ErrForbidden", err)
	}
	if err := f.service.RemoveSigner(viewer, f.signer); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("remove signer err = %v, want ErrForbidden", err)
	}
}
