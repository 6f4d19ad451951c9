package integration_test

import (
	"context"
	"errors"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"energy-subsidy/internal/auth"
	"energy-subsidy/internal/bank"
	"energy-subsidy/internal/governance"
	"energy-subsidy/internal/heights"
	"energy-subsidy/internal/identity"
	oracleapp "energy-subsidy/internal/oracle/application"
	oraclemem "energy-subsidy/internal/oracle/infrastructure/memory"
	payoutapp "energy-subsidy/internal/payout/application"
	payoutdomain "energy-subsidy/internal/payout/domain"
	payoutmem "energy-subsidy/internal/payout/infrastructure/memory"
	poolapp "energy-subsidy/internal/pool/application"
	pooldomain "energy-subsidy/internal/pool/domain"
	poolmem "energy-subsidy/internal/pool/infrastructure/memory"
	"energy-subsidy/internal/registry"
	"energy-subsidy/internal/signature"
	"energy-subsidy/internal/storage"
)

const (
	custody   = identity.Address("1111111111111111111111111111111111111111")
	depositor = identity.Address("2222222222222222222222222222222222222222")
	producer  = identity.Address("3333333333333333333333333333333333333333")
	treasurer = identity.Address("4444444444444444444444444444444444444444")
)

type system struct {
	pool    *poolapp.Service
	oracle  *oracleapp.Service
	payout  *payoutapp.Service
	bank    *bank.MemoryBank
	heights *heights.Manual
	priv    *secp256k1.PrivateKey
	signer  identity.Address
}

// newSystem wires the three services the way the binary does, on memory
// infrastructure, with the signer admitted and the depositor funded.
func newSystem(t *testing.T) *system {
	t.Helper()
	memBank := bank.NewMemoryBank()
	memBank.Mint(depositor, 10_000_000)
	manual := heights.NewManual(1_000)
	uow := storage.NewSerial()
	gate := governance.RoleGate{}

	poolService, err := poolapp.NewService(poolmem.NewRepository(), memBank, gate, manual, uow, custody)
	if err != nil {
		t.Fatalf("pool service: %v", err)
	}
	payoutService, err := payoutapp.NewService(payoutmem.NewRepository(), poolService.Bridge(),
		registry.NewMemoryRegistry(), gate, manual, uow)
	if err != nil {
		t.Fatalf("payout service: %v", err)
	}
	oracleService, err := oracleapp.NewService(oraclemem.NewRepository(), payoutService.Bridge(), gate, manual, uow)
	if err != nil {
		t.Fatalf("oracle service: %v", err)
	}
	payoutService.SetCapacityRegistrar(oracleService.Bridge())
	poolService.SetBalanceObserver(payoutService.Bridge())
	poolService.SetClaimSettler(payoutService.Bridge())

	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer := identity.FromPublicKey(priv.PubKey())
	if err := oracleService.AddSigner(adminCtx(), signer); err != nil {
		t.Fatalf("add signer: %v", err)
	}

	return &system{
		pool:    poolService,
		oracle:  oracleService,
		payout:  payoutService,
		bank:    memBank,
		heights: manual,
		priv:    priv,
		signer:  signer,
	}
}

func adminCtx() context.Context {
	return auth.WithIdentity(context.Background(), auth.RoleAdmin, treasurer)
}

func operatorCtx(addr identity.Address) context.Context {
	return auth.WithIdentity(context.Background(), auth.RoleOperator, addr)
}

func (s *system) submitReport(t *testing.T, installationID, period, microUnits uint64) {
	t.Helper()
	digest := signature.ReportDigest(installationID, period, microUnits)
	err := s.oracle.SubmitReport(context.Background(), oracleapp.Report{
		InstallationID:     installationID,
		TargetPeriodHeight: period,
		MicroUnitsProduced: microUnits,
		Signer:             s.signer,
		Signature:          ecdsa.SignCompact(s.priv, digest[:], true),
	})
	if err != nil {
		t.Fatalf("submit report: %v", err)
	}
}

func TestSubsidyLifecycle_DepositReportClaim(t *testing.T) {
	s := newSystem(t)

	if err := s.pool.Deposit(operatorCtx(depositor), depositor, 1_000_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := s.payout.SetRate(adminCtx(), 10); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	installation, err := s.payout.RegisterInstallation(operatorCtx(producer), producer, 5)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	// 25 kWh produced in the period just before the current height.
	s.submitReport(t, installation.ID, 999, 25_000_000)
	s.heights.Advance(1)

	result, err := s.payout.ClaimSubsidy(operatorCtx(producer), producer, installation.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if result.OutputDelta != 25 || result.AmountPaid != 250 {
		t.Fatalf("unexpected claim result: %+v", result)
	}
	if got := s.bank.Balance(producer); got != 250 {
		t.Fatalf("producer balance = %d, want 250", got)
	}

	status, err := s.pool.Status(context.Background())
	if err != nil {
		t.Fatalf("pool status: %v", err)
	}
	if status.Balance != 999_750 || status.TotalPaidOut != 250 {
		t.Fatalf("unexpected pool status: %+v", status)
	}
	if status.Balance != status.TotalDeposited-status.TotalWithdrawn-status.TotalPaidOut {
		t.Fatalf("conservation broken: %+v", status)
	}

	ledger, err := s.payout.LedgerStatus(context.Background())
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	if ledger.TotalSubsidizedOutput != 25 || ledger.PoolBalance != 999_750 {
		t.Fatalf("unexpected ledger: %+v", ledger)
	}
}

func TestSubsidyLifecycle_TransferToPayoutSettlesOpenClaim(t *testing.T) {
	s := newSystem(t)

	if err := s.pool.Deposit(operatorCtx(depositor), depositor, 1_000_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := s.payout.SetRate(adminCtx(), 10); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	installation, err := s.payout.RegisterInstallation(operatorCtx(producer), producer, 5)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	s.submitReport(t, installation.ID, 999, 25_000_000)
	s.heights.Advance(1)

	// Anyone may trigger settlement, but only with the exact payable amount.
	err = s.pool.TransferToPayout(operatorCtx(depositor), installation.ID, 999)
	if !errors.Is(err, payoutdomain.ErrAmountMismatch) {
		t.Fatalf("mismatch err = %v, want ErrAmountMismatch", err)
	}
	if err := s.pool.TransferToPayout(operatorCtx(depositor), installation.ID, 250); err != nil {
		t.Fatalf("transfer to payout: %v", err)
	}
	if got := s.bank.Balance(producer); got != 250 {
		t.Fatalf("producer balance = %d, want 250", got)
	}

	// The claim is settled; the same period cannot pay twice.
	_, err = s.payout.ClaimSubsidy(operatorCtx(producer), producer, installation.ID)
	if !errors.Is(err, payoutdomain.ErrInsufficientOutput) {
		t.Fatalf("double claim err = %v, want ErrInsufficientOutput", err)
	}
}

func TestSubsidyLifecycle_EmergencyFreezeBlocksClaims(t *testing.T) {
	s := newSystem(t)

	if err := s.pool.Deposit(operatorCtx(depositor), depositor, 1_000_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := s.payout.SetRate(adminCtx(), 10); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	installation, err := s.payout.RegisterInstallation(operatorCtx(producer), producer, 5)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	s.submitReport(t, installation.ID, 999, 25_000_000)
	s.heights.Advance(1)

	if err := s.pool.Freeze(adminCtx(), true); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	_, err = s.payout.ClaimSubsidy(operatorCtx(producer), producer, installation.ID)
	if !errors.Is(err, pooldomain.ErrFrozen) {
		t.Fatalf("frozen claim err = %v, want ErrFrozen", err)
	}
	if got := s.bank.Balance(producer); got != 0 {
		t.Fatalf("producer balance = %d, want 0", got)
	}

	// The freeze expires with the pause window and the claim goes through.
	s.heights.Advance(pooldomain.EmergencyPauseBlocks + 1)
	// Oracle reports are long stale by now, but the sample is already in the
	// series; the claim needs no new report.
	result, err := s.payout.ClaimSubsidy(operatorCtx(producer), producer, installation.ID)
	if err != nil {
		t.Fatalf("claim after thaw: %v", err)
	}
	if result.AmountPaid != 250 {
		t.Fatalf("amount = %d, want 250", result.AmountPaid)
	}
}

func TestSubsidyLifecycle_ExhaustedPoolRejectsClaimUntouched(t *testing.T) {
	s := newSystem(t)

	if err := s.pool.Deposit(operatorCtx(depositor), depositor, 100); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := s.payout.SetRate(adminCtx(), 10); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	installation, err := s.payout.RegisterInstallation(operatorCtx(producer), producer, 5)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	// 25 kWh at rate 10 would pay 250 against a pool of 100.
	s.submitReport(t, installation.ID, 999, 25_000_000)
	s.heights.Advance(1)

	_, err = s.payout.ClaimSubsidy(operatorCtx(producer), producer, installation.ID)
	if !errors.Is(err, payoutdomain.ErrPoolExhausted) {
		t.Fatalf("err = %v, want ErrPoolExhausted", err)
	}

	status, err := s.pool.Status(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Balance != 100 || status.TotalPaidOut != 0 {
		t.Fatalf("failed claim must not touch the pool: %+v", status)
	}
	got, err := s.payout.Installation(context.Background(), installation.ID)
	if err != nil {
		t.Fatalf("installation: %v", err)
	}
	if got.LastClaimedOutput != 0 || got.Verified {
		t.Fatalf("failed claim must not touch the installation: %+v", got)
	}

	// Topping the pool up makes the same claim payable.
	if err := s.pool.Deposit(operatorCtx(depositor), depositor, 1_000); err != nil {
		t.Fatalf("second deposit: %v", err)
	}
	result, err := s.payout.ClaimSubsidy(operatorCtx(producer), producer, installation.ID)
	if err != nil {
		t.Fatalf("claim after top-up: %v", err)
	}
	if result.AmountPaid != 250 {
		t.Fatalf("amount = %d, want 250", result.AmountPaid)
	}
}
