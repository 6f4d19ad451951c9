package integration_test

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	_ "github.com/jackc/pgx/v5/stdlib"

	bankpg "energy-subsidy/internal/bank/postgres"
	"energy-subsidy/internal/governance"
	"energy-subsidy/internal/heights"
	"energy-subsidy/internal/identity"
	oracleapp "energy-subsidy/internal/oracle/application"
	oraclepg "energy-subsidy/internal/oracle/infrastructure/postgres"
	payoutapp "energy-subsidy/internal/payout/application"
	payoutpg "energy-subsidy/internal/payout/infrastructure/postgres"
	poolapp "energy-subsidy/internal/pool/application"
	poolpg "energy-subsidy/internal/pool/infrastructure/postgres"
	registrypg "energy-subsidy/internal/registry/postgres"
	"energy-subsidy/internal/signature"
	storagepg "energy-subsidy/internal/storage/postgres"
)

var subsidyTables = []string{
	"pool_state", "pool_deposits", "pool_withdrawals",
	"energy_reports", "oracle_capacities", "oracle_signers", "oracle_state",
	"installations", "output_samples", "claims", "payout_state",
	"accounts",
}

func TestSubsidyLifecycle_Postgres(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	for _, table := range subsidyTables {
		if !tableExists(db, table) {
			t.Skipf("missing table %s; run migrations", table)
		}
	}

	ctx := context.Background()
	for _, table := range subsidyTables {
		_, _ = db.ExecContext(ctx, "DELETE FROM "+table)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO accounts (address, balance) VALUES ($1, $2)`,
		depositor.String(), 10_000_000); err != nil {
		t.Fatalf("seed depositor account: %v", err)
	}

	manual := heights.NewManual(1_000)
	gate := governance.RoleGate{}
	uow, err := storagepg.NewUnitOfWork(db)
	if err != nil {
		t.Fatalf("unit of work: %v", err)
	}

	poolService, err := poolapp.NewService(poolpg.NewRepository(db), bankpg.NewBank(db), gate, manual, uow, custody)
	if err != nil {
		t.Fatalf("pool service: %v", err)
	}
	payoutService, err := payoutapp.NewService(payoutpg.NewRepository(db), poolService.Bridge(),
		registrypg.NewRegistry(db), gate, manual, uow)
	if err != nil {
		t.Fatalf("payout service: %v", err)
	}
	oracleService, err := oracleapp.NewService(oraclepg.NewRepository(db), payoutService.Bridge(), gate, manual, uow)
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

	if err := poolService.Deposit(operatorCtx(depositor), depositor, 1_000_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := payoutService.SetRate(adminCtx(), 10); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	installation, err := payoutService.RegisterInstallation(operatorCtx(producer), producer, 5)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	digest := signature.ReportDigest(installation.ID, 999, 25_000_000)
	err = oracleService.SubmitReport(ctx, oracleapp.Report{
		InstallationID:     installation.ID,
		TargetPeriodHeight: 999,
		MicroUnitsProduced: 25_000_000,
		Signer:             signer,
		Signature:          ecdsa.SignCompact(priv, digest[:], true),
	})
	if err != nil {
		t.Fatalf("submit report: %v", err)
	}
	manual.Advance(1)

	result, err := payoutService.ClaimSubsidy(operatorCtx(producer), producer, installation.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if result.OutputDelta != 25 || result.AmountPaid != 250 {
		t.Fatalf("unexpected claim result: %+v", result)
	}

	status, err := poolService.Status(ctx)
	if err != nil {
		t.Fatalf("pool status: %v", err)
	}
	if status.Balance != 999_750 || status.TotalPaidOut != 250 {
		t.Fatalf("unexpected pool status: %+v", status)
	}

	var producerBalance uint64
	if err := db.QueryRowContext(ctx,
		`SELECT balance FROM accounts WHERE address = $1`, producer.String()).Scan(&producerBalance); err != nil {
		t.Fatalf("producer balance: %v", err)
	}
	if producerBalance != 250 {
		t.Fatalf("producer balance = %d, want 250", producerBalance)
	}

	// A transactional failure must roll back every write of the operation:
	// the second claim fails on the duplicate-output check and leaves the
	// pool and account rows exactly as the first claim committed them.
	if _, err := payoutService.ClaimSubsidy(operatorCtx(producer), producer, installation.ID); err == nil {
		t.Fatal("expected second claim to fail")
	}
	status, err = poolService.Status(ctx)
	if err != nil {
		t.Fatalf("pool status after failed claim: %v", err)
	}
	if status.Balance != 999_750 || status.TotalPaidOut != 250 {
		t.Fatalf("failed claim must not change the pool: %+v", status)
	}
}

func tableExists(db *sql.DB, table string) bool {
	var exists bool
	err := db.QueryRow(`
SELECT EXISTS (
	SELECT 1
	FROM information_schema.tables
	WHERE table_schema = 'public' AND table_name = $1
)`, table).Scan(&exists)
	if err != nil {
		return false
	}
	return exists
}
