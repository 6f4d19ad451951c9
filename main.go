package main

import (
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	apihttp "energy-subsidy/internal/api/http"
	"energy-subsidy/internal/audit"
	"energy-subsidy/internal/auth"
	"energy-subsidy/internal/bank"
	bankpg "energy-subsidy/internal/bank/postgres"
	"energy-subsidy/internal/config"
	"energy-subsidy/internal/governance"
	"energy-subsidy/internal/heights"
	"energy-subsidy/internal/identity"
	"energy-subsidy/internal/observability/metrics"
	oracleapp "energy-subsidy/internal/oracle/application"
	oracledomain "energy-subsidy/internal/oracle/domain"
	oraclemem "energy-subsidy/internal/oracle/infrastructure/memory"
	oraclepg "energy-subsidy/internal/oracle/infrastructure/postgres"
	oraclehttp "energy-subsidy/internal/oracle/interfaces/http"
	payoutapp "energy-subsidy/internal/payout/application"
	payoutdomain "energy-subsidy/internal/payout/domain"
	payoutmem "energy-subsidy/internal/payout/infrastructure/memory"
	payoutpg "energy-subsidy/internal/payout/infrastructure/postgres"
	payouthttp "energy-subsidy/internal/payout/interfaces/http"
	poolapp "energy-subsidy/internal/pool/application"
	pooldomain "energy-subsidy/internal/pool/domain"
	poolmem "energy-subsidy/internal/pool/infrastructure/memory"
	poolpg "energy-subsidy/internal/pool/infrastructure/postgres"
	poolhttp "energy-subsidy/internal/pool/interfaces/http"
	"energy-subsidy/internal/registry"
	registrypg "energy-subsidy/internal/registry/postgres"
	"energy-subsidy/internal/storage"
	storagepg "energy-subsidy/internal/storage/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := log.New(os.Stdout, "", log.LstdFlags)

	custody, err := identity.Parse(cfg.CustodyAddress)
	if err != nil {
		logger.Fatalf("custody address error: %v", err)
	}
	heightSource := heights.NewWallClock(cfg.GenesisTime, cfg.BlockInterval)
	gate := governance.RoleGate{}

	var (
		db          *sql.DB
		uow         storage.UnitOfWork
		poolRepo    pooldomain.Repository
		oracleRepo  oracledomain.Repository
		payoutRepo  payoutdomain.Repository
		transferer  bank.Transferer
		installIDs  payoutapp.InstallationRegistry
		auditLogger audit.Logger
	)

	if cfg.DatabaseURL != "" {
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("db open error: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatalf("db ping error: %v", err)
		}
		pgUow, err := storagepg.NewUnitOfWork(db)
		if err != nil {
			logger.Fatalf("unit of work error: %v", err)
		}
		uow = pgUow
		poolRepo = poolpg.NewRepository(db)
		oracleRepo = oraclepg.NewRepository(db)
		payoutRepo = payoutpg.NewRepository(db)
		transferer = bankpg.NewBank(db)
		installIDs = registrypg.NewRegistry(db)
		auditLogger = audit.NewRepository(db)
	} else {
		logger.Printf("no DATABASE_URL configured, using in-memory storage")
		uow = storage.NewSerial()
		poolRepo = poolmem.NewRepository()
		oracleRepo = oraclemem.NewRepository()
		payoutRepo = payoutmem.NewRepository()
		transferer = bank.NewMemoryBank()
		installIDs = registry.NewMemoryRegistry()
		auditLogger = audit.NewMemoryLogger()
	}
	metrics.Init(db, logger)

	poolService, err := poolapp.NewService(poolRepo, transferer, gate, heightSource, uow, custody)
	if err != nil {
		logger.Fatalf("pool service error: %v", err)
	}
	payoutService, err := payoutapp.NewService(payoutRepo, poolService.Bridge(), installIDs, gate, heightSource, uow)
	if err != nil {
		logger.Fatalf("payout service error: %v", err)
	}
	oracleService, err := oracleapp.NewService(oracleRepo, payoutService.Bridge(), gate, heightSource, uow)
	if err != nil {
		logger.Fatalf("oracle service error: %v", err)
	}
	payoutService.SetCapacityRegistrar(oracleService.Bridge())
	poolService.SetBalanceObserver(payoutService.Bridge())
	poolService.SetClaimSettler(payoutService.Bridge())

	poolHandler, err := poolhttp.NewHandler(poolService, auditLogger)
	if err != nil {
		logger.Fatalf("pool handler error: %v", err)
	}
	oracleHandler, err := oraclehttp.NewHandler(oracleService, auditLogger)
	if err != nil {
		logger.Fatalf("oracle handler error: %v", err)
	}
	payoutHandler, err := payouthttp.NewHandler(payoutService, auditLogger)
	if err != nil {
		logger.Fatalf("payout handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/pool", poolHandler)
	mux.Handle("/api/v1/pool/", poolHandler)
	mux.Handle("/api/v1/oracle", oracleHandler)
	mux.Handle("/api/v1/oracle/", oracleHandler)
	mux.Handle("/api/v1/installations", payoutHandler)
	mux.Handle("/api/v1/installations/", payoutHandler)
	mux.Handle("/api/v1/subsidy", payoutHandler)
	mux.Handle("/api/v1/subsidy/rate", payoutHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", apihttp.NewHealthzHandler(db))

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		elapsed := time.Since(start)
		metrics.ObserveHTTP(r.Method, r.URL.Path, resp.status, elapsed)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, elapsed)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
