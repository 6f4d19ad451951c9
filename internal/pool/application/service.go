package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"energy-subsidy/internal/bank"
	"energy-subsidy/internal/governance"
	"energy-subsidy/internal/identity"
	"energy-subsidy/internal/observability/metrics"
	pool "energy-subsidy/internal/pool/domain"
	"energy-subsidy/internal/storage"
)

// HeightSource supplies the current ledger height.
type HeightSource interface {
	Current() uint64
}

// BalanceObserver is told the pool balance after every change. The payout
// ledger uses it for capacity bookkeeping; a notification failure aborts the
// operation that caused it.
type BalanceObserver interface {
	NotifyPoolBalance(ctx context.Context, balance uint64) error
}

// ClaimSettler settles the currently payable claim of an installation on
// behalf of the transfer-to-payout path. The payout ledger implements it.
type ClaimSettler interface {
	SettleOpenClaim(ctx context.Context, installationID, amount uint64) error
}

// Service is the pool account: deposits, bounded withdrawals, freezes, and
// governance transfers against the single fund pool.
type Service struct {
	repo     pool.Repository
	transfer bank.Transferer
	gate     governance.Gate
	heights  HeightSource
	uow      storage.UnitOfWork
	observer BalanceObserver
	settler  ClaimSettler
	custody  identity.Address
}

// NewService constructs the pool service. The balance observer and claim
// settler are wired after construction because the payout service is built
// against this service's bridge.
func NewService(repo pool.Repository, transfer bank.Transferer, gate governance.Gate, heights HeightSource, uow storage.UnitOfWork, custody identity.Address) (*Service, error) {
	if repo == nil {
		return nil, errors.New("pool service: nil repository")
	}
	if transfer == nil {
		return nil, errors.New("pool service: nil transferer")
	}
	if gate == nil {
		return nil, errors.New("pool service: nil governance gate")
	}
	if heights == nil {
		return nil, errors.New("pool service: nil height source")
	}
	if uow == nil {
		return nil, errors.New("pool service: nil unit of work")
	}
	if custody.IsZero() {
		return nil, errors.New("pool service: empty custody address")
	}
	return &Service{
		repo:     repo,
		transfer: transfer,
		gate:     gate,
		heights:  heights,
		uow:      uow,
		custody:  custody,
	}, nil
}

// SetBalanceObserver wires the payout-side balance observer.
func (s *Service) SetBalanceObserver(observer BalanceObserver) { s.observer = observer }

// SetClaimSettler wires the payout-side claim settler.
func (s *Service) SetClaimSettler(settler ClaimSettler) { s.settler = settler }

// Deposit transfers amount from the depositor into pool custody and credits
// the pool. Fails on a zero amount or a frozen pool; a failed currency
// transfer or balance notification aborts the whole operation.
func (s *Service) Deposit(ctx context.Context, depositor identity.Address, amount uint64) error {
	start := time.Now()
	err := s.uow.Within(ctx, func(ctx context.Context) error {
		return s.deposit(ctx, depositor, amount)
	})
	metrics.ObservePoolOp("deposit", err, time.Since(start))
	return err
}

func (s *Service) deposit(ctx context.Context, depositor identity.Address, amount uint64) error {
	if amount == 0 {
		return pool.ErrInvalidAmount
	}
	if depositor.IsZero() {
		return identity.ErrInvalidAddress
	}
	height := s.heights.Current()

	p, err := s.repo.LoadPool(ctx)
	if err != nil {
		return err
	}
	if p.Frozen(height) {
		return pool.ErrFrozen
	}

	record, err := s.repo.FindDeposit(ctx, depositor)
	if err != nil {
		return err
	}
	if record == nil {
		record = &pool.DepositRecord{Depositor: depositor, DepositedAtHeight: height}
	}
	record.Amount += amount

	// Every fallible step runs before the first repository write: the
	// aggregate mutation is local until SavePool, so a failed notification
	// or transfer leaves no observable state.
	if err := p.ApplyDeposit(amount); err != nil {
		return err
	}
	if err := s.notifyBalance(ctx, p.Balance()); err != nil {
		return err
	}
	if err := s.transfer.Transfer(ctx, depositor, s.custody, amount); err != nil {
		return fmt.Errorf("pool: deposit transfer: %w", err)
	}
	if err := s.repo.SavePool(ctx, p); err != nil {
		return err
	}
	return s.repo.SaveDeposit(ctx, record)
}

// WithdrawDeposit returns part of a depositor's principal. Bookkeeping and
// the outbound transfer commit or fail together.
func (s *Service) WithdrawDeposit(ctx context.Context, depositor identity.Address, amount uint64) error {
	start := time.Now()
	err := s.uow.Within(ctx, func(ctx context.Context) error {
		return s.withdrawDeposit(ctx, depositor, amount)
	})
	metrics.ObservePoolOp("withdraw", err, time.Since(start))
	return err
}

func (s *Service) withdrawDeposit(ctx context.Context, depositor identity.Address, amount uint64) error {
	if amount == 0 {
		return pool.ErrInvalidAmount
	}
	height := s.heights.Current()

	p, err := s.repo.LoadPool(ctx)
	if err != nil {
		return err
	}
	if p.Frozen(height) {
		return pool.ErrFrozen
	}

	record, err := s.repo.FindDeposit(ctx, depositor)
	if err != nil {
		return err
	}
	if record == nil {
		return pool.ErrDepositorNotFound
	}
	if amount > record.Amount {
		return pool.ErrInvalidAmount
	}

	withdrawal, err := s.repo.FindWithdrawal(ctx, depositor)
	if err != nil {
		return err
	}
	if withdrawal == nil {
		withdrawal = &pool.WithdrawalRecord{Depositor: depositor}
	}

	record.Amount -= amount
	record.LastWithdrawalHeight = height
	withdrawal.TotalWithdrawn += amount
	withdrawal.LastWithdrawalHeight = height
	if err := p.ApplyWithdrawal(amount); err != nil {
		return err
	}
	if err := s.notifyBalance(ctx, p.Balance()); err != nil {
		return err
	}
	if err := s.transfer.Transfer(ctx, s.custody, depositor, amount); err != nil {
		return fmt.Errorf("pool: withdrawal transfer: %w", err)
	}

	if err := s.repo.SavePool(ctx, p); err != nil {
		return err
	}
	if err := s.repo.SaveDeposit(ctx, record); err != nil {
		return err
	}
	return s.repo.SaveWithdrawal(ctx, withdrawal)
}

// CanWithdraw is the pure withdrawal-capacity predicate against the current
// balance and freeze state.
func (s *Service) CanWithdraw(ctx context.Context, amount uint64) (bool, error) {
	p, err := s.repo.LoadPool(ctx)
	if err != nil {
		return false, err
	}
	return p.CanWithdraw(amount, s.heights.Current()), nil
}

// TransferToPayout settles the currently payable claim of an installation.
// Callable by anyone; the payout ledger validates the claim and resolves the
// recipient, and the withdrawal cap gates the debit.
func (s *Service) TransferToPayout(ctx context.Context, installationID, amount uint64) error {
	start := time.Now()
	err := s.uow.Within(ctx, func(ctx context.Context) error {
		if s.settler == nil {
			return errors.New("pool service: no claim settler wired")
		}
		return s.settler.SettleOpenClaim(ctx, installationID, amount)
	})
	metrics.ObservePoolOp("transfer_to_payout", err, time.Since(start))
	return err
}

// GovernanceWithdraw moves pool funds to an external recipient. Admin only,
// capped like any withdrawal, and never to the pool's own custody address.
func (s *Service) GovernanceWithdraw(ctx context.Context, amount uint64, recipient identity.Address) error {
	start := time.Now()
	err := s.uow.Within(ctx, func(ctx context.Context) error {
		return s.governanceWithdraw(ctx, amount, recipient)
	})
	metrics.ObservePoolOp("governance_withdraw", err, time.Since(start))
	return err
}

func (s *Service) governanceWithdraw(ctx context.Context, amount uint64, recipient identity.Address) error {
	if err := s.gate.RequireAdmin(ctx); err != nil {
		return err
	}
	if amount == 0 {
		return pool.ErrInvalidAmount
	}
	if recipient.IsZero() {
		return identity.ErrInvalidAddress
	}
	if recipient == s.custody {
		return pool.ErrSelfTransfer
	}
	height := s.heights.Current()

	p, err := s.repo.LoadPool(ctx)
	if err != nil {
		return err
	}
	if p.Frozen(height) {
		return pool.ErrFrozen
	}
	if !p.CanWithdraw(amount, height) {
		return pool.ErrCapacityExceeded
	}

	if err := p.ApplyWithdrawal(amount); err != nil {
		return err
	}
	if err := s.notifyBalance(ctx, p.Balance()); err != nil {
		return err
	}
	if err := s.transfer.Transfer(ctx, s.custody, recipient, amount); err != nil {
		return fmt.Errorf("pool: governance transfer: %w", err)
	}
	return s.repo.SavePool(ctx, p)
}

// Freeze freezes the pool, either manually (indefinite) or as a bounded
// emergency freeze anchored at the current height. Admin only.
func (s *Service) Freeze(ctx context.Context, emergency bool) error {
	return s.uow.Within(ctx, func(ctx context.Context) error {
		if err := s.gate.RequireAdmin(ctx); err != nil {
			return err
		}
		p, err := s.repo.LoadPool(ctx)
		if err != nil {
			return err
		}
		height := s.heights.Current()
		if emergency {
			err = p.SetEmergencyFreeze(height)
		} else {
			err = p.SetManualFreeze(height)
		}
		if err != nil {
			return err
		}
		return s.repo.SavePool(ctx, p)
	})
}

// Unfreeze clears the freeze markers. Admin only.
func (s *Service) Unfreeze(ctx context.Context) error {
	return s.uow.Within(ctx, func(ctx context.Context) error {
		if err := s.gate.RequireAdmin(ctx); err != nil {
			return err
		}
		p, err := s.repo.LoadPool(ctx)
		if err != nil {
			return err
		}
		if err := p.Unfreeze(s.heights.Current()); err != nil {
			return err
		}
		return s.repo.SavePool(ctx, p)
	})
}

// Status returns a read-only snapshot of the pool.
func (s *Service) Status(ctx context.Context) (*PoolStatus, error) {
	p, err := s.repo.LoadPool(ctx)
	if err != nil {
		return nil, err
	}
	height := s.heights.Current()
	emergencySet, emergencyHeight := p.EmergencyFreeze()
	return &PoolStatus{
		Balance:               p.Balance(),
		TotalDeposited:        p.TotalDeposited(),
		TotalWithdrawn:        p.TotalWithdrawn(),
		TotalPaidOut:          p.TotalPaidOut(),
		Frozen:                p.Frozen(height),
		FrozenManual:          p.FrozenManual(),
		EmergencyFreezeSet:    emergencySet,
		EmergencyFreezeHeight: emergencyHeight,
		Height:                height,
	}, nil
}

// DepositOf returns the deposit record of one depositor.
func (s *Service) DepositOf(ctx context.Context, depositor identity.Address) (*pool.DepositRecord, error) {
	record, err := s.repo.FindDeposit(ctx, depositor)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, pool.ErrDepositorNotFound
	}
	return record, nil
}

// PoolStatus is the read model returned by Status.
type PoolStatus struct {
	Balance               uint64 `json:"balance"`
	TotalDeposited        uint64 `json:"total_deposited"`
	TotalWithdrawn        uint64 `json:"total_withdrawn"`
	TotalPaidOut          uint64 `json:"total_paid_out"`
	Frozen                bool   `json:"frozen"`
	FrozenManual          bool   `json:"frozen_manual"`
	EmergencyFreezeSet    bool   `json:"emergency_freeze_set"`
	EmergencyFreezeHeight uint64 `json:"emergency_freeze_height,omitempty"`
	Height                uint64 `json:"height"`
}

func (s *Service) notifyBalance(ctx context.Context, balance uint64) error {
	if s.observer == nil {
		return nil
	}
	if err := s.observer.NotifyPoolBalance(ctx, balance); err != nil {
		return fmt.Errorf("pool: balance notification: %w", err)
	}
	return nil
}

// Bridge returns the settlement-side view of the pool used by the payout
// ledger. Bridge methods run inside the caller's unit-of-work scope and
// never open their own.
func (s *Service) Bridge() *Bridge {
	return &Bridge{service: s}
}

// Bridge exposes the pool to the payout ledger.
type Bridge struct {
	service *Service
}

// AvailableBalance returns the current pool balance.
func (b *Bridge) AvailableBalance(ctx context.Context) (uint64, error) {
	p, err := b.service.repo.LoadPool(ctx)
	if err != nil {
		return 0, err
	}
	return p.Balance(), nil
}

// Settle debits a subsidy payout and delivers it to the recipient. The
// debit is gated by the same capacity predicate as any withdrawal;
// bookkeeping is persisted only after the notification and transfer succeed.
func (b *Bridge) Settle(ctx context.Context, amount uint64, recipient identity.Address) error {
	s := b.service
	if amount == 0 {
		return pool.ErrInvalidAmount
	}
	if recipient.IsZero() {
		return identity.ErrInvalidAddress
	}
	height := s.heights.Current()

	p, err := s.repo.LoadPool(ctx)
	if err != nil {
		return err
	}
	if p.Frozen(height) {
		return pool.ErrFrozen
	}
	if !p.CanWithdraw(amount, height) {
		return pool.ErrCapacityExceeded
	}

	if err := p.ApplyPayout(amount); err != nil {
		return err
	}
	if err := s.notifyBalance(ctx, p.Balance()); err != nil {
		return err
	}
	if err := s.transfer.Transfer(ctx, s.custody, recipient, amount); err != nil {
		return fmt.Errorf("pool: settlement transfer: %w", err)
	}
	return s.repo.SavePool(ctx, p)
}
