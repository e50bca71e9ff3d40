package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/benefitmart/internal/apperrors"
	"github.com/nkiryanov/benefitmart/internal/logger"
	"github.com/nkiryanov/benefitmart/internal/models"
	"github.com/nkiryanov/benefitmart/internal/repository"
)

type WalletService struct {
	storage repository.Storage
	logger  logger.Logger
	now     func() time.Time
}

type Option func(*WalletService)

func WithClock(now func() time.Time) Option {
	return func(s *WalletService) {
		s.now = now
	}
}

func NewService(storage repository.Storage, l logger.Logger, opts ...Option) *WalletService {
	s := &WalletService{
		storage: storage,
		logger:  l,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current returns caller's wallet of the running period
func (s *WalletService) Current(ctx context.Context, caller models.Caller) (models.Wallet, error) {
	w, err := s.storage.Wallet().GetCurrentWallet(ctx, caller.ID, caller.TenantID, s.now(), false)
	switch {
	case errors.Is(err, apperrors.ErrWalletNotFound):
		return w, apperrors.With(apperrors.ErrNotFound, "no active wallet")
	case err != nil:
		return w, fmt.Errorf("can't load wallet: %w", err)
	}
	return w, nil
}

// Ledger returns entries of caller's wallet, oldest first
func (s *WalletService) Ledger(ctx context.Context, caller models.Caller, walletID uuid.UUID) ([]models.LedgerEntry, error) {
	w, err := s.get(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if w.TenantID != caller.TenantID {
		return nil, apperrors.With(apperrors.ErrNotFound, "wallet not found")
	}
	if w.UserID != caller.ID {
		return nil, apperrors.With(apperrors.ErrForbidden, "wallet belongs to another user")
	}

	entries, err := s.storage.Ledger().ListEntries(ctx, walletID)
	if err != nil {
		return nil, fmt.Errorf("can't list ledger entries: %w", err)
	}
	return entries, nil
}

// Report compares cached wallet amounts with the ones derived from its ledger
type Report struct {
	WalletID       uuid.UUID
	Balance        int64
	Reserved       int64
	LedgerBalance  int64
	LedgerReserved int64
}

func (r Report) Consistent() bool {
	return r.Balance == r.LedgerBalance && r.Reserved == r.LedgerReserved
}

// Reconcile recomputes wallet amounts from the ledger
// Only reports drift, wallet is never changed
func (s *WalletService) Reconcile(ctx context.Context, caller models.Caller, walletID uuid.UUID) (Report, error) {
	w, err := s.get(ctx, walletID)
	if err != nil {
		return Report{}, err
	}
	if w.TenantID != caller.TenantID {
		return Report{}, apperrors.With(apperrors.ErrNotFound, "wallet not found")
	}

	totals, err := s.storage.Ledger().Totals(ctx, walletID)
	if err != nil {
		return Report{}, fmt.Errorf("can't sum ledger: %w", err)
	}

	r := Report{
		WalletID:      w.ID,
		Balance:       w.Balance,
		Reserved:      w.Reserved,
		LedgerBalance: totals[models.LedgerAccrual] - totals[models.LedgerSpend],
		LedgerReserved: max(0,
			totals[models.LedgerReserve]-totals[models.LedgerSpend]-totals[models.LedgerRelease]-totals[models.LedgerExpire]),
	}

	if !r.Consistent() {
		s.logger.Warn("Wallet drifted from ledger",
			"wallet_id", w.ID,
			"balance", r.Balance, "ledger_balance", r.LedgerBalance,
			"reserved", r.Reserved, "ledger_reserved", r.LedgerReserved,
		)
	}

	return r, nil
}

func (s *WalletService) get(ctx context.Context, walletID uuid.UUID) (models.Wallet, error) {
	w, err := s.storage.Wallet().GetWallet(ctx, walletID, false)
	switch {
	case errors.Is(err, apperrors.ErrWalletNotFound):
		return w, apperrors.With(apperrors.ErrNotFound, "wallet not found")
	case err != nil:
		return w, fmt.Errorf("can't load wallet: %w", err)
	}
	return w, nil
}
