package accrual

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
	"github.com/nkiryanov/benefitmart/internal/service/eligibility"
)

type UserError struct {
	UserID uuid.UUID
	Error  string
}

type Result struct {
	Processed int
	Accrued   int
	Skipped   int
	Errors    []UserError
}

type outcome int

const (
	outcomeAccrued outcome = iota
	outcomeSkipped
)

type AccrualService struct {
	storage repository.Storage
	logger  logger.Logger
	now     func() time.Time
}

type Option func(*AccrualService)

func WithClock(now func() time.Time) Option {
	return func(s *AccrualService) {
		s.now = now
	}
}

func NewService(storage repository.Storage, l logger.Logger, opts ...Option) *AccrualService {
	s := &AccrualService{
		storage: storage,
		logger:  l,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run credits every tenant employee with points of their budget policy for the current period
// Each employee is processed in own transaction. Failures are collected, not returned
// Running twice in the same period accrues nothing the second time
func (s *AccrualService) Run(ctx context.Context, tenantID uuid.UUID) (Result, error) {
	var res Result

	policies, err := s.storage.Rules().ListActivePolicies(ctx, tenantID)
	if err != nil {
		return res, fmt.Errorf("can't load budget policies: %w", err)
	}

	profiles, err := s.storage.Profile().ListProfiles(ctx, tenantID)
	if err != nil {
		return res, fmt.Errorf("can't load employee profiles: %w", err)
	}

	now := s.now()
	for _, profile := range profiles {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		res.Processed++
		out, err := s.accrue(ctx, profile, policies, now)

		switch {
		case err != nil:
			s.logger.Error("Accrual failed", "user_id", profile.UserID, "tenant_id", tenantID, "error", err)
			res.Errors = append(res.Errors, UserError{UserID: profile.UserID, Error: err.Error()})
		case out == outcomeAccrued:
			res.Accrued++
		default:
			res.Skipped++
		}
	}

	s.logger.Info("Accrual finished",
		"tenant_id", tenantID,
		"processed", res.Processed,
		"accrued", res.Accrued,
		"skipped", res.Skipped,
		"errors", len(res.Errors),
	)

	return res, nil
}

func (s *AccrualService) accrue(ctx context.Context, profile models.EmployeeProfile, policies []models.BudgetPolicy, now time.Time) (outcome, error) {
	policy, ok := eligibility.MatchPolicy(profile, policies)
	if !ok {
		return outcomeSkipped, nil
	}

	label, expiresAt, err := Period(policy.Period, now)
	if err != nil {
		return outcomeSkipped, err
	}

	out := outcomeAccrued
	err = s.storage.InTx(ctx, func(tx repository.Storage) error {
		wallet, err := tx.Wallet().GetWalletForPeriod(ctx, profile.UserID, profile.TenantID, label, true)

		switch {
		case errors.Is(err, apperrors.ErrWalletNotFound):
			wallet, err = tx.Wallet().CreateWallet(ctx, models.Wallet{
				UserID:    profile.UserID,
				TenantID:  profile.TenantID,
				Balance:   policy.PointsAmount,
				Period:    label,
				ExpiresAt: expiresAt,
			})
			if err != nil {
				return err
			}

		case err != nil:
			return err

		default:
			accrued, err := tx.Ledger().HasEntry(ctx, wallet.ID, models.LedgerAccrual)
			if err != nil {
				return err
			}
			if accrued {
				out = outcomeSkipped
				return nil
			}

			wallet, err = tx.Wallet().AddBalance(ctx, wallet.ID, policy.PointsAmount)
			if err != nil {
				return err
			}
		}

		_, err = tx.Ledger().Append(ctx, models.LedgerEntry{
			WalletID:    wallet.ID,
			TenantID:    profile.TenantID,
			Type:        models.LedgerAccrual,
			Amount:      policy.PointsAmount,
			Description: fmt.Sprintf("%s accrual %s", policy.Name, label),
		})
		return err
	})

	// Concurrent run got there first
	if errors.Is(err, apperrors.ErrWalletAlreadyExists) || errors.Is(err, apperrors.ErrAccrualAlreadyExists) {
		return outcomeSkipped, nil
	}

	return out, err
}
