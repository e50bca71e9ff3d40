package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/benefitmart/internal/apperrors"
	"github.com/nkiryanov/benefitmart/internal/models"
)

type WalletRepo struct {
	DB DBTX
}

const walletColumns = `id, user_id, tenant_id, balance, reserved, period, expires_at, created_at, updated_at`

const createWallet = `-- name: CreateWallet
INSERT INTO wallets (id, user_id, tenant_id, balance, reserved, period, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + walletColumns

func (r *WalletRepo) CreateWallet(ctx context.Context, w models.Wallet) (models.Wallet, error) {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}

	rows, _ := r.DB.Query(ctx, createWallet, w.ID, w.UserID, w.TenantID, w.Balance, w.Reserved, w.Period, w.ExpiresAt)
	wallet, err := pgx.CollectOneRow(rows, rowToWallet)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return wallet, apperrors.ErrWalletAlreadyExists
		}
		return wallet, fmt.Errorf("db error: %w", err)
	}

	return wallet, nil
}

const getWallet = `-- name: GetWallet
SELECT ` + walletColumns + ` FROM wallets
WHERE id = $1
`

func (r *WalletRepo) GetWallet(ctx context.Context, id uuid.UUID, forUpdate bool) (models.Wallet, error) {
	rows, _ := r.DB.Query(ctx, getWallet+lockClause(forUpdate), id)
	return collectWallet(rows)
}

const getWalletForPeriod = `-- name: GetWalletForPeriod
SELECT ` + walletColumns + ` FROM wallets
WHERE user_id = $1 AND tenant_id = $2 AND period = $3
`

func (r *WalletRepo) GetWalletForPeriod(ctx context.Context, userID uuid.UUID, tenantID uuid.UUID, period string, forUpdate bool) (models.Wallet, error) {
	rows, _ := r.DB.Query(ctx, getWalletForPeriod+lockClause(forUpdate), userID, tenantID, period)
	return collectWallet(rows)
}

const getCurrentWallet = `-- name: GetCurrentWallet
SELECT ` + walletColumns + ` FROM wallets
WHERE user_id = $1 AND tenant_id = $2 AND expires_at >= $3
ORDER BY expires_at DESC, created_at DESC
LIMIT 1
`

func (r *WalletRepo) GetCurrentWallet(ctx context.Context, userID uuid.UUID, tenantID uuid.UUID, now time.Time, forUpdate bool) (models.Wallet, error) {
	rows, _ := r.DB.Query(ctx, getCurrentWallet+lockClause(forUpdate), userID, tenantID, now)
	return collectWallet(rows)
}

const addBalance = `-- name: AddBalance
UPDATE wallets
SET balance = balance + $2, updated_at = now()
WHERE id = $1
RETURNING ` + walletColumns

func (r *WalletRepo) AddBalance(ctx context.Context, id uuid.UUID, amount int64) (models.Wallet, error) {
	rows, _ := r.DB.Query(ctx, addBalance, id, amount)
	return collectWallet(rows)
}

// Conditional increment: concurrent reservations can't overdraw the wallet
// even without an explicit row lock
const reserveWallet = `-- name: Reserve
UPDATE wallets
SET reserved = reserved + $2, updated_at = now()
WHERE id = $1 AND balance - reserved >= $2
RETURNING ` + walletColumns

func (r *WalletRepo) Reserve(ctx context.Context, id uuid.UUID, amount int64) (models.Wallet, error) {
	rows, _ := r.DB.Query(ctx, reserveWallet, id, amount)
	wallet, err := collectWallet(rows)
	if errors.Is(err, apperrors.ErrWalletNotFound) {
		return wallet, apperrors.ErrBalanceInsufficient
	}
	return wallet, err
}

const spendWallet = `-- name: Spend
UPDATE wallets
SET balance = balance - $2, reserved = reserved - $2, updated_at = now()
WHERE id = $1 AND reserved >= $2
RETURNING ` + walletColumns

func (r *WalletRepo) Spend(ctx context.Context, id uuid.UUID, amount int64) (models.Wallet, error) {
	rows, _ := r.DB.Query(ctx, spendWallet, id, amount)
	wallet, err := collectWallet(rows)
	if errors.Is(err, apperrors.ErrWalletNotFound) {
		return wallet, apperrors.ErrReservationMismatch
	}
	return wallet, err
}

const releaseWallet = `-- name: Release
UPDATE wallets
SET reserved = GREATEST(0, reserved - $2), updated_at = now()
WHERE id = $1
RETURNING ` + walletColumns

func (r *WalletRepo) Release(ctx context.Context, id uuid.UUID, amount int64) (models.Wallet, error) {
	rows, _ := r.DB.Query(ctx, releaseWallet, id, amount)
	return collectWallet(rows)
}

func collectWallet(rows pgx.Rows) (models.Wallet, error) {
	wallet, err := pgx.CollectOneRow(rows, rowToWallet)

	switch {
	case err == nil:
		return wallet, nil
	case errors.Is(err, pgx.ErrNoRows):
		return wallet, apperrors.ErrWalletNotFound
	default:
		return wallet, fmt.Errorf("db error: %w", err)
	}
}

func rowToWallet(row pgx.CollectableRow) (models.Wallet, error) {
	var w models.Wallet
	err := row.Scan(&w.ID, &w.UserID, &w.TenantID, &w.Balance, &w.Reserved, &w.Period, &w.ExpiresAt, &w.CreatedAt, &w.UpdatedAt)
	return w, err
}
