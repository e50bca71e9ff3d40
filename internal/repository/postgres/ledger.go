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

type LedgerRepo struct {
	DB DBTX
}

const ledgerColumns = `id, wallet_id, tenant_id, order_id, type, amount, description, created_at`

const appendEntry = `-- name: AppendEntry
INSERT INTO point_ledger (id, wallet_id, tenant_id, order_id, type, amount, description, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + ledgerColumns

func (r *LedgerRepo) Append(ctx context.Context, e models.LedgerEntry) (models.LedgerEntry, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	rows, _ := r.DB.Query(ctx, appendEntry, e.ID, e.WalletID, e.TenantID, e.OrderID, e.Type, e.Amount, e.Description, e.CreatedAt)
	entry, err := pgx.CollectOneRow(rows, rowToLedgerEntry)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation && e.Type == models.LedgerAccrual {
			return entry, apperrors.ErrAccrualAlreadyExists
		}
		return entry, fmt.Errorf("db error: %w", err)
	}

	return entry, nil
}

const hasEntry = `-- name: HasEntry
SELECT EXISTS (SELECT 1 FROM point_ledger WHERE wallet_id = $1 AND type = $2)
`

func (r *LedgerRepo) HasEntry(ctx context.Context, walletID uuid.UUID, entryType string) (bool, error) {
	rows, _ := r.DB.Query(ctx, hasEntry, walletID, entryType)
	exists, err := pgx.CollectOneRow(rows, pgx.RowTo[bool])
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

const listEntries = `-- name: ListEntries
SELECT ` + ledgerColumns + ` FROM point_ledger
WHERE wallet_id = $1
ORDER BY created_at, id
`

func (r *LedgerRepo) ListEntries(ctx context.Context, walletID uuid.UUID) ([]models.LedgerEntry, error) {
	rows, _ := r.DB.Query(ctx, listEntries, walletID)
	entries, err := pgx.CollectRows(rows, rowToLedgerEntry)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return entries, nil
}

const ledgerTotals = `-- name: LedgerTotals
SELECT type, COALESCE(SUM(amount), 0)::BIGINT
FROM point_ledger
WHERE wallet_id = $1
GROUP BY type
`

func (r *LedgerRepo) Totals(ctx context.Context, walletID uuid.UUID) (map[string]int64, error) {
	rows, _ := r.DB.Query(ctx, ledgerTotals, walletID)

	type total struct {
		Type   string
		Amount int64
	}
	totals, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (total, error) {
		var t total
		err := row.Scan(&t.Type, &t.Amount)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	out := make(map[string]int64, len(totals))
	for _, t := range totals {
		out[t.Type] = t.Amount
	}
	return out, nil
}

func rowToLedgerEntry(row pgx.CollectableRow) (models.LedgerEntry, error) {
	var e models.LedgerEntry
	err := row.Scan(&e.ID, &e.WalletID, &e.TenantID, &e.OrderID, &e.Type, &e.Amount, &e.Description, &e.CreatedAt)
	return e, err
}
