package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/benefitmart/internal/apperrors"
	"github.com/nkiryanov/benefitmart/internal/models"
)

type CatalogRepo struct {
	DB DBTX
}

const benefitColumns = `id, tenant_id, name, description, price_points, stock_limit, is_active, created_at`

const createBenefit = `-- name: CreateBenefit
INSERT INTO benefits (id, tenant_id, name, description, price_points, stock_limit, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + benefitColumns

func (r *CatalogRepo) CreateBenefit(ctx context.Context, b models.Benefit) (models.Benefit, error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}

	rows, _ := r.DB.Query(ctx, createBenefit, b.ID, b.TenantID, b.Name, b.Description, b.PricePoints, b.StockLimit, b.IsActive)
	created, err := pgx.CollectOneRow(rows, rowToBenefit)
	if err != nil {
		return created, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

const getBenefit = `-- name: GetBenefit
SELECT ` + benefitColumns + ` FROM benefits
WHERE tenant_id = $1 AND id = $2 AND is_active
`

func (r *CatalogRepo) GetBenefit(ctx context.Context, tenantID uuid.UUID, id uuid.UUID) (models.Benefit, error) {
	rows, _ := r.DB.Query(ctx, getBenefit, tenantID, id)
	benefit, err := pgx.CollectOneRow(rows, rowToBenefit)

	switch {
	case err == nil:
		return benefit, nil
	case errors.Is(err, pgx.ErrNoRows):
		return benefit, apperrors.ErrBenefitNotFound
	default:
		return benefit, fmt.Errorf("db error: %w", err)
	}
}

const listActiveBenefits = `-- name: ListActiveBenefits
SELECT ` + benefitColumns + ` FROM benefits
WHERE tenant_id = $1 AND id = ANY($2) AND is_active
ORDER BY id
`

func (r *CatalogRepo) ListActiveBenefits(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID, forUpdate bool) ([]models.Benefit, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, _ := r.DB.Query(ctx, listActiveBenefits+lockClause(forUpdate), tenantID, ids)
	benefits, err := pgx.CollectRows(rows, rowToBenefit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return benefits, nil
}

const adjustBenefitStock = `-- name: AdjustBenefitStock
UPDATE benefits
SET stock_limit = stock_limit + $2
WHERE id = $1 AND stock_limit IS NOT NULL
`

func (r *CatalogRepo) AdjustBenefitStock(ctx context.Context, benefitID uuid.UUID, delta int64) error {
	_, err := r.DB.Exec(ctx, adjustBenefitStock, benefitID, delta)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func rowToBenefit(row pgx.CollectableRow) (models.Benefit, error) {
	var b models.Benefit
	err := row.Scan(&b.ID, &b.TenantID, &b.Name, &b.Description, &b.PricePoints, &b.StockLimit, &b.IsActive, &b.CreatedAt)
	return b, err
}

const createProvider = `-- name: CreateProvider
INSERT INTO providers (id, name, status)
VALUES ($1, $2, $3)
RETURNING id, name, status, created_at
`

func (r *CatalogRepo) CreateProvider(ctx context.Context, p models.Provider) (models.Provider, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	rows, _ := r.DB.Query(ctx, createProvider, p.ID, p.Name, p.Status)
	created, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (models.Provider, error) {
		var p models.Provider
		err := row.Scan(&p.ID, &p.Name, &p.Status, &p.CreatedAt)
		return p, err
	})
	if err != nil {
		return created, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

const createProviderOffering = `-- name: CreateProviderOffering
INSERT INTO provider_offerings (id, provider_id, name, description, base_price_points, stock_limit, status)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, provider_id, name, description, base_price_points, stock_limit, status, created_at
`

func (r *CatalogRepo) CreateProviderOffering(ctx context.Context, o models.ProviderOffering) (models.ProviderOffering, error) {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}

	rows, _ := r.DB.Query(ctx, createProviderOffering, o.ID, o.ProviderID, o.Name, o.Description, o.BasePricePoints, o.StockLimit, o.Status)
	created, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (models.ProviderOffering, error) {
		var o models.ProviderOffering
		err := row.Scan(&o.ID, &o.ProviderID, &o.Name, &o.Description, &o.BasePricePoints, &o.StockLimit, &o.Status, &o.CreatedAt)
		return o, err
	})
	if err != nil {
		return created, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

const createTenantOffering = `-- name: CreateTenantOffering
INSERT INTO tenant_offerings (id, tenant_id, provider_offering_id, custom_price_points, stock_limit_override, is_active)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, tenant_id, provider_offering_id, custom_price_points, stock_limit_override, is_active, created_at
`

func (r *CatalogRepo) CreateTenantOffering(ctx context.Context, o models.TenantOffering) (models.TenantOffering, error) {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}

	rows, _ := r.DB.Query(ctx, createTenantOffering, o.ID, o.TenantID, o.ProviderOfferingID, o.CustomPricePoints, o.StockLimitOverride, o.IsActive)
	created, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (models.TenantOffering, error) {
		var o models.TenantOffering
		err := row.Scan(&o.ID, &o.TenantID, &o.ProviderOfferingID, &o.CustomPricePoints, &o.StockLimitOverride, &o.IsActive, &o.CreatedAt)
		return o, err
	})
	if err != nil {
		return created, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

const getMarketplaceOffering = `-- name: GetMarketplaceOffering
SELECT
	t.id, t.tenant_id, t.provider_offering_id, t.custom_price_points, t.stock_limit_override, t.is_active, t.created_at,
	o.id, o.provider_id, o.name, o.description, o.base_price_points, o.stock_limit, o.status, o.created_at,
	p.id, p.name, p.status, p.created_at
FROM tenant_offerings t
JOIN provider_offerings o ON o.id = t.provider_offering_id
JOIN providers p ON p.id = o.provider_id
WHERE t.tenant_id = $1 AND t.id = $2 AND t.is_active
`

func (r *CatalogRepo) GetMarketplaceOffering(ctx context.Context, tenantID uuid.UUID, tenantOfferingID uuid.UUID, forUpdate bool) (models.MarketplaceOffering, error) {
	query := getMarketplaceOffering
	if forUpdate {
		query += " FOR UPDATE OF t, o"
	}

	rows, _ := r.DB.Query(ctx, query, tenantID, tenantOfferingID)
	offering, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (models.MarketplaceOffering, error) {
		var m models.MarketplaceOffering
		t, o, p := &m.TenantOffering, &m.Offering, &m.Provider
		err := row.Scan(
			&t.ID, &t.TenantID, &t.ProviderOfferingID, &t.CustomPricePoints, &t.StockLimitOverride, &t.IsActive, &t.CreatedAt,
			&o.ID, &o.ProviderID, &o.Name, &o.Description, &o.BasePricePoints, &o.StockLimit, &o.Status, &o.CreatedAt,
			&p.ID, &p.Name, &p.Status, &p.CreatedAt,
		)
		return m, err
	})

	switch {
	case err == nil:
		return offering, nil
	case errors.Is(err, pgx.ErrNoRows):
		return offering, apperrors.ErrOfferingNotFound
	default:
		return offering, fmt.Errorf("db error: %w", err)
	}
}

// Tenant override takes the delta when set, provider offering stock otherwise
// The same rule decides effective stock in models.MarketplaceOffering
const adjustOfferingStock = `-- name: AdjustOfferingStock
WITH tenant_stock AS (
	UPDATE tenant_offerings
	SET stock_limit_override = stock_limit_override + $2
	WHERE id = $1 AND stock_limit_override IS NOT NULL
	RETURNING id
)
UPDATE provider_offerings o
SET stock_limit = o.stock_limit + $2
FROM tenant_offerings t
WHERE t.id = $1
	AND o.id = t.provider_offering_id
	AND o.stock_limit IS NOT NULL
	AND NOT EXISTS (SELECT 1 FROM tenant_stock)
`

func (r *CatalogRepo) AdjustOfferingStock(ctx context.Context, tenantOfferingID uuid.UUID, delta int64) error {
	_, err := r.DB.Exec(ctx, adjustOfferingStock, tenantOfferingID, delta)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
