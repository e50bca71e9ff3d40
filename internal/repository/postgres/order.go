package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/benefitmart/internal/apperrors"
	"github.com/nkiryanov/benefitmart/internal/models"
)

type OrderRepo struct {
	DB DBTX
}

const orderColumns = `id, user_id, tenant_id, wallet_id, status, total_points, reserved_at, expires_at, created_at, updated_at`

const createOrder = `-- name: CreateOrder
INSERT INTO orders (id, user_id, tenant_id, wallet_id, status, total_points, reserved_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + orderColumns

func (r *OrderRepo) CreateOrder(ctx context.Context, o models.Order) (models.Order, error) {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}

	rows, _ := r.DB.Query(ctx, createOrder, o.ID, o.UserID, o.TenantID, o.WalletID, o.Status, o.TotalPoints, o.ReservedAt, o.ExpiresAt)
	order, err := pgx.CollectOneRow(rows, rowToOrder)
	if err != nil {
		return order, fmt.Errorf("db error: %w", err)
	}

	return order, nil
}

const createItem = `-- name: CreateItem
INSERT INTO order_items (id, order_id, benefit_id, tenant_offering_id, provider_offering_id, quantity, price_points)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id
`

// Items are inserted in one round trip
func (r *OrderRepo) CreateItems(ctx context.Context, items []models.OrderItem) ([]models.OrderItem, error) {
	batch := &pgx.Batch{}
	for i := range items {
		if items[i].ID == uuid.Nil {
			items[i].ID = uuid.New()
		}
		it := items[i]
		batch.Queue(createItem, it.ID, it.OrderID, it.BenefitID, it.TenantOfferingID, it.ProviderOfferingID, it.Quantity, it.PricePoints)
	}

	results := r.DB.SendBatch(ctx, batch)
	defer results.Close() // nolint:errcheck

	for range items {
		if _, err := results.Exec(); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
	}

	return items, nil
}

const getOrder = `-- name: GetOrder
SELECT ` + orderColumns + ` FROM orders
WHERE id = $1
`

func (r *OrderRepo) GetOrder(ctx context.Context, id uuid.UUID, forUpdate bool) (models.Order, error) {
	rows, _ := r.DB.Query(ctx, getOrder+lockClause(forUpdate), id)
	return collectOrder(rows)
}

const listOrders = `-- name: ListOrders
SELECT ` + orderColumns + ` FROM orders
WHERE user_id = $1 AND tenant_id = $2
ORDER BY created_at DESC, id
`

func (r *OrderRepo) ListOrders(ctx context.Context, userID uuid.UUID, tenantID uuid.UUID) ([]models.Order, error) {
	rows, _ := r.DB.Query(ctx, listOrders, userID, tenantID)
	orders, err := pgx.CollectRows(rows, rowToOrder)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return orders, nil
}

// Display data comes from whichever catalog the item was taken from
const listItems = `-- name: ListItems
SELECT
	i.id, i.order_id, i.benefit_id, i.tenant_offering_id, i.provider_offering_id, i.quantity, i.price_points,
	COALESCE(b.name, po.name), COALESCE(b.description, po.description),
	COALESCE(b.price_points, t.custom_price_points, po.base_price_points)
FROM order_items i
LEFT JOIN benefits b ON b.id = i.benefit_id
LEFT JOIN tenant_offerings t ON t.id = i.tenant_offering_id
LEFT JOIN provider_offerings po ON po.id = i.provider_offering_id
WHERE i.order_id = ANY($1)
ORDER BY i.order_id, i.id
`

func (r *OrderRepo) ListItems(ctx context.Context, orderIDs []uuid.UUID) ([]models.OrderItem, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}

	rows, _ := r.DB.Query(ctx, listItems, orderIDs)
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.OrderItem, error) {
		var (
			it          models.OrderItem
			name        *string
			description *string
			price       *int64
		)
		err := row.Scan(
			&it.ID, &it.OrderID, &it.BenefitID, &it.TenantOfferingID, &it.ProviderOfferingID, &it.Quantity, &it.PricePoints,
			&name, &description, &price,
		)
		if err == nil && name != nil {
			it.Display = &models.ItemDisplay{Name: *name}
			if description != nil {
				it.Display.Description = *description
			}
			if price != nil {
				it.Display.PricePoints = *price
			}
		}
		return it, err
	})
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return items, nil
}

const setOrderStatus = `-- name: SetOrderStatus
UPDATE orders
SET status = $3, updated_at = now()
WHERE id = $1 AND status = $2
RETURNING ` + orderColumns

func (r *OrderRepo) SetStatus(ctx context.Context, id uuid.UUID, from string, to string) (models.Order, error) {
	rows, _ := r.DB.Query(ctx, setOrderStatus, id, from, to)
	order, err := collectOrder(rows)
	if errors.Is(err, apperrors.ErrOrderNotFound) {
		return order, apperrors.ErrOrderStatusChanged
	}
	return order, err
}

const listExpired = `-- name: ListExpired
SELECT ` + orderColumns + ` FROM orders
WHERE status = 'reserved' AND expires_at < $1
ORDER BY expires_at
LIMIT $2
`

func (r *OrderRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Order, error) {
	rows, _ := r.DB.Query(ctx, listExpired, now, limit)
	orders, err := pgx.CollectRows(rows, rowToOrder)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return orders, nil
}

func collectOrder(rows pgx.Rows) (models.Order, error) {
	order, err := pgx.CollectOneRow(rows, rowToOrder)

	switch {
	case err == nil:
		return order, nil
	case errors.Is(err, pgx.ErrNoRows):
		return order, apperrors.ErrOrderNotFound
	default:
		return order, fmt.Errorf("db error: %w", err)
	}
}

func rowToOrder(row pgx.CollectableRow) (models.Order, error) {
	var o models.Order
	err := row.Scan(&o.ID, &o.UserID, &o.TenantID, &o.WalletID, &o.Status, &o.TotalPoints, &o.ReservedAt, &o.ExpiresAt, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}
