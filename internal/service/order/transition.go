package order

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/benefitmart/internal/apperrors"
	"github.com/nkiryanov/benefitmart/internal/models"
	"github.com/nkiryanov/benefitmart/internal/repository"
)

// Confirm turns reserved points of the order into spent ones
// Reservation must not be expired yet
func (s *OrderService) Confirm(ctx context.Context, caller models.Caller, orderID uuid.UUID) (models.Order, error) {
	now := s.now()
	var order models.Order

	err := s.storage.InTx(ctx, func(tx repository.Storage) error {
		var err error
		order, err = lockForTransition(ctx, tx, caller, orderID, models.OrderStatusPaid)
		if err != nil {
			return err
		}

		if !now.Before(order.ExpiresAt) {
			return apperrors.With(apperrors.ErrOrderExpired, "order reservation expired at %s", order.ExpiresAt.UTC().Format(time.RFC3339))
		}

		order, err = tx.Order().SetStatus(ctx, order.ID, models.OrderStatusReserved, models.OrderStatusPaid)
		if err != nil {
			return fmt.Errorf("can't set order status: %w", err)
		}

		_, err = tx.Ledger().Append(ctx, models.LedgerEntry{
			WalletID:    order.WalletID,
			TenantID:    order.TenantID,
			OrderID:     &order.ID,
			Type:        models.LedgerSpend,
			Amount:      order.TotalPoints,
			Description: "order paid",
		})
		if err != nil {
			return fmt.Errorf("can't append ledger entry: %w", err)
		}

		if _, err := tx.Wallet().Spend(ctx, order.WalletID, order.TotalPoints); err != nil {
			return fmt.Errorf("can't spend points: %w", err)
		}

		return nil
	})
	if err != nil {
		return models.Order{}, err
	}

	s.logger.Info("Order paid", "order_id", order.ID, "total_points", order.TotalPoints)
	s.publish(ctx, order)

	return s.reload(ctx, order)
}

// Cancel releases reserved points and returns taken stock
// Allowed at any time while the order is reserved, even after the reservation expired
func (s *OrderService) Cancel(ctx context.Context, caller models.Caller, orderID uuid.UUID) (models.Order, error) {
	var order models.Order

	err := s.storage.InTx(ctx, func(tx repository.Storage) error {
		var err error
		order, err = lockForTransition(ctx, tx, caller, orderID, models.OrderStatusCancelled)
		if err != nil {
			return err
		}

		order, err = s.release(ctx, tx, order, models.OrderStatusCancelled, models.LedgerRelease, "order cancelled")
		return err
	})
	if err != nil {
		return models.Order{}, err
	}

	s.logger.Info("Order cancelled", "order_id", order.ID, "total_points", order.TotalPoints)
	s.publish(ctx, order)

	return s.reload(ctx, order)
}

// Expire moves reserved order with elapsed reservation to 'expired'
// Returns false if the order is not reserved anymore or not expired yet, so it is safe to call repeatedly
func (s *OrderService) Expire(ctx context.Context, orderID uuid.UUID) (bool, error) {
	now := s.now()
	var (
		order   models.Order
		expired bool
	)

	err := s.storage.InTx(ctx, func(tx repository.Storage) error {
		var err error
		order, err = tx.Order().GetOrder(ctx, orderID, true)
		if err != nil {
			return orderError(err)
		}

		if !order.CanTransition(models.OrderStatusExpired) || now.Before(order.ExpiresAt) {
			return nil
		}

		order, err = s.release(ctx, tx, order, models.OrderStatusExpired, models.LedgerExpire, "reservation expired")
		expired = err == nil
		return err
	})
	if err != nil || !expired {
		return false, err
	}

	s.logger.Info("Order expired", "order_id", order.ID, "total_points", order.TotalPoints)
	s.publish(ctx, order)

	return true, nil
}

// lockForTransition locks caller's order and makes sure it may move to the status
func lockForTransition(ctx context.Context, tx repository.Storage, caller models.Caller, orderID uuid.UUID, to string) (models.Order, error) {
	order, err := tx.Order().GetOrder(ctx, orderID, true)
	if err != nil {
		return order, orderError(err)
	}
	if err := checkOwner(order, caller); err != nil {
		return order, err
	}
	if !order.CanTransition(to) {
		return order, apperrors.With(apperrors.ErrInvalidStatus, "order is %s", order.Status)
	}
	return order, nil
}

// release ends reservation without spending: stock goes back, then reserved points are freed
// Catalog rows are locked before the wallet, the same order Reserve uses
func (s *OrderService) release(ctx context.Context, tx repository.Storage, order models.Order, status string, entryType string, description string) (models.Order, error) {
	items, err := tx.Order().ListItems(ctx, []uuid.UUID{order.ID})
	if err != nil {
		return order, fmt.Errorf("can't load order items: %w", err)
	}

	slices.SortFunc(items, func(a, b models.OrderItem) int {
		return slices.Compare(stockKey(a), stockKey(b))
	})
	for _, it := range items {
		switch {
		case it.BenefitID != nil:
			err = tx.Catalog().AdjustBenefitStock(ctx, *it.BenefitID, it.Quantity)
		case it.TenantOfferingID != nil:
			err = tx.Catalog().AdjustOfferingStock(ctx, *it.TenantOfferingID, it.Quantity)
		}
		if err != nil {
			return order, fmt.Errorf("can't restore stock: %w", err)
		}
	}

	order, err = tx.Order().SetStatus(ctx, order.ID, models.OrderStatusReserved, status)
	if err != nil {
		return order, fmt.Errorf("can't set order status: %w", err)
	}

	_, err = tx.Ledger().Append(ctx, models.LedgerEntry{
		WalletID:    order.WalletID,
		TenantID:    order.TenantID,
		OrderID:     &order.ID,
		Type:        entryType,
		Amount:      order.TotalPoints,
		Description: description,
	})
	if err != nil {
		return order, fmt.Errorf("can't append ledger entry: %w", err)
	}

	if _, err := tx.Wallet().Release(ctx, order.WalletID, order.TotalPoints); err != nil {
		return order, fmt.Errorf("can't release points: %w", err)
	}

	return order, nil
}

// Benefits by id first, then offerings by provider offering id, the order Reserve locks in
func stockKey(it models.OrderItem) []byte {
	switch {
	case it.BenefitID != nil:
		return append([]byte{0}, it.BenefitID[:]...)
	case it.ProviderOfferingID != nil:
		return append([]byte{1}, it.ProviderOfferingID[:]...)
	default:
		return []byte{2}
	}
}

func (s *OrderService) reload(ctx context.Context, order models.Order) (models.Order, error) {
	orders, err := s.withItems(ctx, s.storage, []models.Order{order})
	if err != nil {
		return order, err
	}
	return orders[0], nil
}
