package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/benefitmart/internal/apperrors"
	"github.com/nkiryanov/benefitmart/internal/events"
	"github.com/nkiryanov/benefitmart/internal/logger"
	"github.com/nkiryanov/benefitmart/internal/models"
	"github.com/nkiryanov/benefitmart/internal/repository"
)

const DefaultReservationTTL = 15 * time.Minute

type OrderService struct {
	// Repository to access long term data
	storage repository.Storage

	publisher      events.Publisher
	logger         logger.Logger
	now            func() time.Time
	reservationTTL time.Duration
}

type Option func(*OrderService)

func WithPublisher(p events.Publisher) Option {
	return func(s *OrderService) {
		s.publisher = p
	}
}

func WithLogger(l logger.Logger) Option {
	return func(s *OrderService) {
		s.logger = l
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *OrderService) {
		s.now = now
	}
}

func WithReservationTTL(ttl time.Duration) Option {
	return func(s *OrderService) {
		s.reservationTTL = ttl
	}
}

func NewService(storage repository.Storage, opts ...Option) *OrderService {
	s := &OrderService{
		storage:        storage,
		publisher:      events.Noop{},
		logger:         logger.NewNoOpLogger(),
		now:            time.Now,
		reservationTTL: DefaultReservationTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns caller's order with items
func (s *OrderService) Get(ctx context.Context, caller models.Caller, orderID uuid.UUID) (models.Order, error) {
	order, err := s.storage.Order().GetOrder(ctx, orderID, false)
	if err != nil {
		return order, orderError(err)
	}
	if err := checkOwner(order, caller); err != nil {
		return models.Order{}, err
	}

	orders, err := s.withItems(ctx, s.storage, []models.Order{order})
	if err != nil {
		return order, err
	}
	return orders[0], nil
}

// List returns caller's orders in tenant, newest first
func (s *OrderService) List(ctx context.Context, caller models.Caller) ([]models.Order, error) {
	orders, err := s.storage.Order().ListOrders(ctx, caller.ID, caller.TenantID)
	if err != nil {
		return nil, fmt.Errorf("can't list orders: %w", err)
	}
	return s.withItems(ctx, s.storage, orders)
}

// ListExpired returns reserved orders whose reservation is over
func (s *OrderService) ListExpired(ctx context.Context, limit int) ([]models.Order, error) {
	return s.storage.Order().ListExpired(ctx, s.now(), limit)
}

func (s *OrderService) withItems(ctx context.Context, storage repository.Storage, orders []models.Order) ([]models.Order, error) {
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]uuid.UUID, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}

	items, err := storage.Order().ListItems(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("can't load order items: %w", err)
	}

	byOrder := make(map[uuid.UUID][]models.OrderItem, len(orders))
	for _, it := range items {
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
	}
	for i := range orders {
		orders[i].Items = byOrder[orders[i].ID]
	}

	return orders, nil
}

// Publishing happens after commit: failures are logged, the transition stands
func (s *OrderService) publish(ctx context.Context, order models.Order) {
	e := events.FromOrder(order, s.now())
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Error("Failed to publish order event", "order_id", order.ID, "type", e.Type, "error", err)
	}
}

// Other tenant orders are reported as missing, other user orders as forbidden
func checkOwner(order models.Order, caller models.Caller) error {
	if order.TenantID != caller.TenantID {
		return apperrors.With(apperrors.ErrNotFound, "order %s not found", order.ID)
	}
	if order.UserID != caller.ID {
		return apperrors.With(apperrors.ErrForbidden, "order %s belongs to another user", order.ID)
	}
	return nil
}

func orderError(err error) error {
	if errors.Is(err, apperrors.ErrOrderNotFound) {
		return apperrors.With(apperrors.ErrNotFound, "order not found")
	}
	return fmt.Errorf("can't load order: %w", err)
}
