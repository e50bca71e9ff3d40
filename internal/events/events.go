package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/benefitmart/internal/models"
)

// Event types, also used as routing keys
const (
	OrderReserved  = "order.reserved"
	OrderPaid      = "order.paid"
	OrderCancelled = "order.cancelled"
	OrderExpired   = "order.expired"
)

// Event is published after an order transition is committed
type Event struct {
	ID          uuid.UUID `json:"id"`
	Type        string    `json:"type"`
	OrderID     uuid.UUID `json:"order_id"`
	UserID      uuid.UUID `json:"user_id"`
	TenantID    uuid.UUID `json:"tenant_id"`
	WalletID    uuid.UUID `json:"wallet_id"`
	Status      string    `json:"status"`
	TotalPoints int64     `json:"total_points"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Transition statuses mapped to event types
var statusEvents = map[string]string{
	models.OrderStatusReserved:  OrderReserved,
	models.OrderStatusPaid:      OrderPaid,
	models.OrderStatusCancelled: OrderCancelled,
	models.OrderStatusExpired:   OrderExpired,
}

// FromOrder builds event for the current order status
func FromOrder(o models.Order, at time.Time) Event {
	return Event{
		ID:          uuid.New(),
		Type:        statusEvents[o.Status],
		OrderID:     o.ID,
		UserID:      o.UserID,
		TenantID:    o.TenantID,
		WalletID:    o.WalletID,
		Status:      o.Status,
		TotalPoints: o.TotalPoints,
		OccurredAt:  at.UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Noop publisher is used when no broker configured
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }

// Recorder keeps published events in memory
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns types of recorded events in publish order
func (r *Recorder) Types() []string {
	events := r.Events()
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Type)
	}
	return out
}
