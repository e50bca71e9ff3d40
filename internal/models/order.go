package models

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"time"

	"github.com/google/uuid"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusReserved  = "reserved"
	OrderStatusPaid      = "paid"
	OrderStatusCancelled = "cancelled"
	OrderStatusExpired   = "expired"
)

// Allowed order transitions. Only reserved orders may move
var orderTransitions = map[string][]string{
	OrderStatusPending:  {OrderStatusReserved},
	OrderStatusReserved: {OrderStatusPaid, OrderStatusCancelled, OrderStatusExpired},
}

type Order struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	TenantID    uuid.UUID
	WalletID    uuid.UUID
	Status      string
	TotalPoints int64
	ReservedAt  time.Time
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Items []OrderItem
}

func (o Order) CanTransition(to string) bool {
	for _, s := range orderTransitions[o.Status] {
		if s == to {
			return true
		}
	}
	return false
}

// OrderItem references either a legacy benefit or a marketplace offering
// PricePoints is captured at order time and never follows catalog changes
type OrderItem struct {
	ID                 uuid.UUID
	OrderID            uuid.UUID
	BenefitID          *uuid.UUID
	TenantOfferingID   *uuid.UUID
	ProviderOfferingID *uuid.UUID
	Quantity           int64
	PricePoints        int64

	// Resolved from the source catalog, nil if the source is gone
	Display *ItemDisplay
}

// Total is price times quantity, ok is false if it doesn't fit into int64
func (i OrderItem) Total() (int64, bool) {
	return MulPoints(i.PricePoints, i.Quantity)
}

// MulPoints multiplies non-negative amounts, ok is false on overflow
func MulPoints(a int64, b int64) (int64, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi != 0 || lo > math.MaxInt64 {
		return 0, false
	}
	return int64(lo), true
}

// AddPoints adds non-negative amounts, ok is false on overflow
func AddPoints(a int64, b int64) (int64, bool) {
	if a < 0 || b < 0 || a > math.MaxInt64-b {
		return 0, false
	}
	return a + b, true
}

type ItemDisplay struct {
	Name        string
	Description string
	PricePoints int64
}

// OrderItemInput is the raw line item of a new order as the client sent it
type OrderItemInput struct {
	BenefitID        *uuid.UUID
	TenantOfferingID *uuid.UUID
	Quantity         int64
}

var (
	errItemSourceMissing   = errors.New("item must reference benefit_id or tenant_offering_id")
	errItemSourceAmbiguous = errors.New("item must reference only one of benefit_id or tenant_offering_id")
	errItemQuantity        = errors.New("item quantity must be at least 1")
	errItemQuantityTooMany = fmt.Errorf("item quantity must be at most %d", MaxItemQuantity)
)

// MaxItemQuantity bounds quantity of one order line, repeated lines of the same source included
const MaxItemQuantity = 10_000

// LineItem is either LegacyItem or MarketplaceItem
type LineItem interface {
	Qty() int64
	lineItem()
}

type LegacyItem struct {
	BenefitID uuid.UUID
	Quantity  int64
}

type MarketplaceItem struct {
	TenantOfferingID uuid.UUID
	Quantity         int64
}

func (i LegacyItem) Qty() int64      { return i.Quantity }
func (i MarketplaceItem) Qty() int64 { return i.Quantity }
func (LegacyItem) lineItem()         {}
func (MarketplaceItem) lineItem()    {}

// LineItem converts input into the typed variant
func (in OrderItemInput) LineItem() (LineItem, error) {
	if in.Quantity < 1 {
		return nil, errItemQuantity
	}
	if in.Quantity > MaxItemQuantity {
		return nil, errItemQuantityTooMany
	}

	switch {
	case in.BenefitID != nil && in.TenantOfferingID != nil:
		return nil, errItemSourceAmbiguous
	case in.BenefitID != nil:
		return LegacyItem{BenefitID: *in.BenefitID, Quantity: in.Quantity}, nil
	case in.TenantOfferingID != nil:
		return MarketplaceItem{TenantOfferingID: *in.TenantOfferingID, Quantity: in.Quantity}, nil
	default:
		return nil, errItemSourceMissing
	}
}
