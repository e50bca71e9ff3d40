package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	OfferingStatusDraft     = "draft"
	OfferingStatusReview    = "pending_review"
	OfferingStatusPublished = "published"
	OfferingStatusArchived  = "archived"

	ProviderStatusPending   = "pending"
	ProviderStatusVerified  = "verified"
	ProviderStatusSuspended = "suspended"
)

// Benefit is a tenant owned (legacy) catalog item
// Nil StockLimit means unlimited
type Benefit struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Name        string
	Description string
	PricePoints int64
	StockLimit  *int64
	IsActive    bool
	CreatedAt   time.Time
}

type Provider struct {
	ID        uuid.UUID
	Name      string
	Status    string
	CreatedAt time.Time
}

// ProviderOffering is a marketplace item published by a third-party provider
type ProviderOffering struct {
	ID              uuid.UUID
	ProviderID      uuid.UUID
	Name            string
	Description     string
	BasePricePoints int64
	StockLimit      *int64
	Status          string
	CreatedAt       time.Time
}

// TenantOffering enables a provider offering for one tenant
// Custom price and stock override the provider values when set
type TenantOffering struct {
	ID                 uuid.UUID
	TenantID           uuid.UUID
	ProviderOfferingID uuid.UUID
	CustomPricePoints  *int64
	StockLimitOverride *int64
	IsActive           bool
	CreatedAt          time.Time
}

// MarketplaceOffering is a tenant offering joined with its source
type MarketplaceOffering struct {
	TenantOffering
	Offering ProviderOffering
	Provider Provider
}

func (m MarketplaceOffering) EffectivePrice() int64 {
	if m.CustomPricePoints != nil {
		return *m.CustomPricePoints
	}
	return m.Offering.BasePricePoints
}

func (m MarketplaceOffering) EffectiveStock() *int64 {
	if m.StockLimitOverride != nil {
		return m.StockLimitOverride
	}
	return m.Offering.StockLimit
}
