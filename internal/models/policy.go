package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/benefitmart/internal/condition"
)

const (
	PeriodMonthly   = "monthly"
	PeriodQuarterly = "quarterly"
	PeriodYearly    = "yearly"
)

// BudgetPolicy defines how many points a targeted group of employees gets every period
type BudgetPolicy struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	Name         string
	PointsAmount int64
	Period       string
	TargetFilter condition.Set
	IsActive     bool
	CreatedAt    time.Time
}

// EligibilityRule gates who may order a benefit
// Rules of one benefit are OR-ed, conditions inside a rule are AND-ed
type EligibilityRule struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	BenefitID  uuid.UUID
	Conditions condition.Set
	CreatedAt  time.Time
}
