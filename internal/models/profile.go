package models

import (
	"time"

	"github.com/google/uuid"
)

// EmployeeProfile is tenant scoped HR data used for targeting
// One per (user, tenant)
type EmployeeProfile struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	TenantID     uuid.UUID
	Grade        string
	TenureMonths int
	Location     string
	LegalEntity  string
	Extra        map[string]any
	CreatedAt    time.Time
}

// Field exposes profile attributes to condition evaluation
// Plain fields shadow keys of Extra with the same name
func (p EmployeeProfile) Field(name string) (any, bool) {
	switch name {
	case "grade":
		return p.Grade, true
	case "tenure_months":
		return p.TenureMonths, true
	case "location":
		return p.Location, true
	case "legal_entity":
		return p.LegalEntity, true
	}

	v, ok := p.Extra[name]
	return v, ok
}
