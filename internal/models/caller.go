package models

import (
	"slices"

	"github.com/google/uuid"
)

const (
	RoleEmployee = "employee"
	RoleHR       = "hr"
	RoleAdmin    = "admin"
	RoleProvider = "provider"
)

// Caller is the authenticated user the request is made on behalf of
// Identity is resolved outside of the service: the access token carries it
type Caller struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	Role     string
}

func (c Caller) HasRole(roles ...string) bool {
	return slices.Contains(roles, c.Role)
}
