package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/benefitmart/internal/apperrors"
	"github.com/nkiryanov/benefitmart/internal/models"
)

type ProfileRepo struct {
	DB DBTX
}

const profileColumns = `id, user_id, tenant_id, grade, tenure_months, location, legal_entity, extra, created_at`

const createProfile = `-- name: CreateProfile
INSERT INTO employee_profiles (id, user_id, tenant_id, grade, tenure_months, location, legal_entity, extra)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + profileColumns

func (r *ProfileRepo) CreateProfile(ctx context.Context, p models.EmployeeProfile) (models.EmployeeProfile, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Extra == nil {
		p.Extra = map[string]any{}
	}

	rows, _ := r.DB.Query(ctx, createProfile, p.ID, p.UserID, p.TenantID, p.Grade, p.TenureMonths, p.Location, p.LegalEntity, p.Extra)
	profile, err := pgx.CollectOneRow(rows, rowToProfile)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return profile, fmt.Errorf("profile already exists: %w", err)
		}
		return profile, fmt.Errorf("db error: %w", err)
	}

	return profile, nil
}

const getProfile = `-- name: GetProfile
SELECT ` + profileColumns + ` FROM employee_profiles
WHERE user_id = $1 AND tenant_id = $2
`

func (r *ProfileRepo) GetProfile(ctx context.Context, userID uuid.UUID, tenantID uuid.UUID) (models.EmployeeProfile, error) {
	rows, _ := r.DB.Query(ctx, getProfile, userID, tenantID)
	profile, err := pgx.CollectOneRow(rows, rowToProfile)

	switch {
	case err == nil:
		return profile, nil
	case errors.Is(err, pgx.ErrNoRows):
		return profile, apperrors.ErrProfileNotFound
	default:
		return profile, fmt.Errorf("db error: %w", err)
	}
}

const listProfiles = `-- name: ListProfiles
SELECT ` + profileColumns + ` FROM employee_profiles
WHERE tenant_id = $1
ORDER BY created_at, id
`

func (r *ProfileRepo) ListProfiles(ctx context.Context, tenantID uuid.UUID) ([]models.EmployeeProfile, error) {
	rows, _ := r.DB.Query(ctx, listProfiles, tenantID)
	profiles, err := pgx.CollectRows(rows, rowToProfile)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return profiles, nil
}

func rowToProfile(row pgx.CollectableRow) (models.EmployeeProfile, error) {
	var p models.EmployeeProfile
	err := row.Scan(&p.ID, &p.UserID, &p.TenantID, &p.Grade, &p.TenureMonths, &p.Location, &p.LegalEntity, &p.Extra, &p.CreatedAt)
	return p, err
}
