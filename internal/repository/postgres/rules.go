package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/benefitmart/internal/models"
)

type RulesRepo struct {
	DB DBTX
}

const createRule = `-- name: CreateRule
INSERT INTO eligibility_rules (id, tenant_id, benefit_id, conditions)
VALUES ($1, $2, $3, $4)
RETURNING id, tenant_id, benefit_id, conditions, created_at
`

func (r *RulesRepo) CreateRule(ctx context.Context, rule models.EligibilityRule) (models.EligibilityRule, error) {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}

	rows, _ := r.DB.Query(ctx, createRule, rule.ID, rule.TenantID, rule.BenefitID, rule.Conditions)
	created, err := pgx.CollectOneRow(rows, rowToRule)
	if err != nil {
		return created, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

const listRules = `-- name: ListRules
SELECT id, tenant_id, benefit_id, conditions, created_at
FROM eligibility_rules
WHERE tenant_id = $1 AND benefit_id = ANY($2)
ORDER BY benefit_id, created_at
`

func (r *RulesRepo) ListRules(ctx context.Context, tenantID uuid.UUID, benefitIDs []uuid.UUID) ([]models.EligibilityRule, error) {
	if len(benefitIDs) == 0 {
		return nil, nil
	}

	rows, _ := r.DB.Query(ctx, listRules, tenantID, benefitIDs)
	rules, err := pgx.CollectRows(rows, rowToRule)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return rules, nil
}

func rowToRule(row pgx.CollectableRow) (models.EligibilityRule, error) {
	var r models.EligibilityRule
	err := row.Scan(&r.ID, &r.TenantID, &r.BenefitID, &r.Conditions, &r.CreatedAt)
	return r, err
}

const createPolicy = `-- name: CreatePolicy
INSERT INTO budget_policies (id, tenant_id, name, points_amount, period, target_filter, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, tenant_id, name, points_amount, period, target_filter, is_active, created_at
`

func (r *RulesRepo) CreatePolicy(ctx context.Context, p models.BudgetPolicy) (models.BudgetPolicy, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	rows, _ := r.DB.Query(ctx, createPolicy, p.ID, p.TenantID, p.Name, p.PointsAmount, p.Period, p.TargetFilter, p.IsActive)
	created, err := pgx.CollectOneRow(rows, rowToPolicy)
	if err != nil {
		return created, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

const listActivePolicies = `-- name: ListActivePolicies
SELECT id, tenant_id, name, points_amount, period, target_filter, is_active, created_at
FROM budget_policies
WHERE tenant_id = $1 AND is_active
ORDER BY name, id
`

func (r *RulesRepo) ListActivePolicies(ctx context.Context, tenantID uuid.UUID) ([]models.BudgetPolicy, error) {
	rows, _ := r.DB.Query(ctx, listActivePolicies, tenantID)
	policies, err := pgx.CollectRows(rows, rowToPolicy)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return policies, nil
}

func rowToPolicy(row pgx.CollectableRow) (models.BudgetPolicy, error) {
	var p models.BudgetPolicy
	err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.PointsAmount, &p.Period, &p.TargetFilter, &p.IsActive, &p.CreatedAt)
	return p, err
}
