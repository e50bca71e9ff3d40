package eligibility

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nkiryanov/benefitmart/internal/apperrors"
	"github.com/nkiryanov/benefitmart/internal/models"
	"github.com/nkiryanov/benefitmart/internal/repository"
)

// IsEligible reports whether profile satisfies at least one rule
// Benefit without rules is open to everyone, even to users without a profile
func IsEligible(profile *models.EmployeeProfile, rules []models.EligibilityRule) bool {
	if len(rules) == 0 {
		return true
	}
	if profile == nil {
		return false
	}

	for _, r := range rules {
		if r.Conditions.Evaluate(*profile) {
			return true
		}
	}
	return false
}

// MatchPolicy picks the budget policy for profile
// The most specific matching policy wins; ties go to the earlier one in the slice
func MatchPolicy(profile models.EmployeeProfile, policies []models.BudgetPolicy) (models.BudgetPolicy, bool) {
	var (
		best  models.BudgetPolicy
		found bool
	)

	for _, p := range policies {
		if !p.IsActive || !p.TargetFilter.Evaluate(profile) {
			continue
		}
		if !found || p.TargetFilter.Specificity() > best.TargetFilter.Specificity() {
			best, found = p, true
		}
	}

	return best, found
}

// RulesByBenefit groups rules by their benefit
func RulesByBenefit(rules []models.EligibilityRule) map[uuid.UUID][]models.EligibilityRule {
	out := make(map[uuid.UUID][]models.EligibilityRule)
	for _, r := range rules {
		out[r.BenefitID] = append(out[r.BenefitID], r)
	}
	return out
}

// LoadProfile returns nil profile if the user has none in tenant
func LoadProfile(ctx context.Context, repo repository.ProfileRepo, userID uuid.UUID, tenantID uuid.UUID) (*models.EmployeeProfile, error) {
	profile, err := repo.GetProfile(ctx, userID, tenantID)
	switch {
	case err == nil:
		return &profile, nil
	case errors.Is(err, apperrors.ErrProfileNotFound):
		return nil, nil
	default:
		return nil, err
	}
}

type Checker struct {
	storage repository.Storage
}

func NewChecker(storage repository.Storage) *Checker {
	return &Checker{storage: storage}
}

// CheckBenefit answers whether caller may order the tenant benefit
func (c *Checker) CheckBenefit(ctx context.Context, caller models.Caller, benefitID uuid.UUID) (bool, error) {
	_, err := c.storage.Catalog().GetBenefit(ctx, caller.TenantID, benefitID)
	switch {
	case errors.Is(err, apperrors.ErrBenefitNotFound):
		return false, apperrors.With(apperrors.ErrNotFound, "benefit %s not found", benefitID)
	case err != nil:
		return false, fmt.Errorf("can't load benefit: %w", err)
	}

	profile, err := LoadProfile(ctx, c.storage.Profile(), caller.ID, caller.TenantID)
	if err != nil {
		return false, fmt.Errorf("can't load profile: %w", err)
	}

	rules, err := c.storage.Rules().ListRules(ctx, caller.TenantID, []uuid.UUID{benefitID})
	if err != nil {
		return false, fmt.Errorf("can't load eligibility rules: %w", err)
	}

	return IsEligible(profile, rules), nil
}
