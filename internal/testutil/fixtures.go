package testutil

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/benefitmart/internal/condition"
	"github.com/nkiryanov/benefitmart/internal/models"
	"github.com/nkiryanov/benefitmart/internal/repository"
)

// Fixtures creates rows with sane defaults through storage
// Use zero values in arguments to get defaults. Catalog rows and policies are always active
type Fixtures struct {
	T       *testing.T
	Storage repository.Storage
}

func NewFixtures(t *testing.T, s repository.Storage) *Fixtures {
	return &Fixtures{T: t, Storage: s}
}

func (f *Fixtures) Profile(p models.EmployeeProfile) models.EmployeeProfile {
	f.T.Helper()

	if p.UserID == uuid.Nil {
		p.UserID = uuid.New()
	}
	if p.Grade == "" {
		p.Grade = "middle"
	}

	profile, err := f.Storage.Profile().CreateProfile(f.T.Context(), p)
	require.NoError(f.T, err)
	return profile
}

func (f *Fixtures) Benefit(b models.Benefit) models.Benefit {
	f.T.Helper()

	if b.Name == "" {
		b.Name = "Gym membership"
	}
	if b.PricePoints == 0 {
		b.PricePoints = 100
	}
	b.IsActive = true

	benefit, err := f.Storage.Catalog().CreateBenefit(f.T.Context(), b)
	require.NoError(f.T, err)
	return benefit
}

func (f *Fixtures) Rule(tenantID uuid.UUID, benefitID uuid.UUID, conditions string) models.EligibilityRule {
	f.T.Helper()

	set, err := condition.Parse([]byte(conditions))
	require.NoError(f.T, err)

	rule, err := f.Storage.Rules().CreateRule(f.T.Context(), models.EligibilityRule{
		TenantID:   tenantID,
		BenefitID:  benefitID,
		Conditions: set,
	})
	require.NoError(f.T, err)
	return rule
}

func (f *Fixtures) Policy(p models.BudgetPolicy) models.BudgetPolicy {
	f.T.Helper()

	if p.Name == "" {
		p.Name = "Default"
	}
	if p.Period == "" {
		p.Period = models.PeriodMonthly
	}
	p.IsActive = true

	policy, err := f.Storage.Rules().CreatePolicy(f.T.Context(), p)
	require.NoError(f.T, err)
	return policy
}

func (f *Fixtures) Provider(p models.Provider) models.Provider {
	f.T.Helper()

	if p.Name == "" {
		p.Name = "Acme"
	}
	if p.Status == "" {
		p.Status = models.ProviderStatusVerified
	}

	provider, err := f.Storage.Catalog().CreateProvider(f.T.Context(), p)
	require.NoError(f.T, err)
	return provider
}

// Offering creates verified provider, published offering and enables it for the tenant
func (f *Fixtures) Offering(tenantID uuid.UUID, offering models.ProviderOffering, tenant models.TenantOffering) models.MarketplaceOffering {
	f.T.Helper()
	return f.OfferingOf(f.Provider(models.Provider{}), tenantID, offering, tenant)
}

// OfferingOf creates offering of the provider and enables it for the tenant
func (f *Fixtures) OfferingOf(provider models.Provider, tenantID uuid.UUID, offering models.ProviderOffering, tenant models.TenantOffering) models.MarketplaceOffering {
	f.T.Helper()
	ctx := f.T.Context()

	offering.ProviderID = provider.ID
	if offering.Name == "" {
		offering.Name = "Massage"
	}
	if offering.Status == "" {
		offering.Status = models.OfferingStatusPublished
	}
	if offering.BasePricePoints == 0 {
		offering.BasePricePoints = 200
	}
	created, err := f.Storage.Catalog().CreateProviderOffering(ctx, offering)
	require.NoError(f.T, err)

	tenant.TenantID = tenantID
	tenant.ProviderOfferingID = created.ID
	tenant.IsActive = true
	enabled, err := f.Storage.Catalog().CreateTenantOffering(ctx, tenant)
	require.NoError(f.T, err)

	return models.MarketplaceOffering{TenantOffering: enabled, Offering: created, Provider: provider}
}

// Wallet creates wallet with balance and matching accrual ledger entry
// so ledger reconciliation holds
func (f *Fixtures) Wallet(userID uuid.UUID, tenantID uuid.UUID, balance int64, expiresAt time.Time) models.Wallet {
	f.T.Helper()

	wallet, err := f.Storage.Wallet().CreateWallet(f.T.Context(), models.Wallet{
		UserID:    userID,
		TenantID:  tenantID,
		Balance:   balance,
		Period:    expiresAt.Format("2006-01-02T15:04"),
		ExpiresAt: expiresAt,
	})
	require.NoError(f.T, err)

	_, err = f.Storage.Ledger().Append(f.T.Context(), models.LedgerEntry{
		WalletID:    wallet.ID,
		TenantID:    tenantID,
		Type:        models.LedgerAccrual,
		Amount:      balance,
		Description: "fixture accrual",
	})
	require.NoError(f.T, err)

	return wallet
}
