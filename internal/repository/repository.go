package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/benefitmart/internal/models"
)

// Storage gives access to every repository over one connection or transaction
type Storage interface {
	Profile() ProfileRepo
	Catalog() CatalogRepo
	Rules() RulesRepo
	Wallet() WalletRepo
	Ledger() LedgerRepo
	Order() OrderRepo

	// Run fn in transaction: commit if fn returns nil, rollback otherwise
	// Nested calls use savepoints
	InTx(ctx context.Context, fn func(Storage) error) error
}

type ProfileRepo interface {
	CreateProfile(ctx context.Context, p models.EmployeeProfile) (models.EmployeeProfile, error)

	// Has to return apperrors.ErrProfileNotFound if user has no profile in tenant
	GetProfile(ctx context.Context, userID uuid.UUID, tenantID uuid.UUID) (models.EmployeeProfile, error)

	ListProfiles(ctx context.Context, tenantID uuid.UUID) ([]models.EmployeeProfile, error)
}

type CatalogRepo interface {
	CreateBenefit(ctx context.Context, b models.Benefit) (models.Benefit, error)
	CreateProvider(ctx context.Context, p models.Provider) (models.Provider, error)
	CreateProviderOffering(ctx context.Context, o models.ProviderOffering) (models.ProviderOffering, error)
	CreateTenantOffering(ctx context.Context, o models.TenantOffering) (models.TenantOffering, error)

	// Has to return apperrors.ErrBenefitNotFound if benefit is absent, inactive or belongs to other tenant
	GetBenefit(ctx context.Context, tenantID uuid.UUID, id uuid.UUID) (models.Benefit, error)

	// Return active tenant benefits among ids ordered by id
	// forUpdate locks returned rows till the end of transaction
	ListActiveBenefits(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID, forUpdate bool) ([]models.Benefit, error)

	// Tenant offering joined with provider offering and provider
	// Has to return apperrors.ErrOfferingNotFound if absent, disabled or belongs to other tenant
	GetMarketplaceOffering(ctx context.Context, tenantID uuid.UUID, tenantOfferingID uuid.UUID, forUpdate bool) (models.MarketplaceOffering, error)

	// Change limited stock by delta (negative to take). Unlimited items are left as is
	AdjustBenefitStock(ctx context.Context, benefitID uuid.UUID, delta int64) error
	AdjustOfferingStock(ctx context.Context, tenantOfferingID uuid.UUID, delta int64) error
}

type RulesRepo interface {
	CreateRule(ctx context.Context, r models.EligibilityRule) (models.EligibilityRule, error)
	ListRules(ctx context.Context, tenantID uuid.UUID, benefitIDs []uuid.UUID) ([]models.EligibilityRule, error)

	CreatePolicy(ctx context.Context, p models.BudgetPolicy) (models.BudgetPolicy, error)

	// Active tenant policies ordered by name
	ListActivePolicies(ctx context.Context, tenantID uuid.UUID) ([]models.BudgetPolicy, error)
}

type WalletRepo interface {
	// Has to return apperrors.ErrWalletAlreadyExists if wallet for (user, tenant, period) exists
	CreateWallet(ctx context.Context, w models.Wallet) (models.Wallet, error)

	// All getters return apperrors.ErrWalletNotFound on miss
	GetWallet(ctx context.Context, id uuid.UUID, forUpdate bool) (models.Wallet, error)
	GetWalletForPeriod(ctx context.Context, userID uuid.UUID, tenantID uuid.UUID, period string, forUpdate bool) (models.Wallet, error)

	// Most recent wallet with expires_at >= now
	GetCurrentWallet(ctx context.Context, userID uuid.UUID, tenantID uuid.UUID, now time.Time, forUpdate bool) (models.Wallet, error)

	AddBalance(ctx context.Context, id uuid.UUID, amount int64) (models.Wallet, error)

	// Increase reserved only if available balance allows it
	// Has to return apperrors.ErrBalanceInsufficient otherwise
	Reserve(ctx context.Context, id uuid.UUID, amount int64) (models.Wallet, error)

	// Turn reserved points into spent: balance and reserved both decrease
	// Has to return apperrors.ErrReservationMismatch if reserved is less than amount
	Spend(ctx context.Context, id uuid.UUID, amount int64) (models.Wallet, error)

	// Decrease reserved, never below zero
	Release(ctx context.Context, id uuid.UUID, amount int64) (models.Wallet, error)
}

type LedgerRepo interface {
	// Has to return apperrors.ErrAccrualAlreadyExists on second accrual for a wallet
	Append(ctx context.Context, e models.LedgerEntry) (models.LedgerEntry, error)

	HasEntry(ctx context.Context, walletID uuid.UUID, entryType string) (bool, error)

	// Entries ordered by creation time, oldest first
	ListEntries(ctx context.Context, walletID uuid.UUID) ([]models.LedgerEntry, error)

	// Sum of amounts per entry type
	Totals(ctx context.Context, walletID uuid.UUID) (map[string]int64, error)
}

type OrderRepo interface {
	CreateOrder(ctx context.Context, o models.Order) (models.Order, error)
	CreateItems(ctx context.Context, items []models.OrderItem) ([]models.OrderItem, error)

	// Has to return apperrors.ErrOrderNotFound on miss
	GetOrder(ctx context.Context, id uuid.UUID, forUpdate bool) (models.Order, error)

	// Newest first
	ListOrders(ctx context.Context, userID uuid.UUID, tenantID uuid.UUID) ([]models.Order, error)

	// Items of orders with display data resolved from the catalogs
	ListItems(ctx context.Context, orderIDs []uuid.UUID) ([]models.OrderItem, error)

	// Move order from status 'from' to 'to'
	// Has to return apperrors.ErrOrderStatusChanged if order is not in 'from' status
	SetStatus(ctx context.Context, id uuid.UUID, from string, to string) (models.Order, error)

	// Reserved orders with expires_at before now, oldest first
	ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Order, error)
}
