package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/nkiryanov/benefitmart/internal/handlers/middleware"
	"github.com/nkiryanov/benefitmart/internal/logger"
	"github.com/nkiryanov/benefitmart/internal/models"
	"github.com/nkiryanov/benefitmart/internal/service/accrual"
	"github.com/nkiryanov/benefitmart/internal/service/wallet"
)

// Services the router dispatches to
type Services struct {
	Auth        authService
	Order       orderService
	Wallet      walletService
	Eligibility eligibilityService
	Accrual     accrualService
}

func NewRouter(s Services, corsOrigins []string, l logger.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimiddleware.RequestID,
		chimiddleware.RealIP,
		middleware.LoggerMiddleware(l),
		chimiddleware.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins: corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}),
	)

	r.Get("/healthz", handleHealth())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(s.Auth))

		r.Method(http.MethodPost, "/orders", handleCreateOrder(s.Order, l))
		r.Method(http.MethodGet, "/orders", handleListOrders(s.Order, l))
		r.Method(http.MethodGet, "/orders/{orderID}", handleGetOrder(s.Order, l))
		r.Method(http.MethodPost, "/orders/{orderID}/confirm", handleConfirmOrder(s.Order, l))
		r.Method(http.MethodPost, "/orders/{orderID}/cancel", handleCancelOrder(s.Order, l))

		r.Method(http.MethodGet, "/wallet", handleCurrentWallet(s.Wallet, l))
		r.Method(http.MethodGet, "/wallet/ledger", handleWalletLedger(s.Wallet, l))

		r.Method(http.MethodGet, "/benefits/{benefitID}/eligibility", handleEligibility(s.Eligibility, l))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(models.RoleHR, models.RoleAdmin))
			r.Method(http.MethodPost, "/hr/accruals", handleRunAccrual(s.Accrual, l))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(models.RoleAdmin))
			r.Method(http.MethodGet, "/admin/wallets/{walletID}/reconcile", handleReconcile(s.Wallet, l))
		})
	})

	return r
}

func handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

type authService interface {
	// Get request and return caller if it authenticated or error
	Auth(ctx context.Context, r *http.Request) (models.Caller, error)
}

type orderService interface {
	// Business failures are returned as *apperrors.Error
	Reserve(ctx context.Context, caller models.Caller, items []models.OrderItemInput) (models.Order, error)
	Confirm(ctx context.Context, caller models.Caller, orderID uuid.UUID) (models.Order, error)
	Cancel(ctx context.Context, caller models.Caller, orderID uuid.UUID) (models.Order, error)

	Get(ctx context.Context, caller models.Caller, orderID uuid.UUID) (models.Order, error)
	List(ctx context.Context, caller models.Caller) ([]models.Order, error)
}

type walletService interface {
	Current(ctx context.Context, caller models.Caller) (models.Wallet, error)
	Ledger(ctx context.Context, caller models.Caller, walletID uuid.UUID) ([]models.LedgerEntry, error)
	Reconcile(ctx context.Context, caller models.Caller, walletID uuid.UUID) (wallet.Report, error)
}

type eligibilityService interface {
	CheckBenefit(ctx context.Context, caller models.Caller, benefitID uuid.UUID) (bool, error)
}

type accrualService interface {
	Run(ctx context.Context, tenantID uuid.UUID) (accrual.Result, error)
}

// Timestamps are rendered in UTC
func utc(t time.Time) time.Time {
	return t.UTC()
}
