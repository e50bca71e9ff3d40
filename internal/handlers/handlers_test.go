package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/benefitmart/internal/apperrors"
	"github.com/nkiryanov/benefitmart/internal/logger"
	"github.com/nkiryanov/benefitmart/internal/models"
	"github.com/nkiryanov/benefitmart/internal/service/accrual"
	"github.com/nkiryanov/benefitmart/internal/service/auth"
	"github.com/nkiryanov/benefitmart/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/benefitmart/internal/service/wallet"
)

type fakeOrders struct {
	reserve func(caller models.Caller, items []models.OrderItemInput) (models.Order, error)
	action  func(caller models.Caller, orderID uuid.UUID) (models.Order, error)
	list    func(caller models.Caller) ([]models.Order, error)
}

func (f *fakeOrders) Reserve(_ context.Context, c models.Caller, items []models.OrderItemInput) (models.Order, error) {
	return f.reserve(c, items)
}
func (f *fakeOrders) Confirm(_ context.Context, c models.Caller, id uuid.UUID) (models.Order, error) {
	return f.action(c, id)
}
func (f *fakeOrders) Cancel(_ context.Context, c models.Caller, id uuid.UUID) (models.Order, error) {
	return f.action(c, id)
}
func (f *fakeOrders) Get(_ context.Context, c models.Caller, id uuid.UUID) (models.Order, error) {
	return f.action(c, id)
}
func (f *fakeOrders) List(_ context.Context, c models.Caller) ([]models.Order, error) {
	return f.list(c)
}

type fakeWallets struct {
	wallet  models.Wallet
	entries []models.LedgerEntry
	report  wallet.Report
	err     error
}

func (f *fakeWallets) Current(context.Context, models.Caller) (models.Wallet, error) {
	return f.wallet, f.err
}
func (f *fakeWallets) Ledger(_ context.Context, _ models.Caller, walletID uuid.UUID) ([]models.LedgerEntry, error) {
	if walletID != f.wallet.ID {
		return nil, errors.New("unexpected wallet")
	}
	return f.entries, f.err
}
func (f *fakeWallets) Reconcile(context.Context, models.Caller, uuid.UUID) (wallet.Report, error) {
	return f.report, f.err
}

type eligibilityFunc func(caller models.Caller, benefitID uuid.UUID) (bool, error)

func (f eligibilityFunc) CheckBenefit(_ context.Context, c models.Caller, id uuid.UUID) (bool, error) {
	return f(c, id)
}

type accrualFunc func(tenantID uuid.UUID) (accrual.Result, error)

func (f accrualFunc) Run(_ context.Context, tenantID uuid.UUID) (accrual.Result, error) {
	return f(tenantID)
}

type testServer struct {
	url  string
	auth *auth.AuthService
}

// do sends request on behalf of caller, nil caller means anonymous request
func (s *testServer) do(t *testing.T, method string, path string, body string, caller *models.Caller) (int, string) {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(t.Context(), method, s.url+path, r)
	require.NoError(t, err)
	if caller != nil {
		require.NoError(t, s.auth.SetTokenToRequest(req, *caller))
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() // nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func newTestServer(t *testing.T, s Services) *testServer {
	tm, err := tokenmanager.New(tokenmanager.Config{SecretKey: "test-secret"})
	require.NoError(t, err)
	authService := auth.NewService(auth.Config{}, tm)
	s.Auth = authService

	srv := httptest.NewServer(NewRouter(s, []string{"*"}, logger.NewNoOpLogger()))
	t.Cleanup(srv.Close)

	return &testServer{url: srv.URL, auth: authService}
}

func TestRouter(t *testing.T) {
	employee := &models.Caller{ID: uuid.New(), TenantID: uuid.New(), Role: models.RoleEmployee}
	hr := &models.Caller{ID: uuid.New(), TenantID: employee.TenantID, Role: models.RoleHR}
	admin := &models.Caller{ID: uuid.New(), TenantID: employee.TenantID, Role: models.RoleAdmin}

	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	benefitID := uuid.New()
	order := models.Order{
		ID:          uuid.New(),
		WalletID:    uuid.New(),
		Status:      models.OrderStatusReserved,
		TotalPoints: 600,
		ReservedAt:  at,
		ExpiresAt:   at.Add(15 * time.Minute),
		CreatedAt:   at,
		Items: []models.OrderItem{{
			ID:          uuid.New(),
			BenefitID:   &benefitID,
			Quantity:    2,
			PricePoints: 300,
			Display:     &models.ItemDisplay{Name: "Gym", Description: "Any club", PricePoints: 300},
		}},
	}

	orders := &fakeOrders{}
	wallets := &fakeWallets{}
	var eligibility eligibilityFunc
	var accruals accrualFunc

	srv := newTestServer(t, Services{
		Order:  orders,
		Wallet: wallets,
		Eligibility: eligibilityFunc(func(c models.Caller, id uuid.UUID) (bool, error) {
			return eligibility(c, id)
		}),
		Accrual: accrualFunc(func(tenantID uuid.UUID) (accrual.Result, error) {
			return accruals(tenantID)
		}),
	})

	t.Run("healthz", func(t *testing.T) {
		code, _ := srv.do(t, http.MethodGet, "/healthz", "", nil)
		require.Equal(t, http.StatusNoContent, code)
	})

	t.Run("unauthorized", func(t *testing.T) {
		code, body := srv.do(t, http.MethodGet, "/api/orders", "", nil)
		require.Equal(t, http.StatusUnauthorized, code)
		require.JSONEq(t, `{"error": "service_error", "message": "Unauthorized"}`, body)
	})

	t.Run("create order", func(t *testing.T) {
		t.Run("ok", func(t *testing.T) {
			var got []models.OrderItemInput
			orders.reserve = func(c models.Caller, items []models.OrderItemInput) (models.Order, error) {
				assert.Equal(t, *employee, c)
				got = items
				return order, nil
			}

			code, body := srv.do(t, http.MethodPost, "/api/orders", `{"items": [{"benefit_id": "`+benefitID.String()+`", "quantity": 2}]}`, employee)

			require.Equalf(t, http.StatusCreated, code, "body: %s", body)
			require.Equal(t, []models.OrderItemInput{{BenefitID: &benefitID, Quantity: 2}}, got)
			require.JSONEq(t, `{
				"id": "`+order.ID.String()+`",
				"status": "reserved",
				"wallet_id": "`+order.WalletID.String()+`",
				"total_points": 600,
				"reserved_at": "2025-03-01T10:00:00Z",
				"expires_at": "2025-03-01T10:15:00Z",
				"created_at": "2025-03-01T10:00:00Z",
				"items": [{
					"id": "`+order.Items[0].ID.String()+`",
					"benefit_id": "`+benefitID.String()+`",
					"quantity": 2,
					"price_points": 300,
					"name": "Gym",
					"description": "Any club"
				}]
			}`, body)
		})

		t.Run("validation failed", func(t *testing.T) {
			called := false
			orders.reserve = func(models.Caller, []models.OrderItemInput) (models.Order, error) {
				called = true
				return models.Order{}, nil
			}

			code, body := srv.do(t, http.MethodPost, "/api/orders", `{"items": []}`, employee)
			require.Equal(t, http.StatusBadRequest, code)
			assert.Contains(t, body, "validation_failed")

			code, body = srv.do(t, http.MethodPost, "/api/orders", `{"items": [{"benefit_id": "nope", "quantity": 1}]}`, employee)
			require.Equal(t, http.StatusBadRequest, code)
			assert.Contains(t, body, "decoding_failed")

			code, body = srv.do(t, http.MethodPost, "/api/orders", `{"items": [{"benefit_id": "`+benefitID.String()+`", "quantity": 1152921504606846976}]}`, employee)
			require.Equal(t, http.StatusBadRequest, code)
			assert.Contains(t, body, "Value is too large")

			require.False(t, called, "invalid request must not reach the service")
		})

		t.Run("business errors", func(t *testing.T) {
			tests := []struct {
				err  error
				code int
				body string
			}{
				{
					err:  apperrors.With(apperrors.ErrStockExceeded, "not enough stock"),
					code: http.StatusBadRequest,
					body: `{"error": "stock_exceeded", "message": "not enough stock"}`,
				},
				{
					err:  apperrors.With(apperrors.ErrBenefitNotEligible, "not eligible for \"Car\""),
					code: http.StatusForbidden,
					body: `{"error": "benefit_not_eligible", "message": "not eligible for \"Car\""}`,
				},
				{
					err:  apperrors.With(apperrors.ErrInsufficientPoints, "insufficient points: available 1, required 2"),
					code: http.StatusBadRequest,
					body: `{"error": "insufficient_points", "message": "insufficient points: available 1, required 2"}`,
				},
				{
					err:  errors.New("db is down"),
					code: http.StatusInternalServerError,
					body: `{"error": "service_error", "message": "Internal server error"}`,
				},
			}

			for _, tt := range tests {
				t.Run(tt.err.Error(), func(t *testing.T) {
					orders.reserve = func(models.Caller, []models.OrderItemInput) (models.Order, error) {
						return models.Order{}, tt.err
					}

					code, body := srv.do(t, http.MethodPost, "/api/orders", `{"items": [{"tenant_offering_id": "`+uuid.NewString()+`", "quantity": 1}]}`, employee)

					require.Equal(t, tt.code, code)
					require.JSONEq(t, tt.body, body)
				})
			}
		})
	})

	t.Run("list orders", func(t *testing.T) {
		orders.list = func(c models.Caller) ([]models.Order, error) {
			return []models.Order{order, order}, nil
		}

		code, body := srv.do(t, http.MethodGet, "/api/orders", "", employee)
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, 2, strings.Count(body, `"status":"reserved"`))

		orders.list = func(models.Caller) ([]models.Order, error) { return nil, nil }
		code, body = srv.do(t, http.MethodGet, "/api/orders", "", employee)
		require.Equal(t, http.StatusOK, code)
		require.JSONEq(t, `[]`, body)
	})

	t.Run("order actions", func(t *testing.T) {
		tests := []struct {
			name string
			err  error
			code int
		}{
			{"ok", nil, http.StatusOK},
			{"expired", apperrors.With(apperrors.ErrOrderExpired, "order reservation expired at 2025-03-01T10:15:00Z"), http.StatusBadRequest},
			{"invalid status", apperrors.With(apperrors.ErrInvalidStatus, "order is paid"), http.StatusBadRequest},
			{"not found", apperrors.With(apperrors.ErrNotFound, "order not found"), http.StatusNotFound},
			{"forbidden", apperrors.With(apperrors.ErrForbidden, "order belongs to another user"), http.StatusForbidden},
		}

		for _, path := range []string{"", "/confirm", "/cancel"} {
			for _, tt := range tests {
				t.Run(path+" "+tt.name, func(t *testing.T) {
					orders.action = func(c models.Caller, id uuid.UUID) (models.Order, error) {
						assert.Equal(t, order.ID, id)
						return order, tt.err
					}

					method := http.MethodPost
					if path == "" {
						method = http.MethodGet
					}
					code, body := srv.do(t, method, "/api/orders/"+order.ID.String()+path, "", employee)

					require.Equalf(t, tt.code, code, "body: %s", body)
					if tt.err != nil {
						var appErr *apperrors.Error
						require.True(t, errors.As(tt.err, &appErr))
						require.Contains(t, body, `"error":"`+appErr.Code+`"`)
					}
				})
			}
		}

		t.Run("malformed id", func(t *testing.T) {
			code, body := srv.do(t, http.MethodPost, "/api/orders/42/confirm", "", employee)
			require.Equal(t, http.StatusBadRequest, code)
			require.JSONEq(t, `{"error": "invalid_request", "message": "malformed order id"}`, body)
		})
	})

	t.Run("wallet", func(t *testing.T) {
		wallets.wallet = models.Wallet{ID: uuid.New(), Period: "2025-03", Balance: 1000, Reserved: 300, ExpiresAt: at}
		wallets.entries = []models.LedgerEntry{{ID: uuid.New(), Type: models.LedgerAccrual, Amount: 1000, CreatedAt: at}}

		code, body := srv.do(t, http.MethodGet, "/api/wallet", "", employee)
		require.Equal(t, http.StatusOK, code)
		require.JSONEq(t, `{
			"id": "`+wallets.wallet.ID.String()+`",
			"period": "2025-03",
			"balance": 1000,
			"reserved": 300,
			"available": 700,
			"expires_at": "2025-03-01T10:00:00Z"
		}`, body)

		code, body = srv.do(t, http.MethodGet, "/api/wallet/ledger", "", employee)
		require.Equal(t, http.StatusOK, code)
		require.JSONEq(t, `[{
			"id": "`+wallets.entries[0].ID.String()+`",
			"type": "accrual",
			"amount": 1000,
			"description": "",
			"created_at": "2025-03-01T10:00:00Z"
		}]`, body)

		wallets.err = apperrors.With(apperrors.ErrNotFound, "no active wallet")
		defer func() { wallets.err = nil }()
		code, _ = srv.do(t, http.MethodGet, "/api/wallet", "", employee)
		require.Equal(t, http.StatusNotFound, code)
	})

	t.Run("eligibility", func(t *testing.T) {
		eligibility = func(c models.Caller, id uuid.UUID) (bool, error) {
			return id == benefitID, nil
		}

		code, body := srv.do(t, http.MethodGet, "/api/benefits/"+benefitID.String()+"/eligibility", "", employee)
		require.Equal(t, http.StatusOK, code)
		require.JSONEq(t, `{"benefit_id": "`+benefitID.String()+`", "eligible": true}`, body)

		eligibility = func(models.Caller, uuid.UUID) (bool, error) {
			return false, apperrors.With(apperrors.ErrNotFound, "benefit not found")
		}
		code, _ = srv.do(t, http.MethodGet, "/api/benefits/"+uuid.NewString()+"/eligibility", "", employee)
		require.Equal(t, http.StatusNotFound, code)
	})

	t.Run("hr accruals", func(t *testing.T) {
		failed := uuid.New()
		accruals = func(tenantID uuid.UUID) (accrual.Result, error) {
			assert.Equal(t, employee.TenantID, tenantID, "accrual runs for caller's tenant")
			return accrual.Result{Processed: 3, Accrued: 1, Skipped: 1, Errors: []accrual.UserError{{UserID: failed, Error: "boom"}}}, nil
		}

		code, _ := srv.do(t, http.MethodPost, "/api/hr/accruals", "", employee)
		require.Equal(t, http.StatusForbidden, code)

		for _, c := range []*models.Caller{hr, admin} {
			code, body := srv.do(t, http.MethodPost, "/api/hr/accruals", "", c)
			require.Equal(t, http.StatusOK, code)
			require.JSONEq(t, `{
				"processed": 3,
				"accrued": 1,
				"skipped": 1,
				"errors": [{"user_id": "`+failed.String()+`", "error": "boom"}]
			}`, body)
		}
	})

	t.Run("admin reconcile", func(t *testing.T) {
		walletID := uuid.New()
		wallets.report = wallet.Report{WalletID: walletID, Balance: 10, LedgerBalance: 10, Reserved: 5, LedgerReserved: 0}

		code, _ := srv.do(t, http.MethodGet, "/api/admin/wallets/"+walletID.String()+"/reconcile", "", hr)
		require.Equal(t, http.StatusForbidden, code)

		code, body := srv.do(t, http.MethodGet, "/api/admin/wallets/"+walletID.String()+"/reconcile", "", admin)
		require.Equal(t, http.StatusOK, code)
		require.JSONEq(t, `{
			"wallet_id": "`+walletID.String()+`",
			"balance": 10,
			"reserved": 5,
			"ledger_balance": 10,
			"ledger_reserved": 0,
			"consistent": false
		}`, body)
	})
}
