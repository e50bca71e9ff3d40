package wallet

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/benefitmart/internal/apperrors"
	"github.com/nkiryanov/benefitmart/internal/logger"
	"github.com/nkiryanov/benefitmart/internal/models"
	"github.com/nkiryanov/benefitmart/internal/repository"
	"github.com/nkiryanov/benefitmart/internal/repository/postgres"
	"github.com/nkiryanov/benefitmart/internal/service/order"
	"github.com/nkiryanov/benefitmart/internal/testutil"
)

func TestWallet(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	now := time.Now().UTC().Truncate(time.Microsecond)

	withTx := func(t *testing.T, fn func(s *WalletService, storage repository.Storage, f *testutil.Fixtures)) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			s := NewService(storage, logger.NewNoOpLogger(), WithClock(func() time.Time { return now }))
			fn(s, storage, testutil.NewFixtures(t, storage))
		})
	}

	t.Run("Current", func(t *testing.T) {
		withTx(t, func(s *WalletService, storage repository.Storage, f *testutil.Fixtures) {
			caller := models.Caller{ID: uuid.New(), TenantID: uuid.New()}
			f.Wallet(caller.ID, caller.TenantID, 100, now.Add(-time.Minute))

			_, err := s.Current(t.Context(), caller)
			require.ErrorIs(t, err, apperrors.ErrNotFound, "expired wallet is not current")

			current := f.Wallet(caller.ID, caller.TenantID, 300, now.Add(time.Hour))

			got, err := s.Current(t.Context(), caller)
			require.NoError(t, err)
			require.Equal(t, current.ID, got.ID)
			require.Equal(t, int64(300), got.Available())
		})
	})

	t.Run("Ledger", func(t *testing.T) {
		withTx(t, func(s *WalletService, storage repository.Storage, f *testutil.Fixtures) {
			caller := models.Caller{ID: uuid.New(), TenantID: uuid.New()}
			w := f.Wallet(caller.ID, caller.TenantID, 300, now.Add(time.Hour))

			entries, err := s.Ledger(t.Context(), caller, w.ID)
			require.NoError(t, err)
			require.Len(t, entries, 1)
			require.Equal(t, models.LedgerAccrual, entries[0].Type)

			_, err = s.Ledger(t.Context(), models.Caller{ID: uuid.New(), TenantID: caller.TenantID}, w.ID)
			require.ErrorIs(t, err, apperrors.ErrForbidden)

			_, err = s.Ledger(t.Context(), models.Caller{ID: caller.ID, TenantID: uuid.New()}, w.ID)
			require.ErrorIs(t, err, apperrors.ErrNotFound)

			_, err = s.Ledger(t.Context(), caller, uuid.New())
			require.ErrorIs(t, err, apperrors.ErrNotFound)
		})
	})

	t.Run("Reconcile", func(t *testing.T) {
		t.Run("consistent after order flow", func(t *testing.T) {
			withTx(t, func(s *WalletService, storage repository.Storage, f *testutil.Fixtures) {
				caller := models.Caller{ID: uuid.New(), TenantID: uuid.New()}
				w := f.Wallet(caller.ID, caller.TenantID, 1000, now.Add(time.Hour))
				b := f.Benefit(models.Benefit{TenantID: caller.TenantID, PricePoints: 150})

				orders := order.NewService(storage, order.WithClock(func() time.Time { return now }))
				items := []models.OrderItemInput{{BenefitID: &b.ID, Quantity: 2}}

				paid, err := orders.Reserve(t.Context(), caller, items)
				require.NoError(t, err)
				_, err = orders.Confirm(t.Context(), caller, paid.ID)
				require.NoError(t, err)

				cancelled, err := orders.Reserve(t.Context(), caller, items)
				require.NoError(t, err)
				_, err = orders.Cancel(t.Context(), caller, cancelled.ID)
				require.NoError(t, err)

				_, err = orders.Reserve(t.Context(), caller, items)
				require.NoError(t, err)

				report, err := s.Reconcile(t.Context(), caller, w.ID)
				require.NoError(t, err)
				require.True(t, report.Consistent(), "report: %+v", report)
				require.Equal(t, int64(700), report.LedgerBalance)
				require.Equal(t, int64(300), report.LedgerReserved)
			})
		})

		t.Run("drift reported", func(t *testing.T) {
			withTx(t, func(s *WalletService, storage repository.Storage, f *testutil.Fixtures) {
				admin := models.Caller{ID: uuid.New(), TenantID: uuid.New(), Role: models.RoleAdmin}
				w := f.Wallet(uuid.New(), admin.TenantID, 1000, now.Add(time.Hour))

				// Balance changed bypassing the ledger
				_, err := storage.Wallet().AddBalance(t.Context(), w.ID, 50)
				require.NoError(t, err)

				report, err := s.Reconcile(t.Context(), admin, w.ID)
				require.NoError(t, err)
				require.False(t, report.Consistent())
				require.Equal(t, int64(1050), report.Balance)
				require.Equal(t, int64(1000), report.LedgerBalance)

				_, err = s.Reconcile(t.Context(), models.Caller{TenantID: uuid.New(), Role: models.RoleAdmin}, w.ID)
				require.ErrorIs(t, err, apperrors.ErrNotFound, "admin can't see other tenants wallets")
			})
		})
	})
}
