package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/benefitmart/internal/logger"
	"github.com/nkiryanov/benefitmart/internal/models"
	"github.com/nkiryanov/benefitmart/internal/repository/postgres"
	"github.com/nkiryanov/benefitmart/internal/service/order"
	"github.com/nkiryanov/benefitmart/internal/testutil"
)

type fakeOrders struct {
	mu       sync.Mutex
	pending  []uuid.UUID
	expired  map[uuid.UUID]int
	listErr  error
	failOnce map[uuid.UUID]bool
}

func newFakeOrders(ids ...uuid.UUID) *fakeOrders {
	return &fakeOrders{pending: ids, expired: map[uuid.UUID]int{}, failOnce: map[uuid.UUID]bool{}}
}

func (f *fakeOrders) ListExpired(_ context.Context, limit int) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.listErr != nil {
		err := f.listErr
		f.listErr = nil
		return nil, err
	}

	var orders []models.Order
	for _, id := range f.pending {
		if len(orders) == limit {
			break
		}
		orders = append(orders, models.Order{ID: id, Status: models.OrderStatusReserved})
	}
	return orders, nil
}

func (f *fakeOrders) Expire(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failOnce[id] {
		delete(f.failOnce, id)
		return false, errors.New("db is down")
	}

	f.expired[id]++
	for i, p := range f.pending {
		if p == id {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeOrders) left() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

func TestSweeper(t *testing.T) {
	t.Run("expires every pending order", func(t *testing.T) {
		ids := make([]uuid.UUID, 25)
		for i := range ids {
			ids[i] = uuid.New()
		}
		orders := newFakeOrders(ids...)
		orders.failOnce[ids[3]] = true
		orders.listErr = errors.New("temporary")

		ctx, cancel := context.WithCancel(t.Context())
		s := New(orders, logger.NewNoOpLogger(), WithInterval(5*time.Millisecond), WithBatchSize(10), WithWorkers(3))
		stopped := s.Sweep(ctx)

		require.Eventually(t, func() bool { return orders.left() == 0 }, 5*time.Second, 10*time.Millisecond)

		cancel()
		select {
		case <-stopped:
		case <-time.After(time.Second):
			t.Fatal("sweeper must stop when context cancelled")
		}

		for _, id := range ids {
			require.GreaterOrEqual(t, orders.expired[id], 1)
		}
	})

	t.Run("stops without work", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		stopped := New(newFakeOrders(), logger.NewNoOpLogger()).Sweep(ctx)
		cancel()

		select {
		case <-stopped:
		case <-time.After(time.Second):
			t.Fatal("sweeper must stop when context cancelled")
		}
	})
}

func TestSweeper_Postgres(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	storage := postgres.NewStorage(pg.Pool)
	f := testutil.NewFixtures(t, storage)

	// Orders are reserved in the past, so they are already expired for the sweeper
	past := time.Now().Add(-time.Hour)
	reserving := order.NewService(storage, order.WithClock(func() time.Time { return past }))
	sweeping := order.NewService(storage)

	tenantID := uuid.New()
	caller := models.Caller{ID: uuid.New(), TenantID: tenantID}
	wallet := f.Wallet(caller.ID, tenantID, 1000, time.Now().Add(24*time.Hour))
	benefit := f.Benefit(models.Benefit{TenantID: tenantID, PricePoints: 100, StockLimit: testutil.Ptr[int64](10)})

	var ids []uuid.UUID
	for range 3 {
		o, err := reserving.Reserve(t.Context(), caller, []models.OrderItemInput{{BenefitID: &benefit.ID, Quantity: 1}})
		require.NoError(t, err)
		ids = append(ids, o.ID)
	}

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	s := New(sweeping, logger.NewNoOpLogger(), WithInterval(20*time.Millisecond))
	stopped := s.Sweep(ctx)

	require.Eventually(t, func() bool {
		left, err := sweeping.ListExpired(t.Context(), 10)
		return err == nil && len(left) == 0
	}, 10*time.Second, 50*time.Millisecond)

	cancel()
	<-stopped

	for _, id := range ids {
		o, err := storage.Order().GetOrder(t.Context(), id, false)
		require.NoError(t, err)
		require.Equal(t, models.OrderStatusExpired, o.Status)
	}

	w, err := storage.Wallet().GetWallet(t.Context(), wallet.ID, false)
	require.NoError(t, err)
	require.Equal(t, int64(1000), w.Balance)
	require.Zero(t, w.Reserved)

	b, err := storage.Catalog().GetBenefit(t.Context(), tenantID, benefit.ID)
	require.NoError(t, err)
	require.Equal(t, int64(10), *b.StockLimit)
}
