package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nkiryanov/benefitmart/internal/db"
	"github.com/nkiryanov/benefitmart/internal/events"
	"github.com/nkiryanov/benefitmart/internal/handlers"
	"github.com/nkiryanov/benefitmart/internal/logger"
	"github.com/nkiryanov/benefitmart/internal/repository/postgres"
	"github.com/nkiryanov/benefitmart/internal/service/accrual"
	"github.com/nkiryanov/benefitmart/internal/service/auth"
	"github.com/nkiryanov/benefitmart/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/benefitmart/internal/service/eligibility"
	"github.com/nkiryanov/benefitmart/internal/service/order"
	"github.com/nkiryanov/benefitmart/internal/service/sweeper"
	"github.com/nkiryanov/benefitmart/internal/service/wallet"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger    logger.Logger
	pool      *pgxpool.Pool
	publisher events.Publisher
	sweeper   *sweeper.Sweeper
	scheduler *accrual.Scheduler
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	l, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	tenants, err := c.Tenants()
	if err != nil {
		return nil, err
	}

	tokenManager, err := tokenmanager.New(tokenmanager.Config{SecretKey: c.SecretKey})
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	var publisher events.Publisher = events.Noop{}
	if c.AMQPURL != "" {
		publisher, err = events.NewAMQPPublisher(c.AMQPURL, c.AMQPExchange, l.With("component", "events"))
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("error while connecting to broker. Err: %w", err)
		}
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Initialize services
	orderService := order.NewService(storage,
		order.WithPublisher(publisher),
		order.WithLogger(l.With("component", "orders")),
		order.WithReservationTTL(c.ReservationTTL),
	)
	walletService := wallet.NewService(storage, l.With("component", "wallets"))
	accrualService := accrual.NewService(storage, l.With("component", "accrual"))
	authService := auth.NewService(auth.Config{}, tokenManager)

	router := handlers.NewRouter(
		handlers.Services{
			Auth:        authService,
			Order:       orderService,
			Wallet:      walletService,
			Eligibility: eligibility.NewChecker(storage),
			Accrual:     accrualService,
		},
		c.CORSOrigins,
		l,
	)

	app := &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    router,
		logger:     l,
		pool:       pool,
		publisher:  publisher,
		sweeper:    sweeper.New(orderService, l.With("component", "sweeper"), sweeper.WithInterval(c.SweepInterval)),
	}
	if len(tenants) > 0 {
		app.scheduler = accrual.NewScheduler(c.AccrualInterval, tenants, accrualService, l.With("component", "accrual"))
	}

	return app, nil
}

// Run starts background workers and http server, closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	workersCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	stopped := []<-chan struct{}{s.sweeper.Sweep(workersCtx)}
	if s.scheduler != nil {
		stopped = append(stopped, s.scheduler.Start(workersCtx))
	}

	err := s.serve(ctx)

	stopWorkers()
	for _, ch := range stopped {
		<-ch
	}
	s.logger.Info("Background workers stopped")

	return err
}

func (s *ServerApp) serve(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close releases broker and database connections
func (s *ServerApp) Close() error {
	err := s.publisher.Close()
	s.pool.Close()
	return err
}
