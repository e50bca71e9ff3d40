package sweeper

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/benefitmart/internal/logger"
	"github.com/nkiryanov/benefitmart/internal/models"
)

const (
	DefaultCountWorkers  = 4                // Number of workers expiring orders
	DefaultSweepInterval = 30 * time.Second // Interval for looking up expired reservations
	DefaultBatchSize     = 100              // Max orders fetched on one tick
)

type orderService interface {
	ListExpired(ctx context.Context, limit int) ([]models.Order, error)
	Expire(ctx context.Context, orderID uuid.UUID) (bool, error)
}

type Option func(*Sweeper)

func WithInterval(d time.Duration) Option {
	return func(s *Sweeper) {
		s.producer.interval = d
	}
}

func WithWorkers(n int) Option {
	return func(s *Sweeper) {
		s.consumer.countWorkers = n
	}
}

func WithBatchSize(n int) Option {
	return func(s *Sweeper) {
		s.producer.batchSize = n
	}
}

// Sweeper moves reserved orders with elapsed reservation to 'expired'
// Releasing points and stock is done by the order service, the sweeper only finds and dispatches
type Sweeper struct {
	consumer *Consumer
	producer *Producer
}

func New(orderService orderService, l logger.Logger, opts ...Option) *Sweeper {
	s := &Sweeper{
		consumer: &Consumer{
			countWorkers: DefaultCountWorkers,
			orderService: orderService,
			logger:       l,
		},
		producer: &Producer{
			interval:     DefaultSweepInterval,
			batchSize:    DefaultBatchSize,
			orderService: orderService,
			logger:       l,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep runs producer and consumers till ctx is done
// Returned channel is closed when all goroutines stopped
func (s *Sweeper) Sweep(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})

	orderChan := make(chan uuid.UUID)

	producerStopped := s.producer.Produce(ctx, orderChan)
	consumerStopped := s.consumer.Consume(ctx, orderChan)

	go func() {
		defer close(idleStopped)
		defer close(orderChan)
		<-producerStopped
		<-consumerStopped
		s.consumer.logger.Debug("Sweeper stopped")
	}()

	return idleStopped
}
