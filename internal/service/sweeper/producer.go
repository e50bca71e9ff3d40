package sweeper

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/benefitmart/internal/logger"
)

type Producer struct {
	interval     time.Duration
	batchSize    int
	logger       logger.Logger
	orderService orderService
}

func (p *Producer) Produce(ctx context.Context, out chan<- uuid.UUID) <-chan struct{} {
	idleStopped := make(chan struct{})
	p.logger.Debug("Starting sweeper producer", "interval", p.interval, "batch_size", p.batchSize)

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				p.logger.Debug("Sweeper producer stopped by context")
				return

			case <-ticker.C:
				orders, err := p.orderService.ListExpired(ctx, p.batchSize)
				if err != nil {
					p.logger.Error("Failed to list expired orders", "error", err)
					continue
				}
				if len(orders) > 0 {
					p.logger.Debug("Expired reservations found", "count", len(orders))
				}

				for _, order := range orders {
					select {
					case <-ctx.Done():
						p.logger.Debug("Sweeper producer stopped by context while sending orders")
						return
					case out <- order.ID:
					}
				}
			}
		}
	}()

	return idleStopped
}
