package sweeper

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/nkiryanov/benefitmart/internal/logger"
)

type Consumer struct {
	countWorkers int
	orderService orderService
	logger       logger.Logger
}

func (c *Consumer) Consume(ctx context.Context, in <-chan uuid.UUID) <-chan struct{} {
	idleStopped := make(chan struct{})

	var wg sync.WaitGroup
	for range c.countWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.worker(ctx, in)
		}()
	}

	go func() {
		defer close(idleStopped)
		wg.Wait()
		c.logger.Debug("Sweeper consumer stopped")
	}()

	return idleStopped
}

func (c *Consumer) worker(ctx context.Context, in <-chan uuid.UUID) {
	for {
		select {
		case <-ctx.Done():
			return

		case orderID, ok := <-in:
			if !ok {
				return
			}

			// Expire re-checks the order under lock, so a concurrent cancel or a
			// duplicate from the next tick ends up as a no-op
			expired, err := c.orderService.Expire(ctx, orderID)
			switch {
			case err != nil:
				c.logger.Error("Failed to expire order", "order_id", orderID, "error", err)
			case !expired:
				c.logger.Debug("Order already left reserved status", "order_id", orderID)
			}
		}
	}
}
