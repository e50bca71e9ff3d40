package userctx

import (
	"context"

	"github.com/nkiryanov/benefitmart/internal/models"
)

type ctxKey string

const (
	callerKey ctxKey = "caller"
	slotKey   ctxKey = "caller_slot"
)

// Slot receives the caller once authentication resolves it further down the handler chain
// Outer middlewares (access log) read it after the request is served
type Slot struct {
	Caller models.Caller
	Set    bool
}

// WithSlot returns context carrying an empty slot
func WithSlot(ctx context.Context) (context.Context, *Slot) {
	s := &Slot{}
	return context.WithValue(ctx, slotKey, s), s
}

// Create a new context with the caller
func New(ctx context.Context, c models.Caller) context.Context {
	if s, ok := ctx.Value(slotKey).(*Slot); ok {
		s.Caller, s.Set = c, true
	}
	return context.WithValue(ctx, callerKey, c)
}

// Extract the caller from the context
func FromContext(ctx context.Context) (models.Caller, bool) {
	c, ok := ctx.Value(callerKey).(models.Caller)
	return c, ok
}
