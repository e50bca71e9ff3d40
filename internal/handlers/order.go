package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/benefitmart/internal/handlers/render"
	"github.com/nkiryanov/benefitmart/internal/handlers/userctx"
	"github.com/nkiryanov/benefitmart/internal/logger"
	"github.com/nkiryanov/benefitmart/internal/models"
)

type orderItemResponse struct {
	ID                 uuid.UUID  `json:"id"`
	BenefitID          *uuid.UUID `json:"benefit_id,omitempty"`
	TenantOfferingID   *uuid.UUID `json:"tenant_offering_id,omitempty"`
	ProviderOfferingID *uuid.UUID `json:"provider_offering_id,omitempty"`
	Quantity           int64      `json:"quantity"`
	PricePoints        int64      `json:"price_points"`
	Name               string     `json:"name,omitempty"`
	Description        string     `json:"description,omitempty"`
}

type orderResponse struct {
	ID          uuid.UUID           `json:"id"`
	Status      string              `json:"status"`
	WalletID    uuid.UUID           `json:"wallet_id"`
	TotalPoints int64               `json:"total_points"`
	ReservedAt  time.Time           `json:"reserved_at"`
	ExpiresAt   time.Time           `json:"expires_at"`
	CreatedAt   time.Time           `json:"created_at"`
	Items       []orderItemResponse `json:"items"`
}

func newOrderResponse(o models.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		item := orderItemResponse{
			ID:                 it.ID,
			BenefitID:          it.BenefitID,
			TenantOfferingID:   it.TenantOfferingID,
			ProviderOfferingID: it.ProviderOfferingID,
			Quantity:           it.Quantity,
			PricePoints:        it.PricePoints,
		}
		if it.Display != nil {
			item.Name = it.Display.Name
			item.Description = it.Display.Description
		}
		items = append(items, item)
	}

	return orderResponse{
		ID:          o.ID,
		Status:      o.Status,
		WalletID:    o.WalletID,
		TotalPoints: o.TotalPoints,
		ReservedAt:  utc(o.ReservedAt),
		ExpiresAt:   utc(o.ExpiresAt),
		CreatedAt:   utc(o.CreatedAt),
		Items:       items,
	}
}

func handleCreateOrder(orderService orderService, l logger.Logger) http.Handler {
	type item struct {
		BenefitID        *uuid.UUID `json:"benefit_id" validate:"required_without=TenantOfferingID,excluded_with=TenantOfferingID"`
		TenantOfferingID *uuid.UUID `json:"tenant_offering_id"`
		Quantity         int64      `json:"quantity" validate:"min=1,max=10000"`
	}
	type request struct {
		Items []item `json:"items" validate:"required,min=1,dive"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		inputs := make([]models.OrderItemInput, 0, len(data.Items))
		for _, it := range data.Items {
			inputs = append(inputs, models.OrderItemInput{
				BenefitID:        it.BenefitID,
				TenantOfferingID: it.TenantOfferingID,
				Quantity:         it.Quantity,
			})
		}

		order, err := orderService.Reserve(r.Context(), caller, inputs)
		if err != nil {
			renderError(w, r, err, l, "Failed to reserve order")
			return
		}

		render.JSONWithStatus(w, newOrderResponse(order), http.StatusCreated)
	})
}

func handleListOrders(orderService orderService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		orders, err := orderService.List(r.Context(), caller)
		if err != nil {
			renderError(w, r, err, l, "Failed to list orders")
			return
		}

		res := make([]orderResponse, 0, len(orders))
		for _, o := range orders {
			res = append(res, newOrderResponse(o))
		}
		render.JSON(w, res)
	})
}

func handleGetOrder(orderService orderService, l logger.Logger) http.Handler {
	return orderAction(orderService.Get, l, "Failed to get order")
}

func handleConfirmOrder(orderService orderService, l logger.Logger) http.Handler {
	return orderAction(orderService.Confirm, l, "Failed to confirm order")
}

func handleCancelOrder(orderService orderService, l logger.Logger) http.Handler {
	return orderAction(orderService.Cancel, l, "Failed to cancel order")
}

type orderFunc func(ctx context.Context, caller models.Caller, orderID uuid.UUID) (models.Order, error)

// orderAction serves endpoints that take order id from path and return the order
func orderAction(fn orderFunc, l logger.Logger, failMsg string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		orderID, ok := urlID(w, chi.URLParam(r, "orderID"), "order id")
		if !ok {
			return
		}

		order, err := fn(r.Context(), caller, orderID)
		if err != nil {
			renderError(w, r, err, l, failMsg)
			return
		}

		render.JSON(w, newOrderResponse(order))
	})
}
