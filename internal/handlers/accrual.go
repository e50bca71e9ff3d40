package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/benefitmart/internal/handlers/render"
	"github.com/nkiryanov/benefitmart/internal/handlers/userctx"
	"github.com/nkiryanov/benefitmart/internal/logger"
)

// Accrual runs for the caller's tenant only
func handleRunAccrual(accrualService accrualService, l logger.Logger) http.Handler {
	type userError struct {
		UserID uuid.UUID `json:"user_id"`
		Error  string    `json:"error"`
	}
	type response struct {
		Processed int         `json:"processed"`
		Accrued   int         `json:"accrued"`
		Skipped   int         `json:"skipped"`
		Errors    []userError `json:"errors"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		result, err := accrualService.Run(r.Context(), caller.TenantID)
		if err != nil {
			renderError(w, r, err, l, "Failed to run accrual")
			return
		}

		l.Info("Accrual run by request", "tenant_id", caller.TenantID, "user_id", caller.ID, "accrued", result.Accrued)

		errs := make([]userError, 0, len(result.Errors))
		for _, e := range result.Errors {
			errs = append(errs, userError{UserID: e.UserID, Error: e.Error})
		}
		render.JSON(w, response{
			Processed: result.Processed,
			Accrued:   result.Accrued,
			Skipped:   result.Skipped,
			Errors:    errs,
		})
	})
}
