package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/benefitmart/internal/handlers/render"
	"github.com/nkiryanov/benefitmart/internal/handlers/userctx"
	"github.com/nkiryanov/benefitmart/internal/logger"
)

func handleEligibility(eligibilityService eligibilityService, l logger.Logger) http.Handler {
	type response struct {
		BenefitID uuid.UUID `json:"benefit_id"`
		Eligible  bool      `json:"eligible"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		benefitID, ok := urlID(w, chi.URLParam(r, "benefitID"), "benefit id")
		if !ok {
			return
		}

		eligible, err := eligibilityService.CheckBenefit(r.Context(), caller, benefitID)
		if err != nil {
			renderError(w, r, err, l, "Failed to check eligibility")
			return
		}

		render.JSON(w, response{BenefitID: benefitID, Eligible: eligible})
	})
}
