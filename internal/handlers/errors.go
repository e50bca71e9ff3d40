package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/benefitmart/internal/apperrors"
	"github.com/nkiryanov/benefitmart/internal/handlers/render"
	"github.com/nkiryanov/benefitmart/internal/logger"
)

// renderError writes business errors as is, anything else is logged and hidden behind 500
func renderError(w http.ResponseWriter, r *http.Request, err error, l logger.Logger, msg string) {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		render.AppError(w, appErr)
		return
	}

	l.Error(msg, "error", err, "method", r.Method, "uri", r.RequestURI)
	render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
}

// urlID parses uuid path parameter, writes error response if it is malformed
func urlID(w http.ResponseWriter, value string, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(value)
	if err != nil {
		render.AppError(w, apperrors.With(apperrors.ErrInvalidRequest, "malformed %s", name))
		return uuid.Nil, false
	}
	return id, true
}
