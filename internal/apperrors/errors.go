package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Repository level errors
var (
	ErrProfileNotFound  = errors.New("employee profile not found")
	ErrBenefitNotFound  = errors.New("benefit not found")
	ErrOfferingNotFound = errors.New("tenant offering not found")
	ErrOrderNotFound    = errors.New("order not found")
	ErrWalletNotFound   = errors.New("wallet not found")

	ErrWalletAlreadyExists  = errors.New("wallet for the period already exists")
	ErrAccrualAlreadyExists = errors.New("wallet already has accrual entry")

	ErrBalanceInsufficient = errors.New("insufficient balance")
	ErrOrderStatusChanged  = errors.New("order status changed concurrently")
	ErrReservationMismatch = errors.New("wallet reserved amount is less than order total")
)

// Business error codes. Every code maps to one HTTP status
const (
	CodeInvalidRequest      = "invalid_request"
	CodeBenefitNotAvailable = "benefit_not_available"
	CodeStockExceeded       = "stock_exceeded"
	CodeBenefitNotEligible  = "benefit_not_eligible"
	CodeInsufficientPoints  = "insufficient_points"
	CodeNotFound            = "NOT_FOUND"
	CodeForbidden           = "FORBIDDEN"
	CodeInvalidStatus       = "INVALID_STATUS"
	CodeOrderExpired        = "ORDER_EXPIRED"
)

// Error is a business rule failure returned (never panicked) by services
// Handlers render it as is: Status as HTTP code, Code and Message as body
type Error struct {
	Code    string
	Message string
	Status  int
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// Is reports errors with the same code as equal
// So errors.Is(err, apperrors.ErrStockExceeded) works for any message
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrInvalidRequest      = &Error{Code: CodeInvalidRequest, Status: http.StatusBadRequest}
	ErrBenefitNotAvailable = &Error{Code: CodeBenefitNotAvailable, Status: http.StatusBadRequest}
	ErrStockExceeded       = &Error{Code: CodeStockExceeded, Status: http.StatusBadRequest}
	ErrBenefitNotEligible  = &Error{Code: CodeBenefitNotEligible, Status: http.StatusForbidden}
	ErrInsufficientPoints  = &Error{Code: CodeInsufficientPoints, Status: http.StatusBadRequest}
	ErrNotFound            = &Error{Code: CodeNotFound, Status: http.StatusNotFound}
	ErrForbidden           = &Error{Code: CodeForbidden, Status: http.StatusForbidden}
	ErrInvalidStatus       = &Error{Code: CodeInvalidStatus, Status: http.StatusBadRequest}
	ErrOrderExpired        = &Error{Code: CodeOrderExpired, Status: http.StatusBadRequest}
)

// Wrap well known error with a human message
func With(base *Error, format string, args ...any) *Error {
	return &Error{
		Code:    base.Code,
		Message: fmt.Sprintf(format, args...),
		Status:  base.Status,
	}
}
