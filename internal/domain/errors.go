package domain

import "fmt"

// AppError is the base domain error type.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// Standard domain error constructors.

func ErrValidation(msg string) *AppError {
	return &AppError{Code: "VALIDATION_ERROR", Message: msg, Status: 400}
}

func ErrInvalidPackage(key string) *AppError {
	return &AppError{Code: "INVALID_PACKAGE", Message: fmt.Sprintf("unknown package %q", key), Status: 400}
}

func ErrInvalidSignature() *AppError {
	return &AppError{Code: "INVALID_SIGNATURE", Message: "payment signature verification failed", Status: 400}
}

func ErrPaymentNotFound(orderID string) *AppError {
	return &AppError{Code: "PAYMENT_NOT_FOUND", Message: fmt.Sprintf("payment for order %s not found", orderID), Status: 404}
}

// ErrPaymentAlreadyProcessed marks an idempotent duplicate completion. Callers
// treat it as success; it never surfaces as a failure response.
func ErrPaymentAlreadyProcessed(orderID string) *AppError {
	return &AppError{Code: "PAYMENT_ALREADY_PROCESSED", Message: fmt.Sprintf("payment for order %s already processed", orderID), Status: 200}
}

func ErrInsufficientCredits() *AppError {
	return &AppError{Code: "INSUFFICIENT_CREDITS", Message: "insufficient credits", Status: 402}
}

func ErrNotRefundable(msg string) *AppError {
	return &AppError{Code: "NOT_REFUNDABLE", Message: msg, Status: 422}
}

func ErrGatewayUnavailable(cause error) *AppError {
	return &AppError{Code: "GATEWAY_UNAVAILABLE", Message: "payment gateway unavailable, retry later", Status: 503, Cause: cause}
}

func ErrNotFound(entity, id string) *AppError {
	return &AppError{Code: "NOT_FOUND", Message: fmt.Sprintf("%s %s not found", entity, id), Status: 404}
}

func ErrConflict(msg string) *AppError {
	return &AppError{Code: "CONFLICT", Message: msg, Status: 409}
}

func ErrUnauthorized(msg string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Message: msg, Status: 401}
}

func ErrLimitBreached(limit string) *AppError {
	return &AppError{Code: "PURCHASE_LIMIT_BREACHED", Message: fmt.Sprintf("purchase exceeds %s limit", limit), Status: 422}
}

func ErrInternal(msg string, cause error) *AppError {
	return &AppError{Code: "INTERNAL_ERROR", Message: msg, Status: 500, Cause: cause}
}
