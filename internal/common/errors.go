package common

import (
	"errors"
	"net/http"
)

// Domain error kinds shared by the catalog, cart, account and checkout packages.
// Callers wrap them with context and match with errors.Is.
var (
	ErrNotFound             = errors.New("not found")
	ErrDuplicate            = errors.New("already exists")
	ErrInvalidQuantity      = errors.New("invalid quantity")
	ErrInvalidRating        = errors.New("rating must be between 1 and 5")
	ErrInvalidDiscountRate  = errors.New("discount rate must be in (0, 1]")
	ErrInvalidStarLevel     = errors.New("star level must be between 1 and 5")
	ErrInvalidBuyerID       = errors.New("buyer id outside every membership range")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrEmptyCart            = errors.New("cart is empty")
	ErrForbidden            = errors.New("forbidden")
	ErrInvalidInput         = errors.New("invalid input")
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

var domainCodes = []struct {
	kind   error
	code   string
	status int
}{
	{ErrNotFound, "NOT_FOUND", http.StatusNotFound},
	{ErrDuplicate, "CONFLICT", http.StatusConflict},
	{ErrInvalidQuantity, "INVALID_QUANTITY", http.StatusUnprocessableEntity},
	{ErrInvalidRating, "INVALID_RATING", http.StatusUnprocessableEntity},
	{ErrInvalidDiscountRate, "INVALID_DISCOUNT_RATE", http.StatusUnprocessableEntity},
	{ErrInvalidStarLevel, "INVALID_STAR_LEVEL", http.StatusUnprocessableEntity},
	{ErrInvalidBuyerID, "INVALID_BUYER_ID", http.StatusForbidden},
	{ErrAuthenticationFailed, "INVALID_CREDENTIALS", http.StatusUnauthorized},
	{ErrEmptyCart, "EMPTY_CART", http.StatusConflict},
	{ErrForbidden, "FORBIDDEN", http.StatusForbidden},
	{ErrInvalidInput, "VALIDATION_FAILED", http.StatusBadRequest},
}

// FromDomain converts err into an AppError. Existing AppErrors pass through,
// domain kinds map to their API code, anything else becomes INTERNAL.
func FromDomain(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	for _, dc := range domainCodes {
		if errors.Is(err, dc.kind) {
			return NewAppError(dc.code, err.Error(), dc.status, err)
		}
	}
	return NewAppError("INTERNAL", "internal error", http.StatusInternalServerError, err)
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}
