package apperrors

import (
	"errors"
	"net/http"
)

// Machine-readable error codes returned in the "errors" field of responses.
const (
	CodeMissingToken           = "MISSING_TOKEN"
	CodeInvalidToken           = "INVALID_TOKEN"
	CodeAccessDenied           = "ACCESS_DENIED"
	CodeNotVendor              = "NOT_VENDOR"
	CodeWrongProductID         = "WRONG_PRODUCT_ID"
	CodeInsufficientFunds      = "INSUFFICIENT_FUNDS"
	CodeNotEnoughStock         = "NOT_ENOUGH_STOCK"
	CodeInvalidAmount          = "INVALID_AMOUNT"
	CodeNaNProductAmount       = "NAN_PRODUCT_AMOUNT"
	CodeUsernameTaken          = "USERNAME_TAKEN"
	CodeUserNotFound           = "USER_NOT_FOUND"
	CodeChangeNotRepresentable = "CHANGE_NOT_REPRESENTABLE"
	CodeInvalidRequest         = "INVALID_REQUEST"
	CodeTooManyRequests        = "TOO_MANY_REQUESTS"
	CodeInternalError          = "INTERNAL_ERROR"
)

// Codes used inside the "form_errors" field, keyed by input field name.
const (
	CodeRequiredField   = "REQUIRED_FIELD"
	CodeInvalidLength   = "INVALID_LENGTH"
	CodeInvalidUsername = "INVALID_USERNAME"
	CodeInvalidLogin    = "INVALID_LOGIN"
	CodeInvalidRole     = "INVALID_ROLE"
)

// Error is a request-level failure carrying the wire code and HTTP status it
// maps to. Validation errors are detected before any mutation and returned as
// structured payloads, never as panics.
type Error struct {
	Code    string
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrMissingToken           = &Error{Code: CodeMissingToken, Status: http.StatusForbidden, Message: "authentication token required"}
	ErrInvalidToken           = &Error{Code: CodeInvalidToken, Status: http.StatusForbidden, Message: "invalid authentication token"}
	ErrAccessDenied           = &Error{Code: CodeAccessDenied, Status: http.StatusForbidden, Message: "access denied"}
	ErrNotVendor              = &Error{Code: CodeNotVendor, Status: http.StatusForbidden, Message: "only vendors may list products"}
	ErrWrongProductID         = &Error{Code: CodeWrongProductID, Status: http.StatusNotFound, Message: "product not found"}
	ErrInsufficientFunds      = &Error{Code: CodeInsufficientFunds, Status: http.StatusForbidden, Message: "balance too low for this purchase"}
	ErrNotEnoughStock         = &Error{Code: CodeNotEnoughStock, Status: http.StatusBadRequest, Message: "requested quantity exceeds available stock"}
	ErrInvalidAmount          = &Error{Code: CodeInvalidAmount, Status: http.StatusBadRequest, Message: "amount is not an accepted denomination"}
	ErrNaNProductAmount       = &Error{Code: CodeNaNProductAmount, Status: http.StatusBadRequest, Message: "amount must be a positive integer"}
	ErrUsernameTaken          = &Error{Code: CodeUsernameTaken, Status: http.StatusBadRequest, Message: "username already registered"}
	ErrUserNotFound           = &Error{Code: CodeUserNotFound, Status: http.StatusNotFound, Message: "user not found"}
	ErrChangeNotRepresentable = &Error{Code: CodeChangeNotRepresentable, Status: http.StatusInternalServerError, Message: "change cannot be represented in available denominations"}
)

// ValidationError carries per-field failures for the "form_errors" envelope
// field. Always maps to HTTP 400.
type ValidationError struct {
	FormErrors map[string][]string
}

func (e *ValidationError) Error() string {
	return "request validation failed"
}

// AsError extracts an *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// AsValidationError extracts a *ValidationError from an error chain.
func AsValidationError(err error) (*ValidationError, bool) {
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return valErr, true
	}
	return nil, false
}
