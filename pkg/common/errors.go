package common

import (
	"errors"
	"net/http"
)

// Common error types
var (
	ErrNotFound           = errors.New("resource not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrBadRequest         = errors.New("bad request")
	ErrInternalServer     = errors.New("internal server error")
	ErrConflict           = errors.New("resource conflict")
	ErrValidation         = errors.New("validation error")
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("expired token")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Machine-readable error codes surfaced in the response envelope.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeNotFound          = "NOT_FOUND"
	CodeConflict          = "CONFLICT"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeAlreadyAssigned   = "ALREADY_ASSIGNED"
	CodeProofRequired     = "PROOF_REQUIRED"
	CodePaymentError      = "PAYMENT_ERROR"
	CodePaymentPending    = "PAYMENT_PENDING"
	CodeDependency        = "DEPENDENCY_ERROR"
	CodeInternal          = "INTERNAL_ERROR"
)

// AppError represents an application error with HTTP status code and a
// machine-readable error code for clients.
type AppError struct {
	Code      int    `json:"code"`
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	Err       error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes the wrapped cause to errors.Is / errors.As.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithErrorCode overrides the machine-readable code, keeping status and message.
func (e *AppError) WithErrorCode(code string) *AppError {
	e.ErrorCode = code
	return e
}

// NewAppError creates a new AppError
func NewAppError(code int, errorCode, message string, err error) *AppError {
	return &AppError{
		Code:      code,
		ErrorCode: errorCode,
		Message:   message,
		Err:       err,
	}
}

// Common error constructors
func NewNotFoundError(message string, err error) *AppError {
	return &AppError{
		Code:      http.StatusNotFound,
		ErrorCode: CodeNotFound,
		Message:   message,
		Err:       err,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:      http.StatusUnauthorized,
		ErrorCode: CodeUnauthorized,
		Message:   message,
		Err:       ErrUnauthorized,
	}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{
		Code:      http.StatusForbidden,
		ErrorCode: CodeForbidden,
		Message:   message,
		Err:       ErrForbidden,
	}
}

func NewBadRequestError(message string, err error) *AppError {
	return &AppError{
		Code:      http.StatusBadRequest,
		ErrorCode: CodeValidation,
		Message:   message,
		Err:       err,
	}
}

func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Code:      http.StatusInternalServerError,
		ErrorCode: CodeInternal,
		Message:   message,
		Err:       err,
	}
}

func NewInternalErrorWithError(message string, err error) *AppError {
	return NewInternalError(message, err)
}

func NewInternalServerError(message string) *AppError {
	return &AppError{
		Code:      http.StatusInternalServerError,
		ErrorCode: CodeInternal,
		Message:   message,
		Err:       ErrInternalServer,
	}
}

func NewConflictError(message string) *AppError {
	return &AppError{
		Code:      http.StatusConflict,
		ErrorCode: CodeConflict,
		Message:   message,
		Err:       ErrConflict,
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:      http.StatusBadRequest,
		ErrorCode: CodeValidation,
		Message:   message,
		Err:       ErrValidation,
	}
}

// NewInvalidTransitionError rejects a state-machine request the current
// status does not allow.
func NewInvalidTransitionError(message string) *AppError {
	return &AppError{
		Code:      http.StatusBadRequest,
		ErrorCode: CodeInvalidTransition,
		Message:   message,
		Err:       ErrConflict,
	}
}

// NewAlreadyAssignedError signals a lost claim race.
func NewAlreadyAssignedError(message string) *AppError {
	return &AppError{
		Code:      http.StatusConflict,
		ErrorCode: CodeAlreadyAssigned,
		Message:   message,
		Err:       ErrConflict,
	}
}

// NewProofRequiredError rejects a delivered transition missing required proof.
func NewProofRequiredError(message string) *AppError {
	return &AppError{
		Code:      http.StatusBadRequest,
		ErrorCode: CodeProofRequired,
		Message:   message,
		Err:       ErrValidation,
	}
}

// NewPaymentError wraps a gateway refusal.
func NewPaymentError(message string, err error) *AppError {
	return &AppError{
		Code:      http.StatusBadRequest,
		ErrorCode: CodePaymentError,
		Message:   message,
		Err:       err,
	}
}

// NewPaymentPendingError is returned when the gateway outcome is unknown
// (timeout); callers may retry with the same transaction.
func NewPaymentPendingError(message string) *AppError {
	return &AppError{
		Code:      http.StatusAccepted,
		ErrorCode: CodePaymentPending,
		Message:   message,
		Err:       nil,
	}
}

// NewDependencyError reports an unavailable downstream collaborator.
func NewDependencyError(message string, err error) *AppError {
	return &AppError{
		Code:      http.StatusServiceUnavailable,
		ErrorCode: CodeDependency,
		Message:   message,
		Err:       err,
	}
}

// AsAppError extracts an *AppError from an error chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
