package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError aggregates field-level validation failures so a handler can
// report every problem in one response.
type ValidationError struct {
	Errors map[string]string `json:"errors"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}

	fields := make([]string, 0, len(e.Errors))
	for field := range e.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, e.Errors[field]))
	}
	return strings.Join(parts, "; ")
}

// AddError records a failure for a field.
func (e *ValidationError) AddError(field, message string) {
	if e.Errors == nil {
		e.Errors = make(map[string]string)
	}
	e.Errors[field] = message
}

// HasErrors reports whether any failures were recorded.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// GetFieldError returns the message recorded for a field, if any.
func (e *ValidationError) GetFieldError(field string) (string, bool) {
	message, ok := e.Errors[field]
	return message, ok
}

// NewValidationError converts validator tag failures into a ValidationError.
func NewValidationError(errs validator.ValidationErrors) *ValidationError {
	result := &ValidationError{Errors: make(map[string]string, len(errs))}
	for _, fieldErr := range errs {
		result.Errors[fieldErr.Field()] = messageForTag(fieldErr)
	}
	return result
}

func messageForTag(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "phone":
		return "must be a valid E.164 phone number"
	case "latitude":
		return "must be between -90 and 90"
	case "longitude":
		return "must be between -180 and 180"
	case "delivery_status":
		return "is not a recognized delivery status"
	case "delivery_priority":
		return "must be one of standard, express, urgent"
	case "payment_method":
		return "must be one of card, wallet, cash"
	case "user_role":
		return "must be one of sender, courier, admin"
	case "vehicle_type":
		return "must be one of bike, scooter, car, van, truck"
	case "discount_type":
		return "must be percentage or fixed_amount"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fieldErr.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fieldErr.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fieldErr.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fieldErr.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fieldErr.Param())
	case "oneof":
		return fmt.Sprintf("must be one of %s", fieldErr.Param())
	case "uuid":
		return "must be a valid UUID"
	default:
		return fmt.Sprintf("failed %s validation", fieldErr.Tag())
	}
}
