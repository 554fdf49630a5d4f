// Package errors provides the error taxonomy for the universal data core.
// Structural errors abort an operation with no partial write; validation
// rule failures are NOT errors here, they are represented as a
// validation_status plus message list on the record itself.
package errors

import (
	"fmt"
	"net/http"
	"strings"
)

// CoreError is the base interface for all typed errors raised by the core.
type CoreError interface {
	error
	HTTPStatus() int
	Code() string
}

// BaseError is the base implementation of CoreError
type BaseError struct {
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	ErrorCode  string `json:"code"`
	Details    string `json:"details,omitempty"`
}

func (e *BaseError) Error() string {
	return e.Message
}

func (e *BaseError) HTTPStatus() int {
	return e.StatusCode
}

func (e *BaseError) Code() string {
	return e.ErrorCode
}

// MissingFieldsError reports every required field absent from a creation
// request, aggregated so the caller can correct the request in one round trip.
type MissingFieldsError struct {
	BaseError
	Fields []string
}

func NewMissingFieldsError(fields ...string) *MissingFieldsError {
	return &MissingFieldsError{
		BaseError: BaseError{
			Message:    fmt.Sprintf("missing required fields: %s", strings.Join(fields, ", ")),
			StatusCode: http.StatusBadRequest,
			ErrorCode:  "MISSING_REQUIRED_FIELD",
		},
		Fields: fields,
	}
}

// TypeMismatchError means a value cannot be coerced to its declared field type.
type TypeMismatchError struct {
	BaseError
	FieldType string
	Value     interface{}
}

func NewTypeMismatchError(fieldType string, value interface{}) *TypeMismatchError {
	return &TypeMismatchError{
		BaseError: BaseError{
			Message:    fmt.Sprintf("value %v cannot be coerced to field type %q", value, fieldType),
			StatusCode: http.StatusBadRequest,
			ErrorCode:  "TYPE_MISMATCH",
		},
		FieldType: fieldType,
		Value:     value,
	}
}

// UnknownFieldTypeError means the declared field type itself is not one of
// the six supported types.
type UnknownFieldTypeError struct {
	BaseError
	FieldType string
}

func NewUnknownFieldTypeError(fieldType string) *UnknownFieldTypeError {
	return &UnknownFieldTypeError{
		BaseError: BaseError{
			Message:    fmt.Sprintf("unknown field type %q", fieldType),
			StatusCode: http.StatusBadRequest,
			ErrorCode:  "UNKNOWN_FIELD_TYPE",
		},
		FieldType: fieldType,
	}
}

// InvalidFilterError means a query filter is malformed or references an
// undeclared field.
type InvalidFilterError struct {
	BaseError
	Reason string
}

func NewInvalidFilterError(reason string) *InvalidFilterError {
	return &InvalidFilterError{
		BaseError: BaseError{
			Message:    fmt.Sprintf("invalid filter: %s", reason),
			StatusCode: http.StatusBadRequest,
			ErrorCode:  "INVALID_FILTER",
		},
		Reason: reason,
	}
}

// VersionConflictError means the optimistic concurrency check failed on an
// update. The caller must re-read and retry; nothing was mutated.
type VersionConflictError struct {
	BaseError
	Expected int
	Actual   int
}

func NewVersionConflictError(expected, actual int) *VersionConflictError {
	return &VersionConflictError{
		BaseError: BaseError{
			Message:    fmt.Sprintf("version conflict: expected %d, stored %d", expected, actual),
			StatusCode: http.StatusConflict,
			ErrorCode:  "VERSION_CONFLICT",
		},
		Expected: expected,
		Actual:   actual,
	}
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	BaseError
	Resource string
}

func NewNotFoundError(resource string) *NotFoundError {
	return &NotFoundError{
		BaseError: BaseError{
			Message:    fmt.Sprintf("%s not found", resource),
			StatusCode: http.StatusNotFound,
			ErrorCode:  "NOT_FOUND",
		},
		Resource: resource,
	}
}

// ConflictError represents a uniqueness conflict (e.g., duplicate field name
// on the same entity).
type ConflictError struct {
	BaseError
}

func NewConflictError(message string) *ConflictError {
	return &ConflictError{
		BaseError: BaseError{
			Message:    message,
			StatusCode: http.StatusConflict,
			ErrorCode:  "CONFLICT",
		},
	}
}

// UnauthorizedError represents an authentication error
type UnauthorizedError struct {
	BaseError
}

func NewUnauthorizedError(message string) *UnauthorizedError {
	if message == "" {
		message = "authentication required"
	}
	return &UnauthorizedError{
		BaseError: BaseError{
			Message:    message,
			StatusCode: http.StatusUnauthorized,
			ErrorCode:  "UNAUTHORIZED",
		},
	}
}

// BadRequestError represents a generic bad request error
type BadRequestError struct {
	BaseError
}

func NewBadRequestError(message string) *BadRequestError {
	return &BadRequestError{
		BaseError: BaseError{
			Message:    message,
			StatusCode: http.StatusBadRequest,
			ErrorCode:  "BAD_REQUEST",
		},
	}
}

// InternalError represents an internal server error
type InternalError struct {
	BaseError
	OriginalError error
}

func NewInternalError(original error) *InternalError {
	return &InternalError{
		BaseError: BaseError{
			Message:    "internal server error",
			StatusCode: http.StatusInternalServerError,
			ErrorCode:  "INTERNAL_ERROR",
		},
		OriginalError: original,
	}
}

func (e *InternalError) Unwrap() error {
	return e.OriginalError
}

// ToHTTPError converts any error to an appropriate HTTP response
func ToHTTPError(err error) (int, map[string]interface{}) {
	if err == nil {
		return http.StatusOK, nil
	}

	if ce, ok := err.(CoreError); ok {
		return ce.HTTPStatus(), map[string]interface{}{
			"error":   ce.Code(),
			"message": ce.Error(),
		}
	}

	// Default to internal server error for unknown errors
	return http.StatusInternalServerError, map[string]interface{}{
		"error":   "INTERNAL_ERROR",
		"message": "internal server error",
	}
}
