package utils

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	"gorm.io/gorm"
)

// Machine readable error codes returned in the "error" field.
const (
	CodeModelNotFound    = "MODEL_NOT_FOUND"
	CodeEndpointNotFound = "ENDPOINT_NOT_FOUND"
	CodeValidation       = "VALIDATION_ERROR"
	CodeUnauthenticated  = "UNAUTHENTICATED"
	CodeAccessDenied     = "ACCESS_DENIED"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeConflict         = "CONFLICT"
	CodeTooManyRequests  = "TOO_MANY_REQUESTS"
	CodeServerError      = "SERVER_ERROR"
)

var (
	ErrModelNotFound   = errors.New("resource not found")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrAccessDenied    = errors.New("access denied")
	ErrValidation      = errors.New("the given data was invalid")
	ErrConflict        = errors.New("resource already exists")
	ErrRateLimited     = errors.New("too many requests")
)

// ValidationError carries per-field messages. errors.Is(err, ErrValidation) holds.
type ValidationError struct {
	Fields map[string][]string
}

// NewValidationError builds a ValidationError with a single field message.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string][]string{field: {message}}}
}

// Add appends a message for field.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = map[string][]string{}
	}
	e.Fields[field] = append(e.Fields[field], message)
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], ", "))
	}
	return ErrValidation.Error() + " (" + strings.Join(parts, "; ") + ")"
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// IsDuplicateKey reports whether err is a unique index violation, translated
// by gorm or raw from the MySQL or SQLite driver.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "UNIQUE constraint failed")
}

// StatusOf maps an error onto an HTTP status and error code.
func StatusOf(err error) (int, string) {
	switch {
	case errors.Is(err, ErrModelNotFound):
		return http.StatusNotFound, CodeModelNotFound
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized, CodeUnauthenticated
	case errors.Is(err, ErrAccessDenied):
		return http.StatusForbidden, CodeAccessDenied
	case errors.Is(err, ErrValidation):
		return http.StatusUnprocessableEntity, CodeValidation
	case errors.Is(err, ErrConflict), IsDuplicateKey(err):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, CodeTooManyRequests
	}
	return http.StatusInternalServerError, CodeServerError
}
