package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict     = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss    = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Engine outcomes surfaced to callers as typed rejections.
var (
	ErrCapacityExceeded    = New("CAPACITY_EXCEEDED", http.StatusConflict, "no capacity left for the requested slot")
	ErrScheduleNotFound    = New("SCHEDULE_NOT_FOUND", http.StatusNotFound, "no schedule version covers the requested month")
	ErrSlotNotInSchedule   = New("SLOT_NOT_IN_SCHEDULE", http.StatusUnprocessableEntity, "slot does not exist in the schedule valid for that month")
	ErrDuplicateReschedule = New("DUPLICATE_RESCHEDULE", http.StatusConflict, "a reschedule already exists for this enrollment and month")
	ErrOutOfWindow         = New("OUT_OF_WINDOW", http.StatusForbidden, "check-in attempted outside the authorized window")
	ErrNotEnrolled         = New("NOT_ENROLLED", http.StatusForbidden, "no enrollment, reschedule or scheduled record matches this occurrence")
	ErrInvalidToken        = New("INVALID_TOKEN", http.StatusBadRequest, "check-in token failed to decode")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
