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
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Booking rule violations. All of them block the write they were raised from.
var (
	ErrCapacityExceeded    = New("CAPACITY_EXCEEDED", http.StatusUnprocessableEntity, "customer count exceeds product capacity")
	ErrInstructorConflict  = New("INSTRUCTOR_CONFLICT", http.StatusConflict, "instructor is already booked at this time")
	ErrCustomerConflict    = New("CUSTOMER_CONFLICT", http.StatusConflict, "customer is already booked at this time")
	ErrCourtConflict       = New("COURT_CONFLICT", http.StatusConflict, "court is already booked at this time")
	ErrOutsideWorkingHours = New("OUTSIDE_WORKING_HOURS", http.StatusUnprocessableEntity, "training is outside center working hours")
	ErrInvalidDuration     = New("INVALID_DURATION", http.StatusUnprocessableEntity, "training duration must be a positive whole number of hours")
	ErrInsufficientBalance = New("INSUFFICIENT_BALANCE", http.StatusPaymentRequired, "customer balance is insufficient")
	ErrInvalidTransition   = New("INVALID_TRANSITION", http.StatusUnprocessableEntity, "status transition is not allowed")
	ErrDeleteForbidden     = New("DELETE_FORBIDDEN", http.StatusConflict, "training can only be deleted while new or unavailable")
	ErrScheduleInPast      = New("SCHEDULE_IN_PAST", http.StatusUnprocessableEntity, "training cannot be scheduled in the past")
)

// validationCodes lists every code that represents a business-rule violation.
var validationCodes = map[string]struct{}{
	ErrValidation.Code:          {},
	ErrCapacityExceeded.Code:    {},
	ErrInstructorConflict.Code:  {},
	ErrCustomerConflict.Code:    {},
	ErrCourtConflict.Code:       {},
	ErrOutsideWorkingHours.Code: {},
	ErrInvalidDuration.Code:     {},
	ErrInsufficientBalance.Code: {},
	ErrInvalidTransition.Code:   {},
	ErrDeleteForbidden.Code:     {},
	ErrScheduleInPast.Code:      {},
}

// IsValidation reports whether err is a business-rule violation.
func IsValidation(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	_, ok := validationCodes[e.Code]
	return ok
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == code
}

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
