// Package apperr carries service errors together with the stable code and
// HTTP status they are reported with.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a classified failure surfaced to API clients.
type Error struct {
	Code    string
	Message string
	Status  int
	Err     error
	// Details is shown to clients in every environment (e.g. field errors).
	Details any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap returns a copy of the catalog entry carrying cause.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

// WithMessage returns a copy of the catalog entry with a more specific message.
func (e *Error) WithMessage(format string, args ...any) *Error {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

// WithDetails returns a copy of the catalog entry carrying client-facing details.
func (e *Error) WithDetails(details any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// Is matches on code so wrapped copies still compare equal to the catalog entry.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// FromStatus builds an error for a bare HTTP status, e.g. from auth guards.
func FromStatus(status int, message string) *Error {
	return &Error{
		Code:    fmt.Sprintf("%d_%03d_000_0000000", status/100, status),
		Message: message,
		Status:  status,
	}
}

func newErr(code string, status int, message string) *Error {
	return &Error{Code: code, Message: message, Status: status}
}

// General
var (
	ErrValidation = newErr("4_000_000_0000000", http.StatusUnprocessableEntity, "Validation error")
	ErrNotFound   = newErr("4_000_000_0000001", http.StatusNotFound, "Resource not found")
	ErrBadRequest = newErr("4_000_000_0000002", http.StatusBadRequest, "Bad request")
	ErrInternal   = newErr("5_000_000_0000000", http.StatusInternalServerError, "Internal server error")
	ErrUnexpected = newErr("5_000_000_0000001", http.StatusInternalServerError, "An unexpected error occurred")
)

// Guest
var (
	ErrRoomNotFound       = newErr("4_000_001_0000001", http.StatusNotFound, "Room not found")
	ErrRoomAlreadyBooked  = newErr("4_000_001_0000002", http.StatusBadRequest, "Room is already booked")
	ErrGuestRoleNotFound  = newErr("5_000_001_0000001", http.StatusInternalServerError, "Guest role not found")
	ErrRegistrationFailed = newErr("5_000_001_0000002", http.StatusInternalServerError, "Guest registration failed")
)

// Order
var (
	ErrOrderNotFound       = newErr("4_000_002_0000001", http.StatusNotFound, "Order not found")
	ErrOrderCreateFailed   = newErr("5_000_002_0000001", http.StatusInternalServerError, "Failed to create order")
	ErrSessionHasNoCheckin = newErr("4_000_002_0000002", http.StatusBadRequest, "Session has no active check-in")
)

// Order assignment
var (
	ErrWorkerNotFound         = newErr("4_000_003_0000001", http.StatusNotFound, "Worker not found")
	ErrOrderAlreadyAssigned   = newErr("4_000_003_0000002", http.StatusBadRequest, "Order already assigned to this worker")
	ErrWorkerMaxActiveReached = newErr("4_000_003_0000003", http.StatusBadRequest, "Worker has reached the maximum number of active orders")
)

// Session
var (
	ErrSessionNotFound   = newErr("4_000_004_0000001", http.StatusNotFound, "Session not found")
	ErrGuestNotFound     = newErr("4_000_004_0000002", http.StatusNotFound, "Guest not found")
	ErrGuestPhoneMissing = newErr("4_000_004_0000003", http.StatusBadRequest, "Guest has no mobile phone")
	ErrSendFailed        = newErr("5_000_004_0000001", http.StatusInternalServerError, "Failed to send message")
)

// H2H agent router
var (
	ErrAgentRejected    = newErr("5_000_005_0000001", http.StatusBadGateway, "Agent router rejected the request")
	ErrAgentUnreachable = newErr("5_000_005_0000002", http.StatusBadGateway, "Agent router unreachable")
)

// Auth
var (
	ErrUnauthorized        = newErr("4_401_006_0000001", http.StatusUnauthorized, "Invalid or missing credentials")
	ErrForbidden           = newErr("4_403_006_0000001", http.StatusForbidden, "Insufficient privileges")
	ErrIdentityUnavailable = newErr("5_503_006_0000001", http.StatusServiceUnavailable, "Identity provider unavailable")
	ErrUserSyncFailed      = newErr("5_000_006_0000001", http.StatusInternalServerError, "Failed to synchronize user")
)
