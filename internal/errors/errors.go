package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorCode identifies a class of engine failure.
type ErrorCode string

const (
	ErrInvalidRequest      ErrorCode = "INVALID_REQUEST"       // 400
	ErrNotFound            ErrorCode = "NOT_FOUND"             // 404
	ErrAlreadyCompleted    ErrorCode = "ALREADY_COMPLETED"     // 409
	ErrNoAssigneeAvailable ErrorCode = "NO_ASSIGNEE_AVAILABLE" // 409
	ErrNameAlreadyExists   ErrorCode = "NAME_ALREADY_EXISTS"   // 409
	ErrConflict            ErrorCode = "CONFLICT"              // 409
	ErrRateLimited         ErrorCode = "RATE_LIMITED"          // 429
	ErrStoreRead           ErrorCode = "STORE_READ_ERROR"      // 500
	ErrStoreWrite          ErrorCode = "STORE_WRITE_ERROR"     // 500
	ErrInternal            ErrorCode = "INTERNAL"              // 500
)

// AppError is a typed failure with a code, an HTTP status, and optional details.
type AppError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	cause   error
}

// Error implements the error interface. The cause is included here for logs
// but never in Message, which is what clients see.
func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for store failures.
func (e *AppError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid input.
func NewInvalidRequest(msg string) *AppError {
	return &AppError{
		Code:    ErrInvalidRequest,
		Status:  http.StatusBadRequest,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing chore or roommate.
func NewNotFound(kind, identifier string) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Status:  http.StatusNotFound,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"kind": kind, "identifier": identifier},
	}
}

// NewAlreadyCompleted creates a 409 error for advancing a finished chore.
func NewAlreadyCompleted(choreID string) *AppError {
	return &AppError{
		Code:    ErrAlreadyCompleted,
		Status:  http.StatusConflict,
		Message: fmt.Sprintf("chore already completed: %s", choreID),
		Details: map[string]any{"chore_id": choreID},
	}
}

// NewNoAssigneeAvailable creates a 409 error when no roommate can take a chore.
func NewNoAssigneeAvailable() *AppError {
	return &AppError{
		Code:    ErrNoAssigneeAvailable,
		Status:  http.StatusConflict,
		Message: "no roommate available to assign",
	}
}

// NewNameAlreadyExists creates a 409 error for a duplicate username.
func NewNameAlreadyExists(username string) *AppError {
	return &AppError{
		Code:    ErrNameAlreadyExists,
		Status:  http.StatusConflict,
		Message: fmt.Sprintf("username already exists: %s", username),
		Details: map[string]any{"username": username},
	}
}

// NewConflict creates a 409 error for general conflicts.
func NewConflict(msg string) *AppError {
	return &AppError{
		Code:    ErrConflict,
		Status:  http.StatusConflict,
		Message: msg,
	}
}

// NewRateLimited creates a 429 error for clients over their request budget.
func NewRateLimited(retryAfter time.Duration) *AppError {
	return &AppError{
		Code:    ErrRateLimited,
		Status:  http.StatusTooManyRequests,
		Message: "too many requests",
		Details: map[string]any{"retry_after_seconds": int(retryAfter.Seconds())},
	}
}

// NewStoreRead creates a 500 error wrapping a failed load.
func NewStoreRead(err error) *AppError {
	return &AppError{
		Code:    ErrStoreRead,
		Status:  http.StatusInternalServerError,
		Message: "failed to load household data",
		cause:   err,
	}
}

// NewStoreWrite creates a 500 error wrapping a failed save.
func NewStoreWrite(err error) *AppError {
	return &AppError{
		Code:    ErrStoreWrite,
		Status:  http.StatusInternalServerError,
		Message: "failed to save household data",
		cause:   err,
	}
}

// NewInternal creates a 500 error for unexpected failures.
func NewInternal(err error) *AppError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &AppError{
		Code:    ErrInternal,
		Status:  http.StatusInternalServerError,
		Message: msg,
		cause:   err,
	}
}

// Is reports whether err is, or wraps, an AppError with the given code.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// As returns the AppError in err's chain, if any.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	ok := stderrors.As(err, &appErr)
	return appErr, ok
}
