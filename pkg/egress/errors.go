package egress

import (
	"errors"
	"fmt"
)

// ErrorCode classifies egress operation failures.
type ErrorCode int

const (
	ErrCodeNone ErrorCode = iota
	ErrCodeFeatureDisabled
	ErrCodeForbidden
	ErrCodeAlreadyExists
	ErrCodeNotFound
	ErrCodeConflict
	ErrCodeInvalidState
	ErrCodeValidation
	ErrCodeStorageIO
	ErrCodePolicyUpdate
	ErrCodeSnapshot
	ErrCodePublish
	ErrCodeInvariantViolation
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeFeatureDisabled:
		return "FeatureDisabled"
	case ErrCodeForbidden:
		return "Forbidden"
	case ErrCodeAlreadyExists:
		return "AlreadyExists"
	case ErrCodeNotFound:
		return "NotFound"
	case ErrCodeConflict:
		return "Conflict"
	case ErrCodeInvalidState:
		return "InvalidState"
	case ErrCodeValidation:
		return "ValidationFailed"
	case ErrCodeStorageIO:
		return "StorageIOFailed"
	case ErrCodePolicyUpdate:
		return "PolicyUpdateFailed"
	case ErrCodeSnapshot:
		return "SnapshotFailed"
	case ErrCodePublish:
		return "PublishFailed"
	case ErrCodeInvariantViolation:
		return "InternalInvariantViolation"
	default:
		return "None"
	}
}

// Error is a domain-level error carrying a stable code for callers.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf extracts the domain error code from err, or ErrCodeNone.
func CodeOf(err error) ErrorCode {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ErrCodeNone
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// Error constructors for convenience

func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func wrapError(code ErrorCode, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

func NewFeatureDisabledError() *Error {
	return newError(ErrCodeFeatureDisabled, "egress store feature is not enabled")
}

func NewForbiddenError(action, workspaceID string) *Error {
	return newError(ErrCodeForbidden, "not authorized to %s egress store of workspace %s", action, workspaceID)
}

func NewAlreadyExistsError(workspaceID string) *Error {
	return newError(ErrCodeAlreadyExists, "egress store already exists for workspace %s", workspaceID)
}

func NewNotFoundError(workspaceID string) *Error {
	return newError(ErrCodeNotFound, "no egress store found for workspace %s", workspaceID)
}

func NewConflictError(format string, args ...any) *Error {
	return newError(ErrCodeConflict, format, args...)
}

func NewInvalidStateError(format string, args ...any) *Error {
	return newError(ErrCodeInvalidState, format, args...)
}

func NewValidationError(err error) *Error {
	return wrapError(ErrCodeValidation, err, "invalid workspace payload")
}

func NewStorageIOError(err error, format string, args ...any) *Error {
	return wrapError(ErrCodeStorageIO, err, format, args...)
}

func NewInvariantError(format string, args ...any) *Error {
	return newError(ErrCodeInvariantViolation, format, args...)
}
