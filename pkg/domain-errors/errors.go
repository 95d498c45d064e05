// Package domainerrors defines the coded errors services return to transport layers.
//
// Services create errors with New or attach a code to an infrastructure failure with
// Wrap. Transport adapters read the code back with CodeOf/HasCode and never inspect
// messages. Wrapped causes stay reachable through errors.Is / errors.As.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code is a stable, client-facing error kind.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeValidation         Code = "validation_error"
	CodeInvariantViolation Code = "invariant_violation"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeTimeout            Code = "timeout"
	CodeInternal           Code = "internal_error"

	// Admin-grid query parameters.
	CodeMalformedQueryParams  Code = "malformed_query_params"
	CodeMalformedRange        Code = "malformed_range"
	CodeInvalidOrderDirection Code = "invalid_order_direction"
	CodeInvalidWhereClause    Code = "invalid_where_clause"

	// Authentication and authorization.
	CodeBadCredentials         Code = "bad_credentials"
	CodeInactiveUser           Code = "inactive_user"
	CodeInsufficientPrivileges Code = "insufficient_privileges"
	CodePermissionDenied       Code = "permission_denied"

	// Resource lifecycle.
	CodeDuplicateResource   Code = "duplicate_resource"
	CodeActiveUserProtected Code = "active_user_protected"
	CodeSuperuserProtected  Code = "superuser_protected"
	CodeStoreFailure        Code = "store_failure"
)

// Error is a coded domain error with an optional cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to err. The cause is kept in the chain.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports equality on code and message so tests can compare against New(...).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// CodeOf returns the code of the outermost domain error in err's chain,
// or CodeInternal when there is none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether any domain error in err's chain carries code.
func HasCode(err error, code Code) bool {
	for err != nil {
		if de, ok := err.(*Error); ok && de.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// Is reports whether err carries code. It reads better at call sites that branch
// on a single kind.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}
