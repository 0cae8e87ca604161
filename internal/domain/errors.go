// Package domain contains the core business entities for Leonidas Directory.
package domain

import (
	"errors"
	"fmt"
)

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (database, network, etc.).
// The message strings are part of the observable API contract and match
// the system this service re-implements.

var (
	// ===========================================
	// Authorization Errors
	// ===========================================

	// ErrAdminRequired indicates the acting credentials do not resolve to
	// an active admin. Deliberately generic: wrong login, wrong password,
	// missing admin flag and revoked account all produce this same error
	// so callers cannot enumerate accounts.
	ErrAdminRequired = errors.New("Admin access required")

	// ErrInvalidCredentials indicates the acting credentials do not
	// resolve to an active user. Same non-enumerable shape as
	// ErrAdminRequired.
	ErrInvalidCredentials = errors.New("Invalid credentials or user is revoked")

	// ErrNoPermission indicates an authenticated caller is neither an
	// admin nor acting on their own record.
	ErrNoPermission = errors.New("No permissions to update this user")

	// ===========================================
	// User Errors
	// ===========================================

	// ErrUserNotFound indicates the target login does not exist.
	ErrUserNotFound = errors.New("User not found")

	// ErrLoginExists indicates a record with the requested login already
	// exists, in any revocation state.
	ErrLoginExists = errors.New("Login already exists")

	// ErrLoginTaken indicates the new login of a rename is already in use.
	ErrLoginTaken = errors.New("New login is already taken")

	// ErrUserRevoked indicates the target is soft-deleted and the
	// requested mutation is not allowed on revoked accounts.
	ErrUserRevoked = errors.New("User is revoked")

	// ===========================================
	// Infrastructure Errors
	// ===========================================

	// ErrInternal indicates an unexpected store-level failure, distinct
	// from every business-error kind above.
	ErrInternal = errors.New("internal error")
)

// DomainError wraps a domain error with additional context.
type DomainError struct {
	// Err is the underlying domain error.
	Err error

	// Message provides additional context.
	Message string

	// Login identifies the affected user record, if any.
	Login string
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Login != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Err.Error(), e.Message, e.Login)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError with context.
func NewDomainError(err error, message, login string) *DomainError {
	return &DomainError{
		Err:     err,
		Message: message,
		Login:   login,
	}
}
