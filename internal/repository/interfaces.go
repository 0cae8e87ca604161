// Package repository defines data access interfaces for Leonidas Directory.
// These interfaces abstract database operations, allowing for different
// implementations (PostgreSQL, SQLite, in-memory for testing) while keeping
// the service layer clean.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/prn-tf/leonidas-directory/internal/domain"
)

// UserRepository defines the interface for user data access.
//
// Login uniqueness is enforced by a UNIQUE constraint in every
// implementation; Create and Rename surface a violation as
// domain.ErrLoginExists / domain.ErrLoginTaken so the constraint, not a
// pre-check, is the authoritative guard under concurrency.
type UserRepository interface {
	// Create inserts a new user record.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user (any revocation state) by identifier.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetByLogin retrieves a user (any revocation state) by login.
	// Login matching is case-sensitive.
	GetByLogin(ctx context.Context, login string) (*domain.User, error)

	// Update rewrites the mutable columns of an existing record,
	// resolved by identifier. The login column is not touched; renames
	// go through Rename.
	Update(ctx context.Context, user *domain.User) error

	// Rename changes a user's login in a single guarded write. The
	// uniqueness check is atomic with the update: a concurrent insert or
	// rename of the same target login makes exactly one caller win and
	// the others receive domain.ErrLoginTaken.
	Rename(ctx context.Context, id uuid.UUID, newLogin, modifiedBy string, modifiedAt time.Time) error

	// Delete permanently removes a record by login. Irreversible.
	Delete(ctx context.Context, login string) error

	// ListActive returns all non-revoked users ordered by created_at
	// ascending.
	ListActive(ctx context.Context) ([]*domain.User, error)

	// ListOlderThan returns all users (any revocation state) whose
	// birthday is present and on/before the cutoff, ordered by birthday
	// descending.
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.User, error)

	// ExistsByLogin checks if a record with the given login exists in
	// any revocation state.
	ExistsByLogin(ctx context.Context, login string) (bool, error)
}

// DatabaseHealth is an interface for database health checks.
type DatabaseHealth interface {
	Ping(ctx context.Context) error
	Health(ctx context.Context) error
	Close() error
}
