package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/prn-tf/leonidas-directory/internal/domain"
	"github.com/prn-tf/leonidas-directory/internal/repository"
)

const userColumns = `id, login, password, name, gender, birthday, admin, created_at, created_by, modified_at, modified_by, revoked_at, revoked_by`

// timeLayout is RFC 3339 with a fixed-width nanosecond fraction.
// Timestamps live in TEXT columns and are compared lexicographically,
// so every value must render with the same width.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// userRepository implements repository.UserRepository for SQLite.
type userRepository struct {
	db *DB
}

// NewUserRepository creates a new SQLite user repository.
func NewUserRepository(db *DB) repository.UserRepository {
	return &userRepository{db: db}
}

// Create inserts a new user record. The UNIQUE constraint on login is
// the authoritative uniqueness guard; a violation surfaces as
// domain.ErrLoginExists.
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		user.ID.String(),
		user.Login,
		user.Password,
		user.Name,
		int(user.Gender),
		formatNullTime(user.Birthday),
		boolToInt(user.Admin),
		user.CreatedAt.UTC().Format(timeLayout),
		user.CreatedBy,
		user.ModifiedAt.UTC().Format(timeLayout),
		user.ModifiedBy,
		formatNullTime(user.RevokedAt),
		nullString(user.RevokedBy),
	)

	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrLoginExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by identifier.
func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return user, nil
}

// GetByLogin retrieves a user by login. Matching is case-sensitive.
func (r *userRepository) GetByLogin(ctx context.Context, login string) (*domain.User, error) {
	// SQLite TEXT comparison is case-sensitive by default (BINARY collation).
	query := `SELECT ` + userColumns + ` FROM users WHERE login = ?`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, login))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by login: %w", err)
	}
	return user, nil
}

// Update rewrites the mutable columns of an existing record. The login
// column is intentionally excluded; renames go through Rename.
func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET password = ?, name = ?, gender = ?, birthday = ?,
		    modified_at = ?, modified_by = ?, revoked_at = ?, revoked_by = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		user.Password,
		user.Name,
		int(user.Gender),
		formatNullTime(user.Birthday),
		user.ModifiedAt.UTC().Format(timeLayout),
		user.ModifiedBy,
		formatNullTime(user.RevokedAt),
		nullString(user.RevokedBy),
		user.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrUserNotFound
	}

	return nil
}

// Rename changes a user's login in a single UPDATE so the uniqueness
// check is atomic with the write: if another record holds the new login
// the UNIQUE constraint rejects the statement.
func (r *userRepository) Rename(ctx context.Context, id uuid.UUID, newLogin, modifiedBy string, modifiedAt time.Time) error {
	query := `
		UPDATE users
		SET login = ?, modified_at = ?, modified_by = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		newLogin,
		modifiedAt.UTC().Format(timeLayout),
		modifiedBy,
		id.String(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrLoginTaken
		}
		return fmt.Errorf("failed to rename user: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrUserNotFound
	}

	return nil
}

// Delete permanently removes a record by login.
func (r *userRepository) Delete(ctx context.Context, login string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE login = ?`, login)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrUserNotFound
	}

	return nil
}

// ListActive returns all non-revoked users ordered by creation time ascending.
func (r *userRepository) ListActive(ctx context.Context) ([]*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE revoked_at IS NULL
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active users: %w", err)
	}
	defer rows.Close()

	return collectUsers(rows)
}

// ListOlderThan returns users with a birthday on/before the cutoff,
// ordered by birthday descending.
func (r *userRepository) ListOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE birthday IS NOT NULL AND birthday <= ?
		ORDER BY birthday DESC
	`

	rows, err := r.db.QueryContext(ctx, query, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to list users older than cutoff: %w", err)
	}
	defer rows.Close()

	return collectUsers(rows)
}

// ExistsByLogin checks if a record with the given login exists in any
// revocation state.
func (r *userRepository) ExistsByLogin(ctx context.Context, login string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE login = ?`, login).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check login existence: %w", err)
	}
	return count > 0, nil
}

// scanner abstracts sql.Row and sql.Rows for scanUser.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanUser scans one user row into a domain.User.
func scanUser(s scanner) (*domain.User, error) {
	var (
		user          domain.User
		id            string
		gender, admin int
		birthday      sql.NullString
		createdAt     string
		modifiedAt    string
		revokedAt     sql.NullString
		revokedBy     sql.NullString
	)

	err := s.Scan(
		&id,
		&user.Login,
		&user.Password,
		&user.Name,
		&gender,
		&birthday,
		&admin,
		&createdAt,
		&user.CreatedBy,
		&modifiedAt,
		&user.ModifiedBy,
		&revokedAt,
		&revokedBy,
	)
	if err != nil {
		return nil, err
	}

	user.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", id, err)
	}

	user.Gender = domain.Gender(gender)
	user.Admin = admin != 0
	user.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	user.ModifiedAt, _ = time.Parse(time.RFC3339Nano, modifiedAt)
	user.Birthday = parseNullTime(birthday)
	user.RevokedAt = parseNullTime(revokedAt)
	if revokedBy.Valid {
		user.RevokedBy = &revokedBy.String
	}

	return &user, nil
}

// collectUsers drains rows into a slice of users.
func collectUsers(rows *sql.Rows) ([]*domain.User, error) {
	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// boolToInt converts a boolean to an integer (SQLite doesn't have native boolean).
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// formatNullTime formats an optional timestamp for a nullable TEXT column.
func formatNullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

// parseNullTime parses a nullable TEXT timestamp column.
func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

// nullString converts an optional string for a nullable column.
func nullString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

// Ensure userRepository implements repository.UserRepository.
var _ repository.UserRepository = (*userRepository)(nil)
