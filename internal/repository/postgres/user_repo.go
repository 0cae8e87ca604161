package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/prn-tf/leonidas-directory/internal/domain"
	"github.com/prn-tf/leonidas-directory/internal/repository"
)

const userColumns = `id, login, password, name, gender, birthday, admin, created_at, created_by, modified_at, modified_by, revoked_at, revoked_by`

// userRepository implements repository.UserRepository for PostgreSQL.
type userRepository struct {
	db *DB
}

// NewUserRepository creates a new PostgreSQL user repository.
func NewUserRepository(db *DB) repository.UserRepository {
	return &userRepository{db: db}
}

// Create inserts a new user record. The UNIQUE constraint on login is
// the authoritative uniqueness guard; a violation surfaces as
// domain.ErrLoginExists.
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		user.ID,
		user.Login,
		user.Password,
		user.Name,
		int16(user.Gender),
		user.Birthday,
		user.Admin,
		user.CreatedAt.UTC(),
		user.CreatedBy,
		user.ModifiedAt.UTC(),
		user.ModifiedBy,
		user.RevokedAt,
		user.RevokedBy,
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
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.Pool.QueryRow(ctx, query, id))
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
	query := `SELECT ` + userColumns + ` FROM users WHERE login = $1`

	user, err := scanUser(r.db.Pool.QueryRow(ctx, query, login))
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
		SET password = $1, name = $2, gender = $3, birthday = $4,
		    modified_at = $5, modified_by = $6, revoked_at = $7, revoked_by = $8
		WHERE id = $9
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		user.Password,
		user.Name,
		int16(user.Gender),
		user.Birthday,
		user.ModifiedAt.UTC(),
		user.ModifiedBy,
		user.RevokedAt,
		user.RevokedBy,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	if tag.RowsAffected() == 0 {
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
		SET login = $1, modified_at = $2, modified_by = $3
		WHERE id = $4
	`

	tag, err := r.db.Pool.Exec(ctx, query, newLogin, modifiedAt.UTC(), modifiedBy, id)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrLoginTaken
		}
		return fmt.Errorf("failed to rename user: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}

	return nil
}

// Delete permanently removes a record by login.
func (r *userRepository) Delete(ctx context.Context, login string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM users WHERE login = $1`, login)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	if tag.RowsAffected() == 0 {
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

	rows, err := r.db.Pool.Query(ctx, query)
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
		WHERE birthday IS NOT NULL AND birthday <= $1
		ORDER BY birthday DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list users older than cutoff: %w", err)
	}
	defer rows.Close()

	return collectUsers(rows)
}

// ExistsByLogin checks if a record with the given login exists in any
// revocation state.
func (r *userRepository) ExistsByLogin(ctx context.Context, login string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE login = $1)`, login).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check login existence: %w", err)
	}
	return exists, nil
}

// scanUser scans one user row into a domain.User.
func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user   domain.User
		gender int16
	)

	err := row.Scan(
		&user.ID,
		&user.Login,
		&user.Password,
		&user.Name,
		&gender,
		&user.Birthday,
		&user.Admin,
		&user.CreatedAt,
		&user.CreatedBy,
		&user.ModifiedAt,
		&user.ModifiedBy,
		&user.RevokedAt,
		&user.RevokedBy,
	)
	if err != nil {
		return nil, err
	}

	user.Gender = domain.Gender(gender)
	return &user, nil
}

// collectUsers drains rows into a slice of users.
func collectUsers(rows pgx.Rows) ([]*domain.User, error) {
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

// Ensure userRepository implements repository.UserRepository.
var _ repository.UserRepository = (*userRepository)(nil)
