package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/leonidas-directory/internal/domain"
)

func newMockRepo(t *testing.T) (*userRepository, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	db := &DB{db: mockDB, logger: zerolog.Nop()}
	return &userRepository{db: db}, mock
}

func sampleUser() *domain.User {
	birthday := time.Date(1990, 3, 20, 0, 0, 0, 0, time.UTC)
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	return domain.NewUser("alice", "alicepass", "Alice", domain.GenderFemale, &birthday, false, "root", now)
}

func userRow(u *domain.User) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "login", "password", "name", "gender", "birthday", "admin",
		"created_at", "created_by", "modified_at", "modified_by", "revoked_at", "revoked_by",
	})
	rows.AddRow(
		u.ID.String(),
		u.Login,
		u.Password,
		u.Name,
		int(u.Gender),
		formatNullTime(u.Birthday),
		boolToInt(u.Admin),
		u.CreatedAt.UTC().Format(timeLayout),
		u.CreatedBy,
		u.ModifiedAt.UTC().Format(timeLayout),
		u.ModifiedBy,
		formatNullTime(u.RevokedAt),
		nullString(u.RevokedBy),
	)
	return rows
}

func TestUserRepository_Create(t *testing.T) {
	repo, mock := newMockRepo(t)
	user := sampleUser()

	mock.ExpectExec("INSERT INTO users").
		WithArgs(
			user.ID.String(), user.Login, user.Password, user.Name,
			int(user.Gender), formatNullTime(user.Birthday), 0,
			user.CreatedAt.UTC().Format(timeLayout), user.CreatedBy,
			user.ModifiedAt.UTC().Format(timeLayout), user.ModifiedBy,
			nil, nil,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Create(context.Background(), user)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create_UniqueViolation(t *testing.T) {
	repo, mock := newMockRepo(t)
	user := sampleUser()

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(errors.New("constraint failed: UNIQUE constraint failed: users.login (2067)"))

	err := repo.Create(context.Background(), user)
	require.ErrorIs(t, err, domain.ErrLoginExists)
}

func TestUserRepository_GetByLogin(t *testing.T) {
	repo, mock := newMockRepo(t)
	user := sampleUser()

	mock.ExpectQuery("SELECT (.+) FROM users WHERE login = ?").
		WithArgs("alice").
		WillReturnRows(userRow(user))

	got, err := repo.GetByLogin(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)
	require.Equal(t, "alice", got.Login)
	require.Equal(t, "alicepass", got.Password)
	require.Equal(t, domain.GenderFemale, got.Gender)
	require.NotNil(t, got.Birthday)
	require.True(t, got.Birthday.Equal(*user.Birthday))
	require.False(t, got.IsRevoked())
}

func TestUserRepository_GetByLogin_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE login = ?").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByLogin(context.Background(), "ghost")
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUserRepository_GetByLogin_Revoked(t *testing.T) {
	repo, mock := newMockRepo(t)
	user := sampleUser()
	user.Revoke("root", time.Date(2024, 6, 15, 13, 0, 0, 0, time.UTC))

	mock.ExpectQuery("SELECT (.+) FROM users WHERE login = ?").
		WithArgs("alice").
		WillReturnRows(userRow(user))

	got, err := repo.GetByLogin(context.Background(), "alice")
	require.NoError(t, err)
	require.True(t, got.IsRevoked())
	require.NotNil(t, got.RevokedBy)
	require.Equal(t, "root", *got.RevokedBy)
}

func TestUserRepository_Update_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	user := sampleUser()

	mock.ExpectExec("UPDATE users").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), user)
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUserRepository_Rename(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()
	modifiedAt := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE users").
		WithArgs("alicia", modifiedAt.Format(timeLayout), "alice", id.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Rename(context.Background(), id, "alicia", "alice", modifiedAt)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Rename_LoginTaken(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE users").
		WillReturnError(errors.New("constraint failed: UNIQUE constraint failed: users.login (2067)"))

	err := repo.Rename(context.Background(), uuid.New(), "root", "alice", time.Now().UTC())
	require.ErrorIs(t, err, domain.ErrLoginTaken)
}

func TestUserRepository_Delete_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("DELETE FROM users WHERE login = ?").
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "ghost")
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUserRepository_ListActive(t *testing.T) {
	repo, mock := newMockRepo(t)
	first := sampleUser()
	second := domain.NewUser("bob", "bobpass", "Bob", domain.GenderMale, nil, false, "root",
		time.Date(2024, 6, 15, 13, 0, 0, 0, time.UTC))

	rows := userRow(first)
	rows.AddRow(
		second.ID.String(), second.Login, second.Password, second.Name,
		int(second.Gender), nil, 0,
		second.CreatedAt.UTC().Format(timeLayout), second.CreatedBy,
		second.ModifiedAt.UTC().Format(timeLayout), second.ModifiedBy,
		nil, nil,
	)

	mock.ExpectQuery("SELECT (.+) FROM users\\s+WHERE revoked_at IS NULL\\s+ORDER BY created_at ASC").
		WillReturnRows(rows)

	users, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, "alice", users[0].Login)
	require.Equal(t, "bob", users[1].Login)
	require.Nil(t, users[1].Birthday)
}

func TestUserRepository_ListOlderThan(t *testing.T) {
	repo, mock := newMockRepo(t)
	user := sampleUser()
	cutoff := time.Date(1994, 6, 15, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM users\\s+WHERE birthday IS NOT NULL AND birthday <= ?").
		WithArgs(cutoff.Format(timeLayout)).
		WillReturnRows(userRow(user))

	users, err := repo.ListOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, "alice", users[0].Login)
}

func TestUserRepository_ExistsByLogin(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM users WHERE login = ?").
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	exists, err := repo.ExistsByLogin(context.Background(), "alice")
	require.NoError(t, err)
	require.True(t, exists)
}
