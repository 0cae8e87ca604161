package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/leonidas-directory/internal/cache/memory"
	"github.com/prn-tf/leonidas-directory/internal/domain"
	"github.com/prn-tf/leonidas-directory/internal/service"
)

// stubUserRepository is a minimal in-memory repository for handler tests.
type stubUserRepository struct {
	users map[string]*domain.User
}

func newStubUserRepository() *stubUserRepository {
	return &stubUserRepository{users: make(map[string]*domain.User)}
}

func (s *stubUserRepository) Create(ctx context.Context, user *domain.User) error {
	if _, exists := s.users[user.Login]; exists {
		return domain.ErrLoginExists
	}
	s.users[user.Login] = user
	return nil
}

func (s *stubUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *stubUserRepository) GetByLogin(ctx context.Context, login string) (*domain.User, error) {
	if u, exists := s.users[login]; exists {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func (s *stubUserRepository) Update(ctx context.Context, user *domain.User) error {
	for login, u := range s.users {
		if u.ID == user.ID {
			s.users[login] = user
			return nil
		}
	}
	return domain.ErrUserNotFound
}

func (s *stubUserRepository) Rename(ctx context.Context, id uuid.UUID, newLogin, modifiedBy string, modifiedAt time.Time) error {
	if _, taken := s.users[newLogin]; taken {
		return domain.ErrLoginTaken
	}
	for login, u := range s.users {
		if u.ID == id {
			delete(s.users, login)
			u.Login = newLogin
			u.Touch(modifiedBy, modifiedAt)
			s.users[newLogin] = u
			return nil
		}
	}
	return domain.ErrUserNotFound
}

func (s *stubUserRepository) Delete(ctx context.Context, login string) error {
	if _, exists := s.users[login]; !exists {
		return domain.ErrUserNotFound
	}
	delete(s.users, login)
	return nil
}

func (s *stubUserRepository) ListActive(ctx context.Context) ([]*domain.User, error) {
	var result []*domain.User
	for _, u := range s.users {
		if !u.IsRevoked() {
			result = append(result, u)
		}
	}
	for i := 0; i < len(result); i++ {
		for j := i + 1; j < len(result); j++ {
			if result[j].CreatedAt.Before(result[i].CreatedAt) {
				result[i], result[j] = result[j], result[i]
			}
		}
	}
	return result, nil
}

func (s *stubUserRepository) ListOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.User, error) {
	var result []*domain.User
	for _, u := range s.users {
		if u.Birthday != nil && !u.Birthday.After(cutoff) {
			result = append(result, u)
		}
	}
	return result, nil
}

func (s *stubUserRepository) ExistsByLogin(ctx context.Context, login string) (bool, error) {
	_, exists := s.users[login]
	return exists, nil
}

// =============================================================================
// Test server setup
// =============================================================================

func newTestServer(t *testing.T, rateLimit int) (*httptest.Server, *stubUserRepository) {
	t.Helper()

	repo := newStubUserRepository()
	root := domain.NewUser("root", "rootpass", "Root", domain.GenderUnknown, nil, true, "system", time.Now().UTC().Add(-time.Hour))
	repo.users[root.Login] = root

	logger := zerolog.Nop()
	verifier := service.NewVerifier(repo, logger)
	cache := memory.NewCache()
	t.Cleanup(func() { _ = cache.Close() })

	router := NewRouter(RouterConfig{
		UserHandler: NewUserHandler(UserHandlerConfig{
			UserService:  service.NewUserService(repo, verifier, logger),
			QueryService: service.NewQueryService(repo, verifier, logger),
			Logger:       logger,
		}),
		Cache:     cache,
		RateLimit: rateLimit,
		Logger:    logger,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, repo
}

func doJSON(t *testing.T, method, url string, body interface{}) (*http.Response, Response) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp, envelope
}

const adminQuery = "adminLogin=root&adminPassword=rootpass"

// =============================================================================
// Tests
// =============================================================================

func TestHandler_CreateUser(t *testing.T) {
	srv, repo := newTestServer(t, 0)

	resp, envelope := doJSON(t, http.MethodPost, srv.URL+"/user/create?"+adminQuery, map[string]interface{}{
		"login":    "alice",
		"password": "alicepass",
		"name":     "Alice",
		"gender":   0,
		"birthday": "1990-03-20",
	})

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.True(t, envelope.Success)

	data, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "alice", data["login"])
	require.Equal(t, "Female", data["gender"])
	require.Equal(t, "Active", data["status"])
	require.NotContains(t, data, "password")

	require.Contains(t, repo.users, "alice")
}

func TestHandler_CreateUser_Validation(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{
			name: "login too short",
			body: map[string]interface{}{"login": "ab", "password": "validpass", "name": "Bob"},
		},
		{
			name: "login with symbols",
			body: map[string]interface{}{"login": "bob!", "password": "validpass", "name": "Bob"},
		},
		{
			name: "password too short",
			body: map[string]interface{}{"login": "bobby", "password": "abc", "name": "Bob"},
		},
		{
			name: "name with digits",
			body: map[string]interface{}{"login": "bobby", "password": "validpass", "name": "Bob1"},
		},
		{
			name: "invalid gender",
			body: map[string]interface{}{"login": "bobby", "password": "validpass", "name": "Bob", "gender": 7},
		},
		{
			name: "future birthday",
			body: map[string]interface{}{"login": "bobby", "password": "validpass", "name": "Bob", "birthday": "2999-01-01"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, envelope := doJSON(t, http.MethodPost, srv.URL+"/user/create?"+adminQuery, tt.body)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			require.False(t, envelope.Success)
			require.NotEmpty(t, envelope.Error)
		})
	}
}

func TestHandler_CreateUser_Unauthorized(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	resp, envelope := doJSON(t, http.MethodPost, srv.URL+"/user/create?adminLogin=root&adminPassword=wrong", map[string]interface{}{
		"login":    "alice",
		"password": "alicepass",
		"name":     "Alice",
	})

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "Admin access required", envelope.Error)
}

func TestHandler_CreateUser_Conflict(t *testing.T) {
	srv, repo := newTestServer(t, 0)
	alice := domain.NewUser("alice", "p", "Alice", domain.GenderFemale, nil, false, "root", time.Now().UTC())
	repo.users[alice.Login] = alice

	resp, envelope := doJSON(t, http.MethodPost, srv.URL+"/user/create?"+adminQuery, map[string]interface{}{
		"login":    "alice",
		"password": "another",
		"name":     "Another",
	})

	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "Login already exists", envelope.Error)
}

func TestHandler_UpdateProfile_SelfAndForbidden(t *testing.T) {
	srv, repo := newTestServer(t, 0)
	alice := domain.NewUser("alice", "alicepass", "Alice", domain.GenderFemale, nil, false, "root", time.Now().UTC())
	repo.users[alice.Login] = alice

	// Self update succeeds.
	resp, envelope := doJSON(t, http.MethodPut,
		srv.URL+"/user/update-profile?currentUserLogin=alice&currentUserPassword=alicepass",
		map[string]interface{}{"login": "alice", "name": "Alicia"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, envelope.Success)
	require.Equal(t, "Alicia", repo.users["alice"].Name)

	// Updating someone else without admin rights is forbidden.
	resp, envelope = doJSON(t, http.MethodPut,
		srv.URL+"/user/update-profile?currentUserLogin=alice&currentUserPassword=alicepass",
		map[string]interface{}{"login": "root", "name": "Hacked"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, "No permissions to update this user", envelope.Error)
}

func TestHandler_UpdateLogin_Conflict(t *testing.T) {
	srv, repo := newTestServer(t, 0)
	alice := domain.NewUser("alice", "alicepass", "Alice", domain.GenderFemale, nil, false, "root", time.Now().UTC())
	repo.users[alice.Login] = alice

	resp, envelope := doJSON(t, http.MethodPut,
		srv.URL+"/user/update-login?currentUserLogin=alice&currentUserPassword=alicepass",
		map[string]interface{}{"login": "alice", "new_login": "root"})

	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "New login is already taken", envelope.Error)
}

func TestHandler_DeleteAndRestore(t *testing.T) {
	srv, repo := newTestServer(t, 0)
	alice := domain.NewUser("alice", "alicepass", "Alice", domain.GenderFemale, nil, false, "root", time.Now().UTC())
	repo.users[alice.Login] = alice

	// Soft delete.
	resp, _ := doJSON(t, http.MethodDelete, srv.URL+"/user/alice?"+adminQuery, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, repo.users["alice"].IsRevoked())

	// Revoked target rejects further profile updates.
	resp, envelope := doJSON(t, http.MethodPut,
		srv.URL+"/user/update-profile?"+strings.Replace(adminQuery, "admin", "currentUser", 2),
		map[string]interface{}{"login": "alice", "name": "Ghost"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.Equal(t, "User is revoked", envelope.Error)

	// Restore brings the user back.
	resp, _ = doJSON(t, http.MethodPut, srv.URL+"/user/restore/alice?"+adminQuery, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.False(t, repo.users["alice"].IsRevoked())

	// Hard delete removes the record.
	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/user/alice?hard=true&"+adminQuery, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotContains(t, repo.users, "alice")
}

func TestHandler_ActiveListExcludesRevoked(t *testing.T) {
	srv, repo := newTestServer(t, 0)
	alice := domain.NewUser("alice", "p", "Alice", domain.GenderFemale, nil, false, "root", time.Now().UTC())
	bob := domain.NewUser("bob", "p", "Bob", domain.GenderMale, nil, false, "root", time.Now().UTC())
	bob.Revoke("root", time.Now().UTC())
	repo.users[alice.Login] = alice
	repo.users[bob.Login] = bob

	resp, envelope := doJSON(t, http.MethodGet, srv.URL+"/user/active?"+adminQuery, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	list, ok := envelope.Data.([]interface{})
	require.True(t, ok)
	logins := make([]string, 0, len(list))
	for _, item := range list {
		entry := item.(map[string]interface{})
		logins = append(logins, entry["login"].(string))
	}
	require.Contains(t, logins, "alice")
	require.NotContains(t, logins, "bob")
}

func TestHandler_GetByLogin_NotFound(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	resp, envelope := doJSON(t, http.MethodGet, srv.URL+"/user/by-login/ghost?"+adminQuery, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "User not found", envelope.Error)
}

func TestHandler_GetSelf(t *testing.T) {
	srv, repo := newTestServer(t, 0)
	alice := domain.NewUser("alice", "alicepass", "Alice", domain.GenderFemale, nil, false, "root", time.Now().UTC())
	repo.users[alice.Login] = alice

	resp, envelope := doJSON(t, http.MethodGet,
		srv.URL+"/user/current?currentUserLogin=alice&currentUserPassword=alicepass", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data := envelope.Data.(map[string]interface{})
	require.Equal(t, "alice", data["login"])
	require.NotContains(t, data, "password")
}

func TestHandler_OlderThan_BadAge(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	resp, envelope := doJSON(t, http.MethodGet, srv.URL+"/user/older-than/abc?"+adminQuery, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.False(t, envelope.Success)
}

func TestHandler_RateLimiter(t *testing.T) {
	srv, _ := newTestServer(t, 3)

	var last *http.Response
	for i := 0; i < 4; i++ {
		resp, _ := doJSON(t, http.MethodGet, fmt.Sprintf("%s/health", srv.URL), nil)
		last = resp
	}

	require.Equal(t, http.StatusTooManyRequests, last.StatusCode)
	require.Equal(t, "60", last.Header.Get("Retry-After"))
}

func TestHandler_Health(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	resp, envelope := doJSON(t, http.MethodGet, srv.URL+"/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, envelope.Success)
}
