package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/leonidas-directory/internal/domain"
)

func newTestQueryService(repo *MockUserRepository) *QueryService {
	logger := zerolog.Nop()
	svc := NewQueryService(repo, NewVerifier(repo, logger), logger)
	svc.now = func() time.Time { return testNow }
	return svc
}

func birthdayOf(year, month, day int) *time.Time {
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestQueryService_ListActive(t *testing.T) {
	repo := NewMockUserRepository()
	seedAdmin(repo)

	// Created in reverse order to prove the ordering comes from the store.
	third := domain.NewUser("carol", "p", "Carol", domain.GenderFemale, nil, false, "root", testNow.Add(-10*time.Minute))
	second := domain.NewUser("bob", "p", "Bob", domain.GenderMale, nil, false, "root", testNow.Add(-20*time.Minute))
	first := domain.NewUser("alice", "p", "Alice", domain.GenderFemale, nil, false, "root", testNow.Add(-30*time.Minute))
	revoked := domain.NewUser("dave", "p", "Dave", domain.GenderMale, nil, false, "root", testNow.Add(-40*time.Minute))
	revoked.Revoke("root", testNow.Add(-5*time.Minute))
	for _, u := range []*domain.User{third, second, first, revoked} {
		repo.users[u.Login] = u
	}

	svc := newTestQueryService(repo)

	users, err := svc.ListActive(context.Background(), adminCreds())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantOrder := []string{"root", "alice", "bob", "carol"}
	if len(users) != len(wantOrder) {
		t.Fatalf("expected %d users, got %d", len(wantOrder), len(users))
	}
	for i, login := range wantOrder {
		if users[i].Login != login {
			t.Errorf("position %d: expected %s, got %s", i, login, users[i].Login)
		}
	}
	for _, u := range users {
		if u.Status != domain.StatusActive {
			t.Errorf("user %s: expected status %s, got %s", u.Login, domain.StatusActive, u.Status)
		}
	}
}

func TestQueryService_ListActive_RequiresAdmin(t *testing.T) {
	repo := NewMockUserRepository()
	seedAdmin(repo)
	seedUser(repo)

	svc := newTestQueryService(repo)

	_, err := svc.ListActive(context.Background(), userCreds())
	if !errors.Is(err, domain.ErrAdminRequired) {
		t.Errorf("expected %v, got %v", domain.ErrAdminRequired, err)
	}
}

func TestQueryService_GetByLogin(t *testing.T) {
	repo := NewMockUserRepository()
	seedAdmin(repo)
	alice := seedUser(repo)
	alice.Birthday = birthdayOf(1992, 7, 4)

	svc := newTestQueryService(repo)
	ctx := context.Background()

	pub, err := svc.GetByLogin(ctx, "alice", adminCreds())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pub.Login != "alice" || pub.Name != "Alice" {
		t.Errorf("unexpected projection: %+v", pub)
	}
	if pub.Gender != "Female" {
		t.Errorf("expected gender label Female, got %s", pub.Gender)
	}
	if pub.Status != domain.StatusActive {
		t.Errorf("expected status %s, got %s", domain.StatusActive, pub.Status)
	}

	// Revoked users stay addressable by login.
	alice.Revoke("root", testNow)
	pub, err = svc.GetByLogin(ctx, "alice", adminCreds())
	if err != nil {
		t.Fatalf("unexpected error for revoked user: %v", err)
	}
	if pub.Status != domain.StatusRevoked {
		t.Errorf("expected status %s, got %s", domain.StatusRevoked, pub.Status)
	}
	if pub.RevokedBy == nil || *pub.RevokedBy != "root" {
		t.Errorf("expected revoked_by root, got %v", pub.RevokedBy)
	}

	_, err = svc.GetByLogin(ctx, "ghost", adminCreds())
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("expected %v, got %v", domain.ErrUserNotFound, err)
	}

	_, err = svc.GetByLogin(ctx, "alice", userCreds())
	if !errors.Is(err, domain.ErrAdminRequired) {
		t.Errorf("expected %v for non-admin, got %v", domain.ErrAdminRequired, err)
	}
}

func TestQueryService_GetSelf(t *testing.T) {
	repo := NewMockUserRepository()
	seedAdmin(repo)
	alice := seedUser(repo)

	svc := newTestQueryService(repo)
	ctx := context.Background()

	self, err := svc.GetSelf(ctx, userCreds())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if self.Login != "alice" {
		t.Errorf("expected alice, got %s", self.Login)
	}

	_, err = svc.GetSelf(ctx, Credentials{Login: "alice", Password: "wrong"})
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("expected %v, got %v", domain.ErrInvalidCredentials, err)
	}

	alice.Revoke("root", testNow)
	_, err = svc.GetSelf(ctx, userCreds())
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("expected revoked self-lookup to fail with %v, got %v", domain.ErrInvalidCredentials, err)
	}
}

func TestQueryService_OlderThan(t *testing.T) {
	repo := NewMockUserRepository()
	seedAdmin(repo)

	// testNow is 2024-06-15. Cutoff for age 30 is 1994-06-15.
	onCutoff := domain.NewUser("edge", "p", "Edge", domain.GenderUnknown, birthdayOf(1994, 6, 15), false, "root", testNow.Add(-time.Hour))
	older := domain.NewUser("older", "p", "Older", domain.GenderMale, birthdayOf(1980, 1, 2), false, "root", testNow.Add(-time.Hour))
	younger := domain.NewUser("younger", "p", "Younger", domain.GenderFemale, birthdayOf(1994, 6, 16), false, "root", testNow.Add(-time.Hour))
	noBirthday := domain.NewUser("nobday", "p", "No Birthday", domain.GenderUnknown, nil, false, "root", testNow.Add(-time.Hour))
	revokedOld := domain.NewUser("grandpa", "p", "Grandpa", domain.GenderMale, birthdayOf(1950, 5, 5), false, "root", testNow.Add(-time.Hour))
	revokedOld.Revoke("root", testNow.Add(-time.Minute))
	for _, u := range []*domain.User{onCutoff, older, younger, noBirthday, revokedOld} {
		repo.users[u.Login] = u
	}

	svc := newTestQueryService(repo)

	users, err := svc.OlderThan(context.Background(), 30, adminCreds())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Birthday descending: youngest qualifying first. Revoked users are
	// included; users without a birthday are not.
	wantOrder := []string{"edge", "older", "grandpa"}
	if len(users) != len(wantOrder) {
		logins := make([]string, 0, len(users))
		for _, u := range users {
			logins = append(logins, u.Login)
		}
		t.Fatalf("expected %v, got %v", wantOrder, logins)
	}
	for i, login := range wantOrder {
		if users[i].Login != login {
			t.Errorf("position %d: expected %s, got %s", i, login, users[i].Login)
		}
	}
}

func TestQueryService_OlderThan_RequiresAdmin(t *testing.T) {
	repo := NewMockUserRepository()
	seedAdmin(repo)
	seedUser(repo)

	svc := newTestQueryService(repo)

	_, err := svc.OlderThan(context.Background(), 18, userCreds())
	if !errors.Is(err, domain.ErrAdminRequired) {
		t.Errorf("expected %v, got %v", domain.ErrAdminRequired, err)
	}
}

func TestVerifier_StoreFailurePassthrough(t *testing.T) {
	repo := NewMockUserRepository()
	repo.getErr = errors.New("connection refused")

	logger := zerolog.Nop()
	verifier := NewVerifier(repo, logger)

	_, err := verifier.VerifyAdmin(context.Background(), adminCreds())
	if !errors.Is(err, domain.ErrInternal) {
		t.Errorf("expected %v, got %v", domain.ErrInternal, err)
	}
	if errors.Is(err, domain.ErrAdminRequired) {
		t.Error("store failure must stay distinct from authorization failure")
	}
}
