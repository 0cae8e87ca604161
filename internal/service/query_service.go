package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/leonidas-directory/internal/domain"
	"github.com/prn-tf/leonidas-directory/internal/repository"
)

// QueryService implements the read-side operations of the directory.
// Results never carry passwords; listings and lookups project onto
// domain.PublicUser except for self-lookup, which returns the full
// record of the authenticated caller.
type QueryService struct {
	userRepo repository.UserRepository
	verifier *Verifier
	logger   zerolog.Logger
	now      func() time.Time
}

// NewQueryService creates a new QueryService.
func NewQueryService(userRepo repository.UserRepository, verifier *Verifier, logger zerolog.Logger) *QueryService {
	return &QueryService{
		userRepo: userRepo,
		verifier: verifier,
		logger:   logger.With().Str("service", "query").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ListActive returns all non-revoked users ordered by creation time,
// oldest first. Admin only.
func (s *QueryService) ListActive(ctx context.Context, actor Credentials) ([]*domain.PublicUser, error) {
	if _, err := s.verifier.VerifyAdmin(ctx, actor); err != nil {
		return nil, err
	}

	users, err := s.userRepo.ListActive(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list active users")
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	return projectPublic(users), nil
}

// GetByLogin returns the public projection of a single user, revoked
// or not. Admin only.
func (s *QueryService) GetByLogin(ctx context.Context, login string, actor Credentials) (*domain.PublicUser, error) {
	if _, err := s.verifier.VerifyAdmin(ctx, actor); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Str("login", login).Msg("failed to get user")
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	return user.Public(), nil
}

// GetSelf authenticates the caller and returns their own full record.
// Revoked users cannot authenticate, so a revoked caller gets the
// invalid-credentials error rather than their record.
func (s *QueryService) GetSelf(ctx context.Context, actor Credentials) (*domain.User, error) {
	return s.verifier.VerifyUser(ctx, actor)
}

// OlderThan returns users strictly older than age years, computed
// against the current time. A user born exactly age years ago today is
// included. Users without a birthday are excluded. Admin only.
func (s *QueryService) OlderThan(ctx context.Context, age int, actor Credentials) ([]*domain.PublicUser, error) {
	if _, err := s.verifier.VerifyAdmin(ctx, actor); err != nil {
		return nil, err
	}

	cutoff := s.now().AddDate(-age, 0, 0)

	users, err := s.userRepo.ListOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error().Err(err).Int("age", age).Msg("failed to list users by age")
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	return projectPublic(users), nil
}

func projectPublic(users []*domain.User) []*domain.PublicUser {
	result := make([]*domain.PublicUser, 0, len(users))
	for _, u := range users {
		result = append(result, u.Public())
	}
	return result
}
