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

// UserService implements the user lifecycle: create, profile update,
// password update, login rename, soft/hard delete and restore. Every
// operation wraps a permission check around a store mutation, and every
// mutation reads the clock once so all audit stamps of one call agree.
type UserService struct {
	userRepo repository.UserRepository
	verifier *Verifier
	logger   zerolog.Logger
	now      func() time.Time
}

// NewUserService creates a new UserService.
func NewUserService(userRepo repository.UserRepository, verifier *Verifier, logger zerolog.Logger) *UserService {
	return &UserService{
		userRepo: userRepo,
		verifier: verifier,
		logger:   logger.With().Str("service", "user").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateUserInput contains the data needed to create a new user.
// Field constraints (login 3-50 alphanumeric, password 6-100
// alphanumeric, name letters and spaces) are enforced by the transport
// layer before the input reaches this service.
type CreateUserInput struct {
	Login    string
	Password string
	Name     string
	Gender   domain.Gender
	Birthday *time.Time
	Admin    bool
}

// Create creates a new user record. Admin only. The pre-check on login
// existence gives the friendly conflict message; the store's UNIQUE
// constraint remains the authoritative guard under concurrency.
func (s *UserService) Create(ctx context.Context, input CreateUserInput, actor Credentials) (*domain.User, error) {
	admin, err := s.verifier.VerifyAdmin(ctx, actor)
	if err != nil {
		return nil, err
	}

	exists, err := s.userRepo.ExistsByLogin(ctx, input.Login)
	if err != nil {
		s.logger.Error().Err(err).Str("login", input.Login).Msg("failed to check login existence")
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}
	if exists {
		return nil, domain.ErrLoginExists
	}

	user := domain.NewUser(
		input.Login,
		input.Password,
		input.Name,
		input.Gender,
		input.Birthday,
		input.Admin,
		admin.Login,
		s.now(),
	)

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrLoginExists) {
			// Lost the race against a concurrent create.
			return nil, domain.ErrLoginExists
		}
		s.logger.Error().Err(err).Str("login", input.Login).Msg("failed to create user")
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	s.logger.Info().
		Str("login", user.Login).
		Str("created_by", admin.Login).
		Bool("is_admin", user.Admin).
		Msg("user created")

	return user, nil
}

// UpdateProfileInput contains the data for a partial profile update.
// Nil fields keep the current value; present fields replace it.
type UpdateProfileInput struct {
	Login    string
	Name     *string
	Gender   *domain.Gender
	Birthday *time.Time
}

// UpdateProfile applies a field-level patch to name, gender and
// birthday. Allowed for admins and for users acting on their own record.
func (s *UserService) UpdateProfile(ctx context.Context, input UpdateProfileInput, actor Credentials) error {
	target, err := s.resolveTarget(ctx, input.Login, actor)
	if err != nil {
		return err
	}

	if input.Name != nil {
		target.Name = *input.Name
	}
	if input.Gender != nil {
		target.Gender = *input.Gender
	}
	if input.Birthday != nil {
		target.Birthday = domain.NormalizeBirthday(input.Birthday)
	}
	target.Touch(actor.Login, s.now())

	if err := s.userRepo.Update(ctx, target); err != nil {
		s.logger.Error().Err(err).Str("login", input.Login).Msg("failed to update profile")
		return fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	return nil
}

// UpdatePasswordInput contains the data needed to replace a password.
type UpdatePasswordInput struct {
	Login       string
	NewPassword string
}

// UpdatePassword replaces the target's password unconditionally.
// Allowed for admins and for users acting on their own record.
func (s *UserService) UpdatePassword(ctx context.Context, input UpdatePasswordInput, actor Credentials) error {
	target, err := s.resolveTarget(ctx, input.Login, actor)
	if err != nil {
		return err
	}

	target.Password = input.NewPassword
	target.Touch(actor.Login, s.now())

	if err := s.userRepo.Update(ctx, target); err != nil {
		s.logger.Error().Err(err).Str("login", input.Login).Msg("failed to update password")
		return fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	s.logger.Info().Str("login", target.Login).Str("modified_by", actor.Login).Msg("password updated")
	return nil
}

// UpdateLoginInput contains the data needed to rename a login.
type UpdateLoginInput struct {
	OldLogin string
	NewLogin string
}

// UpdateLogin renames the target's login. The identifier is unchanged.
// The pre-check on the new login gives the friendly conflict message;
// the single guarded UPDATE in the repository keeps the uniqueness
// check atomic with the write, so concurrent renames racing on the same
// target login cannot both win.
func (s *UserService) UpdateLogin(ctx context.Context, input UpdateLoginInput, actor Credentials) error {
	target, err := s.resolveTarget(ctx, input.OldLogin, actor)
	if err != nil {
		return err
	}

	taken, err := s.userRepo.ExistsByLogin(ctx, input.NewLogin)
	if err != nil {
		s.logger.Error().Err(err).Str("login", input.NewLogin).Msg("failed to check login existence")
		return fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}
	if taken {
		return domain.ErrLoginTaken
	}

	if err := s.userRepo.Rename(ctx, target.ID, input.NewLogin, actor.Login, s.now()); err != nil {
		if errors.Is(err, domain.ErrLoginTaken) || errors.Is(err, domain.ErrUserNotFound) {
			return err
		}
		s.logger.Error().Err(err).Str("old_login", input.OldLogin).Msg("failed to rename user")
		return fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	s.logger.Info().
		Str("old_login", input.OldLogin).
		Str("new_login", input.NewLogin).
		Str("modified_by", actor.Login).
		Msg("login updated")

	return nil
}

// Delete removes a user. Admin only. With hard=true the record is
// permanently removed and unrecoverable; otherwise the record is
// revoked (soft-deleted) and stays addressable by login.
func (s *UserService) Delete(ctx context.Context, login string, hard bool, actor Credentials) error {
	admin, err := s.verifier.VerifyAdmin(ctx, actor)
	if err != nil {
		return err
	}

	user, err := s.userRepo.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Str("login", login).Msg("failed to get user")
		return fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	if hard {
		if err := s.userRepo.Delete(ctx, login); err != nil {
			if errors.Is(err, domain.ErrUserNotFound) {
				return domain.ErrUserNotFound
			}
			s.logger.Error().Err(err).Str("login", login).Msg("failed to delete user")
			return fmt.Errorf("%w: %v", domain.ErrInternal, err)
		}

		s.logger.Info().Str("login", login).Str("deleted_by", admin.Login).Msg("user hard deleted")
		return nil
	}

	user.Revoke(admin.Login, s.now())

	if err := s.userRepo.Update(ctx, user); err != nil {
		s.logger.Error().Err(err).Str("login", login).Msg("failed to revoke user")
		return fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	s.logger.Info().Str("login", login).Str("revoked_by", admin.Login).Msg("user soft deleted")
	return nil
}

// Restore clears the revocation markers of a user. Admin only.
// Restoring an active user only re-stamps the modification fields.
func (s *UserService) Restore(ctx context.Context, login string, actor Credentials) error {
	admin, err := s.verifier.VerifyAdmin(ctx, actor)
	if err != nil {
		return err
	}

	user, err := s.userRepo.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Str("login", login).Msg("failed to get user")
		return fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	user.Restore(admin.Login, s.now())

	if err := s.userRepo.Update(ctx, user); err != nil {
		s.logger.Error().Err(err).Str("login", login).Msg("failed to restore user")
		return fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	s.logger.Info().Str("login", login).Str("restored_by", admin.Login).Msg("user restored")
	return nil
}

// resolveTarget runs the shared gate of the three update operations:
// authenticate the caller, resolve the target by login, reject revoked
// targets, and require admin or self.
func (s *UserService) resolveTarget(ctx context.Context, login string, actor Credentials) (*domain.User, error) {
	current, err := s.verifier.VerifyUser(ctx, actor)
	if err != nil {
		return nil, err
	}

	target, err := s.userRepo.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Str("login", login).Msg("failed to get user")
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	if target.IsRevoked() {
		return nil, domain.NewDomainError(domain.ErrUserRevoked, "mutation rejected", target.Login)
	}

	if !current.Admin && current.Login != target.Login {
		return nil, domain.NewDomainError(domain.ErrNoPermission, "actor is neither admin nor the target", target.Login)
	}

	return target, nil
}
