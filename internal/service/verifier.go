// Package service provides the business logic for Leonidas Directory.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/prn-tf/leonidas-directory/internal/domain"
	"github.com/prn-tf/leonidas-directory/internal/repository"
)

// Credentials identify the caller of an operation. Passwords are
// compared verbatim against the stored value; this service deliberately
// keeps the plaintext scheme of the system it re-implements.
type Credentials struct {
	Login    string
	Password string
}

// Verifier checks acting credentials against the store. Every check
// re-reads the store, so password changes and revocations take effect
// immediately for subsequent calls.
type Verifier struct {
	userRepo repository.UserRepository
	logger   zerolog.Logger
}

// NewVerifier creates a new Verifier.
func NewVerifier(userRepo repository.UserRepository, logger zerolog.Logger) *Verifier {
	return &Verifier{
		userRepo: userRepo,
		logger:   logger.With().Str("service", "verifier").Logger(),
	}
}

// VerifyAdmin resolves the credentials to an active admin user.
// Wrong login, wrong password, a missing admin flag and a revoked
// account all yield the same domain.ErrAdminRequired so callers cannot
// tell which check failed.
func (v *Verifier) VerifyAdmin(ctx context.Context, creds Credentials) (*domain.User, error) {
	user, err := v.lookup(ctx, creds)
	if err != nil {
		if errors.Is(err, domain.ErrInternal) {
			return nil, err
		}
		v.logger.Warn().Str("login", creds.Login).Msg("admin verification failed")
		return nil, domain.ErrAdminRequired
	}

	if !user.Admin {
		v.logger.Warn().Str("login", creds.Login).Msg("admin verification failed")
		return nil, domain.ErrAdminRequired
	}

	return user, nil
}

// VerifyUser resolves the credentials to an active user of any role.
// Any mismatch yields the same domain.ErrInvalidCredentials.
func (v *Verifier) VerifyUser(ctx context.Context, creds Credentials) (*domain.User, error) {
	user, err := v.lookup(ctx, creds)
	if err != nil {
		if errors.Is(err, domain.ErrInternal) {
			return nil, err
		}
		v.logger.Warn().Str("login", creds.Login).Msg("failed login attempt")
		return nil, domain.ErrInvalidCredentials
	}

	return user, nil
}

// lookup fetches the record and applies the matching rules shared by
// both verification modes: login present, password equal, not revoked.
func (v *Verifier) lookup(ctx context.Context, creds Credentials) (*domain.User, error) {
	user, err := v.userRepo.GetByLogin(ctx, creds.Login)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		v.logger.Error().Err(err).Str("login", creds.Login).Msg("failed to read user for verification")
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	if user.Password != creds.Password {
		return nil, domain.ErrInvalidCredentials
	}

	if !user.CanAuthenticate() {
		return nil, domain.ErrUserRevoked
	}

	return user, nil
}
